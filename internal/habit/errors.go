package habit

import (
	"errors"
	"fmt"

	"github.com/Suraj-Gov/guri/internal/schedule"
)

var (
	// ErrNotFound marks a missing task, goal or user.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized marks access to a goal or task the acting user does
	// not own.
	ErrUnauthorized = errors.New("unauthorized")
)

// Denial is a soft eligibility failure: reported to the caller with a
// human-readable message, overridable by retrying with force. It is never
// fatal to the request pipeline.
type Denial struct {
	Kind    schedule.DecisionKind
	Message string
}

func (d *Denial) Error() string { return d.Message }

// AsDenial unwraps a Denial from an error chain.
func AsDenial(err error) (*Denial, bool) {
	var d *Denial
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// ExternalError wraps a queue or notifier failure. These degrade the
// reminder chain but must never fail the caller's request; callers log
// them and move on.
type ExternalError struct {
	Op  string
	Err error
}

func (e *ExternalError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *ExternalError) Unwrap() error { return e.Err }
