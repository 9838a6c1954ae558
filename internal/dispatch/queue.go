package dispatch

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Queue accepts a delayed-dispatch request: deliver payload to callbackURL
// at or after fireAt, at least once. The returned token identifies the
// request; a delivery carries it back so consumers can detect stale
// dispatches. Implementations must treat enqueue as fire-and-forget from
// the caller's perspective: there is no cancellation primitive.
type Queue interface {
	Enqueue(ctx context.Context, payload []byte, fireAt time.Time, callbackURL string) (string, error)
}

// Dispatch is one pending delayed delivery.
type Dispatch struct {
	Token       string
	Payload     []byte
	FireAt      time.Time
	CallbackURL string
	Attempts    int
}

// Journal is the durability contract the local queue needs: pending
// dispatches survive a restart so the redelivery sweep can pick them up.
type Journal interface {
	SaveDispatch(ctx context.Context, d Dispatch) error
	DeleteDispatch(ctx context.Context, token string) error
	BumpDispatchAttempt(ctx context.Context, token string) (int, error)
	PendingDispatches(ctx context.Context) ([]Dispatch, error)
	DueDispatches(ctx context.Context, now time.Time, limit int) ([]Dispatch, error)
}

func newToken() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
