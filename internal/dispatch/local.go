package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "github.com/Suraj-Gov/guri/pkg/logx"
)

// SecretHeader authenticates deliveries at the callback endpoint.
// TokenHeader carries the dispatch token so the receiver can drop stale
// deliveries.
const (
	SecretHeader = "X-Guri-Secret"
	TokenHeader  = "X-Guri-Dispatch"
)

var ErrStopped = errors.New("dispatch queue stopped")

type Config struct {
	Secret         string
	SweepEvery     time.Duration // redelivery sweep interval (default 1m)
	RetryMax       int           // delivery attempts before giving up (default 5)
	RetryBase      time.Duration // backoff base between attempts (default 30s)
	DeliverTimeout time.Duration // per-request timeout (default 10s)
}

func (c Config) withDefaults() Config {
	if c.SweepEvery <= 0 {
		c.SweepEvery = time.Minute
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 5
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 30 * time.Second
	}
	if c.DeliverTimeout <= 0 {
		c.DeliverTimeout = 10 * time.Second
	}
	return c
}

// Local is an in-process delayed-dispatch queue: one-shot timers for
// dispatches enqueued during this process's lifetime, a journal so nothing
// is lost across restarts, and a cron sweep that redelivers anything due
// whose timer no longer exists. Together these give at-least-once delivery
// at/after the requested fire time.
//
// Local owns timing only; it knows nothing about tasks or reminders. The
// payload is opaque and delivery is an HTTP POST to the stored callback URL
// with the shared-secret and token headers.
type Local struct {
	cfg     Config
	journal Journal
	log     logx.Logger
	client  *http.Client

	// now is swappable for tests.
	now func() time.Time

	mu       sync.Mutex
	timers   map[string]*time.Timer
	inflight map[string]bool
	stopped  bool

	c  *cron.Cron
	wg sync.WaitGroup
}

func NewLocal(cfg Config, journal Journal, log logx.Logger) *Local {
	cfg = cfg.withDefaults()
	return &Local{
		cfg:      cfg,
		journal:  journal,
		log:      log.With(logx.String("comp", "dispatch")),
		client:   &http.Client{Timeout: cfg.DeliverTimeout},
		now:      time.Now,
		timers:   map[string]*time.Timer{},
		inflight: map[string]bool{},
	}
}

// Enqueue journals the dispatch and arms its timer. The token is returned
// to the caller so it can be persisted alongside whatever the dispatch is
// about.
func (l *Local) Enqueue(ctx context.Context, payload []byte, fireAt time.Time, callbackURL string) (string, error) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return "", ErrStopped
	}
	l.mu.Unlock()

	d := Dispatch{
		Token:       newToken(),
		Payload:     append([]byte(nil), payload...),
		FireAt:      fireAt,
		CallbackURL: callbackURL,
	}
	if err := l.journal.SaveDispatch(ctx, d); err != nil {
		return "", fmt.Errorf("journal dispatch: %w", err)
	}
	l.armTimer(d)
	l.log.Debug("dispatch enqueued",
		logx.String("token", d.Token),
		logx.Time("fire_at", fireAt),
	)
	return d.Token, nil
}

// Start rearms journaled dispatches and begins the redelivery sweep.
func (l *Local) Start(ctx context.Context) error {
	pending, err := l.journal.PendingDispatches(ctx)
	if err != nil {
		return fmt.Errorf("load pending dispatches: %w", err)
	}
	for _, d := range pending {
		l.armTimer(d)
	}

	l.c = cron.New()
	_, err = l.c.AddFunc(fmt.Sprintf("@every %s", l.cfg.SweepEvery), l.sweep)
	if err != nil {
		return err
	}
	l.c.Start()

	l.log.Info("dispatch queue started",
		logx.Int("pending", len(pending)),
		logx.Duration("sweep_every", l.cfg.SweepEvery),
	)
	return nil
}

func (l *Local) Stop(ctx context.Context) {
	l.mu.Lock()
	l.stopped = true
	for token, t := range l.timers {
		t.Stop()
		delete(l.timers, token)
	}
	c := l.c
	l.c = nil
	l.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (l *Local) armTimer(d Dispatch) {
	delay := time.Until(d.FireAt)
	if delay < 0 {
		delay = 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	if old, ok := l.timers[d.Token]; ok {
		old.Stop()
	}
	l.timers[d.Token] = time.AfterFunc(delay, func() {
		l.fire(d)
	})
}

// sweep redelivers due dispatches that have no live timer, e.g. after a
// restart or a missed retry. The inflight set keeps a timer firing and a
// concurrent sweep from double-delivering within this process; duplicate
// delivery across restarts is allowed by the at-least-once contract.
func (l *Local) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.DeliverTimeout)
	due, err := l.journal.DueDispatches(ctx, l.now(), 50)
	cancel()
	if err != nil {
		l.log.Warn("dispatch sweep failed", logx.Err(err))
		return
	}
	for _, d := range due {
		l.mu.Lock()
		_, hasTimer := l.timers[d.Token]
		busy := l.inflight[d.Token]
		l.mu.Unlock()
		if hasTimer || busy {
			continue
		}
		l.log.Debug("sweep redelivering", logx.String("token", d.Token))
		l.fire(d)
	}
}

func (l *Local) fire(d Dispatch) {
	l.mu.Lock()
	if l.stopped || l.inflight[d.Token] {
		l.mu.Unlock()
		return
	}
	l.inflight[d.Token] = true
	delete(l.timers, d.Token)
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer func() {
			l.mu.Lock()
			delete(l.inflight, d.Token)
			l.mu.Unlock()
		}()
		l.deliver(d)
	}()
}

func (l *Local) deliver(d Dispatch) {
	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.DeliverTimeout)
	defer cancel()

	err := l.post(ctx, d)
	if err == nil {
		if derr := l.journal.DeleteDispatch(context.Background(), d.Token); derr != nil {
			l.log.Warn("dispatch delivered but not cleared", logx.String("token", d.Token), logx.Err(derr))
		}
		l.log.Debug("dispatch delivered", logx.String("token", d.Token))
		return
	}

	attempts, berr := l.journal.BumpDispatchAttempt(context.Background(), d.Token)
	if berr != nil {
		l.log.Warn("dispatch attempt bump failed", logx.String("token", d.Token), logx.Err(berr))
		attempts = d.Attempts + 1
	}
	if attempts >= l.cfg.RetryMax {
		l.log.Error("dispatch dropped after retries",
			logx.String("token", d.Token),
			logx.Int("attempts", attempts),
			logx.Err(err),
		)
		_ = l.journal.DeleteDispatch(context.Background(), d.Token)
		return
	}

	// Exponential backoff, capped; the sweep is the safety net either way.
	delay := l.cfg.RetryBase << (attempts - 1)
	if maxDelay := 10 * l.cfg.RetryBase; delay > maxDelay {
		delay = maxDelay
	}
	l.log.Warn("dispatch delivery failed; will retry",
		logx.String("token", d.Token),
		logx.Int("attempts", attempts),
		logx.Duration("retry_in", delay),
		logx.Err(err),
	)
	d.Attempts = attempts
	d.FireAt = l.now().Add(delay)
	l.armTimer(d)
}

func (l *Local) post(ctx context.Context, d Dispatch) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.CallbackURL, bytes.NewReader(d.Payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SecretHeader, l.cfg.Secret)
	req.Header.Set(TokenHeader, d.Token)

	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// 404 means the target is gone; retrying won't help.
	if resp.StatusCode >= 200 && resp.StatusCode < 300 || resp.StatusCode == http.StatusNotFound {
		if resp.StatusCode == http.StatusNotFound {
			l.log.Debug("dispatch target not found; dropping", logx.String("token", d.Token))
		}
		return nil
	}
	return fmt.Errorf("callback returned %s", resp.Status)
}
