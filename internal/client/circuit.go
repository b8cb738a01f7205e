package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/corvidlabs/blockctl/internal/metrics"
)

// errCoolingDown is returned by the circuit when a caller account is in
// its 403 cool-down window; the caller should surface it as a transient
// failure rather than dispatch the call.
var errCoolingDown = errors.New("client: caller account is in 403 cool-down")

// cooldownCircuit keeps one gobreaker.CircuitBreaker per caller
// account, tripping after N consecutive empty-body 403s within a
// window and holding the account cool for a fixed duration — the
// empty-body 403 is the observed signature of transient upstream
// throttling unrelated to documented rate limits, distinct from the
// classifier's own permanent/transient/auth decision.
type cooldownCircuit struct {
	mu        sync.Mutex
	breakers  map[string]*gobreaker.CircuitBreaker
	openUntil map[string]time.Time
	trip      int
	window    time.Duration
	cooldown  time.Duration
	logger    *slog.Logger
	metrics   *metrics.ClientMetrics
}

func newCooldownCircuit(trip int, window, cooldown time.Duration, logger *slog.Logger, clientMetrics *metrics.ClientMetrics) *cooldownCircuit {
	if trip <= 0 {
		trip = 5
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Minute
	}
	return &cooldownCircuit{
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
		openUntil: make(map[string]time.Time),
		trip:      trip,
		window:    window,
		cooldown:  cooldown,
		logger:    logger,
		metrics:   clientMetrics,
	}
}

func (c *cooldownCircuit) breakerFor(account string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.breakers[account]; ok {
		return b
	}

	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cooldown:" + account,
		MaxRequests: 1,
		Interval:    c.window,
		Timeout:     c.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(c.trip)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("403 cool-down circuit state change", "account", name, "from", from.String(), "to", to.String())
			if to == gobreaker.StateOpen {
				c.metrics.RecordCircuitOpen(account)
				c.mu.Lock()
				c.openUntil[account] = time.Now().Add(c.cooldown)
				c.mu.Unlock()
			}
		},
	})
	c.breakers[account] = b
	return b
}

// waitIfCoolingDown blocks until account's 403 cool-down window has
// elapsed, if the account is currently in one. spec.md describes the
// 30-minute 403 cool-down as a cooperative sleep, not a fail-fast
// rejection: a caller that skips this and dispatches anyway would have
// its call fail-fast out of gobreaker as a plain error that
// ClassifyCallError can't recognize as a *CallError, burning a real
// slot off the retry ceiling on a failure that was never sent upstream.
func (c *cooldownCircuit) waitIfCoolingDown(ctx context.Context, account string) error {
	c.mu.Lock()
	until, cooling := c.openUntil[account]
	c.mu.Unlock()
	if !cooling {
		return nil
	}
	remaining := time.Until(until)
	if remaining <= 0 {
		return nil
	}
	c.logger.Info("sleeping through 403 cool-down", "account", account, "remaining", remaining.String())
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call runs fn through account's circuit, if the circuit is not
// currently open. Only an empty-body 403 (fn's is403Empty return) is
// reported to gobreaker as a circuit failure — fn's real error is
// carried through the "result" channel instead, so an ordinary
// transient or permanent failure never contributes to the cool-down
// trip count. Returns errCoolingDown if the account is in its
// cool-down window, errEmpty403Signature if fn reports an empty-body
// 403, else fn's own (possibly nil) error.
func (c *cooldownCircuit) call(account string, fn func() (is403Empty bool, err error)) error {
	b := c.breakerFor(account)
	result, err := b.Execute(func() (any, error) {
		empty403, callErr := fn()
		if empty403 {
			return nil, errEmpty403Signature
		}
		return callErr, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errCoolingDown
	}
	if errors.Is(err, errEmpty403Signature) {
		return errEmpty403Signature
	}
	if result != nil {
		return result.(error)
	}
	return nil
}

var errEmpty403Signature = errors.New("client: empty-body 403 signature")
