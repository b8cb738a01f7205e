package processing

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// pacer is the manager's cooperative inter-call delay: a token bucket
// allowing one call per interval, grounded on the same
// golang.org/x/time/rate shape the teacher's Slack publisher uses for
// its own outbound pacing. Wait(ctx) blocks at most one interval and
// returns ctx.Err() immediately on cancellation, satisfying the
// suspension-point contract for a terminating run.
type pacer struct {
	limiter *rate.Limiter
}

func newPacer(interval time.Duration) *pacer {
	if interval <= 0 {
		interval = time.Second
	}
	return &pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (p *pacer) wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
