package claimer

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"
)

// pacer spaces iteration starts at least interval apart. The first Wait
// returns immediately; a zero interval never waits.
type pacer struct {
	limiter *rate.Limiter
}

func newPacer(interval time.Duration) *pacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &pacer{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next iteration may start or ctx is done.
func (p *pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// the limiter refuses waits that would outlive the deadline
		return errors.Mark(err, context.DeadlineExceeded)
	}
	return nil
}
