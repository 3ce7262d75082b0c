package provider

import (
	"context"

	"golang.org/x/time/rate"
)

// Pacer spaces outbound provider requests using a token bucket, so a
// concurrent scan still respects the provider's rate limit in
// aggregate.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a pacer allowing rps requests per second with the
// given burst capacity. rps <= 0 disables pacing.
func NewPacer(rps float64, burst int) *Pacer {
	if rps <= 0 {
		return &Pacer{}
	}
	if burst < 1 {
		burst = 1
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until the next request is allowed or the context is
// cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}
