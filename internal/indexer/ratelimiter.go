package indexer

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"
)

// rateLimiter caps outbound request rate to the indexer with a token bucket,
// burst 1 so traffic is spread evenly instead of arriving in bursts.
type rateLimiter struct {
	limiter *rate.Limiter
}

func newRateLimiter(rps int) *rateLimiter {
	slog.Debug("indexer rate limiter created", "rps", rps)
	return &rateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

func (rl *rateLimiter) Wait(ctx context.Context) error {
	if err := rl.limiter.Wait(ctx); err != nil {
		slog.Warn("indexer rate limiter wait cancelled", "error", err)
		return err
	}
	return nil
}
