package resilience

import (
	"context"
	"time"
)

// WithTimeout runs fn under a context that expires after d. A d of zero or
// less runs fn under ctx unchanged.
func WithTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}
