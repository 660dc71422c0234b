package limiter

import (
	"context"
	"time"
)

// poll calls try immediately and then once per interval until it returns
// true, maxWait elapses or ctx is done. The returned error explains a false
// result.
func poll(ctx context.Context, maxWait, interval time.Duration, try func() bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if try() {
		return true, nil
	}
	if maxWait <= 0 {
		return false, context.DeadlineExceeded
	}

	ctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
			if try() {
				return true, nil
			}
		}
	}
}
