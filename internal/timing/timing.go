// Package timing provides the context-aware sleep behind every settle delay
// in the pipeline.
package timing

import (
	"context"
	"time"
)

// Sleep blocks for d or until the context is done. Non-positive durations
// return immediately with the context's error state, which lets tests
// substitute zero delays without losing cancellation checks.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
