package worker

import (
	"context"
	"os"
	"time"
)

// startHeartbeat refreshes the mtime of the job's inprogress marker on
// a fixed interval so the consolidate engine can tell a live claim from
// an abandoned one. The returned stop function ends the goroutine.
func startHeartbeat(markerPath string, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now()
				// Best effort: a missing marker just means the job
				// already reached a terminal state.
				os.Chtimes(markerPath, now, now)
			}
		}
	}()

	return cancel
}
