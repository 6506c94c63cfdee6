package progress

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// MissingTimeout bounds how long Subscribe waits for a session that has
// not written its first frame yet.
var MissingTimeout = 30 * time.Second

// Subscribe polls store every interval and sends each changed frame.
// The channel closes after a terminal frame, when ctx ends, or when the
// session stays missing for MissingTimeout.
func Subscribe(ctx context.Context, store Store, id string, interval time.Duration) <-chan Progress {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ch := make(chan Progress, 1)

	go func() {
		defer close(ch)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var (
			last     Progress
			seen     bool
			deadline = time.Now().Add(MissingTimeout)
		)

		for {
			p, err := store.Get(ctx, id)
			switch {
			case errors.Is(err, ErrNotFound):
				if seen || time.Now().After(deadline) {
					return
				}
			case err != nil:
				if ctx.Err() != nil {
					return
				}
				slog.Warn("progress poll failed", "session", id, "error", err)
			default:
				if !seen || changed(last, p) {
					seen = true
					last = p
					select {
					case ch <- p:
					case <-ctx.Done():
						return
					}
				}
				if p.Status.Terminal() {
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return ch
}

func changed(a, b Progress) bool {
	return a.Status != b.Status ||
		a.ProcessedRecords != b.ProcessedRecords ||
		a.CurrentBatch != b.CurrentBatch ||
		a.TotalRecords != b.TotalRecords ||
		a.Message != b.Message
}
