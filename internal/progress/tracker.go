package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Tracker writes the transitions of one session into a Store.
// Once completed or failed, later calls are ignored.
//
// Store failures are logged and swallowed: losing a progress frame must
// not abort the export that produces it.
type Tracker struct {
	store Store
	id    string
	now   func() time.Time

	mu      sync.Mutex
	current Progress
}

// NewTracker returns a tracker for session id.
func NewTracker(store Store, id string) *Tracker {
	return &Tracker{store: store, id: id, now: time.Now}
}

// SetOwner records the user who started the session in every frame.
// Call it before the first transition.
func (t *Tracker) SetOwner(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current.Owner = userID
}

// ID returns the session id.
func (t *Tracker) ID() string {
	return t.id
}

// Current returns the last frame written.
func (t *Tracker) Current() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

func (t *Tracker) write(ctx context.Context, update func(*Progress)) {
	t.mu.Lock()
	if t.current.Status.Terminal() {
		t.mu.Unlock()
		return
	}
	update(&t.current)
	t.current.UpdatedAt = t.now()
	frame := t.current
	t.mu.Unlock()

	// The request context may already be done when a client aborts the
	// download; the final frame should still land.
	ctx = context.WithoutCancel(ctx)
	if err := t.store.Set(ctx, t.id, frame); err != nil {
		slog.Warn("progress write failed", "session", t.id, "status", frame.Status, "error", err)
	}
}

// Init records the initializing state.
func (t *Tracker) Init(ctx context.Context, message string) {
	t.write(ctx, func(p *Progress) {
		p.Status = StatusInitializing
		p.Message = message
	})
}

// Start records the total size of the job and switches to processing.
func (t *Tracker) Start(ctx context.Context, total int64, batches int) {
	t.write(ctx, func(p *Progress) {
		p.Status = StatusProcessing
		p.TotalRecords = total
		p.TotalBatches = batches
		p.Message = "processing"
	})
}

// Batch records that batch number batch finished with processed rows so far.
func (t *Tracker) Batch(ctx context.Context, batch int, processed int64) {
	t.write(ctx, func(p *Progress) {
		p.Status = StatusProcessing
		p.CurrentBatch = batch
		p.ProcessedRecords = processed
		if batch > p.TotalBatches {
			p.TotalBatches = batch
		}
	})
}

// Complete records success with the final row count.
func (t *Tracker) Complete(ctx context.Context, processed int64, message string) {
	t.write(ctx, func(p *Progress) {
		p.Status = StatusCompleted
		p.ProcessedRecords = processed
		if processed > p.TotalRecords {
			p.TotalRecords = processed
		}
		p.Message = message
	})
}

// Fail records an error. The message is shown to users as is.
func (t *Tracker) Fail(ctx context.Context, message string) {
	t.write(ctx, func(p *Progress) {
		p.Status = StatusError
		p.Message = message
	})
}
