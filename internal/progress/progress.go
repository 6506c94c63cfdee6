// Package progress tracks long-running export sessions.
//
// An export writes frames into a Store under a caller-chosen session id;
// independent requests read them back by polling or through Subscribe.
// Frames expire after a TTL so abandoned sessions do not accumulate.
package progress

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no frame exists for a session.
var ErrNotFound = errors.New("progress session not found")

// Status is the lifecycle state of a session.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusProcessing   Status = "processing"
	StatusCompleted    Status = "completed"
	StatusError        Status = "error"
)

// Terminal reports whether no further transitions follow s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Progress is one frame as seen by pollers.
type Progress struct {
	Status           Status    `json:"status"`
	ProcessedRecords int64     `json:"processedRecords"`
	TotalRecords     int64     `json:"totalRecords"`
	CurrentBatch     int       `json:"currentBatch"`
	TotalBatches     int       `json:"totalBatches"`
	Message          string    `json:"message"`
	UpdatedAt        time.Time `json:"updatedAt"`

	// Owner is the id of the user who started the session; 0 for system jobs.
	Owner int64 `json:"owner,omitempty"`
}

// Percent returns completion in the range 0-100.
func (p Progress) Percent() int {
	if p.Status == StatusCompleted {
		return 100
	}
	if p.TotalRecords <= 0 {
		return 0
	}
	pct := int(p.ProcessedRecords * 100 / p.TotalRecords)
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Store keeps the latest frame per session.
type Store interface {
	Set(ctx context.Context, id string, p Progress) error
	Get(ctx context.Context, id string) (Progress, error)
	Delete(ctx context.Context, id string) error
}

// BatchCount returns how many batches of size batchSize cover total rows.
func BatchCount(total int64, batchSize int) int {
	if total <= 0 || batchSize <= 0 {
		return 0
	}
	return int((total + int64(batchSize) - 1) / int64(batchSize))
}
