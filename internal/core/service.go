package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/residents/internal/progress"
)

// Options tunes the service. Zero values take the defaults below.
type Options struct {
	ExportBatchSize  int           // residents per export batch (default 1000)
	ExportTimeout    time.Duration // bound on one export (default 30m)
	ImportErrorLimit int           // row errors kept per import (default 50)
	ImportTimeout    time.Duration // bound on one import (default 15m)
	PollInterval     time.Duration // progress subscription poll interval (default 500ms)
}

func (o Options) withDefaults() Options {
	if o.ExportBatchSize <= 0 {
		o.ExportBatchSize = 1000
	}
	if o.ExportTimeout <= 0 {
		o.ExportTimeout = 30 * time.Minute
	}
	if o.ImportErrorLimit <= 0 {
		o.ImportErrorLimit = 50
	}
	if o.ImportTimeout <= 0 {
		o.ImportTimeout = 15 * time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	return o
}

// Service provides the business logic behind the web and CLI layers.
type Service struct {
	store    Store
	progress progress.Store
	limiter  *JobLimiter
	opts     Options
	now      func() time.Time
}

// NewService creates a Service. limiter bounds concurrent exports and
// imports together.
func NewService(store Store, ps progress.Store, limiter *JobLimiter, opts Options) *Service {
	if limiter == nil {
		limiter = NewJobLimiter(0, 0)
	}
	return &Service{
		store:    store,
		progress: ps,
		limiter:  limiter,
		opts:     opts.withDefaults(),
		now:      time.Now,
	}
}

// Limiter exposes the job limiter for health checks and shutdown.
func (s *Service) Limiter() *JobLimiter {
	return s.limiter
}

// Ping checks the database connection.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

var sessionPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// NewSessionID returns a fresh progress session id.
func NewSessionID() string {
	return uuid.NewString()
}

// ValidSessionID reports whether id may be used as a progress session key.
func ValidSessionID(id string) bool {
	return sessionPattern.MatchString(id)
}

// Progress returns the latest frame of a session. Sessions started by
// another user are reported as not found, except to admins.
func (s *Service) Progress(ctx context.Context, actor Actor, sessionID string) (progress.Progress, error) {
	if !ValidSessionID(sessionID) {
		return progress.Progress{}, ErrInvalidSession
	}
	p, err := s.progress.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, progress.ErrNotFound) {
			return progress.Progress{}, fmt.Errorf("progress session %s: %w", sessionID, ErrNotFound)
		}
		return progress.Progress{}, err
	}
	if !actor.canWatch(p) {
		return progress.Progress{}, fmt.Errorf("progress session %s: %w", sessionID, ErrNotFound)
	}
	return p, nil
}

// SubscribeProgress streams a session's frames until it finishes or ctx
// ends. The stream closes without a frame when the session belongs to
// another user.
func (s *Service) SubscribeProgress(ctx context.Context, actor Actor, sessionID string) (<-chan progress.Progress, error) {
	if !ValidSessionID(sessionID) {
		return nil, ErrInvalidSession
	}

	ctx, cancel := context.WithCancel(ctx)
	frames := progress.Subscribe(ctx, s.progress, sessionID, s.opts.PollInterval)
	out := make(chan progress.Progress)
	go func() {
		defer close(out)
		defer cancel()
		for p := range frames {
			if !actor.canWatch(p) {
				cancel()
				for range frames {
				}
				return
			}
			select {
			case out <- p:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

// canWatch reports whether the actor may read a session's frames.
func (a Actor) canWatch(p progress.Progress) bool {
	return a.IsAdmin() || (a.UserID != 0 && p.Owner == a.UserID)
}

func (s *Service) tracker(sessionID string, owner Actor) *progress.Tracker {
	t := progress.NewTracker(s.progress, sessionID)
	t.SetOwner(owner.UserID)
	return t
}
