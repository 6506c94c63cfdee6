package core

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/residents/internal/database"
)

// Summary is the dashboard overview for an actor.
type Summary struct {
	database.Summary
	Cutoff *time.Time `json:"cutoff,omitempty"`
}

// Breakdown is a summary grouped by one location column.
type Breakdown struct {
	By     string                  `json:"by"`
	Rows   []database.BreakdownRow `json:"rows"`
	Cutoff *time.Time              `json:"cutoff,omitempty"`
}

// Summary aggregates the residents visible to actor. Residents not touched
// since the cutoff date count as pending.
func (s *Service) Summary(ctx context.Context, actor Actor, f database.ResidentFilter) (Summary, error) {
	cutoff, err := s.CutoffDate(ctx)
	if err != nil {
		return Summary{}, err
	}
	sum, err := s.store.Summarize(ctx, actor.Scope(f), cutoff)
	if err != nil {
		return Summary{}, fmt.Errorf("summary: %w", err)
	}
	return Summary{Summary: sum, Cutoff: cutoff}, nil
}

// Breakdown groups the residents visible to actor by a location column:
// district, mandal, secretariat or phc.
func (s *Service) Breakdown(ctx context.Context, actor Actor, by string, f database.ResidentFilter) (Breakdown, error) {
	if _, ok := database.BreakdownColumns[by]; !ok {
		return Breakdown{}, &ValidationError{Field: "by", Value: by, Msg: "must be district, mandal, secretariat or phc"}
	}
	cutoff, err := s.CutoffDate(ctx)
	if err != nil {
		return Breakdown{}, err
	}
	rows, err := s.store.Breakdown(ctx, by, actor.Scope(f), cutoff)
	if err != nil {
		return Breakdown{}, fmt.Errorf("breakdown by %s: %w", by, err)
	}
	return Breakdown{By: by, Rows: rows, Cutoff: cutoff}, nil
}
