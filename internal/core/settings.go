package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/residents/internal/database"
)

// CutoffLayout is the stored and accepted form of the cutoff date.
const CutoffLayout = "2006-01-02"

// CutoffDate returns the configured cutoff date, or nil when none is set.
// A malformed stored value is logged and treated as unset.
func (s *Service) CutoffDate(ctx context.Context) (*time.Time, error) {
	raw, err := s.store.GetSetting(ctx, database.SettingCutoffDate)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cutoff date: %w", err)
	}
	t, err := time.Parse(CutoffLayout, raw)
	if err != nil {
		slog.Warn("invalid cutoff date setting", "value", raw, "error", err)
		return nil, nil
	}
	return &t, nil
}

// SetCutoffDate stores the cutoff date, or clears it when date is nil.
// Admin only.
func (s *Service) SetCutoffDate(ctx context.Context, actor Actor, date *time.Time) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("set cutoff date: %w", ErrForbidden)
	}
	if date == nil {
		if err := s.store.DeleteSetting(ctx, database.SettingCutoffDate); err != nil {
			return err
		}
		slog.Info("cutoff date cleared", "by", actor.Username)
		return nil
	}

	value := date.UTC().Format(CutoffLayout)
	if err := s.store.SetSetting(ctx, database.SettingCutoffDate, value); err != nil {
		return err
	}
	slog.Info("cutoff date set", "cutoff", value, "by", actor.Username)
	return nil
}

// ParseCutoff parses a YYYY-MM-DD cutoff. An empty string means "no cutoff".
func ParseCutoff(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(CutoffLayout, s)
	if err != nil {
		return nil, &ValidationError{Field: "cutoff", Value: s, Msg: "invalid date, use YYYY-MM-DD"}
	}
	return &t, nil
}
