package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/residents/internal/database"
	"github.com/JonMunkholm/residents/internal/logging"
)

// Paging limits for resident listings.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
	historyLimit    = 200
)

// ResidentQuery is a paginated, filtered resident listing request.
type ResidentQuery struct {
	Mandal      string
	Secretariat string
	PHC         string
	Search      string
	UpdatedFrom *time.Time
	Page        int // 1-based
	PageSize    int
}

// Filter converts q into a store filter. Location names are normalized the
// way imports store them.
func (q ResidentQuery) Filter() database.ResidentFilter {
	return database.ResidentFilter{
		Mandal:      NormalizePlace(q.Mandal),
		Secretariat: NormalizePlace(q.Secretariat),
		PHC:         NormalizePlace(q.PHC),
		Search:      strings.TrimSpace(q.Search),
		UpdatedFrom: q.UpdatedFrom,
	}
}

func (q ResidentQuery) paging() (page, size int) {
	page, size = q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// ResidentPage is one page of residents.
type ResidentPage struct {
	Residents  []database.Resident `json:"residents"`
	Total      int64               `json:"total"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"pageSize"`
	TotalPages int                 `json:"totalPages"`
}

// PresentResident prepares a resident for the actor, masking the UID for
// roles that may not see it in full.
func PresentResident(actor Actor, r database.Resident) database.Resident {
	if r.UID != nil && !actor.SeesFullUID() {
		masked := MaskUID(*r.UID)
		r.UID = &masked
	}
	return r
}

// ListResidents returns one page of the residents visible to actor.
func (s *Service) ListResidents(ctx context.Context, actor Actor, q ResidentQuery) (ResidentPage, error) {
	page, size := q.paging()
	f := actor.Scope(q.Filter())

	total, err := s.store.CountResidents(ctx, f)
	if err != nil {
		return ResidentPage{}, fmt.Errorf("list residents: %w", err)
	}
	rows, err := s.store.ListResidents(ctx, f, size, (page-1)*size)
	if err != nil {
		return ResidentPage{}, fmt.Errorf("list residents: %w", err)
	}

	for i := range rows {
		rows[i] = PresentResident(actor, rows[i])
	}
	return ResidentPage{
		Residents:  rows,
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: int((total + int64(size) - 1) / int64(size)),
	}, nil
}

// GetResident returns one resident. Residents outside the actor's scope
// are reported as not found.
func (s *Service) GetResident(ctx context.Context, actor Actor, id string) (database.Resident, error) {
	r, err := s.scopedResident(ctx, actor, id)
	if err != nil {
		return database.Resident{}, err
	}
	return PresentResident(actor, r), nil
}

func (s *Service) scopedResident(ctx context.Context, actor Actor, id string) (database.Resident, error) {
	id = NormalizeCode(id)
	if id == "" {
		return database.Resident{}, fmt.Errorf("resident: %w", ErrNotFound)
	}
	r, err := s.store.GetResident(ctx, id)
	if err != nil {
		return database.Resident{}, fmt.Errorf("resident %s: %w", id, err)
	}
	if !actor.Covers(r) {
		return database.Resident{}, fmt.Errorf("resident %s: %w", id, ErrNotFound)
	}
	return r, nil
}

// FieldUpdate is the outcome of UpdateResidentField.
type FieldUpdate struct {
	Resident database.Resident `json:"resident"`
	Field    string            `json:"field"`
	Changed  bool              `json:"changed"`
}

// UpdateResidentField sets one editable field of a resident and records the
// change in the update log. Setting the current value is a no-op.
func (s *Service) UpdateResidentField(ctx context.Context, actor Actor, id, field, raw string) (FieldUpdate, error) {
	if !actor.CanEdit() {
		return FieldUpdate{}, fmt.Errorf("update resident: %w", ErrForbidden)
	}
	if _, ok := database.EditableColumns[field]; !ok {
		return FieldUpdate{}, fmt.Errorf("%w: %s", ErrInvalidField, field)
	}
	value, err := NormalizeField(field, raw)
	if err != nil {
		return FieldUpdate{}, err
	}

	r, err := s.scopedResident(ctx, actor, id)
	if err != nil {
		return FieldUpdate{}, err
	}

	change, err := s.store.UpdateResidentField(ctx, r.ResidentID, field, value, actor.UserID)
	if err != nil {
		return FieldUpdate{}, fmt.Errorf("update resident %s: %w", r.ResidentID, err)
	}

	if change.Changed {
		logging.FromContext(ctx).Info("resident field updated",
			"resident_id", r.ResidentID,
			"field", field,
			"user", actor.Username,
		)
	}
	return FieldUpdate{
		Resident: PresentResident(actor, change.Resident),
		Field:    field,
		Changed:  change.Changed,
	}, nil
}

// ResidentHistory returns the update log of a resident, newest first.
// UID values are masked like the resident itself.
func (s *Service) ResidentHistory(ctx context.Context, actor Actor, id string) ([]database.UpdateLog, error) {
	r, err := s.scopedResident(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	logs, err := s.store.ListUpdateLogs(ctx, r.ResidentID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("resident %s history: %w", r.ResidentID, err)
	}
	if !actor.SeesFullUID() {
		for i := range logs {
			if logs[i].Field == FieldUID {
				logs[i].OldValue = maskPtr(logs[i].OldValue)
				logs[i].NewValue = maskPtr(logs[i].NewValue)
			}
		}
	}
	return logs, nil
}

func maskPtr(s *string) *string {
	if s == nil {
		return nil
	}
	m := MaskUID(*s)
	return &m
}

