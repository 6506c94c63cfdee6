package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const residentColumns = `resident_id, household_id, name, gender, date_of_birth, uid, mobile_number,
	health_id, district, mandal, secretariat, phc, created_at, updated_at`

// EditableColumns maps the fields a user may edit to their column names.
var EditableColumns = map[string]string{
	"mobile_number": "mobile_number",
	"uid":           "uid",
	"health_id":     "health_id",
	"household_id":  "household_id",
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResident(row scanner) (Resident, error) {
	var r Resident
	err := row.Scan(
		&r.ResidentID, &r.HouseholdID, &r.Name, &r.Gender, &r.DateOfBirth,
		&r.UID, &r.MobileNumber, &r.HealthID,
		&r.District, &r.Mandal, &r.Secretariat, &r.PHC,
		&r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func (q *Queries) queryResidents(ctx context.Context, query string, args ...any) ([]Resident, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Resident, 0)
	for rows.Next() {
		r, err := scanResident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountResidents returns the number of residents matching f.
func (q *Queries) CountResidents(ctx context.Context, f ResidentFilter) (int64, error) {
	wb := NewWhereBuilder()
	f.where(wb)
	where, args := wb.Build()

	var n int64
	if err := q.db.QueryRow(ctx, "SELECT COUNT(*) FROM residents"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count residents: %w", err)
	}
	return n, nil
}

// ListResidents returns one page of residents ordered by resident id.
func (q *Queries) ListResidents(ctx context.Context, f ResidentFilter, limit, offset int) ([]Resident, error) {
	wb := NewWhereBuilder()
	f.where(wb)
	where, args := wb.Build()
	n := wb.NextArgIndex()

	query := fmt.Sprintf("SELECT %s FROM residents%s ORDER BY resident_id LIMIT $%d OFFSET $%d",
		residentColumns, where, n, n+1)
	args = append(args, limit, offset)

	out, err := q.queryResidents(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list residents: %w", err)
	}
	return out, nil
}

// ResidentsAfter returns up to limit residents with resident_id > afterID.
// It is the keyset page used by exports.
func (q *Queries) ResidentsAfter(ctx context.Context, f ResidentFilter, afterID string, limit int) ([]Resident, error) {
	wb := NewWhereBuilder()
	f.where(wb)
	wb.AddGreater("resident_id", afterID)
	where, args := wb.Build()

	query := fmt.Sprintf("SELECT %s FROM residents%s ORDER BY resident_id LIMIT $%d",
		residentColumns, where, wb.NextArgIndex())
	args = append(args, limit)

	out, err := q.queryResidents(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("residents after %q: %w", afterID, err)
	}
	return out, nil
}

// GetResident returns one resident or ErrNotFound.
func (q *Queries) GetResident(ctx context.Context, residentID string) (Resident, error) {
	row := q.db.QueryRow(ctx, "SELECT "+residentColumns+" FROM residents WHERE resident_id = $1", residentID)
	r, err := scanResident(row)
	if err != nil {
		return Resident{}, notFound(err)
	}
	return r, nil
}

// ResidentExists reports whether a resident id is present.
func (q *Queries) ResidentExists(ctx context.Context, residentID string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM residents WHERE resident_id = $1)", residentID).Scan(&exists)
	return exists, err
}

// ResidentParams carries the importable columns of a resident.
type ResidentParams struct {
	ResidentID   string
	HouseholdID  string
	Name         string
	Gender       string
	DateOfBirth  *time.Time
	UID          *string
	MobileNumber *string
	HealthID     *string
	District     string
	Mandal       string
	Secretariat  string
	PHC          string
}

func (p ResidentParams) args() []any {
	return []any{
		p.ResidentID, p.HouseholdID, p.Name, p.Gender, p.DateOfBirth,
		p.UID, p.MobileNumber, p.HealthID,
		p.District, p.Mandal, p.Secretariat, p.PHC,
	}
}

const insertResident = `INSERT INTO residents (resident_id, household_id, name, gender, date_of_birth,
	uid, mobile_number, health_id, district, mandal, secretariat, phc)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// InsertResident inserts p unless the resident id already exists.
// It reports whether a row was written.
func (q *Queries) InsertResident(ctx context.Context, p ResidentParams) (bool, error) {
	tag, err := q.db.Exec(ctx, insertResident+" ON CONFLICT (resident_id) DO NOTHING", p.args()...)
	if err != nil {
		return false, fmt.Errorf("insert resident %s: %w", p.ResidentID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// mergeColumns maps each importable column to its merged value. Non-empty
// incoming values replace stored ones; empty values keep them.
var mergeColumns = []struct{ column, value string }{
	{"household_id", "COALESCE(NULLIF($2, ''), residents.household_id)"},
	{"name", "COALESCE(NULLIF($3, ''), residents.name)"},
	{"gender", "COALESCE(NULLIF($4, ''), residents.gender)"},
	{"date_of_birth", "COALESCE($5, residents.date_of_birth)"},
	{"uid", "COALESCE($6, residents.uid)"},
	{"mobile_number", "COALESCE($7, residents.mobile_number)"},
	{"health_id", "COALESCE($8, residents.health_id)"},
	{"district", "COALESCE(NULLIF($9, ''), residents.district)"},
	{"mandal", "COALESCE(NULLIF($10, ''), residents.mandal)"},
	{"secretariat", "COALESCE(NULLIF($11, ''), residents.secretariat)"},
	{"phc", "COALESCE(NULLIF($12, ''), residents.phc)"},
}

// mergeAssignments is the SET list of a merge. mergeChanged holds only when
// the merge would alter a stored value, so identical rows keep updated_at.
var mergeAssignments, mergeChanged = buildMerge()

func buildMerge() (set, changed string) {
	assigns := make([]string, 0, len(mergeColumns)+1)
	stored := make([]string, 0, len(mergeColumns))
	merged := make([]string, 0, len(mergeColumns))
	for _, c := range mergeColumns {
		assigns = append(assigns, c.column+" = "+c.value)
		stored = append(stored, "residents."+c.column)
		merged = append(merged, c.value)
	}
	assigns = append(assigns, "updated_at = now()")
	set = " " + strings.Join(assigns, ", ")
	changed = "(" + strings.Join(stored, ", ") + ") IS DISTINCT FROM (" + strings.Join(merged, ", ") + ")"
	return set, changed
}

// UpdateResident merges p into an existing row. It reports whether a stored
// value changed; a missing resident and an identical row both report false.
func (q *Queries) UpdateResident(ctx context.Context, p ResidentParams) (bool, error) {
	tag, err := q.db.Exec(ctx,
		"UPDATE residents SET"+mergeAssignments+" WHERE resident_id = $1 AND "+mergeChanged,
		p.args()...,
	)
	if err != nil {
		return false, fmt.Errorf("update resident %s: %w", p.ResidentID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// WriteOutcome says what an upsert did to the stored row.
type WriteOutcome int

const (
	Unchanged WriteOutcome = iota
	Inserted
	Updated
)

func (o WriteOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	}
	return "unchanged"
}

// UpsertResident inserts or merges p. A merge that would change nothing
// leaves the row alone and reports Unchanged.
func (q *Queries) UpsertResident(ctx context.Context, p ResidentParams) (WriteOutcome, error) {
	var inserted bool
	err := q.db.QueryRow(ctx,
		insertResident+" ON CONFLICT (resident_id) DO UPDATE SET"+mergeAssignments+
			" WHERE "+mergeChanged+" RETURNING (xmax = 0)",
		p.args()...,
	).Scan(&inserted)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return Unchanged, nil
	case err != nil:
		return Unchanged, fmt.Errorf("upsert resident %s: %w", p.ResidentID, err)
	case inserted:
		return Inserted, nil
	}
	return Updated, nil
}

// FieldChange is the outcome of UpdateResidentField.
type FieldChange struct {
	Resident Resident
	OldValue *string
	Changed  bool
}

// UpdateResidentField sets one editable column and appends an UpdateLog row,
// atomically. Setting a field to its current value writes nothing.
func (s *Store) UpdateResidentField(ctx context.Context, residentID, field string, value *string, userID int64) (FieldChange, error) {
	column, ok := EditableColumns[field]
	if !ok {
		return FieldChange{}, fmt.Errorf("field %q is not editable", field)
	}

	var change FieldChange
	err := s.WithTx(ctx, func(q *Queries) error {
		var old *string
		err := q.db.QueryRow(ctx,
			fmt.Sprintf("SELECT NULLIF(%s, '') FROM residents WHERE resident_id = $1 FOR UPDATE", QuoteIdentifier(column)),
			residentID,
		).Scan(&old)
		if err != nil {
			return notFound(err)
		}
		change.OldValue = old

		if equalPtr(old, value) {
			r, err := q.GetResident(ctx, residentID)
			change.Resident = r
			return err
		}

		// household_id is NOT NULL
		var arg any = value
		if column == "household_id" && value == nil {
			arg = ""
		}
		if _, err := q.db.Exec(ctx,
			fmt.Sprintf("UPDATE residents SET %s = $2, updated_at = now() WHERE resident_id = $1", QuoteIdentifier(column)),
			residentID, arg,
		); err != nil {
			return fmt.Errorf("update %s: %w", field, err)
		}

		if err := q.InsertUpdateLog(ctx, UpdateLog{
			ResidentID: residentID,
			Field:      field,
			OldValue:   old,
			NewValue:   value,
			UserID:     &userID,
		}); err != nil {
			return err
		}

		r, err := q.GetResident(ctx, residentID)
		if err != nil {
			return err
		}
		change.Resident = r
		change.Changed = true
		return nil
	})
	if err != nil {
		return FieldChange{}, err
	}
	return change, nil
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
