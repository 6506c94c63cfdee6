package database

import (
	"context"
	"fmt"
	"time"
)

// Summary aggregates residents matching a filter.
type Summary struct {
	Total        int64 `json:"total"`
	Households   int64 `json:"households"`
	WithUID      int64 `json:"withUid"`
	WithMobile   int64 `json:"withMobile"`
	WithHealthID int64 `json:"withHealthId"`
	Updated      int64 `json:"updated"`
	Pending      int64 `json:"pending"`
}

// BreakdownRow is Summary grouped by one location column.
type BreakdownRow struct {
	Key          string `json:"key"`
	Total        int64  `json:"total"`
	WithUID      int64  `json:"withUid"`
	WithMobile   int64  `json:"withMobile"`
	WithHealthID int64  `json:"withHealthId"`
	Updated      int64  `json:"updated"`
}

// BreakdownColumns are the columns Breakdown may group by.
var BreakdownColumns = map[string]string{
	"district":    "district",
	"mandal":      "mandal",
	"secretariat": "secretariat",
	"phc":         "phc",
}

// A resident counts as updated when it was modified after creation and not
// before the cutoff. Residents last touched before the cutoff are locked.
const updatedPredicate = "updated_at > created_at AND updated_at >= $%d"

func aggregateColumns(cutoffArg int) string {
	updated := fmt.Sprintf(updatedPredicate, cutoffArg)
	return `COUNT(*),
		COUNT(*) FILTER (WHERE uid IS NOT NULL AND uid <> ''),
		COUNT(*) FILTER (WHERE mobile_number IS NOT NULL AND mobile_number <> ''),
		COUNT(*) FILTER (WHERE health_id IS NOT NULL AND health_id <> ''),
		COUNT(*) FILTER (WHERE ` + updated + `)`
}

func cutoffArg(cutoff *time.Time) time.Time {
	if cutoff == nil {
		return time.Unix(0, 0).UTC()
	}
	return *cutoff
}

// Summarize returns totals for residents matching f.
func (q *Queries) Summarize(ctx context.Context, f ResidentFilter, cutoff *time.Time) (Summary, error) {
	wb := NewWhereBuilder()
	f.where(wb)
	where, args := wb.Build()
	n := wb.NextArgIndex()

	query := "SELECT " + aggregateColumns(n) +
		", COUNT(DISTINCT NULLIF(household_id, '')) FROM residents" + where
	args = append(args, cutoffArg(cutoff))

	var s Summary
	if err := q.db.QueryRow(ctx, query, args...).Scan(
		&s.Total, &s.WithUID, &s.WithMobile, &s.WithHealthID, &s.Updated, &s.Households,
	); err != nil {
		return Summary{}, fmt.Errorf("summarize residents: %w", err)
	}
	s.Pending = s.Total - s.Updated
	return s, nil
}

// Breakdown groups residents matching f by one of BreakdownColumns.
func (q *Queries) Breakdown(ctx context.Context, by string, f ResidentFilter, cutoff *time.Time) ([]BreakdownRow, error) {
	column, ok := BreakdownColumns[by]
	if !ok {
		return nil, fmt.Errorf("cannot group by %q", by)
	}

	wb := NewWhereBuilder()
	f.where(wb)
	where, args := wb.Build()
	n := wb.NextArgIndex()

	col := QuoteIdentifier(column)
	query := "SELECT " + col + ", " + aggregateColumns(n) +
		" FROM residents" + where + " GROUP BY " + col + " ORDER BY " + col
	args = append(args, cutoffArg(cutoff))

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("breakdown by %s: %w", by, err)
	}
	defer rows.Close()

	out := make([]BreakdownRow, 0)
	for rows.Next() {
		var r BreakdownRow
		if err := rows.Scan(&r.Key, &r.Total, &r.WithUID, &r.WithMobile, &r.WithHealthID, &r.Updated); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
