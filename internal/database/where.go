package database

import (
	"fmt"
	"strings"
	"time"
)

// WhereBuilder accumulates AND-ed conditions with positional arguments.
type WhereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

// NewWhereBuilder returns an empty builder whose first placeholder is $1.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{argIndex: 1}
}

// Add appends "column = $n". Empty values are skipped.
func (wb *WhereBuilder) Add(column, value string) {
	if value == "" {
		return
	}
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s = $%d", column, wb.argIndex))
	wb.args = append(wb.args, value)
	wb.argIndex++
}

// AddIn appends "column = ANY($n)". An empty list matches nothing.
func (wb *WhereBuilder) AddIn(column string, values []string) {
	if len(values) == 0 {
		wb.conditions = append(wb.conditions, "FALSE")
		return
	}
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s = ANY($%d)", column, wb.argIndex))
	wb.args = append(wb.args, values)
	wb.argIndex++
}

// AddSearch appends a case-insensitive substring match over columns,
// sharing one argument.
func (wb *WhereBuilder) AddSearch(query string, columns ...string) {
	query = strings.TrimSpace(query)
	if query == "" || len(columns) == 0 {
		return
	}
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = fmt.Sprintf("%s ILIKE $%d", QuoteIdentifier(col), wb.argIndex)
	}
	wb.conditions = append(wb.conditions, "("+strings.Join(parts, " OR ")+")")
	wb.args = append(wb.args, "%"+escapeLike(query)+"%")
	wb.argIndex++
}

// AddSince appends "column >= $n" when t is set.
func (wb *WhereBuilder) AddSince(column string, t *time.Time) {
	if t == nil || t.IsZero() {
		return
	}
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s >= $%d", column, wb.argIndex))
	wb.args = append(wb.args, *t)
	wb.argIndex++
}

// AddGreater appends "column > $n". Empty values are skipped.
func (wb *WhereBuilder) AddGreater(column, value string) {
	if value == "" {
		return
	}
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s > $%d", column, wb.argIndex))
	wb.args = append(wb.args, value)
	wb.argIndex++
}

// NextArgIndex returns the next free placeholder number.
func (wb *WhereBuilder) NextArgIndex() int {
	return wb.argIndex
}

// Build returns the clause (with a leading " WHERE ") and its arguments.
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

// QuoteIdentifier quotes a column name for safe interpolation.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
