package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
)

// SourceData holds the parsed rows of one source file, keyed by resident id.
type SourceData struct {
	Def     SourceDefinition
	Records map[string]Record

	Rows       int      // non-blank data rows read
	Duplicates int      // rows whose resident id was seen earlier in the file
	Problems   []string // rows that could not be keyed
}

// ParseSource reads every data row of t. When a resident id repeats within
// the file, the later row replaces the earlier one.
func ParseSource(ctx context.Context, def SourceDefinition, t Table) (*SourceData, error) {
	cols, err := ResolveColumns(def, t.Header())
	if err != nil {
		return nil, err
	}

	data := &SourceData{Def: def, Records: make(map[string]Record)}
	for {
		if data.Rows%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		row, err := t.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s file: %w", def.Key, err)
		}
		data.Rows++

		rec := cols.Record(def, row)
		id := NormalizeCode(rec.Get(FieldResidentID))
		if id == "" {
			data.Problems = append(data.Problems,
				fmt.Sprintf("%s file line %d: %s: required field is empty", def.Key, t.Line(), FieldResidentID))
			continue
		}
		rec[FieldResidentID] = id

		if _, seen := data.Records[id]; seen {
			data.Duplicates++
		}
		data.Records[id] = rec
	}
	return data, nil
}

// Merge combines sources by resident id. For every field the first
// non-empty value, taking sources from highest to lowest priority, wins.
// The result is ordered by resident id.
func Merge(sources ...*SourceData) []Record {
	ordered := make([]*SourceData, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			ordered = append(ordered, s)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Def.Priority > ordered[j].Def.Priority
	})

	merged := make(map[string]Record)
	for _, src := range ordered {
		for id, rec := range src.Records {
			out, ok := merged[id]
			if !ok {
				out = make(Record, len(rec))
				merged[id] = out
			}
			for field, v := range rec {
				if v == "" {
					continue
				}
				if _, taken := out[field]; !taken {
					out[field] = v
				}
			}
		}
	}

	ids := make([]string, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Record, len(ids))
	for i, id := range ids {
		out[i] = merged[id]
	}
	return out
}
