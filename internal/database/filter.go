package database

import "time"

// ResidentFilter narrows resident queries. Zero values mean "no constraint".
type ResidentFilter struct {
	Mandal      string
	Secretariat string
	PHC         string
	Search      string // name, resident id or household id
	UpdatedFrom *time.Time

	// Restrict limits rows to Secretariats. With Restrict set and an empty
	// list, nothing matches.
	Restrict     bool
	Secretariats []string
}

// where renders the filter into wb.
func (f ResidentFilter) where(wb *WhereBuilder) {
	if f.Restrict {
		wb.AddIn("secretariat", f.Secretariats)
	}
	wb.Add("mandal", f.Mandal)
	wb.Add("secretariat", f.Secretariat)
	wb.Add("phc", f.PHC)
	wb.AddSearch(f.Search, "name", "resident_id", "household_id")
	wb.AddSince("updated_at", f.UpdatedFrom)
}

// Describe returns the active filter values, keyed by name, for export metadata.
func (f ResidentFilter) Describe() map[string]string {
	out := make(map[string]string)
	if f.Mandal != "" {
		out["mandal"] = f.Mandal
	}
	if f.Secretariat != "" {
		out["secretariat"] = f.Secretariat
	}
	if f.PHC != "" {
		out["phc"] = f.PHC
	}
	if f.Search != "" {
		out["search"] = f.Search
	}
	if f.UpdatedFrom != nil {
		out["updated_from"] = f.UpdatedFrom.Format("2006-01-02")
	}
	return out
}
