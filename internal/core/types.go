package core

import (
	"strings"
)

// Canonical resident fields shared by every import source.
const (
	FieldResidentID   = "resident_id"
	FieldHouseholdID  = "household_id"
	FieldName         = "name"
	FieldGender       = "gender"
	FieldDateOfBirth  = "date_of_birth"
	FieldUID          = "uid"
	FieldMobileNumber = "mobile_number"
	FieldHealthID     = "health_id"
	FieldDistrict     = "district"
	FieldMandal       = "mandal"
	FieldSecretariat  = "secretariat"
	FieldPHC          = "phc"
)

// ResidentFields lists the canonical fields in export column order.
var ResidentFields = []string{
	FieldResidentID, FieldHouseholdID, FieldName, FieldGender, FieldDateOfBirth,
	FieldUID, FieldMobileNumber, FieldHealthID,
	FieldDistrict, FieldMandal, FieldSecretariat, FieldPHC,
}

// FieldSpec maps one canonical field to the headers a source file may use.
type FieldSpec struct {
	Field      string              // canonical field name
	Aliases    []string            // additional accepted headers
	Required   bool                // header must be present
	Normalizer func(string) string // optional cleanup applied to non-empty cells
}

// SourceDefinition describes one import source.
type SourceDefinition struct {
	Key   string // "health", "demographic"
	Label string

	// Priority orders sources during a merge. On a field present in more
	// than one source, the highest priority non-empty value wins.
	Priority int

	Fields []FieldSpec
}

// Spec returns the spec for a canonical field.
func (d SourceDefinition) Spec(field string) (FieldSpec, bool) {
	for _, f := range d.Fields {
		if f.Field == field {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// HeaderIndex maps normalized header names to column positions.
type HeaderIndex map[string]int

// Record is one parsed row keyed by canonical field.
type Record map[string]string

// Get returns a trimmed field value.
func (r Record) Get(field string) string {
	return strings.TrimSpace(r[field])
}

// Import modes.
const (
	ModeAdd    = "add"
	ModeUpdate = "update"
	ModeUpsert = "upsert"
)

// ValidMode reports whether m is a known import mode.
func ValidMode(m string) bool {
	return m == ModeAdd || m == ModeUpdate || m == ModeUpsert
}
