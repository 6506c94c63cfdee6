package core

// validation.go turns raw rows into validated resident parameters.
//
// Validation happens at two levels:
//  1. Header validation: every required column of a source must be present.
//  2. Record validation: identity numbers, phone numbers and dates must
//     normalize to an accepted form. A record with any rejected value is
//     not written.

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/residents/internal/database"
)

// ColumnMap maps canonical fields to column positions in a source file.
type ColumnMap map[string]int

// ResolveColumns matches def's fields against a header row. A field matches
// its canonical name or any alias, compared after NormalizeHeader.
func ResolveColumns(def SourceDefinition, header []string) (ColumnMap, error) {
	idx := MakeHeaderIndex(header)
	cols := make(ColumnMap, len(def.Fields))

	var missing []string
	for _, spec := range def.Fields {
		pos, ok := lookupHeader(idx, spec)
		if ok {
			cols[spec.Field] = pos
			continue
		}
		if spec.Required {
			missing = append(missing, spec.Field)
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%s file: missing required column(s): %s", def.Key, strings.Join(missing, ", "))
	}
	return cols, nil
}

func lookupHeader(idx HeaderIndex, spec FieldSpec) (int, bool) {
	if pos, ok := idx[NormalizeHeader(spec.Field)]; ok {
		return pos, true
	}
	for _, alias := range spec.Aliases {
		if pos, ok := idx[NormalizeHeader(alias)]; ok {
			return pos, true
		}
	}
	return 0, false
}

// Record extracts the mapped cells of row, cleaned and normalized.
// Short rows leave the missing fields empty.
func (m ColumnMap) Record(def SourceDefinition, row []string) Record {
	rec := make(Record, len(m))
	for _, spec := range def.Fields {
		pos, ok := m[spec.Field]
		if !ok || pos >= len(row) {
			continue
		}
		v := CleanCell(row[pos])
		if v != "" && spec.Normalizer != nil {
			v = spec.Normalizer(v)
		}
		if v != "" {
			rec[spec.Field] = v
		}
	}
	return rec
}

// BuildResident validates a merged record. All rejected values are
// reported together.
func BuildResident(rec Record) (database.ResidentParams, error) {
	p := database.ResidentParams{
		ResidentID:  NormalizeCode(rec.Get(FieldResidentID)),
		HouseholdID: NormalizeCode(rec.Get(FieldHouseholdID)),
		Name:        rec.Get(FieldName),
		Gender:      NormalizeGender(rec.Get(FieldGender)),
		District:    rec.Get(FieldDistrict),
		Mandal:      rec.Get(FieldMandal),
		Secretariat: rec.Get(FieldSecretariat),
		PHC:         rec.Get(FieldPHC),
	}

	var errs []error
	if p.ResidentID == "" {
		errs = append(errs, &ValidationError{Field: FieldResidentID, Msg: "required field is empty"})
	}

	if raw := rec.Get(FieldUID); raw != "" {
		v, err := NormalizeField(FieldUID, raw)
		if err != nil {
			errs = append(errs, err)
		}
		p.UID = v
	}
	if raw := rec.Get(FieldMobileNumber); raw != "" {
		v, err := NormalizeField(FieldMobileNumber, raw)
		if err != nil {
			errs = append(errs, err)
		}
		p.MobileNumber = v
	}
	if raw := rec.Get(FieldHealthID); raw != "" {
		p.HealthID, _ = NormalizeField(FieldHealthID, raw)
	}
	if raw := rec.Get(FieldDateOfBirth); raw != "" {
		dob, ok := ParseDate(raw)
		if !ok {
			errs = append(errs, &ValidationError{Field: FieldDateOfBirth, Value: raw, Msg: "invalid date"})
		} else {
			p.DateOfBirth = &dob
		}
	}

	if len(errs) > 0 {
		return database.ResidentParams{}, errors.Join(errs...)
	}
	return p, nil
}

// NormalizeField cleans a value for one editable field. An empty value
// clears the field and returns nil.
func NormalizeField(field, raw string) (*string, error) {
	var v string
	switch field {
	case FieldUID:
		v = NormalizeUID(raw)
		if v != "" && !ValidUID(v) {
			return nil, &ValidationError{Field: field, Value: raw, Msg: "must be 12 digits"}
		}
	case FieldMobileNumber:
		v = NormalizeMobile(raw)
		if v != "" && !ValidMobile(v) {
			return nil, &ValidationError{Field: field, Value: raw, Msg: "must be 10 digits"}
		}
	case FieldHealthID, FieldHouseholdID:
		v = NormalizeCode(raw)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidField, field)
	}

	if v == "" {
		return nil, nil
	}
	return &v, nil
}
