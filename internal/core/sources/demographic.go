package sources

import "github.com/JonMunkholm/residents/internal/core"

func init() {
	registerDemographic()
}

// The demographic dataset is the household survey. Its values win over the
// health dataset wherever both have one.
func registerDemographic() {
	fields := []core.FieldSpec{
		residentIDSpec,
		{Field: core.FieldHouseholdID, Aliases: []string{"household id", "household", "hh id", "family id"}, Normalizer: core.NormalizeCode},
		{Field: core.FieldName, Aliases: []string{"resident name", "member name", "citizen name", "full name"}, Normalizer: core.NormalizePersonName},
		{Field: core.FieldGender, Aliases: []string{"sex"}},
		{Field: core.FieldDateOfBirth, Aliases: []string{"dob", "date of birth", "birth date"}},
		{Field: core.FieldUID, Aliases: []string{"aadhaar", "aadhaar number", "aadhar", "uid number"}},
		{Field: core.FieldMobileNumber, Aliases: []string{"mobile", "mobile no", "phone", "phone number"}},
	}

	core.Register(core.SourceDefinition{
		Key:      "demographic",
		Label:    "Demographic survey",
		Priority: 2,
		Fields:   append(fields, locationSpecs...),
	})
}
