package sources

import "github.com/JonMunkholm/residents/internal/core"

func init() {
	registerHealth()
}

// The health dataset comes from the PHC registers. It is the only source of
// health ids and fills gaps left by the demographic survey.
func registerHealth() {
	fields := []core.FieldSpec{
		residentIDSpec,
		{Field: core.FieldName, Aliases: []string{"resident name", "patient name", "full name"}, Normalizer: core.NormalizePersonName},
		{Field: core.FieldGender, Aliases: []string{"sex"}},
		{Field: core.FieldDateOfBirth, Aliases: []string{"dob", "date of birth", "birth date"}},
		{Field: core.FieldHealthID, Aliases: []string{"health id", "abha", "abha id", "abha number"}, Normalizer: core.NormalizeCode},
		{Field: core.FieldMobileNumber, Aliases: []string{"mobile", "mobile no", "phone", "phone number", "contact number"}},
		{Field: core.FieldUID, Aliases: []string{"aadhaar", "aadhaar number", "aadhar"}},
	}

	core.Register(core.SourceDefinition{
		Key:      "health",
		Label:    "Health dataset",
		Priority: 1,
		Fields:   append(fields, locationSpecs...),
	})
}
