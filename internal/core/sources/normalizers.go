package sources

import "github.com/JonMunkholm/residents/internal/core"

// residentIDSpec is shared by every source.
var residentIDSpec = core.FieldSpec{
	Field:      core.FieldResidentID,
	Aliases:    []string{"resident id", "citizen id", "member id", "rid"},
	Required:   true,
	Normalizer: core.NormalizeCode,
}

// locationSpecs are shared by every source.
var locationSpecs = []core.FieldSpec{
	{Field: core.FieldDistrict, Aliases: []string{"district name"}, Normalizer: core.NormalizePlace},
	{Field: core.FieldMandal, Aliases: []string{"mandal name", "block"}, Normalizer: core.NormalizePlace},
	{Field: core.FieldSecretariat, Aliases: []string{"secretariat name", "village secretariat", "sachivalayam"}, Normalizer: core.NormalizePlace},
	{Field: core.FieldPHC, Aliases: []string{"phc name", "primary health centre", "primary health center"}, Normalizer: core.NormalizePlace},
}
