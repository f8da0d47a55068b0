package address

import (
	"context"

	"github.com/rk-analyzer/internal/dataset"
	"github.com/rk-analyzer/internal/store"
)

// minFullness is the share of records that must carry the municipality and
// the street with house number
const minFullness = 0.6

// Completeness reports how well the declared address hierarchy is filled
type Completeness struct {
	Complete           bool
	MunicipalityFull   dataset.Metric
	StreetAndHouseFull dataset.Metric
	MissingRoles       []dataset.Role
}

// CheckCompleteness requires all four address roles to be declared, then
// measures the municipality and the street+house fullness
func CheckCompleteness(ctx context.Context, q store.Query, pop store.Population, fields []dataset.FieldDefinition) (Completeness, error) {
	var result Completeness
	mapped := make(map[dataset.Role]string, len(dataset.AddressRoles))
	for _, role := range dataset.AddressRoles {
		f, ok := dataset.FirstWithRole(fields, role)
		if !ok || f.IsBlank() {
			result.MissingRoles = append(result.MissingRoles, role)
			continue
		}
		mapped[role] = f.Name
	}
	if len(result.MissingRoles) > 0 {
		return result, nil
	}

	municipality, err := q.CountNotEmpty(ctx, pop, mapped[dataset.RoleMunicipality])
	if err != nil {
		return result, err
	}
	streetHouse, err := q.CountNotEmpty(ctx, pop, mapped[dataset.RoleStreet], mapped[dataset.RoleHouseNumber])
	if err != nil {
		return result, err
	}

	result.MunicipalityFull = dataset.Ratio(municipality, pop.Size)
	result.StreetAndHouseFull = dataset.Ratio(streetHouse, pop.Size)
	result.Complete = result.MunicipalityFull.Above(minFullness) && result.StreetAndHouseFull.Above(minFullness)
	return result, nil
}
