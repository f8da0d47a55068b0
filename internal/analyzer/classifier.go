package analyzer

import (
	"github.com/rk-analyzer/internal/dataset"
)

// Classification thresholds
const (
	geometryValidness = 0.5
	featureEntropy    = 0.8
	minDoubleFeatures = 2
	connectedFullness = 0.6
	enrichedFullness  = 0.7
)

// Signals are the inputs of the property classification
type Signals struct {
	Fields  []dataset.FieldDefinition
	Reports map[string]dataset.FieldQualityReport

	// WKTFields lists the string fields with at least one WKT value
	WKTFields []string

	HasAddress         bool
	HasAddressFeatures bool
	Record             dataset.Record

	// JoinKey is the resolved join-key field, empty when none is declared
	JoinKey string
}

// JoinKey picks the first field with the JoinKey role, else the configured
// field name when the dataset declares it
func JoinKey(fields []dataset.FieldDefinition, configured string) string {
	if f, ok := dataset.FirstWithRole(fields, dataset.RoleJoinKey); ok {
		return f.Name
	}
	if configured != "" && dataset.Declared(fields, configured) {
		return configured
	}
	return ""
}

// Classify derives the readiness flags
func Classify(s Signals) dataset.Properties {
	p := dataset.Properties{
		HasAddress:         s.HasAddress,
		HasAddressFeatures: s.HasAddressFeatures,
		Published:          s.Record.Published(),
	}

	doubles := 0
	for _, f := range s.Fields {
		r := s.Reports[f.Name]
		switch f.Type {
		case dataset.TypeGeometry:
			if r.Validness.Above(geometryValidness) {
				p.HasGeometry = true
			}
		case dataset.TypeDouble:
			if r.Entropy.Above(featureEntropy) {
				doubles++
			}
		}
	}
	p.HasGeometryFeatures = doubles >= minDoubleFeatures || len(s.WKTFields) > 0

	if s.JoinKey != "" {
		fullness := s.Reports[s.JoinKey].Fullness
		v, ok := fullness.Get()
		p.Connected = ok && v >= connectedFullness && (p.HasAddress || p.HasGeometry)
		p.Enriched = fullness.Above(enrichedFullness)
	}
	return p
}
