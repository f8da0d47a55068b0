package dataset

import (
	"time"
)

// FieldQualityReport holds the quality metrics of one field
type FieldQualityReport struct {
	Fullness     Metric `json:"fullness,omitzero"`
	TypeMatching Metric `json:"typeMatching,omitzero"`
	Entropy      Metric `json:"entropy,omitzero"`
	Indexed      bool   `json:"indexed"`

	// geometry fields only
	Validness Metric `json:"validness,omitzero"`
	Adequacy  Metric `json:"adequacy,omitzero"`
	Spread    Metric `json:"spread,omitzero"`

	// Region and Municipality fields only
	OneValue    *bool  `json:"oneValue,omitempty"`
	CanonicalID string `json:"canonicalId,omitempty"`
}

// Properties are the derived readiness flags of a dataset
type Properties struct {
	HasGeometry         bool `json:"has_geometry"`
	HasAddress          bool `json:"has_address"`
	HasAddressFeatures  bool `json:"has_address_features"`
	HasGeometryFeatures bool `json:"has_geometry_features"`
	Connected           bool `json:"connected"`
	Enriched            bool `json:"enriched"`
	Published           bool `json:"published"`
}

// QualityState is the complete analysis result for one dataset. A new state
// replaces the previous one as a whole.
type QualityState struct {
	Dataset    string                        `json:"dataset"`
	RunID      string                        `json:"runId"`
	AnalyzedAt time.Time                     `json:"analyzedAt"`
	Population int64                         `json:"population"`
	SampleSize int                           `json:"sampleSize"`
	Sampled    bool                          `json:"sampled"`
	Fields     map[string]FieldQualityReport `json:"fieldsQuality"`
	Properties Properties                    `json:"properties"`
}

// NewQualityState returns an empty state for the dataset
func NewQualityState(name string) *QualityState {
	return &QualityState{
		Dataset: name,
		Fields:  make(map[string]FieldQualityReport),
	}
}
