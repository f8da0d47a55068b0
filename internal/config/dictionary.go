package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rk-analyzer/internal/dataset"
)

//go:embed dic.yaml
var defaultDictionary []byte

// Territory is the lat/lng box geometry coordinates are expected in. The
// longitude range may cross the antimeridian (MinLng > MaxLng).
type Territory struct {
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLng float64 `yaml:"min_lng"`
	MaxLng float64 `yaml:"max_lng"`
}

// Dictionary is the static reference data of a run: address lexicon,
// stop-words per hierarchy level and the canonical registry
type Dictionary struct {
	Lexicon           []string                `yaml:"lexicon"`
	RegionTypes       []string                `yaml:"region_types"`
	MunicipalityTypes []string                `yaml:"municipality_types"`
	StreetTypes       []string                `yaml:"street_types"`
	HouseTypes        []string                `yaml:"house_types"`
	RegistryExclude   []string                `yaml:"registry_exclude"`
	Territory         Territory               `yaml:"territory"`
	Regions           []dataset.RegistryEntry `yaml:"regions"`
}

// ParseDictionary decodes a YAML dictionary
func ParseDictionary(data []byte) (*Dictionary, error) {
	var dict Dictionary
	if err := yaml.Unmarshal(data, &dict); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary: %w", err)
	}
	if err := dict.Validate(); err != nil {
		return nil, err
	}
	return &dict, nil
}

// LoadDictionary reads the dictionary file, or the embedded default when
// path is empty
func LoadDictionary(path string) (*Dictionary, error) {
	if path == "" {
		return DefaultDictionary()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary %s: %w", path, err)
	}
	return ParseDictionary(data)
}

// DefaultDictionary returns the embedded dictionary
func DefaultDictionary() (*Dictionary, error) {
	return ParseDictionary(defaultDictionary)
}

// Validate checks the dictionary is usable
func (d *Dictionary) Validate() error {
	if len(d.Lexicon) == 0 {
		return fmt.Errorf("%w: dictionary lexicon is empty", dataset.ErrConfiguration)
	}
	t := d.Territory
	if t.MinLat < -90 || t.MaxLat > 90 || t.MinLat > t.MaxLat {
		return fmt.Errorf("%w: invalid territory latitude range [%v, %v]", dataset.ErrConfiguration, t.MinLat, t.MaxLat)
	}
	if t.MinLng < -180 || t.MinLng > 180 || t.MaxLng < -180 || t.MaxLng > 180 {
		return fmt.Errorf("%w: invalid territory longitude range [%v, %v]", dataset.ErrConfiguration, t.MinLng, t.MaxLng)
	}
	for _, r := range d.Regions {
		if r.Name == "" {
			return fmt.Errorf("%w: registry region without name", dataset.ErrConfiguration)
		}
	}
	return nil
}
