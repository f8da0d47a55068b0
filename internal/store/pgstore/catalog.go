package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rk-analyzer/internal/dataset"
	"github.com/rk-analyzer/internal/store"
)

// declaredField is the stored shape of one dataset_structure.fields entry
type declaredField struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Feature string `json:"feature,omitempty"`
}

func (s *Store) Fields(ctx context.Context, name string) ([]dataset.FieldDefinition, error) {
	var raw []byte
	query := fmt.Sprintf("SELECT fields FROM %s WHERE dataset = $1", s.meta("dataset_structure"))
	err := s.db.QueryRowContext(ctx, query, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no structure declared for dataset %q", dataset.ErrConfiguration, name)
	}
	if err != nil {
		return nil, classify(err, "read structure")
	}

	var declared []declaredField
	if err := json.Unmarshal(raw, &declared); err != nil {
		return nil, fmt.Errorf("%w: invalid structure of %q: %v", dataset.ErrConfiguration, name, err)
	}
	if len(declared) == 0 {
		return nil, fmt.Errorf("%w: empty structure for dataset %q", dataset.ErrConfiguration, name)
	}

	fields := make([]dataset.FieldDefinition, len(declared))
	for i, d := range declared {
		fields[i] = dataset.FieldDefinition{
			Name: d.Name,
			Type: dataset.ParseFieldType(d.Type),
			Role: dataset.ParseRole(d.Feature),
		}
	}
	return fields, nil
}

// SaveFields declares or replaces the structure of a dataset
func (s *Store) SaveFields(ctx context.Context, name string, fields []dataset.FieldDefinition) error {
	declared := make([]declaredField, len(fields))
	for i, f := range fields {
		declared[i] = declaredField{Name: f.Name, Type: f.Type.String(), Feature: f.Role.String()}
	}
	raw, err := json.Marshal(declared)
	if err != nil {
		return fmt.Errorf("failed to encode structure: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (dataset, fields) VALUES ($1, $2)
		ON CONFLICT (dataset) DO UPDATE SET fields = EXCLUDED.fields`, s.meta("dataset_structure"))
	if _, err := s.db.ExecContext(ctx, query, name, raw); err != nil {
		return classify(err, "save structure")
	}
	return nil
}

func (s *Store) Record(ctx context.Context, name string) (dataset.Record, error) {
	var layer sql.NullString
	query := fmt.Sprintf("SELECT geoportal_layer_id FROM %s WHERE dataset = $1", s.meta("user_datasets"))
	err := s.db.QueryRowContext(ctx, query, name).Scan(&layer)
	if errors.Is(err, sql.ErrNoRows) {
		return dataset.Record{Dataset: name}, nil
	}
	if err != nil {
		return dataset.Record{}, classify(err, "read dataset record")
	}
	return dataset.Record{Dataset: name, PublicationID: layer.String}, nil
}

// SaveRecord registers the dataset with its optional publication identifier
func (s *Store) SaveRecord(ctx context.Context, rec dataset.Record) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (dataset, geoportal_layer_id) VALUES ($1, NULLIF($2, ''))
		ON CONFLICT (dataset) DO UPDATE SET geoportal_layer_id = EXCLUDED.geoportal_layer_id`, s.meta("user_datasets"))
	if _, err := s.db.ExecContext(ctx, query, rec.Dataset, rec.PublicationID); err != nil {
		return classify(err, "save dataset record")
	}
	return nil
}

func (s *Store) Datasets(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT dataset FROM %s ORDER BY dataset", s.meta("dataset_structure"))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classify(err, "list datasets")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, classify(err, "list datasets scan")
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "list datasets rows")
	}
	return names, nil
}

func (s *Store) WriteState(ctx context.Context, name string, state *dataset.QualityState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (dataset, state, analyzed_at) VALUES ($1, $2, $3)
		ON CONFLICT (dataset) DO UPDATE SET state = EXCLUDED.state, analyzed_at = EXCLUDED.analyzed_at`,
		s.meta("user_datasets"))
	if _, err := s.db.ExecContext(ctx, query, name, raw, state.AnalyzedAt); err != nil {
		return classify(err, "write state")
	}
	return nil
}

func (s *Store) State(ctx context.Context, name string) (json.RawMessage, error) {
	var raw []byte
	query := fmt.Sprintf("SELECT state FROM %s WHERE dataset = $1 AND state IS NOT NULL", s.meta("user_datasets"))
	err := s.db.QueryRowContext(ctx, query, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no state stored for dataset %q", store.ErrNotFound, name)
	}
	if err != nil {
		return nil, classify(err, "read state")
	}
	return raw, nil
}

// LoadRegistry reads regions and their municipalities from the registry
// tables, in name order
func (s *Store) LoadRegistry(ctx context.Context) ([]dataset.RegistryEntry, error) {
	query := fmt.Sprintf(`
		SELECT r.id, r.name, m.id, m.name
		FROM %s r
		LEFT JOIN %s m ON m.region_id = r.id
		ORDER BY r.name, m.name`, s.meta("region_state"), s.meta("municipalities"))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classify(err, "load registry")
	}
	defer rows.Close()

	var regions []dataset.RegistryEntry
	index := make(map[string]int)
	for rows.Next() {
		var regionID, regionName string
		var munID, munName sql.NullString
		if err := rows.Scan(&regionID, &regionName, &munID, &munName); err != nil {
			return nil, classify(err, "load registry scan")
		}
		i, ok := index[regionID]
		if !ok {
			i = len(regions)
			index[regionID] = i
			regions = append(regions, dataset.RegistryEntry{Name: regionName, ID: regionID})
		}
		if munID.Valid {
			regions[i].Children = append(regions[i].Children, dataset.RegistryEntry{Name: munName.String, ID: munID.String})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "load registry rows")
	}
	return regions, nil
}
