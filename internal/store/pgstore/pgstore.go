// Package pgstore keeps datasets as JSONB documents in PostgreSQL: one table
// per dataset in the datasets schema, and the structure, state and registry
// tables in the metadata schema.
package pgstore

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/rk-analyzer/internal/config"
	"github.com/rk-analyzer/internal/dataset"
	"github.com/rk-analyzer/internal/db"
	"github.com/rk-analyzer/internal/store"
)

// Store implements store.Store on a lib/pq connection pool
type Store struct {
	db     *sql.DB
	cfg    config.DatabaseConfig
	logger *zap.Logger
}

// New wraps an open pool
func New(conn *sql.DB, cfg config.DatabaseConfig, logger *zap.Logger) *Store {
	if cfg.Collation == "" {
		cfg.Collation = "analyzer_primary"
	}
	return &Store{db: conn, cfg: cfg, logger: logger.Named("pgstore")}
}

func (s *Store) table(name string) string {
	return pq.QuoteIdentifier(s.cfg.DatasetsSchema) + "." + pq.QuoteIdentifier(name)
}

func (s *Store) meta(table string) string {
	return pq.QuoteIdentifier(s.cfg.MetadataSchema) + "." + pq.QuoteIdentifier(table)
}

// classify maps driver errors onto the dataset sentinels
func classify(err error, op string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "42P01" {
		return fmt.Errorf("%w: %s: %s", dataset.ErrConfiguration, op, pqErr.Message)
	}
	return db.Classify(err, op)
}

// decodeJSON decodes a JSONB value keeping numbers as json.Number
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// scope renders the population filter. Sampled populations restrict to the
// drawn identifiers; args receives the array parameter.
func scope(pop store.Population, args *[]any) string {
	if !pop.Sampled {
		return "TRUE"
	}
	*args = append(*args, pq.Array(pop.IDs))
	return fmt.Sprintf("id = ANY($%d::bigint[])", len(*args))
}

// pathExpr renders doc #> path with the segments bound as a text[] parameter
func pathExpr(field string, args *[]any) string {
	*args = append(*args, pq.Array(dataset.SplitPath(field)))
	return fmt.Sprintf("(doc #> $%d::text[])", len(*args))
}

func notEmpty(expr string) string {
	return fmt.Sprintf("(%[1]s IS NOT NULL AND jsonb_typeof(%[1]s) <> 'null' AND %[1]s <> '\"null\"'::jsonb)", expr)
}

var _ store.Store = (*Store)(nil)
