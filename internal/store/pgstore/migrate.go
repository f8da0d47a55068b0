package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/rk-analyzer/internal/dataset"
	"github.com/rk-analyzer/internal/debug"
)

// Migrate creates the schemas, metadata tables and the primary-strength
// collation used for grouping. It is idempotent.
func (s *Store) Migrate(ctx context.Context, locale string) error {
	defer debug.Timing(s.logger, "migrate")()

	if locale == "" {
		locale = "ru"
	}
	collation := pq.QuoteIdentifier(s.cfg.Collation)
	datasets := pq.QuoteIdentifier(s.cfg.DatasetsSchema)
	metadata := pq.QuoteIdentifier(s.cfg.MetadataSchema)

	statements := []string{
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", datasets),
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", metadata),
		// level1: case and accents ignored
		fmt.Sprintf("CREATE COLLATION IF NOT EXISTS %s (provider = icu, locale = %s, deterministic = false)",
			collation, pq.QuoteLiteral(locale+"-u-ks-level1")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			dataset TEXT PRIMARY KEY,
			fields  JSONB NOT NULL
		)`, s.meta("dataset_structure")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			dataset            TEXT PRIMARY KEY,
			geoportal_layer_id TEXT,
			state              JSONB,
			analyzed_at        TIMESTAMPTZ
		)`, s.meta("user_datasets")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id   TEXT PRIMARY KEY,
			name TEXT NOT NULL
		)`, s.meta("region_state")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id        TEXT PRIMARY KEY,
			region_id TEXT NOT NULL REFERENCES %s (id),
			name      TEXT NOT NULL
		)`, s.meta("municipalities"), s.meta("region_state")),
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return classify(err, "migrate")
		}
	}
	s.logger.Info("Schema ready",
		zap.String("datasets_schema", s.cfg.DatasetsSchema),
		zap.String("metadata_schema", s.cfg.MetadataSchema),
		zap.String("collation", s.cfg.Collation))
	return nil
}

// SeedRegistry replaces the registry tables with the given regions
func (s *Store) SeedRegistry(ctx context.Context, regions []dataset.RegistryEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err, "begin registry seed")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("TRUNCATE %s, %s", s.meta("municipalities"), s.meta("region_state"))); err != nil {
		return classify(err, "truncate registry")
	}

	insertRegion := fmt.Sprintf("INSERT INTO %s (id, name) VALUES ($1, $2)", s.meta("region_state"))
	insertMun := fmt.Sprintf("INSERT INTO %s (id, region_id, name) VALUES ($1, $2, $3)", s.meta("municipalities"))
	for _, r := range regions {
		if _, err := tx.ExecContext(ctx, insertRegion, r.Identifier(), r.Name); err != nil {
			return classify(err, "insert region")
		}
		for _, m := range r.Children {
			if _, err := tx.ExecContext(ctx, insertMun, m.Identifier(), r.Identifier(), m.Name); err != nil {
				return classify(err, "insert municipality")
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return classify(err, "commit registry seed")
	}
	return nil
}

// ImportDocuments recreates the dataset table and bulk loads the documents
// with COPY
func (s *Store) ImportDocuments(ctx context.Context, name string, docs []dataset.Document) error {
	defer debug.Timing(s.logger, "import", zap.String("dataset", name), zap.Int("documents", len(docs)))()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err, "begin import")
	}
	defer tx.Rollback()

	table := s.table(name)
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
		return classify(err, "drop dataset table")
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (id BIGSERIAL PRIMARY KEY, doc JSONB NOT NULL)", table)); err != nil {
		return classify(err, "create dataset table")
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyInSchema(s.cfg.DatasetsSchema, name, "doc"))
	if err != nil {
		return classify(err, "prepare copy")
	}
	for i, doc := range docs {
		raw, err := json.Marshal(doc)
		if err != nil {
			stmt.Close()
			return fmt.Errorf("failed to encode document %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, string(raw)); err != nil {
			stmt.Close()
			return classify(err, "copy document")
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return classify(err, "flush copy")
	}
	if err := stmt.Close(); err != nil {
		return classify(err, "close copy")
	}

	if err := tx.Commit(); err != nil {
		return classify(err, "commit import")
	}
	s.logger.Info("Dataset imported", zap.String("dataset", name), zap.Int("documents", len(docs)))
	return nil
}

// CreateIndex adds an expression index over a document path. Text indexes
// use to_tsvector with the given configuration.
func (s *Store) CreateIndex(ctx context.Context, name, indexName string, path []string, textConfig string) error {
	var expr string
	if textConfig != "" {
		expr = fmt.Sprintf("USING gin (to_tsvector(%s, doc #>> %s))", pq.QuoteLiteral(textConfig), pq.QuoteLiteral("{"+joinPath(path)+"}"))
	} else {
		expr = fmt.Sprintf("((doc #>> %s))", pq.QuoteLiteral("{"+joinPath(path)+"}"))
	}
	stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s %s", pq.QuoteIdentifier(indexName), s.table(name), expr)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return classify(err, "create index")
	}
	return nil
}

func joinPath(path []string) string {
	return strings.Join(path, ",")
}
