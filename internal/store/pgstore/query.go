package pgstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/rk-analyzer/internal/dataset"
	"github.com/rk-analyzer/internal/debug"
	"github.com/rk-analyzer/internal/store"
)

func (s *Store) Count(ctx context.Context, name string) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT count(*) FROM %s", s.table(name))
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, classify(err, "count "+name)
	}
	return count, nil
}

func (s *Store) SampleIDs(ctx context.Context, name string, n int) ([]int64, error) {
	defer debug.Timing(s.logger, "sample", zap.String("dataset", name), zap.Int("size", n))()

	query := fmt.Sprintf("SELECT id FROM %s ORDER BY random() LIMIT $1", s.table(name))
	rows, err := s.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, classify(err, "sample "+name)
	}
	defer rows.Close()

	ids := make([]int64, 0, n)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, classify(err, "sample scan")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "sample rows")
	}
	return ids, nil
}

func (s *Store) CountNotEmpty(ctx context.Context, pop store.Population, fields ...string) (int, error) {
	var args []any
	conds := []string{scope(pop, &args)}
	for _, f := range fields {
		conds = append(conds, notEmpty(pathExpr(f, &args)))
	}

	query := fmt.Sprintf("SELECT count(*) FROM %s WHERE %s", s.table(pop.Dataset), strings.Join(conds, " AND "))
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, classify(err, "count not empty")
	}
	return count, nil
}

// typePredicate renders the jsonb_typeof test of a declared type
func typePredicate(expr string, t dataset.FieldType) (string, error) {
	switch t {
	case dataset.TypeGeometry:
		return fmt.Sprintf("(jsonb_typeof(%[1]s) = 'object' AND jsonb_typeof(%[1]s -> 'type') = 'string')", expr), nil
	case dataset.TypeString:
		return fmt.Sprintf("jsonb_typeof(%s) = 'string'", expr), nil
	case dataset.TypeDouble:
		return fmt.Sprintf("(jsonb_typeof(%[1]s) = 'number' AND %[1]s::text ~ '[.eE]')", expr), nil
	case dataset.TypeInt, dataset.TypeLong:
		return fmt.Sprintf("(jsonb_typeof(%[1]s) = 'number' AND %[1]s::text !~ '[.eE]')", expr), nil
	case dataset.TypeBool:
		return fmt.Sprintf("jsonb_typeof(%s) = 'boolean'", expr), nil
	case dataset.TypeObject:
		return fmt.Sprintf("jsonb_typeof(%s) = 'object'", expr), nil
	case dataset.TypeArray:
		return fmt.Sprintf("jsonb_typeof(%s) = 'array'", expr), nil
	case dataset.TypeDate, dataset.TypeUnknown:
		// JSONB has no date type
		return "", fmt.Errorf("%w: %s", dataset.ErrUnsupportedType, t)
	}
	return "", fmt.Errorf("%w: %s", dataset.ErrUnsupportedType, t)
}

func (s *Store) CountTypeMatching(ctx context.Context, pop store.Population, field string, t dataset.FieldType) (int, error) {
	var args []any
	where := scope(pop, &args)
	expr := pathExpr(field, &args)
	pred, err := typePredicate(expr, t)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("SELECT count(*) FROM %s WHERE %s AND %s AND %s",
		s.table(pop.Dataset), where, notEmpty(expr), pred)
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, classify(err, "count type matching")
	}
	return count, nil
}

func (s *Store) GroupCounts(ctx context.Context, pop store.Population, field string, collated bool) ([]store.ValueCount, error) {
	defer debug.Timing(s.logger, "group counts", zap.String("field", field), zap.Bool("collated", collated))()

	var args []any
	where := scope(pop, &args)
	expr := pathExpr(field, &args)

	key := "v"
	if collated {
		key = fmt.Sprintf(`(CASE WHEN jsonb_typeof(v) = 'string' THEN 's:' || (v #>> '{}') ELSE 'j:' || v::text END) COLLATE %s`,
			pq.QuoteIdentifier(s.cfg.Collation))
	}

	query := fmt.Sprintf(`
		SELECT mode() WITHIN GROUP (ORDER BY v::text COLLATE "C") AS rep, count(*) AS cnt
		FROM (SELECT %s AS v FROM %s WHERE %s) s
		WHERE %s
		GROUP BY %s
		ORDER BY cnt DESC, rep ASC`,
		expr, s.table(pop.Dataset), where, notEmpty("v"), key)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "group counts "+field)
	}
	defer rows.Close()

	var result []store.ValueCount
	for rows.Next() {
		var raw []byte
		var count int
		if err := rows.Scan(&raw, &count); err != nil {
			return nil, classify(err, "group counts scan")
		}
		v, err := decodeJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode group value of %s: %w", field, err)
		}
		result = append(result, store.ValueCount{Value: v, Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "group counts rows")
	}
	return result, nil
}

func (s *Store) ForEachProjected(ctx context.Context, pop store.Population, field string, fn func(dataset.Document) error) error {
	var args []any
	where := scope(pop, &args)
	expr := pathExpr(field, &args)
	first := dataset.SplitPath(field)[0]
	args = append(args, first)

	query := fmt.Sprintf("SELECT doc -> $%d FROM %s WHERE %s AND %s ORDER BY id",
		len(args), s.table(pop.Dataset), where, notEmpty(expr))

	return s.scan(ctx, query, args, func(v any) error {
		return fn(dataset.Document{first: v})
	})
}

func (s *Store) ForEachDocument(ctx context.Context, pop store.Population, fn func(dataset.Document) error) error {
	var args []any
	where := scope(pop, &args)
	query := fmt.Sprintf("SELECT doc FROM %s WHERE %s ORDER BY id", s.table(pop.Dataset), where)

	return s.scan(ctx, query, args, func(v any) error {
		doc, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		return fn(doc)
	})
}

func (s *Store) scan(ctx context.Context, query string, args []any, fn func(any) error) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return classify(err, "scan documents")
	}
	defer rows.Close()

	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return classify(err, "scan document")
		}
		v, err := decodeJSON(raw)
		if err != nil {
			return fmt.Errorf("failed to decode document: %w", err)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return classify(rows.Err(), "scan rows")
}

func (s *Store) Indexes(ctx context.Context, name string) ([]store.Index, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT indexname, indexdef FROM pg_indexes WHERE schemaname = $1 AND tablename = $2 ORDER BY indexname`,
		s.cfg.DatasetsSchema, name)
	if err != nil {
		return nil, classify(err, "list indexes")
	}
	defer rows.Close()

	var indexes []store.Index
	for rows.Next() {
		var ixName, def string
		if err := rows.Scan(&ixName, &def); err != nil {
			return nil, classify(err, "list indexes scan")
		}
		keys, textKeys := ParseIndexDef(def)
		if len(keys) == 0 && len(textKeys) == 0 {
			continue
		}
		indexes = append(indexes, store.Index{Name: ixName, Keys: keys, TextKeys: textKeys})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "list indexes rows")
	}
	return indexes, nil
}
