package pgstore

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/lib/pq"

	"github.com/rk-analyzer/internal/dataset"
	"github.com/rk-analyzer/internal/store"
)

func TestParseIndexDef(t *testing.T) {
	tests := []struct {
		name     string
		def      string
		keys     []string
		textKeys []string
	}{
		{
			name: "single arrow key",
			def:  `CREATE INDEX ix_name ON rk_user_datasets.shops USING btree (((doc ->> 'name'::text)))`,
			keys: []string{"name"},
		},
		{
			name: "nested arrow chain",
			def:  `CREATE INDEX ix_city ON rk_user_datasets.shops USING btree (((doc -> 'address'::text) ->> 'city'::text))`,
			keys: []string{"address.city"},
		},
		{
			name: "hash path",
			def:  `CREATE INDEX ix_city ON rk_user_datasets.shops USING btree (((doc #>> '{address,city}'::text[])))`,
			keys: []string{"address.city"},
		},
		{
			name: "compound key",
			def:  `CREATE INDEX ix_pair ON rk_user_datasets.shops USING btree (((doc ->> 'street'::text)), ((doc ->> 'house'::text)))`,
			keys: []string{"street", "house"},
		},
		{
			name:     "text index",
			def:      `CREATE INDEX ix_title ON rk_user_datasets.shops USING gin (to_tsvector('russian'::regconfig, (doc #>> '{title}'::text[])))`,
			textKeys: []string{"title"},
		},
		{
			name: "primary key",
			def:  `CREATE UNIQUE INDEX shops_pkey ON rk_user_datasets.shops USING btree (id)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, textKeys := ParseIndexDef(tt.def)
			if !reflect.DeepEqual(keys, tt.keys) {
				t.Errorf("keys = %v, want %v", keys, tt.keys)
			}
			if !reflect.DeepEqual(textKeys, tt.textKeys) {
				t.Errorf("textKeys = %v, want %v", textKeys, tt.textKeys)
			}
		})
	}
}

func TestTypePredicate(t *testing.T) {
	supported := []dataset.FieldType{
		dataset.TypeGeometry, dataset.TypeString, dataset.TypeDouble, dataset.TypeInt,
		dataset.TypeLong, dataset.TypeBool, dataset.TypeObject, dataset.TypeArray,
	}
	for _, ft := range supported {
		t.Run(ft.String(), func(t *testing.T) {
			pred, err := typePredicate("v", ft)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(pred, "jsonb_typeof(v)") {
				t.Errorf("predicate %q does not test the value type", pred)
			}
		})
	}

	for _, ft := range []dataset.FieldType{dataset.TypeDate, dataset.TypeUnknown} {
		t.Run(ft.String(), func(t *testing.T) {
			if _, err := typePredicate("v", ft); !errors.Is(err, dataset.ErrUnsupportedType) {
				t.Errorf("expected ErrUnsupportedType, got %v", err)
			}
		})
	}
}

func TestScopeAndPath(t *testing.T) {
	var args []any
	if got := scope(store.Population{Dataset: "shops"}, &args); got != "TRUE" || len(args) != 0 {
		t.Fatalf("unsampled scope = %q with %d args", got, len(args))
	}

	where := scope(store.Population{Dataset: "shops", Sampled: true, IDs: []int64{3, 7}}, &args)
	if where != "id = ANY($1::bigint[])" {
		t.Errorf("sampled scope = %q", where)
	}
	expr := pathExpr("address.city", &args)
	if expr != "(doc #> $2::text[])" {
		t.Errorf("path expr = %q", expr)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
	if !reflect.DeepEqual(args[1], pq.Array([]string{"address", "city"})) {
		t.Errorf("path arg = %#v", args[1])
	}
}

func TestClassifyUndefinedTable(t *testing.T) {
	err := classify(&pq.Error{Code: "42P01", Message: "relation does not exist"}, "count shops")
	if !errors.Is(err, dataset.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}

	err = classify(&pq.Error{Code: "08006"}, "count shops")
	if !errors.Is(err, dataset.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}
