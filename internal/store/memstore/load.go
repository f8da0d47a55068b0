package memstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	"github.com/rk-analyzer/internal/dataset"
	"github.com/rk-analyzer/internal/store"
)

// LoadDocuments reads records from a JSONL, JSON array or Parquet file
func LoadDocuments(path string) ([]dataset.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".parquet":
		return loadParquet(path)
	case ".jsonl", ".ndjson":
		return loadJSONL(path)
	case ".json":
		return loadJSONArray(path)
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .parquet, .jsonl, .json)", ext)
	}
}

func decodeDocument(data []byte) (dataset.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc dataset.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func loadJSONL(path string) ([]dataset.Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	var docs []dataset.Document
	scanner := bufio.NewScanner(file)

	// Increase buffer size for large geometries
	const maxCapacity = 16 * 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		doc, err := decodeDocument(line)
		if err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading dataset: %w", err)
	}
	return docs, nil
}

func loadJSONArray(path string) ([]dataset.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset file: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var docs []dataset.Document
	if err := dec.Decode(&docs); err != nil {
		return nil, fmt.Errorf("failed to parse JSON array: %w", err)
	}
	return docs, nil
}

func loadParquet(path string) ([]dataset.Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	columns := pf.Schema().Columns()
	docs := make([]dataset.Document, 0, pf.NumRows())
	buf := make([]parquet.Row, 128)

	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				docs = append(docs, rowDocument(columns, row))
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to read parquet rows: %w", err)
			}
		}
		rows.Close()
	}
	return docs, nil
}

// rowDocument rebuilds a nested document from a row of leaf values. Repeated
// leaves become arrays.
func rowDocument(columns [][]string, row parquet.Row) dataset.Document {
	doc := make(dataset.Document)
	row.Range(func(columnIndex int, values []parquet.Value) bool {
		if columnIndex >= len(columns) {
			return true
		}
		var decoded []any
		for _, v := range values {
			if v.IsNull() {
				continue
			}
			decoded = append(decoded, parquetValue(v))
		}
		if len(decoded) == 0 {
			return true
		}
		var value any = decoded[0]
		if len(decoded) > 1 {
			value = decoded
		}
		setPath(doc, columns[columnIndex], value)
		return true
	})
	return doc
}

func parquetValue(v parquet.Value) any {
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}

func setPath(doc dataset.Document, path []string, value any) {
	cur := doc
	for _, part := range path[:len(path)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[part] = next
		}
		cur = next
	}
	cur[path[len(path)-1]] = value
}

// Structure is the YAML description of a file-backed dataset
type Structure struct {
	Name          string `yaml:"dataset"`
	PublicationID string `yaml:"publication_id"`
	Fields        []struct {
		Name    string `yaml:"name"`
		Type    string `yaml:"type"`
		Feature string `yaml:"feature"`
	} `yaml:"fields"`
	Indexes []struct {
		Name     string   `yaml:"name"`
		Keys     []string `yaml:"keys"`
		TextKeys []string `yaml:"text_keys"`
	} `yaml:"indexes"`
}

// LoadStructure reads a dataset structure file
func LoadStructure(path string) (*Structure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read structure %s: %w", path, err)
	}
	var s Structure
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: invalid structure %s: %v", dataset.ErrConfiguration, path, err)
	}
	return &s, nil
}

// Dataset builds an in-memory dataset from the structure and documents
func (s *Structure) Dataset(docs []dataset.Document) *Dataset {
	ds := &Dataset{
		Name:   s.Name,
		Docs:   docs,
		Record: dataset.Record{Dataset: s.Name, PublicationID: s.PublicationID},
	}
	for _, f := range s.Fields {
		ds.Fields = append(ds.Fields, dataset.FieldDefinition{
			Name: f.Name,
			Type: dataset.ParseFieldType(f.Type),
			Role: dataset.ParseRole(f.Feature),
		})
	}
	for _, ix := range s.Indexes {
		ds.Indexes = append(ds.Indexes, store.Index{Name: ix.Name, Keys: ix.Keys, TextKeys: ix.TextKeys})
	}
	return ds
}
