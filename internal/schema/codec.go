// internal/schema/codec.go
package schema

import (
	"fmt"

	json "github.com/goccy/go-json"
	yaml "gopkg.in/yaml.v3"

	"github.com/fieldkeeper/fieldkeeper/internal/types"
)

/*
 * Serialized schema document codec.
 *
 * The document is the fallback/export format: {"fields": [FieldNode...]}.
 * JSON is the storage format (goccy/go-json, same codec family as the
 * value blobs); YAML is offered for operator-facing export because hand
 * editing nested field sets in JSON is miserable.
 *
 * Lossless round-trip: Decode(Encode(tree)) yields a tree equal
 * field-for-field including nested layouts. YAML decoding normalizes
 * integers to float64 so both formats produce identical trees.
 */

// Format names a document serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// document is the wire shape of a serialized schema.
type document struct {
	Fields []map[string]any `json:"fields" yaml:"fields"`
}

// Encode serializes a field tree to the schema document format.
func Encode(fields []types.Field, format Format) ([]byte, error) {
	doc := document{Fields: make([]map[string]any, len(fields))}
	for i, f := range fields {
		doc.Fields[i] = encodeNode(f)
	}

	switch format {
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case FormatYAML:
		return yaml.Marshal(doc)
	default:
		return nil, fmt.Errorf("unsupported schema document format %q", format)
	}
}

// Decode parses a schema document back into a field tree.
func Decode(data []byte, format Format) ([]types.Field, error) {
	var doc document

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid schema document: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid schema document: %w", err)
		}
		for i, m := range doc.Fields {
			doc.Fields[i] = normalizeMap(m)
		}
	default:
		return nil, fmt.Errorf("unsupported schema document format %q", format)
	}

	fields := make([]types.Field, 0, len(doc.Fields))
	for _, m := range doc.Fields {
		fields = append(fields, parseNode(m))
	}
	return fields, nil
}

// normalizeMap rewrites YAML-decoded values into the JSON value model:
// integers become float64 and nested map/slice types are converted
// recursively. Keeps trees identical regardless of source format.
func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	case map[string]any:
		return normalizeMap(t)
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[fmt.Sprintf("%v", k)] = normalizeValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = normalizeValue(vv)
		}
		return out
	default:
		return v
	}
}
