// internal/schema/codec_test.go
package schema

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/fieldkeeper/fieldkeeper/internal/types"
)

const sampleDocument = `{
  "fields": [
    {"name": "sku", "label": "SKU", "type": "text", "required": true, "maxlength": 32},
    {"name": "price", "label": "Price", "type": "number", "min": 0},
    {
      "name": "gallery", "label": "Gallery", "type": "repeater", "min_rows": 1,
      "sub_fields": [
        {"name": "image", "label": "Image", "type": "image"},
        {"name": "caption", "label": "Caption", "type": "text",
         "conditional_logic": {"logic": "and", "atoms": [{"field": "image", "operator": "not_empty"}]}}
      ]
    },
    {
      "name": "blocks", "label": "Blocks", "type": "flexible_content",
      "layouts": [
        {"name": "hero", "label": "Hero", "sub_fields": [
          {"name": "title", "label": "Title", "type": "text"},
          {"name": "style", "label": "Style", "type": "select",
           "choices": {"light": "Light", "dark": "Dark"}}
        ]},
        {"name": "quote", "label": "Quote", "sub_fields": [
          {"name": "body", "label": "Body", "type": "textarea"}
        ]}
      ]
    },
    {"name": "exotic", "label": "Exotic", "type": "hologram", "future_key": "preserved"}
  ]
}`

func TestCodec_RoundTripJSON(t *testing.T) {
	original, err := Decode([]byte(sampleDocument), FormatJSON)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	encoded, err := Encode(original, FormatJSON)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	decoded, err := Decode(encoded, FormatJSON)
	if err != nil {
		t.Fatalf("Decode(Encode()) error = %v", err)
	}

	if !reflect.DeepEqual(original, decoded) {
		t.Errorf("round trip changed the tree:\noriginal: %+v\ndecoded:  %+v", original, decoded)
	}
}

func TestCodec_RoundTripYAML(t *testing.T) {
	original, err := Decode([]byte(sampleDocument), FormatJSON)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	encoded, err := Encode(original, FormatYAML)
	if err != nil {
		t.Fatalf("Encode(yaml) error = %v", err)
	}
	decoded, err := Decode(encoded, FormatYAML)
	if err != nil {
		t.Fatalf("Decode(yaml) error = %v", err)
	}

	if !reflect.DeepEqual(original, decoded) {
		t.Errorf("yaml round trip changed the tree:\noriginal: %+v\ndecoded:  %+v", original, decoded)
	}
}

func TestCodec_UnknownExtraKeysPreserved(t *testing.T) {
	fields, err := Decode([]byte(sampleDocument), FormatJSON)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	exotic := fields[len(fields)-1]
	if exotic.Config.String("future_key") != "preserved" {
		t.Errorf("future_key = %q, want forward-compatible keys kept verbatim",
			exotic.Config.String("future_key"))
	}
}

func TestCodec_UnsupportedFormat(t *testing.T) {
	if _, err := Encode(nil, Format("toml")); err == nil {
		t.Error("Encode(toml) error = nil, want unsupported format error")
	}
	if _, err := Decode([]byte("{}"), Format("toml")); err == nil {
		t.Error("Decode(toml) error = nil, want unsupported format error")
	}
}

// Property: any tree built from the node grammar survives export and
// reimport unchanged, in both formats.
func TestCodec_PropertyRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	leafTypes := []string{"text", "number", "email", "true_false", "date"}

	properties.Property("generated trees round trip losslessly", prop.ForAll(
		func(seed int, fieldCount int, nested bool, useYAML bool) bool {
			s := seed
			if s < 0 {
				s = -s
			}

			fields := make([]types.Field, 0, fieldCount)
			for i := 0; i < fieldCount; i++ {
				leaf := types.Field{
					Name:   "f" + string(rune('a'+i%26)),
					Label:  "Field",
					Type:   leafTypes[(s+i)%len(leafTypes)],
					Config: types.Config{"required": (s+i)%2 == 0},
				}
				if nested && i%3 == 0 {
					fields = append(fields, types.Field{
						Name:     "rep" + string(rune('a'+i%26)),
						Label:    "Repeater",
						Type:     types.TypeRepeater,
						Config:   types.Config{"min_rows": float64(s % 4)},
						MinRows:  s % 4,
						Children: []types.Field{leaf},
					})
					continue
				}
				fields = append(fields, leaf)
			}

			format := FormatJSON
			if useYAML {
				format = FormatYAML
			}

			encoded, err := Encode(fields, format)
			if err != nil {
				return false
			}
			decoded, err := Decode(encoded, format)
			if err != nil {
				return false
			}
			return reflect.DeepEqual(normalizeTree(fields), normalizeTree(decoded))
		},
		gen.Int(),
		gen.IntRange(1, 8),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// normalizeTree re-parses a tree through the node grammar so both sides
// of the property comparison share one canonical form.
func normalizeTree(fields []types.Field) []types.Field {
	return parseNodesTest(encodeNodes(fields))
}

func parseNodesTest(list []any) []types.Field {
	return parseNodes(list)
}
