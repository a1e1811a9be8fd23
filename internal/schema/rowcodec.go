package schema

import (
	json "github.com/goccy/go-json"

	"github.com/fieldkeeper/fieldkeeper/internal/types"
)

// RowBlobs carries the serialized blob columns derived from one field.
// The inverse path lives in the resolver (decodeConfig, decodeConditional
// and the flexible layouts backfill), so both directions share the node
// grammar and round-trip exactly.
type RowBlobs struct {
	Config          string
	Conditional     string
	FlexibleLayouts string
}

// EncodeRowBlobs serializes a field's open config, conditional rule and
// flexible layouts into their definition-row column forms. The type name
// is deliberately absent from the config blob: the row's own type marker
// is authoritative for structured rows, and a config "type" key would
// shadow it on resolution.
func EncodeRowBlobs(f types.Field) (RowBlobs, error) {
	var blobs RowBlobs

	if len(f.Config) > 0 {
		cfg := make(map[string]any, len(f.Config))
		for k, v := range f.Config {
			if k == "type" {
				continue
			}
			cfg[k] = v
		}
		if len(cfg) > 0 {
			data, err := json.Marshal(cfg)
			if err != nil {
				return RowBlobs{}, err
			}
			blobs.Config = string(data)
		}
	}

	if f.Conditional != nil {
		data, err := json.Marshal(encodeConditional(f.Conditional))
		if err != nil {
			return RowBlobs{}, err
		}
		blobs.Conditional = string(data)
	}

	if len(f.Layouts) > 0 {
		layouts := make([]any, len(f.Layouts))
		for i, l := range f.Layouts {
			lm := map[string]any{"name": l.Name, "label": l.Label}
			if l.Fields != nil {
				lm["sub_fields"] = encodeNodes(l.Fields)
			}
			layouts[i] = lm
		}
		data, err := json.Marshal(layouts)
		if err != nil {
			return RowBlobs{}, err
		}
		blobs.FlexibleLayouts = string(data)
	}

	return blobs, nil
}
