package engine

import (
	"context"
	"fmt"

	"github.com/fieldkeeper/fieldkeeper/internal/schema"
)

// ExportSchema serializes a group's resolved field tree as a schema
// document. The export carries machine names, so re-importing it updates
// the same fields in place.
func (e *Engine) ExportSchema(ctx context.Context, group string, format schema.Format) ([]byte, error) {
	fields, err := e.ResolveSchema(ctx, group)
	if err != nil {
		return nil, err
	}
	data, err := schema.Encode(fields, format)
	if err != nil {
		return nil, fmt.Errorf("exporting group %q: %w", group, err)
	}
	return data, nil
}

// ImportSchema loads a schema document into structured definition rows.
// The group is created when missing; fields whose machine names already
// exist are updated in place, the rest are appended, so re-running an
// import is safe.
func (e *Engine) ImportSchema(ctx context.Context, group, label string, data []byte, format schema.Format) error {
	fields, err := schema.Decode(data, format)
	if err != nil {
		return fmt.Errorf("importing group %q: %w", group, err)
	}
	if _, err := e.store.CreateGroup(ctx, group, label); err != nil {
		return err
	}
	return e.store.SaveFields(ctx, group, fields)
}
