package storage

import (
	"context"
	"fmt"
)

type docRow struct {
	GroupName string `db:"group_name"`
	Format    string `db:"format"`
	Document  []byte `db:"document"`
	UpdatedAt string `db:"updated_at"`
}

// SaveSchemaDocument stores (or replaces) a group's fallback serialized
// schema. The document is kept verbatim; resolution decodes it only when
// the group has no structured definition rows.
func (s *Store) SaveSchemaDocument(ctx context.Context, group, format string, doc []byte) error {
	if _, err := s.q.Exec(ctx, "upsert-schema-document", group, format, doc, now()); err != nil {
		return fmt.Errorf("save schema document for group %q: %w", group, err)
	}
	return nil
}

// DeleteSchemaDocument removes a group's fallback document.
func (s *Store) DeleteSchemaDocument(ctx context.Context, group string) error {
	if _, err := s.q.Exec(ctx, "delete-schema-document", group); err != nil {
		return fmt.Errorf("delete schema document for group %q: %w", group, err)
	}
	return nil
}
