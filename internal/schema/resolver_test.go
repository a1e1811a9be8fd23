// internal/schema/resolver_test.go
package schema

import (
	"context"
	"log/slog"
	"testing"

	"github.com/fieldkeeper/fieldkeeper/internal/registry"
	"github.com/fieldkeeper/fieldkeeper/internal/types"
)

// memorySource is an in-memory Source double.
type memorySource struct {
	units     map[string]types.UnitRef
	rows      map[types.UnitRef][]DefinitionRow
	documents map[string][]byte
}

func newMemorySource() *memorySource {
	return &memorySource{
		units:     make(map[string]types.UnitRef),
		rows:      make(map[types.UnitRef][]DefinitionRow),
		documents: make(map[string][]byte),
	}
}

func (m *memorySource) DefinitionUnit(ctx context.Context, group string) (types.UnitRef, bool, error) {
	ref, ok := m.units[group]
	return ref, ok, nil
}

func (m *memorySource) DefinitionRows(ctx context.Context, ref types.UnitRef) ([]DefinitionRow, bool, error) {
	rows, ok := m.rows[ref]
	return rows, ok, nil
}

func (m *memorySource) SchemaDocument(ctx context.Context, group string) ([]byte, string, bool, error) {
	doc, ok := m.documents[group]
	return doc, "json", ok, nil
}

func newTestResolver(src Source) *Resolver {
	return NewResolver(src, registry.New(slog.Default()), slog.Default())
}

func TestResolve_TypePrecedence(t *testing.T) {
	tests := []struct {
		name string
		row  DefinitionRow
		want string
	}{
		{
			name: "config type wins",
			row:  DefinitionRow{ConfigBlob: `{"type":"number"}`, Type: "text", LegacyFieldType: "email"},
			want: "number",
		},
		{
			name: "row marker when config silent",
			row:  DefinitionRow{ConfigBlob: `{}`, Type: "text", LegacyFieldType: "email"},
			want: "text",
		},
		{
			name: "legacy column last",
			row:  DefinitionRow{LegacyFieldType: "email"},
			want: "email",
		},
		{
			name: "spelling normalized before lookup",
			row:  DefinitionRow{Type: "Flexible-Content"},
			want: "flexible_content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newMemorySource()
			ref := types.NewUnitRef()
			src.units["g"] = ref
			tt.row.ID = 1
			tt.row.DisplayName = "Field"
			tt.row.MachineName = "field_x"
			src.rows[ref] = []DefinitionRow{tt.row}

			fields, err := newTestResolver(src).Resolve(context.Background(), "g")
			if err != nil {
				t.Fatalf("Resolve() error = %v, want nil", err)
			}
			if len(fields) != 1 {
				t.Fatalf("Resolve() returned %d fields, want 1", len(fields))
			}
			if fields[0].Type != tt.want {
				t.Errorf("Type = %q, want %q", fields[0].Type, tt.want)
			}
		})
	}
}

func TestResolve_UnknownTypeDegrades(t *testing.T) {
	src := newMemorySource()
	ref := types.NewUnitRef()
	src.units["g"] = ref
	src.rows[ref] = []DefinitionRow{
		{ID: 1, MachineName: "field_a", DisplayName: "A", Type: "totally_unknown_type"},
		{ID: 2, MachineName: "field_b", DisplayName: "B", Type: "text"},
	}

	fields, err := newTestResolver(src).Resolve(context.Background(), "g")
	if err != nil {
		t.Fatalf("Resolve() error = %v, want nil (unknown types must not fail)", err)
	}
	if len(fields) != 2 {
		t.Fatalf("Resolve() returned %d fields, want 2", len(fields))
	}
	if fields[0].Type != "totally_unknown_type" {
		t.Errorf("unknown field kept Type = %q, want original name preserved", fields[0].Type)
	}
}

func TestResolve_Ordering(t *testing.T) {
	src := newMemorySource()
	ref := types.NewUnitRef()
	src.units["g"] = ref
	// Same sort_order for b and c: insertion id breaks the tie.
	src.rows[ref] = []DefinitionRow{
		{ID: 3, MachineName: "c", DisplayName: "C", Type: "text", SortOrder: 1},
		{ID: 1, MachineName: "a", DisplayName: "A", Type: "text", SortOrder: 2},
		{ID: 2, MachineName: "b", DisplayName: "B", Type: "text", SortOrder: 1},
	}

	fields, err := newTestResolver(src).Resolve(context.Background(), "g")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	got := []string{fields[0].Name, fields[1].Name, fields[2].Name}
	want := []string{"b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestResolve_CompositeFromConfig(t *testing.T) {
	src := newMemorySource()
	ref := types.NewUnitRef()
	src.units["g"] = ref
	src.rows[ref] = []DefinitionRow{
		{
			ID: 1, MachineName: "gallery", DisplayName: "Gallery", Type: "repeater",
			ConfigBlob: `{"sub_fields":[{"name":"image","label":"Image","type":"image"}],"min_rows":1}`,
		},
		{
			ID: 2, MachineName: "blocks", DisplayName: "Blocks", Type: "flexible_content",
			ConfigBlob: `{"layouts":[{"name":"hero","label":"Hero","sub_fields":[{"name":"title","label":"Title","type":"text"}]}]}`,
		},
		// Composite with no sub-structure is an empty nested set, not an error.
		{ID: 3, MachineName: "empty_grp", DisplayName: "Empty", Type: "group"},
	}

	fields, err := newTestResolver(src).Resolve(context.Background(), "g")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	gallery := fields[0]
	if len(gallery.Children) != 1 || gallery.Children[0].Name != "image" {
		t.Errorf("repeater children = %+v, want one image sub-field", gallery.Children)
	}
	if gallery.MinRows != 1 {
		t.Errorf("MinRows = %d, want 1", gallery.MinRows)
	}

	blocks := fields[1]
	if len(blocks.Layouts) != 1 || blocks.Layouts[0].Name != "hero" {
		t.Fatalf("layouts = %+v, want one hero layout", blocks.Layouts)
	}
	if len(blocks.Layouts[0].Fields) != 1 || blocks.Layouts[0].Fields[0].Name != "title" {
		t.Errorf("hero fields = %+v, want one title field", blocks.Layouts[0].Fields)
	}

	if len(fields[2].Children) != 0 {
		t.Errorf("empty group resolved with %d children, want 0", len(fields[2].Children))
	}
}

func TestResolve_NestedUnitChain(t *testing.T) {
	src := newMemorySource()
	parent := types.NewUnitRef()
	child := types.NewUnitRef()
	src.units["g"] = parent
	src.rows[parent] = []DefinitionRow{
		{ID: 1, MachineName: "details", DisplayName: "Details", Type: "group",
			ChildUnitRefs: []types.UnitRef{child}},
	}
	src.rows[child] = []DefinitionRow{
		{ID: 1, MachineName: "sku", DisplayName: "SKU", Type: "text"},
	}

	fields, err := newTestResolver(src).Resolve(context.Background(), "g")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(fields[0].Children) != 1 || fields[0].Children[0].Name != "sku" {
		t.Errorf("chained children = %+v, want sku from child unit", fields[0].Children)
	}
}

func TestResolve_DanglingNestedRef(t *testing.T) {
	src := newMemorySource()
	parent := types.NewUnitRef()
	src.units["g"] = parent
	src.rows[parent] = []DefinitionRow{
		{ID: 1, MachineName: "details", DisplayName: "Details", Type: "group",
			ChildUnitRefs: []types.UnitRef{types.NewUnitRef()}},
	}

	fields, err := newTestResolver(src).Resolve(context.Background(), "g")
	if err != nil {
		t.Fatalf("Resolve() error = %v, dangling refs must not crash", err)
	}
	if len(fields[0].Children) != 0 {
		t.Errorf("dangling ref resolved %d children, want empty nested group", len(fields[0].Children))
	}
}

func TestResolve_FallbackDocument(t *testing.T) {
	src := newMemorySource()
	src.documents["g"] = []byte(`{"fields":[{"name":"sku","label":"SKU","type":"text","required":true}]}`)

	fields, err := newTestResolver(src).Resolve(context.Background(), "g")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(fields) != 1 || fields[0].Name != "sku" {
		t.Fatalf("fields = %+v, want sku from fallback document", fields)
	}
	if !fields[0].Config.Bool("required") {
		t.Error("required flag lost on fallback path")
	}
	// Registry defaults merged under the document's keys.
	if !fields[0].Config.Has("placeholder") {
		t.Error("registry defaults not merged on fallback path")
	}
}

func TestResolve_RowsBeatDocument(t *testing.T) {
	src := newMemorySource()
	ref := types.NewUnitRef()
	src.units["g"] = ref
	src.rows[ref] = []DefinitionRow{{ID: 1, MachineName: "from_rows", DisplayName: "R", Type: "text"}}
	src.documents["g"] = []byte(`{"fields":[{"name":"from_doc","label":"D","type":"text"}]}`)

	fields, err := newTestResolver(src).Resolve(context.Background(), "g")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(fields) != 1 || fields[0].Name != "from_rows" {
		t.Errorf("fields = %+v, structured rows must be authoritative", fields)
	}
}

func TestResolve_EmptyUnitFallsThroughToDocument(t *testing.T) {
	src := newMemorySource()
	ref := types.NewUnitRef()
	src.units["legacy"] = ref
	src.rows[ref] = []DefinitionRow{}
	src.documents["legacy"] = []byte(`{"fields":[{"name":"notes","label":"Notes","type":"textarea"}]}`)

	fields, err := newTestResolver(src).Resolve(context.Background(), "legacy")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(fields) != 1 || fields[0].Name != "notes" {
		t.Fatalf("fields = %+v, want notes from document behind the empty unit", fields)
	}
}

func TestResolve_EmptyUnitNoDocument(t *testing.T) {
	src := newMemorySource()
	ref := types.NewUnitRef()
	src.units["fresh"] = ref
	src.rows[ref] = []DefinitionRow{}

	fields, err := newTestResolver(src).Resolve(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("Resolve() error = %v, a registered group resolves even before fields exist", err)
	}
	if len(fields) != 0 {
		t.Fatalf("fields = %+v, want none", fields)
	}
}

func TestResolve_GroupNotFound(t *testing.T) {
	_, err := newTestResolver(newMemorySource()).Resolve(context.Background(), "ghost")
	if err == nil {
		t.Fatal("Resolve() error = nil, want ErrGroupNotFound")
	}
}

func TestResolve_MalformedBlobsSurvive(t *testing.T) {
	src := newMemorySource()
	ref := types.NewUnitRef()
	src.units["g"] = ref
	src.rows[ref] = []DefinitionRow{
		{ID: 1, MachineName: "a", DisplayName: "A", Type: "text",
			ConfigBlob: `{not json`, ConditionalBlob: `also not json`},
	}

	fields, err := newTestResolver(src).Resolve(context.Background(), "g")
	if err != nil {
		t.Fatalf("Resolve() error = %v, malformed blobs must degrade locally", err)
	}
	if fields[0].Conditional != nil {
		t.Error("malformed conditional blob should resolve as always visible")
	}
}
