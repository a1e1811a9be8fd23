package storage

import (
	"context"
	"fmt"

	"github.com/fieldkeeper/fieldkeeper/internal/types"
)

type locationRow struct {
	ID               int64  `db:"id"`
	GroupName        string `db:"group_name"`
	ContextAttribute string `db:"context_attribute"`
	Operator         string `db:"operator"`
	Value            string `db:"value"`
	RuleGroup        int    `db:"rule_group"`
	SortOrder        int    `db:"sort_order"`
}

// SaveLocationRules replaces a group's location rule set. Replace rather
// than merge: the rule set is edited as a whole, and partial merges
// would leave stale OR-branches behind.
func (s *Store) SaveLocationRules(ctx context.Context, group string, rules []types.LocationRule) error {
	m := s.lockGroup(group)
	m.Lock()
	defer m.Unlock()

	if _, err := s.Group(ctx, group); err != nil {
		return err
	}

	if _, err := s.q.Exec(ctx, "delete-location-rules-for-group", group); err != nil {
		return fmt.Errorf("save location rules for group %q: %w", group, err)
	}
	for _, r := range rules {
		if _, err := s.q.Exec(ctx, "insert-location-rule",
			group, r.Attribute, r.Operator, r.Value, r.RuleGroup, r.Order); err != nil {
			return fmt.Errorf("save location rules for group %q: %w", group, err)
		}
	}
	return nil
}

// LocationRules returns a group's rule set ordered by rule group then
// position. An empty result means the group is unrestricted.
func (s *Store) LocationRules(ctx context.Context, group string) ([]types.LocationRule, error) {
	var rows []locationRow
	if err := s.q.Select(ctx, "select-location-rules", &rows, group); err != nil {
		return nil, fmt.Errorf("location rules for group %q: %w", group, err)
	}
	out := make([]types.LocationRule, len(rows))
	for i, row := range rows {
		out[i] = types.LocationRule{
			GroupName: row.GroupName,
			Attribute: row.ContextAttribute,
			Operator:  row.Operator,
			Value:     row.Value,
			RuleGroup: row.RuleGroup,
			Order:     row.SortOrder,
		}
	}
	return out, nil
}
