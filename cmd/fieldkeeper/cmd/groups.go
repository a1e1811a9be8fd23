package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fieldkeeper/fieldkeeper/internal/types"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Manage field groups",
}

var groupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered field groups",
	RunE:  runGroupsList,
}

var groupsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a field group with its storage units",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupsCreate,
}

var groupsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a field group, its definitions and stored values",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupsDelete,
}

var groupsMatchCmd = &cobra.Command{
	Use:   "match",
	Short: "List groups whose location rules match a context",
	Long: `Context attributes are given as attribute=value pairs, e.g.:

  fieldkeeper groups match content_type=product taxonomy_term=featured

Repeating an attribute builds a list value.`,
	RunE: runGroupsMatch,
}

var groupLabel string

func init() {
	rootCmd.AddCommand(groupsCmd)
	groupsCmd.AddCommand(groupsListCmd, groupsCreateCmd, groupsDeleteCmd, groupsMatchCmd)
	groupsCreateCmd.Flags().StringVar(&groupLabel, "label", "", "human-readable group label")
}

func runGroupsList(cmd *cobra.Command, args []string) error {
	e, _, closer, err := openEngine()
	if err != nil {
		return err
	}
	defer closer()

	groups, err := e.Store().ListGroups(cmd.Context())
	if err != nil {
		return err
	}
	for _, g := range groups {
		if g.Label != "" {
			fmt.Printf("%s\t%s\n", g.Name, g.Label)
			continue
		}
		fmt.Println(g.Name)
	}
	return nil
}

func runGroupsCreate(cmd *cobra.Command, args []string) error {
	e, _, closer, err := openEngine()
	if err != nil {
		return err
	}
	defer closer()

	rec, err := e.Store().CreateGroup(cmd.Context(), args[0], groupLabel)
	if err != nil {
		return err
	}
	fmt.Printf("created group %s (definition unit %s, value unit %s)\n",
		rec.Name, rec.Units.Definition, rec.Units.Value)
	return nil
}

func runGroupsDelete(cmd *cobra.Command, args []string) error {
	e, _, closer, err := openEngine()
	if err != nil {
		return err
	}
	defer closer()

	if err := e.Store().DeleteGroup(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted group %s\n", args[0])
	return nil
}

func runGroupsMatch(cmd *cobra.Command, args []string) error {
	e, _, closer, err := openEngine()
	if err != nil {
		return err
	}
	defer closer()

	loc, err := parseContext(args)
	if err != nil {
		return err
	}
	matched, err := e.GroupsForContext(cmd.Context(), loc)
	if err != nil {
		return err
	}
	for _, name := range matched {
		fmt.Println(name)
	}
	return nil
}

// parseContext builds a location context from attribute=value arguments.
// A repeated attribute accumulates into a list.
func parseContext(args []string) (types.Context, error) {
	loc := types.Context{}
	for _, arg := range args {
		attr, value, ok := strings.Cut(arg, "=")
		if !ok || attr == "" {
			return nil, fmt.Errorf("context argument %q is not attribute=value", arg)
		}
		switch existing := loc[attr].(type) {
		case nil:
			loc[attr] = value
		case []any:
			loc[attr] = append(existing, value)
		default:
			loc[attr] = []any{existing, value}
		}
	}
	return loc, nil
}
