package cmd

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/fieldkeeper/fieldkeeper/internal/types"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Manage field definitions within a group",
}

var fieldsListCmd = &cobra.Command{
	Use:   "list <group>",
	Short: "Show a group's resolved field tree",
	Args:  cobra.ExactArgs(1),
	RunE:  runFieldsList,
}

var fieldsAddCmd = &cobra.Command{
	Use:   "add <group> <label>",
	Short: "Add a field definition to a group",
	Args:  cobra.ExactArgs(2),
	RunE:  runFieldsAdd,
}

var fieldsDeleteCmd = &cobra.Command{
	Use:   "delete <group> <machine-name>",
	Short: "Delete a field definition and its stored values",
	Args:  cobra.ExactArgs(2),
	RunE:  runFieldsDelete,
}

var (
	fieldType   string
	fieldName   string
	fieldConfig string
)

func init() {
	rootCmd.AddCommand(fieldsCmd)
	fieldsCmd.AddCommand(fieldsListCmd, fieldsAddCmd, fieldsDeleteCmd)
	fieldsAddCmd.Flags().StringVar(&fieldType, "type", "text", "field type name")
	fieldsAddCmd.Flags().StringVar(&fieldName, "name", "", "explicit machine name (derived from the label when empty)")
	fieldsAddCmd.Flags().StringVar(&fieldConfig, "field-config", "", "field configuration as a JSON object")
}

func runFieldsList(cmd *cobra.Command, args []string) error {
	e, _, closer, err := openEngine()
	if err != nil {
		return err
	}
	defer closer()

	fields, err := e.ResolveSchema(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printFields(fields, 0)
	return nil
}

func printFields(fields []types.Field, indent int) {
	pad := strings.Repeat("  ", indent)
	for _, f := range fields {
		fmt.Printf("%s%s (%s) %q\n", pad, f.Name, f.Type, f.Label)
		printFields(f.Children, indent+1)
		for _, l := range f.Layouts {
			fmt.Printf("%s  layout %s %q\n", pad, l.Name, l.Label)
			printFields(l.Fields, indent+2)
		}
	}
}

func runFieldsAdd(cmd *cobra.Command, args []string) error {
	e, _, closer, err := openEngine()
	if err != nil {
		return err
	}
	defer closer()

	f := types.Field{
		Name:  fieldName,
		Label: args[1],
		Type:  fieldType,
	}
	if fieldConfig != "" {
		var cfg map[string]any
		if err := json.Unmarshal([]byte(fieldConfig), &cfg); err != nil {
			return fmt.Errorf("invalid --field-config: %w", err)
		}
		f.Config = types.Config(cfg)
		f.MinRows = int(f.Config.Float("min_rows"))
		f.MaxRows = int(f.Config.Float("max_rows"))
	}

	stored, err := e.Store().AddField(cmd.Context(), args[0], f)
	if err != nil {
		return err
	}
	fmt.Printf("added field %s (id %s)\n", stored.Name, stored.ID)
	return nil
}

func runFieldsDelete(cmd *cobra.Command, args []string) error {
	e, _, closer, err := openEngine()
	if err != nil {
		return err
	}
	defer closer()

	if err := e.Store().DeleteField(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("deleted field %s from group %s\n", args[1], args[0])
	return nil
}
