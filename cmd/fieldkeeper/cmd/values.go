package cmd

import (
	"fmt"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/fieldkeeper/fieldkeeper/internal/types"
)

var valuesCmd = &cobra.Command{
	Use:   "values",
	Short: "Read and write per-record field values",
}

var valuesGetCmd = &cobra.Command{
	Use:   "get <group> <record-id>",
	Short: "Print a record's stored values as JSON",
	Args:  cobra.ExactArgs(2),
	RunE:  runValuesGet,
}

var valuesSetCmd = &cobra.Command{
	Use:   "set <group> <record-id> <values-json>",
	Short: "Write record values from a JSON object (partial update)",
	Args:  cobra.ExactArgs(3),
	RunE:  runValuesSet,
}

func init() {
	rootCmd.AddCommand(valuesCmd)
	valuesCmd.AddCommand(valuesGetCmd, valuesSetCmd)
}

func parseRecordID(s string) (types.RecordID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("record id %q is not a number", s)
	}
	return types.RecordID(n), nil
}

func runValuesGet(cmd *cobra.Command, args []string) error {
	e, _, closer, err := openEngine()
	if err != nil {
		return err
	}
	defer closer()

	record, err := parseRecordID(args[1])
	if err != nil {
		return err
	}
	values, err := e.GetValues(cmd.Context(), args[0], record)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runValuesSet(cmd *cobra.Command, args []string) error {
	e, _, closer, err := openEngine()
	if err != nil {
		return err
	}
	defer closer()

	record, err := parseRecordID(args[1])
	if err != nil {
		return err
	}
	var values map[string]any
	if err := json.Unmarshal([]byte(args[2]), &values); err != nil {
		return fmt.Errorf("invalid values JSON: %w", err)
	}
	if err := e.SetValues(cmd.Context(), args[0], record, values); err != nil {
		return err
	}
	fmt.Printf("wrote %d values for record %d in group %s\n", len(values), record, args[0])
	return nil
}
