package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldkeeper/fieldkeeper/internal/schema"
)

var exportCmd = &cobra.Command{
	Use:   "export <group>",
	Short: "Export a group's schema as a portable document",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <group> <file>",
	Short: "Import a schema document into a group",
	Long: `Creates the group when missing. Fields whose machine names already
exist are updated in place, so re-running an import never duplicates.`,
	Args: cobra.ExactArgs(2),
	RunE: runImport,
}

var (
	transferFormat string
	importLabel    string
)

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)
	exportCmd.Flags().StringVar(&transferFormat, "format", "", "document format: json or yaml (default from config)")
	importCmd.Flags().StringVar(&transferFormat, "format", "", "document format: json or yaml (default from config)")
	importCmd.Flags().StringVar(&importLabel, "label", "", "group label when the import creates the group")
}

func documentFormat(configured string) schema.Format {
	if transferFormat != "" {
		return schema.Format(transferFormat)
	}
	return schema.Format(configured)
}

func runExport(cmd *cobra.Command, args []string) error {
	e, cfg, closer, err := openEngine()
	if err != nil {
		return err
	}
	defer closer()

	data, err := e.ExportSchema(cmd.Context(), args[0], documentFormat(cfg.ExportFormat))
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	e, cfg, closer, err := openEngine()
	if err != nil {
		return err
	}
	defer closer()

	data, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[1], err)
	}
	if err := e.ImportSchema(cmd.Context(), args[0], importLabel, data, documentFormat(cfg.ExportFormat)); err != nil {
		return err
	}
	fmt.Printf("imported schema into group %s\n", args[0])
	return nil
}
