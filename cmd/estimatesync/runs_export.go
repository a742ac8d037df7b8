package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"estimatesync/internal/pipeline"
)

var runsExportCmd = &cobra.Command{
	Use:   "runs:export",
	Short: "Export a recorded run to XLSX",
	RunE:  runRunsExport,
}

var (
	exportRunID string
	exportOut   string
)

func init() {
	runsExportCmd.Flags().StringVar(&exportRunID, "run-id", "", "run to export (default: latest)")
	runsExportCmd.Flags().StringVar(&exportOut, "out", "", "output xlsx path (default: OUTPUT_DIR/<run-id>.xlsx)")

	rootCmd.AddCommand(runsExportCmd)
}

func runRunsExport(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	runID := exportRunID
	if runID == "" {
		if runID, err = a.DB.LatestRunID(); err != nil {
			return fmt.Errorf("latest run: %w", err)
		}
	}
	run, err := a.DB.GetRun(runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("no run with id %s", runID)
	}

	out := exportOut
	if out == "" {
		out = filepath.Join(a.Config.OutputDir, runID+".xlsx")
	}
	if err := pipeline.ExportBatchToXLSX(*run, out); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d documents to %s\n", len(run.Entries), out)
	return nil
}
