package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"estimatesync/internal/pipeline"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Process every estimate document in the inbox folder",
	RunE:  runSync,
}

var (
	syncOpts   pipeline.ProcessOptions
	syncReport string
)

func init() {
	syncCmd.Flags().BoolVar(&syncOpts.NoMove, "no-move", false, "leave documents in the inbox after processing")
	syncCmd.Flags().BoolVar(&syncOpts.PDFOnly, "pdf-only", false, "only process PDF documents")
	syncCmd.Flags().BoolVar(&syncOpts.ExcelOnly, "excel-only", false, "only process XLSX documents")
	syncCmd.Flags().StringVar(&syncOpts.EstimateID, "estimate-id", "", "attach documents to this existing estimate instead of creating one")
	syncCmd.Flags().IntVar(&syncOpts.Limit, "limit", 0, "process at most N documents")
	syncCmd.Flags().StringVar(&syncReport, "report", "", "write an XLSX run report to this path")
	syncCmd.MarkFlagsMutuallyExclusive("pdf-only", "excel-only")

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if err := a.InitProcessing(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if syncOpts.EstimateID != "" {
		est, err := a.Accounting.GetEstimate(ctx, syncOpts.EstimateID)
		if err != nil {
			return fmt.Errorf("estimate %s: %w", syncOpts.EstimateID, err)
		}
		fmt.Fprintf(out, "attaching to estimate %s (%s, %s)\n", est.Number, est.CustomerName, est.Status)
	}

	result, err := a.Processor.ProcessFolder(ctx, syncOpts)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "sync done run=%s processed=%d skipped=%d failed=%d\n",
		result.RunID, result.Processed, result.Skipped, result.Failed)
	for _, e := range result.Entries {
		line := fmt.Sprintf("  %-9s %s", e.Status, e.FileName)
		if e.EstimateNumber != "" {
			line += " -> " + e.EstimateNumber
		}
		if e.Error != "" {
			line += " (" + e.Error + ")"
		}
		fmt.Fprintln(out, line)
	}

	if strings.TrimSpace(syncReport) != "" {
		if err := pipeline.ExportBatchToXLSX(result, syncReport); err != nil {
			return err
		}
		fmt.Fprintf(out, "report written to %s\n", syncReport)
	}
	return nil
}
