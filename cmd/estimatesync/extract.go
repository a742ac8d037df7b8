package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"estimatesync/internal/app"
	"estimatesync/internal/config"
	"estimatesync/internal/logging"
	"estimatesync/internal/pipeline"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run the extraction pipeline on a local file and print the record",
	RunE:  runExtract,
}

var (
	extractFile   string
	extractJSON   bool
	extractStrict bool
)

func init() {
	extractCmd.Flags().StringVarP(&extractFile, "file", "f", "", "path to a PDF, XLSX, HTML or image estimate")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "print the record as JSON")
	extractCmd.Flags().BoolVar(&extractStrict, "strict", false, "fail instead of printing the default record")
	_ = extractCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(extractCmd)
}

// runExtract needs no ledger or credentials, only the extractor.
func runExtract(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if extractStrict {
		cfg.ExtractFailLoudly = true
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	extractor := app.NewExtractor(cfg, logger, nil)

	rec, err := pipeline.ExtractFile(cmd.Context(), extractor, extractFile, extractStrict)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if extractJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	fmt.Fprintf(out, "source:    %s\n", rec.Source)
	fmt.Fprintf(out, "customer:  %s\n", rec.CustomerName)
	fmt.Fprintf(out, "reference: %s\n", rec.ReferenceNumber)
	fmt.Fprintf(out, "date:      %s\n", rec.Date)
	for _, li := range rec.LineItems {
		fmt.Fprintf(out, "  %-40s %3d x %s\n", li.Name, li.Quantity, li.Rate.StringFixed(2))
	}
	fmt.Fprintf(out, "total:     %s\n", rec.Total().StringFixed(2))
	return nil
}
