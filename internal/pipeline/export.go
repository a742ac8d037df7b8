package pipeline

import (
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"estimatesync/internal"
)

const (
	summarySheet   = "Run"
	documentsSheet = "Documents"
)

// ExportBatchToXLSX writes a run summary sheet and one row per document.
func ExportBatchToXLSX(result internal.BatchResult, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		return err
	}
	summary := [][2]any{
		{"run_id", result.RunID},
		{"started_at", timestamp(result.StartedAt)},
		{"finished_at", timestamp(result.FinishedAt)},
		{"processed", result.Processed},
		{"skipped", result.Skipped},
		{"failed", result.Failed},
		{"documents", len(result.Entries)},
	}
	for i, kv := range summary {
		_ = f.SetCellValue(summarySheet, cellName(1, i+1), kv[0])
		_ = f.SetCellValue(summarySheet, cellName(2, i+1), kv[1])
	}

	if _, err := f.NewSheet(documentsSheet); err != nil {
		return err
	}
	headers := []string{
		"file_id", "file_name", "kind", "status", "source", "customer_name",
		"estimate_id", "estimate_number", "line_items", "unresolved_items", "error",
	}
	for i, h := range headers {
		_ = f.SetCellValue(documentsSheet, cellName(i+1, 1), h)
	}

	for i, e := range result.Entries {
		r := i + 2
		set := func(col int, value any) {
			_ = f.SetCellValue(documentsSheet, cellName(col, r), value)
		}

		set(1, e.FileID)
		set(2, e.FileName)
		set(3, string(e.Kind))
		set(4, string(e.Status))
		set(5, e.Source)
		set(6, e.CustomerName)
		set(7, e.EstimateID)
		set(8, e.EstimateNumber)
		set(9, e.LineItems)
		set(10, e.Unresolved)
		set(11, e.Error)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func cellName(col, row int) string {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	return cell
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
