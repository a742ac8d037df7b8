package pipeline

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"estimatesync/internal"
)

func TestExportBatchToXLSX(t *testing.T) {
	started := time.Date(2025, 5, 15, 9, 0, 0, 0, time.UTC)
	result := internal.BatchResult{RunID: "run-1", StartedAt: started, FinishedAt: started.Add(90 * time.Second)}
	result.Add(internal.BatchEntry{
		FileID: "f-1", FileName: "a.pdf", Kind: internal.KindPDF, Status: internal.StatusProcessed,
		Source: StrategyLayout, CustomerName: "Jordan Blake", EstimateID: "est-1", EstimateNumber: "EST-00001",
		LineItems: 3, Unresolved: 1,
	})
	result.Add(internal.BatchEntry{
		FileID: "f-2", FileName: "b.xlsx", Kind: internal.KindXLSX, Status: internal.StatusFailed, Error: "zoho create_estimate: status=400",
	})

	out := filepath.Join(t.TempDir(), "reports", "run-1.xlsx")
	require.NoError(t, ExportBatchToXLSX(result, out))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	require.Len(t, summary, 7)
	assert.Equal(t, []string{"run_id", "run-1"}, summary[0])
	assert.Equal(t, []string{"started_at", "2025-05-15 09:00:00"}, summary[1])
	assert.Equal(t, []string{"processed", "1"}, summary[3])
	assert.Equal(t, []string{"failed", "1"}, summary[5])

	rows, err := f.GetRows(documentsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "file_id", rows[0][0])
	assert.Equal(t, []string{"f-1", "a.pdf", "pdf", "processed", "layout", "Jordan Blake", "est-1", "EST-00001", "3", "1"}, rows[1])
	assert.Equal(t, "failed", rows[2][3])
	assert.Equal(t, "zoho create_estimate: status=400", rows[2][10])
}
