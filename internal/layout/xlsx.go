package layout

import (
	"bytes"

	"github.com/xuri/excelize/v2"

	"estimatesync/internal"
)

func parseXLSX(content []byte) (internal.RawCandidate, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return internal.RawCandidate{}, err
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		normalized := make([][]string, 0, len(rows))
		for _, row := range rows {
			normalized = append(normalized, normalizeCells(row))
		}
		if candidate, err := candidateFrom(normalized); err == nil {
			return candidate, nil
		}
	}
	return internal.RawCandidate{}, errNoTable
}
