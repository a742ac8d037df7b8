package pipeline

import (
	"estimatesync/internal"
	"estimatesync/internal/util"
)

// DetectDocumentKind prefers what the content says over the file name: a
// Drive PDF named "estimate.xlsx" is still a PDF. Text content defers to the
// name or MIME type, which may know it is HTML.
func DetectDocumentKind(name, mimeType string, content []byte) internal.DocumentKind {
	if len(content) > 0 {
		switch sniffed := util.SniffKind(content); sniffed {
		case internal.KindPDF, internal.KindXLSX, internal.KindImage, internal.KindHTML:
			return sniffed
		case internal.KindText:
			if byName := util.KindFromName(name, mimeType); byName == internal.KindHTML {
				return byName
			}
			return sniffed
		}
	}
	return util.KindFromName(name, mimeType)
}
