package util

import (
	"bytes"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"estimatesync/internal"
)

var (
	magicPDF  = []byte("%PDF-")
	magicZip  = []byte("PK\x03\x04")
	magicPNG  = []byte("\x89PNG\r\n\x1a\n")
	magicJPEG = []byte{0xFF, 0xD8, 0xFF}
	magicTIFF = [][]byte{[]byte("II*\x00"), []byte("MM\x00*")}
)

// SniffKind classifies a document from its leading bytes.
func SniffKind(content []byte) internal.DocumentKind {
	head := content
	if len(head) > 1024 {
		head = head[:1024]
	}
	trimmed := bytes.TrimLeft(head, " \t\r\n\uFEFF")

	switch {
	case bytes.HasPrefix(trimmed, magicPDF):
		return internal.KindPDF
	case bytes.HasPrefix(head, magicZip):
		return internal.KindXLSX
	case bytes.HasPrefix(head, magicPNG), bytes.HasPrefix(head, magicJPEG):
		return internal.KindImage
	}
	for _, m := range magicTIFF {
		if bytes.HasPrefix(head, m) {
			return internal.KindImage
		}
	}

	lower := bytes.ToLower(trimmed)
	if bytes.HasPrefix(lower, []byte("<!doctype html")) || bytes.HasPrefix(lower, []byte("<html")) ||
		bytes.Contains(lower, []byte("<table")) || bytes.Contains(lower, []byte("<body")) {
		return internal.KindHTML
	}
	if len(content) > 0 && utf8.Valid(head) {
		return internal.KindText
	}
	return internal.KindUnknown
}

// KindFromName maps a file name or MIME type to a document kind.
func KindFromName(name, mimeType string) internal.DocumentKind {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "application/pdf":
		return internal.KindPDF
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return internal.KindXLSX
	case "text/html", "application/vnd.google-apps.document":
		return internal.KindHTML
	case "image/png", "image/jpeg", "image/tiff":
		return internal.KindImage
	case "text/plain":
		return internal.KindText
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return internal.KindPDF
	case ".xlsx", ".xlsm":
		return internal.KindXLSX
	case ".html", ".htm":
		return internal.KindHTML
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff":
		return internal.KindImage
	case ".txt":
		return internal.KindText
	}
	return internal.KindUnknown
}
