// Package filestore abstracts the folder of incoming estimate documents.
package filestore

import (
	"context"
	"time"
)

const (
	MimePDF         = "application/pdf"
	MimeXLSX        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimeHTML        = "text/html"
	MimePNG         = "image/png"
	MimeJPEG        = "image/jpeg"
	MimeGoogleDoc   = "application/vnd.google-apps.document"
	MimeGoogleSheet = "application/vnd.google-apps.spreadsheet"
	MimeFolder      = "application/vnd.google-apps.folder"
)

// SupportedMimeTypes are the document types listed from an inbox folder.
var SupportedMimeTypes = []string{MimePDF, MimeXLSX, MimePNG, MimeJPEG, MimeGoogleDoc, MimeGoogleSheet}

type File struct {
	ID        string
	Name      string
	MimeType  string
	CreatedAt time.Time
	Size      int64
}

// Store lists, downloads and moves estimate documents. Folders are provider
// specific: a Drive folder id, a bucket prefix or a local directory.
type Store interface {
	List(ctx context.Context, folder string) ([]File, error)
	Download(ctx context.Context, file File) ([]byte, error)
	Move(ctx context.Context, fileID, fromFolder, toFolder string) error
	EnsureFolder(ctx context.Context, parent, name string) (string, error)
}

func Supported(mimeType string) bool {
	for _, m := range SupportedMimeTypes {
		if m == mimeType {
			return true
		}
	}
	return false
}
