// Package local implements filestore.Store on a directory tree, for running
// the sync against files on disk.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"estimatesync/internal"
	"estimatesync/internal/filestore"
	"estimatesync/internal/util"
)

const service = "local"

type Store struct{}

func New() *Store { return &Store{} }

// List returns supported files directly inside dir, newest first.
func (s *Store) List(ctx context.Context, dir string) ([]filestore.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, wrap("list", err)
	}

	var out []filestore.File
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		mimeType := mimeFor(e.Name())
		if mimeType == "" {
			continue
		}
		out = append(out, filestore.File{
			ID:        filepath.Join(dir, e.Name()),
			Name:      e.Name(),
			MimeType:  mimeType,
			CreatedAt: info.ModTime(),
			Size:      info.Size(),
		})
	}
	slices.SortStableFunc(out, func(a, b filestore.File) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *Store) Download(_ context.Context, file filestore.File) ([]byte, error) {
	content, err := os.ReadFile(file.ID)
	if err != nil {
		return nil, wrap("download", err)
	}
	return content, nil
}

func (s *Store) Move(_ context.Context, fileID, _, toFolder string) error {
	if err := os.Rename(fileID, filepath.Join(toFolder, filepath.Base(fileID))); err != nil {
		return wrap("move", err)
	}
	return nil
}

func (s *Store) EnsureFolder(_ context.Context, parent, name string) (string, error) {
	dir := filepath.Join(parent, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", wrap("ensure_folder", err)
	}
	return dir, nil
}

func mimeFor(name string) string {
	switch util.KindFromName(name, "") {
	case internal.KindPDF:
		return filestore.MimePDF
	case internal.KindXLSX:
		return filestore.MimeXLSX
	case internal.KindHTML:
		return filestore.MimeHTML
	case internal.KindImage:
		if filepath.Ext(name) == ".png" {
			return filestore.MimePNG
		}
		return filestore.MimeJPEG
	}
	return ""
}

func wrap(op string, err error) error {
	if os.IsNotExist(err) {
		err = fmt.Errorf("%w: %w", internal.ErrNotFound, err)
	}
	return &internal.ExternalServiceError{Service: service, Op: op, Err: err}
}
