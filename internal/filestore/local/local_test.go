package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estimatesync/internal"
	"estimatesync/internal/filestore"
)

func TestListDownloadMove(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	older := filepath.Join(dir, "lee.xlsx")
	newer := filepath.Join(dir, "blake.pdf")
	require.NoError(t, os.WriteFile(older, []byte("PK\x03\x04"), 0o600))
	require.NoError(t, os.WriteFile(newer, []byte("%PDF-1.4"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("# notes"), 0o600))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	s := New()
	processed, err := s.EnsureFolder(ctx, dir, "processed")
	require.NoError(t, err)

	files, err := s.List(ctx, dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "blake.pdf", files[0].Name)
	assert.Equal(t, filestore.MimePDF, files[0].MimeType)
	assert.Equal(t, filestore.MimeXLSX, files[1].MimeType)

	content, err := s.Download(ctx, files[0])
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(content))

	require.NoError(t, s.Move(ctx, files[0].ID, dir, processed))
	_, err = os.Stat(filepath.Join(processed, "blake.pdf"))
	require.NoError(t, err)

	files, err = s.List(ctx, dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestDownloadMissingFile(t *testing.T) {
	_, err := New().Download(context.Background(), filestore.File{ID: filepath.Join(t.TempDir(), "gone.pdf")})
	require.ErrorIs(t, err, internal.ErrNotFound)
}
