// Package gcs implements filestore.Store on a Cloud Storage bucket, using
// object name prefixes as folders.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"slices"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"estimatesync/internal"
	"estimatesync/internal/filestore"
	"estimatesync/internal/logging"
	"estimatesync/internal/util"
)

const service = "gcs"

type Store struct {
	client          *storage.Client
	bucket          *storage.BucketHandle
	processedPrefix string
	logger          *slog.Logger
}

// New opens the bucket. A non-empty processedPrefix overrides the folder
// returned by EnsureFolder.
func New(ctx context.Context, bucket, processedPrefix string, logger *slog.Logger, opts ...option.ClientOption) (*Store, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &Store{
		client:          client,
		bucket:          client.Bucket(bucket),
		processedPrefix: folderPrefix(processedPrefix),
		logger:          logging.OrDefault(logger),
	}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// List returns supported objects directly under the prefix; nested
// "subfolders" such as the processed prefix are skipped.
func (s *Store) List(ctx context.Context, folder string) ([]filestore.File, error) {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: folderPrefix(folder), Delimiter: "/"})
	var out []filestore.File
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, wrap("list", err)
		}
		if f, ok := toFile(attrs); ok {
			out = append(out, f)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *Store) Download(ctx context.Context, file filestore.File) ([]byte, error) {
	r, err := s.bucket.Object(file.ID).NewReader(ctx)
	if err != nil {
		return nil, wrap("download", err)
	}
	defer r.Close()

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, wrap("download", err)
	}
	return content, nil
}

// Move copies the object under toFolder and deletes the original. The copy
// only succeeds when the destination does not exist yet; an existing
// destination from an earlier interrupted move is accepted.
func (s *Store) Move(ctx context.Context, fileID, _, toFolder string) error {
	dstName := folderPrefix(toFolder) + path.Base(fileID)
	src := s.bucket.Object(fileID)
	dst := s.bucket.Object(dstName).If(storage.Conditions{DoesNotExist: true})

	if _, err := dst.CopierFrom(src).Run(ctx); err != nil {
		var gerr *googleapi.Error
		if !errors.As(err, &gerr) || gerr.Code != 412 {
			return wrap("move", err)
		}
		s.logger.Warn("gcs destination already exists", "object", dstName)
	}
	if err := src.Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return wrap("move", err)
	}
	s.logger.Info("gcs object moved", "from", fileID, "to", dstName)
	return nil
}

// EnsureFolder needs no upstream call: prefixes exist implicitly.
func (s *Store) EnsureFolder(_ context.Context, parent, name string) (string, error) {
	if s.processedPrefix != "" {
		return s.processedPrefix, nil
	}
	return folderPrefix(path.Join(parent, name)), nil
}

func toFile(attrs *storage.ObjectAttrs) (filestore.File, bool) {
	if attrs.Prefix != "" || strings.HasSuffix(attrs.Name, "/") {
		return filestore.File{}, false
	}
	name := path.Base(attrs.Name)
	mimeType := attrs.ContentType
	if !filestore.Supported(mimeType) {
		mimeType = mimeFromName(name)
	}
	if !filestore.Supported(mimeType) {
		return filestore.File{}, false
	}
	return filestore.File{
		ID:        attrs.Name,
		Name:      name,
		MimeType:  mimeType,
		CreatedAt: attrs.Created,
		Size:      attrs.Size,
	}, true
}

func mimeFromName(name string) string {
	switch util.KindFromName(name, "") {
	case internal.KindPDF:
		return filestore.MimePDF
	case internal.KindXLSX:
		return filestore.MimeXLSX
	case internal.KindImage:
		if strings.HasSuffix(strings.ToLower(name), ".png") {
			return filestore.MimePNG
		}
		return filestore.MimeJPEG
	}
	return ""
}

func folderPrefix(folder string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return ""
	}
	return folder + "/"
}

func sortNewestFirst(files []filestore.File) {
	slices.SortStableFunc(files, func(a, b filestore.File) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

func wrap(op string, err error) error {
	status := 0
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		status = gerr.Code
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		err = fmt.Errorf("%w: %w", internal.ErrNotFound, err)
	}
	return &internal.ExternalServiceError{Service: service, Op: op, Status: status, Err: err}
}
