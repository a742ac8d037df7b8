// Package drive implements filestore.Store on a Google Drive folder.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"estimatesync/internal"
	"estimatesync/internal/filestore"
	"estimatesync/internal/logging"
)

const (
	service   = "drive"
	fileField = "id, name, mimeType, createdTime, size, parents"
)

type Store struct {
	svc    *drive.Service
	logger *slog.Logger
}

// New authenticates with the credentials file (service account or
// authorized user JSON) and builds the Drive client.
func New(ctx context.Context, credentialsFile string, logger *slog.Logger, opts ...option.ClientOption) (*Store, error) {
	if credentialsFile != "" {
		data, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read google credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, drive.DriveScope)
		if err != nil {
			return nil, fmt.Errorf("parse google credentials: %w", err)
		}
		opts = append([]option.ClientOption{option.WithCredentials(creds)}, opts...)
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Store{svc: svc, logger: logging.OrDefault(logger)}, nil
}

// List returns the supported documents directly inside folderID, newest first.
func (s *Store) List(ctx context.Context, folderID string) ([]filestore.File, error) {
	var out []filestore.File
	call := s.svc.Files.List().
		Q(listQuery(folderID)).
		OrderBy("createdTime desc").
		Fields(googleapi.Field("nextPageToken, files(" + fileField + ")")).
		PageSize(100)
	err := call.Pages(ctx, func(page *drive.FileList) error {
		for _, f := range page.Files {
			out = append(out, toFile(f))
		}
		return nil
	})
	if err != nil {
		return nil, wrap("list", err)
	}
	return out, nil
}

func listQuery(folderID string) string {
	mimes := make([]string, 0, len(filestore.SupportedMimeTypes))
	for _, m := range filestore.SupportedMimeTypes {
		mimes = append(mimes, fmt.Sprintf("mimeType='%s'", m))
	}
	return fmt.Sprintf("'%s' in parents and trashed = false and (%s)", escape(folderID), strings.Join(mimes, " or "))
}

// Download fetches the file content. Google Docs are exported as HTML and
// Google Sheets as XLSX.
func (s *Store) Download(ctx context.Context, file filestore.File) ([]byte, error) {
	var (
		body io.ReadCloser
		err  error
	)
	switch file.MimeType {
	case filestore.MimeGoogleDoc:
		body, err = s.export(ctx, file.ID, filestore.MimeHTML)
	case filestore.MimeGoogleSheet:
		body, err = s.export(ctx, file.ID, filestore.MimeXLSX)
	default:
		var resp *http.Response
		resp, err = s.svc.Files.Get(file.ID).Context(ctx).Download()
		if err == nil {
			body = resp.Body
		}
	}
	if err != nil {
		return nil, wrap("download", err)
	}
	defer body.Close()

	content, err := io.ReadAll(body)
	if err != nil {
		return nil, wrap("download", err)
	}
	s.logger.Debug("drive file downloaded", "file_id", file.ID, "name", file.Name, "bytes", len(content))
	return content, nil
}

func (s *Store) export(ctx context.Context, fileID, mimeType string) (io.ReadCloser, error) {
	resp, err := s.svc.Files.Export(fileID, mimeType).Context(ctx).Download()
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Move reparents the file. When fromFolder is empty every current parent is
// removed.
func (s *Store) Move(ctx context.Context, fileID, fromFolder, toFolder string) error {
	remove := fromFolder
	if remove == "" {
		f, err := s.svc.Files.Get(fileID).Fields("parents").Context(ctx).Do()
		if err != nil {
			return wrap("move", err)
		}
		remove = strings.Join(f.Parents, ",")
	}
	_, err := s.svc.Files.Update(fileID, &drive.File{}).
		AddParents(toFolder).
		RemoveParents(remove).
		Fields("id, parents").
		Context(ctx).
		Do()
	if err != nil {
		return wrap("move", err)
	}
	s.logger.Info("drive file moved", "file_id", fileID, "to", toFolder)
	return nil
}

// EnsureFolder returns the id of the named child folder, creating it when
// missing.
func (s *Store) EnsureFolder(ctx context.Context, parent, name string) (string, error) {
	q := fmt.Sprintf("name='%s' and '%s' in parents and mimeType='%s' and trashed = false",
		escape(name), escape(parent), filestore.MimeFolder)
	list, err := s.svc.Files.List().Q(q).Fields("files(id, name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", wrap("ensure_folder", err)
	}
	if len(list.Files) > 0 {
		return list.Files[0].Id, nil
	}

	created, err := s.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: filestore.MimeFolder,
		Parents:  []string{parent},
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", wrap("ensure_folder", err)
	}
	s.logger.Info("drive folder created", "name", name, "folder_id", created.Id)
	return created.Id, nil
}

func toFile(f *drive.File) filestore.File {
	out := filestore.File{ID: f.Id, Name: f.Name, MimeType: f.MimeType, Size: f.Size}
	if t, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
		out.CreatedAt = t
	}
	return out
}

func escape(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `'`, `\'`)
}

func wrap(op string, err error) error {
	status := 0
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		status = gerr.Code
	}
	return &internal.ExternalServiceError{Service: service, Op: op, Status: status, Err: err}
}
