// Package storage is the SQLite ledger of sync runs, per-document outcomes
// and small metadata stamps.
package storage

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"estimatesync/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)

	for _, pragma := range []string{`PRAGMA journal_mode = WAL;`, `PRAGMA busy_timeout = 5000;`} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  startedAt TEXT NOT NULL,
  finishedAt TEXT,
  processed INTEGER NOT NULL DEFAULT 0,
  skipped INTEGER NOT NULL DEFAULT 0,
  failed INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS documents (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  fileId TEXT NOT NULL,
  fileName TEXT NOT NULL,
  kind TEXT NOT NULL,
  status TEXT NOT NULL,
  source TEXT,
  customerName TEXT,
  estimateId TEXT,
  estimateNumber TEXT,
  lineItems INTEGER NOT NULL DEFAULT 0,
  unresolved INTEGER NOT NULL DEFAULT 0,
  error TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(runId, fileId),
  FOREIGN KEY(runId) REFERENCES runs(id)
);
CREATE INDEX IF NOT EXISTS idx_documents_fileId ON documents(fileId);
CREATE INDEX IF NOT EXISTS idx_documents_runId ON documents(runId);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) InsertRun(runID string, startedAt time.Time) error {
	_, err := d.conn.Exec(`INSERT INTO runs (id, startedAt) VALUES (?, ?)`, runID, startedAt.UTC().Format(time.RFC3339))
	return err
}

func (d *DB) FinishRun(result internal.BatchResult) error {
	_, err := d.conn.Exec(`
UPDATE runs SET finishedAt = ?, processed = ?, skipped = ?, failed = ?
WHERE id = ?
`, result.FinishedAt.UTC().Format(time.RFC3339), result.Processed, result.Skipped, result.Failed, result.RunID)
	return err
}

// RecordDocument upserts the outcome of one document within a run, so an
// early "submitted" entry is replaced by the final one.
func (d *DB) RecordDocument(runID string, entry internal.BatchEntry) error {
	_, err := d.conn.Exec(`
INSERT INTO documents (runId, fileId, fileName, kind, status, source, customerName, estimateId, estimateNumber, lineItems, unresolved, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(runId, fileId) DO UPDATE SET
  fileName=excluded.fileName,
  kind=excluded.kind,
  status=excluded.status,
  source=excluded.source,
  customerName=excluded.customerName,
  estimateId=excluded.estimateId,
  estimateNumber=excluded.estimateNumber,
  lineItems=excluded.lineItems,
  unresolved=excluded.unresolved,
  error=excluded.error,
  updatedAt=CURRENT_TIMESTAMP
`, runID, entry.FileID, entry.FileName, string(entry.Kind), string(entry.Status), entry.Source, entry.CustomerName,
		entry.EstimateID, entry.EstimateNumber, entry.LineItems, entry.Unresolved, entry.Error)
	return err
}

const documentColumns = `fileId, fileName, kind, status, source, customerName, estimateId, estimateNumber, lineItems, unresolved, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (internal.BatchEntry, error) {
	var (
		entry                                                 internal.BatchEntry
		kind, status                                          string
		source, customer, estimateID, estimateNumber, errText sql.NullString
	)
	if err := row.Scan(&entry.FileID, &entry.FileName, &kind, &status, &source, &customer,
		&estimateID, &estimateNumber, &entry.LineItems, &entry.Unresolved, &errText); err != nil {
		return internal.BatchEntry{}, err
	}
	entry.Kind = internal.DocumentKind(kind)
	entry.Status = internal.DocumentStatus(status)
	entry.Source = source.String
	entry.CustomerName = customer.String
	entry.EstimateID = estimateID.String
	entry.EstimateNumber = estimateNumber.String
	entry.Error = errText.String
	return entry, nil
}

// LastDocument returns the most recent ledger entry for a file, or nil.
func (d *DB) LastDocument(fileID string) (*internal.BatchEntry, error) {
	row := d.conn.QueryRow(`SELECT `+documentColumns+` FROM documents WHERE fileId = ? ORDER BY id DESC LIMIT 1`, fileID)
	entry, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (d *DB) ListRunDocuments(runID string) ([]internal.BatchEntry, error) {
	rows, err := d.conn.Query(`SELECT `+documentColumns+` FROM documents WHERE runId = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.BatchEntry
	for rows.Next() {
		entry, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// GetRun loads a run with its document entries, or nil when unknown.
func (d *DB) GetRun(runID string) (*internal.BatchResult, error) {
	var (
		result     internal.BatchResult
		startedAt  string
		finishedAt sql.NullString
	)
	err := d.conn.QueryRow(`SELECT id, startedAt, finishedAt, processed, skipped, failed FROM runs WHERE id = ?`, runID).
		Scan(&result.RunID, &startedAt, &finishedAt, &result.Processed, &result.Skipped, &result.Failed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	result.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	if finishedAt.Valid {
		result.FinishedAt, _ = time.Parse(time.RFC3339, finishedAt.String)
	}

	result.Entries, err = d.ListRunDocuments(runID)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// LatestRunID returns the id of the most recently started run.
func (d *DB) LatestRunID() (string, error) {
	var id string
	err := d.conn.QueryRow(`SELECT id FROM runs ORDER BY startedAt DESC, rowid DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", internal.ErrNotFound
	}
	return id, err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
