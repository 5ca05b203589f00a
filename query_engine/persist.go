package query_engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/xerrors"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrUnknownFormat is returned for a snapshot format other than json or sqlite
var ErrUnknownFormat = errors.New("unknown index format")

// Snapshot formats
const (
	FormatJSON   = "json"
	FormatSQLite = "sqlite"
)

const createDocumentsTable = `
CREATE TABLE IF NOT EXISTS documents (
	url        TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	body       TEXT NOT NULL,
	indexed_at INTEGER NOT NULL
)`

// snapshot is the on-disk JSON layout of a web index
type snapshot struct {
	Documents []*Document `json:"documents"`
}

// FormatForPath picks the snapshot format from the file extension
func FormatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	default:
		return FormatJSON
	}
}

// SaveIndex writes the index to path in the format implied by its extension
func SaveIndex(path string, idx *WebIndex) error {
	return SaveIndexAs(path, FormatForPath(path), idx)
}

// SaveIndexAs writes the index to path in the given format
func SaveIndexAs(path, format string, idx *WebIndex) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return xerrors.Errorf("failed to create index directory: %w", err)
		}
	}

	switch format {
	case FormatJSON:
		return saveJSON(path, idx)
	case FormatSQLite:
		return saveSQLite(path, idx)
	default:
		return xerrors.Errorf("format %q: %w", format, ErrUnknownFormat)
	}
}

// LoadIndex reads an index snapshot from path
func LoadIndex(path string) (*WebIndex, error) {
	return LoadIndexAs(path, FormatForPath(path))
}

// LoadIndexAs reads an index snapshot in the given format
func LoadIndexAs(path, format string) (*WebIndex, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, xerrors.Errorf("failed to stat index %s: %w", path, err)
	}

	switch format {
	case FormatJSON:
		return loadJSON(path)
	case FormatSQLite:
		return loadSQLite(path)
	default:
		return nil, xerrors.Errorf("format %q: %w", format, ErrUnknownFormat)
	}
}

func saveJSON(path string, idx *WebIndex) error {
	data, err := json.MarshalIndent(snapshot{Documents: idx.Documents()}, "", "  ")
	if err != nil {
		return xerrors.Errorf("failed to encode index: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return xerrors.Errorf("failed to write index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return xerrors.Errorf("failed to replace index: %w", err)
	}
	return nil
}

func loadJSON(path string) (*WebIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to read index: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, xerrors.Errorf("failed to parse index: %w", err)
	}

	idx := NewWebIndex()
	for _, doc := range snap.Documents {
		if doc == nil || doc.URL == "" {
			continue
		}
		idx.Add(doc)
	}
	return idx, nil
}

func openSQLite(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, xerrors.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, xerrors.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func saveSQLite(path string, idx *WebIndex) (err error) {
	db, err := openSQLite(path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, createDocumentsTable); err != nil {
		return xerrors.Errorf("failed to create documents table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// a snapshot replaces whatever the file held before
	if _, err = tx.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return xerrors.Errorf("failed to clear documents: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO documents (url, title, body, indexed_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return xerrors.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, doc := range idx.Documents() {
		if _, err = stmt.ExecContext(ctx, doc.URL, doc.Title, doc.Body, doc.IndexedAt.UnixNano()); err != nil {
			return xerrors.Errorf("failed to insert %s: %w", doc.URL, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return xerrors.Errorf("failed to commit index: %w", err)
	}
	return nil
}

func loadSQLite(path string) (*WebIndex, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	rows, err := db.Query("SELECT url, title, body, indexed_at FROM documents")
	if err != nil {
		return nil, xerrors.Errorf("failed to query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	idx := NewWebIndex()
	for rows.Next() {
		var (
			doc       Document
			indexedAt int64
		)
		if err := rows.Scan(&doc.URL, &doc.Title, &doc.Body, &indexedAt); err != nil {
			return nil, xerrors.Errorf("failed to scan document: %w", err)
		}
		doc.IndexedAt = time.Unix(0, indexedAt).UTC()
		idx.Add(&doc)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Errorf("failed to read documents: %w", err)
	}
	return idx, nil
}
