// Package statedb persists filter history in a SQLite database shared by all
// revlog processes of a user.
package statedb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SchemaVersion is stored in metadata.schema_version.
const SchemaVersion = 1

// FileName is the database file inside the revlog directory.
const FileName = "state.db"

// StateDB wraps the SQLite database. Safe for concurrent use; several
// processes can share one file through WAL mode and a busy timeout.
type StateDB struct {
	db *sql.DB
}

// FilterEntry is one remembered filter query.
type FilterEntry struct {
	Repo     string
	Query    string
	UsedAt   time.Time
	UseCount int
}

// Open creates or opens the database at path.
func Open(path string) (*StateDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("statedb: mkdir: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := "file:" + path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("statedb: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("statedb: open %s: %w", path, err)
	}
	return &StateDB{db: db}, nil
}

// Close checkpoints the WAL and closes the database.
func (s *StateDB) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// Migrate creates missing tables and records the schema version.
func (s *StateDB) Migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("statedb: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []struct{ name, sql string }{
		{"metadata", `
			CREATE TABLE IF NOT EXISTS metadata (
				key   TEXT PRIMARY KEY,
				value TEXT NOT NULL
			)`},
		{"filter_history", `
			CREATE TABLE IF NOT EXISTS filter_history (
				repo      TEXT NOT NULL,
				query     TEXT NOT NULL,
				used_at   INTEGER NOT NULL,
				use_count INTEGER NOT NULL DEFAULT 1,
				PRIMARY KEY (repo, query)
			)`},
		{"filter_history index", `
			CREATE INDEX IF NOT EXISTS filter_history_recent
				ON filter_history (repo, used_at DESC)`},
	}
	for _, st := range stmts {
		if _, err := tx.Exec(st.sql); err != nil {
			return fmt.Errorf("statedb: create %s: %w", st.name, err)
		}
	}

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)`,
		strconv.Itoa(SchemaVersion),
	); err != nil {
		return fmt.Errorf("statedb: set schema version: %w", err)
	}
	return tx.Commit()
}

// --- Filter history ---

// RecordFilter remembers query for repo, bumping its use count, and keeps at
// most maxEntries queries per repo (0 keeps all). Blank queries are ignored.
func (s *StateDB) RecordFilter(repo, query string, maxEntries int) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("statedb: begin record: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixNano()
	if _, err := tx.Exec(`
		INSERT INTO filter_history (repo, query, used_at, use_count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT (repo, query)
		DO UPDATE SET used_at = excluded.used_at, use_count = use_count + 1
	`, repo, query, now); err != nil {
		return fmt.Errorf("statedb: record filter: %w", err)
	}

	if maxEntries > 0 {
		if _, err := tx.Exec(`
			DELETE FROM filter_history
			WHERE repo = ? AND query NOT IN (
				SELECT query FROM filter_history
				WHERE repo = ?
				ORDER BY used_at DESC, rowid DESC
				LIMIT ?
			)
		`, repo, repo, maxEntries); err != nil {
			return fmt.Errorf("statedb: trim history: %w", err)
		}
	}

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO metadata (key, value) VALUES ('last_modified', ?)`,
		strconv.FormatInt(now, 10),
	); err != nil {
		return fmt.Errorf("statedb: touch: %w", err)
	}
	return tx.Commit()
}

// RecentFilters returns up to limit queries for repo, most recent first.
// An empty repo lists every repository.
func (s *StateDB) RecentFilters(repo string, limit int) ([]FilterEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT repo, query, used_at, use_count FROM filter_history
		WHERE ? = '' OR repo = ?
		ORDER BY used_at DESC, rowid DESC
		LIMIT ?
	`, repo, repo, limit)
	if err != nil {
		return nil, fmt.Errorf("statedb: recent filters: %w", err)
	}
	defer rows.Close()

	var out []FilterEntry
	for rows.Next() {
		var e FilterEntry
		var usedAt int64
		if err := rows.Scan(&e.Repo, &e.Query, &usedAt, &e.UseCount); err != nil {
			return nil, fmt.Errorf("statedb: scan filter: %w", err)
		}
		e.UsedAt = time.Unix(0, usedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClearFilterHistory forgets the queries of repo, or of every repo when repo
// is empty.
func (s *StateDB) ClearFilterHistory(repo string) error {
	if _, err := s.db.Exec(`DELETE FROM filter_history WHERE ? = '' OR repo = ?`, repo, repo); err != nil {
		return fmt.Errorf("statedb: clear history: %w", err)
	}
	return s.Touch()
}

// --- Metadata ---

// SetMeta sets a metadata key.
func (s *StateDB) SetMeta(key, value string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)", key, value)
	return err
}

// GetMeta returns a metadata value, or "" if the key is unset.
func (s *StateDB) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// Touch bumps last_modified so other processes notice a change.
func (s *StateDB) Touch() error {
	return s.SetMeta("last_modified", strconv.FormatInt(time.Now().UnixNano(), 10))
}

// LastModified returns the last_modified stamp, 0 if never set.
func (s *StateDB) LastModified() (int64, error) {
	val, err := s.GetMeta("last_modified")
	if err != nil || val == "" {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}
