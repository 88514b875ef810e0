// Package store implements Mira's persistence layer: a single SQLite database
// per workspace holding projects, sessions, memory, code intelligence, the
// operation journal, budget ledger, and sudo state. Vector search runs through
// sqlite-vec when the binary is built with the sqlite_vec build tag and cgo;
// otherwise recall falls back to the FTS5 keyword index alone.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ConaryLabs/mira/internal/logging"
)

// Store is the single entry point onto a workspace's SQLite database.
type Store struct {
	db        *sql.DB
	mu        sync.RWMutex
	path      string
	vectorExt bool
}

// Open creates the database (and its directory) if needed, applies PRAGMA
// tuning, runs schema creation and migrations, and probes for sqlite-vec.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	logging.Store("opening store at %s", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.StoreDebug("pragma %q failed: %v", pragma, err)
		}
	}

	s := &Store{db: db, path: path}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s.vectorExt = detectVecExtension(db)
	if s.vectorExt {
		logging.Store("sqlite-vec extension detected; ANN recall enabled")
		if err := s.createVectorTables(); err != nil {
			db.Close()
			return nil, fmt.Errorf("create vector tables: %w", err)
		}
	} else {
		logging.Get(logging.CategoryStore).Warn("sqlite-vec unavailable; falling back to keyword-only recall")
	}

	return s, nil
}

// DB exposes the underlying handle for packages that need direct query access
// (memory, codeintel, operation, sudo, budget all live in the same database).
func (s *Store) DB() *sql.DB { return s.db }

// HasVectorIndex reports whether ANN search is available in this store.
func (s *Store) HasVectorIndex() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vectorExt
}

func (s *Store) Close() error {
	return s.db.Close()
}

func tableExists(db *sql.DB, table string) bool {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count); err != nil {
		return false
	}
	return count > 0
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
