package store

import (
	"database/sql"
	"fmt"

	"github.com/ConaryLabs/mira/internal/logging"
)

// CurrentSchemaVersion tracks additive column migrations applied on top of
// createSchema's base tables. Bump it whenever pendingMigrations grows.
const CurrentSchemaVersion = 6

// columnMigration describes one additive ALTER TABLE ... ADD COLUMN.
type columnMigration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations lists columns that may be missing on a database created
// by an earlier schema version. createSchema always creates the full set for
// a brand new database, so these only fire against pre-existing ones.
var pendingMigrations = []columnMigration{
	{"code_symbols", "complexity_hint", "INTEGER NOT NULL DEFAULT 0"},
	{"code_symbols", "doc_comment", "TEXT NOT NULL DEFAULT ''"},
	{"summaries", "covers_from_turn_id", "TEXT"},
	{"summaries", "covers_to_turn_id", "TEXT"},
	{"code_symbols", "qualified_name", "TEXT NOT NULL DEFAULT ''"},
	{"code_symbols", "is_exported", "INTEGER NOT NULL DEFAULT 0"},
	{"code_symbols", "is_test", "INTEGER NOT NULL DEFAULT 0"},
	{"code_calls", "line", "INTEGER NOT NULL DEFAULT 0"},
	{"code_calls", "kind", "TEXT NOT NULL DEFAULT 'direct'"},
	{"code_imports", "imported_symbols", "TEXT NOT NULL DEFAULT ''"},
	{"code_imports", "is_external", "INTEGER NOT NULL DEFAULT 0"},
	{"operations", "result", "TEXT"},
	{"operations", "error", "TEXT"},
	{"session_chain_state", "last_input_tokens", "INTEGER NOT NULL DEFAULT 0"},
	{"session_chain_state", "last_output_tokens", "INTEGER NOT NULL DEFAULT 0"},
	{"session_chain_state", "last_cache_pct", "INTEGER NOT NULL DEFAULT 100"},
	{"memory_entities", "occurrence_count", "INTEGER NOT NULL DEFAULT 0"},
	{"memory_facts", "scope", "TEXT NOT NULL DEFAULT 'project'"},
	{"memory_facts", "fact_type", "TEXT NOT NULL DEFAULT 'general'"},
	{"memory_facts", "category", "TEXT"},
	{"memory_facts", "status", "TEXT NOT NULL DEFAULT 'active'"},
	{"memory_facts", "suspicious", "INTEGER NOT NULL DEFAULT 0"},
	{"memory_facts", "has_entities", "INTEGER NOT NULL DEFAULT 0"},
	{"memory_facts", "has_embedding", "INTEGER NOT NULL DEFAULT 0"},
}

// RunMigrations applies any missing columns. Table-missing and
// column-already-present cases are both treated as no-ops, matching the
// teacher's forgiving migration style: a fresh database has nothing to do
// here because createSchema already created every column.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	applied := 0
	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			continue
		}
		if columnExists(db, m.Table, m.Column) {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate %s.%s: %w", m.Table, m.Column, err)
		}
		applied++
	}
	if applied > 0 {
		logging.Store("applied %d column migrations", applied)
	}
	return nil
}

// ReindexForProvider handles a detected embedding provider or dimension
// change (spec.md §4.3): every has_embedding flag is cleared and matching
// vector rows are dropped so the embedding-batch worker re-enqueues
// everything against the new provider, while code_symbols/turns/FTS rows are
// always preserved untouched.
func (s *Store) ReindexForProvider(newDimensions int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.Store("provider/dimension change detected (dims=%d); clearing embeddings for reindex", newDimensions)

	if _, err := s.db.Exec("UPDATE turns SET has_embedding = 0"); err != nil {
		return fmt.Errorf("reset turn embeddings: %w", err)
	}
	if _, err := s.db.Exec("UPDATE code_symbols SET has_embedding = 0"); err != nil {
		return fmt.Errorf("reset symbol embeddings: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM pending_embeddings"); err != nil {
		return fmt.Errorf("clear pending embedding queue: %w", err)
	}

	if err := s.dropVectorTables(); err != nil {
		return fmt.Errorf("drop vector tables: %w", err)
	}
	if s.vectorExt {
		if err := s.createVectorTablesWithDims(newDimensions); err != nil {
			return fmt.Errorf("recreate vector tables: %w", err)
		}
	}

	rows, err := s.db.Query(`SELECT id, project_id, content FROM turns`)
	if err != nil {
		return fmt.Errorf("enumerate turns for reindex: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, projectID, content string
		if err := rows.Scan(&id, &projectID, &content); err != nil {
			continue
		}
		if err := s.EnqueueEmbedding("turn", id, projectID, content); err != nil {
			logging.Get(logging.CategoryStore).Warn("requeue turn %s for embedding: %v", id, err)
		}
	}

	symRows, err := s.db.Query(`SELECT id, project_id, name FROM code_symbols`)
	if err != nil {
		return fmt.Errorf("enumerate symbols for reindex: %w", err)
	}
	defer symRows.Close()
	for symRows.Next() {
		var id, projectID, name string
		if err := symRows.Scan(&id, &projectID, &name); err != nil {
			continue
		}
		if err := s.EnqueueEmbedding("symbol", id, projectID, name); err != nil {
			logging.Get(logging.CategoryStore).Warn("requeue symbol %s for embedding: %v", id, err)
		}
	}

	return nil
}
