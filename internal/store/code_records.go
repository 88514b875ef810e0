package store

import (
	"database/sql"
	"fmt"

	"github.com/ConaryLabs/mira/internal/ids"
)

// CodeFile is one indexed source file; content_hash gates re-parsing so an
// unchanged file is never re-ingested.
type CodeFile struct {
	ID            string
	ProjectID     string
	Path          string
	Language      string
	ContentHash   string
	LastScannedAt string
}

// CodeSymbol is one function/type/method extracted from a CodeFile.
type CodeSymbol struct {
	ID             string
	FileID         string
	ProjectID      string
	Name           string
	QualifiedName  string
	Kind           string // function, method, struct, interface, const, var, class...
	Signature      string
	DocComment     string
	ComplexityHint int
	IsExported     bool
	IsTest         bool
	StartLine      int
	EndLine        int
}

// CodeCall is one call-site edge; CalleeSymbolID is unset until a resolution
// pass matches callee_name against an indexed symbol in the same project.
type CodeCall struct {
	ID             string
	CallerSymbolID string
	CalleeName     string
	CalleeSymbolID sql.NullString
	Line           int
	Kind           string // direct, method
}

// CodeImport is one import statement; IsExternal separates stdlib/vendored
// dependencies from intra-project imports for dependency-surface reporting.
type CodeImport struct {
	ID              string
	FileID          string
	ImportPath      string
	ImportedSymbols string
	IsExternal      bool
}

// FileContentHash returns the stored content hash for path, so a caller can
// skip re-parsing when it matches the file's current on-disk hash.
func (s *Store) FileContentHash(projectID, path string) (string, bool, error) {
	var hash string
	err := s.db.QueryRow(`SELECT content_hash FROM code_files WHERE project_id = ? AND path = ?`, projectID, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return hash, true, nil
}

// UpsertCodeFile records path as scanned with the given content hash,
// creating the code_files row on first sight.
func (s *Store) UpsertCodeFile(projectID, path, language, contentHash string) (*CodeFile, error) {
	_, err := s.db.Exec(`
INSERT INTO code_files(id, project_id, path, language, content_hash)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(project_id, path) DO UPDATE SET
	language = excluded.language,
	content_hash = excluded.content_hash,
	last_scanned_at = CURRENT_TIMESTAMP`,
		ids.New().String(), projectID, path, language, contentHash,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert code file: %w", err)
	}

	var f CodeFile
	err = s.db.QueryRow(`SELECT id, project_id, path, language, content_hash, last_scanned_at FROM code_files WHERE project_id = ? AND path = ?`,
		projectID, path,
	).Scan(&f.ID, &f.ProjectID, &f.Path, &f.Language, &f.ContentHash, &f.LastScannedAt)
	if err != nil {
		return nil, fmt.Errorf("reload code file: %w", err)
	}
	return &f, nil
}

// ReplaceSymbolsForFile drops every symbol (and their calls/imports) belonging
// to fileID and inserts the freshly parsed set, returning them with their new
// IDs populated so the caller can resolve call edges and enqueue embeddings.
// Called once per re-parsed file, never incrementally per symbol - a file
// hash change invalidates its whole symbol set at once.
func (s *Store) ReplaceSymbolsForFile(fileID, projectID string, symbols []CodeSymbol) ([]CodeSymbol, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM code_calls WHERE caller_symbol_id IN (SELECT id FROM code_symbols WHERE file_id = ?)`, fileID); err != nil {
		return nil, fmt.Errorf("clear calls for file: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM code_symbols WHERE file_id = ?`, fileID); err != nil {
		return nil, fmt.Errorf("clear symbols for file: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM code_imports WHERE file_id = ?`, fileID); err != nil {
		return nil, fmt.Errorf("clear imports for file: %w", err)
	}

	out := make([]CodeSymbol, len(symbols))
	for i, sym := range symbols {
		sym.ID = ids.New().String()
		sym.FileID = fileID
		sym.ProjectID = projectID
		_, err := tx.Exec(`
INSERT INTO code_symbols(id, file_id, project_id, name, qualified_name, kind, signature, doc_comment, complexity_hint, is_exported, is_test, start_line, end_line)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sym.ID, sym.FileID, sym.ProjectID, sym.Name, sym.QualifiedName, sym.Kind, sym.Signature, sym.DocComment,
			sym.ComplexityHint, boolToInt(sym.IsExported), boolToInt(sym.IsTest), sym.StartLine, sym.EndLine,
		)
		if err != nil {
			return nil, fmt.Errorf("insert symbol %s: %w", sym.Name, err)
		}
		out[i] = sym
	}

	return out, tx.Commit()
}

// InsertCall records one call-site edge for a symbol already persisted by
// ReplaceSymbolsForFile.
func (s *Store) InsertCall(call CodeCall) error {
	call.ID = ids.New().String()
	if call.Kind == "" {
		call.Kind = "direct"
	}
	_, err := s.db.Exec(`
INSERT INTO code_calls(id, caller_symbol_id, callee_name, callee_symbol_id, line, kind)
VALUES (?, ?, ?, ?, ?, ?)`,
		call.ID, call.CallerSymbolID, call.CalleeName, call.CalleeSymbolID, call.Line, call.Kind,
	)
	return err
}

// ResolveCalleeSymbol looks up a symbol by name within a project for call-edge
// resolution; callers try this after all of a file's symbols are in place so
// intra-project calls aren't left dangling.
func (s *Store) ResolveCalleeSymbol(projectID, name string) (string, bool, error) {
	var id string
	err := s.db.QueryRow(`SELECT id FROM code_symbols WHERE project_id = ? AND name = ? LIMIT 1`, projectID, name).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// InsertImport records one import statement for a file.
func (s *Store) InsertImport(imp CodeImport) error {
	imp.ID = ids.New().String()
	_, err := s.db.Exec(`
INSERT INTO code_imports(id, file_id, import_path, imported_symbols, is_external)
VALUES (?, ?, ?, ?, ?)`,
		imp.ID, imp.FileID, imp.ImportPath, imp.ImportedSymbols, boolToInt(imp.IsExternal),
	)
	return err
}

// GetCodeSymbol loads one symbol by ID, used to hydrate vector-search hits
// (which only carry a ref ID) back into a full record.
func (s *Store) GetCodeSymbol(id string) (CodeSymbol, bool, error) {
	row := s.db.QueryRow(`
SELECT id, file_id, project_id, name, qualified_name, kind, signature, doc_comment,
       complexity_hint, is_exported, is_test, start_line, end_line
FROM code_symbols WHERE id = ?`, id)

	var sym CodeSymbol
	var isExported, isTest int
	err := row.Scan(&sym.ID, &sym.FileID, &sym.ProjectID, &sym.Name, &sym.QualifiedName, &sym.Kind,
		&sym.Signature, &sym.DocComment, &sym.ComplexityHint, &isExported, &isTest, &sym.StartLine, &sym.EndLine)
	if err == sql.ErrNoRows {
		return CodeSymbol{}, false, nil
	}
	if err != nil {
		return CodeSymbol{}, false, err
	}
	sym.IsExported = isExported != 0
	sym.IsTest = isTest != 0
	return sym, true, nil
}

// UnusedFunctions returns function/method symbols in projectID with zero
// incoming calls across the whole index - the code-health worker's "unused
// function" detection (spec.md §4.4).
func (s *Store) UnusedFunctions(projectID string) ([]CodeSymbol, error) {
	rows, err := s.db.Query(`
SELECT s.id, s.file_id, s.project_id, s.name, s.qualified_name, s.kind, s.signature, s.doc_comment,
       s.complexity_hint, s.is_exported, s.is_test, s.start_line, s.end_line
FROM code_symbols s
WHERE s.project_id = ?
  AND s.kind IN ('function', 'method')
  AND s.is_test = 0
  AND s.is_exported = 0
  AND NOT EXISTS (SELECT 1 FROM code_calls c WHERE c.callee_symbol_id = s.id)
ORDER BY s.name`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCodeSymbols(rows)
}

// KeywordSearchCode runs an FTS5 match over symbol name/signature/doc_comment.
func (s *Store) KeywordSearchCode(projectID, query string, limit int) ([]CodeSymbol, error) {
	rows, err := s.db.Query(`
SELECT s.id, s.file_id, s.project_id, s.name, s.qualified_name, s.kind, s.signature, s.doc_comment,
       s.complexity_hint, s.is_exported, s.is_test, s.start_line, s.end_line
FROM code_fts f
JOIN code_symbols s ON s.id = f.symbol_id
WHERE f.project_id = ? AND code_fts MATCH ?
ORDER BY rank
LIMIT ?`, projectID, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCodeSymbols(rows)
}

func scanCodeSymbols(rows *sql.Rows) ([]CodeSymbol, error) {
	var out []CodeSymbol
	for rows.Next() {
		var sym CodeSymbol
		var isExported, isTest int
		if err := rows.Scan(&sym.ID, &sym.FileID, &sym.ProjectID, &sym.Name, &sym.QualifiedName, &sym.Kind,
			&sym.Signature, &sym.DocComment, &sym.ComplexityHint, &isExported, &isTest, &sym.StartLine, &sym.EndLine); err != nil {
			return nil, err
		}
		sym.IsExported = isExported != 0
		sym.IsTest = isTest != 0
		out = append(out, sym)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
