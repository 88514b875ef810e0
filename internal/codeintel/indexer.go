package codeintel

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/ConaryLabs/mira/internal/logging"
	"github.com/ConaryLabs/mira/internal/store"
)

// Indexer ingests source files into the store's code_files/code_symbols/
// code_calls/code_imports tables, gating re-parsing on content hash per
// spec.md §4.4.
type Indexer struct {
	store   *store.Store
	parsers *ParserFactory
}

func NewIndexer(st *store.Store, parsers *ParserFactory) *Indexer {
	return &Indexer{store: st, parsers: parsers}
}

// IndexFile parses path (if its content hash changed since the last scan)
// and replaces its symbol/call/import rows. Returns false without error when
// the file's hash is unchanged and nothing was re-parsed.
func (idx *Indexer) IndexFile(projectID, path string, content []byte) (bool, error) {
	hash := hashContent(content)

	existing, ok, err := idx.store.FileContentHash(projectID, path)
	if err != nil {
		return false, fmt.Errorf("check file hash: %w", err)
	}
	if ok && existing == hash {
		return false, nil
	}

	parser := idx.parsers.Parser(path)
	if parser == nil {
		return false, nil // unsupported language: tracked as unindexed, not an error
	}

	result, err := parser.Parse(path, content)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}

	file, err := idx.store.UpsertCodeFile(projectID, path, parser.Language(), hash)
	if err != nil {
		return false, fmt.Errorf("upsert code file: %w", err)
	}

	symbols := make([]store.CodeSymbol, len(result.Symbols))
	for i, s := range result.Symbols {
		symbols[i] = store.CodeSymbol{
			Name:           s.Name,
			QualifiedName:  s.QualifiedName,
			Kind:           s.Kind,
			Signature:      s.Signature,
			DocComment:     s.DocComment,
			ComplexityHint: s.ComplexityHint,
			IsExported:     s.IsExported,
			IsTest:         s.IsTest,
			StartLine:      s.StartLine,
			EndLine:        s.EndLine,
		}
	}

	persisted, err := idx.store.ReplaceSymbolsForFile(file.ID, projectID, symbols)
	if err != nil {
		return false, fmt.Errorf("replace symbols: %w", err)
	}

	byName := make(map[string]string, len(persisted))
	for _, s := range persisted {
		byName[s.Name] = s.ID
	}

	for _, call := range result.Calls {
		callerID, ok := byName[call.CallerName]
		if !ok {
			continue
		}
		var calleeID sql.NullString
		if id, found, err := idx.store.ResolveCalleeSymbol(projectID, call.CalleeName); err == nil && found {
			calleeID = sql.NullString{String: id, Valid: true}
		}
		if err := idx.store.InsertCall(store.CodeCall{
			CallerSymbolID: callerID,
			CalleeName:     call.CalleeName,
			CalleeSymbolID: calleeID,
			Line:           call.Line,
			Kind:           call.Kind,
		}); err != nil {
			logging.Get(logging.CategoryCodeIntel).Warn("insert call %s->%s: %v", call.CallerName, call.CalleeName, err)
		}
	}

	for _, imp := range result.Imports {
		if err := idx.store.InsertImport(store.CodeImport{
			FileID:          file.ID,
			ImportPath:      imp.Path,
			ImportedSymbols: imp.Symbols,
			IsExternal:      imp.IsExternal,
		}); err != nil {
			logging.Get(logging.CategoryCodeIntel).Warn("insert import %s: %v", imp.Path, err)
		}
	}

	for _, s := range persisted {
		text := s.QualifiedName + " " + s.Signature
		if s.DocComment != "" {
			text += " " + s.DocComment
		}
		if err := idx.store.EnqueueEmbedding("symbol", s.ID, projectID, text); err != nil {
			logging.Get(logging.CategoryCodeIntel).Warn("enqueue embedding for symbol %s: %v", s.Name, err)
		}
	}

	logging.CodeIntel("indexed %s: %d symbols, %d calls, %d imports", path, len(persisted), len(result.Calls), len(result.Imports))
	return true, nil
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
