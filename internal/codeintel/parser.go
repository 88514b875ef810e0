// Package codeintel parses source files into symbols, calls and imports,
// chunks documents and oversize code spans, drives the incremental
// hash-gated rescan, and exposes keyword/semantic lookup plus unused-function
// detection over the indexed result.
package codeintel

import (
	"path/filepath"
	"strings"
)

// Symbol is one parsed function/type/method before it has a store-assigned
// ID - the parser's output, not the persisted record.
type Symbol struct {
	Name           string
	QualifiedName  string
	Kind           string // function, method, struct, interface, const, var, class
	Signature      string
	DocComment     string
	Body           string
	ComplexityHint int
	IsExported     bool
	IsTest         bool
	StartLine      int
	EndLine        int
	ParentName     string // receiver/class name, empty for free functions
}

// Call is one call-site a parser found inside a symbol's body.
type Call struct {
	CallerName string // name of the enclosing symbol
	CalleeName string
	Line       int
	Kind       string // direct, method
}

// Import is one import/require/use statement.
type Import struct {
	Path       string
	Symbols    string // comma-joined imported names, best-effort
	IsExternal bool
}

// ParseResult is one file's parse output, ready for store.ReplaceSymbolsForFile.
type ParseResult struct {
	Symbols []Symbol
	Calls   []Call
	Imports []Import
}

// Parser extracts symbols/calls/imports from one language's source files.
type Parser interface {
	Language() string
	SupportedExtensions() []string
	Parse(path string, content []byte) (ParseResult, error)
}

// complexityHint is a cheap cyclomatic-ish proxy: count of branching
// keywords in the body, used only for the code-health worker's "worth a
// closer look" heuristic, not a real metric.
func complexityHint(body string) int {
	n := 1
	for _, kw := range []string{"if ", "for ", "switch ", "case ", "&&", "||", "catch ", "except "} {
		n += strings.Count(body, kw)
	}
	return n
}

func isTestName(name, path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, "_test.go") || strings.HasPrefix(name, "Test") || strings.HasPrefix(name, "Benchmark") ||
		strings.HasPrefix(name, "test_") || strings.Contains(base, ".test.") || strings.Contains(base, ".spec.")
}

func extractBody(lines []string, startLine, endLine int) string {
	if startLine < 1 {
		startLine = 1
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > endLine {
		return ""
	}
	return strings.Join(lines[startLine-1:endLine], "\n")
}
