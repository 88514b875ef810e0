package codeintel

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// ParserFactory routes a file path to the Parser registered for its
// extension - mirrors the teacher's world.ParserFactory's registration and
// lookup shape, minus the Mangle-fact emission that package layered on top.
type ParserFactory struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

func NewParserFactory() *ParserFactory {
	return &ParserFactory{parsers: make(map[string]Parser)}
}

func (f *ParserFactory) Register(p Parser) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ext := range p.SupportedExtensions() {
		f.parsers[normalizeExt(ext)] = p
	}
}

func (f *ParserFactory) Parser(path string) Parser {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.parsers[normalizeExt(filepath.Ext(path))]
}

func (f *ParserFactory) Parse(path string, content []byte) (ParseResult, error) {
	p := f.Parser(path)
	if p == nil {
		return ParseResult{}, fmt.Errorf("codeintel: no parser registered for %s", filepath.Ext(path))
	}
	return p.Parse(path, content)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// DefaultParserFactory registers the Go AST parser plus every configured
// tree-sitter grammar.
func DefaultParserFactory() *ParserFactory {
	f := NewParserFactory()
	f.Register(NewGoParser())
	for _, p := range NewTreeSitterParsers() {
		f.Register(p)
	}
	return f
}
