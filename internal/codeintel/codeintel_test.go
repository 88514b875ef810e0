package codeintel

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ConaryLabs/mira/internal/store"
)

const sampleGoSource = `package sample

// Greet returns a friendly greeting.
func Greet(name string) string {
	if name == "" {
		name = "world"
	}
	return "hello " + name
}

func callsGreet() string {
	return Greet("mira")
}

func unused() int {
	return 42
}
`

func TestGoParserExtractsSymbolsAndCalls(t *testing.T) {
	p := NewGoParser()
	result, err := p.Parse("sample.go", []byte(sampleGoSource))
	require.NoError(t, err)

	names := map[string]Symbol{}
	for _, s := range result.Symbols {
		names[s.Name] = s
	}
	require.Contains(t, names, "Greet")
	require.Contains(t, names, "callsGreet")
	require.Contains(t, names, "unused")
	require.True(t, names["Greet"].IsExported)
	require.False(t, names["unused"].IsExported)

	var sawCall bool
	for _, c := range result.Calls {
		if c.CallerName == "callsGreet" && c.CalleeName == "Greet" {
			sawCall = true
		}
	}
	require.True(t, sawCall)
}

func TestParserFactoryRoutesByExtension(t *testing.T) {
	f := DefaultParserFactory()
	require.Equal(t, "go", f.Parser("main.go").Language())
	require.Equal(t, "python", f.Parser("script.py").Language())
	require.Equal(t, "rust", f.Parser("lib.rs").Language())
	require.Nil(t, f.Parser("unknown.xyz"))
}

func TestChunkDocumentRespectsBoundsAndSplitsOnParagraphs(t *testing.T) {
	short := "a short note"
	require.Equal(t, []string{short}, ChunkDocument(short))

	var long strings.Builder
	for i := 0; i < 40; i++ {
		long.WriteString("This is paragraph number describing something useful in reasonable detail. ")
		long.WriteString("\n\n")
	}
	chunks := ChunkDocument(long.String())
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		require.LessOrEqual(t, len(c), chunkCap)
	}
}

func TestChunkCodeSymbolSplitsOversizeBody(t *testing.T) {
	var body strings.Builder
	for i := 0; i < 200; i++ {
		body.WriteString("x := doSomething()\n")
	}
	sym := Symbol{Body: body.String()}
	chunks := ChunkCodeSymbol(sym)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		require.LessOrEqual(t, len(c), chunkCap)
	}
}

func newTestIndexer(t *testing.T) (*Indexer, *store.Store, *store.Project) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	proj, err := st.UpsertProject("/tmp/sample-project", "sample")
	require.NoError(t, err)

	idx := NewIndexer(st, DefaultParserFactory())
	return idx, st, proj
}

func TestIndexFileSkipsReparseWhenHashUnchanged(t *testing.T) {
	idx, _, proj := newTestIndexer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.go")
	require.NoError(t, os.WriteFile(path, []byte(sampleGoSource), 0644))
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	changed, err := idx.IndexFile(proj.ID, path, content)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = idx.IndexFile(proj.ID, path, content)
	require.NoError(t, err)
	require.False(t, changed)
}

func TestIndexFileDetectsUnusedFunction(t *testing.T) {
	idx, st, proj := newTestIndexer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.go")
	content := []byte(sampleGoSource)
	require.NoError(t, os.WriteFile(path, content, 0644))

	_, err := idx.IndexFile(proj.ID, path, content)
	require.NoError(t, err)

	unused, err := st.UnusedFunctions(proj.ID)
	require.NoError(t, err)

	var names []string
	for _, s := range unused {
		names = append(names, s.Name)
	}
	require.Contains(t, names, "unused")
	require.NotContains(t, names, "Greet")
}

func TestLookupKeywordSearchFindsIndexedSymbol(t *testing.T) {
	idx, st, proj := newTestIndexer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.go")
	content := []byte(sampleGoSource)
	require.NoError(t, os.WriteFile(path, content, 0644))
	_, err := idx.IndexFile(proj.ID, path, content)
	require.NoError(t, err)

	lookup := NewLookup(st, nil)
	hits, err := lookup.Search(context.Background(), proj.ID, "Greet", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
}
