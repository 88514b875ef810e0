package codeintel

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// langSpec tells the generic tree-sitter walker which node types in a given
// grammar mark a class/struct, a function/method, and a call expression -
// the same three element kinds the teacher's per-language parsers (python_
// parser.go, typescript_parser.go, rust_parser.go) each hand-walk for.
type langSpec struct {
	lang          string
	exts          []string
	grammar       *sitter.Language
	containerKind []string // class_definition, struct_item, impl_item...
	funcKind      []string // function_definition, method_definition...
	callKind      []string // call, call_expression...
	nameField     string   // field name holding the identifier, usually "name"
}

var langSpecs = []langSpec{
	{
		lang: "python", exts: []string{".py", ".pyw"}, grammar: python.GetLanguage(),
		containerKind: []string{"class_definition"},
		funcKind:      []string{"function_definition"},
		callKind:      []string{"call"},
		nameField:     "name",
	},
	{
		lang: "javascript", exts: []string{".js", ".jsx", ".mjs"}, grammar: javascript.GetLanguage(),
		containerKind: []string{"class_declaration"},
		funcKind:      []string{"function_declaration", "method_definition"},
		callKind:      []string{"call_expression"},
		nameField:     "name",
	},
	{
		lang: "typescript", exts: []string{".ts", ".tsx"}, grammar: typescript.GetLanguage(),
		containerKind: []string{"class_declaration", "interface_declaration"},
		funcKind:      []string{"function_declaration", "method_definition", "method_signature"},
		callKind:      []string{"call_expression"},
		nameField:     "name",
	},
	{
		lang: "rust", exts: []string{".rs"}, grammar: rust.GetLanguage(),
		containerKind: []string{"struct_item", "enum_item", "trait_item", "impl_item"},
		funcKind:      []string{"function_item"},
		callKind:      []string{"call_expression"},
		nameField:     "name",
	},
}

// TreeSitterParser drives one grammar's tree-sitter parser over a generic
// container/function/call node-type walk, replacing a per-language hand
// rolled parser with one spec table.
type TreeSitterParser struct {
	spec   langSpec
	parser *sitter.Parser
}

// NewTreeSitterParsers builds one Parser per configured grammar.
func NewTreeSitterParsers() []Parser {
	out := make([]Parser, 0, len(langSpecs))
	for _, spec := range langSpecs {
		p := sitter.NewParser()
		p.SetLanguage(spec.grammar)
		out = append(out, &TreeSitterParser{spec: spec, parser: p})
	}
	return out
}

func (t *TreeSitterParser) Language() string             { return t.spec.lang }
func (t *TreeSitterParser) SupportedExtensions() []string { return t.spec.exts }

func (t *TreeSitterParser) Parse(path string, content []byte) (ParseResult, error) {
	tree, err := t.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return ParseResult{}, err
	}
	defer tree.Close()

	lines := strings.Split(string(content), "\n")
	var result ParseResult
	t.walk(tree.RootNode(), "", content, lines, path, &result)
	return result, nil
}

func (t *TreeSitterParser) walk(node *sitter.Node, parentName string, content []byte, lines []string, path string, result *ParseResult) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		kind := child.Type()

		switch {
		case containsKind(t.spec.containerKind, kind):
			name := fieldText(child, t.spec.nameField, content)
			if name != "" {
				result.Symbols = append(result.Symbols, t.buildSymbol(child, name, "", content, lines, path))
			}
			t.walk(child, name, content, lines, path, result)

		case containsKind(t.spec.funcKind, kind):
			name := fieldText(child, t.spec.nameField, content)
			if name == "" {
				name = "anonymous"
			}
			sym := t.buildSymbol(child, name, parentName, content, lines, path)
			result.Symbols = append(result.Symbols, sym)
			t.collectCalls(child, name, content, result)

		default:
			t.walk(child, parentName, content, lines, path, result)
		}
	}
}

func (t *TreeSitterParser) buildSymbol(node *sitter.Node, name, parentName string, content []byte, lines []string, path string) Symbol {
	startLine := int(node.StartPoint().Row) + 1
	endLine := int(node.EndPoint().Row) + 1
	kind := "function"
	if containsKind(t.spec.containerKind, node.Type()) {
		kind = "class"
	} else if parentName != "" {
		kind = "method"
	}

	qualified := name
	if parentName != "" {
		qualified = parentName + "." + name
	}

	signature := ""
	if startLine > 0 && startLine <= len(lines) {
		signature = strings.TrimSpace(lines[startLine-1])
	}
	body := extractBody(lines, startLine, endLine)

	return Symbol{
		Name:           name,
		QualifiedName:  qualified,
		Kind:           kind,
		Signature:      signature,
		Body:           body,
		ComplexityHint: complexityHint(body),
		IsExported:     !strings.HasPrefix(name, "_"),
		IsTest:         isTestName(name, path),
		StartLine:      startLine,
		EndLine:        endLine,
		ParentName:     parentName,
	}
}

func (t *TreeSitterParser) collectCalls(node *sitter.Node, callerName string, content []byte, result *ParseResult) {
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if containsKind(t.spec.callKind, n.Type()) {
			fn := n.ChildByFieldName("function")
			if fn == nil && n.NamedChildCount() > 0 {
				fn = n.NamedChild(0)
			}
			if fn != nil {
				name := string(content[fn.StartByte():fn.EndByte()])
				if idx := strings.LastIndex(name, "."); idx >= 0 {
					name = name[idx+1:]
				}
				kind := "direct"
				if strings.Contains(string(content[fn.StartByte():fn.EndByte()]), ".") {
					kind = "method"
				}
				result.Calls = append(result.Calls, Call{
					CallerName: callerName,
					CalleeName: name,
					Line:       int(n.StartPoint().Row) + 1,
					Kind:       kind,
				})
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			visit(n.NamedChild(i))
		}
	}
	visit(node)
}

func fieldText(node *sitter.Node, field string, content []byte) string {
	n := node.ChildByFieldName(field)
	if n == nil {
		return ""
	}
	return string(content[n.StartByte():n.EndByte()])
}

func containsKind(kinds []string, kind string) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
