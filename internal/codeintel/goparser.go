package codeintel

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
)

// GoParser extracts symbols/calls/imports from Go source using go/ast - the
// teacher's own choice for Go, kept because the standard library is the
// exact right tool (no third-party Go parser improves on go/ast's own
// compiler-grade AST).
type GoParser struct{}

func NewGoParser() *GoParser { return &GoParser{} }

func (p *GoParser) Language() string             { return "go" }
func (p *GoParser) SupportedExtensions() []string { return []string{".go"} }

func (p *GoParser) Parse(path string, content []byte) (ParseResult, error) {
	fset := token.NewFileSet()
	node, err := parser.ParseFile(fset, path, content, parser.ParseComments)
	if err != nil {
		return ParseResult{}, err
	}

	lines := strings.Split(string(content), "\n")
	var result ParseResult

	structRecv := make(map[string]bool) // receiver type names seen, for method ParentName

	for _, decl := range node.Decls {
		if gd, ok := decl.(*ast.GenDecl); ok && gd.Tok == token.TYPE {
			for _, spec := range gd.Specs {
				if ts, ok := spec.(*ast.TypeSpec); ok {
					if _, isStruct := ts.Type.(*ast.StructType); isStruct {
						structRecv[ts.Name.Name] = true
					}
				}
			}
		}
	}

	for _, decl := range node.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			sym, calls := p.parseFunc(fset, d, path, lines)
			result.Symbols = append(result.Symbols, sym)
			result.Calls = append(result.Calls, calls...)

		case *ast.GenDecl:
			result.Symbols = append(result.Symbols, p.parseGenDecl(fset, d, path, lines)...)
		}
	}

	for _, imp := range node.Imports {
		path := strings.Trim(imp.Path.Value, `"`)
		result.Imports = append(result.Imports, Import{
			Path:       path,
			IsExternal: isExternalGoImport(path),
		})
	}

	return result, nil
}

func isExternalGoImport(path string) bool {
	if !strings.Contains(path, ".") {
		return false // stdlib packages never contain a dot in their first segment
	}
	return true
}

func (p *GoParser) parseFunc(fset *token.FileSet, d *ast.FuncDecl, path string, lines []string) (Symbol, []Call) {
	name := d.Name.Name
	startLine := fset.Position(d.Pos()).Line
	endLine := fset.Position(d.End()).Line

	kind := "function"
	parent := ""
	if d.Recv != nil && len(d.Recv.List) > 0 {
		kind = "method"
		parent = receiverTypeName(d.Recv.List[0].Type)
	}

	signature := ""
	if startLine > 0 && startLine <= len(lines) {
		signature = strings.TrimSpace(lines[startLine-1])
	}
	body := extractBody(lines, startLine, endLine)
	doc := ""
	if d.Doc != nil {
		doc = strings.TrimSpace(d.Doc.Text())
	}

	qualified := name
	if parent != "" {
		qualified = parent + "." + name
	}

	sym := Symbol{
		Name:           name,
		QualifiedName:  qualified,
		Kind:           kind,
		Signature:      signature,
		DocComment:     doc,
		Body:           body,
		ComplexityHint: complexityHint(body),
		IsExported:     ast.IsExported(name),
		IsTest:         isTestName(name, path),
		StartLine:      startLine,
		EndLine:        endLine,
		ParentName:     parent,
	}

	var calls []Call
	ast.Inspect(d.Body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		calleeName, kind := calleeOf(call.Fun)
		if calleeName == "" {
			return true
		}
		calls = append(calls, Call{
			CallerName: name,
			CalleeName: calleeName,
			Line:       fset.Position(call.Pos()).Line,
			Kind:       kind,
		})
		return true
	})

	return sym, calls
}

func calleeOf(expr ast.Expr) (name, kind string) {
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name, "direct"
	case *ast.SelectorExpr:
		return e.Sel.Name, "method"
	}
	return "", ""
}

func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	}
	return ""
}

func (p *GoParser) parseGenDecl(fset *token.FileSet, decl *ast.GenDecl, path string, lines []string) []Symbol {
	var symbols []Symbol

	switch decl.Tok {
	case token.TYPE:
		for _, spec := range decl.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			startLine := fset.Position(spec.Pos()).Line
			endLine := fset.Position(spec.End()).Line
			if decl.Lparen == 0 {
				startLine = fset.Position(decl.Pos()).Line
				endLine = fset.Position(decl.End()).Line
			}
			kind := "type"
			switch ts.Type.(type) {
			case *ast.StructType:
				kind = "struct"
			case *ast.InterfaceType:
				kind = "interface"
			}
			signature := ""
			if startLine > 0 && startLine <= len(lines) {
				signature = strings.TrimSpace(lines[startLine-1])
			}
			doc := ""
			if decl.Doc != nil {
				doc = strings.TrimSpace(decl.Doc.Text())
			}
			symbols = append(symbols, Symbol{
				Name:          ts.Name.Name,
				QualifiedName: ts.Name.Name,
				Kind:          kind,
				Signature:     signature,
				DocComment:    doc,
				Body:          extractBody(lines, startLine, endLine),
				IsExported:    ast.IsExported(ts.Name.Name),
				StartLine:     startLine,
				EndLine:       endLine,
			})
		}

	case token.CONST, token.VAR:
		kind := "const"
		if decl.Tok == token.VAR {
			kind = "var"
		}
		startLine := fset.Position(decl.Pos()).Line
		endLine := fset.Position(decl.End()).Line
		for _, spec := range decl.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			for _, n := range vs.Names {
				specStart := fset.Position(vs.Pos()).Line
				signature := ""
				if specStart > 0 && specStart <= len(lines) {
					signature = strings.TrimSpace(lines[specStart-1])
				}
				symbols = append(symbols, Symbol{
					Name:          n.Name,
					QualifiedName: n.Name,
					Kind:          kind,
					Signature:     signature,
					Body:          extractBody(lines, startLine, endLine),
					IsExported:    ast.IsExported(n.Name),
					StartLine:     specStart,
					EndLine:       fset.Position(vs.End()).Line,
				})
			}
		}
	}

	return symbols
}
