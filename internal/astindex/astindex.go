// Package astindex builds a per-file index of function- and type-level
// definitions for a checked-out Go repository, used to anchor ground
// truth and relevance scoring to syntactic boundaries rather than raw
// diff line numbers.
//
// The walking style (packages.Load driven, ast.Walk over FuncDecl /
// TypeSpec nodes, human-readable signature construction) follows
// golang/extract/golang in the teacher, generalized from "code graph
// extraction" down to the narrower find_enclosing/all_definitions
// contract this benchmark needs.
package astindex

import (
	"fmt"
	"go/ast"
	"go/token"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"
)

// Kind distinguishes the syntactic category of a Definition.
type Kind string

const (
	KindFunction  Kind = "function"
	KindMethod    Kind = "method"
	KindType      Kind = "type"
	KindInterface Kind = "interface"
)

// Definition describes one enclosing syntactic scope: a function,
// method, or type declaration, with its source span and a
// human-readable signature.
type Definition struct {
	Kind      Kind
	Name      string
	Container string // enclosing type name for a method, "" otherwise
	Path      string // path relative to the index's root
	StartLine int
	EndLine   int
	Signature string
}

// Index holds the definitions discovered for one repository checkout,
// keyed by normalized file path, each file's definitions sorted by
// start line ascending.
type Index struct {
	root string
	defs map[string][]Definition
	fset *token.FileSet
}

// Build loads every Go package under root and indexes its function,
// method, and type declarations. An error is returned only when
// packages.Load itself fails; packages that load with errors are
// skipped, matching the teacher's extractor's tolerance for unresolved
// imports in a subset of the tree, so the index can be empty with a
// nil error when every package fails.
func Build(root string) (*Index, error) {
	fset := token.NewFileSet()
	cfg := &packages.Config{
		Mode: packages.NeedTypes | packages.NeedSyntax | packages.NeedName |
			packages.NeedTypesInfo | packages.NeedImports,
		Fset:  fset,
		Dir:   root,
		Tests: true,
	}

	pkgs, err := packages.Load(cfg, "./...")
	if err != nil {
		return nil, fmt.Errorf("astindex: load packages under %s: %w", root, err)
	}

	idx := &Index{root: root, defs: make(map[string][]Definition), fset: fset}

	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		if len(pkg.Errors) > 0 {
			return
		}
		for _, file := range pkg.Syntax {
			idx.indexFile(file)
		}
	})

	for path := range idx.defs {
		sort.Slice(idx.defs[path], func(i, j int) bool {
			return idx.defs[path][i].StartLine < idx.defs[path][j].StartLine
		})
	}

	return idx, nil
}

func (idx *Index) indexFile(file *ast.File) {
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			idx.addFuncDecl(d)
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				idx.addTypeSpec(d, ts)
			}
		}
	}
}

func (idx *Index) addFuncDecl(n *ast.FuncDecl) {
	pos := idx.fset.Position(n.Pos())
	end := idx.fset.Position(n.End())
	path := relPath(idx.root, pos.Filename)

	def := Definition{
		Name:      n.Name.Name,
		Path:      path,
		StartLine: pos.Line,
		EndLine:   end.Line,
		Kind:      KindFunction,
	}

	if n.Recv != nil && len(n.Recv.List) > 0 {
		def.Kind = KindMethod
		def.Container = receiverTypeName(n.Recv.List[0].Type)
	}

	def.Signature = buildSignature(n)
	idx.defs[path] = append(idx.defs[path], def)
}

func (idx *Index) addTypeSpec(gd *ast.GenDecl, ts *ast.TypeSpec) {
	pos := idx.fset.Position(ts.Pos())
	end := idx.fset.Position(ts.End())
	path := relPath(idx.root, pos.Filename)

	kind := KindType
	if _, ok := ts.Type.(*ast.InterfaceType); ok {
		kind = KindInterface
	}

	idx.defs[path] = append(idx.defs[path], Definition{
		Kind:      kind,
		Name:      ts.Name.Name,
		Path:      path,
		StartLine: pos.Line,
		EndLine:   end.Line,
		Signature: "type " + ts.Name.Name,
	})
}

func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	default:
		return ""
	}
}

// FindEnclosing returns the smallest Definition in path whose span
// contains line, or ok=false if no definition encloses it (e.g. a
// package-level var, an import line, or a blank line between
// functions).
func (idx *Index) FindEnclosing(path string, line int) (Definition, bool) {
	best := Definition{}
	found := false

	for _, d := range idx.defs[path] {
		if d.StartLine > line || d.EndLine < line {
			continue
		}
		if !found || (d.EndLine-d.StartLine) < (best.EndLine-best.StartLine) {
			best = d
			found = true
		}
	}
	return best, found
}

// AllDefinitions returns every definition indexed for path, sorted by
// start line.
func (idx *Index) AllDefinitions(path string) []Definition {
	return idx.defs[path]
}

// Files returns every path the index has definitions for.
func (idx *Index) Files() []string {
	files := make([]string, 0, len(idx.defs))
	for p := range idx.defs {
		files = append(files, p)
	}
	sort.Strings(files)
	return files
}

func relPath(root, filename string) string {
	rel := strings.TrimPrefix(filename, root)
	rel = strings.TrimPrefix(rel, "/")
	return strings.ReplaceAll(rel, "\\", "/")
}

// buildSignature renders a human-readable function/method signature,
// e.g. "(p *Planner) Plan(ctx context.Context, issue Issue) ([]Action, error)".
func buildSignature(n *ast.FuncDecl) string {
	var sb strings.Builder

	if n.Recv != nil && len(n.Recv.List) > 0 {
		recv := n.Recv.List[0]
		sb.WriteString("(")
		if len(recv.Names) > 0 {
			sb.WriteString(recv.Names[0].Name)
			sb.WriteString(" ")
		}
		sb.WriteString(astTypeString(recv.Type))
		sb.WriteString(") ")
	}

	sb.WriteString(n.Name.Name)
	sb.WriteString("(")
	if n.Type.Params != nil {
		writeFieldList(&sb, n.Type.Params.List)
	}
	sb.WriteString(")")

	if n.Type.Results != nil && len(n.Type.Results.List) > 0 {
		sb.WriteString(" ")
		if len(n.Type.Results.List) == 1 && len(n.Type.Results.List[0].Names) == 0 {
			sb.WriteString(astTypeString(n.Type.Results.List[0].Type))
		} else {
			sb.WriteString("(")
			writeFieldList(&sb, n.Type.Results.List)
			sb.WriteString(")")
		}
	}

	return sb.String()
}

func writeFieldList(sb *strings.Builder, fields []*ast.Field) {
	for i, field := range fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		for j, name := range field.Names {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(name.Name)
		}
		if len(field.Names) > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(astTypeString(field.Type))
	}
}

func astTypeString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + astTypeString(t.X)
	case *ast.ArrayType:
		if t.Len == nil {
			return "[]" + astTypeString(t.Elt)
		}
		return "[...]" + astTypeString(t.Elt)
	case *ast.SelectorExpr:
		return astTypeString(t.X) + "." + t.Sel.Name
	case *ast.MapType:
		return "map[" + astTypeString(t.Key) + "]" + astTypeString(t.Value)
	case *ast.InterfaceType:
		return "interface{}"
	case *ast.FuncType:
		return "func(...)"
	case *ast.ChanType:
		return "chan " + astTypeString(t.Value)
	case *ast.Ellipsis:
		return "..." + astTypeString(t.Elt)
	default:
		return "?"
	}
}
