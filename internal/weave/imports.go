package weave

import (
	"go/ast"
	"go/token"
	"path"
	"sort"
	"strconv"
	"strings"
)

// Import is a package a woven file needs
type Import struct {
	Path string
	Name string // local name, empty for the last path element

	verbatim string // text of a spec already in the file
}

func (imp Import) spec() string {
	if imp.verbatim != "" {
		return imp.verbatim
	}
	quoted := strconv.Quote(imp.Path)
	if imp.Name == "" || imp.Name == path.Base(imp.Path) {
		return quoted
	}
	return imp.Name + " " + quoted
}

// importSet tracks the imports of the file being woven and the ones the
// weaver asked for.
type importSet struct {
	existing  map[string]string // path -> local name
	requested []Import
}

func newImportSet(file *ast.File) *importSet {
	s := &importSet{existing: make(map[string]string)}
	for _, spec := range file.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		name := path.Base(p)
		if spec.Name != nil {
			name = spec.Name.Name
		}
		s.existing[p] = name
	}
	return s
}

func (s *importSet) use(importPath, name string) string {
	if local, ok := s.existing[importPath]; ok && local != "_" && local != "." {
		return local
	}

	local := name
	if local == "" {
		local = path.Base(importPath)
	}
	s.existing[importPath] = local
	s.requested = append(s.requested, Import{Path: importPath, Name: name})
	return local
}

// AddImports adds the imports file lacks to src, the text file was parsed
// from. Everything else in src is kept byte for byte. Standard library
// imports go to the first group of the import declaration and the others to
// the last one, the way goimports groups them.
func AddImports(fset *token.FileSet, file *ast.File, src []byte, imports []Import) ([]byte, error) {
	have := make(map[string]bool)
	for _, spec := range file.Imports {
		if p, err := strconv.Unquote(spec.Path.Value); err == nil {
			have[p] = true
		}
	}

	var std, other []Import
	for _, imp := range imports {
		if have[imp.Path] {
			continue
		}
		have[imp.Path] = true
		if isStdlib(imp.Path) {
			std = append(std, imp)
		} else {
			other = append(other, imp)
		}
	}
	if len(std)+len(other) == 0 {
		return src, nil
	}
	sortImports(std)
	sortImports(other)

	s := &splicer{fset: fset, src: src}
	decl, after := importDecl(file)
	switch {
	case decl == nil && len(std)+len(other) == 1:
		s.insertAt(s.lineAfter(after), "\nimport "+append(std, other...)[0].spec()+"\n")
	case decl == nil:
		s.insertAt(s.lineAfter(after), "\nimport (\n"+groups(std, other)+")\n")
	case !decl.Lparen.IsValid() || len(decl.Specs) == 0:
		rewriteDecl(s, decl, std, other)
	default:
		extendDecl(s, decl, std, other)
	}

	return s.apply()
}

// importDecl returns the import declaration to extend. When there is none,
// it returns the position new declarations go after.
func importDecl(file *ast.File) (*ast.GenDecl, token.Pos) {
	after := file.Name.End()
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.IMPORT {
			break
		}
		if !importsC(gen) {
			return gen, token.NoPos
		}
		after = gen.End()
	}
	return nil, after
}

func importsC(decl *ast.GenDecl) bool {
	for _, spec := range decl.Specs {
		if spec.(*ast.ImportSpec).Path.Value == `"C"` {
			return true
		}
	}
	return false
}

// rewriteDecl turns a single line import into a parenthesized one
func rewriteDecl(s *splicer, decl *ast.GenDecl, std, other []Import) {
	for _, spec := range decl.Specs {
		is := spec.(*ast.ImportSpec)
		p, _ := strconv.Unquote(is.Path.Value)
		kept := Import{Path: p, verbatim: string(s.src[s.offset(is.Pos()):s.offset(is.End())])}
		if isStdlib(p) {
			std = append(std, kept)
		} else {
			other = append(other, kept)
		}
	}
	sortImports(std)
	sortImports(other)

	s.edits = append(s.edits, edit{
		start: s.offset(decl.Pos()),
		end:   s.offset(decl.End()),
		text:  "import (\n" + groups(std, other) + ")",
	})
}

// extendDecl adds imports to a parenthesized declaration
func extendDecl(s *splicer, decl *ast.GenDecl, std, other []Import) {
	blocks := specGroups(s.fset, decl)

	if len(std) > 0 {
		if first := blocks[0]; anyOf(first, isStdlib) {
			insertSorted(s, first, std)
		} else {
			s.insertAt(s.offset(decl.Lparen)+1, "\n"+lines(std))
		}
	}

	if len(other) == 0 {
		return
	}
	last := blocks[len(blocks)-1]
	if anyOf(last, func(p string) bool { return !isStdlib(p) }) {
		insertSorted(s, last, other)
		return
	}

	rparen := s.offset(decl.Rparen)
	if end := s.lineEnd(s.offset(last[len(last)-1].End())); end < 0 || end > rparen {
		// ")" shares a line with the last spec
		s.insertAt(rparen, "\n\n"+lines(other))
		return
	}
	s.insertAt(s.lineStart(decl.Rparen), "\n"+lines(other))
}

// insertSorted inserts imports into a group of specs, keeping the group in
// path order
func insertSorted(s *splicer, group []*ast.ImportSpec, imports []Import) {
	for _, imp := range imports {
		var next *ast.ImportSpec
		for _, spec := range group {
			if specPath(spec) > imp.Path {
				next = spec
				break
			}
		}

		if next != nil {
			start := next.Pos()
			if next.Doc != nil {
				start = next.Doc.Pos()
			}
			s.insertAt(s.lineStart(start), "\t"+imp.spec()+"\n")
			continue
		}

		last := group[len(group)-1]
		if end := s.lineEnd(s.offset(last.End())); end >= 0 {
			s.insertAt(end, "\t"+imp.spec()+"\n")
		} else {
			s.insertAt(s.offset(last.End()), "\n\t"+imp.spec())
		}
	}
}

// specGroups splits the specs of decl at blank lines
func specGroups(fset *token.FileSet, decl *ast.GenDecl) [][]*ast.ImportSpec {
	var out [][]*ast.ImportSpec
	prevEnd := 0
	for _, spec := range decl.Specs {
		is := spec.(*ast.ImportSpec)
		start := is.Pos()
		if is.Doc != nil {
			start = is.Doc.Pos()
		}
		if len(out) == 0 || fset.Position(start).Line > prevEnd+1 {
			out = append(out, nil)
		}
		out[len(out)-1] = append(out[len(out)-1], is)
		prevEnd = fset.Position(is.End()).Line
	}
	return out
}

func groups(std, other []Import) string {
	text := lines(std)
	if len(std) > 0 && len(other) > 0 {
		text += "\n"
	}
	return text + lines(other)
}

func lines(imports []Import) string {
	var b strings.Builder
	for _, imp := range imports {
		b.WriteString("\t" + imp.spec() + "\n")
	}
	return b.String()
}

func sortImports(imports []Import) {
	sort.SliceStable(imports, func(i, j int) bool {
		return imports[i].Path < imports[j].Path
	})
}

func specPath(spec *ast.ImportSpec) string {
	p, _ := strconv.Unquote(spec.Path.Value)
	return p
}

func anyOf(group []*ast.ImportSpec, match func(string) bool) bool {
	for _, spec := range group {
		if match(specPath(spec)) {
			return true
		}
	}
	return false
}

// isStdlib reports whether importPath belongs to the standard library, whose
// first path element has no dot
func isStdlib(importPath string) bool {
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}
