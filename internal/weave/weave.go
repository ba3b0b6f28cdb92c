package weave

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"sort"

	"github.com/toyz/aspect/internal/annotations"
	"github.com/toyz/aspect/internal/errors"
)

// WovenImplBlock is the result of weaving one type.
type WovenImplBlock[M, A any] struct {
	Source          []byte         // rewritten file; only woven bodies are reprinted
	Fset            *token.FileSet // positions of File
	File            *ast.File      // Source, parsed with comments
	TypeName        string
	MainAttributes  M
	BlockAttributes []A
	WovenFns        *WovenFns[A]
}

// WeaveImplBlock weaves the methods of typeName declared in src.
//
// macroArgs are the outer directive arguments; they are parsed first and a
// failure aborts before the source is inspected.
func WeaveImplBlock[M, A any](w Weaver[M, A], macroArgs, filename string, src []byte, typeName string) (*WovenImplBlock[M, A], error) {
	main, err := parseMain(w, macroArgs, errors.SourceLocation{File: filename})
	if err != nil {
		return nil, err
	}

	sess, err := newSession(w, filename, src)
	if err != nil {
		return nil, err
	}
	block, err := sess.weaveType(main, typeName, "")
	if err != nil {
		return nil, err
	}
	if err := sess.finish(block); err != nil {
		return nil, err
	}
	return block, nil
}

func parseMain[M, A any](w Weaver[M, A], macroArgs string, argsLoc errors.SourceLocation) (M, error) {
	main, err := w.ParseMacroAttributes(macroArgs)
	if err != nil {
		return main, asSyntaxError("outer directive arguments", err, argsLoc)
	}
	return main, nil
}

// session collects the edits of every type woven in one file. All positions
// refer to the original source, so errors point at what the user wrote.
type session[M, A any] struct {
	w        Weaver[M, A]
	filename string
	src      []byte
	fset     *token.FileSet
	file     *ast.File
	splice   *splicer
	imports  *importSet
}

func newSession[M, A any](w Weaver[M, A], filename string, src []byte) (*session[M, A], error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, errors.WrapParseError(filename, err).WithLocation(errors.SourceLocation{File: filename})
	}

	return &session[M, A]{
		w:        w,
		filename: filename,
		src:      src,
		fset:     fset,
		file:     file,
		splice:   &splicer{fset: fset, src: src},
		imports:  newImportSet(file),
	}, nil
}

// weaveType schedules the edits for typeName. The outer directive named outer
// is stripped from the type when outer is not empty.
func (sess *session[M, A]) weaveType(main M, typeName, outer string) (*WovenImplBlock[M, A], error) {
	fset, file, filename := sess.fset, sess.file, sess.filename

	spec, doc := findType(file, typeName)
	if spec == nil {
		return nil, errors.NewSyntaxError(fmt.Sprintf("type %s is not declared in %s", typeName, filename)).
			WithLocation(errors.SourceLocation{File: filename}).
			WithSuggestion("Directives are woven for types declared in the same file as their methods")
	}

	name := sess.w.FnAttrName()
	blockAttrs, err := partition(sess.w, fset, doc, name, outer, sess.splice)
	if err != nil {
		return nil, err
	}

	woven := newWovenFns[A]()
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || receiverTypeName(fn) != typeName {
			continue
		}

		fnAttrs, err := partition(sess.w, fset, fn.Doc, name, "", sess.splice)
		if err != nil {
			return nil, err
		}
		if len(fnAttrs) == 0 {
			continue
		}

		method := &Method{Decl: fn, TypeName: typeName, fset: fset, src: sess.src, imports: sess.imports}
		target := fmt.Sprintf("method %s.%s", typeName, fn.Name.Name)
		loc := errors.LocationOf(method.Position())

		if fn.Body == nil {
			return nil, errors.NewGenerationError(fmt.Sprintf("%s has no body to weave", target)).
				WithTarget(target).
				WithLocation(loc)
		}

		attrs := make([]A, 0, len(blockAttrs)+len(fnAttrs))
		attrs = append(attrs, blockAttrs...)
		attrs = append(attrs, fnAttrs...)

		body, err := sess.w.UpdateFnBlock(method, main, attrs)
		if err != nil {
			return nil, generationError(target, err, loc)
		}

		text, err := printBody(fset, file, fn.Body, body)
		if err != nil {
			return nil, generationError(target, err, loc)
		}

		sess.splice.replace(fn.Body.Lbrace, fn.Body.Rbrace+1, text)
		woven.put(fn.Name.Name, attrs)
	}

	return &WovenImplBlock[M, A]{
		TypeName:        typeName,
		MainAttributes:  main,
		BlockAttributes: blockAttrs,
		WovenFns:        woven,
	}, nil
}

// finish applies the edits and hands the woven file to every block
func (sess *session[M, A]) finish(blocks ...*WovenImplBlock[M, A]) error {
	out, err := sess.splice.apply()
	if err != nil {
		return errors.WrapGenerateError(sess.filename, err).WithStage("splice")
	}

	source, fset, file, err := addRequested(sess.filename, out, sess.imports)
	if err != nil {
		return err
	}
	for _, block := range blocks {
		block.Source = source
		block.Fset = fset
		block.File = file
	}
	return nil
}

// partition parses the directives named name in group and schedules them for
// removal. Directives named outer are removed without being parsed. Every
// other comment is kept.
func partition[M, A any](w Weaver[M, A], fset *token.FileSet, group *ast.CommentGroup, name, outer string, s *splicer) ([]A, error) {
	var attrs []A
	for _, d := range annotations.Directives(fset, group) {
		switch d.Name {
		case name:
			attr, err := w.ParseAttributes(d)
			if err != nil {
				return nil, asSyntaxError("//"+name+" directive", err, d.Location)
			}
			attrs = append(attrs, attr)
		case outer:
		default:
			continue
		}
		s.removeLine(d.Comment)
	}
	return attrs, nil
}

// findType returns the type spec for name and the comment group documenting it
func findType(file *ast.File, name string) (*ast.TypeSpec, *ast.CommentGroup) {
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			ts := spec.(*ast.TypeSpec)
			if ts.Name.Name != name {
				continue
			}
			if ts.Doc != nil {
				return ts, ts.Doc
			}
			if len(gen.Specs) == 1 {
				return ts, gen.Doc
			}
			return ts, nil
		}
	}
	return nil, nil
}

// receiverTypeName returns the base type name of a method receiver, or "" for
// plain functions
func receiverTypeName(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return ""
	}

	expr := fn.Recv.List[0].Type
	for {
		switch t := expr.(type) {
		case *ast.StarExpr:
			expr = t.X
		case *ast.ParenExpr:
			expr = t.X
		case *ast.IndexExpr:
			expr = t.X
		case *ast.IndexListExpr:
			expr = t.X
		case *ast.Ident:
			return t.Name
		default:
			return ""
		}
	}
}

// printBody renders a replacement body. Comments of the original body are
// kept when the replacement still contains its statements.
func printBody(fset *token.FileSet, file *ast.File, old, body *ast.BlockStmt) (string, error) {
	if body == nil {
		return "", stderrors.New("weaver returned no body")
	}

	var node interface{} = body
	if containsStmts(body, old) {
		node = &printer.CommentedNode{Node: body, Comments: commentsWithin(file, old)}
	}

	var buf bytes.Buffer
	cfg := printer.Config{Mode: printer.UseSpaces | printer.TabIndent, Tabwidth: 8}
	if err := cfg.Fprint(&buf, fset, node); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func containsStmts(body, old *ast.BlockStmt) bool {
	if len(old.List) == 0 {
		return false
	}

	found := false
	ast.Inspect(body, func(n ast.Node) bool {
		if n == old || n == old.List[0] {
			found = true
		}
		return !found
	})
	return found
}

func commentsWithin(file *ast.File, block *ast.BlockStmt) []*ast.CommentGroup {
	var out []*ast.CommentGroup
	for _, group := range file.Comments {
		if group.Pos() > block.Lbrace && group.End() <= block.Rbrace {
			out = append(out, group)
		}
	}
	return out
}

// addRequested adds the requested imports to the spliced source and parses
// the result. Nothing else is reformatted.
func addRequested(filename string, spliced []byte, imports *importSet) ([]byte, *token.FileSet, *ast.File, error) {
	fset, file, err := reparse(filename, spliced)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(imports.requested) == 0 {
		return spliced, fset, file, nil
	}

	out, err := AddImports(fset, file, spliced, imports.requested)
	if err != nil {
		return nil, nil, nil, errors.WrapGenerateError(filename, err).WithStage("imports")
	}
	fset, file, err = reparse(filename, out)
	if err != nil {
		return nil, nil, nil, err
	}
	return out, fset, file, nil
}

func reparse(filename string, src []byte) (*token.FileSet, *ast.File, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, nil, errors.WrapGenerateError(filename, err).
			WithStage("reparse").
			WithLocation(errors.SourceLocation{File: filename}).
			WithSuggestion("The weaver produced a body that is not valid Go")
	}
	return fset, file, nil
}

func asSyntaxError(item string, err error, loc errors.SourceLocation) error {
	var aspectErr errors.AspectError
	if stderrors.As(err, &aspectErr) {
		return errors.LocateError(err, loc)
	}
	return errors.WrapParseError(item, err).WithLocation(loc)
}

func generationError(target string, err error, loc errors.SourceLocation) error {
	var genErr *errors.GenerationError
	if stderrors.As(err, &genErr) && !genErr.Location().IsEmpty() {
		return err
	}

	wrapped := errors.WrapGenerateError(target, err).WithTarget(target)
	if wrapped.Location().IsEmpty() {
		wrapped.WithLocation(loc)
	}
	return wrapped
}

type edit struct {
	start, end int
	text       string
}

// splicer collects byte range edits against the original source
type splicer struct {
	fset  *token.FileSet
	src   []byte
	edits []edit
}

func (s *splicer) offset(pos token.Pos) int {
	return s.fset.File(pos).Offset(pos)
}

func (s *splicer) replace(from, to token.Pos, text string) {
	s.edits = append(s.edits, edit{start: s.offset(from), end: s.offset(to), text: text})
}

func (s *splicer) insertAt(offset int, text string) {
	s.edits = append(s.edits, edit{start: offset, end: offset, text: text})
}

// lineStart returns the offset of the first byte of the line holding pos
func (s *splicer) lineStart(pos token.Pos) int {
	offset := s.offset(pos)
	for offset > 0 && s.src[offset-1] != '\n' {
		offset--
	}
	return offset
}

// lineEnd returns the offset just past the newline ending the line holding
// offset, or -1 on the last line
func (s *splicer) lineEnd(offset int) int {
	if i := bytes.IndexByte(s.src[offset:], '\n'); i >= 0 {
		return offset + i + 1
	}
	return -1
}

// lineAfter is lineEnd for a position, or the end of src on the last line
func (s *splicer) lineAfter(pos token.Pos) int {
	if end := s.lineEnd(s.offset(pos)); end >= 0 {
		return end
	}
	return len(s.src)
}

// removeLine removes a comment. When the comment is alone on its line the
// whole line goes.
func (s *splicer) removeLine(c *ast.Comment) {
	start, end := s.offset(c.Slash), s.offset(c.End())

	lineStart := start
	for lineStart > 0 && (s.src[lineStart-1] == ' ' || s.src[lineStart-1] == '\t') {
		lineStart--
	}
	if lineStart == 0 || s.src[lineStart-1] == '\n' {
		start = lineStart
		if end < len(s.src) && s.src[end] == '\r' {
			end++
		}
		if end < len(s.src) && s.src[end] == '\n' {
			end++
		}
	}

	s.edits = append(s.edits, edit{start: start, end: end})
}

func (s *splicer) apply() ([]byte, error) {
	sort.SliceStable(s.edits, func(i, j int) bool {
		return s.edits[i].start < s.edits[j].start
	})

	var buf bytes.Buffer
	last := 0
	for _, e := range s.edits {
		if e.start < last {
			return nil, fmt.Errorf("overlapping edits at offset %d", e.start)
		}
		buf.Write(s.src[last:e.start])
		buf.WriteString(e.text)
		last = e.end
	}
	buf.Write(s.src[last:])
	return buf.Bytes(), nil
}
