// Package weave rewrites the methods of one annotated Go type.
//
// The Go stand-in for an annotated implementation block is a named type and
// the methods declared on it in the same file. Methods opt in with a directive
// comment (//measure:HitCount); the type may carry the same directive, in which
// case its attributes apply to every opted-in method and come first.
//
// Weaving is a pure function of its inputs: it parses the source, asks a
// Weaver for a replacement body for each opted-in method, strips the
// recognised directives, and returns the new source. Any failure aborts the
// whole operation.
package weave

import (
	"go/ast"
	"go/token"

	"github.com/toyz/aspect/internal/annotations"
)

// Weaver is the capability a weaving consumer provides.
//
// M is the parsed form of the outer directive arguments (one per woven type),
// A the parsed form of one recognised directive.
type Weaver[M, A any] interface {
	// FnAttrName is the directive name treated as ours, e.g. "measure"
	FnAttrName() string

	// ParseMacroAttributes parses the outer directive arguments
	ParseMacroAttributes(args string) (M, error)

	// ParseAttributes parses one recognised directive
	ParseAttributes(d *annotations.Directive) (A, error)

	// UpdateFnBlock returns the new body of a method. attrs holds the
	// type-level attributes first, then the method's own, in source order.
	UpdateFnBlock(fn *Method, main M, attrs []A) (*ast.BlockStmt, error)
}

// Method is the view of one opted-in method handed to UpdateFnBlock.
type Method struct {
	Decl     *ast.FuncDecl
	TypeName string

	fset    *token.FileSet
	src     []byte
	imports *importSet
}

// Name returns the method name
func (m *Method) Name() string {
	return m.Decl.Name.Name
}

// Fset returns the file set the declaration positions belong to
func (m *Method) Fset() *token.FileSet {
	return m.fset
}

// Position returns the position of the func keyword
func (m *Method) Position() token.Position {
	return m.fset.Position(m.Decl.Pos())
}

// Text returns the original source text of a node of this method
func (m *Method) Text(n ast.Node) string {
	file := m.fset.File(n.Pos())
	if file == nil {
		return ""
	}
	start, end := file.Offset(n.Pos()), file.Offset(n.End())
	if start < 0 || end > len(m.src) || start > end {
		return ""
	}
	return string(m.src[start:end])
}

// ReceiverName returns the receiver identifier, or "" when it is unnamed
func (m *Method) ReceiverName() string {
	if m.Decl.Recv == nil || len(m.Decl.Recv.List) == 0 || len(m.Decl.Recv.List[0].Names) == 0 {
		return ""
	}
	name := m.Decl.Recv.List[0].Names[0].Name
	if name == "_" {
		return ""
	}
	return name
}

// Results returns the declared result fields, one entry per value
func (m *Method) Results() []*ast.Field {
	if m.Decl.Type.Results == nil {
		return nil
	}

	var out []*ast.Field
	for _, field := range m.Decl.Type.Results.List {
		n := len(field.Names)
		if n == 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			out = append(out, field)
		}
	}
	return out
}

// Import makes sure the woven file imports path and returns the identifier
// to refer to it. An existing import of path is reused.
func (m *Method) Import(path, name string) string {
	return m.imports.use(path, name)
}
