package annotations

import (
	"go/ast"
	"go/token"
	"regexp"

	"github.com/toyz/aspect/internal/errors"
)

// Directive is a comment of the form //name:args attached to a declaration.
// gofmt inserts a space after the slashes when args start with an uppercase
// letter, so "// name:args" is accepted too.
type Directive struct {
	Name     string                // directive name, e.g. "measure"
	Args     string                // text after the colon
	Comment  *ast.Comment          // the comment carrying the directive
	Location errors.SourceLocation // location of the first byte of Args
}

var directivePattern = regexp.MustCompile(`^//([ \t]*)([a-zA-Z][a-zA-Z0-9_.-]*):(.*)$`)

// ParseDirective recognises a directive comment. Block comments and ordinary
// line comments are not directives.
func ParseDirective(fset *token.FileSet, c *ast.Comment) (*Directive, bool) {
	m := directivePattern.FindStringSubmatch(c.Text)
	if m == nil {
		return nil, false
	}

	pos := fset.Position(c.Slash)
	loc := errors.LocationOf(pos).Shift(len(m[1]) + len(m[2]) + 3)

	return &Directive{
		Name:     m[2],
		Args:     m[3],
		Comment:  c,
		Location: loc,
	}, true
}

// Parse parses the directive arguments with the shared grammar
func (d *Directive) Parse() (*ArgList, error) {
	return ParseArgs(d.Args, d.Location)
}

// Directives returns every directive in a comment group, in source order
func Directives(fset *token.FileSet, group *ast.CommentGroup) []*Directive {
	if group == nil {
		return nil
	}

	var out []*Directive
	for _, c := range group.List {
		if d, ok := ParseDirective(fset, c); ok {
			out = append(out, d)
		}
	}
	return out
}
