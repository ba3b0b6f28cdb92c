package weave

import (
	"go/ast"
	"go/parser"
	"go/token"

	"github.com/toyz/aspect/internal/annotations"
	"github.com/toyz/aspect/internal/errors"
)

// Target is a type carrying an outer directive, e.g. //metered:registry=Metrics
type Target struct {
	TypeName string
	Args     string
	Location errors.SourceLocation
}

// WovenFile is the result of weaving every target of one file.
type WovenFile[M, A any] struct {
	Source []byte
	Blocks []*WovenImplBlock[M, A]
}

// FindTargets returns the types in src carrying the outer directive, in
// source order
func FindTargets(filename string, src []byte, outer string) ([]Target, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, errors.WrapParseError(filename, err).WithLocation(errors.SourceLocation{File: filename})
	}

	var targets []Target
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			ts := spec.(*ast.TypeSpec)
			_, doc := findType(file, ts.Name.Name)
			for _, d := range annotations.Directives(fset, doc) {
				if d.Name != outer {
					continue
				}
				targets = append(targets, Target{TypeName: ts.Name.Name, Args: d.Args, Location: d.Location})
				break
			}
		}
	}
	return targets, nil
}

// WeaveFile weaves every type of src carrying the outer directive. The outer
// directive is stripped from each woven type. All types are woven against src
// in one pass, so untouched text and error locations refer to src.
func WeaveFile[M, A any](w Weaver[M, A], outer, filename string, src []byte) (*WovenFile[M, A], error) {
	targets, err := FindTargets(filename, src, outer)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return &WovenFile[M, A]{Source: src}, nil
	}

	mains := make([]M, len(targets))
	for i, target := range targets {
		if mains[i], err = parseMain(w, target.Args, target.Location); err != nil {
			return nil, err
		}
	}

	sess, err := newSession(w, filename, src)
	if err != nil {
		return nil, err
	}

	blocks := make([]*WovenImplBlock[M, A], len(targets))
	for i, target := range targets {
		if blocks[i], err = sess.weaveType(mains[i], target.TypeName, outer); err != nil {
			return nil, err
		}
	}
	if err := sess.finish(blocks...); err != nil {
		return nil, err
	}

	return &WovenFile[M, A]{Source: blocks[0].Source, Blocks: blocks}, nil
}
