package cli

import (
	"bytes"
	"go/build/constraint"
	"path/filepath"
	"strings"

	"github.com/toyz/aspect/internal/errors"
	"github.com/toyz/aspect/internal/templates"
)

// AspectSource is a Go file whose build constraint requires the aspect tag.
// The go tool skips it in normal builds; its woven twin builds instead.
type AspectSource struct {
	Path       string
	Src        []byte
	Constraint constraint.Expr
}

// ParseAspectSource reports whether src is an aspect source for tag. A file
// qualifies when tag is a conjunct of its //go:build line.
func ParseAspectSource(path string, src []byte, tag string) (*AspectSource, bool, error) {
	for i, line := range headerLines(src) {
		if !constraint.IsGoBuild(line) {
			continue
		}
		expr, err := constraint.Parse(line)
		if err != nil {
			return nil, false, errors.NewSyntaxError("malformed //go:build line").
				WithInput(line).
				WithCause(err).
				WithLocation(errors.SourceLocation{File: path, Line: i + 1, Column: 1})
		}
		if !requiresTag(expr, tag) {
			return nil, false, nil
		}
		return &AspectSource{Path: path, Src: src, Constraint: expr}, true, nil
	}
	return nil, false, nil
}

// WovenConstraint is the source constraint with tag negated
func (s *AspectSource) WovenConstraint(tag string) string {
	return negateTag(s.Constraint, tag).String()
}

// Assemble builds the woven file: the generated header, then woven without
// its build lines.
func (s *AspectSource) Assemble(tag string, woven []byte) ([]byte, error) {
	header, err := templates.GenerateHeader(templates.HeaderData{
		Source:     filepath.Base(s.Path),
		Constraint: s.WovenConstraint(tag),
	})
	if err != nil {
		return nil, errors.WrapGenerateError("header for "+s.Path, err).WithStage("template")
	}

	var buf bytes.Buffer
	buf.WriteString(header)
	buf.Write(stripBuildLines(woven))
	return buf.Bytes(), nil
}

// IsGenerated reports whether src starts with the header written by Assemble
func IsGenerated(src []byte) bool {
	return bytes.HasPrefix(src, []byte("// Code generated by aspectgen"))
}

func requiresTag(expr constraint.Expr, tag string) bool {
	switch x := expr.(type) {
	case *constraint.TagExpr:
		return x.Tag == tag
	case *constraint.AndExpr:
		return requiresTag(x.X, tag) || requiresTag(x.Y, tag)
	default:
		return false
	}
}

func negateTag(expr constraint.Expr, tag string) constraint.Expr {
	switch x := expr.(type) {
	case *constraint.TagExpr:
		if x.Tag == tag {
			return &constraint.NotExpr{X: x}
		}
		return x
	case *constraint.AndExpr:
		return &constraint.AndExpr{X: negateTag(x.X, tag), Y: negateTag(x.Y, tag)}
	case *constraint.OrExpr:
		return &constraint.OrExpr{X: negateTag(x.X, tag), Y: negateTag(x.Y, tag)}
	case *constraint.NotExpr:
		return &constraint.NotExpr{X: negateTag(x.X, tag)}
	default:
		return x
	}
}

// headerLines returns the lines before the package clause
func headerLines(src []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(src), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(strings.TrimSpace(line), "package ") {
			break
		}
		lines = append(lines, line)
	}
	return lines
}

// stripBuildLines drops the build constraint lines ahead of the package
// clause, collapsing the blank lines they leave behind
func stripBuildLines(src []byte) []byte {
	header := headerLines(src)
	rest := strings.Split(string(src), "\n")[len(header):]

	var kept []string
	for _, line := range header {
		if constraint.IsGoBuild(line) || constraint.IsPlusBuild(line) {
			continue
		}
		if strings.TrimSpace(line) == "" && (len(kept) == 0 || strings.TrimSpace(kept[len(kept)-1]) == "") {
			continue
		}
		kept = append(kept, line)
	}

	return []byte(strings.Join(append(kept, rest...), "\n"))
}
