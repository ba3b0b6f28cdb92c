package metered

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"

	"github.com/toyz/aspect/internal/errors"
	"github.com/toyz/aspect/internal/templates"
	"github.com/toyz/aspect/internal/utils"
	"github.com/toyz/aspect/internal/weave"
)

const metricImportPath = "go.opentelemetry.io/otel/metric"

// Result is a woven file
type Result struct {
	Source  []byte
	Types   []string // woven types, in source order
	Methods int      // number of woven methods
}

// Generate weaves every type of src carrying //metered and appends the
// registry of each. A file without such types is returned unchanged.
func Generate(filename string, src []byte) (*Result, error) {
	w := NewWeaver()
	woven, err := weave.WeaveFile[Options, Measure](w, OuterDirective, filename, src)
	if err != nil {
		return nil, err
	}
	if len(woven.Blocks) == 0 {
		return &Result{Source: src}, nil
	}

	result := &Result{}
	var buf bytes.Buffer
	buf.Write(woven.Source)

	for _, block := range woven.Blocks {
		data := w.Registry(block.TypeName, block.MainAttributes, "metered", "metric", "io")
		if err := checkRegistryField(block, block.MainAttributes, data.Name); err != nil {
			return nil, err
		}

		code, err := templates.GenerateRegistry(data)
		if err != nil {
			return nil, errors.WrapGenerateError("registry "+data.Name, err).WithStage("template")
		}
		formatted, err := utils.FormatGoCode([]byte(code))
		if err != nil {
			return nil, errors.WrapGenerateError("registry "+data.Name, err).WithStage("format")
		}
		buf.WriteString("\n")
		buf.Write(formatted)

		result.Types = append(result.Types, block.TypeName)
		result.Methods += block.WovenFns.Len()
	}

	source, err := addImports(filename, buf.Bytes(),
		weave.Import{Path: "io"},
		weave.Import{Path: RuntimeImportPath},
		weave.Import{Path: metricImportPath},
	)
	if err != nil {
		return nil, err
	}
	result.Source = source
	return result, nil
}

// checkRegistryField makes sure the woven type holds its registry
func checkRegistryField(block *weave.WovenImplBlock[Options, Measure], opts Options, registry string) error {
	var found *ast.Field
	ast.Inspect(block.File, func(n ast.Node) bool {
		ts, ok := n.(*ast.TypeSpec)
		if !ok || ts.Name.Name != block.TypeName {
			return found == nil
		}
		if st, ok := ts.Type.(*ast.StructType); ok {
			for _, field := range st.Fields.List {
				for _, name := range field.Names {
					if name.Name == opts.Field {
						found = field
					}
				}
			}
		}
		return false
	})

	if found == nil {
		return errors.NewGenerationError(fmt.Sprintf("type %s has no %s field", block.TypeName, opts.Field)).
			WithTarget(block.TypeName).
			WithStage("registry").
			WithLocation(errors.SourceLocation{File: block.Fset.Position(block.File.Package).Filename}).
			WithSuggestion(fmt.Sprintf("Add the field: %s %s", opts.Field, registry))
	}

	if ident, ok := found.Type.(*ast.Ident); !ok || ident.Name != registry {
		return errors.NewGenerationError(fmt.Sprintf("field %s.%s must have type %s", block.TypeName, opts.Field, registry)).
			WithTarget(block.TypeName).
			WithStage("registry").
			WithLocation(errors.LocationOf(block.Fset.Position(found.Pos()))).
			WithSuggestion(fmt.Sprintf("Declare the field as: %s %s", opts.Field, registry))
	}
	return nil
}

// addImports adds the packages the registries use. The woven source is not
// reformatted.
func addImports(filename string, src []byte, imports ...weave.Import) ([]byte, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, errors.WrapGenerateError(filename, err).WithStage("registry")
	}

	out, err := weave.AddImports(fset, file, src, imports)
	if err != nil {
		return nil, errors.WrapGenerateError(filename, err).WithStage("imports")
	}
	return out, nil
}
