// Package metered weaves metric aspects into the methods of annotated types.
//
//	//metered:registry=ServiceMetrics
//	type Service struct {
//		metrics ServiceMetrics
//	}
//
//	//measure:HitCount, ResponseTime, Retry(max=2)
//	func (s *Service) Get(id int) (*User, error) { ... }
//
// Every measured method gets one field in the registry, holding one metric per
// measured kind. Type level //measure directives apply to every measured
// method of the type.
package metered

import (
	"fmt"
	"go/ast"
	"go/token"
	"strconv"

	"github.com/toyz/aspect/internal/annotations"
	"github.com/toyz/aspect/internal/errors"
	"github.com/toyz/aspect/internal/expand"
	"github.com/toyz/aspect/internal/templates"
	"github.com/toyz/aspect/internal/weave"
)

const (
	// OuterDirective marks a type whose methods are measured
	OuterDirective = "metered"

	// MeasureDirective lists the metrics of a method or of every method of a type
	MeasureDirective = "measure"

	// RuntimeImportPath is the import path of the metric runtime
	RuntimeImportPath = "github.com/toyz/aspect/pkg/metered"
)

// Options are the arguments of the outer directive
type Options struct {
	Registry string // registry type name, <Type>Metrics when empty
	Field    string // receiver field holding the registry
	Exported bool   // whether generated registry types are exported
	Prefix   string // instrument name prefix, the snake_case type name when empty
}

// Measure is one //measure directive
type Measure struct {
	Metrics  []*annotations.Attribute
	Location errors.SourceLocation
}

// scopedKinds are the metrics whose LeaveScope must run when a measured
// method panics
var scopedKinds = map[string]bool{"InFlight": true}

// measuredMethod is what the registry needs to know about a woven method
type measuredMethod struct {
	name       string
	resultType string
	kinds      []string
}

// Weaver implements weave.Weaver for metric aspects. A Weaver remembers the
// methods it wove for Registry; use one per file.
type Weaver struct {
	schemas annotations.SchemaRegistry // metrics accepted by //measure
	options annotations.SchemaRegistry // the outer directive
	utils   *templates.TemplateUtils

	methods map[string][]measuredMethod // type name -> methods
}

var _ weave.Weaver[Options, Measure] = (*Weaver)(nil)

// NewWeaver creates a metric weaver
func NewWeaver() *Weaver {
	return &Weaver{
		schemas: newMetricSchemas(),
		options: newOptionSchemas(),
		utils:   templates.NewTemplateUtils(),
		methods: make(map[string][]measuredMethod),
	}
}

// FnAttrName returns the directive listing the metrics of a method
func (w *Weaver) FnAttrName() string {
	return MeasureDirective
}

// ParseMacroAttributes parses the arguments of the outer directive. Errors
// carry no location; the caller knows where args were written.
func (w *Weaver) ParseMacroAttributes(args string) (Options, error) {
	list, err := annotations.ParseArgs(args, errors.SourceLocation{})
	if err != nil {
		return Options{}, err
	}

	call := &annotations.ArgList{Args: []*annotations.Arg{{Name: OuterDirective, Paren: true, Args: list.Args}}}
	attrs, err := w.options.Resolve(call, errors.SourceLocation{}, args)
	if err != nil {
		return Options{}, err
	}

	attr := attrs[0]
	return Options{
		Registry: attr.GetString("registry"),
		Field:    attr.GetString("field", "metrics"),
		Exported: attr.GetString("visibility", "pub") == "pub",
		Prefix:   attr.GetString("prefix"),
	}, nil
}

// ParseAttributes resolves the metrics of one //measure directive
func (w *Weaver) ParseAttributes(d *annotations.Directive) (Measure, error) {
	list, err := d.Parse()
	if err != nil {
		return Measure{}, err
	}

	attrs, err := w.schemas.Resolve(list, d.Location, d.Comment.Text)
	if err != nil {
		return Measure{}, err
	}
	if len(attrs) == 0 {
		return Measure{}, errors.NewValidationError(MeasureDirective, "at least one metric", "nothing").
			WithLocation(d.Location).
			WithSuggestion("List metrics such as //measure:HitCount, ResponseTime")
	}

	return Measure{Metrics: attrs, Location: d.Location}, nil
}

// UpdateFnBlock wraps the body of fn with one aspect per metric, the first
// metric outermost, and records fn for the registry of its type.
func (w *Weaver) UpdateFnBlock(fn *weave.Method, opts Options, measures []Measure) (*ast.BlockStmt, error) {
	recv := fn.ReceiverName()
	if recv == "" {
		return nil, errors.NewGenerationError(fmt.Sprintf("%s.%s needs a named receiver", fn.TypeName, fn.Name())).
			WithLocation(errors.LocationOf(fn.Position())).
			WithSuggestion(fmt.Sprintf("Name the receiver: func (x *%s) %s(...)", fn.TypeName, fn.Name()))
	}

	recvType := fn.Decl.Recv.List[0].Type
	star, ok := recvType.(*ast.StarExpr)
	if !ok {
		return nil, errors.NewGenerationError(fmt.Sprintf("%s.%s has a value receiver; metrics would be recorded on a copy", fn.TypeName, fn.Name())).
			WithLocation(errors.LocationOf(fn.Position())).
			WithSuggestion("Use a pointer receiver for measured methods")
	}
	if _, plain := star.X.(*ast.Ident); !plain {
		return nil, errors.NewGenerationError(fmt.Sprintf("%s.%s: generic types cannot be measured", fn.TypeName, fn.Name())).
			WithLocation(errors.LocationOf(fn.Position()))
	}

	aspectPkg := fn.Import(expand.AspectImportPath, "")

	resultType, err := resultTypeText(fn, aspectPkg)
	if err != nil {
		return nil, err
	}

	field := w.utils.ToPascalCase(fn.Name())
	for _, other := range w.methods[fn.TypeName] {
		if w.utils.ToPascalCase(other.name) == field {
			return nil, errors.NewGenerationError(fmt.Sprintf("%s.%s and %s.%s share the registry field %s", fn.TypeName, other.name, fn.TypeName, fn.Name(), field)).
				WithLocation(errors.LocationOf(fn.Position()))
		}
	}

	kinds, limits := collectKinds(measures)
	aspects := make([]ast.Expr, len(kinds))
	for i, kind := range kinds {
		metric := selector(recv, opts.Field, field, kind)
		if kind == "Retry" {
			aspects[i] = &ast.CallExpr{
				Fun:  &ast.SelectorExpr{X: metric, Sel: ast.NewIdent("Call")},
				Args: []ast.Expr{&ast.BasicLit{Kind: token.INT, Value: strconv.Itoa(limits[kind])}},
			}
			continue
		}
		aspects[i] = &ast.UnaryExpr{Op: token.AND, X: metric}
	}

	body, err := expand.ExpandAll(expand.Expansion{
		AspectPkg: aspectPkg,
		Type:      fn.Decl.Type,
		Body:      fn.Decl.Body,
		Pos:       fn.Position(),
	}, aspects, func(i int) *expand.Macro {
		if scopedKinds[kinds[i]] {
			return expand.InterceptScoped
		}
		return expand.Intercept
	})
	if err != nil {
		return nil, err
	}

	w.methods[fn.TypeName] = append(w.methods[fn.TypeName], measuredMethod{
		name:       fn.Name(),
		resultType: resultType,
		kinds:      kinds,
	})
	return body, nil
}

// collectKinds returns the distinct metric kinds in directive order, and the
// retry limit of each kind that has one
func collectKinds(measures []Measure) ([]string, map[string]int) {
	var kinds []string
	limits := make(map[string]int)
	seen := make(map[string]bool)

	for _, m := range measures {
		for _, attr := range m.Metrics {
			if seen[attr.Name] {
				continue
			}
			seen[attr.Name] = true
			kinds = append(kinds, attr.Name)
			if attr.HasParameter("max") {
				limits[attr.Name] = attr.GetInt("max")
			}
		}
	}
	return kinds, limits
}

// selector builds a.b.c without positions
func selector(parts ...string) ast.Expr {
	var expr ast.Expr = ast.NewIdent(parts[0])
	for _, part := range parts[1:] {
		expr = &ast.SelectorExpr{X: expr, Sel: ast.NewIdent(part)}
	}
	return expr
}

// resultTypeText returns the Go type the metrics of fn are instantiated with
func resultTypeText(fn *weave.Method, aspectPkg string) (string, error) {
	results := fn.Results()
	switch len(results) {
	case 0:
		return "struct{}", nil
	case 1:
		return fn.Text(results[0].Type), nil
	case 2:
		return fmt.Sprintf("%s.Pair[%s, %s]", aspectPkg, fn.Text(results[0].Type), fn.Text(results[1].Type)), nil
	}

	return "", errors.NewGenerationError(fmt.Sprintf("%s.%s returns %d values; at most two can be measured", fn.TypeName, fn.Name(), len(results))).
		WithLocation(errors.LocationOf(fn.Position())).
		WithSuggestion("Group the results in a struct")
}

// Registry returns the registry description for a woven type
func (w *Weaver) Registry(typeName string, opts Options, meteredPkg, metricPkg, ioPkg string) templates.RegistryData {
	name := opts.Registry
	if name == "" {
		name = typeName + "Metrics"
	}
	name = w.utils.WithVisibility(name, opts.Exported)

	prefix := opts.Prefix
	if prefix == "" {
		prefix = w.utils.ToSnakeCase(typeName)
	}

	data := templates.RegistryData{
		Name:       name,
		TypeName:   typeName,
		Prefix:     prefix,
		MeteredPkg: meteredPkg,
		MetricPkg:  metricPkg,
		IOPkg:      ioPkg,
	}

	for _, m := range w.methods[typeName] {
		field := w.utils.ToPascalCase(m.name)
		method := templates.MethodRegistryData{
			Method:   m.name,
			Field:    field,
			TypeName: name + field,
			Tag:      w.utils.ToSnakeCase(m.name),
		}
		for _, kind := range m.kinds {
			method.Metrics = append(method.Metrics, templates.MetricFieldData{
				Field: kind,
				Type:  fmt.Sprintf("%s.%s[%s]", meteredPkg, kind, m.resultType),
				Tag:   w.utils.ToSnakeCase(kind),
			})
		}
		data.Methods = append(data.Methods, method)
	}
	return data
}

// KnownMetrics returns the metric names accepted by //measure
func (w *Weaver) KnownMetrics() []string {
	return w.schemas.Names()
}
