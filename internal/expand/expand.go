// Package expand generates the intercept loop around a method body.
//
// An expansion is bound at definition time to the notify function it calls,
// so the Intercept and InterceptMut expansions render the same loop and only
// differ in that call:
//
//	{
//		__a0 := <aspect>
//		for {
//			__enter0 := __a0.Enter()
//			__r0 := func() R { <body> }()
//			if __advice0, __v0 := aspect.Notify(__a0, __enter0, __r0); __advice0 == aspect.Return {
//				return __v0
//			}
//		}
//	}
//
// A scoped expansion evaluates the closure through aspect.Scoped, so the
// aspect's LeaveScope runs when the body panics.
package expand

import (
	"fmt"
	"go/ast"
	"go/token"
	"strconv"

	"github.com/toyz/aspect/internal/errors"
)

// AspectImportPath is the import path of the runtime the generated code calls
const AspectImportPath = "github.com/toyz/aspect/pkg/aspect"

// Macro is a reusable expansion bound to one notify function.
type Macro struct {
	name   string
	notify string
	scoped bool
}

// Define binds an expansion to notify, the name of a function of the aspect
// runtime with the shape func(a, enter, result) (Advice, R).
func Define(name, notify string) *Macro {
	return &Macro{name: name, notify: notify}
}

// DefineScoped is Define for expansions that call LeaveScope when the body
// exits without returning.
func DefineScoped(name, notify string) *Macro {
	return &Macro{name: name, notify: notify, scoped: true}
}

var (
	// Intercept calls aspect.Notify; the result is never replaced
	Intercept = Define("Intercept", "Notify")

	// InterceptMut calls aspect.NotifyMut; the aspect may replace the result
	InterceptMut = Define("InterceptMut", "NotifyMut")

	// InterceptScoped is Intercept for aspects with a LeaveScope of their own
	InterceptScoped = DefineScoped("InterceptScoped", "Notify")
)

// Name returns the name the expansion was defined with
func (m *Macro) Name() string {
	return m.name
}

// Expansion describes the method being wrapped.
type Expansion struct {
	AspectPkg string        // local name of the aspect runtime import
	Type      *ast.FuncType // signature of the wrapped method
	Body      *ast.BlockStmt
	Pos       token.Position // used in errors

	depth int
}

// Expand wraps e.Body with one aspect
func (m *Macro) Expand(e Expansion, aspect ast.Expr) (*ast.BlockStmt, error) {
	results, err := resultShape(e)
	if err != nil {
		return nil, err
	}

	suffix := strconv.Itoa(e.depth)
	a := ast.NewIdent("__a" + suffix)
	enter := ast.NewIdent("__enter" + suffix)
	r := ast.NewIdent("__r" + suffix)
	advice := ast.NewIdent("__advice" + suffix)
	v := ast.NewIdent("__v" + suffix)

	pkg := e.AspectPkg
	if pkg == "" {
		pkg = "aspect"
	}

	closureType, body := closure(e, results)
	lit := &ast.FuncLit{Type: closureType, Body: body}

	var value ast.Expr
	switch {
	case m.scoped && results == 2:
		value = &ast.CallExpr{Fun: sel(pkg, "ScopedOf"), Args: []ast.Expr{a, enter, lit}}
	case m.scoped:
		value = &ast.CallExpr{Fun: sel(pkg, "Scoped"), Args: []ast.Expr{a, enter, lit}}
	case results == 2:
		value = &ast.CallExpr{Fun: sel(pkg, "Of"), Args: []ast.Expr{&ast.CallExpr{Fun: lit}}}
	default:
		value = &ast.CallExpr{Fun: lit}
	}

	var returned ast.Stmt = &ast.ReturnStmt{}
	valueName := v
	switch results {
	case 0:
		valueName = ast.NewIdent("_")
	case 1:
		returned = &ast.ReturnStmt{Results: []ast.Expr{v}}
	case 2:
		returned = &ast.ReturnStmt{Results: []ast.Expr{
			&ast.SelectorExpr{X: v, Sel: ast.NewIdent("First")},
			&ast.SelectorExpr{X: v, Sel: ast.NewIdent("Second")},
		}}
	}

	loop := &ast.ForStmt{Body: &ast.BlockStmt{List: []ast.Stmt{
		define(enter, &ast.CallExpr{Fun: &ast.SelectorExpr{X: a, Sel: ast.NewIdent("Enter")}}),
		define(r, value),
		&ast.IfStmt{
			Init: &ast.AssignStmt{
				Lhs: []ast.Expr{advice, valueName},
				Tok: token.DEFINE,
				Rhs: []ast.Expr{&ast.CallExpr{Fun: sel(pkg, m.notify), Args: []ast.Expr{a, enter, r}}},
			},
			Cond: &ast.BinaryExpr{X: advice, Op: token.EQL, Y: sel(pkg, "Return")},
			Body: &ast.BlockStmt{List: []ast.Stmt{returned}},
		},
	}}}

	return &ast.BlockStmt{List: []ast.Stmt{define(a, aspect), loop}}, nil
}

// ExpandAll wraps e.Body with every aspect, the first one outermost. The
// expansion of each aspect is chosen by pick.
func ExpandAll(e Expansion, aspects []ast.Expr, pick func(i int) *Macro) (*ast.BlockStmt, error) {
	if len(aspects) == 0 {
		return e.Body, nil
	}

	body := e.Body
	for i := len(aspects) - 1; i >= 0; i-- {
		step := e
		step.Body = body
		step.depth = i

		wrapped, err := pick(i).Expand(step, aspects[i])
		if err != nil {
			return nil, err
		}
		body = wrapped
	}
	return body, nil
}

// resultShape returns the number of result values
func resultShape(e Expansion) (int, error) {
	n := 0
	if e.Type.Results != nil {
		for _, field := range e.Type.Results.List {
			if len(field.Names) == 0 {
				n++
				continue
			}
			n += len(field.Names)
		}
	}

	if n > 2 {
		return 0, errors.NewGenerationError(fmt.Sprintf("methods with %d results cannot be intercepted", n)).
			WithStage("expand").
			WithLocation(errors.LocationOf(e.Pos)).
			WithSuggestion("Return at most two values, e.g. a struct and an error")
	}
	return n, nil
}

// closure returns the signature and body of the function literal wrapping the
// original body. The original result list is reused so named results and bare
// returns keep working.
func closure(e Expansion, results int) (*ast.FuncType, *ast.BlockStmt) {
	if results > 0 {
		return &ast.FuncType{Params: &ast.FieldList{}, Results: e.Type.Results}, e.Body
	}

	fnType := &ast.FuncType{
		Params: &ast.FieldList{},
		Results: &ast.FieldList{List: []*ast.Field{{
			Names: []*ast.Ident{ast.NewIdent("_")},
			Type:  &ast.StructType{Fields: &ast.FieldList{}},
		}}},
	}

	stmts := append([]ast.Stmt{}, e.Body.List...)
	stmts = append(stmts, &ast.ReturnStmt{})
	return fnType, &ast.BlockStmt{List: stmts}
}

func define(name *ast.Ident, value ast.Expr) ast.Stmt {
	return &ast.AssignStmt{Lhs: []ast.Expr{name}, Tok: token.DEFINE, Rhs: []ast.Expr{value}}
}

func sel(pkg, name string) ast.Expr {
	return &ast.SelectorExpr{X: ast.NewIdent(pkg), Sel: ast.NewIdent(name)}
}
