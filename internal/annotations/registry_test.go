package annotations

import (
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toyz/aspect/internal/errors"
)

func testRegistry(t *testing.T) SchemaRegistry {
	t.Helper()

	r := NewRegistry()
	require.NoError(t, r.Register(Schema{Name: "HitCount"}))
	require.NoError(t, r.Register(Schema{
		Name: "Retry",
		Parameters: map[string]ParameterSpec{
			"max": {Type: IntType, DefaultValue: 3, Validator: func(v interface{}) error {
				if v.(int) < 1 {
					return fmt.Errorf("a positive number")
				}
				return nil
			}},
			"backoff": {Type: DurationType},
			"jitter":  {Type: BoolType},
		},
	}))
	require.NoError(t, r.Register(Schema{
		Name: "Tagged",
		Parameters: map[string]ParameterSpec{
			"tags": {Type: StringSliceType, Required: true},
		},
	}))
	return r
}

func resolve(t *testing.T, r SchemaRegistry, input string) ([]*Attribute, error) {
	t.Helper()
	list, err := ParseArgs(input, errors.SourceLocation{File: "f.go", Line: 1, Column: 10})
	require.NoError(t, err)
	return r.Resolve(list, errors.SourceLocation{File: "f.go", Line: 1, Column: 10}, "//measure:"+input)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.Register(Schema{}))
	require.NoError(t, r.Register(Schema{Name: "A"}))
	assert.Error(t, r.Register(Schema{Name: "A"}), "duplicate names are rejected")
	assert.Error(t, r.Register(Schema{Name: "B", Parameters: map[string]ParameterSpec{
		"n": {Type: IntType, DefaultValue: "not a number"},
	}}))

	assert.True(t, r.IsRegistered("A"))
	assert.False(t, r.IsRegistered("B"))
	assert.Equal(t, []string{"A"}, r.Names())

	_, err := r.GetSchema("missing")
	assert.Error(t, err)
}

func TestRegistry_Resolve(t *testing.T) {
	r := testRegistry(t)

	attrs, err := resolve(t, r, "HitCount, Retry(max=5, backoff=250ms, jitter), Tagged(tags=[a, b])")
	require.NoError(t, err)
	require.Len(t, attrs, 3)

	assert.Equal(t, "HitCount", attrs[0].Name)
	assert.Equal(t, "//measure:HitCount, Retry(max=5, backoff=250ms, jitter), Tagged(tags=[a, b])", attrs[0].Raw)

	retry := attrs[1]
	assert.Equal(t, 5, retry.GetInt("max"))
	assert.Equal(t, 250*time.Millisecond, retry.GetDuration("backoff"))
	assert.True(t, retry.GetBool("jitter"))
	assert.Equal(t, "f.go", retry.Location.File)
	assert.Equal(t, 20, retry.Location.Column)

	assert.Equal(t, []string{"a", "b"}, attrs[2].GetStringSlice("tags"))
}

func TestRegistry_ResolveDefaults(t *testing.T) {
	r := testRegistry(t)

	attrs, err := resolve(t, r, "Retry")
	require.NoError(t, err)
	require.Len(t, attrs, 1)

	assert.Equal(t, 3, attrs[0].GetInt("max"))
	assert.False(t, attrs[0].HasParameter("backoff"))
	assert.Equal(t, time.Second, attrs[0].GetDuration("backoff", time.Second))
}

func TestRegistry_ResolveTypeForm(t *testing.T) {
	r := testRegistry(t)

	attrs, err := resolve(t, r, "type=HitCount")
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	assert.Equal(t, "HitCount", attrs[0].Name)
}

func TestRegistry_ResolveErrors(t *testing.T) {
	r := testRegistry(t)

	tests := []struct {
		name  string
		input string
		field string
	}{
		{"unknown attribute", "Hits", "attribute"},
		{"unknown parameter", "Retry(limit=2)", "Retry"},
		{"wrong type", "Retry(max=soon)", "Retry.max"},
		{"validator", "Retry(max=0)", "Retry.max"},
		{"flag for non bool", "Retry(max)", "Retry.max"},
		{"missing required", "Tagged", "Tagged.tags"},
		{"named top level value", "registry=X", "registry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolve(t, r, tt.input)
			require.Error(t, err)

			var validation *errors.ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tt.field, validation.Field)
			assert.Equal(t, errors.ValidationErrorCode, errors.Code(err))
			assert.Equal(t, 1, validation.Location().Line)
		})
	}
}

func TestParseDirective(t *testing.T) {
	src := `package p

// Doc comment.
//measure:HitCount, Retry(max=2)
//go:noinline
// Ordinary prose.
/* block */
func F() {}
`
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "p.go", src, parser.ParseComments)
	require.NoError(t, err)

	fn := file.Decls[0].(*ast.FuncDecl)
	directives := Directives(fset, fn.Doc)
	require.Len(t, directives, 2)

	measure := directives[0]
	assert.Equal(t, "measure", measure.Name)
	assert.Equal(t, "HitCount, Retry(max=2)", measure.Args)
	assert.Equal(t, 4, measure.Location.Line)
	assert.Equal(t, 11, measure.Location.Column)

	list, err := measure.Parse()
	require.NoError(t, err)
	assert.Equal(t, []string{"HitCount", "Retry"}, list.Idents())

	assert.Equal(t, "go", directives[1].Name)
	assert.Equal(t, "noinline", directives[1].Args)

	assert.Nil(t, Directives(fset, nil))
}

func TestParseDirective_Gofmted(t *testing.T) {
	src := []byte("package p\n\n//measure:HitCount, Retry(max=2)\nfunc F() {}\n")
	formatted, err := format.Source(src)
	require.NoError(t, err)
	require.Contains(t, string(formatted), "// measure:HitCount")

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "p.go", formatted, parser.ParseComments)
	require.NoError(t, err)

	directives := Directives(fset, file.Decls[0].(*ast.FuncDecl).Doc)
	require.Len(t, directives, 1)
	assert.Equal(t, "measure", directives[0].Name)
	assert.Equal(t, "HitCount, Retry(max=2)", directives[0].Args)
	assert.Equal(t, 12, directives[0].Location.Column)

	_, ok := ParseDirective(fset, &ast.Comment{Text: "//\tmeasure:HitCount"})
	assert.True(t, ok)
	_, ok = ParseDirective(fset, &ast.Comment{Text: "// just prose"})
	assert.False(t, ok)
}

func TestDirective_ParseErrorLocation(t *testing.T) {
	c := &ast.Comment{Text: "//measure:Retry(max=2"}
	fset := token.NewFileSet()

	d, ok := ParseDirective(fset, c)
	require.True(t, ok)

	_, err := d.Parse()
	require.Error(t, err)
	assert.Equal(t, errors.SyntaxErrorCode, errors.Code(err))
}

func TestConvertTo(t *testing.T) {
	tests := []struct {
		value   interface{}
		target  ParameterType
		want    interface{}
		wantErr bool
	}{
		{"x", StringType, "x", false},
		{7, StringType, "7", false},
		{"yes", BoolType, true, false},
		{"off", BoolType, false, false},
		{"maybe", BoolType, nil, true},
		{"12", IntType, 12, false},
		{"twelve", IntType, nil, true},
		{"2s", DurationType, 2 * time.Second, false},
		{"a,b", StringSliceType, []string{"a", "b"}, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v to %s", tt.value, tt.target), func(t *testing.T) {
			got, err := ConvertTo(tt.value, tt.target)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
