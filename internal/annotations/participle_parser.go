package annotations

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/toyz/aspect/internal/errors"
)

// ArgList is the parsed argument text of a directive, e.g. the
// "HitCount, Retry(max=3)" in //measure:HitCount, Retry(max=3)
type ArgList struct {
	Args []*Arg `parser:"( @@ ( ',' @@ )* )?"`
}

// Arg is one argument: a bare name, a name=value pair, a call-like
// name(args...), or a bracketed list of arguments.
type Arg struct {
	Pos lexer.Position

	Bracket bool   `parser:"  @'['"`
	Items   []*Arg `parser:"  ( @@ ( ',' @@ )* )? ']'"`
	Name    string `parser:"| @Ident"`
	Value   *Value `parser:"  ( '=' @@"`
	Paren   bool   `parser:"  | @'('"`
	Args    []*Arg `parser:"    ( @@ ( ',' @@ )* )? ')' )?"`
}

// Value is the right hand side of name=value
type Value struct {
	Pos lexer.Position

	String   *string  `parser:"  @String"`
	Duration *string  `parser:"| @Duration"`
	Number   *string  `parser:"| @Number"`
	Ident    *string  `parser:"| @(Ident ( '.' Ident )*)"`
	List     []*Value `parser:"| '[' ( @@ ( ',' @@ )* )? ']'"`
}

// ArgParser parses directive arguments with alecthomas/participle
type ArgParser struct {
	parser *participle.Parser[ArgList]
}

// NewArgParser creates a new directive argument parser
func NewArgParser() *ArgParser {
	lex := lexer.MustSimple([]lexer.SimpleRule{
		{Name: "String", Pattern: `"(\\.|[^"\\])*"|` + "`[^`]*`"},
		{Name: "Duration", Pattern: `([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+`},
		{Name: "Number", Pattern: `[-+]?[0-9]+(\.[0-9]+)?`},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
		{Name: "Punct", Pattern: `[=,()\[\].]`},
		{Name: "Whitespace", Pattern: `\s+`},
	})

	return &ArgParser{
		parser: participle.MustBuild[ArgList](
			participle.Lexer(lex),
			participle.Elide("Whitespace"),
			participle.Unquote("String"),
			participle.UseLookahead(2),
		),
	}
}

var defaultArgParser = NewArgParser()

// ParseArgs parses directive arguments with the shared parser
func ParseArgs(input string, loc errors.SourceLocation) (*ArgList, error) {
	return defaultArgParser.Parse(input, loc)
}

// Parse parses input. loc is the location of the first byte of input; syntax
// errors are reported relative to it.
func (p *ArgParser) Parse(input string, loc errors.SourceLocation) (*ArgList, error) {
	if strings.TrimSpace(input) == "" {
		return &ArgList{}, nil
	}

	list, err := p.parser.ParseString(loc.File, input)
	if err != nil {
		return nil, p.syntaxError(input, loc, err)
	}
	return list, nil
}

func (p *ArgParser) syntaxError(input string, loc errors.SourceLocation, err error) error {
	message := err.Error()
	offset := 0

	var perr participle.Error
	if stderrors.As(err, &perr) {
		message = perr.Message()
		offset = perr.Position().Offset
	}

	token := ""
	if offset < len(input) {
		if fields := strings.Fields(input[offset:]); len(fields) > 0 {
			token = fields[0]
		}
	}

	return errors.NewSyntaxErrorWithToken(fmt.Sprintf("malformed directive arguments: %s", message), token, offset).
		WithInput(input).
		WithLocation(loc.Shift(offset)).
		WithSuggestion("Use a comma separated list such as: Name, key=value, Name(key=value), [A, B]")
}

// Flatten returns the top level arguments with bracketed lists expanded in
// place, so "[A, B], C" and "A, B, C" read the same.
func (l *ArgList) Flatten() []*Arg {
	if l == nil {
		return nil
	}
	return flatten(l.Args)
}

func flatten(args []*Arg) []*Arg {
	var out []*Arg
	for _, arg := range args {
		if arg.Bracket {
			out = append(out, flatten(arg.Items)...)
			continue
		}
		out = append(out, arg)
	}
	return out
}

// Named returns the value of the first top level name=value argument
func (l *ArgList) Named(name string) (*Value, bool) {
	for _, arg := range l.Flatten() {
		if arg.Name == name && arg.Value != nil {
			return arg.Value, true
		}
	}
	return nil, false
}

// Idents returns the names of the bare and call-like arguments, in order
func (l *ArgList) Idents() []string {
	var names []string
	for _, arg := range l.Flatten() {
		if arg.Value == nil && arg.Name != "" {
			names = append(names, arg.Name)
		}
	}
	return names
}

// IsFlag reports whether the argument is a bare name
func (a *Arg) IsFlag() bool {
	return a.Name != "" && a.Value == nil && !a.Paren
}

// CallArgs returns the arguments between parentheses, or nil when the
// argument is not call-like
func (a *Arg) CallArgs() *ArgList {
	if !a.Paren {
		return nil
	}
	return &ArgList{Args: a.Args}
}

// Raw returns the value as it would be written in a directive, without quotes
func (v *Value) Raw() string {
	switch {
	case v == nil:
		return ""
	case v.String != nil:
		return *v.String
	case v.Duration != nil:
		return *v.Duration
	case v.Number != nil:
		return *v.Number
	case v.Ident != nil:
		return *v.Ident
	}

	parts := make([]string, len(v.List))
	for i, item := range v.List {
		parts[i] = item.Raw()
	}
	return strings.Join(parts, ",")
}

// Interface converts the value to the Go value used by schema validation:
// string, int, bool, time.Duration or []string
func (v *Value) Interface() interface{} {
	switch {
	case v == nil:
		return nil
	case v.Duration != nil:
		d, err := ConvertToDuration(*v.Duration)
		if err != nil {
			return *v.Duration
		}
		return d
	case v.Number != nil:
		if n, err := ConvertToInt(*v.Number); err == nil {
			return n
		}
		return *v.Number
	case v.Ident != nil:
		if b, err := parseBoolString(*v.Ident); err == nil {
			return b
		}
		return *v.Ident
	case v.String != nil:
		return *v.String
	}

	items := make([]string, len(v.List))
	for i, item := range v.List {
		items[i] = item.Raw()
	}
	return items
}
