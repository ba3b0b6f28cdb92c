package metered

import (
	"go/format"
	"go/parser"
	"go/token"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toyz/aspect/internal/errors"
)

const serviceSrc = `//go:build aspectsrc

package svc

import "errors"

// Service serves users.
//
//metered:registry=ServiceMetrics
//measure:HitCount
type Service struct {
	metrics ServiceMetrics
	users   map[int]string
}

// Get returns a user.
//
//measure:ErrorCount, Retry(max=2)
func (s *Service) Get(id int) (string, error) {
	name, ok := s.users[id]
	if !ok {
		return "", errors.New("not found")
	}
	return name, nil
}

//measure:[ResponseTime, InFlight]
func (s *Service) Count() int {
	return len(s.users)
}

//measure:type=Throughput
func (s *Service) Reset() {
	s.users = map[int]string{}
}

// Untouched stays as it is.
func (s *Service) Untouched() int {
	return 1
}
`

var spaces = regexp.MustCompile(`[ \t]+`)

// squash collapses runs of blanks so gofmt alignment does not matter
func squash(s string) string {
	return spaces.ReplaceAllString(s, " ")
}

func TestGenerate(t *testing.T) {
	result, err := Generate("service.go", []byte(serviceSrc))
	require.NoError(t, err)

	assert.Equal(t, []string{"Service"}, result.Types)
	assert.Equal(t, 3, result.Methods)

	out := string(result.Source)
	flat := squash(out)

	_, err = parser.ParseFile(token.NewFileSet(), "woven.go", result.Source, parser.ParseComments)
	require.NoError(t, err, out)

	t.Run("aspects wrap the bodies in order", func(t *testing.T) {
		assert.Contains(t, flat, "__a0 := &s.metrics.Get.HitCount")
		assert.Contains(t, flat, "__a1 := &s.metrics.Get.ErrorCount")
		assert.Contains(t, flat, "__a2 := s.metrics.Get.Retry.Call(2)")
		assert.Contains(t, flat, "__a1 := &s.metrics.Count.ResponseTime")
		assert.Contains(t, flat, "__a2 := &s.metrics.Count.InFlight")
		assert.Contains(t, flat, "__a1 := &s.metrics.Reset.Throughput")
		assert.Contains(t, flat, "aspect.Of(func() (string, error) {")
	})

	t.Run("in flight observes panics", func(t *testing.T) {
		assert.Contains(t, flat, "__r2 := aspect.Scoped(__a2, __enter2, func() int {")
		assert.Contains(t, flat, "__r1 := func() int {")
	})

	t.Run("untouched methods are kept", func(t *testing.T) {
		assert.Contains(t, out, "// Untouched stays as it is.\nfunc (s *Service) Untouched() int {\n\treturn 1\n}\n")
	})

	t.Run("directives are stripped", func(t *testing.T) {
		assert.NotContains(t, out, "//measure:")
		assert.NotContains(t, out, "//metered:")
		assert.Contains(t, out, "// Service serves users.")
		assert.True(t, strings.HasPrefix(out, "//go:build aspectsrc\n"))
	})

	t.Run("registry", func(t *testing.T) {
		want := []string{
			"type ServiceMetrics struct {",
			"Get ServiceMetricsGet `yaml:\"get\"`",
			"Count ServiceMetricsCount `yaml:\"count\"`",
			"Reset ServiceMetricsReset `yaml:\"reset\"`",
			"HitCount metered.HitCount[aspect.Pair[string, error]] `yaml:\"hit_count\"`",
			"Retry metered.Retry[aspect.Pair[string, error]] `yaml:\"retry\"`",
			"ResponseTime metered.ResponseTime[int] `yaml:\"response_time\"`",
			"Throughput metered.Throughput[struct{}] `yaml:\"throughput\"`",
			"func (m *ServiceMetrics) Register(meter metric.Meter) error {",
			"return metered.Observe(meter, \"service\", m)",
			"func (m *ServiceMetrics) WriteYAML(w io.Writer) error {",
		}
		for _, w := range want {
			assert.Contains(t, flat, w)
		}
	})

	t.Run("imports are grouped", func(t *testing.T) {
		assert.Contains(t, out, `import (
	"errors"
	"io"

	"github.com/toyz/aspect/pkg/aspect"
	"github.com/toyz/aspect/pkg/metered"
	"go.opentelemetry.io/otel/metric"
)
`)
	})
}

func TestGenerate_Gofmted(t *testing.T) {
	formatted, err := format.Source([]byte(serviceSrc))
	require.NoError(t, err)
	require.Contains(t, string(formatted), "// measure:ErrorCount, Retry(max=2)")

	result, err := Generate("service.go", formatted)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Methods)

	out := string(result.Source)
	assert.NotContains(t, out, "measure:")
	assert.Contains(t, squash(out), "__a0 := &s.metrics.Reset.HitCount")
}

func TestGenerate_KeepsUntouchedText(t *testing.T) {
	src := strings.Replace(serviceSrc, "// Untouched stays as it is.\nfunc (s *Service) Untouched() int {\n\treturn 1\n}",
		"//Note:Important\nfunc (s *Service) Untouched() int { return  1+2 }", 1)
	require.NotEqual(t, serviceSrc, src)

	result, err := Generate("service.go", []byte(src))
	require.NoError(t, err)
	assert.Contains(t, string(result.Source), "//Note:Important\nfunc (s *Service) Untouched() int { return  1+2 }\n")
	assert.Contains(t, string(result.Source), "//go:build aspectsrc\n\npackage svc\n\nimport (\n")
}

func TestGenerate_OuterArgumentLocation(t *testing.T) {
	for _, args := range []string{"registry=(", "colour=blue"} {
		t.Run(args, func(t *testing.T) {
			src := strings.Replace(serviceSrc, "//metered:registry=ServiceMetrics", "//metered:"+args, 1)

			_, err := Generate("service.go", []byte(src))
			require.Error(t, err)

			loc, ok := errors.LocationOfError(err)
			require.True(t, ok, err.Error())
			assert.Equal(t, "service.go", loc.File)
			assert.Equal(t, 9, loc.Line)
			assert.GreaterOrEqual(t, loc.Column, 11)
		})
	}
}

func TestGenerate_Options(t *testing.T) {
	src := strings.NewReplacer(
		"//metered:registry=ServiceMetrics", "//metered:visibility=priv, field=stats, prefix=users",
		"metrics ServiceMetrics", "stats serviceMetrics",
	).Replace(serviceSrc)

	result, err := Generate("service.go", []byte(src))
	require.NoError(t, err)

	flat := squash(string(result.Source))
	assert.Contains(t, flat, "type serviceMetrics struct {")
	assert.Contains(t, flat, "Get serviceMetricsGet")
	assert.Contains(t, flat, "__a0 := &s.stats.Get.HitCount")
	assert.Contains(t, flat, "metered.Observe(meter, \"users\", m)")
}

func TestGenerate_NothingToWeave(t *testing.T) {
	src := "package svc\n\ntype Plain struct{}\n\n//measure:HitCount\nfunc (p *Plain) Get() int { return 1 }\n"

	result, err := Generate("plain.go", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, src, string(result.Source))
	assert.Empty(t, result.Types)
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		code    errors.ErrorCode
		message string
	}{
		{
			name:    "value receiver",
			from:    "func (s *Service) Count() int",
			to:      "func (s Service) Count() int",
			code:    errors.GenerationErrorCode,
			message: "value receiver",
		},
		{
			name:    "unnamed receiver",
			from:    "func (s *Service) Reset() {\n\ts.users = map[int]string{}",
			to:      "func (*Service) Reset() {\n\t_ = 1",
			code:    errors.GenerationErrorCode,
			message: "named receiver",
		},
		{
			name:    "missing registry field",
			from:    "\tmetrics ServiceMetrics\n",
			to:      "",
			code:    errors.GenerationErrorCode,
			message: "has no metrics field",
		},
		{
			name:    "wrong registry field type",
			from:    "metrics ServiceMetrics",
			to:      "metrics *ServiceMetrics",
			code:    errors.GenerationErrorCode,
			message: "must have type ServiceMetrics",
		},
		{
			name:    "unknown metric",
			from:    "//measure:HitCount\n",
			to:      "//measure:Hits\n",
			code:    errors.ValidationErrorCode,
			message: "Hits",
		},
		{
			name:    "invalid retry limit",
			from:    "Retry(max=2)",
			to:      "Retry(max=0)",
			code:    errors.ValidationErrorCode,
			message: "Retry.max",
		},
		{
			name:    "invalid visibility",
			from:    "//metered:registry=ServiceMetrics",
			to:      "//metered:visibility=public",
			code:    errors.ValidationErrorCode,
			message: "visibility",
		},
		{
			name:    "malformed directive",
			from:    "//measure:ErrorCount, Retry(max=2)",
			to:      "//measure:ErrorCount, Retry(max=2",
			code:    errors.SyntaxErrorCode,
			message: "malformed directive arguments",
		},
		{
			name:    "too many results",
			from:    "func (s *Service) Count() int {\n\treturn len(s.users)",
			to:      "func (s *Service) Count() (int, int, error) {\n\treturn len(s.users), 0, nil",
			code:    errors.GenerationErrorCode,
			message: "at most two",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := strings.Replace(serviceSrc, tt.from, tt.to, 1)
			require.NotEqual(t, serviceSrc, src)

			_, err := Generate("service.go", []byte(src))
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.Code(err), err.Error())
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestWeaver_KnownMetrics(t *testing.T) {
	w := NewWeaver()
	assert.Equal(t, []string{"ErrorCount", "HitCount", "InFlight", "ResponseTime", "Retry", "Throughput"}, w.KnownMetrics())
}

func TestWeaver_ParseMacroAttributes(t *testing.T) {
	w := NewWeaver()

	opts, err := w.ParseMacroAttributes("")
	require.NoError(t, err)
	assert.Equal(t, Options{Field: "metrics", Exported: true}, opts)

	opts, err = w.ParseMacroAttributes(`registry=Stats, prefix="api.users"`)
	require.NoError(t, err)
	assert.Equal(t, "Stats", opts.Registry)
	assert.Equal(t, "api.users", opts.Prefix)

	_, err = w.ParseMacroAttributes("colour=blue")
	assert.Equal(t, errors.ValidationErrorCode, errors.Code(err))
}
