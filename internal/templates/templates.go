// Package templates renders the code aspectgen adds next to woven methods.
package templates

import (
	"bytes"
	"fmt"
	"strconv"
	"text/template"
)

// RegistryData describes the metric registry of one woven type
type RegistryData struct {
	Name     string // registry type name, e.g. ServiceMetrics
	TypeName string // woven type, e.g. Service
	Prefix   string // instrument name prefix

	MeteredPkg string // local name of the metered runtime import
	MetricPkg  string // local name of go.opentelemetry.io/otel/metric
	IOPkg      string // local name of io

	Methods []MethodRegistryData
}

// MethodRegistryData describes the metrics of one woven method
type MethodRegistryData struct {
	Method   string // method name
	Field    string // field of the registry holding the method metrics
	TypeName string // type of that field
	Tag      string // yaml key
	Metrics  []MetricFieldData
}

// MetricFieldData is one metric field
type MetricFieldData struct {
	Field string // e.g. HitCount
	Type  string // e.g. metered.HitCount[int]
	Tag   string // e.g. hit_count
}

// HeaderData fills the woven file header
type HeaderData struct {
	Source     string // base name of the source file
	Constraint string // build constraint of the woven file
}

var defaultRegistry = NewTemplateRegistry()

// GenerateRegistry renders the registry types and their methods
func GenerateRegistry(data RegistryData) (string, error) {
	return executeTemplate("metrics-registry", defaultRegistry.MustGet("metrics-registry"), data)
}

// GenerateHeader renders the woven file header
func GenerateHeader(data HeaderData) (string, error) {
	return executeTemplate("woven-header", defaultRegistry.MustGet("woven-header"), data)
}

// executeTemplate executes a Go template with the given data
func executeTemplate(name, templateStr string, data interface{}) (string, error) {
	utils := NewTemplateUtils()
	funcMap := template.FuncMap{
		"quote":      strconv.Quote,
		"snakeCase":  utils.ToSnakeCase,
		"pascalCase": utils.ToPascalCase,
	}

	tmpl, err := template.New(name).Funcs(funcMap).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	return buf.String(), nil
}
