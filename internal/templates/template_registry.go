package templates

// TemplateRegistry provides a centralized way to access all templates
type TemplateRegistry struct {
	templates map[string]string
}

// NewTemplateRegistry creates a new template registry with all templates
func NewTemplateRegistry() *TemplateRegistry {
	registry := &TemplateRegistry{
		templates: make(map[string]string),
	}

	registry.registerMetricsTemplates()
	registry.registerFileTemplates()

	return registry
}

// Get retrieves a template by name
func (tr *TemplateRegistry) Get(name string) (string, bool) {
	template, exists := tr.templates[name]
	return template, exists
}

// MustGet retrieves a template by name, panics if not found
func (tr *TemplateRegistry) MustGet(name string) string {
	template, exists := tr.templates[name]
	if !exists {
		panic("template not found: " + name)
	}
	return template
}

// registerMetricsTemplates registers the metric registry templates
func (tr *TemplateRegistry) registerMetricsTemplates() {
	tr.templates["metrics-registry"] = `// {{.Name}} holds the metrics of {{.TypeName}}.
type {{.Name}} struct {
{{- range .Methods}}
	{{.Field}} {{.TypeName}} ` + "`yaml:\"{{.Tag}}\"`" + `
{{- end}}
}
{{range .Methods}}
// {{.TypeName}} holds the metrics of {{$.TypeName}}.{{.Method}}.
type {{.TypeName}} struct {
{{- range .Metrics}}
	{{.Field}} {{.Type}} ` + "`yaml:\"{{.Tag}}\"`" + `
{{- end}}
}
{{end}}
// Register exports every metric of m through meter.
func (m *{{.Name}}) Register(meter {{.MetricPkg}}.Meter) error {
	return {{.MeteredPkg}}.Observe(meter, {{quote .Prefix}}, m)
}

// WriteYAML writes a snapshot of m to w.
func (m *{{.Name}}) WriteYAML(w {{.IOPkg}}.Writer) error {
	return {{.MeteredPkg}}.WriteYAML(w, m)
}
`
}

// registerFileTemplates registers the woven file header
func (tr *TemplateRegistry) registerFileTemplates() {
	tr.templates["woven-header"] = `// Code generated by aspectgen from {{.Source}}. DO NOT EDIT.

//go:build {{.Constraint}}

`
}
