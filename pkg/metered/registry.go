package metered

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"unicode"

	"go.opentelemetry.io/otel/metric"
	"gopkg.in/yaml.v3"
)

var metricType = reflect.TypeOf((*Metric)(nil)).Elem()

// Walk calls fn for every metric reachable from registry, a pointer to a
// struct whose fields are metrics or nested registries. Fields are visited in
// declaration order; path holds the field names, taken from yaml tags when
// present.
func Walk(registry interface{}, fn func(path []string, m Metric) error) error {
	v := reflect.ValueOf(registry)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("metered: registry must be a non-nil pointer to a struct, got %T", registry)
	}
	return walk(v.Elem(), nil, fn)
}

func walk(v reflect.Value, path []string, fn func([]string, Metric) error) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name, skip := fieldName(field)
		if skip || !field.IsExported() {
			continue
		}

		fv := v.Field(i)
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}

		next := append(append([]string{}, path...), name)
		if fv.CanAddr() && fv.Addr().Type().Implements(metricType) {
			if err := fn(next, fv.Addr().Interface().(Metric)); err != nil {
				return err
			}
			continue
		}
		if fv.Kind() == reflect.Struct {
			if err := walk(fv, next, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func fieldName(field reflect.StructField) (string, bool) {
	tag := field.Tag.Get("yaml")
	if tag == "-" {
		return "", true
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name, false
	}
	return snakeCase(field.Name), false
}

func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Observe registers every metric of registry with meter. Instrument names
// are prefix followed by the dotted field path.
func Observe(meter metric.Meter, prefix string, registry interface{}) error {
	return Walk(registry, func(path []string, m Metric) error {
		name := strings.Join(path, ".")
		if prefix != "" {
			name = prefix + "." + name
		}
		return m.Observe(meter, name)
	})
}

// Snapshot returns registry as a YAML mapping node, fields in declaration
// order
func Snapshot(registry interface{}) (*yaml.Node, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}

	err := Walk(registry, func(path []string, m Metric) error {
		value, err := m.MarshalYAML()
		if err != nil {
			return err
		}

		var node yaml.Node
		if err := node.Encode(value); err != nil {
			return err
		}

		parent := root
		for _, key := range path[:len(path)-1] {
			parent = child(parent, key)
		}
		parent.Content = append(parent.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: path[len(path)-1]},
			&node,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return root, nil
}

// child returns the mapping stored under key, creating it when missing
func child(parent *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(parent.Content); i += 2 {
		if parent.Content[i].Value == key {
			return parent.Content[i+1]
		}
	}

	node := &yaml.Node{Kind: yaml.MappingNode}
	parent.Content = append(parent.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, node)
	return node
}

// WriteYAML writes a snapshot of registry to w
func WriteYAML(w io.Writer, registry interface{}) error {
	node, err := Snapshot(registry)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return err
	}
	return enc.Close()
}
