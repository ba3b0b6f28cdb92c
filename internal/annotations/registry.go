package annotations

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/toyz/aspect/internal/errors"
)

// SchemaRegistry defines the interface for managing attribute schemas
type SchemaRegistry interface {
	// Register a new attribute with its schema
	Register(schema Schema) error

	// GetSchema retrieves the schema for an attribute name
	GetSchema(name string) (Schema, error)

	// Names returns all registered attribute names, sorted
	Names() []string

	// IsRegistered checks if an attribute name is registered
	IsRegistered(name string) bool

	// Resolve validates every top level argument of a directive against the
	// registered schemas
	Resolve(args *ArgList, loc errors.SourceLocation, raw string) ([]*Attribute, error)
}

// registry is the concrete implementation of SchemaRegistry
type registry struct {
	mu      sync.RWMutex      // Protects concurrent access
	schemas map[string]Schema // Schema storage
}

// NewRegistry creates a new schema registry
func NewRegistry() SchemaRegistry {
	return &registry{
		schemas: make(map[string]Schema),
	}
}

// Register adds a new attribute schema to the registry
func (r *registry) Register(schema Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if schema.Name == "" {
		return fmt.Errorf("schema name cannot be empty")
	}

	if _, exists := r.schemas[schema.Name]; exists {
		return fmt.Errorf("attribute %s is already registered", schema.Name)
	}

	if err := r.validateSchema(schema); err != nil {
		return fmt.Errorf("invalid schema for %s: %w", schema.Name, err)
	}

	r.schemas[schema.Name] = schema
	return nil
}

// GetSchema retrieves the schema for an attribute name
func (r *registry) GetSchema(name string) (Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schema, exists := r.schemas[name]
	if !exists {
		return Schema{}, fmt.Errorf("attribute %s is not registered", name)
	}

	return schema, nil
}

// Names returns all registered attribute names
func (r *registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// IsRegistered checks if an attribute name is registered
func (r *registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.schemas[name]
	return exists
}

// Resolve turns parsed arguments into validated attributes. Every top level
// argument must name a registered attribute; its call arguments (or, for the
// "type=Name" form, none) become the parameters.
func (r *registry) Resolve(args *ArgList, loc errors.SourceLocation, raw string) ([]*Attribute, error) {
	var attrs []*Attribute

	for _, arg := range args.Flatten() {
		name := arg.Name
		params := arg.CallArgs()

		// //measure:type=HitCount is accepted as a spelling of //measure:HitCount
		if arg.Value != nil {
			if arg.Name != "type" {
				return nil, errors.NewValidationError(arg.Name, "an attribute name", arg.Value.Raw()).
					WithLocation(loc.Shift(arg.Pos.Offset)).
					WithSuggestion(fmt.Sprintf("Parameters go between parentheses: Name(%s=%s)", arg.Name, arg.Value.Raw()))
			}
			name = arg.Value.Raw()
			params = nil
		}

		attr, err := r.resolveOne(name, params, loc.Shift(arg.Pos.Offset), raw)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}

	return attrs, nil
}

func (r *registry) resolveOne(name string, params *ArgList, loc errors.SourceLocation, raw string) (*Attribute, error) {
	schema, err := r.GetSchema(name)
	if err != nil {
		return nil, errors.NewValidationError("attribute", "one of "+strings.Join(r.Names(), ", "), name).
			WithLocation(loc).
			WithSuggestion("Check the spelling of the attribute name")
	}

	attr := &Attribute{
		Name:       name,
		Parameters: make(map[string]interface{}),
		Location:   loc,
		Raw:        raw,
	}

	for _, p := range params.Flatten() {
		spec, exists := schema.Parameters[p.Name]
		if !exists || p.CallArgs() != nil {
			return nil, errors.NewValidationError(name, "a known parameter", p.Name).
				WithLocation(loc).
				WithSuggestion(fmt.Sprintf("Known parameters: %s", strings.Join(sortedKeys(schema.Parameters), ", ")))
		}

		var value interface{} = true
		if p.Value != nil {
			value = p.Value.Interface()
		} else if spec.Type != BoolType {
			return nil, errors.NewValidationError(name+"."+p.Name, spec.Type.String(), "a flag").
				WithLocation(loc)
		}

		converted, err := ConvertTo(value, spec.Type)
		if err != nil {
			return nil, errors.NewValidationError(name+"."+p.Name, spec.Type.String(), fmt.Sprintf("%v", value)).
				WithLocation(loc)
		}

		if spec.Validator != nil {
			if err := spec.Validator(converted); err != nil {
				return nil, errors.NewValidationError(name+"."+p.Name, err.Error(), fmt.Sprintf("%v", converted)).
					WithLocation(loc)
			}
		}

		attr.Parameters[p.Name] = converted
	}

	for paramName, spec := range schema.Parameters {
		if _, set := attr.Parameters[paramName]; set {
			continue
		}
		if spec.Required {
			return nil, errors.NewValidationError(name+"."+paramName, spec.Type.String(), "nothing").
				WithLocation(loc).
				WithSuggestion(fmt.Sprintf("Add the parameter: %s(%s=...)", name, paramName))
		}
		if spec.DefaultValue != nil {
			attr.Parameters[paramName] = spec.DefaultValue
		}
	}

	return attr, nil
}

// validateSchema performs basic validation on a schema
func (r *registry) validateSchema(schema Schema) error {
	for paramName, paramSpec := range schema.Parameters {
		if paramName == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}

		if paramSpec.Type < StringType || paramSpec.Type > DurationType {
			return fmt.Errorf("invalid parameter type for %s: %d", paramName, paramSpec.Type)
		}

		if paramSpec.DefaultValue != nil {
			if _, err := ConvertTo(paramSpec.DefaultValue, paramSpec.Type); err != nil {
				return fmt.Errorf("default value for %s parameter %s: %w", paramSpec.Type, paramName, err)
			}
		}
	}

	return nil
}

func sortedKeys(m map[string]ParameterSpec) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
