package annotations

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/toyz/aspect/internal/errors"
)

// Attribute is one validated entry of a directive: a name and its parameters.
// //measure:HitCount, Retry(max=3) yields two attributes.
type Attribute struct {
	Name       string                 // attribute name, e.g. "Retry"
	Parameters map[string]interface{} // typed parameters
	Location   errors.SourceLocation  // where the attribute was written
	Raw        string                 // the directive line it came from
}

// GetString returns a string parameter value with optional default
func (a *Attribute) GetString(paramName string, defaultValue ...string) string {
	if value, exists := a.Parameters[paramName]; exists {
		if strValue, ok := value.(string); ok {
			return strValue
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

// GetBool returns a boolean parameter value with optional default
func (a *Attribute) GetBool(paramName string, defaultValue ...bool) bool {
	if value, exists := a.Parameters[paramName]; exists {
		if boolValue, ok := value.(bool); ok {
			return boolValue
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return false
}

// GetInt returns an integer parameter value with optional default
func (a *Attribute) GetInt(paramName string, defaultValue ...int) int {
	if value, exists := a.Parameters[paramName]; exists {
		if intValue, ok := value.(int); ok {
			return intValue
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return 0
}

// GetDuration returns a duration parameter value with optional default
func (a *Attribute) GetDuration(paramName string, defaultValue ...time.Duration) time.Duration {
	if value, exists := a.Parameters[paramName]; exists {
		if d, ok := value.(time.Duration); ok {
			return d
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return 0
}

// GetStringSlice returns a string slice parameter value with optional default
func (a *Attribute) GetStringSlice(paramName string, defaultValue ...[]string) []string {
	if value, exists := a.Parameters[paramName]; exists {
		if sliceValue, ok := value.([]string); ok {
			return sliceValue
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return nil
}

// HasParameter checks if a parameter exists
func (a *Attribute) HasParameter(paramName string) bool {
	_, exists := a.Parameters[paramName]
	return exists
}

// ParameterType represents the type of a parameter
type ParameterType int

const (
	StringType ParameterType = iota
	BoolType
	IntType
	StringSliceType
	DurationType
)

// String returns the string representation of the parameter type
func (p ParameterType) String() string {
	switch p {
	case StringType:
		return "string"
	case BoolType:
		return "bool"
	case IntType:
		return "int"
	case StringSliceType:
		return "[]string"
	case DurationType:
		return "duration"
	default:
		return "unknown"
	}
}

// ParameterSpec defines the specification for an attribute parameter
type ParameterSpec struct {
	Type         ParameterType           // Parameter type
	Required     bool                    // Whether parameter is required
	DefaultValue interface{}             // Default value if not provided
	Description  string                  // Parameter description
	Validator    func(interface{}) error // Custom validator function
}

// Schema defines the accepted parameters of one attribute name
type Schema struct {
	Name        string                   // Attribute name
	Description string                   // Human-readable description
	Parameters  map[string]ParameterSpec // Parameter specifications
	Examples    []string                 // Usage examples
}

// ConvertTo converts a parsed value to the given parameter type
func ConvertTo(value interface{}, target ParameterType) (interface{}, error) {
	switch target {
	case StringType:
		return ConvertToString(value)
	case BoolType:
		return ConvertToBool(value)
	case IntType:
		return ConvertToInt(value)
	case StringSliceType:
		return ConvertToStringSlice(value)
	case DurationType:
		return ConvertToDuration(value)
	default:
		return nil, fmt.Errorf("unsupported target type: %d", target)
	}
}

// ConvertToString converts any value to a string
func ConvertToString(value interface{}) (string, error) {
	if strValue, ok := value.(string); ok {
		return strValue, nil
	}
	return fmt.Sprintf("%v", value), nil
}

// ConvertToBool converts various types to boolean
func ConvertToBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		return parseBoolString(v)
	case int:
		return v != 0, nil
	default:
		return false, fmt.Errorf("cannot convert %T to bool", value)
	}
}

// ConvertToInt converts various types to integer
func ConvertToInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimPrefix(v, "+"))
		if err != nil {
			return 0, fmt.Errorf("invalid integer string: %s", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int", value)
	}
}

// ConvertToDuration converts a duration literal such as "250ms"
func ConvertToDuration(value interface{}) (time.Duration, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid duration string: %s", v)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to duration", value)
	}
}

// ConvertToStringSlice converts various types to string slice
func ConvertToStringSlice(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case string:
		if v == "" {
			return []string{}, nil
		}
		parts := strings.Split(v, ",")
		for i, part := range parts {
			parts[i] = strings.TrimSpace(part)
		}
		return parts, nil
	default:
		return []string{fmt.Sprintf("%v", value)}, nil
	}
}

func parseBoolString(s string) (bool, error) {
	switch s {
	case "true", "True", "TRUE", "yes", "on":
		return true, nil
	case "false", "False", "FALSE", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s", s)
	}
}
