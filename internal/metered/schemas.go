package metered

import (
	"fmt"

	"github.com/toyz/aspect/internal/annotations"
)

// metricSchemas describes every metric //measure accepts
var metricSchemas = []annotations.Schema{
	{
		Name:        "HitCount",
		Description: "Counts calls",
		Examples:    []string{"//measure:HitCount"},
	},
	{
		Name:        "ErrorCount",
		Description: "Counts calls returning an error",
		Examples:    []string{"//measure:ErrorCount"},
	},
	{
		Name:        "InFlight",
		Description: "Tracks calls in progress",
		Examples:    []string{"//measure:InFlight"},
	},
	{
		Name:        "ResponseTime",
		Description: "Records call durations in a histogram",
		Examples:    []string{"//measure:ResponseTime"},
	},
	{
		Name:        "Throughput",
		Description: "Measures calls per second",
		Examples:    []string{"//measure:Throughput"},
	},
	{
		Name:        "Retry",
		Description: "Re-evaluates calls returning an error",
		Parameters: map[string]annotations.ParameterSpec{
			"max": {
				Type:         annotations.IntType,
				DefaultValue: 3,
				Description:  "Retries before giving up",
				Validator:    positive,
			},
		},
		Examples: []string{"//measure:Retry", "//measure:Retry(max=5)"},
	},
}

// optionSchema describes the outer directive
var optionSchema = annotations.Schema{
	Name:        OuterDirective,
	Description: "Measures the methods of a type",
	Parameters: map[string]annotations.ParameterSpec{
		"registry": {
			Type:        annotations.StringType,
			Description: "Name of the generated registry type",
		},
		"field": {
			Type:         annotations.StringType,
			DefaultValue: "metrics",
			Description:  "Receiver field holding the registry",
		},
		"visibility": {
			Type:         annotations.StringType,
			DefaultValue: "pub",
			Description:  "pub exports the registry types, priv does not",
			Validator:    oneOf("pub", "priv"),
		},
		"prefix": {
			Type:        annotations.StringType,
			Description: "Instrument name prefix",
		},
	},
	Examples: []string{"//metered:registry=ServiceMetrics", "//metered:visibility=priv, field=stats"},
}

func newMetricSchemas() annotations.SchemaRegistry {
	registry := annotations.NewRegistry()
	for _, schema := range metricSchemas {
		if err := registry.Register(schema); err != nil {
			panic(err)
		}
	}
	return registry
}

func newOptionSchemas() annotations.SchemaRegistry {
	registry := annotations.NewRegistry()
	if err := registry.Register(optionSchema); err != nil {
		panic(err)
	}
	return registry
}

func positive(v interface{}) error {
	if n, ok := v.(int); !ok || n < 1 {
		return fmt.Errorf("a positive number")
	}
	return nil
}

func oneOf(values ...string) func(interface{}) error {
	return func(v interface{}) error {
		s, _ := v.(string)
		for _, allowed := range values {
			if s == allowed {
				return nil
			}
		}
		return fmt.Errorf("one of %v", values)
	}
}
