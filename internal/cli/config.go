package cli

import (
	"bytes"
	"io"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/toyz/aspect/internal/errors"
	"github.com/toyz/aspect/internal/utils"
)

const (
	// DefaultTag is the build tag marking aspect sources
	DefaultTag = "aspectsrc"

	// DefaultConfigFile is read from the working directory when present
	DefaultConfigFile = "aspectgen.yaml"
)

// Config holds the configuration for the CLI generator
type Config struct {
	// Directories is the list of directories to scan, "./..." patterns allowed
	Directories []string `yaml:"-"`

	// Tag is the build tag carried by aspect sources
	Tag string `yaml:"tag"`

	// Suffix replaces ".go" in the name of every woven file
	Suffix string `yaml:"suffix"`

	// Jobs bounds the number of directories woven at once
	Jobs int `yaml:"jobs"`

	// Verbose enables detailed logging and error reporting
	Verbose bool `yaml:"verbose"`
}

// DefaultConfig returns the settings used without a config file
func DefaultConfig() Config {
	return Config{
		Tag:    DefaultTag,
		Suffix: utils.DefaultWovenSuffix,
		Jobs:   runtime.GOMAXPROCS(0),
	}
}

// LoadConfigFile reads path over the defaults. Unknown keys are rejected.
func LoadConfigFile(path string) (Config, error) {
	config := DefaultConfig()

	content, err := os.ReadFile(path)
	if err != nil {
		return config, errors.WrapConfigurationError(path, "read", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && err != io.EOF {
		return config, errors.WrapConfigurationError(path, "decode", err).
			WithLocation(errors.SourceLocation{File: path}).
			WithSuggestion("Allowed keys are tag, suffix, jobs and verbose")
	}

	if err := config.Validate(); err != nil {
		return config, errors.WrapConfigurationError(path, "validate", err).
			WithLocation(errors.SourceLocation{File: path})
	}
	return config, nil
}

// Validate checks the settings
func (c Config) Validate() error {
	if err := utils.ValidateBuildTag("tag")(c.Tag); err != nil {
		return err
	}
	if err := utils.ValidateWovenSuffix("suffix")(c.Suffix); err != nil {
		return err
	}
	if err := utils.Custom("jobs", "must be at least 1", func(n int) bool { return n >= 1 })(c.Jobs); err != nil {
		return err
	}
	return utils.ValidateEach("directories", utils.NotEmpty("directory"))(c.Directories)
}
