// Package config holds the run configuration: buffering strategy selection
// and optional hardening knobs. The strategy is a build/run configuration
// concern, deliberately not a command-line flag.
package config

import (
	_ "embed"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"sigs.k8s.io/yaml"
)

//go:embed default/config.yaml
var defaultConfigData []byte

const (
	// EnvConfig names an optional YAML config file to load.
	EnvConfig = "SPOOL_CONFIG"
	// EnvVerbose toggles detailed error reports and debug logging.
	EnvVerbose = "SPOOL_VERBOSE"
)

type Configuration struct {
	// Strategy selects the buffer capability: "heap" or "memfile".
	Strategy string `json:"strategy" validate:"oneof=heap memfile"`

	// Preallocate sizes memory-file storage up front from the probed
	// source length, or a default page budget when the probe fails.
	Preallocate bool `json:"preallocate"`

	// Seal asks the kernel to enforce post-capture immutability on
	// memory-file storage.
	Seal bool `json:"seal"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}

// Default returns the compiled-in configuration.
func Default() *Configuration {
	return defaultConfig()
}

// Verbose reports whether the verbosity env toggle selects detailed output.
// Accepted values mirror the historical toggle: 1/v/verbose for detailed,
// 0/s/simple for terse; anything else falls back to terse.
func Verbose() bool {
	value, ok := os.LookupEnv(EnvVerbose)
	if !ok {
		return false
	}
	switch strings.ToLower(value) {
	case "1", "v", "verbose":
		return true
	default:
		return false
	}
}
