package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Load reads a configuration file, layered over the compiled-in defaults.
func Load(path string) (*Configuration, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	out := defaultConfig()
	if err := yaml.UnmarshalStrict(contents, out); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate %s: %w", path, err)
	}
	return out, nil
}

// FromEnv loads the file named by SPOOL_CONFIG when set, otherwise the
// defaults.
func FromEnv() (*Configuration, error) {
	if path, ok := os.LookupEnv(EnvConfig); ok && path != "" {
		return Load(path)
	}
	return Default(), nil
}
