package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestBuiltinConfig(t *testing.T) {
	// Every exported field must appear in the default YAML and vice
	// versa, so the shipped defaults never drift from the struct.
	rawConfig := make(map[string]interface{})
	assert.Nil(t, yaml.Unmarshal(defaultConfigData, &rawConfig))

	knownFields := make(map[string]bool)
	rt := reflect.TypeOf(Configuration{})
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		assert.NotEmpty(t, jsonTag)
		jsonField := strings.Split(jsonTag, ",")[0]
		knownFields[jsonField] = true

		if _, ok := rawConfig[jsonField]; !ok {
			assert.False(t, true, "default config missing field: %q", jsonField)
		}
	}

	for k := range rawConfig {
		_, ok := knownFields[k]
		assert.True(t, ok, "default config contains invalid field: %q", k)
	}
}

func TestDefaultConfig(t *testing.T) {
	// Will panic() on load failure because it should never happen at
	// runtime.
	cfg := Default()
	require.NotNil(t, cfg)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownStrategy(t *testing.T) {
	cfg := Default()
	cfg.Strategy = "mmap"
	assert.Error(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strategy: heap\nseal: true\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "heap", cfg.Strategy)
	assert.True(t, cfg.Seal)
	// Unset fields keep their defaults.
	assert.Equal(t, Default().Preallocate, cfg.Preallocate)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strateggy: heap\n"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidStrategy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strategy: bogus\n"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strategy: heap\n"), 0600))

	t.Setenv(EnvConfig, path)
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "heap", cfg.Strategy)

	t.Setenv(EnvConfig, "")
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.Equal(t, Default().Strategy, cfg.Strategy)
}

func TestVerbose(t *testing.T) {
	for value, want := range map[string]bool{
		"1":       true,
		"v":       true,
		"verbose": true,
		"VERBOSE": true,
		"0":       false,
		"s":       false,
		"simple":  false,
		"":        false,
		"maybe":   false,
	} {
		t.Setenv(EnvVerbose, value)
		assert.Equal(t, want, Verbose(), "value %q", value)
	}
}
