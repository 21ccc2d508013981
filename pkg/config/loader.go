package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Common errors for configuration loading.
var (
	ErrFileNotFound = errors.New("configuration file not found")
	ErrInvalidYAML  = errors.New("invalid YAML syntax")
	ErrEmptyFile    = errors.New("configuration file is empty")
	ErrInvalidEnv   = errors.New("invalid environment variable")
)

// EnvConfigFile names the environment variable holding the config file path.
const EnvConfigFile = "WSMOCK_CONFIG"

// Load resolves configuration from defaults, the file at path (skipped when
// empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c. Unknown keys are rejected.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := c.Parse(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Parse overlays YAML data onto c and marks every key present in data as
// coming from a file.
func (c *Config) Parse(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return ErrEmptyFile
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyFile
		}
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	var present map[string]map[string]any
	if err := yaml.Unmarshal(data, &present); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	for section, fields := range present {
		for field := range fields {
			c.SetSource(section+"."+field, SourceFile)
		}
	}
	return nil
}

// YAML renders the configuration as YAML.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
