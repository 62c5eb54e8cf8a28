package config

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/apitrace/internal/safe"
)

// Load decodes a YAML configuration on top of DefaultConfig. Mapping
// sections are merged key by key; lists replace the defaults. Unknown keys
// are rejected.
func Load(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// LoadFile loads a configuration file, applies environment overrides and
// validates the result. An empty path yields the defaults.
func LoadFile(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)

	if path == "" {
		cfg = DefaultConfig()
	} else {
		data, readErr := safe.ReadFile(path, &safe.ReadOptions{AllowSymlinks: true})
		if readErr != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, readErr)
		}
		cfg, err = Load(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	// Apply environment variable overrides (layered configuration).
	if err := MergeFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg as YAML.
func Save(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
