package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"healthmon-agent/internal/model"
)

func applyFile(c *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return &ConfigurationError{Field: "config_file", Reason: "read " + path, Err: err}
	}
	return applyYAML(c, raw)
}

func applyYAML(c *Config, raw []byte) error {
	env := c.Environment
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	// thresholds are decoded separately so a file replaces the profile
	// thresholds instead of merging into them.
	var overlay struct {
		Config     `yaml:",inline"`
		Thresholds map[string]float64 `yaml:"thresholds"`
	}
	overlay.Config = *c
	if err := dec.Decode(&overlay); err != nil {
		return &ConfigurationError{Field: "config_file", Reason: "parse yaml", Err: err}
	}
	// the profile is chosen before the file is read, so the file may only
	// restate it
	if overlay.Environment != env {
		if named, err := ParseEnvironment(string(overlay.Environment)); err != nil || named != env {
			return invalid("environment", "config file names profile %q but %q is selected; use --env or %sENV", overlay.Environment, env, envPrefix)
		}
	}
	*c = overlay.Config
	c.Environment = env
	if overlay.Thresholds != nil {
		c.Thresholds = model.Thresholds(overlay.Thresholds)
	}
	return nil
}

// Dump renders the resolved configuration with secrets masked.
func (c Config) Dump() ([]byte, error) {
	type dump struct {
		Config     `yaml:",inline"`
		Thresholds map[string]float64 `yaml:"thresholds"`
	}
	out := dump{Config: c, Thresholds: c.Thresholds}
	if out.BackendToken != "" {
		out.BackendToken = "********"
	}
	b, err := yaml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return b, nil
}
