package config

import (
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

const defaultAuditorsPath = "configs/auditors.yaml"

// AuditorsConfig is the root of configs/auditors.yaml.
type AuditorsConfig struct {
	Auditors Auditors `yaml:"auditors"`
}

type Auditors struct {
	DefaultModel ModelConfig            `yaml:"default_model"`
	Evaluators   []AuditorConfiguration `yaml:"evaluators"`
}

// ModelConfig holds generation parameters for one auditor call.
type ModelConfig struct {
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	Retry       bool    `yaml:"retry"`
}

type AuditorConfiguration struct {
	Name        string       `yaml:"name"`
	Enabled     bool         `yaml:"enabled"`
	Description string       `yaml:"description"`
	Prompt      string       `yaml:"prompt"`
	Model       *ModelConfig `yaml:"model,omitempty"`
}

func LoadAuditorsConfig() (*AuditorsConfig, error) {
	path := os.Getenv("AUDITORS_CONFIG_PATH")
	if path == "" {
		path = defaultAuditorsPath
	}
	return LoadAuditorsConfigFromPath(path)
}

func LoadAuditorsConfigFromPath(path string) (*AuditorsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg AuditorsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML %s: %w", path, err)
	}

	applyAuditorDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyAuditorDefaults fills the default model and copies it into every
// auditor that has no model override. Partial overrides inherit the
// default temperature.
func applyAuditorDefaults(cfg *AuditorsConfig) {
	if cfg.Auditors.DefaultModel.MaxTokens == 0 {
		cfg.Auditors.DefaultModel.MaxTokens = 256
	}

	for i := range cfg.Auditors.Evaluators {
		a := &cfg.Auditors.Evaluators[i]
		if a.Model == nil {
			m := cfg.Auditors.DefaultModel
			a.Model = &m
			continue
		}
		if a.Model.MaxTokens == 0 {
			a.Model.MaxTokens = cfg.Auditors.DefaultModel.MaxTokens
		}
		if a.Model.Temperature == 0 {
			a.Model.Temperature = cfg.Auditors.DefaultModel.Temperature
		}
	}
}

func (c *AuditorsConfig) Validate() error {
	if len(c.Auditors.Evaluators) == 0 {
		return fmt.Errorf("no auditors configured")
	}

	if err := validateModel("default_model", c.Auditors.DefaultModel); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Auditors.Evaluators))
	for i, a := range c.Auditors.Evaluators {
		if a.Name == "" {
			return fmt.Errorf("auditor %d: missing name", i)
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate auditor name: %s", a.Name)
		}
		seen[a.Name] = true

		if a.Prompt == "" {
			return fmt.Errorf("auditor %s: missing prompt", a.Name)
		}
		if _, err := template.New(a.Name).Parse(a.Prompt); err != nil {
			return fmt.Errorf("auditor %s: invalid prompt template: %w", a.Name, err)
		}
		if a.Model != nil {
			if err := validateModel(a.Name, *a.Model); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateModel(name string, m ModelConfig) error {
	if m.MaxTokens < 0 {
		return fmt.Errorf("%s: negative max_tokens %d", name, m.MaxTokens)
	}
	if m.Temperature < 0 || m.Temperature > 1 {
		return fmt.Errorf("%s: invalid temperature %.2f (expected 0.0-1.0)", name, m.Temperature)
	}
	return nil
}

// Enabled returns the enabled auditors in file order.
func (c *AuditorsConfig) Enabled() []AuditorConfiguration {
	var out []AuditorConfiguration
	for _, a := range c.Auditors.Evaluators {
		if a.Enabled {
			out = append(out, a)
		}
	}
	return out
}
