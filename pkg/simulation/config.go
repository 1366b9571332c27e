package simulation

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// SimulationConfig represents the descriptor of a simulation, usually
// embedded next to it as simulation.yaml
type SimulationConfig struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Version     string      `yaml:"version"`
	Category    string      `yaml:"category"`
	Parameters  []Parameter `yaml:"parameters"`
}

// Parameter defines a configurable parameter for a simulation
type Parameter struct {
	Name        string      `yaml:"name"`
	Type        string      `yaml:"type"` // integer, float, string, duration, boolean
	Description string      `yaml:"description"`
	Default     interface{} `yaml:"default"`
	Required    bool        `yaml:"required"`
	Min         interface{} `yaml:"min,omitempty"`
	Max         interface{} `yaml:"max,omitempty"`
	Options     []string    `yaml:"options,omitempty"` // For string enums
}

// ParseConfig decodes a descriptor.
func ParseConfig(data []byte) (SimulationConfig, error) {
	var cfg SimulationConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return SimulationConfig{}, fmt.Errorf("failed to parse simulation config: %w", err)
	}
	if cfg.Name == "" {
		return SimulationConfig{}, fmt.Errorf("simulation config has no name")
	}
	return cfg, nil
}

// Parameter returns the parameter called name.
func (c SimulationConfig) Parameter(name string) (Parameter, bool) {
	for _, p := range c.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}
