package guard

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Preset is one named rule profile in the presets YAML file.
type Preset struct {
	Name  string     `yaml:"name"`
	Rules RuleConfig `yaml:"rules"`
}

// PresetFile is the top-level YAML structure.
type PresetFile struct {
	Presets []Preset `yaml:"presets"`
}

// LoadPresets reads rule presets from a YAML file.
func LoadPresets(path string) ([]Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file PresetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	return file.Presets, nil
}

// ApplyPreset activates the named preset from the given list.
func (m *Manager) ApplyPreset(ctx context.Context, presets []Preset, name string) error {
	for _, p := range presets {
		if p.Name == name {
			return m.UpdateRules(ctx, p.Rules)
		}
	}
	return fmt.Errorf("unknown rule preset %q", name)
}
