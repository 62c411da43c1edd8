package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk layout of a catalog YAML file.
type catalogFile struct {
	Models []Model `yaml:"models"`
}

// LoadFile parses a catalog YAML file.
func LoadFile(path string) ([]Model, error) {
	data, errRead := os.ReadFile(path)
	if errRead != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, errRead)
	}
	var file catalogFile
	if errUnmarshal := yaml.Unmarshal(data, &file); errUnmarshal != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, errUnmarshal)
	}
	if len(file.Models) == 0 {
		return nil, fmt.Errorf("catalog: %s defines no models", path)
	}
	for i, m := range file.Models {
		switch m.Tier {
		case TierUnclassified, TierPremier, TierOpenSource:
		default:
			return nil, fmt.Errorf("catalog: model %d (%s): unknown tier %q", i, m.ID, m.Tier)
		}
		if m.Pricing != nil && (m.Pricing.Input < 0 || m.Pricing.Output < 0) {
			return nil, fmt.Errorf("catalog: model %s: negative pricing", m.ID)
		}
	}
	return file.Models, nil
}
