package application

import (
	"os"

	"gopkg.in/yaml.v3"

	godown "godown-ledger/internal/godown/domain"
)

// Thresholds defines anomaly plausibility limits.
type Thresholds struct {
	MinKgPerBag float64 `yaml:"min_kg_per_bag"`
	MaxKgPerBag float64 `yaml:"max_kg_per_bag"`
	MaxStepKg   float64 `yaml:"max_step_kg"`
}

// ThresholdsConfig carries the default limits plus per-commodity overrides.
// Whether bag-density bounds should vary by commodity was left open upstream;
// the defaults match observed behavior and overrides are opt-in.
type ThresholdsConfig struct {
	Defaults    Thresholds            `yaml:"defaults"`
	Commodities map[string]Thresholds `yaml:"commodities"`
}

// LoadThresholds loads thresholds from the yaml file named by
// GODOWN_THRESHOLDS, falling back to the stock defaults.
func LoadThresholds() (ThresholdsConfig, error) {
	bounds := godown.DefaultAnomalyBounds()
	cfg := ThresholdsConfig{
		Defaults: Thresholds{
			MinKgPerBag: bounds.MinKgPerBag,
			MaxKgPerBag: bounds.MaxKgPerBag,
			MaxStepKg:   bounds.MaxStepKg,
		},
	}

	if path := os.Getenv("GODOWN_THRESHOLDS"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// ForCommodity returns the thresholds for a commodity, with zero-valued
// override fields inheriting the defaults.
func (c ThresholdsConfig) ForCommodity(commodity string) Thresholds {
	if c.Commodities != nil {
		if override, ok := c.Commodities[commodity]; ok {
			return mergeThresholds(c.Defaults, override)
		}
	}
	return c.Defaults
}

// Bounds converts thresholds into the domain's anomaly bounds.
func (t Thresholds) Bounds() godown.AnomalyBounds {
	return godown.AnomalyBounds{
		MinKgPerBag: t.MinKgPerBag,
		MaxKgPerBag: t.MaxKgPerBag,
		MaxStepKg:   t.MaxStepKg,
	}
}

func mergeThresholds(base, override Thresholds) Thresholds {
	if override.MinKgPerBag != 0 {
		base.MinKgPerBag = override.MinKgPerBag
	}
	if override.MaxKgPerBag != 0 {
		base.MaxKgPerBag = override.MaxKgPerBag
	}
	if override.MaxStepKg != 0 {
		base.MaxStepKg = override.MaxStepKg
	}
	return base
}
