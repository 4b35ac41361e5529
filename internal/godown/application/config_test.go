package application_test

import (
	"os"
	"path/filepath"
	"testing"

	"godown-ledger/internal/godown/application"
)

func TestLoadThresholds_Defaults(t *testing.T) {
	t.Setenv("GODOWN_THRESHOLDS", "")

	cfg, err := application.LoadThresholds()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Defaults.MinKgPerBag != 5 || cfg.Defaults.MaxKgPerBag != 300 || cfg.Defaults.MaxStepKg != 50000 {
		t.Errorf("defaults: got %+v", cfg.Defaults)
	}
}

func TestLoadThresholds_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	contents := `
defaults:
  min_kg_per_bag: 10
  max_kg_per_bag: 200
  max_step_kg: 20000
commodities:
  cotton:
    max_kg_per_bag: 250
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("GODOWN_THRESHOLDS", path)

	cfg, err := application.LoadThresholds()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Defaults.MinKgPerBag != 10 || cfg.Defaults.MaxKgPerBag != 200 || cfg.Defaults.MaxStepKg != 20000 {
		t.Errorf("defaults: got %+v", cfg.Defaults)
	}

	cotton := cfg.ForCommodity("cotton")
	if cotton.MaxKgPerBag != 250 {
		t.Errorf("cotton max: want 250, got %v", cotton.MaxKgPerBag)
	}
	if cotton.MinKgPerBag != 10 || cotton.MaxStepKg != 20000 {
		t.Errorf("cotton must inherit unset fields: got %+v", cotton)
	}

	wheat := cfg.ForCommodity("wheat")
	if wheat != cfg.Defaults {
		t.Errorf("unknown commodity must use defaults: got %+v", wheat)
	}
}

func TestLoadThresholds_MissingFile(t *testing.T) {
	t.Setenv("GODOWN_THRESHOLDS", filepath.Join(t.TempDir(), "absent.yaml"))

	if _, err := application.LoadThresholds(); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestThresholdsBounds(t *testing.T) {
	thresholds := application.Thresholds{MinKgPerBag: 1, MaxKgPerBag: 2, MaxStepKg: 3}
	bounds := thresholds.Bounds()
	if bounds.MinKgPerBag != 1 || bounds.MaxKgPerBag != 2 || bounds.MaxStepKg != 3 {
		t.Errorf("bounds: got %+v", bounds)
	}
}
