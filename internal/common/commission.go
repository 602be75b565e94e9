package common

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

type CommissionOverride struct {
	Category string `yaml:"category"`
	Rate     string `yaml:"rate"`
}

type CommissionSchedule struct {
	Overrides []CommissionOverride `yaml:"overrides"`
}

// LoadCommissionSchedule parses an optional YAML file with per-category
// commission rates. Rates outside [0, 1) are rejected at load time so a
// bad schedule can never reach the settlement engine.
func LoadCommissionSchedule(scheduleFile string) (map[string]decimal.Decimal, error) {
	var schedulePath string
	if filepath.IsAbs(scheduleFile) {
		schedulePath = scheduleFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		schedulePath = filepath.Join(wd, scheduleFile)
	}

	data, err := os.ReadFile(schedulePath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", scheduleFile, err)
	}

	var schedule CommissionSchedule
	if err := yaml.Unmarshal(data, &schedule); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", scheduleFile, err)
	}

	rates := make(map[string]decimal.Decimal, len(schedule.Overrides))
	for i, override := range schedule.Overrides {
		if override.Category == "" {
			return nil, fmt.Errorf("override at index %d missing category", i)
		}
		rate, err := decimal.NewFromString(override.Rate)
		if err != nil {
			return nil, fmt.Errorf("override for category %q has invalid rate %q: %w", override.Category, override.Rate, err)
		}
		if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("override for category %q has rate %s outside [0, 1)", override.Category, rate.String())
		}
		if _, dup := rates[override.Category]; dup {
			return nil, fmt.Errorf("duplicate override for category %q", override.Category)
		}
		rates[override.Category] = rate
	}

	return rates, nil
}
