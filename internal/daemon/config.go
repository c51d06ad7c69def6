// Package daemon wires the loyalty service together: configuration,
// storage, seeding, and the HTTP listener.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration, loaded from ~/.perkly/config.toml.
type Config struct {
	API     APIConfig     `toml:"api"`
	Storage StorageConfig `toml:"storage"`
	Metrics MetricsConfig `toml:"metrics"`
	Program ProgramConfig `toml:"program"`
}

// APIConfig controls the HTTP listener.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the listen address.
func (c APIConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// StorageConfig controls persistence. With Memory set, state lives in
// process memory and is lost on exit (useful for demos and tests).
type StorageConfig struct {
	Path   string `toml:"path"`
	Memory bool   `toml:"memory"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// ProgramConfig seeds an empty store on first boot. It is ignored once a
// rule version exists — program changes go through the admin API as new
// versions, never through config edits.
type ProgramConfig struct {
	Seed                 bool    `toml:"seed"`
	PointsPerCurrency    float64 `toml:"points_per_currency"`
	EarningRoundMode     string  `toml:"earning_round_mode"`
	RedemptionRate       int64   `toml:"redemption_rate"`
	MaxRedemptionPercent int     `toml:"max_redemption_percent"`
	MinRedemptionPoints  int64   `toml:"min_redemption_points"`
	AllowTierDowngrade   bool    `toml:"allow_tier_downgrade"`
	TierEvaluationBasis  string  `toml:"tier_evaluation_basis"`
	SeedTiers            []SeedTier `toml:"tiers"`
}

// SeedTier is one entry of the seeded tier ladder.
type SeedTier struct {
	Code             string  `toml:"code"`
	Name             string  `toml:"name"`
	DisplayOrder     int     `toml:"display_order"`
	MinPoints        int64   `toml:"min_points"`
	PointsMultiplier float64 `toml:"points_multiplier"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8480,
		},
		Storage: StorageConfig{
			Path: filepath.Join(homeDir(), ".perkly", "loyalty.db"),
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Program: ProgramConfig{
			Seed:                 true,
			PointsPerCurrency:    0.01, // 1 point per major currency unit
			EarningRoundMode:     "floor",
			RedemptionRate:       100, // 1 point = 1.00 off
			MaxRedemptionPercent: 50,
			MinRedemptionPoints:  50,
			TierEvaluationBasis:  "lifetime_points",
			SeedTiers: []SeedTier{
				{Code: "bronze", Name: "Bronze", DisplayOrder: 1, MinPoints: 0, PointsMultiplier: 1},
				{Code: "silver", Name: "Silver", DisplayOrder: 2, MinPoints: 1000, PointsMultiplier: 1.25},
				{Code: "gold", Name: "Gold", DisplayOrder: 3, MinPoints: 5000, PointsMultiplier: 1.5},
			},
		},
	}
}

// ConfigPath returns the config file location.
func ConfigPath() string {
	return filepath.Join(homeDir(), ".perkly", "config.toml")
}

// LoadConfig reads the TOML config at path, falling back to defaults for
// anything unset. A missing file is not an error — defaults apply.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = ConfigPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
