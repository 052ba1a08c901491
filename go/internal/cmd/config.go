package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mverch/highnoon/go/internal/arena"
)

// GameConfig is the YAML gameplay tuning file. Every field is optional;
// zero values keep the shipped defaults.
type GameConfig struct {
	Bets struct {
		Min             int64 `yaml:"min"`
		Max             int64 `yaml:"max"`
		CooldownSeconds int   `yaml:"cooldown_seconds"`
	} `yaml:"bets"`

	Auction struct {
		CountdownSeconds int `yaml:"countdown_seconds"`
		OvertimeSeconds  int `yaml:"overtime_seconds"`
	} `yaml:"auction"`

	Duel struct {
		GongDelayMinMs      int     `yaml:"gong_delay_min_ms"`
		GongDelayMaxMs      int     `yaml:"gong_delay_max_ms"`
		RoundTimeoutSeconds int     `yaml:"round_timeout_seconds"`
		BarCycleBaseMs      int     `yaml:"bar_cycle_base_ms"`
		BarCycleFactor      float64 `yaml:"bar_cycle_factor"`
		BarCycleFloorMs     int     `yaml:"bar_cycle_floor_ms"`
		WindowLower         float64 `yaml:"window_lower"`
		WindowUpper         float64 `yaml:"window_upper"`
		AIAccuracy          float64 `yaml:"ai_accuracy"`
	} `yaml:"duel"`

	Settlement struct {
		FeePercent          int `yaml:"fee_percent"`
		DisplayDelaySeconds int `yaml:"display_delay_seconds"`
	} `yaml:"settlement"`
}

// loadArenaConfig builds the arena config from defaults, a YAML overlay
// (if configured), and the escrow address from the environment.
func loadArenaConfig(path string) (arena.Config, int, error) {
	cfg := arena.DefaultConfig()
	feePercent := 10

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, 0, fmt.Errorf("failed to read config file: %w", err)
		}
		var gc GameConfig
		if err := yaml.Unmarshal(data, &gc); err != nil {
			return cfg, 0, fmt.Errorf("failed to parse config: %w", err)
		}
		applyGameConfig(&cfg, &feePercent, gc)
	}

	cfg.EscrowAddress = os.Getenv("ESCROW_ADDRESS")
	if cfg.EscrowAddress == "" {
		return cfg, 0, fmt.Errorf("ESCROW_ADDRESS environment variable is required")
	}

	if err := cfg.Duel.Schedule.Validate(); err != nil {
		return cfg, 0, fmt.Errorf("invalid bar schedule: %w", err)
	}
	if err := cfg.Duel.Window.Validate(); err != nil {
		return cfg, 0, fmt.Errorf("invalid target window: %w", err)
	}
	return cfg, feePercent, nil
}

func applyGameConfig(cfg *arena.Config, feePercent *int, gc GameConfig) {
	if gc.Bets.Min > 0 {
		cfg.BetLimits.Min = gc.Bets.Min
	}
	if gc.Bets.Max > 0 {
		cfg.BetLimits.Max = gc.Bets.Max
	}
	if gc.Bets.CooldownSeconds > 0 {
		cfg.BetLimits.Cooldown = time.Duration(gc.Bets.CooldownSeconds) * time.Second
	}
	if gc.Auction.CountdownSeconds > 0 {
		cfg.Auction.BaseCountdown = gc.Auction.CountdownSeconds
	}
	if gc.Auction.OvertimeSeconds > 0 {
		cfg.Auction.OvertimeBonus = gc.Auction.OvertimeSeconds
	}
	if gc.Duel.GongDelayMinMs > 0 {
		cfg.Duel.GongDelayMin = time.Duration(gc.Duel.GongDelayMinMs) * time.Millisecond
	}
	if gc.Duel.GongDelayMaxMs > 0 {
		cfg.Duel.GongDelayMax = time.Duration(gc.Duel.GongDelayMaxMs) * time.Millisecond
	}
	if gc.Duel.RoundTimeoutSeconds > 0 {
		cfg.Duel.RoundTimeout = time.Duration(gc.Duel.RoundTimeoutSeconds) * time.Second
	}
	if gc.Duel.BarCycleBaseMs > 0 {
		cfg.Duel.Schedule.Base = time.Duration(gc.Duel.BarCycleBaseMs) * time.Millisecond
	}
	if gc.Duel.BarCycleFactor > 0 {
		cfg.Duel.Schedule.Factor = gc.Duel.BarCycleFactor
	}
	if gc.Duel.BarCycleFloorMs > 0 {
		cfg.Duel.Schedule.Floor = time.Duration(gc.Duel.BarCycleFloorMs) * time.Millisecond
	}
	if gc.Duel.WindowLower > 0 {
		cfg.Duel.Window.Lower = gc.Duel.WindowLower
	}
	if gc.Duel.WindowUpper > 0 {
		cfg.Duel.Window.Upper = gc.Duel.WindowUpper
	}
	if gc.Duel.AIAccuracy > 0 {
		cfg.Duel.AIAccuracy = gc.Duel.AIAccuracy
	}
	if gc.Settlement.FeePercent > 0 {
		*feePercent = gc.Settlement.FeePercent
	}
	if gc.Settlement.DisplayDelaySeconds > 0 {
		cfg.DisplayDelay = time.Duration(gc.Settlement.DisplayDelaySeconds) * time.Second
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
