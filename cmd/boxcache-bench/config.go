package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// Config holds all benchmark configuration. Flags override the config
// file, the config file overrides the defaults.
type Config struct {
	Policies  []string `json:"policies"`
	Entries   []int    `json:"entries"`
	Ops       int      `json:"ops"`
	ValueSize int      `json:"value_size"` //nolint:tagliatelle // snake_case for config file
	ReadPct   int      `json:"read_pct"`   //nolint:tagliatelle // snake_case for config file
	Seed      uint64   `json:"seed"`
	OutDir    string   `json:"out_dir"` //nolint:tagliatelle // snake_case for config file
}

var (
	errConfigInvalid = errors.New("invalid config")
	errUnknownPolicy = errors.New("unknown policy")
)

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Policies:  []string{"none", "rr", "fifo", "lru", "lfu", "ttl", "vttl"},
		Entries:   []int{1024, 65536},
		Ops:       1_000_000,
		ValueSize: 64,
		ReadPct:   80,
		Seed:      1,
		OutDir:    ".benchmarks",
	}
}

// LoadConfigFile overlays the JSONC file at path onto cfg. A missing
// file is an error: the flag names it explicitly.
func LoadConfigFile(path string, cfg Config) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		return Config{}, fmt.Errorf("%w: reading %s: %w", errConfigInvalid, path, err)
	}

	fileCfg, err := parseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}

	return mergeConfig(cfg, fileCfg), nil
}

func parseConfig(data []byte) (Config, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func mergeConfig(base, overlay Config) Config {
	if len(overlay.Policies) > 0 {
		base.Policies = overlay.Policies
	}

	if len(overlay.Entries) > 0 {
		base.Entries = overlay.Entries
	}

	if overlay.Ops > 0 {
		base.Ops = overlay.Ops
	}

	if overlay.ValueSize > 0 {
		base.ValueSize = overlay.ValueSize
	}

	if overlay.ReadPct > 0 {
		base.ReadPct = overlay.ReadPct
	}

	if overlay.Seed > 0 {
		base.Seed = overlay.Seed
	}

	if overlay.OutDir != "" {
		base.OutDir = overlay.OutDir
	}

	return base
}

func validateConfig(cfg Config) error {
	if len(cfg.Policies) == 0 {
		return fmt.Errorf("%w: no policies", errConfigInvalid)
	}

	for _, p := range cfg.Policies {
		switch p {
		case "none", "rr", "fifo", "lru", "lfu", "ttl", "vttl":
		default:
			return fmt.Errorf("%w: %q (want none, rr, fifo, lru, lfu, ttl or vttl)", errUnknownPolicy, p)
		}
	}

	if len(cfg.Entries) == 0 {
		return fmt.Errorf("%w: no entry counts", errConfigInvalid)
	}

	for _, n := range cfg.Entries {
		if n < 1 {
			return fmt.Errorf("%w: entry count %d", errConfigInvalid, n)
		}
	}

	if cfg.Ops < 1 {
		return fmt.Errorf("%w: ops %d", errConfigInvalid, cfg.Ops)
	}

	if cfg.ValueSize < 1 {
		return fmt.Errorf("%w: value size %d", errConfigInvalid, cfg.ValueSize)
	}

	if cfg.ReadPct < 0 || cfg.ReadPct > 100 {
		return fmt.Errorf("%w: read-pct %d (want 0-100)", errConfigInvalid, cfg.ReadPct)
	}

	return nil
}
