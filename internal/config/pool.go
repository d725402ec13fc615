package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// PoolSettings are the pool limits that can change while running.
type PoolSettings struct {
	// MaxIdle is the pre-warmed worker target. Negative means one per CPU.
	MaxIdle         int
	MonitorInterval time.Duration
}

// DefaultPoolSettings returns the limits used when the file sets none.
func DefaultPoolSettings() PoolSettings {
	return PoolSettings{
		MaxIdle:         -1,
		MonitorInterval: 5 * time.Second,
	}
}

// LoadPoolSettings reads the [pool] table of a TOML config file. Keys that
// are absent keep their defaults.
func LoadPoolSettings(path string) (PoolSettings, error) {
	settings := DefaultPoolSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("failed to read config: %w", err)
	}

	var raw struct {
		Pool struct {
			MaxIdle           *int   `toml:"max_idle"`
			MonitorIntervalMs *int64 `toml:"monitor_interval_ms"`
		} `toml:"pool"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return settings, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	if raw.Pool.MaxIdle != nil {
		settings.MaxIdle = *raw.Pool.MaxIdle
	}
	if ms := raw.Pool.MonitorIntervalMs; ms != nil {
		if *ms <= 0 {
			return settings, fmt.Errorf("invalid pool.monitor_interval_ms %d", *ms)
		}
		settings.MonitorInterval = time.Duration(*ms) * time.Millisecond
	}

	return settings, nil
}
