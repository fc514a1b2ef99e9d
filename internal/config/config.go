// Package config loads the firmctl YAML configuration and applies FIRM_*
// environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Serial SerialConfig `yaml:"serial"`
	Stream StreamConfig `yaml:"stream"`
	Replay ReplayConfig `yaml:"replay"`
	Record RecordConfig `yaml:"record"`
}

type SerialConfig struct {
	// Port may be empty; firmctl then auto-selects the first enumerated
	// port.
	Port        string        `yaml:"port" env:"FIRM_PORT"`
	Baud        int           `yaml:"baud" env:"FIRM_BAUD"`
	ReadTimeout time.Duration `yaml:"read_timeout" env:"FIRM_READ_TIMEOUT"`
}

type StreamConfig struct {
	// UDPDest enables JSON telemetry re-broadcast when set (host:port).
	UDPDest string `yaml:"udp_dest" env:"FIRM_UDP_DEST"`
	// PrintEvery prints one packet in every N to stdout. 0 disables.
	PrintEvery int `yaml:"print_every" env:"FIRM_PRINT_EVERY"`
}

type ReplayConfig struct {
	Speed    float64 `yaml:"speed" env:"FIRM_REPLAY_SPEED"`
	Realtime bool    `yaml:"realtime" env:"FIRM_REPLAY_REALTIME"`
}

type RecordConfig struct {
	Path         string `yaml:"path" env:"FIRM_RECORD_PATH"`
	SampleRateHz int    `yaml:"sample_rate_hz"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Serial: SerialConfig{
			Baud:        2_000_000,
			ReadTimeout: 100 * time.Millisecond,
		},
		Stream: StreamConfig{PrintEvery: 50},
		Replay: ReplayConfig{Speed: 1.0, Realtime: true},
		Record: RecordConfig{SampleRateHz: 100},
	}
}

// Load reads a YAML config file, fills in defaults, applies environment
// overrides, and validates. An empty path skips the file and uses defaults
// plus environment only.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("environment overrides: %w", err)
	}

	if cfg.Serial.Baud <= 0 {
		cfg.Serial.Baud = 2_000_000
	}
	if cfg.Serial.ReadTimeout <= 0 {
		cfg.Serial.ReadTimeout = 100 * time.Millisecond
	}
	if cfg.Replay.Speed == 0 {
		cfg.Replay.Speed = 1.0
	}
	if cfg.Replay.Speed < 0 {
		return Config{}, fmt.Errorf("replay.speed must be > 0")
	}
	if cfg.Stream.PrintEvery < 0 {
		return Config{}, fmt.Errorf("stream.print_every must be >= 0")
	}
	if cfg.Record.SampleRateHz <= 0 || cfg.Record.SampleRateHz > 65535 {
		cfg.Record.SampleRateHz = 100
	}

	return cfg, nil
}
