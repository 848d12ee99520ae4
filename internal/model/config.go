// Package model defines shared configuration structures used to initialize the DriveBridge system.
// It includes serial link settings, server settings and poller settings.
package model

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the root structure loaded from configs/config.yml.
// Environment variables override file values (e.g. BRIDGE_SERIAL_DEVICE).
type Config struct {
	Serial SerialConfig `yaml:"serial"`
	Server ServerConfig `yaml:"server"`
	Poller PollerConfig `yaml:"poller"`
	Store  StoreConfig  `yaml:"store"`
}

// SerialConfig defines the serial connection to the motor controller board.
type SerialConfig struct {
	Device        string `yaml:"device" env:"BRIDGE_SERIAL_DEVICE"`
	Baud          int    `yaml:"baud" env:"BRIDGE_SERIAL_BAUD"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms" env:"BRIDGE_READ_TIMEOUT_MS"` // reply window per command
	GraceMs       int    `yaml:"grace_ms" env:"BRIDGE_GRACE_MS"`               // idle gap that ends a reply
}

// ServerConfig defines the websocket/HTTP listener.
type ServerConfig struct {
	Addr          string `yaml:"addr" env:"BRIDGE_ADDR"`
	PingIntervalS int    `yaml:"ping_interval_s" env:"BRIDGE_PING_INTERVAL_S"`
}

// PollerConfig defines the background status poller.
type PollerConfig struct {
	IntervalMs int `yaml:"interval_ms" env:"BRIDGE_POLL_INTERVAL_MS"`
}

// StoreConfig defines the drift sample log. An empty path disables it.
type StoreConfig struct {
	Path string `yaml:"path" env:"BRIDGE_STORE_PATH"`
}

// DefaultConfig returns a Config populated with working defaults for a
// Raspberry Pi with a single controller board on /dev/ttyACM0.
func DefaultConfig() Config {
	return Config{
		Serial: SerialConfig{
			Device:        "/dev/ttyACM0",
			Baud:          115200,
			ReadTimeoutMs: 1000,
			GraceMs:       50,
		},
		Server: ServerConfig{
			Addr:          ":8765",
			PingIntervalS: 20,
		},
		Poller: PollerConfig{
			IntervalMs: 2000,
		},
	}
}

// LoadConfig reads the YAML file at path (if non-empty), then applies
// environment variable overrides on top of it.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env overrides: %w", err)
	}
	return &cfg, nil
}

// ReadTimeout returns the per-command reply window as a duration.
func (s SerialConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMs) * time.Millisecond
}

// Grace returns the idle gap that ends reply collection as a duration.
func (s SerialConfig) Grace() time.Duration {
	return time.Duration(s.GraceMs) * time.Millisecond
}

// PingInterval returns the websocket keepalive interval as a duration.
func (s ServerConfig) PingInterval() time.Duration {
	return time.Duration(s.PingIntervalS) * time.Second
}

// Interval returns the poll interval as a duration.
func (p PollerConfig) Interval() time.Duration {
	return time.Duration(p.IntervalMs) * time.Millisecond
}
