// Package config loads the demo harness's TOML manifest: which serial
// device to connect to, how the link is configured, and what the
// scheduler's own tunables are. It mirrors the project-manifest loading
// pattern in the example pack's TOML-based tool, cmd/surge: toml.DecodeFile
// plus toml.MetaData.IsDefined checks for the fields a demo cannot run
// without.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the top-level shape of a schedctl.toml manifest.
type Config struct {
	Serial SerialConfig `toml:"serial"`
	Link   LinkConfig   `toml:"link"`
	Sched  SchedConfig  `toml:"sched"`
}

// SerialConfig names the USB-serial device the host connects to.
type SerialConfig struct {
	Device string `toml:"device"`
	Baud   int    `toml:"baud"`
}

// LinkConfig mirrors syncom.New's tunables plus the liveness timeout.
type LinkConfig struct {
	Passive   bool    `toml:"passive"`
	Latency   int     `toml:"latency"`
	TimeoutUS int64   `toml:"timeout_us"`
	Verbose   bool    `toml:"verbose"`
}

// SchedConfig mirrors sched.New's tunables.
type SchedConfig struct {
	GCEnable bool `toml:"gc_enable"`
}

// Default returns the manifest a fresh demo run uses when no TOML file is
// given: a 5-character latency and a 2-second liveness timeout.
func Default() Config {
	return Config{
		Serial: SerialConfig{Device: "/dev/ttyACM0", Baud: 115200},
		Link:   LinkConfig{Latency: 5, TimeoutUS: 2_000_000},
		Sched:  SchedConfig{GCEnable: true},
	}
}

// Load reads and validates a manifest file. A manifest missing its
// [serial].device is rejected outright; every other field falls back to
// Default's values when absent.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("serial") || !meta.IsDefined("serial", "device") || strings.TrimSpace(cfg.Serial.Device) == "" {
		return Config{}, fmt.Errorf("%s: missing [serial].device", path)
	}
	if cfg.Link.Latency < 1 {
		cfg.Link.Latency = 1
	}
	return cfg, nil
}
