// Package config loads the run configuration from a YAML file and from
// command-line mapping strings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"tickstamp/internal/errs"
	"tickstamp/internal/registry"
)

// Config holds the run configuration.
type Config struct {
	// Devices maps a VLAN id, or "*" for untagged mode, to a device id.
	Devices map[string]uint16 `yaml:"devices"`
	// FCS is set when captured frames keep their frame-check sequence.
	FCS bool `yaml:"fcs"`
	// Output is the pcap file receiving rewritten timestamps.
	Output string `yaml:"output,omitempty"`
	// Nanos writes the output with nanosecond timestamp precision.
	Nanos  bool   `yaml:"nanos,omitempty"`
	Report Report `yaml:"report"`
	// HTTPAddr enables serve mode.
	HTTPAddr string `yaml:"http,omitempty"`
}

// Report selects the table columns and destination.
type Report struct {
	PcapTimestamp bool   `yaml:"pcap_timestamp"`
	Deltas        bool   `yaml:"deltas"`
	UTC           bool   `yaml:"utc"`
	RawTicks      bool   `yaml:"raw_ticks"`
	SrcIP         bool   `yaml:"src_ip"`
	File          string `yaml:"file,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Devices: map[string]uint16{},
		Report:  Report{UTC: true},
	}
}

// Load reads a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.ConfigError{Reason: "read " + path, Err: err}
	}
	return Parse(data)
}

// Parse decodes YAML configuration on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &errs.ConfigError{Reason: "parse yaml", Err: err}
	}
	if cfg.Devices == nil {
		cfg.Devices = map[string]uint16{}
	}
	return cfg, nil
}

// ParseMapping parses "vlan=device" pairs separated by commas, e.g.
// "10=1,20=2" or "*=1".
func ParseMapping(s string) (map[string]uint16, error) {
	out := make(map[string]uint16)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, val, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, &errs.ConfigError{Reason: fmt.Sprintf("mapping %q: want vlan=device", pair)}
		}
		key = strings.TrimSpace(key)
		dev, err := strconv.ParseUint(strings.TrimSpace(val), 10, 16)
		if err != nil {
			return nil, &errs.ConfigError{Reason: fmt.Sprintf("mapping %q: bad device id", pair), Err: err}
		}
		if _, dup := out[key]; dup {
			return nil, &errs.ConfigError{Reason: fmt.Sprintf("mapping %q: vlan %s mapped twice", pair, key)}
		}
		out[key] = uint16(dev)
	}
	return out, nil
}

// Registry builds the device registry from Devices.
func (c *Config) Registry() (*registry.Registry, error) {
	return registry.New(c.Devices)
}
