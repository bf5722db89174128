package main

import (
	"fmt"
	"net/netip"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk TOML configuration for a border router instance:
// RCP device path, PAN identity, backbone prefix and timing parameters,
// mirroring the "typed Go struct decoded from a config file" approach of
// the pack's richest CLI repo rather than a hand-rolled flag/ini parser.
type Config struct {
	RCP struct {
		Device  string `toml:"device"`
		Baud    int    `toml:"baud"`
	} `toml:"rcp"`

	Network struct {
		Name   string `toml:"name"`
		PANID  uint16 `toml:"pan_id"`
		Domain string `toml:"domain"`
		Class  uint8  `toml:"class"`
		Size   string `toml:"size"` // SMALL/MEDIUM/LARGE, resolved against the embedded profile table.
	} `toml:"network"`

	Backbone struct {
		Interface string `toml:"interface"`
		Prefix    string `toml:"prefix"` // parsed into a netip.Prefix.
	} `toml:"backbone"`

	MeshPrefix string `toml:"mesh_prefix"` // the /64 DHCPv6 derives mesh addresses from.

	TLS struct {
		CertFile string `toml:"cert_file"`
		KeyFile  string `toml:"key_file"`
		CAFile   string `toml:"ca_file"`
	} `toml:"tls"`

	ManagementBus struct {
		Listen string `toml:"listen"` // unix socket path or host:port for the JSON-RPC-style bus.
	} `toml:"management_bus"`

	Metrics struct {
		Listen string `toml:"listen"`
	} `toml:"metrics"`

	GroupKeyLifetime Duration `toml:"group_key_lifetime"`
	StateDir         string   `toml:"state_dir"`
}

// Duration wraps time.Duration so it can be decoded from a TOML string like
// "24h" instead of requiring a raw nanosecond integer.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("config: parsing duration %q: %w", b, err)
	}
	*d = Duration(parsed)
	return nil
}

func defaultConfig() Config {
	var c Config
	c.RCP.Baud = 115200
	c.Network.Size = "MEDIUM"
	c.Network.Domain = "NA"
	c.Network.Class = 1
	c.GroupKeyLifetime = Duration(24 * time.Hour)
	c.StateDir = "/var/lib/wisun-br"
	return c
}

// LoadConfig decodes path as TOML over the package defaults.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) backbonePrefix() (netip.Prefix, error) {
	if c.Backbone.Prefix == "" {
		return netip.Prefix{}, nil
	}
	return netip.ParsePrefix(c.Backbone.Prefix)
}

func (c Config) meshPrefix() (netip.Prefix, error) {
	if c.MeshPrefix == "" {
		return netip.Prefix{}, fmt.Errorf("config: mesh_prefix is required")
	}
	return netip.ParsePrefix(c.MeshPrefix)
}
