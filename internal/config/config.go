// Package config loads the optional YAML configuration file. Values from the
// file act as defaults for the corresponding command-line flags; a flag set
// explicitly on the command line always wins.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration unmarshals YAML strings in time.ParseDuration format ("10s",
// "4m"), which yaml.v3 does not support for time.Duration directly.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	HTTPListen   string `yaml:"http_listen"`
	SOCKS5Listen string `yaml:"socks5_listen"`
	DebugListen  string `yaml:"debug_listen"`

	Upstream string `yaml:"upstream"`
	DNS      string `yaml:"dns"`

	DialTimeout        Duration `yaml:"dial_timeout"`
	NegotiationTimeout Duration `yaml:"negotiation_timeout"`
	IdleTimeout        Duration `yaml:"idle_timeout"`
	HTTPIdleTimeout    Duration `yaml:"http_idle_timeout"`

	TCPKeepAlive string `yaml:"tcp_keepalive"`
	Verbose      bool   `yaml:"verbose"`
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	for name, addr := range map[string]string{
		"http_listen":   c.HTTPListen,
		"socks5_listen": c.SOCKS5Listen,
		"debug_listen":  c.DebugListen,
		"dns":           c.DNS,
	} {
		if addr == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
