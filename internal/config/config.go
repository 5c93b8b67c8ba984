package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Exchange ExchangeConfig `yaml:"exchange"`
	DeepLink DeepLinkConfig `yaml:"deeplink"`
	Download DownloadConfig `yaml:"download"`
	Tunnel   TunnelConfig   `yaml:"tunnel"`
	Probe    ProbeConfig    `yaml:"probe"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	// Capacity of the in-memory diagnostic ring; 0 disables it.
	Capacity int `yaml:"capacity"`
}

type ExchangeConfig struct {
	CodeScheme          string        `yaml:"code_scheme"`
	ListenHost          string        `yaml:"listen_host"`
	Port                int           `yaml:"port"`
	PreferredInterfaces []string      `yaml:"preferred_interfaces"`
	ReadHeaderTimeout   time.Duration `yaml:"read_header_timeout"`
	ClientTimeout       time.Duration `yaml:"client_timeout"`
	DeviceName          string        `yaml:"device_name"`
	OnConflict          string        `yaml:"on_conflict"` // replace | keep | skip
	// MetricsListen serves Prometheus metrics while receiving; empty disables it.
	MetricsListen string `yaml:"metrics_listen"`
}

type DeepLinkConfig struct {
	Host string `yaml:"host"`
}

type DownloadConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	ProxyURL string        `yaml:"proxy_url"` // socks5://... or http://...
}

type TunnelConfig struct {
	Listen    string `yaml:"listen"`
	SocksPort int    `yaml:"socks_port"`
}

// ProbeConfig controls the reachability check run through the tunnel.
type ProbeConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.Database.Path = "linkdrop.db"
	cfg.Log.Capacity = 1000
	cfg.Exchange.CodeScheme = "linkdrop"
	cfg.Exchange.ListenHost = "0.0.0.0"
	cfg.Exchange.PreferredInterfaces = []string{"en0", "wlan*", "wlp*", "wl*"}
	cfg.Exchange.ReadHeaderTimeout = 10 * time.Second
	cfg.Exchange.ClientTimeout = 15 * time.Second
	cfg.Exchange.OnConflict = "keep"
	cfg.DeepLink.Host = "linkdrop.app"
	cfg.Download.Timeout = 30 * time.Second
	cfg.Tunnel.Listen = "127.0.0.1"
	cfg.Tunnel.SocksPort = 10808
	cfg.Probe.URL = "https://www.gstatic.com/generate_204"
	cfg.Probe.Timeout = 10 * time.Second
	cfg.Probe.Retries = 1
	return cfg
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}

	switch cfg.Exchange.OnConflict {
	case "replace", "keep", "skip":
	case "":
		cfg.Exchange.OnConflict = "keep"
	default:
		return nil, fmt.Errorf("exchange.on_conflict: unknown policy %q", cfg.Exchange.OnConflict)
	}
	if cfg.Tunnel.SocksPort < 1 || cfg.Tunnel.SocksPort > 65535 {
		return nil, fmt.Errorf("tunnel.socks_port out of range: %d", cfg.Tunnel.SocksPort)
	}
	if cfg.Probe.Retries < 0 {
		cfg.Probe.Retries = 0
	}

	return cfg, nil
}
