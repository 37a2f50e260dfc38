// Package config loads the server configuration from TOML or YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/samiralibabic/stepd/internal/transport"
)

type Config struct {
	Server   ServerConfig   `toml:"server" yaml:"server"`
	Limits   LimitsConfig   `toml:"limits" yaml:"limits"`
	Security SecurityConfig `toml:"security" yaml:"security"`
	Audit    AuditConfig    `toml:"audit" yaml:"audit"`
	Program  ProgramConfig  `toml:"program" yaml:"program"`
}

type ServerConfig struct {
	Stdio       bool   `toml:"stdio" yaml:"stdio"`
	Framing     string `toml:"framing" yaml:"framing"`
	Listen      string `toml:"listen" yaml:"listen"`
	HTTPListen  string `toml:"http_listen" yaml:"http_listen"`
	WSPath      string `toml:"ws_path" yaml:"ws_path"`
	MetricsPath string `toml:"metrics_path" yaml:"metrics_path"`
	LogLevel    string `toml:"log_level" yaml:"log_level"`
	LogFile     string `toml:"log_file" yaml:"log_file"`
}

type LimitsConfig struct {
	MaxMessageBytes   int     `toml:"max_message_bytes" yaml:"max_message_bytes"`
	MaxProgramBytes   int64   `toml:"max_program_bytes" yaml:"max_program_bytes"`
	StepBudget        int     `toml:"step_budget" yaml:"step_budget"`
	RequestsPerSecond float64 `toml:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `toml:"burst" yaml:"burst"`
	MaxConnections    int64   `toml:"max_connections" yaml:"max_connections"`
}

type SecurityConfig struct {
	AllowedRoot []AllowedRoot `toml:"allowed_roots" yaml:"allowed_roots"`
}

type AllowedRoot struct {
	Path string `toml:"path" yaml:"path"`
}

type AuditConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

type ProgramConfig struct {
	Manifest  string `toml:"manifest" yaml:"manifest"`
	Extension string `toml:"extension" yaml:"extension"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Stdio:       true,
			Framing:     string(transport.StyleNDJSON),
			Listen:      "",
			HTTPListen:  "",
			WSPath:      "/ws",
			MetricsPath: "/metrics",
			LogLevel:    "info",
		},
		Limits: LimitsConfig{
			MaxMessageBytes:   1048576,
			MaxProgramBytes:   4194304,
			StepBudget:        1000000,
			RequestsPerSecond: 0,
			Burst:             0,
			MaxConnections:    16,
		},
		Program: ProgramConfig{
			Manifest:  "stepd.toml",
			Extension: ".lua",
		},
	}
}

// Load reads path over the defaults. An empty or missing path yields the
// defaults. Files ending in .yaml or .yml are YAML, everything else TOML.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &cfg)
	default:
		_, err = toml.Decode(string(raw), &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := transport.ParseStyle(c.Server.Framing); err != nil {
		return err
	}
	if c.Limits.MaxMessageBytes <= 0 {
		return errors.New("limits.max_message_bytes must be positive")
	}
	if c.Limits.StepBudget < 0 {
		return errors.New("limits.step_budget must not be negative")
	}
	if c.Limits.RequestsPerSecond < 0 || c.Limits.Burst < 0 {
		return errors.New("limits.requests_per_second and limits.burst must not be negative")
	}
	if c.Server.HTTPListen != "" && !strings.HasPrefix(c.Server.WSPath, "/") {
		return fmt.Errorf("server.ws_path %q must start with /", c.Server.WSPath)
	}
	return nil
}

func AllowedRoots(cfg Config) []string {
	roots := make([]string, 0, len(cfg.Security.AllowedRoot))
	for _, r := range cfg.Security.AllowedRoot {
		if r.Path != "" {
			roots = append(roots, r.Path)
		}
	}
	return roots
}
