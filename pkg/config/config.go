// Package config loads editor and fixture-server settings from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dd0wney/cluso-topology/pkg/validation"
	"gopkg.in/yaml.v3"
)

// Editor modes
const (
	ModeTopology = "topology"
	ModeRoutes   = "routes"
)

// Defaults
const (
	DefaultBaseURL    = "http://127.0.0.1:8088"
	DefaultCSRFHeader = "X-CSRF-TOKEN"
	DefaultScale      = 10.0
	DefaultLogLevel   = "info"
	DefaultListenAddr = "127.0.0.1:8088"
)

// Config is the complete settings file
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Editor     EditorConfig     `yaml:"editor"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	ChangeFeed ChangeFeedConfig `yaml:"changefeed"`
	DevServer  DevServerConfig  `yaml:"devserver"`
}

// ServerConfig describes the API the editor talks to
type ServerConfig struct {
	BaseURL       string        `yaml:"base_url"`
	CalculationID int64         `yaml:"calculation_id"`
	Timeout       time.Duration `yaml:"timeout"` // 0 = no client timeout
	CSRF          CSRFConfig    `yaml:"csrf"`
}

// CSRFConfig names the anti-forgery header. The header is omitted when
// Token is empty.
type CSRFConfig struct {
	Header string `yaml:"header"`
	Token  string `yaml:"token"`
}

// EditorConfig selects the editor behaviour
type EditorConfig struct {
	Mode                  string  `yaml:"mode"`
	Scale                 float64 `yaml:"scale"` // world units per terminal column
	KeepSelectionOnReload bool    `yaml:"keep_selection_on_reload"`
}

// LoggingConfig controls the structured logger. An empty File logs to stderr.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// MetricsConfig enables a /metrics listener when Addr is set
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// ChangeFeedConfig points at a pub/sub endpoint announcing server-side
// changes. Empty Addr disables the feed.
type ChangeFeedConfig struct {
	Addr string `yaml:"addr"`
}

// DevServerConfig configures the in-memory fixture server
type DevServerConfig struct {
	Listen   string `yaml:"listen"`
	Fixtures string `yaml:"fixtures"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML file and applies defaults and environment overrides.
// An empty path skips the file. Callers validate the sections they use.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.Server.BaseURL = validation.DefaultOr(c.Server.BaseURL, DefaultBaseURL)
	c.Server.CSRF.Header = validation.DefaultOr(c.Server.CSRF.Header, DefaultCSRFHeader)
	c.Editor.Mode = validation.DefaultOr(c.Editor.Mode, ModeTopology)
	c.Editor.Scale = validation.DefaultOr(c.Editor.Scale, DefaultScale)
	c.Logging.Level = validation.DefaultOr(c.Logging.Level, DefaultLogLevel)
	c.DevServer.Listen = validation.DefaultOr(c.DevServer.Listen, DefaultListenAddr)
}

// ApplyEnv overrides fields from environment variables. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("TOPOLOGY_BASE_URL"); ok {
		c.Server.BaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := lookup("TOPOLOGY_CALCULATION_ID"); ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TOPOLOGY_CALCULATION_ID: %w", err)
		}
		c.Server.CalculationID = id
	}
	if v, ok := lookup("TOPOLOGY_CSRF_TOKEN"); ok {
		c.Server.CSRF.Token = v
	}
	if v, ok := lookup("TOPOLOGY_CSRF_HEADER"); ok && v != "" {
		c.Server.CSRF.Header = v
	}
	if v, ok := lookup("TOPOLOGY_EDITOR_MODE"); ok && v != "" {
		c.Editor.Mode = v
	}
	if v, ok := lookup("TOPOLOGY_CHANGEFEED_ADDR"); ok {
		c.ChangeFeed.Addr = v
	}
	if v, ok := lookup("TOPOLOGY_METRICS_ADDR"); ok {
		c.Metrics.Addr = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Logging.Level = v
	}
	return nil
}

var logLevels = []string{"debug", "info", "warn", "warning", "error"}

// Validate checks the editor sections and reports all problems at once
func (c *Config) Validate() error {
	cv := validation.NewConfigValidator("config").
		URL("server.base_url", c.Server.BaseURL).
		PositiveID("server.calculation_id", c.Server.CalculationID).
		NonNegativeDuration("server.timeout", c.Server.Timeout).
		Required("server.csrf.header", c.Server.CSRF.Header).
		OneOf("editor.mode", c.Editor.Mode, []string{ModeTopology, ModeRoutes}).
		PositiveFloat("editor.scale", c.Editor.Scale).
		OneOf("logging.level", strings.ToLower(c.Logging.Level), logLevels)
	return cv.Validate()
}

// ValidateDevServer checks only the sections the fixture server reads
func (c *Config) ValidateDevServer() error {
	return validation.NewConfigValidator("config").
		Required("devserver.listen", c.DevServer.Listen).
		OneOf("logging.level", strings.ToLower(c.Logging.Level), logLevels).
		Validate()
}
