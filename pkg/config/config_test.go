package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dd0wney/cluso-topology/pkg/topology"
)

func envFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.CSRF.Header != DefaultCSRFHeader {
		t.Errorf("CSRF header = %q, want %q", cfg.Server.CSRF.Header, DefaultCSRFHeader)
	}
	if cfg.Editor.Mode != ModeTopology {
		t.Errorf("Mode = %q, want %q", cfg.Editor.Mode, ModeTopology)
	}
	if cfg.Editor.KeepSelectionOnReload {
		t.Error("KeepSelectionOnReload should default to false")
	}
	if cfg.Server.CSRF.Token != "" {
		t.Error("CSRF token should default to empty")
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "editor.yaml")
	content := `
server:
  base_url: https://cluso.example.com
  calculation_id: 42
  timeout: 15s
  csrf:
    header: X-XSRF-TOKEN
    token: abc
editor:
  mode: routes
  keep_selection_on_reload: true
logging:
  level: debug
  file: /tmp/editor.log
changefeed:
  addr: tcp://127.0.0.1:40899
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.CalculationID != 42 {
		t.Errorf("CalculationID = %d, want 42", cfg.Server.CalculationID)
	}
	if cfg.Server.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", cfg.Server.Timeout)
	}
	if cfg.Server.CSRF.Header != "X-XSRF-TOKEN" || cfg.Server.CSRF.Token != "abc" {
		t.Errorf("CSRF = %+v", cfg.Server.CSRF)
	}
	if cfg.Editor.Mode != ModeRoutes || !cfg.Editor.KeepSelectionOnReload {
		t.Errorf("Editor = %+v", cfg.Editor)
	}
	if cfg.Editor.Scale != DefaultScale {
		t.Errorf("Scale = %v, want default %v", cfg.Editor.Scale, DefaultScale)
	}
	if cfg.ChangeFeed.Addr != "tcp://127.0.0.1:40899" {
		t.Errorf("ChangeFeed.Addr = %q", cfg.ChangeFeed.Addr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("server: [unterminated"), 0o600)

	if _, err := Load(path); err == nil {
		t.Error("Expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envFrom(map[string]string{
		"TOPOLOGY_BASE_URL":       "http://api.local:9000/",
		"TOPOLOGY_CALCULATION_ID": "7",
		"TOPOLOGY_CSRF_TOKEN":     "tok",
		"TOPOLOGY_EDITOR_MODE":    ModeRoutes,
		"LOG_LEVEL":               "warn",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	if cfg.Server.BaseURL != "http://api.local:9000" {
		t.Errorf("BaseURL = %q, trailing slash should be trimmed", cfg.Server.BaseURL)
	}
	if cfg.Server.CalculationID != 7 {
		t.Errorf("CalculationID = %d, want 7", cfg.Server.CalculationID)
	}
	if cfg.Server.CSRF.Token != "tok" {
		t.Errorf("Token = %q", cfg.Server.CSRF.Token)
	}
	if cfg.Editor.Mode != ModeRoutes {
		t.Errorf("Mode = %q", cfg.Editor.Mode)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
}

func TestApplyEnv_BadCalculationID(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envFrom(map[string]string{"TOPOLOGY_CALCULATION_ID": "abc"}))
	if err == nil || !strings.Contains(err.Error(), "TOPOLOGY_CALCULATION_ID") {
		t.Errorf("Expected calculation id error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing calculation", func(c *Config) { c.Server.CalculationID = 0 }, "server.calculation_id"},
		{"relative base url", func(c *Config) { c.Server.BaseURL = "/api" }, "server.base_url"},
		{"unknown mode", func(c *Config) { c.Editor.Mode = "graph" }, "editor.mode"},
		{"zero scale", func(c *Config) { c.Editor.Scale = -1 }, "editor.scale"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"negative timeout", func(c *Config) { c.Server.Timeout = -time.Second }, "server.timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Server.CalculationID = 1
			tt.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, topology.ErrValidation) {
				t.Fatalf("Expected ErrValidation, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("Expected %s in %v", tt.field, err)
			}
		})
	}

	cfg := Default()
	cfg.Server.CalculationID = 1
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults error = %v", err)
	}
}

func TestValidateDevServer(t *testing.T) {
	cfg := Default()
	if err := cfg.ValidateDevServer(); err != nil {
		t.Errorf("ValidateDevServer() error = %v", err)
	}
	cfg.DevServer.Listen = ""
	if err := cfg.ValidateDevServer(); err == nil {
		t.Error("Expected error for empty listen address")
	}
}
