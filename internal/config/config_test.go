package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Shadow.Listen != "127.0.0.1:8560" {
		t.Errorf("unexpected default listen %s", cfg.Shadow.Listen)
	}
	if cfg.Shadow.DecisionTimeout.Std() != 5*time.Minute {
		t.Errorf("unexpected default decision timeout %v", cfg.Shadow.DecisionTimeout)
	}
	if cfg.Surface.Mode != "terminal" {
		t.Errorf("unexpected default surface mode %s", cfg.Surface.Mode)
	}
}

func TestLoadPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte(`
shadow:
  wallet_url: http://127.0.0.1:9999
  decision_timeout: 30s
surface:
  mode: window
  browser: chromium
`), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Shadow.WalletURL != "http://127.0.0.1:9999" {
		t.Errorf("override not applied: %s", cfg.Shadow.WalletURL)
	}
	if cfg.Shadow.DecisionTimeout.Std() != 30*time.Second {
		t.Errorf("duration not parsed: %v", cfg.Shadow.DecisionTimeout)
	}
	// Unspecified fields keep defaults.
	if cfg.Shadow.Listen != "127.0.0.1:8560" {
		t.Errorf("default lost: %s", cfg.Shadow.Listen)
	}
	if cfg.Surface.Mode != "window" || cfg.Surface.Browser != "chromium" {
		t.Errorf("surface override not applied: %+v", cfg.Surface)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("shadow: [not a map"), 0600)

	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadRejectsBadSurfaceMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("surface:\n  mode: popup\n"), 0600)

	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown surface mode")
	}
}

func TestLoadRejectsNonPositiveTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("shadow:\n  decision_timeout: 0s\n"), 0600)

	if _, err := Load(path); err == nil {
		t.Error("expected error for zero decision timeout")
	}
}

func TestDefaultYAMLParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte(DefaultYAML()), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if cfg.Risk.BaseURL != "http://127.0.0.1:8000" {
		t.Errorf("unexpected risk base URL %s", cfg.Risk.BaseURL)
	}
}
