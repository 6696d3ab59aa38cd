// Package config loads walletgate configuration from a YAML file with
// sensible defaults for running everything on localhost.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pvanko/walletgate/internal/notify"
)

// Duration wraps time.Duration so YAML values like "250ms" parse.
type Duration time.Duration

// UnmarshalYAML parses a duration string or a bare number of nanoseconds.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := unmarshal(&n); err != nil {
		return fmt.Errorf("config: invalid duration value")
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Shadow configures the JSON-RPC front the dapp talks to.
type Shadow struct {
	Listen       string   `yaml:"listen"`
	WalletURL    string   `yaml:"wallet_url"`
	PollInterval Duration `yaml:"poll_interval"`
	// DecisionTimeout bounds how long an intercepted call waits for a
	// human decision before failing closed.
	DecisionTimeout Duration `yaml:"decision_timeout"`
	// AuditLog is the shadow's own hash-chained trail of forwarded
	// calls. Separate from the daemon's log: one writer per chain.
	// Empty disables it.
	AuditLog string `yaml:"audit_log"`
}

// Manager configures the background decision daemon.
type Manager struct {
	Listen string `yaml:"listen"`
	// StaleAfter is the request age beyond which the decision surface
	// treats a loaded request as no longer actionable.
	StaleAfter Duration `yaml:"stale_after"`
}

// Surface configures how the decision surface is presented.
type Surface struct {
	// Mode is "window", "tab" or "terminal".
	Mode string `yaml:"mode"`
	// Browser is the executable used for window/tab modes.
	Browser string `yaml:"browser"`
	URL     string `yaml:"url"`
}

// Risk configures the external scam-detection service.
type Risk struct {
	BaseURL string `yaml:"base_url"`
}

// Config holds all walletgate settings.
type Config struct {
	Shadow   Shadow                 `yaml:"shadow"`
	Manager  Manager                `yaml:"manager"`
	Surface  Surface                `yaml:"surface"`
	Risk     Risk                   `yaml:"risk"`
	DataDir  string                 `yaml:"data_dir"`
	AuditLog string                 `yaml:"audit_log"`
	LogLevel string                 `yaml:"log_level"`
	Webhooks []notify.WebhookConfig `yaml:"webhooks"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".walletgate")
	return &Config{
		Shadow: Shadow{
			Listen:          "127.0.0.1:8560",
			WalletURL:       "http://127.0.0.1:8545",
			PollInterval:    Duration(250 * time.Millisecond),
			DecisionTimeout: Duration(5 * time.Minute),
			AuditLog:        filepath.Join(base, "shadow-audit.jsonl"),
		},
		Manager: Manager{
			Listen:     "127.0.0.1:8561",
			StaleAfter: Duration(10 * time.Minute),
		},
		Surface: Surface{
			Mode: "terminal",
		},
		Risk: Risk{
			BaseURL: "http://127.0.0.1:8000",
		},
		DataDir:  filepath.Join(base, "state"),
		AuditLog: filepath.Join(base, "audit.jsonl"),
		LogLevel: "info",
	}
}

// Load reads configuration from a YAML file. Empty path falls back to
// ~/.walletgate/config.yaml. Missing file returns defaults; YAML
// overwrites only the fields it names.
func Load(path string) (*Config, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Default(), nil
		}
		path = filepath.Join(home, ".walletgate", "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Shadow.PollInterval <= 0 {
		return fmt.Errorf("config: shadow.poll_interval must be positive")
	}
	if c.Shadow.DecisionTimeout <= 0 {
		return fmt.Errorf("config: shadow.decision_timeout must be positive")
	}
	if c.Manager.StaleAfter <= 0 {
		return fmt.Errorf("config: manager.stale_after must be positive")
	}
	switch c.Surface.Mode {
	case "window", "tab", "terminal":
	default:
		return fmt.Errorf("config: surface.mode must be window, tab or terminal, got %q", c.Surface.Mode)
	}
	return nil
}

// DefaultYAML returns a commented YAML string for the init command.
func DefaultYAML() string {
	return `# walletgate configuration
# Generated by: walletgate init

# JSON-RPC front the dapp connects to instead of the wallet node.
shadow:
  listen: 127.0.0.1:8560
  wallet_url: http://127.0.0.1:8545
  poll_interval: 250ms
  decision_timeout: 5m
  # audit_log: ~/.walletgate/shadow-audit.jsonl

# Background decision daemon.
manager:
  listen: 127.0.0.1:8561
  stale_after: 10m

# Decision surface presentation: window | tab | terminal.
surface:
  mode: terminal
  # browser: chromium
  # url: http://127.0.0.1:8561/review

# External scam-detection service.
risk:
  base_url: http://127.0.0.1:8000

log_level: info

# Webhook notifications for resolved requests.
# webhooks:
#   - url: https://hooks.slack.com/services/...
#     format: slack
#     events: [reject, timeout]
`
}
