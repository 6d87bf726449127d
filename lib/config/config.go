// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for Parley.
type Config struct {
	// Environment identifies the deployment type (development,
	// staging, production).
	Environment Environment `yaml:"environment"`

	// API configures the console API connection.
	API APIConfig `yaml:"api"`

	// Console configures the interactive terminal workspace.
	Console ConsoleConfig `yaml:"console"`

	// Capture configures run capture files.
	Capture CaptureConfig `yaml:"capture"`

	// Workflows configures local workflow descriptors.
	Workflows WorkflowsConfig `yaml:"workflows"`

	// Per-environment overrides, applied after the base config is
	// loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per
// environment.
type ConfigOverrides struct {
	API       *APIConfig       `yaml:"api,omitempty"`
	Console   *ConsoleConfig   `yaml:"console,omitempty"`
	Capture   *CaptureConfig   `yaml:"capture,omitempty"`
	Workflows *WorkflowsConfig `yaml:"workflows,omitempty"`
}

// APIConfig configures the console API connection.
type APIConfig struct {
	// BaseURL is the console API root.
	// Default: http://localhost:8787
	BaseURL string `yaml:"base_url"`

	// Timeout bounds non-streaming API calls, as a Go duration
	// string. Streaming requests are bounded by their context
	// instead. Default: 30s
	Timeout string `yaml:"timeout"`

	// SessionFile is where the operator session token is stored.
	// Default: ~/.config/parley/session.json
	SessionFile string `yaml:"session_file"`

	// InsecureHTTP permits a plain-HTTP base URL. Default: true
	// (development), false (production).
	InsecureHTTP bool `yaml:"insecure_http"`
}

// ConsoleConfig configures the interactive terminal workspace.
type ConsoleConfig struct {
	// Theme selects the console color theme.
	// Default: parley-dark
	Theme string `yaml:"theme"`

	// SyntaxTheme selects the syntax highlighting style for code
	// blocks in agent output. Default: monokai
	SyntaxTheme string `yaml:"syntax_theme"`

	// AltScreen runs the console on the terminal's alternate screen.
	// Default: true
	AltScreen bool `yaml:"alt_screen"`
}

// CaptureConfig configures run capture files.
type CaptureConfig struct {
	// Directory is where captures are written.
	// Default: ~/.local/share/parley/captures
	Directory string `yaml:"directory"`

	// Compression selects the capture block compression: lz4 or
	// zstd. Default: zstd
	Compression string `yaml:"compression"`

	// BlockSize is the number of envelopes per capture block.
	// Default: 256
	BlockSize int `yaml:"block_size"`

	// Recipients are age public keys that sealed exports are
	// encrypted to.
	Recipients []string `yaml:"recipients"`
}

// WorkflowsConfig configures local workflow descriptors.
type WorkflowsConfig struct {
	// Directory holds local .jsonc workflow descriptors. When a
	// descriptor for a key exists here it is preferred over the API
	// copy, which supports editing workflows before they are
	// published.
	Directory string `yaml:"directory"`
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file. They exist primarily to
// ensure all fields have sensible zero-values, not as a fallback -
// the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Environment: Development,
		API: APIConfig{
			BaseURL:      "http://localhost:8787",
			Timeout:      "30s",
			SessionFile:  filepath.Join(homeDir, ".config", "parley", "session.json"),
			InsecureHTTP: true,
		},
		Console: ConsoleConfig{
			Theme:       "parley-dark",
			SyntaxTheme: "monokai",
			AltScreen:   true,
		},
		Capture: CaptureConfig{
			Directory:   filepath.Join(homeDir, ".local", "share", "parley", "captures"),
			Compression: "zstd",
			BlockSize:   256,
		},
		Workflows: WorkflowsConfig{},
	}
}

// Load loads configuration from the PARLEY_CONFIG environment
// variable.
//
// This is the only way to load configuration without an explicit
// path. There are no fallbacks or defaults - if PARLEY_CONFIG is not
// set, this fails. This ensures deterministic, auditable
// configuration with no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("PARLEY_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("PARLEY_CONFIG environment variable not set; " +
			"set it to the path of your parley.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment
// variables do not override config values - this ensures
// deterministic, auditable configuration. The only expansion
// performed is ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Apply environment-specific overrides (development/staging/
	// production sections in the file).
	cfg.applyEnvironmentOverrides()

	// Expand ${HOME} and similar variables in paths for portability.
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the
// current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies the environment-specific
// overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: plain HTTP is refused unless the
		// file grants it explicitly.
		if overrides == nil {
			overrides = &ConfigOverrides{
				API: &APIConfig{InsecureHTTP: false},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.API != nil {
		if overrides.API.BaseURL != "" {
			c.API.BaseURL = overrides.API.BaseURL
		}
		if overrides.API.Timeout != "" {
			c.API.Timeout = overrides.API.Timeout
		}
		if overrides.API.SessionFile != "" {
			c.API.SessionFile = overrides.API.SessionFile
		}
		// InsecureHTTP is a bool, so we always apply it from
		// overrides.
		c.API.InsecureHTTP = overrides.API.InsecureHTTP
	}

	if overrides.Console != nil {
		if overrides.Console.Theme != "" {
			c.Console.Theme = overrides.Console.Theme
		}
		if overrides.Console.SyntaxTheme != "" {
			c.Console.SyntaxTheme = overrides.Console.SyntaxTheme
		}
		c.Console.AltScreen = overrides.Console.AltScreen
	}

	if overrides.Capture != nil {
		if overrides.Capture.Directory != "" {
			c.Capture.Directory = overrides.Capture.Directory
		}
		if overrides.Capture.Compression != "" {
			c.Capture.Compression = overrides.Capture.Compression
		}
		if overrides.Capture.BlockSize != 0 {
			c.Capture.BlockSize = overrides.Capture.BlockSize
		}
		if len(overrides.Capture.Recipients) != 0 {
			c.Capture.Recipients = overrides.Capture.Recipients
		}
	}

	if overrides.Workflows != nil {
		if overrides.Workflows.Directory != "" {
			c.Workflows.Directory = overrides.Workflows.Directory
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.API.SessionFile = expandVars(c.API.SessionFile, vars)
	c.Capture.Directory = expandVars(c.Capture.Directory, vars)
	c.Workflows.Directory = expandVars(c.Workflows.Directory, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.API.BaseURL == "" {
		errs = append(errs, fmt.Errorf("api.base_url is required"))
	} else if !c.API.InsecureHTTP && strings.HasPrefix(c.API.BaseURL, "http://") {
		errs = append(errs, fmt.Errorf("api.base_url uses plain HTTP; set api.insecure_http to allow it"))
	}

	if c.API.Timeout != "" {
		if _, err := time.ParseDuration(c.API.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("api.timeout is not a duration: %w", err))
		}
	}

	compressionValues := []string{"lz4", "zstd"}
	if !contains(compressionValues, c.Capture.Compression) {
		errs = append(errs, fmt.Errorf("capture.compression must be one of: %v", compressionValues))
	}

	if c.Capture.BlockSize < 0 {
		errs = append(errs, fmt.Errorf("capture.block_size must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Timeout returns the parsed API timeout, falling back to 30 seconds
// when the field is empty or malformed. Validate reports the
// malformed case; this accessor never fails.
func (c *Config) Timeout() time.Duration {
	timeout, err := time.ParseDuration(c.API.Timeout)
	if err != nil || timeout <= 0 {
		return 30 * time.Second
	}
	return timeout
}

// EnsurePaths creates all configured directories if they don't
// exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Capture.Directory,
		c.Workflows.Directory,
		filepath.Dir(c.API.SessionFile),
	}

	for _, path := range paths {
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
