// Package config loads per-project governor configuration: default
// engine, sandbox allow/deny policy, gate defaults, and database
// connection settings (spec.md §6, SPEC_FULL.md §2/§3).
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/governor/internal/errs"
	"github.com/randalmurphal/governor/internal/gate"
	"github.com/randalmurphal/governor/internal/sandbox"
	"github.com/randalmurphal/governor/internal/store"
)

// GovernorDir is the per-project configuration and state directory,
// mirroring the teacher's OrcDir convention.
const GovernorDir = ".governor"

// ConfigFileName is the default config file name, without extension
// (viper appends .yaml when searching).
const ConfigFileName = "config"

// Config is the root configuration loaded for a project: the options
// spec.md §6 names, plus supplementary keys such as the Hosting block
// and Gates.MaxAttempts.
type Config struct {
	ProjectName   string         `mapstructure:"project_name" yaml:"project_name"`
	DefaultEngine string         `mapstructure:"default_engine" yaml:"default_engine"`
	Sandbox       SandboxConfig  `mapstructure:"sandbox" yaml:"sandbox"`
	Gates         GatesConfig    `mapstructure:"gates" yaml:"gates"`
	Database      DatabaseConfig `mapstructure:"database" yaml:"database"`
	Hosting       HostingConfig  `mapstructure:"hosting" yaml:"hosting,omitempty"`
}

// HostingConfig configures the optional post-commit PR adapter
// (internal/hosting); not one of spec.md §6's named keys, but the
// natural home for the enrichment it describes once it is made
// configurable rather than wired ad hoc. An empty Owner/Repo disables
// PR creation entirely.
type HostingConfig struct {
	Token string `mapstructure:"token" yaml:"token,omitempty"`
	Owner string `mapstructure:"owner" yaml:"owner,omitempty"`
	Repo  string `mapstructure:"repo" yaml:"repo,omitempty"`
	Base  string `mapstructure:"base_branch" yaml:"base_branch,omitempty"`
}

// SandboxConfig configures the Sandbox's path resolver and command
// runner (spec.md §4.4, §6).
type SandboxConfig struct {
	AllowedPaths    []string          `mapstructure:"allowed_paths" yaml:"allowed_paths,omitempty"`
	BlockedPaths    []string          `mapstructure:"blocked_paths" yaml:"blocked_paths,omitempty"`
	AllowedCommands []string          `mapstructure:"allowed_commands" yaml:"allowed_commands,omitempty"`
	BlockedCommands []string          `mapstructure:"blocked_commands" yaml:"blocked_commands,omitempty"`
	Env             map[string]string `mapstructure:"env" yaml:"env,omitempty"`
	CommandTimeout  time.Duration     `mapstructure:"command_timeout" yaml:"command_timeout"`
	GracePeriod     time.Duration     `mapstructure:"grace_period" yaml:"grace_period"`
}

// PathPolicy converts the configured path allow/deny lists into a
// sandbox.PathPolicy.
func (s SandboxConfig) PathPolicy() sandbox.PathPolicy {
	return sandbox.PathPolicy{AllowedPaths: s.AllowedPaths, BlockedPaths: s.BlockedPaths}
}

// CommandPolicy converts the configured command allow/deny lists and
// environment into a sandbox.CommandPolicy.
func (s SandboxConfig) CommandPolicy() sandbox.CommandPolicy {
	return sandbox.CommandPolicy{Allowed: s.AllowedCommands, Blocked: s.BlockedCommands, Env: s.Env}
}

// GatesConfig holds the gate defaults spec.md §6 names: whether gates
// run at all, their default timeout, and whether a failed gate stops
// the run (stop-at-first-failure, spec.md §4.5) or is merely recorded.
// Enabled and FailOnError are loaded and saved but not read by the gate
// evaluator, which always runs a task's gates and stops at the first
// failure.
type GatesConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	FailOnError bool          `mapstructure:"fail_on_error" yaml:"fail_on_error"`
	// MaxAttempts bounds the coder loop's retries before a task is
	// REJECTED with reason=exhausted (spec.md §4.8); not one of §6's
	// named config keys, but the natural home for the coder's retry
	// budget once it is made configurable rather than a call argument.
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// DatabaseType names the supported persistence backends (spec.md §6's
// `database.type`).
type DatabaseType string

const (
	DatabaseEmbeddedSQLite DatabaseType = "embedded-sqlite"
	DatabasePostgres       DatabaseType = "postgres"
)

var validDatabaseTypes = []string{string(DatabaseEmbeddedSQLite), string(DatabasePostgres)}

// DatabaseConfig selects and configures the persistence backend
// (SPEC_FULL.md §5.1: embedded sqlite by default, postgres opt-in).
type DatabaseConfig struct {
	Type     DatabaseType   `mapstructure:"type" yaml:"type"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// SQLiteConfig is the embedded-database connection parameter set.
type SQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// PostgresConfig is the shared-database connection parameter set.
type PostgresConfig struct {
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
	Schema string `mapstructure:"schema" yaml:"schema"`
}

// Default returns the built-in configuration, applied before any file
// or environment overlay.
func Default() *Config {
	return &Config{
		ProjectName:   "",
		DefaultEngine: "cli",
		Sandbox: SandboxConfig{
			CommandTimeout: 10 * time.Minute,
			GracePeriod:    5 * time.Second,
		},
		Gates: GatesConfig{
			Enabled:     true,
			Timeout:     5 * time.Minute,
			FailOnError: true,
			MaxAttempts: 3,
		},
		Database: DatabaseConfig{
			Type: DatabaseEmbeddedSQLite,
			SQLite: SQLiteConfig{
				Path: filepath.Join(GovernorDir, "governor.db"),
			},
			Postgres: PostgresConfig{
				Schema: "public",
			},
		},
		Hosting: HostingConfig{
			Base: "main",
		},
	}
}

// Load reads configuration for the project rooted at projectRoot:
// built-in defaults, then `<projectRoot>/.governor/config.yaml` if
// present, then GOVERNOR_* environment variables (load order matches
// the teacher's LoadWithSources, narrowed to one project-local file
// since governor has no system/user config tier).
func Load(projectRoot string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(projectRoot, GovernorDir))

	v.SetEnvPrefix("GOVERNOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errs.Wrap(errs.CodeStorage, "read config file", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errs.Wrap(errs.CodeParse, "unmarshal config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes c as `<projectRoot>/.governor/config.yaml`, creating the
// governor directory if needed. Used by `govr init` to lay down a
// project's starting configuration file.
func (c *Config) Save(projectRoot string) error {
	dir := filepath.Join(projectRoot, GovernorDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.CodeStorage, "create governor directory", err)
	}

	out, err := yaml.Marshal(c)
	if err != nil {
		return errs.Wrap(errs.CodeInternal, "marshal config", err)
	}

	path := filepath.Join(dir, ConfigFileName+".yaml")
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return errs.Wrap(errs.CodeStorage, "write config file", err)
	}
	return nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("project_name", d.ProjectName)
	v.SetDefault("default_engine", d.DefaultEngine)
	v.SetDefault("sandbox.command_timeout", d.Sandbox.CommandTimeout)
	v.SetDefault("sandbox.grace_period", d.Sandbox.GracePeriod)
	v.SetDefault("gates.enabled", d.Gates.Enabled)
	v.SetDefault("gates.timeout", d.Gates.Timeout)
	v.SetDefault("gates.fail_on_error", d.Gates.FailOnError)
	v.SetDefault("gates.max_attempts", d.Gates.MaxAttempts)
	v.SetDefault("database.type", string(d.Database.Type))
	v.SetDefault("database.sqlite.path", d.Database.SQLite.Path)
	v.SetDefault("database.postgres.schema", d.Database.Postgres.Schema)
	v.SetDefault("hosting.base_branch", d.Hosting.Base)
}

// Validate checks that the loaded configuration is internally
// consistent, returning a CodeValidation error describing the first
// problem found.
func (c *Config) Validate() error {
	if !contains(validDatabaseTypes, string(c.Database.Type)) {
		return errs.Newf(errs.CodeValidation, "invalid database.type %q (must be one of: %s)",
			c.Database.Type, strings.Join(validDatabaseTypes, ", "))
	}
	if c.Database.Type == DatabaseEmbeddedSQLite && c.Database.SQLite.Path == "" {
		return errs.New(errs.CodeValidation, "database.sqlite.path must not be empty")
	}
	if c.Database.Type == DatabasePostgres && c.Database.Postgres.DSN == "" {
		return errs.New(errs.CodeValidation, "database.postgres.dsn must not be empty")
	}
	if c.Gates.MaxAttempts < 1 {
		return errs.New(errs.CodeValidation, "gates.max_attempts must be at least 1")
	}
	if c.Sandbox.CommandTimeout < 0 || c.Sandbox.GracePeriod < 0 {
		return errs.New(errs.CodeValidation, "sandbox.command_timeout and sandbox.grace_period must not be negative")
	}
	for _, p := range c.Sandbox.AllowedPaths {
		if _, err := filepath.Match(p, p); err != nil {
			return errs.Newf(errs.CodeValidation, "invalid sandbox.allowed_paths glob %q: %s", p, err)
		}
	}
	return nil
}

// DefaultGateSpec fills in a gate spec's timeout from Gates.Timeout
// when unset, and canonicalizes its pass criteria (accepting the
// `exit_code_0` synonym).
func (c *Config) DefaultGateSpec(spec store.GateSpec) store.GateSpec {
	if spec.Timeout == 0 {
		spec.Timeout = c.Gates.Timeout
	}
	spec.PassCriteria = gate.Canonicalize(spec.PassCriteria)
	return spec
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
