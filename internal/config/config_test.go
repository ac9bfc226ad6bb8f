package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/governor/internal/store"
)

func TestLoad_ReturnsDefaultsWhenNoFileExists(t *testing.T) {
	root := t.TempDir()

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "cli", cfg.DefaultEngine)
	assert.Equal(t, DatabaseEmbeddedSQLite, cfg.Database.Type)
	assert.Equal(t, 3, cfg.Gates.MaxAttempts)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, GovernorDir), 0o755))
	yaml := `
project_name: widgets
default_engine: claude-cli
gates:
  max_attempts: 5
sandbox:
  allowed_paths:
    - "src/**"
  allowed_commands:
    - go
`
	require.NoError(t, os.WriteFile(filepath.Join(root, GovernorDir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "widgets", cfg.ProjectName)
	assert.Equal(t, "claude-cli", cfg.DefaultEngine)
	assert.Equal(t, 5, cfg.Gates.MaxAttempts)
	assert.Equal(t, []string{"src/**"}, cfg.Sandbox.AllowedPaths)
	assert.Equal(t, []string{"go"}, cfg.Sandbox.AllowedCommands)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, GovernorDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, GovernorDir, "config.yaml"), []byte("default_engine: from-file\n"), 0o644))
	t.Setenv("GOVERNOR_DEFAULT_ENGINE", "from-env")

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.DefaultEngine)
}

func TestValidate_RejectsUnknownDatabaseType(t *testing.T) {
	cfg := Default()
	cfg.Database.Type = "oracle"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.type")
}

func TestValidate_PostgresRequiresDSN(t *testing.T) {
	cfg := Default()
	cfg.Database.Type = DatabasePostgres
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn")
}

func TestValidate_RejectsZeroMaxAttempts(t *testing.T) {
	cfg := Default()
	cfg.Gates.MaxAttempts = 0
	err := cfg.Validate()
	require.Error(t, err)
}

func TestSandboxConfig_ConvertsToPolicies(t *testing.T) {
	sc := SandboxConfig{
		AllowedPaths:    []string{"src/**"},
		AllowedCommands: []string{"go", "git"},
	}
	assert.Equal(t, []string{"src/**"}, sc.PathPolicy().AllowedPaths)
	assert.Equal(t, []string{"go", "git"}, sc.CommandPolicy().Allowed)
}

func TestSave_WritesLoadableConfig(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.ProjectName = "widgets"
	cfg.Gates.MaxAttempts = 7

	require.NoError(t, cfg.Save(root))

	reloaded, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "widgets", reloaded.ProjectName)
	assert.Equal(t, 7, reloaded.Gates.MaxAttempts)
}

func TestDefaultGateSpec_FillsTimeoutAndCanonicalizesCriteria(t *testing.T) {
	cfg := Default()
	cfg.Gates.Timeout = 2 * time.Minute

	spec := cfg.DefaultGateSpec(store.GateSpec{Name: "build", PassCriteria: "exit_code_0"})
	assert.Equal(t, 2*time.Minute, spec.Timeout)
	assert.Equal(t, "exit_code_zero", spec.PassCriteria)

	explicit := cfg.DefaultGateSpec(store.GateSpec{Name: "build", PassCriteria: "exit_code_zero", Timeout: 30 * time.Second})
	assert.Equal(t, 30*time.Second, explicit.Timeout)
}
