package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marksync/internal/engine"
	"github.com/roach88/marksync/internal/ir"
)

var configEnv = []string{
	"MARKSYNC_DATABASE", "DATABASE_NAME",
	"MARKSYNC_FIREFOX_PROFILE_PATH", "FIREFOX_PROFILE_PATH",
	"MARKSYNC_CHROME_PROFILE_PATH", "CHROME_PROFILE_PATH",
	"MARKSYNC_HOST", "HOST",
	"MARKSYNC_PORT", "PORT",
	"MARKSYNC_LOG_LEVEL", "LOG_LEVEL",
	"MARKSYNC_DELETE_POLICY", "MARKSYNC_COPY_TIMEOUT",
}

// isolate clears marksync variables and moves HOME and the working
// directory to empty temp dirs. Returns the working directory.
func isolate(t *testing.T) string {
	t.Helper()
	for _, key := range configEnv {
		t.Setenv(key, "")
	}
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultDatabase, cfg.Database)
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, engine.DeleteRemove, cfg.DeletePolicy)
	assert.Equal(t, DefaultCopyTimeout, cfg.CopyTimeout)
	assert.Empty(t, cfg.ConfigFile)
	assert.Equal(t, "127.0.0.1:5000", cfg.ListenAddr())
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	isolate(t)
	t.Setenv("MARKSYNC_DATABASE", "/data/marks.db")
	t.Setenv("PORT", "8080")
	t.Setenv("MARKSYNC_LOG_LEVEL", "debug")
	t.Setenv("MARKSYNC_DELETE_POLICY", "soft")
	t.Setenv("MARKSYNC_COPY_TIMEOUT", "5s")
	t.Setenv("FIREFOX_PROFILE_PATH", "/home/u/.mozilla/firefox/abc.default")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/data/marks.db", cfg.Database)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, engine.DeleteSoft, cfg.DeletePolicy)
	assert.Equal(t, 5*time.Second, cfg.CopyTimeout)
	assert.Equal(t, "/home/u/.mozilla/firefox/abc.default", cfg.SourcePath(ir.FamilyFirefox))
}

func TestLoad_PrefixedWinsOverAlias(t *testing.T) {
	isolate(t)
	t.Setenv("DATABASE_NAME", "alias.db")
	t.Setenv("MARKSYNC_DATABASE", "prefixed.db")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "prefixed.db", cfg.Database)
}

func TestLoad_DefaultConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, ".marksync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: from-file.db\nport: 9000\nchrome_profile_path: /chrome/Default\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "from-file.db", cfg.Database)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "/chrome/Default", cfg.SourcePath(ir.FamilyChrome))
	assert.Equal(t, "", cfg.SourcePath(ir.FamilyHTML))
	assert.NotEmpty(t, cfg.ConfigFile)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: from-file.db\n"), 0o644))
	t.Setenv("MARKSYNC_DATABASE", "from-env.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env.db", cfg.Database)
	assert.Equal(t, path, cfg.ConfigFile)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.Unsetenv("MARKSYNC_CHROME_PROFILE_PATH"))
	t.Cleanup(func() { os.Unsetenv("MARKSYNC_CHROME_PROFILE_PATH") })
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MARKSYNC_CHROME_PROFILE_PATH=/from/dotenv\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/from/dotenv", cfg.ChromeProfilePath)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port", "MARKSYNC_PORT", "70000"},
		{"delete policy", "MARKSYNC_DELETE_POLICY", "archive"},
		{"log level", "MARKSYNC_LOG_LEVEL", "loud"},
		{"copy timeout", "MARKSYNC_COPY_TIMEOUT", "-1s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := &Config{LogLevel: "WARN"}

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}
