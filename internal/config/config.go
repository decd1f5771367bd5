// Package config loads marksync settings from flags, the environment,
// .env files, and ~/.marksync.yaml.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/roach88/marksync/internal/engine"
	"github.com/roach88/marksync/internal/ir"
)

// EnvPrefix prefixes every environment variable, e.g. MARKSYNC_DATABASE.
const EnvPrefix = "MARKSYNC"

// Config holds the settings shared by every command.
type Config struct {
	// Database is the path of the canonical SQLite store.
	Database string

	// FirefoxProfilePath and ChromeProfilePath locate the default sources
	// when a command is not given a path.
	FirefoxProfilePath string
	ChromeProfilePath  string

	// Host and Port are the serve command's listen address.
	Host string
	Port int

	LogLevel     string
	DeletePolicy engine.DeletePolicy

	// CopyTimeout bounds the wait for snapshotting a locked places.sqlite.
	CopyTimeout time.Duration

	// ConfigFile is the file that was read, if any.
	ConfigFile string
}

// Defaults.
const (
	DefaultDatabase    = "bookmarks.db"
	DefaultHost        = "127.0.0.1"
	DefaultPort        = 5000
	DefaultLogLevel    = "info"
	DefaultCopyTimeout = 30 * time.Second
)

// envAliases are the unprefixed variable names also accepted for a key.
var envAliases = map[string][]string{
	"database":             {"DATABASE_NAME"},
	"firefox_profile_path": {"FIREFOX_PROFILE_PATH"},
	"chrome_profile_path":  {"CHROME_PROFILE_PATH"},
	"host":                 {"HOST"},
	"port":                 {"PORT"},
	"log_level":            {"LOG_LEVEL"},
}

// envFiles are loaded in order; a variable already set is never overridden.
var envFiles = []string{".env", ".env.local"}

// Load reads configuration in order of precedence:
// 1. Command-line flags (applied by the caller)
// 2. Environment variables (MARKSYNC_*, then unprefixed aliases)
// 3. .env files
// 4. Config file (configFile, or .marksync.yaml in $HOME or the working directory)
// 5. Defaults
//
// An explicit configFile must exist. A missing default file is not an error.
func Load(configFile string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, aliases := range envAliases {
		names := append([]string{EnvPrefix + "_" + strings.ToUpper(key)}, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".marksync")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	policy, err := engine.ParseDeletePolicy(v.GetString("delete_policy"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database:           v.GetString("database"),
		FirefoxProfilePath: v.GetString("firefox_profile_path"),
		ChromeProfilePath:  v.GetString("chrome_profile_path"),
		Host:               v.GetString("host"),
		Port:               v.GetInt("port"),
		LogLevel:           v.GetString("log_level"),
		DeletePolicy:       policy,
		CopyTimeout:        v.GetDuration("copy_timeout"),
		ConfigFile:         v.ConfigFileUsed(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database", DefaultDatabase)
	v.SetDefault("host", DefaultHost)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("delete_policy", string(engine.DeleteRemove))
	v.SetDefault("copy_timeout", DefaultCopyTimeout)
}

// loadEnvFiles loads environment variables from .env files.
func loadEnvFiles() {
	for _, envFile := range envFiles {
		_ = godotenv.Load(envFile)
	}
}

// Validate checks values that viper cannot type-check.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database) == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.CopyTimeout <= 0 {
		return fmt.Errorf("copy_timeout must be positive, got %s", c.CopyTimeout)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel ("debug", "info", "warn", "error").
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// ListenAddr returns host:port for the HTTP server.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SourcePath returns the configured default path for family, or "".
func (c *Config) SourcePath(family ir.SourceFamily) string {
	switch family {
	case ir.FamilyFirefox:
		return c.FirefoxProfilePath
	case ir.FamilyChrome:
		return c.ChromeProfilePath
	}
	return ""
}
