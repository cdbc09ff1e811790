// Package settings loads the process configuration from an optional YAML
// file, a .env file and MAESTRO_* environment variables.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MAESTRO"

// Settings is the resolved process configuration.
type Settings struct {
	Store    StoreSettings    `mapstructure:"store"`
	Security SecuritySettings `mapstructure:"security"`
	Defaults DefaultSettings  `mapstructure:"defaults"`
	LLM      LLMSettings      `mapstructure:"llm"`
	Log      LogSettings      `mapstructure:"log"`
	Server   ServerSettings   `mapstructure:"server"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

type StoreSettings struct {
	Backend   string `mapstructure:"backend"`
	Path      string `mapstructure:"path"`
	RedisURL  string `mapstructure:"redis_url"`
	Namespace string `mapstructure:"namespace"`
	Backups   int    `mapstructure:"backups"`
}

type SecuritySettings struct {
	EncryptKeys bool   `mapstructure:"encrypt_keys"`
	Secret      string `mapstructure:"secret"`
	KeyFile     string `mapstructure:"key_file"`
}

type DefaultSettings struct {
	GoogleAPIKey string `mapstructure:"google_api_key"`
}

type LLMSettings struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	Temperature *float64      `mapstructure:"temperature"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

type LogSettings struct {
	Level     string `mapstructure:"level"`
	File      string `mapstructure:"file"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
}

type ServerSettings struct {
	Addr   string   `mapstructure:"addr"`
	Tokens []string `mapstructure:"tokens"`
}

// Dir returns the directory holding the default config, state and key files.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		base = "."
	}
	return filepath.Join(base, "maestro")
}

// DefaultConfigFile is read when no --config is given, if it exists.
func DefaultConfigFile() string {
	return filepath.Join(Dir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	dir := Dir()
	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.path", filepath.Join(dir, "state.json"))
	v.SetDefault("store.redis_url", "")
	v.SetDefault("store.namespace", "maestro")
	v.SetDefault("store.backups", 5)
	v.SetDefault("security.encrypt_keys", true)
	v.SetDefault("security.secret", "")
	v.SetDefault("security.key_file", filepath.Join(dir, "master.key"))
	v.SetDefault("defaults.google_api_key", "")
	v.SetDefault("llm.timeout", 2*time.Minute)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.tokens", []string{})
}

// LoadDotEnv loads .env from dir into the environment. Variables that are
// already set win.
func LoadDotEnv(dir string) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).Warn("failed to load .env file")
		}
	}
}

// Load resolves the settings. An explicit path must exist; the default file
// is optional.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("defaults.google_api_key", EnvPrefix+"_DEFAULTS_GOOGLE_API_KEY", "GOOGLE_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}
	// no default, so AutomaticEnv alone would not reach Unmarshal
	if err := v.BindEnv("llm.temperature"); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	file := path
	if file == "" {
		if candidate := DefaultConfigFile(); fileExists(candidate) {
			file = candidate
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if !v.IsSet("llm.temperature") {
		s.LLM.Temperature = nil
	}
	s.File = file

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the values that would otherwise fail late.
func (s *Settings) Validate() error {
	switch s.Store.Backend {
	case BackendFile:
		if s.Store.Path == "" {
			return errors.New("store.path is required for the file backend")
		}
	case BackendMemory:
	case BackendRedis:
		if s.Store.RedisURL == "" {
			return errors.New("store.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q (want file, memory or redis)", s.Store.Backend)
	}
	if s.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive, got %s", s.LLM.Timeout)
	}
	if t := s.LLM.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %v", *t)
	}
	if s.Log.MaxSizeMB < 0 {
		return fmt.Errorf("log.max_size_mb cannot be negative")
	}
	if _, err := ParseTokens(s.Server.Tokens); err != nil {
		return err
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
