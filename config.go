package wordgame

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from files and environment variables.
type Config struct {
	Env        string           `mapstructure:"env"`
	Port       string           `mapstructure:"port"`
	Completion CompletionConfig `mapstructure:"completion"`
	Session    SessionConfig    `mapstructure:"session"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Log        LogConfig        `mapstructure:"log"`
}

// CompletionConfig points at the completion service
type CompletionConfig struct {
	APIKey  string        `mapstructure:"-"` // loaded from DEEPSEEK_API_KEY only
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SessionConfig controls player cookies and in-memory player state
type SessionConfig struct {
	Secret  string        `mapstructure:"-"` // loaded from SESSION_SECRET only
	IdleTTL time.Duration `mapstructure:"idle_ttl"`
}

// DatabaseConfig locates the word set archive; an empty path disables it
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig controls zap and the generation transcripts
type LogConfig struct {
	Level         string `mapstructure:"level"`
	TranscriptDir string `mapstructure:"transcript_dir"`
}

// Generator converts the completion section into a GeneratorConfig
func (c CompletionConfig) Generator() GeneratorConfig {
	return GeneratorConfig{
		APIKey:  c.APIKey,
		BaseURL: c.BaseURL,
		Model:   c.Model,
		Timeout: c.Timeout,
	}
}

// LoadConfig reads .env, an optional config/config.yaml and the environment
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")

	v.SetDefault("env", "local")
	v.SetDefault("port", "8180")
	v.SetDefault("completion.base_url", DefaultBaseURL)
	v.SetDefault("completion.model", DefaultModel)
	v.SetDefault("completion.timeout", "60s")
	v.SetDefault("session.idle_ttl", "1h")
	v.SetDefault("database.path", "./wordgame.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.transcript_dir", "")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("completion_api_key", "DEEPSEEK_API_KEY")
	_ = v.BindEnv("session_secret", "SESSION_SECRET")
	_ = v.BindEnv("env", "APP_ENV")
	_ = v.BindEnv("port", "PORT")

	if err := v.ReadInConfig(); err != nil {
		var fileLookupErr viper.ConfigFileNotFoundError
		if !errors.As(err, &fileLookupErr) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	cfg.Completion.APIKey = v.GetString("completion_api_key")
	cfg.Session.Secret = v.GetString("session_secret")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks values that have no sensible fallback
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port cannot be empty")
	}
	if c.Completion.Timeout <= 0 {
		return errors.New("completion.timeout must be > 0")
	}
	if c.Session.IdleTTL <= 0 {
		return errors.New("session.idle_ttl must be > 0")
	}
	return nil
}
