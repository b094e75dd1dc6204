// Package config loads application configuration from file and environment
// and owns the global logger setup.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. Campaign credentials
// (API keys, SMTP, Telegram) live in the database settings singleton, not
// here; this covers process-level wiring only.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Schedule ScheduleConfig `yaml:"schedule" mapstructure:"schedule"`
	Engine   EngineConfig   `yaml:"engine" mapstructure:"engine"`
	Serp     SerpConfig     `yaml:"serp" mapstructure:"serp"`
	Audit    AuditConfig    `yaml:"audit" mapstructure:"audit"`
	Groq     GroqConfig     `yaml:"groq" mapstructure:"groq"`
	Telegram TelegramConfig `yaml:"telegram" mapstructure:"telegram"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// ScheduleConfig configures the daily campaign trigger.
type ScheduleConfig struct {
	// Hour is the UTC hour (0-23) at which the daily run fires.
	Hour int `yaml:"hour" mapstructure:"hour"`
}

// EngineConfig configures campaign run pacing. Durations here shape how a
// run spreads its work across the day; shrinking them in tests makes runs
// complete instantly.
type EngineConfig struct {
	Cooldown        time.Duration `yaml:"cooldown" mapstructure:"cooldown"`
	CooldownSegment time.Duration `yaml:"cooldown_segment" mapstructure:"cooldown_segment"`
	SendInterval    time.Duration `yaml:"send_interval" mapstructure:"send_interval"`
	AuditInterval   time.Duration `yaml:"audit_interval" mapstructure:"audit_interval"`
}

// SerpConfig holds search API settings.
type SerpConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AuditConfig holds the site audit service settings.
type AuditConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// GroqConfig holds the LLM personalization settings.
type GroqConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// TelegramConfig holds the Telegram Bot API settings.
type TelegramConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "outreach.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("schedule.hour", 8)
	v.SetDefault("engine.cooldown", time.Hour)
	v.SetDefault("engine.cooldown_segment", 10*time.Minute)
	v.SetDefault("engine.send_interval", 10*time.Minute)
	v.SetDefault("engine.audit_interval", 2*time.Second)
	v.SetDefault("serp.base_url", "https://serpapi.com")
	v.SetDefault("audit.base_url", "http://localhost:3001")
	v.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("groq.model", "llama-3.3-70b-versatile")
	v.SetDefault("telegram.base_url", "https://api.telegram.org")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
