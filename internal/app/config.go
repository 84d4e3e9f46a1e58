package app

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/DoyleJ11/spell-duel-backend/internal/engine"
)

type Config struct {
	Env       string
	HTTPAddr  string
	CORSAllow []string

	DefaultRuleset string

	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	WSPingInterval time.Duration
	OutboxSize     int

	DatabaseURL     string // empty disables the match history ledger
	HistoryQueue    int
	ShutdownTimeout time.Duration
}

// LoadConfig reads .env (dev only, optional), then an optional config.yaml,
// then the environment. Environment wins.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("config: read config.yaml: %w", err)
		}
	}
	v.AutomaticEnv()
	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("HTTP_ADDR", ":3001")
	v.SetDefault("CORS_ALLOW", "http://localhost:3000,http://localhost:3001")
	v.SetDefault("DEFAULT_RULESET", engine.RulesetElemental)
	v.SetDefault("WS_READ_TIMEOUT", "60s")
	v.SetDefault("WS_WRITE_TIMEOUT", "3s")
	v.SetDefault("WS_PING_INTERVAL", "20s")
	v.SetDefault("OUTBOX_SIZE", 16)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("HISTORY_QUEUE", 128)
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Env:             v.GetString("APP_ENV"),
		HTTPAddr:        v.GetString("HTTP_ADDR"),
		CORSAllow:       splitCSV(v.GetString("CORS_ALLOW")),
		DefaultRuleset:  strings.ToLower(v.GetString("DEFAULT_RULESET")),
		WSReadTimeout:   v.GetDuration("WS_READ_TIMEOUT"),
		WSWriteTimeout:  v.GetDuration("WS_WRITE_TIMEOUT"),
		WSPingInterval:  v.GetDuration("WS_PING_INTERVAL"),
		OutboxSize:      v.GetInt("OUTBOX_SIZE"),
		DatabaseURL:     v.GetString("DATABASE_URL"),
		HistoryQueue:    v.GetInt("HISTORY_QUEUE"),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
	}
	if _, ok := engine.RulesetByName(cfg.DefaultRuleset); !ok {
		return Config{}, fmt.Errorf("config: DEFAULT_RULESET %q is not a known ruleset", cfg.DefaultRuleset)
	}
	if cfg.OutboxSize <= 0 {
		return Config{}, fmt.Errorf("config: OUTBOX_SIZE must be positive, got %d", cfg.OutboxSize)
	}
	if cfg.HistoryQueue <= 0 {
		return Config{}, fmt.Errorf("config: HISTORY_QUEUE must be positive, got %d", cfg.HistoryQueue)
	}
	return cfg, nil
}

// OriginPatterns turns the CORS allowlist into websocket origin host patterns.
func (c Config) OriginPatterns() []string {
	var out []string
	for _, o := range c.CORSAllow {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}

// splitCSV trims and filters a comma-separated list
func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
