package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is the process-level configuration, loaded once at startup from the
// environment. Per-establishment settings (credentials, welcome message,
// grounding context) live in the database instead — see models.AIConfig.
type Config struct {
	Addr        string `env:"APP_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	// Base URL of the WhatsApp transport provider API. Instance id and token
	// are per-establishment and come from the config row, never from here.
	ProviderBaseURL string `env:"PROVIDER_BASE_URL"`

	// Public base URL of this service, used when registering webhooks with
	// the provider (e.g. https://api.example.com).
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`

	AdminToken string `env:"ADMIN_TOKEN"`

	DefaultCountryCode string `env:"DEFAULT_COUNTRY_CODE" envDefault:"55"`
	DefaultLanguage    string `env:"DEFAULT_LANGUAGE" envDefault:"pt"`

	ChatModel       string `env:"OPENAI_CHAT_MODEL" envDefault:"gpt-4o-mini"`
	TranscribeModel string `env:"OPENAI_TRANSCRIBE_MODEL" envDefault:"whisper-1"`

	// Hard cap on the prompt window; the core backpressure mechanism.
	HistoryLimit int `env:"HISTORY_LIMIT" envDefault:"10"`

	// Window inside which an identical inbound payload counts as a duplicate
	// webhook delivery rather than a legitimate repeated message.
	DuplicateWindow time.Duration `env:"DUPLICATE_WINDOW" envDefault:"5s"`

	ModelTimeout      time.Duration `env:"MODEL_TIMEOUT" envDefault:"60s"`
	TranscribeTimeout time.Duration `env:"TRANSCRIBE_TIMEOUT" envDefault:"45s"`
	TurnTimeout       time.Duration `env:"TURN_TIMEOUT" envDefault:"120s"`

	// Outbound send rate per transport instance.
	SendRate  float64 `env:"SEND_RATE" envDefault:"1"`
	SendBurst int     `env:"SEND_BURST" envDefault:"3"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads .env when present, parses the environment and enforces the
// required values. It fatals on missing requirements, same as a bad flag.
func Load(log *logrus.Logger) Config {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("config parse error: %v", err)
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	if cfg.ProviderBaseURL == "" {
		log.Fatal("PROVIDER_BASE_URL is required")
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	if cfg.DuplicateWindow <= 0 {
		cfg.DuplicateWindow = 5 * time.Second
	}
	return cfg
}

// LogrusLevel maps the configured level name to a logrus level.
func (c Config) LogrusLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}
