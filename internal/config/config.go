package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"visioncraft/internal/studio"
)

type Config struct {
	GeminiAPIKey     string
	GeminiBaseURL    string
	GeminiAPIVersion string

	LogLevel string
	Debug    bool

	PreferIPv4     bool
	RequestTimeout time.Duration
	HTTPTimeout    time.Duration

	SessionTTL time.Duration

	// DefaultsPath points at an optional YAML file overriding the studio defaults.
	DefaultsPath string
	Defaults     studio.Defaults

	Web WebConfig
	Bot BotConfig
}

type WebConfig struct {
	Addr          string
	SessionSecret string
	// SecretGenerated is set when SESSION_SECRET was empty; cookies then do
	// not survive a restart.
	SecretGenerated bool
	CORSOrigins     []string
}

type BotConfig struct {
	TelegramToken      string
	MaxConcurrent      int
	MediaGroupDebounce time.Duration
}

// Load reads the settings shared by every front end. A missing Gemini key is
// not an error here; callers log it and every model call fails on its own.
func Load() (Config, error) {
	cfg := Config{
		GeminiAPIKey:     strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiBaseURL:    strings.TrimSpace(getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")),
		GeminiAPIVersion: strings.TrimSpace(getEnv("GEMINI_API_VERSION", "v1beta")),
		LogLevel:         strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info"))),
		Debug:            getEnvBool("DEBUG", false),
		PreferIPv4:       getEnvBool("PREFER_IPV4", true),
		RequestTimeout:   time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 180)) * time.Second,
		HTTPTimeout:      time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second,
		SessionTTL:       time.Duration(getEnvInt("SESSION_TTL_MINUTES", 60)) * time.Minute,
		DefaultsPath:     strings.TrimSpace(os.Getenv("STUDIO_DEFAULTS")),
		Web: WebConfig{
			Addr:          getEnv("WEB_ADDR", ":8080"),
			SessionSecret: strings.TrimSpace(os.Getenv("SESSION_SECRET")),
			CORSOrigins:   getEnvList("CORS_ORIGINS"),
		},
		Bot: BotConfig{
			TelegramToken:      strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
			MaxConcurrent:      getEnvInt("MAX_CONCURRENT", 4),
			MediaGroupDebounce: time.Duration(getEnvInt("MEDIA_GROUP_DEBOUNCE_MS", 1200)) * time.Millisecond,
		},
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 180 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 60 * time.Minute
	}
	if cfg.Bot.MaxConcurrent < 1 {
		cfg.Bot.MaxConcurrent = 1
	}
	if cfg.Bot.MediaGroupDebounce <= 0 {
		cfg.Bot.MediaGroupDebounce = 1200 * time.Millisecond
	}
	if cfg.Web.SessionSecret == "" {
		cfg.Web.SessionSecret = uuid.NewString() + uuid.NewString()
		cfg.Web.SecretGenerated = true
	}

	defaults, err := LoadDefaults(cfg.DefaultsPath)
	if err != nil {
		return Config{}, fmt.Errorf("load studio defaults: %w", err)
	}
	cfg.Defaults = defaults

	return cfg, nil
}

// LoadBot is Load plus the settings only the Telegram bot needs.
func LoadBot() (Config, error) {
	cfg, err := Load()
	if err != nil {
		return Config{}, err
	}
	if cfg.Bot.TelegramToken == "" {
		return Config{}, errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
