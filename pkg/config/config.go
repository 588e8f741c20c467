package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the stake guard.
type Config struct {
	Port string

	// Database
	DBPath string

	// Guard
	LedgerCap       int
	BankrollDefault float64
	CooldownHours   float64
	RulePresetsPath string

	// API rate limiting (per IP)
	RateLimitPerSec float64
	RateLimitBurst  int

	// Localization
	Language string // "en" or "zh"
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:            getEnv("PORT", "8080"),
		DBPath:          getEnv("DB_PATH", "./data/stake_guard.db"),
		LedgerCap:       getEnvInt("LEDGER_CAP", 500),
		BankrollDefault: getEnvFloat("BANKROLL_DEFAULT", 1000.0),
		CooldownHours:   getEnvFloat("COOLDOWN_HOURS", 24),
		RulePresetsPath: getEnv("RULE_PRESETS_PATH", ""),
		RateLimitPerSec: getEnvFloat("RATE_LIMIT_PER_SEC", 20),
		RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 50),
		Language:        getEnv("LANGUAGE", "en"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
