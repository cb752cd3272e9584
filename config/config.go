package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sjsage522/pricewatch/pkg/errors"
)

// DefaultQueries is the fixed, ordered list of searches made on every run
var DefaultQueries = []string{
	"venvanse 70mg",
	"lisdexanfetamina 70mg",
	"metilfenidato 10mg",
}

// Config represents the application configuration
type Config struct {
	// Telegram configuration
	BotToken       string
	ChatID         string
	TelegramAPIURL string

	// Alerting
	PctDropAlert decimal.Decimal
	TargetPrices map[string]decimal.Decimal

	// Sweep configuration
	Queries       []string
	RetailerURL   string
	MaxCandidates int
	Throttle      time.Duration
	SweepInterval time.Duration
	DBFile        string

	// Memcache configuration, empty address disables the search block guard
	MemcacheAddr string
	SearchBlock  time.Duration

	// Redis configuration, empty address disables the alert stream
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int

	// Environment
	Environment string

	// problems found while parsing, reported by Validate
	parseErrors []string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	cfg := &Config{
		BotToken:       os.Getenv("BOT_TOKEN"),
		ChatID:         os.Getenv("CHAT_ID"),
		TelegramAPIURL: strings.TrimRight(getEnv("TELEGRAM_API_URL", "https://api.telegram.org"), "/"),
		Queries:        append([]string(nil), DefaultQueries...),
		RetailerURL:    strings.TrimRight(getEnv("RETAILER_URL", "https://www.drogasil.com.br"), "/"),
		DBFile:         getEnv("DB_FILE", "prices.json"),
		MemcacheAddr:   os.Getenv("MEMCACHE_ADDR"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisStream:    getEnv("REDIS_STREAM", "pricewatch:alerts"),
		Environment:    getEnv("PRICEWATCH_ENVIRONMENT", "development"),
	}

	cfg.PctDropAlert = cfg.parseDecimal("PCT_DROP_ALERT", "0.08")
	cfg.TargetPrices = cfg.parseTargets(getEnv("TARGET_PRICES", "{}"))
	cfg.MaxCandidates = cfg.parseInt("MAX_CANDIDATES", "10")
	cfg.Throttle = time.Duration(cfg.parseInt("THROTTLE_MS", "800")) * time.Millisecond
	cfg.SweepInterval = time.Duration(cfg.parseInt("SWEEP_INTERVAL_SECONDS", "0")) * time.Second
	cfg.SearchBlock = time.Duration(cfg.parseInt("SEARCH_BLOCK_SECONDS", "300")) * time.Second
	cfg.RedisDB = cfg.parseInt("REDIS_DB", "0")
	cfg.RedisStreamMaxLength = cfg.parseInt("REDIS_STREAM_MAX_LENGTH", "1000")

	return cfg
}

// Validate checks required settings and reports any value that failed to parse
func (c *Config) Validate() error {
	var problems []string
	if c.BotToken == "" {
		problems = append(problems, "BOT_TOKEN is required")
	}
	if c.ChatID == "" {
		problems = append(problems, "CHAT_ID is required")
	}
	problems = append(problems, c.parseErrors...)
	if c.MaxCandidates <= 0 {
		problems = append(problems, "MAX_CANDIDATES must be greater than zero")
	}
	if len(c.Queries) == 0 {
		problems = append(problems, "at least one query is required")
	}

	if len(problems) > 0 {
		return errors.NewConfiguration(strings.Join(problems, "; "), nil)
	}
	return nil
}

func (c *Config) parseInt(key, defaultValue string) int {
	raw := getEnv(key, defaultValue)
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("%s: invalid integer %q", key, raw))
		n, _ = strconv.Atoi(defaultValue)
	}
	return n
}

func (c *Config) parseDecimal(key, defaultValue string) decimal.Decimal {
	raw := getEnv(key, defaultValue)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("%s: invalid number %q", key, raw))
		d = decimal.RequireFromString(defaultValue)
	}
	return d
}

// parseTargets decodes a JSON object of query to target price.
// Values may be JSON numbers or numeric strings.
func (c *Config) parseTargets(raw string) map[string]decimal.Decimal {
	targets := make(map[string]decimal.Decimal)

	var values map[string]json.Number
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&values); err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("TARGET_PRICES: %v", err))
		return targets
	}

	for query, value := range values {
		d, err := decimal.NewFromString(value.String())
		if err != nil {
			c.parseErrors = append(c.parseErrors, fmt.Sprintf("TARGET_PRICES[%q]: invalid number %q", query, value))
			continue
		}
		targets[query] = d
	}
	return targets
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
