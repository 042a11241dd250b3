package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	rulesSourceStatic   = "static"
	rulesSourceFile     = "file"
	rulesSourceHTTP     = "http"
	rulesSourcePostgres = "postgres"
	rulesSourceRedis    = "redis"
)

type config struct {
	HTTPAddr             string        `yaml:"http_addr"`
	Timezone             string        `yaml:"timezone"`
	Currency             string        `yaml:"currency"`
	RulesSource          string        `yaml:"rules_source"`
	RulesFile            string        `yaml:"rules_file"`
	RulesURL             string        `yaml:"rules_url"`
	RulesToken           string        `yaml:"rules_token"`
	RulesFetchTimeout    time.Duration `yaml:"rules_fetch_timeout"`
	RulesRefreshInterval time.Duration `yaml:"rules_refresh_interval"`
	RulesRetryBackoff    time.Duration `yaml:"rules_retry_backoff"`
	DatabaseURL          string        `yaml:"database_url"`
	RulesSetName         string        `yaml:"rules_set_name"`
	RedisAddr            string        `yaml:"redis_addr"`
	RedisDB              int           `yaml:"redis_db"`
	RulesRedisKey        string        `yaml:"rules_redis_key"`
	HolidayCalendar      string        `yaml:"holiday_calendar"`
	ExtraHolidays        []string      `yaml:"extra_holidays"`
	JWTSecret            string        `yaml:"jwt_secret"`
	ShutdownTimeout      time.Duration `yaml:"shutdown_timeout"`
}

// loadConfig reads the environment and overlays the YAML file named by
// TOLL_CONFIG when set.
func loadConfig() (config, error) {
	cfg := config{
		HTTPAddr:             getenvDefault("HTTP_ADDR", ":8080"),
		Timezone:             getenvDefault("TIMEZONE", "Europe/Stockholm"),
		Currency:             getenvDefault("CURRENCY", "SEK"),
		RulesSource:          getenvDefault("RULES_SOURCE", rulesSourceStatic),
		RulesFile:            getenvDefault("RULES_FILE", ""),
		RulesURL:             getenvDefault("RULES_URL", ""),
		RulesToken:           getenvDefault("RULES_TOKEN", ""),
		RulesFetchTimeout:    getenvDuration("RULES_FETCH_TIMEOUT", 10*time.Second),
		RulesRefreshInterval: getenvDuration("RULES_REFRESH_INTERVAL", 0),
		RulesRetryBackoff:    getenvDuration("RULES_RETRY_BACKOFF", 30*time.Second),
		DatabaseURL:          getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		RulesSetName:         getenvDefault("RULES_SET_NAME", "default"),
		RedisAddr:            getenvDefault("REDIS_ADDR", ""),
		RedisDB:              getenvIntDefault("REDIS_DB", 0),
		RulesRedisKey:        getenvDefault("RULES_REDIS_KEY", "toll:rules"),
		HolidayCalendar:      getenvDefault("HOLIDAY_CALENDAR", "se"),
		ExtraHolidays:        splitCSV(getenvDefault("EXTRA_HOLIDAYS", "")),
		JWTSecret:            getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		ShutdownTimeout:      getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if path := os.Getenv("TOLL_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	}

	cfg.RulesSource = strings.ToLower(strings.TrimSpace(cfg.RulesSource))
	return cfg, cfg.validate()
}

func (c config) validate() error {
	switch c.RulesSource {
	case rulesSourceStatic:
	case rulesSourceFile:
		if c.RulesFile == "" {
			return errors.New("RULES_FILE is required for RULES_SOURCE=file")
		}
	case rulesSourceHTTP:
		if c.RulesURL == "" {
			return errors.New("RULES_URL is required for RULES_SOURCE=http")
		}
	case rulesSourcePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL or PG_DSN is required for RULES_SOURCE=postgres")
		}
	case rulesSourceRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for RULES_SOURCE=redis")
		}
	default:
		return fmt.Errorf("unknown RULES_SOURCE %q", c.RulesSource)
	}
	if c.RulesRefreshInterval < 0 {
		return errors.New("RULES_REFRESH_INTERVAL must not be negative")
	}
	if c.RulesRetryBackoff < 0 {
		return errors.New("RULES_RETRY_BACKOFF must not be negative")
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
