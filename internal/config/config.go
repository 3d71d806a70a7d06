// Package config loads application configuration from environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env            string   // APP_ENV, e.g. "dev" or "prod"
	Port           string   // APP_PORT
	DBUser         string   // DB_USER
	DBPass         string   // DB_PASS (empty allowed)
	DBHost         string   // DB_HOST
	DBPort         string   // DB_PORT
	DBName         string   // DB_NAME
	JWTSecret      string   // JWT_SECRET
	AccessTTLMin   int      // ACCESS_TOKEN_TTL_MIN
	RefreshTTLDays int      // REFRESH_TOKEN_TTL_DAYS
	BcryptCost     int      // BCRYPT_COST
	OrdersPageSize int      // ORDERS_PAGE_SIZE
	CORSOrigins    []string // CORS_ORIGINS, comma separated
	RabbitMQURL    string   // RABBITMQ_URL; empty disables order events
	JournalPath    string   // ORDER_JOURNAL_PATH
}

// Load reads a .env file from the working directory when present and then
// builds a Config from the environment. Variables already set in the
// process environment win over the file. All missing required variables
// are reported together.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	r := &reader{}
	cfg := Config{
		Env:            envStr("APP_ENV", "dev"),
		Port:           envStr("APP_PORT", "8080"),
		DBUser:         r.must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         r.must("DB_HOST"),
		DBPort:         envStr("DB_PORT", "3306"),
		DBName:         r.must("DB_NAME"),
		JWTSecret:      r.must("JWT_SECRET"),
		AccessTTLMin:   r.positiveInt("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTLDays: r.positiveInt("REFRESH_TOKEN_TTL_DAYS", 7),
		BcryptCost:     r.positiveInt("BCRYPT_COST", 10),
		OrdersPageSize: r.positiveInt("ORDERS_PAGE_SIZE", 1),
		CORSOrigins:    parseCSV(os.Getenv("CORS_ORIGINS")),
		RabbitMQURL:    strings.TrimSpace(os.Getenv("RABBITMQ_URL")),
		JournalPath:    envStr("ORDER_JOURNAL_PATH", "logs/orders.log"),
	}
	if len(r.problems) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(r.problems, "; "))
	}
	return cfg, nil
}

// IsProduction reports whether the service runs with APP_ENV=prod.
func (c Config) IsProduction() bool {
	env := strings.ToLower(c.Env)
	return env == "prod" || env == "production"
}

// reader collects problems instead of exiting on the first one.
type reader struct {
	problems []string
}

func (r *reader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		r.problems = append(r.problems, "missing required env var: "+key)
		return ""
	}
	return v
}

func (r *reader) positiveInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		r.problems = append(r.problems, fmt.Sprintf("invalid positive int for %s: %q", key, s))
		return def
	}
	return n
}

func parseCSV(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
