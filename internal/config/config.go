package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. The JWT signing secret is injected here at
// process start and is the only place it lives; nothing in the codebase
// carries a literal secret.
type Config struct {
	Env           string // application environment (e.g. "dev", "prod")
	Port          string // HTTP port to listen on
	DBUser        string // database username
	DBPass        string // database password (optional)
	DBHost        string // database host address
	DBPort        string // database port number
	DBName        string // database name
	JWTSecret     string // secret used to sign JWTs
	TokenTTLHrs   int    // bearer token time-to-live in hours
	BcryptCost    int    // bcrypt cost for password hashing
	AMQPURL       string // RabbitMQ connection URL (optional; events disabled when empty)
	RunMigrations bool   // apply pending schema migrations on startup
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:           must("APP_ENV"),
		Port:          must("APP_PORT"),
		DBUser:        must("DB_USER"),
		DBPass:        os.Getenv("DB_PASS"), // empty allowed
		DBHost:        must("DB_HOST"),
		DBPort:        must("DB_PORT"),
		DBName:        must("DB_NAME"),
		JWTSecret:     must("JWT_SECRET"),
		TokenTTLHrs:   intOr("TOKEN_TTL_HOURS", 24),
		BcryptCost:    intOr("BCRYPT_COST", 12),
		AMQPURL:       os.Getenv("AMQP_URL"),
		RunMigrations: os.Getenv("DB_MIGRATE") != "false",
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// intOr converts the named variable to an integer, falling back to def when
// the variable is unset. A present but malformed value is fatal.
func intOr(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
