package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddress   string
	ShutdownTimeout time.Duration

	DatabasePath string
	LogFilePath  string
	Production   bool

	// LLM access
	OllamaURL   string        // local backend root, used when a connection leaves the credential blank
	LLMTimeout  time.Duration // per generation call; zero leaves calls unbounded
	RetryDelay  time.Duration
	BudgetsFile string // optional YAML override of the context budget table

	ConnectionTTL time.Duration
}

// Load reads .env if present and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		ServerAddress: getenvDefault("SERVER_ADDRESS", ":8080"),
		DatabasePath:  getenvDefault("DATABASE_PATH", "coach.db"),
		LogFilePath:   getenvDefault("LOG_FILE_PATH", "coach.log"),
		OllamaURL:     getenvDefault("OLLAMA_URL", "http://localhost:11434"),
		BudgetsFile:   os.Getenv("BUDGETS_FILE"),
	}

	switch env := strings.ToLower(getenvDefault("APP_ENV", "development")); env {
	case "development", "dev":
	case "production", "prod":
		cfg.Production = true
	default:
		return nil, fmt.Errorf("config: APP_ENV=%q must be development or production", env)
	}

	var err error
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.LLMTimeout, err = getDuration("LLM_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.RetryDelay, err = getDuration("RETRY_DELAY", 300*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.ConnectionTTL, err = getDuration("CONNECTION_TTL", 2*time.Hour); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getDuration(k string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not a valid duration: %w", k, v, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: %s=%q must not be negative", k, v)
	}
	return d, nil
}

func getenvDefault(k, fallback string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return fallback
}
