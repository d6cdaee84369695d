package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends accepted by STORAGE_BACKEND.
const (
	StorageMemory   = "memory"
	StorageBadger   = "badger"
	StoragePostgres = "postgres"
)

// Load reads the .env file specified by BDI_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("BDI_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Missing files are fine; variables may come from the environment.
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	return intOr("SERVER_PORT", 8080)
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// APIToken guards the /v1 routes when set.
func APIToken() string {
	return os.Getenv("API_TOKEN")
}

// StorageBackend is one of memory, badger or postgres. Defaults to memory.
func StorageBackend() string {
	switch b := os.Getenv("STORAGE_BACKEND"); b {
	case StorageBadger, StoragePostgres:
		return b
	default:
		return StorageMemory
	}
}

func BadgerDir() string {
	return stringOr("BADGER_DIR", "data/beliefs")
}

// ProgramPath is the YAML program every spawned agent runs.
func ProgramPath() string {
	return stringOr("PROGRAM_PATH", "examples/counter.yaml")
}

// AgentCount is the number of agents spawned from ProgramPath.
func AgentCount() int {
	return intOr("AGENT_COUNT", 1)
}

// CycleInterval is the pause between two runner ticks. Defaults to 100ms.
func CycleInterval() time.Duration {
	d, err := time.ParseDuration(os.Getenv("CYCLE_INTERVAL"))
	if err != nil || d <= 0 {
		return 100 * time.Millisecond
	}
	return d
}

// AgentWorkers bounds the agents cycling concurrently.
func AgentWorkers() int {
	return intOr("AGENT_WORKERS", 4)
}

// TriggerWorkers bounds the triggers one agent handles concurrently.
func TriggerWorkers() int {
	return intOr("TRIGGER_WORKERS", 8)
}

// FuzzyMode names the defuzzifier: conjunction, disjunction or mean.
func FuzzyMode() string {
	return stringOr("FUZZY_MODE", "conjunction")
}

// FuzzyThreshold is the degree at or above which a value counts as true.
// Zero selects the defuzzifier's default.
func FuzzyThreshold() float64 {
	t, err := strconv.ParseFloat(os.Getenv("FUZZY_THRESHOLD"), 64)
	if err != nil || t < 0 || t > 1 {
		return 0
	}
	return t
}

// Aggregation names the plan score aggregation: sum, max, average or product.
func Aggregation() string {
	return stringOr("SCORE_AGGREGATION", "sum")
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	return intOr("RATE_LIMIT_BURST", 20)
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	return stringOr("LOG_LEVEL", "info")
}

func stringOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intOr(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
