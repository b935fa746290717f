package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds every tunable the validation pipeline recognizes. It is built
// once at startup and treated as immutable; components receive it (or the
// slice of it they need) at construction time.
type Config struct {
	// Matching
	FuzzyMinSimilarity     float64 // minimum normalized similarity for fuzzy candidates
	ContextBoostPerKeyword float64 // boost added per matched context keyword (0.02-0.05)

	// Business rules
	BusinessAmountMax  decimal.Decimal // hard per-tenant ceiling, violations are errors
	BusinessAmountSoft decimal.Decimal // soft ceiling, violations are warnings
	TranscriptMaxLen   int

	// Informational score bucketing
	BucketExcellent float64
	BucketGood      float64
	BucketMarginal  float64

	// Conflict resolution
	DuplicateTimeWindow time.Duration

	// Cross-system authority
	CrossSystemTimeout time.Duration

	// Batch processing
	BatchWorkers int

	// Database
	PGHost     string
	PGPort     string
	PGUser     string
	PGPassword string
	PGDatabase string

	// Web server
	ServeAddr string
}

// Load builds the Config from environment variables, consulting a .env file
// first when one exists next to the binary or in a parent directory.
func Load() *Config {
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if _, err := os.Stat(p); err == nil {
			godotenv.Load(p)
			break
		}
	}

	return &Config{
		FuzzyMinSimilarity:     GetEnvFloat("FUZZY_MIN_SIMILARITY", 0.5),
		ContextBoostPerKeyword: GetEnvFloat("CONTEXT_BOOST_PER_KEYWORD", 0.02),
		BusinessAmountMax:      getEnvDecimal("BUSINESS_AMOUNT_MAX", "10000"),
		BusinessAmountSoft:     getEnvDecimal("BUSINESS_AMOUNT_SOFT", "5000"),
		TranscriptMaxLen:       GetEnvInt("TRANSCRIPT_MAX_LEN", 2000),
		BucketExcellent:        GetEnvFloat("QUALITY_BUCKET_EXCELLENT", 90),
		BucketGood:             GetEnvFloat("QUALITY_BUCKET_GOOD", 75),
		BucketMarginal:         GetEnvFloat("QUALITY_BUCKET_MARGINAL", 50),
		DuplicateTimeWindow:    time.Duration(GetEnvInt("DUPLICATE_TIME_WINDOW_SECONDS", 5)) * time.Second,
		CrossSystemTimeout:     time.Duration(GetEnvInt("CROSS_SYSTEM_TIMEOUT_MS", 2000)) * time.Millisecond,
		BatchWorkers:           GetEnvInt("BATCH_WORKERS", 8),
		PGHost:                 GetEnv("PGHOST", "localhost"),
		PGPort:                 GetEnv("PGPORT", "5432"),
		PGUser:                 GetEnv("PGUSER", "brandgate"),
		PGPassword:             GetEnv("PGPASSWORD", ""),
		PGDatabase:             GetEnv("PGDATABASE", "brandgate"),
		ServeAddr:              GetEnv("SERVE_ADDR", ":8080"),
	}
}

// GetEnv gets environment variable with default
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt gets integer environment variable with default
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvFloat gets float environment variable with default
func GetEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvBool gets boolean environment variable with default
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultValue
}

func getEnvDecimal(key, defaultValue string) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	d, _ := decimal.NewFromString(defaultValue)
	return d
}
