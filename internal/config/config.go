package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds bunsearch configuration, read from environment variables the
// way the other bunbase services do.
type Config struct {
	Addr      string
	LogLevel  string
	LogFormat string

	// Collaborator endpoints.
	SchemaURL string // platform schema API
	IndexURL  string // full-text index service

	// Internal structured store.
	DBPath string

	// Relational datasources; empty DSN disables the adapter.
	PostgresDSN string
	MySQLDSN    string
	MSSQLDSN    string

	// Budgets, milliseconds.
	EvalTimeoutMS  int
	QueryTimeoutMS int

	// Per-IP rate limit on the search endpoint.
	RatePerSecond float64
	RateBurst     int
}

// Load reads configuration from environment variables. BUNSEARCH_ADDR,
// BUNSEARCH_SCHEMA_URL, BUNSEARCH_INDEX_URL, BUNSEARCH_DB_PATH,
// BUNSEARCH_PG_DSN, BUNSEARCH_MYSQL_DSN, BUNSEARCH_MSSQL_DSN,
// BUNSEARCH_EVAL_TIMEOUT_MS, BUNSEARCH_QUERY_TIMEOUT_MS,
// BUNSEARCH_RATE_LIMIT, BUNSEARCH_RATE_BURST, BUNSEARCH_LOG_LEVEL,
// BUNSEARCH_LOG_FORMAT.
func Load() *Config {
	return &Config{
		Addr:           getEnv("BUNSEARCH_ADDR", ":8085"),
		LogLevel:       getEnv("BUNSEARCH_LOG_LEVEL", "INFO"),
		LogFormat:      getEnv("BUNSEARCH_LOG_FORMAT", "json"),
		SchemaURL:      getEnv("BUNSEARCH_SCHEMA_URL", "http://localhost:3001"),
		IndexURL:       getEnv("BUNSEARCH_INDEX_URL", "http://localhost:8086"),
		DBPath:         getEnv("BUNSEARCH_DB_PATH", "./data/bunsearch.db"),
		PostgresDSN:    os.Getenv("BUNSEARCH_PG_DSN"),
		MySQLDSN:       os.Getenv("BUNSEARCH_MYSQL_DSN"),
		MSSQLDSN:       os.Getenv("BUNSEARCH_MSSQL_DSN"),
		EvalTimeoutMS:  getEnvInt("BUNSEARCH_EVAL_TIMEOUT_MS", 1000),
		QueryTimeoutMS: getEnvInt("BUNSEARCH_QUERY_TIMEOUT_MS", 30000),
		RatePerSecond:  getEnvFloat("BUNSEARCH_RATE_LIMIT", 50),
		RateBurst:      getEnvInt("BUNSEARCH_RATE_BURST", 100),
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil {
			return f
		}
	}
	return defaultVal
}
