package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port              string
	AuthToken         string
	JWTSecret         string
	DBURL             string
	OMDBURL           string
	OMDBAPIKey        string
	OMDBTimeoutSecs   int
	PlutoURL          string
	PlutoTimeoutSecs  int
	EPGCacheTTLSecs   int
	EPGKeywordsFile   string
	LogLevel          string
	LogFormat         string
	ReadTimeoutSecs   int
	WriteTimeoutSecs  int
	IdleTimeoutSecs   int
	DBMaxConns        int
	DBMinConns        int
	DBMaxIdleSecs     int
	DBMaxLifeSecs     int
	DBConnTimeoutSecs int
	DBStatementCache  int
}

// Load reads configuration from environment variables, applying defaults and validation.
// Variables found in ENV_FILE (default .env) are loaded first without overriding
// anything already set in the process environment.
func Load() (Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := Config{
		Port:              getEnv("PORT", "8080"),
		AuthToken:         os.Getenv("AUTH_TOKEN"),
		JWTSecret:         os.Getenv("SUPABASE_JWT_SECRET"),
		DBURL:             os.Getenv("DB_URL"),
		OMDBURL:           getEnv("OMDB_URL", "https://www.omdbapi.com"),
		OMDBAPIKey:        os.Getenv("OMDB_API_KEY"),
		OMDBTimeoutSecs:   getEnvInt("OMDB_TIMEOUT_SECS", 5),
		PlutoURL:          getEnv("PLUTO_URL", "https://api.pluto.tv"),
		PlutoTimeoutSecs:  getEnvInt("PLUTO_TIMEOUT_SECS", 8),
		EPGCacheTTLSecs:   getEnvInt("EPG_CACHE_TTL_SECS", 300),
		EPGKeywordsFile:   os.Getenv("EPG_KEYWORDS_FILE"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		ReadTimeoutSecs:   getEnvInt("SERVER_READ_TIMEOUT", 15),
		WriteTimeoutSecs:  getEnvInt("SERVER_WRITE_TIMEOUT", 15),
		IdleTimeoutSecs:   getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		DBMaxConns:        getEnvInt("DB_MAX_CONNS", 20),
		DBMinConns:        getEnvInt("DB_MIN_CONNS", 2),
		DBMaxIdleSecs:     getEnvInt("DB_MAX_CONN_IDLE_SECS", 300),
		DBMaxLifeSecs:     getEnvInt("DB_MAX_CONN_LIFETIME_SECS", 3600),
		DBConnTimeoutSecs: getEnvInt("DB_CONN_TIMEOUT_SECS", 10),
		DBStatementCache:  getEnvInt("DB_STATEMENT_CACHE_CAPACITY", 256),
	}

	if cfg.AuthToken == "" {
		return Config{}, fmt.Errorf("AUTH_TOKEN is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	if cfg.DBURL == "" {
		return Config{}, fmt.Errorf("DB_URL is required")
	}
	if cfg.OMDBTimeoutSecs <= 0 {
		return Config{}, fmt.Errorf("OMDB_TIMEOUT_SECS must be positive")
	}
	if cfg.PlutoTimeoutSecs <= 0 {
		return Config{}, fmt.Errorf("PLUTO_TIMEOUT_SECS must be positive")
	}
	if cfg.EPGCacheTTLSecs < 0 {
		return Config{}, fmt.Errorf("EPG_CACHE_TTL_SECS must be non-negative")
	}
	if cfg.DBMaxConns <= 0 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return Config{}, fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMaxConns > 0 && cfg.DBMinConns > cfg.DBMaxConns {
		return Config{}, fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return Config{}, fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}

	return cfg, nil
}

// MetadataEnabled reports whether card enrichment has credentials to work with.
func (c Config) MetadataEnabled() bool {
	return c.OMDBAPIKey != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}
