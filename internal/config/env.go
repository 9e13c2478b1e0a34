package config

import (
	"os"
	"strconv"
)

// Environment variables read by FromEnv.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvRootDir     = "TENDER_ROOT_DIR"
	EnvCPVCode     = "TENDER_CPV_CODE"
	EnvWorkers     = "TENDER_WORKERS"
	EnvLogLevel    = "LOG_LEVEL"
)

// FromEnv builds a Config from environment variables. Unset or malformed
// variables leave the field zero.
func FromEnv() Config {
	cfg := Config{
		DatabaseURL: os.Getenv(EnvDatabaseURL),
		RootDir:     os.Getenv(EnvRootDir),
		CPVCode:     os.Getenv(EnvCPVCode),
	}
	cfg.Log.Level = os.Getenv(EnvLogLevel)
	if v := os.Getenv(EnvWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	return cfg
}
