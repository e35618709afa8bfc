package config

import (
	"strconv"
	"time"
)

type StorageConfig interface {
	GetDatabaseURL() string
	GetDatabaseMinConns() int32
	GetDatabaseMaxConns() int32
	GetRedisAddr() string
	GetRedisPassword() string
	GetSweepInterval() time.Duration
}

type Storage struct{}

var _ StorageConfig = Storage{}

// GetDatabaseURL returns the PostgreSQL connection string. Empty means the
// server runs on in-memory stores (development only).
func (Storage) GetDatabaseURL() string {
	return GetEnv("DATABASE_URL", "")
}

func (Storage) GetDatabaseMinConns() int32 {
	return getInt32Env("DATABASE_MIN_CONNS", 2)
}

func (Storage) GetDatabaseMaxConns() int32 {
	return getInt32Env("DATABASE_MAX_CONNS", 10)
}

// GetRedisAddr returns the Redis address for the session cache. Empty means
// sessions are cached in the primary store instead.
func (Storage) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "")
}

func (Storage) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Storage) GetSweepInterval() time.Duration {
	return getDurationEnv("SWEEP_INTERVAL", time.Hour)
}

func getInt32Env(envVar string, defaultValue int32) int32 {
	value := GetEnv(envVar, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 32)
	if err != nil {
		return defaultValue
	}
	return int32(parsed)
}
