package config

import "time"

type SecurityConfig interface {
	GetMasterSecret() string
	GetAdminJWTSecret() string
	GetAdminTokenExpiry() time.Duration
	GetAdminUsername() string
	GetAdminPassword() string
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetMasterSecret returns the secret the vault derives its encryption key
// from. The server refuses to start without it.
func (Security) GetMasterSecret() string {
	return GetEnv("MASTER_SECRET", "")
}

// GetAdminJWTSecret returns the administrator token signing secret, distinct
// from the master secret.
func (Security) GetAdminJWTSecret() string {
	return GetEnv("ADMIN_JWT_SECRET", "")
}

func (Security) GetAdminTokenExpiry() time.Duration {
	return getDurationEnv("ADMIN_TOKEN_EXPIRY", 12*time.Hour)
}

func (Security) GetAdminUsername() string {
	return GetEnv("ADMIN_USERNAME", "admin")
}

func (Security) GetAdminPassword() string {
	return GetEnv("ADMIN_PASSWORD", "")
}

func getDurationEnv(envVar string, defaultValue time.Duration) time.Duration {
	value := GetEnv(envVar, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
