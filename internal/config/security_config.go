package config

import "time"

type SecurityConfig interface {
	GetSessionSecret() string
	GetMaxSessionAge() time.Duration
	GetSessionStore() string
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetSessionSecret() string {
	return GetEnv("SESSION_SECRET", "")
}

func (Security) GetMaxSessionAge() time.Duration {
	if d, err := time.ParseDuration(GetEnv("SESSION_MAX_AGE", "")); err == nil && d > 0 {
		return d
	}
	return 24 * time.Hour
}

// GetSessionStore selects the session backing store: "memory" or "sqlite".
func (Security) GetSessionStore() string {
	return GetEnv("SESSION_STORE", "memory")
}
