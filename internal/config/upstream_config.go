package config

import "time"

type UpstreamConfig interface {
	GetUpstreamBaseURL() string
	GetUpstreamTimeout() time.Duration
	GetUpstreamHealthTimeout() time.Duration
}

type Upstream struct{}

var _ UpstreamConfig = Upstream{}

func (Upstream) GetUpstreamBaseURL() string {
	return GetEnv("UPSTREAM_BASE_URL", "")
}

// GetUpstreamTimeout bounds login and refresh calls against the partner.
func (Upstream) GetUpstreamTimeout() time.Duration {
	return getDurationEnv("UPSTREAM_TIMEOUT", 30*time.Second)
}

// GetUpstreamHealthTimeout bounds health probes, deliberately shorter than
// the login/refresh timeout.
func (Upstream) GetUpstreamHealthTimeout() time.Duration {
	return getDurationEnv("UPSTREAM_HEALTH_TIMEOUT", 5*time.Second)
}
