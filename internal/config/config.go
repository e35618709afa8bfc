package config

type Config interface {
	EnvConfig
	SecurityConfig
	UpstreamConfig
	StorageConfig
}

type mainConfig struct {
	EnvVars
	Security
	Upstream
	Storage
}

func New() Config {
	return mainConfig{}
}
