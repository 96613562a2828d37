package config

type Config interface {
	EnvConfig
	ProviderConfig
	StoreConfig
	SessionConfig
}

type mainConfig struct {
	EnvVars
	Provider
	Store
	Session
}

func New() Config {
	return mainConfig{}
}
