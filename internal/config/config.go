package config

type Config interface {
	StorageConfig
	GatewayConfig
	PermissionsConfig
}

type StorageConfig interface {
	GetStoragePath() string
	GetStorageNamespace() string
}

type GatewayConfig interface {
	GetAuthBaseURL() string
	GetRequestTimeoutSeconds() int
}

type PermissionsConfig interface {
	GetPermissionTablePath() string
}

type mainConfig struct {
	EnvVars
}

func New() Config {
	return mainConfig{}
}
