package config

import (
	"os"
	"strconv"
)

const (
	storagePathVar      = "SESSION_STORAGE_PATH"
	storageNamespaceVar = "SESSION_STORAGE_NAMESPACE"
	authBaseURLVar      = "AUTH_BASE_URL"
	requestTimeoutVar   = "AUTH_REQUEST_TIMEOUT_SECONDS"
	permissionTableVar  = "PERMISSION_TABLE_PATH"
)

type EnvVars struct{}

var _ Config = EnvVars{}

func (EnvVars) GetStoragePath() string {
	return GetEnv(storagePathVar, "./data/session.json")
}

func (EnvVars) GetStorageNamespace() string {
	return GetEnv(storageNamespaceVar, "evzone.ops")
}

func (EnvVars) GetAuthBaseURL() string {
	return GetEnv(authBaseURLVar, "http://localhost:8080")
}

func (EnvVars) GetRequestTimeoutSeconds() int {
	timeout, err := strconv.Atoi(GetEnv(requestTimeoutVar, "15"))
	if err != nil || timeout <= 0 {
		return 15
	}
	return timeout
}

// GetPermissionTablePath returns the optional TOML overlay for the
// permission matrix; empty means the built-in defaults apply.
func (EnvVars) GetPermissionTablePath() string {
	return GetEnv(permissionTableVar, "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
