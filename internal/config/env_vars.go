// Package config reads the demo CLI's settings from the environment.
package config

import "os"

const (
	apiKeyEnvVar      = "INVO_API_KEY"
	emailEnvVar       = "INVO_EMAIL"
	passwordEnvVar    = "INVO_PASSWORD"
	workspaceEnvVar   = "INVO_WORKSPACE"
	environmentEnvVar = "INVO_ENVIRONMENT"
	appNameVar        = "APP_NAME"
)

type EnvVars struct{}

func (EnvVars) GetAPIKey() string {
	return GetEnv(apiKeyEnvVar, "")
}

func (EnvVars) GetEmail() string {
	return GetEnv(emailEnvVar, "")
}

func (EnvVars) GetPassword() string {
	return GetEnv(passwordEnvVar, "")
}

func (EnvVars) GetWorkspace() string {
	return GetEnv(workspaceEnvVar, "")
}

// GetEnvironment returns the configured environment literal, or ""
// to let the SDK detect it from the API key prefix.
func (EnvVars) GetEnvironment() string {
	return GetEnv(environmentEnvVar, "")
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Invo CLI")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
