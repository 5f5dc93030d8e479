package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar         = "PORT"
	appNameVar         = "APP_NAME"
	baseURLVar         = "BASE_URL"
	cookieDomainEnvVar = "COOKIE_DOMAIN"
)

// Environment names recognised by GetEnv. "production-cross-site" is the
// deployment where the frontend and the auth service live on different
// origins; it drives a distinct cookie policy.
const (
	EnvDevelopment         = "development"
	EnvProduction          = "production"
	EnvProductionCrossSite = "production-cross-site"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "MarketEdge Auth")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return EnvDevelopment
	}
	return env
}

// GetBaseURL returns the externally visible base URL of the auth service,
// used as the issuer of internal tokens.
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8080")
}

func (EnvVars) GetCookieDomain() string {
	return GetEnv(cookieDomainEnvVar, "")
}

func (EnvVars) GetDataFolder() string {
	return GetEnv("FOLDER", "./data")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
