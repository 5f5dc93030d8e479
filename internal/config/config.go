package config

import "github.com/joho/godotenv"

type Config interface {
	EnvConfig
	CorsConfig
	TokenConfig
	UpstreamConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetCookieDomain() string
	GetDataFolder() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Tokens
	Upstream
	Security
}

// New loads optional .env overrides and returns the assembled configuration.
// A missing .env file is not an error; deployed environments set variables
// directly.
func New() Config {
	_ = godotenv.Load()
	return mainConfig{}
}
