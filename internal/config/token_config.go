package config

import (
	"time"
)

type TokenConfig interface {
	GetIssuer() string
	GetAudience() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
}

type Tokens struct{}

var _ TokenConfig = Tokens{}

func (Tokens) GetIssuer() string {
	return GetEnv("TOKEN_ISSUER", EnvVars{}.GetBaseURL())
}

func (Tokens) GetAudience() string {
	return GetEnv("TOKEN_AUDIENCE", "marketedge-api")
}

func (Tokens) GetAccessTokenExpiry() time.Duration {
	return durationEnv("ACCESS_TOKEN_EXPIRY", 30*time.Minute)
}

func (Tokens) GetRefreshTokenExpiry() time.Duration {
	return durationEnv("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour)
}

func durationEnv(envVar string, defaultValue time.Duration) time.Duration {
	v := GetEnv(envVar, "")
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}
