package config

import "time"

// UpstreamConfig describes the external OIDC identity provider the service
// delegates primary authentication to.
type UpstreamConfig interface {
	GetUpstreamIssuerURL() string
	GetUpstreamClientID() string
	GetUpstreamClientSecret() string
	GetUpstreamTimeout() time.Duration
}

type Upstream struct{}

var _ UpstreamConfig = Upstream{}

func (Upstream) GetUpstreamIssuerURL() string {
	return GetEnv("UPSTREAM_ISSUER_URL", "")
}

func (Upstream) GetUpstreamClientID() string {
	return GetEnv("UPSTREAM_CLIENT_ID", "")
}

func (Upstream) GetUpstreamClientSecret() string {
	return GetEnv("UPSTREAM_CLIENT_SECRET", "")
}

func (Upstream) GetUpstreamTimeout() time.Duration {
	return durationEnv("UPSTREAM_TIMEOUT", 10*time.Second)
}
