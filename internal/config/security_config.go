package config

type SecurityConfig interface {
	GetAuthSecret() string
	GetExchangeRateLimit() float64
	GetExchangeRateBurst() int
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetAuthSecret returns the master secret that access and refresh signing
// keys are derived from. Empty in development, where a random secret is
// generated at startup.
func (Security) GetAuthSecret() string {
	return GetEnv("AUTH_SECRET", "")
}

func (Security) GetExchangeRateLimit() float64 {
	return 5 // code exchanges per second, per instance
}

func (Security) GetExchangeRateBurst() int {
	return 10
}
