package transport

import (
	"net/http"

	"github.com/pkg/errors"
)

// Environment selects the cookie policy. It is resolved once at startup;
// cookie attributes are never computed per request.
type Environment string

const (
	// EnvDevelopment is same-site local development over plain HTTP.
	EnvDevelopment Environment = "development"
	// EnvProduction is a deployment where frontend and auth service share an
	// origin (or a registrable domain).
	EnvProduction Environment = "production"
	// EnvProductionCrossSite is a deployment where the frontend lives on a
	// different origin. Browsers silently drop cookies here unless
	// Secure=true and SameSite=None are both set.
	EnvProductionCrossSite Environment = "production-cross-site"
)

// CookiePolicy holds the cookie attributes used for every token cookie the
// service writes.
type CookiePolicy struct {
	Secure         bool
	SameSite       http.SameSite
	HTTPOnlyAccess bool // the access-token cookie is script-readable by design
	Domain         string
	Path           string
}

// PolicyForEnvironment resolves the policy for a deployment environment.
func PolicyForEnvironment(env Environment, cookieDomain string) (CookiePolicy, error) {
	policy := CookiePolicy{
		HTTPOnlyAccess: false,
		Domain:         cookieDomain,
		Path:           "/",
	}
	switch env {
	case EnvDevelopment:
		policy.Secure = false
		policy.SameSite = http.SameSiteLaxMode
	case EnvProduction:
		policy.Secure = true
		policy.SameSite = http.SameSiteLaxMode
	case EnvProductionCrossSite:
		policy.Secure = true
		policy.SameSite = http.SameSiteNoneMode
	default:
		return CookiePolicy{}, errors.Errorf("unknown environment %q", env)
	}
	if err := policy.Validate(); err != nil {
		return CookiePolicy{}, err
	}
	return policy, nil
}

// Validate fails fast on combinations browsers reject. Run at startup so a
// misconfigured deployment never starts serving.
func (p CookiePolicy) Validate() error {
	if p.SameSite == http.SameSiteNoneMode && !p.Secure {
		return errors.New("SameSite=None requires Secure=true; browsers drop the cookie otherwise")
	}
	return nil
}
