package identity

import (
	"context"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/marketedge/auth-service/internal/autherr"
	"github.com/marketedge/auth-service/internal/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// UpstreamProfile is the identity the upstream provider vouches for after a
// successful code exchange.
type UpstreamProfile struct {
	Sub          string `json:"sub"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Organization string `json:"org_id"` // provider organization claim, mapped to a tenant
}

type exchangeFunc func(ctx context.Context, code, redirectURI string) (*oauth2.Token, error)
type verifyFunc func(ctx context.Context, rawIDToken string) (*UpstreamProfile, error)

// Adapter exchanges OAuth2 authorization codes with the upstream OIDC
// provider and verifies upstream-issued tokens.
type Adapter struct {
	timeout    time.Duration
	retryDelay time.Duration
	exchange   exchangeFunc
	verifyRaw  verifyFunc
}

type AdapterOption func(*Adapter)

// WithExchangeFunc replaces the network exchange (primarily for testing).
func WithExchangeFunc(fn exchangeFunc) AdapterOption {
	return func(a *Adapter) {
		a.exchange = fn
	}
}

// WithVerifyFunc replaces ID-token verification (primarily for testing).
func WithVerifyFunc(fn verifyFunc) AdapterOption {
	return func(a *Adapter) {
		a.verifyRaw = fn
	}
}

func WithRetryDelay(delay time.Duration) AdapterOption {
	return func(a *Adapter) {
		a.retryDelay = delay
	}
}

// NewAdapter discovers the upstream provider's endpoints and builds the
// adapter. The context bounds the discovery call only.
func NewAdapter(ctx context.Context, cfg config.UpstreamConfig, redirectURL string, options ...AdapterOption) (*Adapter, error) {
	a := &Adapter{
		timeout:    cfg.GetUpstreamTimeout(),
		retryDelay: 500 * time.Millisecond,
	}

	for _, opt := range options {
		opt(a)
	}

	if a.exchange == nil || a.verifyRaw == nil {
		provider, err := oidc.NewProvider(ctx, cfg.GetUpstreamIssuerURL())
		if err != nil {
			return nil, errors.Wrap(err, "[NewAdapter] upstream provider discovery")
		}
		oauthConfig := &oauth2.Config{
			ClientID:     cfg.GetUpstreamClientID(),
			ClientSecret: cfg.GetUpstreamClientSecret(),
			Endpoint:     provider.Endpoint(),
			RedirectURL:  redirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		}
		verifier := provider.Verifier(&oidc.Config{ClientID: cfg.GetUpstreamClientID()})

		if a.exchange == nil {
			a.exchange = func(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
				return oauthConfig.Exchange(ctx, code, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
			}
		}
		if a.verifyRaw == nil {
			a.verifyRaw = func(ctx context.Context, rawIDToken string) (*UpstreamProfile, error) {
				idToken, err := verifier.Verify(ctx, rawIDToken)
				if err != nil {
					return nil, err
				}
				var profile UpstreamProfile
				if err := idToken.Claims(&profile); err != nil {
					return nil, err
				}
				return &profile, nil
			}
		}
	}

	return a, nil
}

// ExchangeCode swaps an authorization code for the upstream identity. Inputs
// are sanitized before any network call; transient upstream failures are
// retried once with backoff.
func (a *Adapter) ExchangeCode(ctx context.Context, code, redirectURI string) (*UpstreamProfile, error) {
	if err := sanitizeCode(code); err != nil {
		return nil, err
	}
	if err := sanitizeRedirectURI(redirectURI); err != nil {
		return nil, err
	}

	oauthToken, err := a.exchangeWithRetry(ctx, code, redirectURI)
	if err != nil {
		return nil, err
	}

	rawIDToken, ok := oauthToken.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, autherr.New(autherr.CodeInvalidGrant, "no ID token in provider response")
	}

	profile, err := a.verifyRaw(ctx, rawIDToken)
	if err != nil {
		return nil, autherr.Wrap(err, autherr.CodeInvalidGrant, "upstream ID token verification failed")
	}
	if profile.Sub == "" {
		return nil, autherr.New(autherr.CodeInvalidGrant, "upstream profile missing subject")
	}
	return profile, nil
}

// VerifyUpstreamToken verifies a token issued by the upstream provider
// itself. Used by the resolver's fallback path during the migration window
// where clients may still hold upstream tokens.
func (a *Adapter) VerifyUpstreamToken(ctx context.Context, rawToken string) (*UpstreamProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	profile, err := a.verifyRaw(ctx, rawToken)
	if err != nil {
		return nil, autherr.Wrap(err, autherr.CodeTokenInvalid, "upstream token verification failed")
	}
	return profile, nil
}

func (a *Adapter) exchangeWithRetry(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	oauthToken, err := a.exchangeOnce(ctx, code, redirectURI)
	if err == nil {
		return oauthToken, nil
	}
	if !autherr.Retryable(err) {
		return nil, err
	}

	log.Warn().Err(err).Msg("upstream token exchange failed, retrying")
	select {
	case <-time.After(a.retryDelay):
	case <-ctx.Done():
		return nil, autherr.Wrap(ctx.Err(), autherr.CodeUpstreamUnavailable, "upstream exchange cancelled")
	}
	return a.exchangeOnce(ctx, code, redirectURI)
}

func (a *Adapter) exchangeOnce(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	oauthToken, err := a.exchange(ctx, code, redirectURI)
	if err != nil {
		return nil, classifyExchangeError(err)
	}
	return oauthToken, nil
}

// classifyExchangeError maps transport-level failures to a retryable error
// and provider rejections to a terminal invalid-grant.
func classifyExchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= http.StatusInternalServerError {
			return autherr.Wrap(err, autherr.CodeUpstreamUnavailable, "upstream provider error")
		}
		return autherr.Wrap(err, autherr.CodeInvalidGrant, "authorization code rejected by provider")
	}
	return autherr.Wrap(err, autherr.CodeUpstreamUnavailable, "upstream provider unreachable")
}
