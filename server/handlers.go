package server

import (
	"net/http"
	"time"

	"github.com/marketedge/auth-service/authz"
	"github.com/marketedge/auth-service/identity"
	"github.com/marketedge/auth-service/internal/autherr"
	"github.com/marketedge/auth-service/internal/obs"
	"github.com/marketedge/auth-service/principals"
	"github.com/marketedge/auth-service/token"
	"github.com/marketedge/auth-service/transport"
	"github.com/rs/zerolog/log"
)

// tokenResponse is returned alongside the cookies so non-browser clients can
// use bearer headers instead.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// CallbackHandler completes the login: exchanges the authorization code with
// the upstream provider, maps the upstream identity onto a principal and
// tenant, and mints the internal token pair.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.FormValue("code")
		redirectURI := r.FormValue("redirect_uri")

		profile, err := s.adapter.ExchangeCode(r.Context(), code, redirectURI)
		if err != nil {
			obs.CountLogin("failure")
			writeError(w, err)
			return
		}

		principal, err := s.principalForProfile(profile)
		if err != nil {
			obs.CountLogin("failure")
			writeError(w, err)
			return
		}

		pair, err := s.tokens.Issue(principal)
		if err != nil {
			obs.CountLogin("failure")
			writeError(w, err)
			return
		}

		obs.CountLogin("success")
		log.Info().
			Str("principal_id", principal.ID).
			Str("tenant_id", principal.TenantID).
			Msg("login completed")

		transport.Attach(w, pair, s.policy)
		writeJSON(w, http.StatusOK, s.tokenResponseFor(pair))
	}
}

// RefreshHandler rotates the presented refresh token and re-attaches the new
// pair.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawRefresh := transport.RefreshTokenFromRequest(r)
		if rawRefresh == "" {
			writeError(w, autherr.New(autherr.CodeTokenInvalid, "no refresh token presented"))
			return
		}

		pair, err := s.tokens.Rotate(rawRefresh)
		if err != nil {
			obs.CountRotation("failure")
			writeError(w, err)
			return
		}

		obs.CountRotation("success")
		transport.Attach(w, pair, s.policy)
		writeJSON(w, http.StatusOK, s.tokenResponseFor(pair))
	}
}

// LogoutHandler revokes the current access token, kills the refresh family
// and clears the cookies. Always succeeds: a broken token means the session
// is unusable anyway.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rawAccess := transport.AccessTokenFromRequest(r); rawAccess != "" {
			if err := s.tokens.RevokeAccess(rawAccess); err != nil {
				log.Debug().Err(err).Msg("logout: access token not revocable")
			}
		}
		if rawRefresh := transport.RefreshTokenFromRequest(r); rawRefresh != "" {
			s.tokens.InvalidateRefresh(rawRefresh)
		}

		transport.Clear(w, s.policy)
		w.WriteHeader(http.StatusNoContent)
	}
}

// MeHandler returns the caller's resolved tenant context.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := authz.TenantFromContext(r.Context())
		if !ok {
			writeError(w, autherr.New(autherr.CodeUnauthorized, "no authenticated principal"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"principal_id": tc.PrincipalID,
			"email":        tc.Email,
			"tenant_id":    tc.TenantID,
			"role":         tc.Role,
			"industry":     tc.Industry,
			"permissions":  tc.Permissions,
		})
	}
}

// ReportsHandler is the tenant-scoped resource route. The tenant boundary is
// already enforced by RequireAuth; this handler only checks the permission.
func (s *Server) ReportsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := authz.TenantFromContext(r.Context())
		if !ok {
			writeError(w, autherr.New(autherr.CodeUnauthorized, "no authenticated principal"))
			return
		}
		if !tc.HasPermission("read:market_data") {
			writeError(w, autherr.New(autherr.CodeForbidden, "missing permission: read:market_data"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"tenant_id": tc.TenantID,
			"reports":   []any{},
		})
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// principalForProfile maps an upstream identity onto a principal record,
// creating one on first login. The provider's organization claim decides the
// tenant.
func (s *Server) principalForProfile(profile *identity.UpstreamProfile) (*principals.Principal, error) {
	if profile.Organization == "" {
		return nil, autherr.New(autherr.CodeInvalidGrant, "upstream identity carries no organization")
	}
	tenant, err := s.repos.Tenants.Get(profile.Organization)
	if err != nil {
		return nil, autherr.Wrap(err, autherr.CodeInvalidGrant, "unknown tenant for upstream organization")
	}

	principal, err := s.repos.Principals.GetByUpstreamSub(profile.Sub)
	if err != nil {
		// First login: provision a viewer in the claimed tenant.
		principal = &principals.Principal{
			UpstreamSub: profile.Sub,
			Email:       profile.Email,
			TenantID:    tenant.ID,
			Role:        principals.RoleViewer,
			Industry:    tenant.Industry,
			CreatedAt:   time.Now(),
		}
	}

	if principal.TenantID != tenant.ID {
		// The upstream org claim moved; treat as suspicious rather than
		// silently re-homing the principal.
		obs.SecurityEvent("tenant_mismatch").
			Str("principal_id", principal.ID).
			Str("claimed_tenant", tenant.ID).
			Str("recorded_tenant", principal.TenantID).
			Msg("upstream organization does not match principal record")
		return nil, autherr.New(autherr.CodeTenantMismatch, "identity is not a member of the claimed tenant")
	}

	principal.LastLogin = time.Now()
	principal.Industry = tenant.Industry
	if err := s.repos.Principals.Upsert(principal); err != nil {
		return nil, autherr.Wrap(err, autherr.CodeInvalidGrant, "failed to persist principal")
	}
	return principal, nil
}

func (s *Server) tokenResponseFor(pair *token.Pair) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int(s.tokens.AccessTokenExpiry().Seconds()),
	}
}
