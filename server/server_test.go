package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/marketedge/auth-service/identity"
	"github.com/marketedge/auth-service/internal/config"
	principalrepofake "github.com/marketedge/auth-service/principals/repofake"
	"github.com/marketedge/auth-service/tenants"
	tenantrepofakes "github.com/marketedge/auth-service/tenants/repofakes"
	"github.com/marketedge/auth-service/token"
	familyrepofake "github.com/marketedge/auth-service/token/repofake"
	"github.com/marketedge/auth-service/transport"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const testRedirectURI = "https://app.example.com/callback"

type serverFixture struct {
	srv      *Server
	profiles map[string]*identity.UpstreamProfile // code -> upstream identity
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	t.Setenv("ENV", config.EnvDevelopment)
	cfg := config.New()

	f := &serverFixture{
		profiles: map[string]*identity.UpstreamProfile{
			"code-acme": {
				Sub:          "upstream|alice",
				Email:        "alice@acme.example.com",
				Name:         "Alice",
				Organization: "org-acme",
			},
			"code-globex": {
				Sub:          "upstream|bob",
				Email:        "bob@globex.example.com",
				Name:         "Bob",
				Organization: "org-globex",
			},
			"code-no-org": {
				Sub:   "upstream|carol",
				Email: "carol@example.com",
			},
		},
	}

	adapter, err := identity.NewAdapter(context.Background(), cfg, testRedirectURI,
		identity.WithExchangeFunc(func(_ context.Context, code, _ string) (*oauth2.Token, error) {
			if _, ok := f.profiles[code]; !ok {
				return nil, &oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusBadRequest}}
			}
			oauthToken := &oauth2.Token{AccessToken: "upstream-access"}
			return oauthToken.WithExtra(map[string]any{"id_token": "id-" + code}), nil
		}),
		identity.WithVerifyFunc(func(_ context.Context, rawIDToken string) (*identity.UpstreamProfile, error) {
			code := strings.TrimPrefix(rawIDToken, "id-")
			profile, ok := f.profiles[code]
			if !ok {
				return nil, fmt.Errorf("unknown ID token %q", rawIDToken)
			}
			return profile, nil
		}),
	)
	require.NoError(t, err)

	accessSigner, refreshSigner, err := token.DeriveSigners([]byte("server-test-secret"))
	require.NoError(t, err)

	repos := Repos{
		Principals: principalrepofake.NewFakePrincipalRepo(),
		Tenants:    tenantrepofakes.NewFakeTenantRepo(),
	}
	require.NoError(t, repos.Tenants.Upsert(&tenants.Tenant{
		ID: "org-acme", Name: "Acme Analytics", Domain: "acme.example.com", Industry: "retail",
	}))
	require.NoError(t, repos.Tenants.Upsert(&tenants.Tenant{
		ID: "org-globex", Name: "Globex Insights", Domain: "globex.example.com", Industry: "energy",
	}))

	tokens := token.New(familyrepofake.NewFakeFamilyRepo(), repos.Principals, accessSigner, refreshSigner)

	srv, err := New(cfg, repos, adapter, tokens)
	require.NoError(t, err)
	f.srv = srv
	return f
}

func (f *serverFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func (f *serverFixture) login(t *testing.T, code string) (tokenResponse, *httptest.ResponseRecorder) {
	t.Helper()
	form := url.Values{"code": {code}, "redirect_uri": {testRedirectURI}}
	req := httptest.NewRequest(http.MethodPost, "/auth/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body, rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestServerLoginSetsCookiesAndReturnsPair(t *testing.T) {
	f := newServerFixture(t)

	pair, rec := f.login(t, "code-acme")
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "bearer", pair.TokenType)
	require.Equal(t, int((30 * time.Minute).Seconds()), pair.ExpiresIn)

	cookies := rec.Result().Cookies()
	access := cookieByName(cookies, transport.AccessTokenCookie)
	require.NotNil(t, access)
	require.Equal(t, pair.AccessToken, access.Value)
	require.False(t, access.HttpOnly, "access cookie must be script-readable")

	refresh := cookieByName(cookies, transport.RefreshTokenCookie)
	require.NotNil(t, refresh)
	require.Equal(t, pair.RefreshToken, refresh.Value)
	require.True(t, refresh.HttpOnly)
}

func TestServerLoginUnknownOrganization(t *testing.T) {
	f := newServerFixture(t)

	f.profiles["code-acme"].Organization = "org-nobody-knows"

	form := url.Values{"code": {"code-acme"}, "redirect_uri": {testRedirectURI}}
	req := httptest.NewRequest(http.MethodPost, "/auth/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := f.do(req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid_grant", decodeError(t, rec).Error)
}

func TestServerLoginMissingOrganization(t *testing.T) {
	f := newServerFixture(t)

	form := url.Values{"code": {"code-no-org"}, "redirect_uri": {testRedirectURI}}
	req := httptest.NewRequest(http.MethodPost, "/auth/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := f.do(req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid_grant", decodeError(t, rec).Error)
}

func TestServerReportsSameTenant(t *testing.T) {
	f := newServerFixture(t)
	pair, _ := f.login(t, "code-acme")

	req := httptest.NewRequest(http.MethodGet, "/api/tenants/org-acme/reports", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "org-acme", body["tenant_id"])
}

func TestServerReportsCrossTenant(t *testing.T) {
	f := newServerFixture(t)
	pair, _ := f.login(t, "code-acme")

	req := httptest.NewRequest(http.MethodGet, "/api/tenants/org-globex/reports", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := f.do(req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "tenant_mismatch", decodeError(t, rec).Error)
}

func TestServerReportsNoToken(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tenants/org-acme/reports", nil)
	rec := f.do(req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServerReportsAccessViaCookie(t *testing.T) {
	f := newServerFixture(t)
	pair, _ := f.login(t, "code-acme")

	req := httptest.NewRequest(http.MethodGet, "/api/tenants/org-acme/reports", nil)
	req.AddCookie(&http.Cookie{Name: transport.AccessTokenCookie, Value: pair.AccessToken})
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestServerMe(t *testing.T) {
	f := newServerFixture(t)
	pair, _ := f.login(t, "code-acme")

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "org-acme", body["tenant_id"])
	require.Equal(t, "alice@acme.example.com", body["email"])
	require.Equal(t, "viewer", body["role"])
	require.Equal(t, "retail", body["industry"])
}

func TestServerRefreshRotation(t *testing.T) {
	f := newServerFixture(t)
	pair, _ := f.login(t, "code-acme")

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: transport.RefreshTokenCookie, Value: pair.RefreshToken})
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rotated tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	require.NotEmpty(t, rotated.AccessToken)

	// Replaying the consumed refresh token burns the whole family.
	replay := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	replay.AddCookie(&http.Cookie{Name: transport.RefreshTokenCookie, Value: pair.RefreshToken})
	replayRec := f.do(replay)
	require.Equal(t, http.StatusUnauthorized, replayRec.Code)
	require.Equal(t, "token_replay", decodeError(t, replayRec).Error)

	// The legitimately rotated token is collateral damage.
	after := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	after.AddCookie(&http.Cookie{Name: transport.RefreshTokenCookie, Value: rotated.RefreshToken})
	afterRec := f.do(after)
	require.Equal(t, http.StatusUnauthorized, afterRec.Code)
}

func TestServerRefreshWithoutToken(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	rec := f.do(req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "token_invalid", decodeError(t, rec).Error)
}

func TestServerLogout(t *testing.T) {
	f := newServerFixture(t)
	pair, _ := f.login(t, "code-acme")

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	req.AddCookie(&http.Cookie{Name: transport.RefreshTokenCookie, Value: pair.RefreshToken})
	rec := f.do(req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	for _, name := range []string{transport.AccessTokenCookie, transport.RefreshTokenCookie} {
		c := cookieByName(rec.Result().Cookies(), name)
		require.NotNil(t, c)
		require.Empty(t, c.Value)
		require.Negative(t, c.MaxAge)
	}

	// The revoked access token no longer authorizes requests.
	probe := httptest.NewRequest(http.MethodGet, "/api/tenants/org-acme/reports", nil)
	probe.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	probeRec := f.do(probe)
	require.Equal(t, http.StatusUnauthorized, probeRec.Code)

	// So does the invalidated refresh token.
	refresh := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	refresh.AddCookie(&http.Cookie{Name: transport.RefreshTokenCookie, Value: pair.RefreshToken})
	refreshRec := f.do(refresh)
	require.Equal(t, http.StatusUnauthorized, refreshRec.Code)
}

func TestServerCallbackRateLimited(t *testing.T) {
	f := newServerFixture(t)

	saw429 := false
	for i := 0; i < 20; i++ {
		form := url.Values{"code": {"code-acme"}, "redirect_uri": {testRedirectURI}}
		req := httptest.NewRequest(http.MethodPost, "/auth/callback", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if rec := f.do(req); rec.Code == http.StatusTooManyRequests {
			saw429 = true
			break
		}
	}
	require.True(t, saw429, "burst of exchanges should trip the rate limit")
}

func TestServerHealth(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServerCorsAllowedOrigin(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/auth/refresh", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestServerCorsDisallowedOrigin(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := f.do(req)

	// Health route carries no CORS middleware; the refresh route does.
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = f.do(req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
