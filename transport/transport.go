package transport

import (
	"net/http"
	"strings"
	"time"

	"github.com/marketedge/auth-service/token"
)

// Cookie names are part of the contract with the frontend.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// Attach writes the token pair onto the response as cookies. The access
// cookie stays script-readable so the frontend can inspect its own claims;
// the refresh cookie is httpOnly always.
func Attach(w http.ResponseWriter, pair *token.Pair, policy CookiePolicy) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    pair.AccessToken,
		MaxAge:   cookieMaxAge(pair.AccessClaims.ExpiresAt),
		HttpOnly: policy.HTTPOnlyAccess,
		Secure:   policy.Secure,
		SameSite: policy.SameSite,
		Domain:   policy.Domain,
		Path:     policy.Path,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    pair.RefreshToken,
		MaxAge:   cookieMaxAge(pair.RefreshClaims.ExpiresAt),
		HttpOnly: true,
		Secure:   policy.Secure,
		SameSite: policy.SameSite,
		Domain:   policy.Domain,
		Path:     policy.Path,
	})
}

// Clear expires both token cookies. Used on logout.
func Clear(w http.ResponseWriter, policy CookiePolicy) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			HttpOnly: name == RefreshTokenCookie,
			Secure:   policy.Secure,
			SameSite: policy.SameSite,
			Domain:   policy.Domain,
			Path:     policy.Path,
		})
	}
}

// AccessTokenFromRequest extracts the access token, preferring the bearer
// header over the cookie so non-browser clients work unchanged.
func AccessTokenFromRequest(r *http.Request) string {
	if raw := bearerToken(r); raw != "" {
		return raw
	}
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// RefreshTokenFromRequest extracts the refresh token from its cookie, with a
// form-value fallback for non-cookie clients.
func RefreshTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(RefreshTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.FormValue("refresh_token")
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func cookieMaxAge(expiresAt time.Time) int {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	return maxAge
}
