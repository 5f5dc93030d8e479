package identity

import (
	"net/url"

	"github.com/marketedge/auth-service/internal/autherr"
)

const (
	maxCodeLength        = 512
	maxRedirectURILength = 2048
)

// sanitizeCode rejects authorization codes that could not have come from a
// real provider before any network call is made.
func sanitizeCode(code string) error {
	if code == "" {
		return autherr.New(autherr.CodeInvalidRequest, "authorization code is empty")
	}
	if len(code) > maxCodeLength {
		return autherr.New(autherr.CodeInvalidRequest, "authorization code too long")
	}
	for _, r := range code {
		if !isCodeRune(r) {
			return autherr.New(autherr.CodeInvalidRequest, "authorization code contains invalid characters")
		}
	}
	return nil
}

func isCodeRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	switch r {
	case '-', '_', '.', '~', '+', '/', '=':
		return true
	}
	return false
}

// sanitizeRedirectURI checks the callback URI is a well-formed absolute
// http(s) URL. Failures here are terminal and never reach the provider.
func sanitizeRedirectURI(redirectURI string) error {
	if redirectURI == "" {
		return autherr.New(autherr.CodeInvalidRequest, "redirect URI is empty")
	}
	if len(redirectURI) > maxRedirectURILength {
		return autherr.New(autherr.CodeInvalidRequest, "redirect URI too long")
	}
	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return autherr.Wrap(err, autherr.CodeInvalidRequest, "redirect URI is not a valid URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return autherr.New(autherr.CodeInvalidRequest, "redirect URI scheme must be http or https")
	}
	if parsed.Host == "" {
		return autherr.New(autherr.CodeInvalidRequest, "redirect URI missing host")
	}
	return nil
}
