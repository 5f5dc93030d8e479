package authz

import (
	"context"
	"strings"

	"github.com/marketedge/auth-service/internal/autherr"
	"github.com/marketedge/auth-service/internal/obs"
)

// Resolver is the blocking gate on the request path: it validates the
// presented token against an ordered list of verifiers and enforces the
// tenant boundary. 401 means the caller is unknown, 403 means the caller is
// known but not entitled to the resource.
type Resolver struct {
	verifiers []Verifier
}

func NewResolver(verifiers ...Verifier) *Resolver {
	return &Resolver{verifiers: verifiers}
}

// Authorize validates rawToken and checks it may touch the tenant owning the
// requested resource. resourceTenantID may be empty for tenant-neutral
// endpoints such as /auth/me.
func (r *Resolver) Authorize(ctx context.Context, rawToken, resourceTenantID string) (*TenantContext, error) {
	tc, err := r.verifyToken(ctx, rawToken)
	if err != nil {
		obs.CountAuthorize("rejected")
		return nil, err
	}

	if resourceTenantID != "" && tc.TenantID != resourceTenantID {
		obs.SecurityEvent("tenant_mismatch").
			Str("principal_id", tc.PrincipalID).
			Str("token_tenant", tc.TenantID).
			Str("resource_tenant", resourceTenantID).
			Msg("cross-tenant access attempt")
		obs.CountSecurityEvent("tenant_mismatch")
		obs.CountAuthorize("denied")
		return nil, autherr.New(autherr.CodeTenantMismatch, "token is not scoped to the requested tenant")
	}

	obs.CountAuthorize("authorized")
	return tc, nil
}

func (r *Resolver) verifyToken(ctx context.Context, rawToken string) (*TenantContext, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, autherr.New(autherr.CodeUnauthorized, "no credentials presented")
	}

	var lastErr error
	for _, verifier := range r.verifiers {
		tc, err := verifier.Verify(ctx, rawToken)
		if err == nil {
			return tc, nil
		}
		// An expired token is a terminal verdict: it identified itself to one
		// verifier, so it must never fall through and succeed elsewhere.
		if autherr.CodeOf(err) == autherr.CodeTokenExpired {
			return nil, err
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = autherr.New(autherr.CodeUnauthorized, "no verifier configured")
	}
	return nil, lastErr
}
