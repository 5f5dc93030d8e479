package authz

import (
	"context"

	"github.com/marketedge/auth-service/identity"
	"github.com/marketedge/auth-service/internal/autherr"
	"github.com/marketedge/auth-service/principals"
	"github.com/marketedge/auth-service/token"
)

// Verifier is one strategy for turning a raw token into a TenantContext.
// The resolver tries its verifiers in order and stops at the first success,
// which keeps the upstream fallback a configuration rather than a special
// case.
type Verifier interface {
	Name() string
	Verify(ctx context.Context, rawToken string) (*TenantContext, error)
}

// InternalVerifier validates tokens this service issued itself.
type InternalVerifier struct {
	manager *token.Manager
}

func NewInternalVerifier(manager *token.Manager) *InternalVerifier {
	return &InternalVerifier{manager: manager}
}

func (v *InternalVerifier) Name() string { return "internal" }

func (v *InternalVerifier) Verify(ctx context.Context, rawToken string) (*TenantContext, error) {
	claims, err := v.manager.VerifyAccess(rawToken)
	if err != nil {
		return nil, err
	}
	return &TenantContext{
		TenantID:    claims.TenantID,
		PrincipalID: claims.Subject,
		Email:       claims.Email,
		Role:        claims.Role,
		Industry:    claims.Industry,
		Permissions: claims.Permissions,
		Source:      v.Name(),
	}, nil
}

// UpstreamVerifier accepts tokens minted by the upstream identity provider.
// It exists for the migration window where clients may still present
// provider tokens; the principal record supplies tenant, role and
// permissions since upstream claims carry none of them.
type UpstreamVerifier struct {
	adapter       *identity.Adapter
	principalRepo principals.Repo
}

func NewUpstreamVerifier(adapter *identity.Adapter, principalRepo principals.Repo) *UpstreamVerifier {
	return &UpstreamVerifier{adapter: adapter, principalRepo: principalRepo}
}

func (v *UpstreamVerifier) Name() string { return "upstream" }

func (v *UpstreamVerifier) Verify(ctx context.Context, rawToken string) (*TenantContext, error) {
	profile, err := v.adapter.VerifyUpstreamToken(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	principal, err := v.principalRepo.GetByUpstreamSub(profile.Sub)
	if err != nil {
		return nil, autherr.Wrap(err, autherr.CodeTokenInvalid, "no principal for upstream subject")
	}
	permissions := principal.Permissions
	if permissions == nil {
		permissions = principals.DefaultPermissions(principal.Role)
	}
	return &TenantContext{
		TenantID:    principal.TenantID,
		PrincipalID: principal.ID,
		Email:       principal.Email,
		Role:        string(principal.Role),
		Industry:    principal.Industry,
		Permissions: permissions,
		Source:      v.Name(),
	}, nil
}
