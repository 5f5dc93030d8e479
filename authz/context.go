package authz

import "context"

// TenantContext is the request-scoped projection of a validated token. It
// lives for one request and is never persisted.
type TenantContext struct {
	TenantID    string
	PrincipalID string
	Email       string
	Role        string
	Industry    string
	Permissions []string
	Source      string // which verifier produced it: "internal" or "upstream"
}

// HasPermission reports whether the context carries the given permission.
func (tc *TenantContext) HasPermission(permission string) bool {
	for _, perm := range tc.Permissions {
		if perm == permission {
			return true
		}
	}
	return false
}

type tenantContextKey struct{}

// ContextWithTenant attaches the resolved tenant context to the request context.
func ContextWithTenant(ctx context.Context, tc *TenantContext) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tc)
}

// TenantFromContext extracts the tenant context attached by the auth middleware.
func TenantFromContext(ctx context.Context) (*TenantContext, bool) {
	if ctx == nil {
		return nil, false
	}
	tc, ok := ctx.Value(tenantContextKey{}).(*TenantContext)
	if !ok || tc == nil {
		return nil, false
	}
	return tc, true
}
