package principals

import "time"

// RoleType represents a principal's role within its tenant.
type RoleType string

const (
	RoleAdmin   RoleType = "admin"   // Can manage users and settings within a tenant
	RoleAnalyst RoleType = "analyst" // Can run analyses and manage reports
	RoleViewer  RoleType = "viewer"  // Read-only access within a tenant
)

// Principal is an authenticated identity. It is created and updated by the
// identity adapter on login and read-only everywhere else.
type Principal struct {
	ID          string    `json:"id,omitempty"`          // Internal unique identifier
	UpstreamSub string    `json:"upstream_sub,omitempty"` // Subject id assigned by the upstream provider
	Email       string    `json:"email,omitempty"`
	TenantID    string    `json:"tenant_id,omitempty"`
	Role        RoleType  `json:"role,omitempty"`
	Industry    string    `json:"industry,omitempty"`
	Permissions []string  `json:"permissions,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	LastLogin   time.Time `json:"last_login,omitempty"`
}

// HasPermission reports whether the principal carries the given permission.
func (p *Principal) HasPermission(permission string) bool {
	for _, perm := range p.Permissions {
		if perm == permission {
			return true
		}
	}
	return false
}

// DefaultPermissions returns the permission set granted to a role when the
// principal record carries no explicit overrides.
func DefaultPermissions(role RoleType) []string {
	switch role {
	case RoleAdmin:
		return []string{"read:market_data", "write:reports", "manage:users", "manage:tenant"}
	case RoleAnalyst:
		return []string{"read:market_data", "write:reports"}
	case RoleViewer:
		return []string{"read:market_data"}
	}
	return nil
}
