package tenants

// Tenant represents an isolated customer organization. Every resource in the
// platform is scoped to exactly one tenant and the resolver enforces that
// boundary on each request.
type Tenant struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Domain   string `json:"domain"`   // Primary frontend domain (e.g., "acme.marketedge.app")
	Industry string `json:"industry"` // Industry tag propagated into token claims
}
