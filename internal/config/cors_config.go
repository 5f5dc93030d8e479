package config

import "strings"

type Cors struct{}

var _ CorsConfig = Cors{}

type AllowedOrigins map[string]struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[origin]
	return ok
}

func (a AllowedOrigins) String() string {
	var origins []string
	for k := range a {
		origins = append(origins, k)
	}
	return strings.Join(origins, ", ")
}

// GetAllowedOrigins parses CORS_ALLOWED_ORIGINS as a comma-separated list.
// Cross-site cookie flows require exact origin matches; a wildcard entry
// disables credentials on the CORS response.
func (Cors) GetAllowedOrigins() AllowedOrigins {
	raw := GetEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	origins := make(AllowedOrigins)
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins[o] = struct{}{}
		}
	}
	return origins
}

func (Cors) GetAllowedMethods() string {
	return "GET, POST, PUT, PATCH, DELETE"
}

func (Cors) GetAllowedHeaders() string {
	return "Content-Type, Authorization"
}
