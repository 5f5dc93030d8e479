package server

import (
	"net/http"

	"github.com/marketedge/auth-service/internal/obs"
)

const (
	RouteCallback = "POST /auth/callback"
	RouteRefresh  = "POST /auth/refresh"
	RouteLogout   = "POST /auth/logout"
	RouteMe       = "GET /auth/me"
	RouteReports  = "GET /api/tenants/{tenantID}/reports"
	RouteHealth   = "GET /healthz"
	RouteMetrics  = "GET /metrics"
)

func ChainMiddleware(routeFunction http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chainedHandler := routeFunction
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

func (s *Server) apiMiddleware() []func(http.HandlerFunc) http.HandlerFunc {
	return []func(http.HandlerFunc) http.HandlerFunc{
		s.RecoverMiddleware,
		s.LoggingMiddleware,
		s.CorsMiddleware,
	}
}

func (s *Server) initRoutes() {
	s.mux.HandleFunc(RouteCallback, ChainMiddleware(s.CallbackHandler(), append(s.apiMiddleware(), s.RateLimitMiddleware)...))
	s.mux.HandleFunc(RouteRefresh, ChainMiddleware(s.RefreshHandler(), s.apiMiddleware()...))
	s.mux.HandleFunc(RouteLogout, ChainMiddleware(s.LogoutHandler(), s.apiMiddleware()...))
	s.mux.HandleFunc(RouteMe, ChainMiddleware(s.MeHandler(), append(s.apiMiddleware(), s.RequireAuth())...))
	s.mux.HandleFunc(RouteReports, ChainMiddleware(s.ReportsHandler(), append(s.apiMiddleware(), s.RequireAuth())...))
	s.mux.HandleFunc(RouteHealth, s.HealthHandler())
	s.mux.Handle(RouteMetrics, obs.MetricsHandler())

	// Browser preflights arrive as OPTIONS and never match the
	// method-specific patterns above.
	s.mux.HandleFunc("OPTIONS /", ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, s.CorsMiddleware))
}
