package server

import (
	"net/http"

	"github.com/marketedge/auth-service/authz"
	"github.com/marketedge/auth-service/identity"
	"github.com/marketedge/auth-service/internal/config"
	"github.com/marketedge/auth-service/principals"
	"github.com/marketedge/auth-service/tenants"
	"github.com/marketedge/auth-service/token"
	"github.com/marketedge/auth-service/transport"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Repos holds the repository dependencies of the server.
type Repos struct {
	Principals principals.Repo
	Tenants    tenants.Repo
}

type Server struct {
	env      string
	mux      *http.ServeMux
	config   config.Config
	repos    Repos
	adapter  *identity.Adapter
	tokens   *token.Manager
	resolver *authz.Resolver
	policy   transport.CookiePolicy
	limiter  *rate.Limiter
}

func New(cfg config.Config, repos Repos, adapter *identity.Adapter, tokens *token.Manager) (*Server, error) {
	if repos.Principals == nil {
		return nil, errors.New("[Server.New] Principals repo is required")
	}
	if repos.Tenants == nil {
		return nil, errors.New("[Server.New] Tenants repo is required")
	}
	if adapter == nil {
		return nil, errors.New("[Server.New] identity adapter is required")
	}
	if tokens == nil {
		return nil, errors.New("[Server.New] token manager is required")
	}

	policy, err := transport.PolicyForEnvironment(transport.Environment(cfg.GetEnv()), cfg.GetCookieDomain())
	if err != nil {
		return nil, errors.Wrap(err, "[Server.New] resolving cookie policy")
	}

	s := &Server{
		env:      cfg.GetEnv(),
		mux:      http.NewServeMux(),
		config:   cfg,
		repos:    repos,
		adapter:  adapter,
		tokens:   tokens,
		policy:   policy,
		limiter:  rate.NewLimiter(rate.Limit(cfg.GetExchangeRateLimit()), cfg.GetExchangeRateBurst()),
		resolver: authz.NewResolver(
			authz.NewInternalVerifier(tokens),
			authz.NewUpstreamVerifier(adapter, repos.Principals),
		),
	}

	s.initRoutes()
	log.Info().Str("env", s.env).Msg("auth server initialised")
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
