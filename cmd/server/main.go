package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/marketedge/auth-service/identity"
	"github.com/marketedge/auth-service/internal/config"
	"github.com/marketedge/auth-service/internal/obs"
	principalrepofake "github.com/marketedge/auth-service/principals/repofake"
	"github.com/marketedge/auth-service/server"
	"github.com/marketedge/auth-service/storage/sqlitestore"
	tenantrepofakes "github.com/marketedge/auth-service/tenants/repofakes"
	"github.com/marketedge/auth-service/token"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func run() error {
	cfg := config.New()
	obs.SetupLogging(cfg.GetEnv())
	obs.InitMetrics()
	displayAppname(cfg.GetAppName())

	masterSecret := []byte(cfg.GetAuthSecret())
	if len(masterSecret) == 0 {
		if cfg.GetEnv() != config.EnvDevelopment {
			return errors.New("AUTH_SECRET must be set outside development")
		}
		var err error
		masterSecret, err = token.RandomSecret()
		if err != nil {
			return err
		}
		log.Warn().Msg("AUTH_SECRET not set; using a random secret, tokens will not survive restarts")
	}

	accessSigner, refreshSigner, err := token.DeriveSigners(masterSecret)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.GetDataFolder(), 0o755); err != nil {
		return fmt.Errorf("creating data folder: %w", err)
	}
	families, err := sqlitestore.Open(filepath.Join(cfg.GetDataFolder(), "families.db"))
	if err != nil {
		return err
	}
	defer families.Close()

	// TODO: replace the in-memory principal/tenant repos with SQLite-backed
	// ones once the tenant onboarding flow lands.
	repos := server.Repos{
		Principals: principalrepofake.NewFakePrincipalRepo(),
		Tenants:    tenantrepofakes.NewFakeTenantRepo(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	adapter, err := identity.NewAdapter(ctx, cfg, cfg.GetBaseURL()+"/auth/callback")
	if err != nil {
		return fmt.Errorf("identity adapter: %w", err)
	}

	tokens := token.New(families, repos.Principals, accessSigner, refreshSigner,
		token.WithIssuer(cfg.GetIssuer()),
		token.WithAudience(cfg.GetAudience()),
		token.WithTokenExpiry(cfg.GetAccessTokenExpiry(), cfg.GetRefreshTokenExpiry()),
	)

	srv, err := server.New(cfg, repos, adapter, tokens)
	if err != nil {
		return err
	}

	httpServer := &http.Server{Addr: cfg.GetPort(), Handler: srv}
	go cleanupLoop(tokens)
	go listenAndServe(httpServer)
	waitForStopSignal()
	return shutdown(httpServer)
}

func listenAndServe(httpServer *http.Server) {
	log.Info().Str("addr", httpServer.Addr).Msg("server listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("listen and serve")
	}
}

// cleanupLoop periodically drops expired revocation entries and idle token
// families.
func cleanupLoop(tokens *token.Manager) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		tokens.CleanupRevokedTokens()
		if err := tokens.CleanupExpiredFamilies(); err != nil {
			log.Warn().Err(err).Msg("family cleanup failed")
		}
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
