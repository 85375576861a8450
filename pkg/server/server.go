// Package server provides the public entry point for initializing the
// rnalens server: the query gateway, session registry, plot renderer
// and the HTTP API wired together.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rnalens/rnalens/internal/api"
	"github.com/rnalens/rnalens/internal/api/handlers"
	"github.com/rnalens/rnalens/internal/config"
	"github.com/rnalens/rnalens/internal/gateway"
	"github.com/rnalens/rnalens/internal/plotcache"
	"github.com/rnalens/rnalens/internal/render"
	"github.com/rnalens/rnalens/internal/retention"
	"github.com/rnalens/rnalens/internal/telemetry"
)

// Server holds the initialized rnalens components.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Gateway is the read-only database gateway.
	Gateway *gateway.Gateway

	// Sessions is the per-session plot context registry.
	Sessions *plotcache.Registry

	// Config is the loaded server configuration.
	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to close the
	// database and flush telemetry.
	ShutdownFunc func(context.Context) error
}

// New initializes all components and returns a ready Server.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the server with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	// Initialize telemetry
	flush, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	// Open the dataset read-only. A missing or invalid file is fatal at
	// startup rather than on the first query.
	gw, err := gateway.Open(cfg.Database.Path, cfg.Database.RowCeiling)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	log.Info().Str("path", cfg.Database.Path).Msg("✅ Query gateway initialized")

	sessions := plotcache.NewRegistry()
	renderer := render.New(cfg.Plots.OutputDir)

	log.Info().Msg("✅ Session registry initialized")
	log.Info().Str("dir", cfg.Plots.OutputDir).Msg("✅ Plot renderer initialized")

	if cfg.Plots.RetentionHours > 0 {
		janitor := retention.NewJanitor(
			cfg.Plots.OutputDir,
			time.Duration(cfg.Plots.RetentionHours)*time.Hour,
			time.Hour,
		)
		go janitor.Start(ctx)
	}

	h := handlers.New(gw, sessions, renderer, cfg.Plots.PreviewRows)
	router := api.NewRouter(cfg, h)

	shutdown := func(ctx context.Context) error {
		gw.Close()
		return flush(ctx)
	}

	return &Server{
		Handler:      router,
		Gateway:      gw,
		Sessions:     sessions,
		Config:       cfg,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}
