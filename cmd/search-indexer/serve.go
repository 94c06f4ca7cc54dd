package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/ehr/searchindex/internal/platform/db"
	"github.com/ehr/searchindex/internal/platform/fhir"
	"github.com/ehr/searchindex/internal/platform/middleware"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the search API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	a, err := newApp(os.Stdout)
	if err != nil {
		return err
	}
	if err := a.cfg.RequireDatabase(); err != nil {
		return err
	}
	logger := a.logger

	pool, err := db.NewPool(ctx, a.cfg.DatabaseURL, a.cfg.DBSchema, a.cfg.DBMaxConns, a.cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info().Str("schema", a.cfg.DBSchema).Msg("connected to database")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = fhir.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())

	e.GET("/health", db.HealthHandler(pool, map[string]any{
		"resourceTypes":   len(a.registry.ResourceTypes()),
		"legacyCaseMatch": a.cfg.TokenLegacyCaseMatch,
	}))

	searcher := fhir.NewSearcher(a.registry, a.compiler, pool, logger)
	fhirGroup := e.Group("/fhir",
		middleware.RequestTimeout(a.cfg.RequestTimeout),
		middleware.BodyLimit(a.cfg.SearchBodyLimit),
	)
	fhir.NewHandler(searcher, a.registry, logger).RegisterRoutes(fhirGroup)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + a.cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
