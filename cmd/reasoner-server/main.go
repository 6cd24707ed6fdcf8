package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medichain/reasoner/internal/config"
	"github.com/medichain/reasoner/internal/domain/catalog"
	"github.com/medichain/reasoner/internal/domain/diagnosis"
	"github.com/medichain/reasoner/internal/domain/reasoning"
	"github.com/medichain/reasoner/internal/domain/safety"
	"github.com/medichain/reasoner/internal/kb"
	"github.com/medichain/reasoner/internal/platform/auth"
	"github.com/medichain/reasoner/internal/platform/db"
	"github.com/medichain/reasoner/internal/platform/middleware"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "reasoner-server",
		Short: "Medical diagnostic reasoning API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(kbCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the reasoning API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func kbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Inspect the knowledge base",
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load the knowledge base and report whether it is consistent",
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("source")
			if source == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				source = cfg.KBSource
			}

			store, err := kb.Load(context.Background(), source)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			sn := store.Snapshot()
			fmt.Printf("Knowledge base %s is consistent.\n", source)
			fmt.Printf("%d facts, %d conditions, %d treatments.\n",
				sn.FactCount(), len(sn.Conditions()), len(sn.Treatments()))
			return nil
		},
	}
	validateCmd.Flags().String("source", "", "KB source descriptor (defaults to KB_SOURCE)")
	cmd.AddCommand(validateCmd)

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge base statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("source")
			if source == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				source = cfg.KBSource
			}

			store, err := kb.Load(context.Background(), source)
			if err != nil {
				return err
			}

			sn := store.Snapshot()
			fmt.Printf("Source:       %s\n", sn.SourceDescriptor())
			fmt.Printf("Version:      %s\n", sn.Version())
			fmt.Printf("Facts:        %d\n", sn.FactCount())
			fmt.Printf("Conditions:   %d\n", len(sn.Conditions()))
			fmt.Printf("Treatments:   %d\n", len(sn.Treatments()))
			fmt.Printf("Lab tests:    %d\n", len(sn.AllLabTests()))
			fmt.Printf("Imaging:      %d\n", len(sn.AllImaging()))
			fmt.Printf("Emergencies:  %s\n", strings.Join(sn.EmergencyConditions(), ", "))
			return nil
		},
	}
	statsCmd.Flags().String("source", "", "KB source descriptor (defaults to KB_SOURCE)")
	cmd.AddCommand(statsCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Knowledge base
	ctx := context.Background()
	store, err := kb.Load(ctx, cfg.KBSource)
	if err != nil {
		logger.Fatal().Err(err).Str("source", cfg.KBSource).Msg("failed to load knowledge base")
	}
	sn := store.Snapshot()
	logger.Info().
		Str("source", cfg.KBSource).
		Str("version", sn.Version()).
		Int("facts", sn.FactCount()).
		Int("conditions", len(sn.Conditions())).
		Msg("knowledge base loaded")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.ResolvedAuthMode() == "development" {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			SigningKey: []byte(cfg.AuthSecret),
		}))
	}

	// Rate limiting
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	e.Use(middleware.RateLimit(rateLimitCfg))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":     "ok",
			"version":    version,
			"kb_version": store.Snapshot().Version(),
		})
	})

	// Optional database health endpoint when the KB is served from postgres.
	if strings.HasPrefix(cfg.KBSource, "postgres://") || strings.HasPrefix(cfg.KBSource, "postgresql://") {
		pool, err := db.NewPool(ctx, cfg.KBSource, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		e.GET("/health/db", db.HealthHandler(pool))
	}

	// -- Register Domain Handlers --

	api := e.Group("/api/v1")

	diagSvc := diagnosis.NewService(store, diagnosis.Scoring{
		RedFlagWeight:         cfg.ScoreRedFlagWeight,
		MaxCandidates:         cfg.ScoreMaxCandidates,
		ConfidenceRedFlagStep: cfg.ConfidenceRedFlagStep,
		ConfidenceRedFlagCap:  cfg.ConfidenceRedFlagCap,
	})
	diagnosis.NewHandler(diagSvc).RegisterRoutes(api)

	safetySvc := safety.NewService(store)
	safety.NewHandler(safetySvc).RegisterRoutes(api)

	reasonSvc := reasoning.NewService(store, cfg.ChainCacheTTL)
	reasoning.NewHandler(reasonSvc).RegisterRoutes(api)

	catalogSvc := catalog.NewService(store)
	catalog.NewHandler(catalogSvc, cfg.KBSource, logger).RegisterRoutes(api)

	// Start server with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		var err error
		if cfg.TLSEnabled {
			logger.Info().Str("port", cfg.Port).Msg("starting server with TLS")
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			logger.Info().Str("port", cfg.Port).Msg("starting server")
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
