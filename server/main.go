package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/upul/ml-dev-assignment/pkg/config"
	"github.com/upul/ml-dev-assignment/pkg/counter"
	"github.com/upul/ml-dev-assignment/pkg/logging"
	"github.com/upul/ml-dev-assignment/pkg/model"
	"github.com/upul/ml-dev-assignment/pkg/telemetry"
)

var (
	configPath = flag.String("config", "config.yaml", "Config file path")
	port       = flag.String("port", "", "Port to listen on (overrides config)")
	mode       = flag.String("mode", "", "Server mode: DEV, TEST or DEPLOY (overrides config)")
	Version    = "dev"
)

const serviceName = "sentiment-server"

type Server struct {
	logger       zerolog.Logger
	stats        *counter.Registry
	model        model.Predictor
	modelVersion string
	store        *PredictionStore
	metrics      http.Handler
}

func newServer(logger zerolog.Logger, stats *counter.Registry, predictor model.Predictor, modelVersion string, store *PredictionStore) *Server {
	return &Server{
		logger:       logger,
		stats:        stats,
		model:        predictor,
		modelVersion: modelVersion,
		store:        store,
		metrics:      telemetry.MetricsHandler(telemetry.NewMetricsRegistry(stats)),
	}
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), withRequestContext(s.logger))
	s.registerRoutes(r)
	return r
}

func main() {
	flag.Parse()
	bootstrap := logging.Bootstrap(os.Stderr)

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootstrap.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load config")
	}
	if *port != "" {
		cfg.Server.Listen = listenAddr(*port)
	}
	if *mode != "" {
		cfg.Server.Mode = *mode
	}
	if err := cfg.Validate(); err != nil {
		bootstrap.Fatal().Err(err).Msg("Invalid config")
	}

	logger, closer := logging.New(cfg.Logging, os.Stdout)
	err = run(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Sentiment server failed")
	}
	_ = closer.Close()
	if err != nil {
		os.Exit(1)
	}
}

// run serves until SIGINT or SIGTERM. Startup failures are returned so the
// caller can close the log file before exiting.
func run(cfg *config.ServiceConfig, logger zerolog.Logger) error {
	logger.Info().Str("version", Version).Str("mode", cfg.Server.Mode).Str("listen", cfg.Server.Listen).Msg("Sentiment server starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.SetupTracing(ctx, serviceName, Version, cfg.Tracing, logger)
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutS)*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Tracer shutdown failed")
		}
	}()

	logger.Info().Str("location", cfg.Model.Location).Msg("Loading model")
	lex, err := model.Load(cfg.Model.Location)
	if err != nil {
		return fmt.Errorf("an exception has occurred while loading the model: %w", err)
	}

	stats, err := counter.NewRegistry(cfg.Statistics.Window())
	if err != nil {
		return fmt.Errorf("invalid statistics window: %w", err)
	}

	var store *PredictionStore
	if cfg.Storage.Path != "" {
		store, err = OpenPredictionStore(cfg.Storage.Path)
		if err != nil {
			return err
		}
	} else {
		logger.Warn().Msg("Prediction log disabled")
	}

	gin.SetMode(ginMode(cfg.Server.Mode))
	srv := newServer(logger, stats, lex, lex.Version, store)

	timeout := time.Duration(cfg.Server.RequestTimeoutS) * time.Second
	httpSrv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           srv.router(),
		ReadHeaderTimeout: timeout,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("listen", cfg.Server.Listen).Msg("Listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutS)*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown failed")
	}
	return nil
}

func ginMode(serverMode string) string {
	switch serverMode {
	case config.ModeDeploy:
		return gin.ReleaseMode
	case config.ModeTest:
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}

// listenAddr accepts either a bare port or a host:port pair.
func listenAddr(raw string) string {
	raw = strings.TrimSpace(raw)
	if _, _, err := net.SplitHostPort(raw); err == nil {
		return raw
	}
	return net.JoinHostPort("0.0.0.0", raw)
}
