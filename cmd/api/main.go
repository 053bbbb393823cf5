package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"imageproxy/internal/http/handlers"
	httpapi "imageproxy/internal/http/httpapi"
	"imageproxy/internal/imagegen"
	"imageproxy/internal/infra"
	"imageproxy/internal/infra/credentials"
	"imageproxy/internal/metrics"
	"imageproxy/internal/providers/everart"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sqlExec infra.SQLExecutor
	if cfg.DatabaseURL != "" {
		dbpool, err := infra.NewDBPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()
		sqlExec = infra.NewSQLRunner(dbpool, logger)
	}
	store := credentials.NewStore(cfg.EverArtAPIKey, sqlExec)
	if cfg.EverArtAPIKey == "" && sqlExec == nil {
		logger.Warn().Msg("EVERART_API_KEY is not set; generation requests will fail until it is configured")
	}

	client := everart.NewClient(everart.Options{
		BaseURL:        cfg.EverArtBaseURL,
		ModelID:        cfg.EverArtModelID,
		Logger:         &logger,
		RequestTimeout: cfg.EverArtRequestTimeout,
	})
	collector := metrics.NewCollector("imageproxy")
	observer := imagegen.MultiObserver{imagegen.NewLogObserver(logger), collector}
	orchestrator := imagegen.NewOrchestrator(client, store, observer, imagegen.PollPolicy{
		MaxAttempts:    cfg.PollMaxAttempts,
		Interval:       cfg.PollInterval,
		AbortOnFailure: cfg.AbortOnRemoteFailure,
	})

	app := handlers.NewApp(cfg, logger, orchestrator, collector.Handler())
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", server.Addr()).
			Str("model", client.ModelID()).
			Int("poll_attempts", cfg.PollMaxAttempts).
			Dur("poll_interval", cfg.PollInterval).
			Msg("API listening")
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		// In-flight generations may hold their connection for the whole
		// poll budget.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GenerationBudget())
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}
