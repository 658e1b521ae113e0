package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"jewelshot/internal/adapter/repo"
	"jewelshot/internal/http/handlers"
	httpapi "jewelshot/internal/http/httpapi"
	"jewelshot/internal/infra"
	"jewelshot/internal/infra/geoip"
	"jewelshot/internal/middleware"
	"jewelshot/internal/optimize"
	"jewelshot/internal/providers/kie"
	"jewelshot/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure storage")
	}

	kieClient, err := kie.NewClient(kie.Options{
		APIKey:  cfg.KieAPIKey,
		BaseURL: cfg.KieBaseURL,
		Params: kie.Params{
			Model:           cfg.KieModel,
			PollInterval:    cfg.PollInterval,
			MaxPollAttempts: cfg.PollMaxAttempts,
		},
		Logger: &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure kie client")
	}
	if !kieClient.HasCredentials() {
		logger.Warn().Msg("api: KIE_AI_API_KEY not configured, all optimizations will pass through")
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip disabled")
	}

	queueRepo := repo.NewQueueRepository(runner)
	analyticsRepo := repo.NewAnalyticsRepository(runner)

	app := &handlers.App{
		Config:    cfg,
		Logger:    logger,
		SQL:       runner,
		Pipeline:  optimize.New(kieClient, logger),
		Queue:     queueRepo,
		Analytics: analyticsRepo,
		Store:     store,
	}

	var lookup middleware.CountryLookup
	if resolver != nil {
		lookup = resolver.CountryCode
	}
	record := func(ctx context.Context, route, country string, statusCode int) {
		if err := analyticsRepo.RecordRequest(ctx, route, country, statusCode); err != nil {
			logger.Warn().Err(err).Str("route", route).Msg("api: record request failed")
		}
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Record:          record,
		CountryLookup:   lookup,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
