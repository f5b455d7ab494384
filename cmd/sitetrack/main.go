package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"sitetrack/internal/cache"
	"sitetrack/internal/config"
	"sitetrack/internal/drawing"
	"sitetrack/internal/handler"
	"sitetrack/internal/hub"
	"sitetrack/internal/mapview"
	"sitetrack/internal/middleware"
	"sitetrack/internal/registry"
	"sitetrack/internal/storage"
	"sitetrack/pkg/geocode"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting sitetrack server",
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"stale_after", cfg.StaleAfter,
		"redis_enabled", cfg.RedisEnabled,
		"auth_enabled", cfg.AuthEnabled,
	)

	var redisCache *cache.RedisCache
	if cfg.RedisEnabled {
		redisCache, err = cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisCache.Close()
	}

	uploads, err := storage.NewDisk(cfg.UploadDir)
	if err != nil {
		logger.Error("failed to prepare upload dir", "dir", cfg.UploadDir, "error", err)
		os.Exit(1)
	}

	wsHub := hub.NewHub(logger)
	locations := registry.New(cfg.StaleAfter, wsHub)

	var snapshots drawing.SnapshotStore
	var geocodeCache mapview.ResultCache
	if redisCache != nil {
		snapshots = redisCache
		geocodeCache = redisCache
	}

	digitizer := drawing.New(uploads, snapshots, wsHub, logger)
	if err := digitizer.Restore(context.Background()); err != nil {
		logger.Warn("failed to restore drawing maps", "error", err)
	}

	geocoder := geocode.New(cfg.GeocodeURL, cfg.GeocodeUserAgent)
	generator := mapview.NewGenerator(geocoder, geocodeCache, cfg.GeocodeTimeout, logger)

	locationHandler := handler.NewLocationHandler(locations)
	mapsHandler := handler.NewMapsHandler(digitizer, generator, uploads)
	wsHandler := handler.NewWSHandler(wsHub, locations, cfg.WSPingInterval, cfg.WSWriteTimeout, logger)
	healthHandler := handler.NewHealthHandler(locations, digitizer, wsHub)
	statsHandler := handler.NewStatsHandler(locations, digitizer, wsHub)

	api := http.NewServeMux()

	api.HandleFunc("POST /v1/location", locationHandler.UpdateLocation)
	api.HandleFunc("GET /v1/location/active", locationHandler.ListActive)
	api.HandleFunc("GET /v1/location/user/{userId}", locationHandler.GetUser)
	api.HandleFunc("GET /v1/location/role/{role}", locationHandler.ListByRole)

	api.HandleFunc("POST /v1/maps/drawings", mapsHandler.UploadDrawing)
	api.HandleFunc("GET /v1/maps/drawings", mapsHandler.GetDrawings)
	api.HandleFunc("DELETE /v1/maps/drawings/{projectId}", mapsHandler.DeleteDrawing)
	api.HandleFunc("POST /v1/maps/real-world", mapsHandler.RealWorldMap)
	api.HandleFunc("GET /v1/maps/virtual", mapsHandler.VirtualMap)
	api.HandleFunc("POST /v1/maps/reverse-geocode", mapsHandler.ReverseGeocode)

	api.HandleFunc("GET /v1/stats", statsHandler.GetStats)

	var apiHandler http.Handler = api
	var wsEndpoint http.Handler = http.HandlerFunc(wsHandler.ServeWS)
	if cfg.AuthEnabled {
		if cfg.AuthSecret == "" {
			logger.Error("AUTH_SECRET is required when AUTH_ENABLED is set")
			os.Exit(1)
		}
		auth := middleware.NewAuth(cfg.AuthSecret, logger)
		apiHandler = auth.Middleware(api)
		wsEndpoint = auth.Middleware(wsEndpoint)
	}

	mux := http.NewServeMux()
	// The websocket upgrade hijacks the connection and must stay
	// outside the gzip wrapper.
	mux.Handle("/v1/ws", wsEndpoint)
	mux.Handle("/v1/", handler.GzipMiddleware(apiHandler))
	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", healthHandler.Readyz)

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerWindow, cfg.RateLimitWindow, cfg.RateLimitWhitelist, logger)
	root := handler.CORSMiddleware(handler.CountMiddleware(limiter.Middleware(mux)))

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      root,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go wsHub.Run(ctx)

	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
