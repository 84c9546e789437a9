package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"commute/internal/app"
	"commute/internal/config"
	"commute/internal/domain"
	"commute/internal/events"
	"commute/internal/geocode"
	"commute/internal/handler"
	"commute/internal/logger"
	"commute/internal/monitor"
	"commute/internal/position"
	internalRedis "commute/internal/redis"
	"commute/internal/repository/postgres"
	"commute/internal/service"
	"commute/internal/tripapi"
	"commute/internal/ws"
)

const serviceName = "commute-service"

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.NewNamed(cfg.Server.Env, serviceName)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			zl.Warn("failed to initialize New Relic", zap.Error(err))
		} else {
			zl.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	zl.Info("connected to PostgreSQL", zap.String("dbname", cfg.Database.DBName))

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		zl.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	zl.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RabbitMQ.Enabled {
		conn, ch, err := app.NewRabbitChannel(cfg.RabbitMQ)
		if err != nil {
			zl.Fatal("failed to connect to rabbitmq", zap.Error(err))
		}
		defer conn.Close()
		defer ch.Close()
		publisher = events.NewRabbitPublisher(ch, cfg.RabbitMQ.Exchange, zl.Named("events"))
		zl.Info("publishing trip events", zap.String("exchange", cfg.RabbitMQ.Exchange))
	}

	hub := ws.NewHub(zl.Named("ws"))
	defer hub.Close()

	// Wire dependencies.
	server, trips := wireServer(db, redisClient, publisher, hub, nrApp, cfg, zl)
	defer trips.Close()

	// Start server in goroutine.
	go func() {
		zl.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zl.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Error("server forced to shutdown", zap.Error(err))
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	zl.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server together with
// the trip session service, which owns live trips until shutdown.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	publisher events.Publisher,
	hub *ws.Hub,
	nrApp *newrelic.Application,
	cfg *config.Config,
	zl *zap.Logger,
) (*http.Server, *service.TripSessionService) {
	// Initialize Redis stores.
	sessionStore := internalRedis.NewSessionStore(redisClient)
	positionStore := internalRedis.NewPositionStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	addressCache := internalRedis.NewAddressCacheStore(redisClient)
	idempotencyStore := internalRedis.NewIdempotencyStore(redisClient)

	// Initialize repositories.
	tripRecords := postgres.NewTripRecordRepository(db)

	// Address resolution: geocoder, then cache, then landmark and centre fallbacks.
	landmarks := cfg.Geocoder.Landmarks
	if len(landmarks) == 0 {
		landmarks = geocode.DefaultLandmarks()
	}
	center := geocode.SeoulCityHall
	center.Coordinate = domain.Coordinate{Lat: cfg.Geocoder.CenterLat, Lng: cfg.Geocoder.CenterLng}

	var resolver geocode.Resolver = geocode.NewClient(cfg.Geocoder.APIKey, cfg.Geocoder.BaseURL, cfg.Geocoder.Timeout)
	resolver = geocode.NewCachedResolver(resolver, addressCache, cfg.Geocoder.CacheTTL, zl.Named("geocode"))
	resolver = geocode.NewFallbackResolver(resolver, geocode.NewLandmarks(landmarks), center, zl.Named("geocode"))

	tripClient := tripapi.NewClient(cfg.TripAPI.BaseURL, cfg.TripAPI.APIKey, cfg.TripAPI.Timeout)

	// Initialize services.
	notificationService := service.NewNotificationService(tripRecords, publisher, hub, zl.Named("notification"))
	tripService := service.NewTripSessionService(
		resolver,
		tripClient,
		notificationService,
		tripRecords,
		sessionStore,
		positionStore,
		lockStore,
		tripSessionConfig(cfg),
		zl.Named("trips"),
	)
	sessionService := service.NewSessionService(sessionStore)

	// Initialize handlers.
	tripHandler := handler.NewTripHandler(tripService)
	userHandler := handler.NewUserHandler(sessionService, tripService)
	wsHandler := handler.NewWebSocketHandler(tripService, hub, zl.Named("ws"))

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		TripHandler:      tripHandler,
		UserHandler:      userHandler,
		WebSocketHandler: wsHandler,
		IdempotencyStore: idempotencyStore,
		NewRelicApp:      nrApp,
		Logger:           zl.Named("http"),
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, tripService
}

func tripSessionConfig(cfg *config.Config) service.TripSessionConfig {
	sc := service.DefaultTripSessionConfig()
	sc.Monitor = monitor.Config{
		DepartureThresholdMeters: cfg.Monitor.DepartureThresholdMeters,
		ArrivalThresholdMeters:   cfg.Monitor.ArrivalThresholdMeters,
		PositionTimeout:          cfg.Monitor.PositionTimeout,
		RemoteTimeout:            cfg.Monitor.RemoteTimeout,
	}
	sc.Reported = position.ReportedConfig{
		OneShotMaxAge: cfg.Monitor.OneShotMaxAge,
		WatchMaxAge:   cfg.Monitor.WatchMaxAge,
	}
	sc.Demo = position.DemoConfig{
		Interval: cfg.Demo.Interval,
		Steps:    cfg.Demo.Steps,
	}
	sc.DemoEnabled = cfg.Demo.Enabled
	sc.LockTTL = cfg.Server.TripLockTTL
	return sc
}
