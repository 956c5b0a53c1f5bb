package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	httpapi "github.com/i474232898/weather-lookup/internal/api/http"
	"github.com/i474232898/weather-lookup/internal/cache"
	"github.com/i474232898/weather-lookup/internal/config"
	"github.com/i474232898/weather-lookup/internal/geocode"
	"github.com/i474232898/weather-lookup/internal/logger"
	"github.com/i474232898/weather-lookup/internal/lookup"
	"github.com/i474232898/weather-lookup/internal/quota"
	"github.com/i474232898/weather-lookup/internal/scheduler"
	"github.com/i474232898/weather-lookup/internal/store"
	"github.com/i474232898/weather-lookup/internal/upstream"
	"github.com/i474232898/weather-lookup/internal/weather"
	"github.com/i474232898/weather-lookup/internal/weather/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Log)
	log := logger.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore := openStore(ctx, cfg.Redis)
	defer closeStore()

	quotas := quota.NewManager(st, quota.WithOffsets(cfg.QuotaOffset))
	quotas.Configure(geocode.ProviderName, cfg.MapboxLimits.Options()...)
	quotas.Configure(weather.ProviderName, cfg.OpenWeatherLimits.Options()...)

	// Shared HTTP client for outbound provider calls; each provider gets its own breaker.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	mapbox := geocode.NewMapboxProvider(upstream.New(upstream.Config{
		Name:    geocode.ProviderName,
		Client:  httpClient,
		Timeout: cfg.HTTPTimeout,
	}), cfg.MapboxAccessToken)
	openweather := providers.NewOpenWeatherProvider(upstream.New(upstream.Config{
		Name:    weather.ProviderName,
		Client:  httpClient,
		Timeout: cfg.HTTPTimeout,
	}), cfg.OpenWeatherAPIKey)

	c := cache.New(st)
	service := lookup.NewService(st,
		geocode.NewResolver(c, quotas, mapbox),
		weather.NewFetcher(c, quotas, openweather),
	)

	warmer := scheduler.New(cfg.WarmAddresses, cfg.WarmInterval, service)
	if err := warmer.Start(); err != nil {
		log.Fatalf("failed to start cache warmer: %v", err)
	}
	defer warmer.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-lookup",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          2*cfg.HTTPTimeout + 5*time.Second,
	})

	limiter := httpapi.NewClientLimiter(cfg.InboundRPS, cfg.InboundBurst)
	limiter.StartJanitor(ctx, 2*time.Minute)

	app.Use(recover.New())
	app.Use(httpapi.RequestID())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
		Output: os.Stdout,
	}))
	app.Use(limiter.Middleware())

	httpapi.RegisterRoutes(app, service, quotas)

	go func() {
		log.WithField("port", cfg.Port).Info("starting weather-lookup")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.WithError(err).Error("fiber server stopped")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.WithError(err).Error("error during shutdown")
	}
}

// openStore connects to Redis when configured and falls back to memory.
func openStore(ctx context.Context, rc config.RedisConfig) (store.Store, func()) {
	log := logger.WithComponent("main")
	if rc.Addr == "" {
		log.Info("REDIS_ADDR not set; using in-memory store")
		return store.NewMemoryStore(), func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	rs := store.NewRedisStore(rdb)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rs.Ping(pingCtx); err != nil {
		log.WithError(err).WithField("addr", rc.Addr).Fatal("redis unreachable")
	}
	log.WithField("addr", rc.Addr).Info("using redis store")
	return rs, func() { _ = rdb.Close() }
}
