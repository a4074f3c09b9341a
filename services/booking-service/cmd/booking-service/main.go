package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/salonbook/libs/config"
	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/libs/redisx"
	"github.com/md-rashed-zaman/salonbook/libs/runtime"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "booking-service")
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))
	if err := run(service, logger); err != nil {
		logger.Error("booking service exited", "err", err)
		os.Exit(1)
	}
}

func run(service string, logger *slog.Logger) error {
	port, err := config.Port("PORT", "8083")
	if err != nil {
		return err
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		return err
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service, version))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	hours, err := availability.DefaultBusinessHours()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(reg)

	txTimeout := config.Duration("BOOKING_TX_TIMEOUT", booking.DefaultTimeout)
	brokers := config.String("KAFKA_BROKERS", "")
	readyChecks := []runtime.ReadyCheck{}

	var store storage.Store
	switch strings.ToLower(config.String("STORAGE", "postgres")) {
	case "memory":
		logger.Warn("using in-memory storage; data is lost on restart and outbox events are not published")
		store = storage.NewMemory()
	case "postgres":
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			return err
		}
		pool, err := db.Open(ctx, dbURL, db.Options{
			MaxConns:         int32(config.Int("DB_MAX_CONNS", 10)),
			StatementTimeout: txTimeout,
		})
		if err != nil {
			logger.Error("db connection failed", "err", err)
			return err
		}
		defer pool.Close()

		outboxRepo := outbox.NewRepository()
		store = storage.NewPostgres(pool, outboxRepo)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})

		publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   brokers,
			PollEvery: 2 * time.Second,
			BatchSize: 50,
		})
		go publisher.Run(ctx)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkax.SplitBrokers(brokers))})
	default:
		return fmt.Errorf("STORAGE must be postgres or memory (got %q)", config.String("STORAGE", ""))
	}

	var rdb *redis.Client
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb, err = redisx.Open(ctx, redisx.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		if err != nil {
			// The catalog cache and rate limiter degrade to local behaviour without Redis.
			logger.Warn("redis unavailable, continuing without cache", "err", err)
			rdb = nil
		} else {
			defer func() { _ = rdb.Close() }()
			readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)})
		}
	}

	var cacheClient redis.Cmdable
	if rdb != nil {
		cacheClient = rdb
	}
	cache := catalog.New(cacheClient, store, config.Duration("CATALOG_CACHE_TTL", 5*time.Minute), logger, bookingMetrics)

	if err := handlers.SeedAdmin(ctx, store, config.String("DEFAULT_ADMIN_PASSWORD", ""), logger); err != nil {
		logger.Warn("admin user not seeded", "err", err)
	}

	coordinator := booking.NewCoordinator(store, booking.Options{
		Timeout: txTimeout,
		Logger:  logger,
		Metrics: bookingMetrics,
	})

	rateLimit := config.Int("RATE_LIMIT_PER_MINUTE", 30)
	var bookingLimit httpx.Middleware
	if rateLimit > 0 {
		if rdb != nil {
			bookingLimit = httpx.NewRedisRateLimiter(rdb, rateLimit, time.Minute, "rl:booking").Middleware(logger, true)
		} else {
			bookingLimit = httpx.NewRateLimiter(rateLimit, time.Minute).Middleware()
		}
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Booking:          handlers.NewBookingHandler(coordinator, store, cache, hours, logger, bookingMetrics),
		Services:         handlers.NewServicesHandler(store, cache, logger),
		Auth:             handlers.NewAuthHandler(store, jwtSecret, handlers.DefaultSessionTTL, logger),
		JWTSecret:        jwtSecret,
		BookingRateLimit: bookingLimit,
		ReadyChecks:      readyChecks,
		MetricsHandler:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	httpHandler := httpx.Chain(router,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.DefaultCORSPolicy(config.List("CORS_ALLOWED_ORIGINS"))),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 10*time.Second)),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return runtime.Serve(ctx, srv, logger, 10*time.Second)
}
