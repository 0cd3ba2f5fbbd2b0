package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/clinicboard/clinicboard/internal/availability"
	"github.com/clinicboard/clinicboard/internal/cache"
	"github.com/clinicboard/clinicboard/internal/consumer"
	"github.com/clinicboard/clinicboard/internal/handlers"
	"github.com/clinicboard/clinicboard/internal/inbox"
	"github.com/clinicboard/clinicboard/internal/outbox"
	"github.com/clinicboard/clinicboard/internal/schedule"
	"github.com/clinicboard/clinicboard/internal/storage"
	"github.com/clinicboard/clinicboard/libs/auth"
	"github.com/clinicboard/clinicboard/libs/config"
	"github.com/clinicboard/clinicboard/libs/db"
	"github.com/clinicboard/clinicboard/libs/httpx"
	"github.com/clinicboard/clinicboard/libs/kafkax"
	otelx "github.com/clinicboard/clinicboard/libs/otel"
	"github.com/clinicboard/clinicboard/libs/runtime"
)

func main() {
	service := config.String("SERVICE_NAME", "availability-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
		MinConns: int32(config.Int("DB_MIN_CONNS", 2)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	var rdb *redis.Client
	var availCache availability.Cache
	cacheTTL := config.Seconds("CACHE_TTL_SECONDS", 5*time.Minute)
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: config.String("REDIS_PASSWORD", "")})
		availCache = cache.NewRedis(rdb, cacheTTL, logger)
	} else {
		availCache = cache.NewMemory(cacheTTL)
	}
	hooks := cache.NewHooks(availCache, logger)

	catalogRepo := storage.NewCatalogRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	slotCapacity := config.Int("SLOT_CAPACITY", 1)
	reservationRepo := storage.NewReservationRepository(pool, outboxRepo, slotCapacity)
	closureRepo := storage.NewClosureRepository(pool, outboxRepo)
	limitRepo := storage.NewLimitRepository(pool)
	inboxRepo := inbox.NewRepository(pool)

	// A central scheduling service overrides the local clinic_hours tables
	// when configured (protogen builds only).
	var scheduleProvider availability.ScheduleProvider = storage.NewScheduleRepository(pool)
	if remote, err := schedule.NewProvider(config.String("SCHEDULE_GRPC_ADDR", "")); err != nil {
		logger.Error("remote schedule provider init failed; using local tables", "err", err)
	} else if remote != nil {
		scheduleProvider = remote
	}

	calculator := availability.NewCalculator(availability.Config{
		Catalog:            catalogRepo,
		Schedule:           scheduleProvider,
		Ledger:             reservationRepo,
		Closures:           closureRepo,
		Limits:             limitRepo,
		Cache:              availCache,
		GranularityMinutes: config.Int("SLOT_GRANULARITY_MINUTES", 30),
		SlotCapacity:       slotCapacity,
		Logger:             logger,
	})

	brokers := config.String("KAFKA_BROKERS", "")
	if brokers != "" {
		writer := &kafka.Writer{
			Addr:         kafka.TCP(kafkax.SplitBrokers(brokers)...),
			Topic:        config.String("KAFKA_PUBLISH_TOPIC", "clinic.changes"),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		}
		defer writer.Close()
		publisher := outbox.NewPublisher(outboxRepo, writer, logger,
			config.Seconds("OUTBOX_POLL_SECONDS", 2*time.Second),
			config.Int("OUTBOX_BATCH_SIZE", 100))
		go publisher.Run(ctx)

		groupID := config.String("KAFKA_GROUP_ID", service)
		for _, topic := range config.List("KAFKA_CONSUME_TOPICS", "clinic.changes") {
			if strings.TrimSpace(topic) == "" {
				continue
			}
			reader := kafka.NewReader(kafka.ReaderConfig{
				Brokers: kafkax.SplitBrokers(brokers),
				GroupID: groupID,
				Topic:   topic,
			})
			eventConsumer := consumer.New(reader, inboxRepo, hooks, logger)
			go func() {
				if err := eventConsumer.Run(ctx); err != nil {
					logger.Error("consumer stopped", "err", err)
				}
			}()
		}
	}

	availabilityHandler := handlers.NewAvailabilityHandler(calculator, logger, config.Int("CACHE_MAX_AGE_SECONDS", 60))
	reservationHandler := handlers.NewReservationHandler(reservationRepo, catalogRepo, hooks, logger)
	closureHandler := handlers.NewClosureHandler(closureRepo, catalogRepo, hooks, logger)
	limitHandler := handlers.NewLimitHandler(limitRepo, catalogRepo, logger)

	readyChecks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	mux := runtime.NewBaseMux(readyChecks...)

	mux.HandleFunc("/api/v1/public/slots", availabilityHandler.Slots)
	mux.HandleFunc("/api/v1/public/reservations", reservationHandler.Create)
	mux.HandleFunc("/api/v1/public/reservations/cancel", reservationHandler.Cancel)

	adminOnly := auth.RequireRole(config.String("AUTH_SECRET", ""), auth.RoleAdmin)
	mux.Handle("/api/v1/admin/reservations", adminOnly(http.HandlerFunc(reservationHandler.List)))
	mux.Handle("/api/v1/admin/closures", adminOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			closureHandler.List(w, r)
			return
		}
		closureHandler.Create(w, r)
	})))
	mux.Handle("/api/v1/admin/closures/deactivate", adminOnly(http.HandlerFunc(closureHandler.Deactivate)))
	mux.Handle("/api/v1/admin/closures/conflicts", adminOnly(http.HandlerFunc(closureHandler.Conflicts)))
	mux.Handle("/api/v1/admin/limits", adminOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			limitHandler.Get(w, r)
			return
		}
		limitHandler.Put(w, r)
	})))

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", "*")}),
		httpx.WithBodyLimit(1 << 20),
		httpx.WithTimeout(config.Seconds("REQUEST_TIMEOUT_SECONDS", 15*time.Second)),
	}
	rateLimit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if rdb != nil {
		middlewares = append(middlewares, httpx.NewRedisRateLimiter(rdb, rateLimit, time.Minute, service).Middleware(logger, true))
	} else {
		middlewares = append(middlewares, httpx.NewRateLimiter(rateLimit, time.Minute).Middleware())
	}
	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, service)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
