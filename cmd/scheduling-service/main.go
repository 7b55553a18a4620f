package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/slotline/schedcore/internal/consumer"
	"github.com/slotline/schedcore/internal/handlers"
	"github.com/slotline/schedcore/internal/inbox"
	"github.com/slotline/schedcore/internal/outbox"
	"github.com/slotline/schedcore/internal/scheduling"
	"github.com/slotline/schedcore/internal/storage"
	"github.com/slotline/schedcore/internal/workinghours"
	"github.com/slotline/schedcore/libs/auth"
	"github.com/slotline/schedcore/libs/config"
	"github.com/slotline/schedcore/libs/db"
	"github.com/slotline/schedcore/libs/httpx"
	"github.com/slotline/schedcore/libs/kafkax"
	otelx "github.com/slotline/schedcore/libs/otel"
	"github.com/slotline/schedcore/libs/runtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8084")
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
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}
	var jwksClient *auth.JWKSClient
	if jwksURL := config.String("JWKS_URL", ""); jwksURL != "" {
		jwksClient = auth.NewJWKSClient(jwksURL, 5*time.Minute)
	}

	outboxRepo := outbox.NewRepository()
	store := storage.NewStore(pool, outboxRepo)
	catalogRepo := storage.NewCatalogRepository(pool)
	hoursRepo := storage.NewHoursRepository(pool)
	idempotencyRepo := storage.NewIdempotencyRepository(pool)

	hoursRemote, err := workinghours.NewRemote(config.String("SCHEDULE_GRPC_ADDR", ""))
	if err != nil {
		logger.Error("schedule grpc client init failed; using hours cache", "err", err)
		hoursRemote = nil
	}
	hoursResolver := workinghours.NewResolver(hoursRemote, hoursRepo)

	engine := scheduling.New(store, hoursResolver, scheduling.Config{
		LockTimeout: config.Minutes("PROVIDER_LOCK_TIMEOUT_MINUTES", 5*time.Second),
	})

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	hoursTopic := config.String("KAFKA_HOURS_TOPIC", "schedule.hours.updated.v1")
	if config.String("KAFKA_BROKERS", "") != "" && hoursTopic != "" {
		hoursConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "scheduling-service"),
			Topic:   hoursTopic,
		}, func(ctx context.Context, msg kafka.Message) error {
			var payload struct {
				ProviderID string `json:"provider_id"`
				Week       []struct {
					Weekday      int `json:"weekday"`
					OpenMinutes  int `json:"open_minutes"`
					CloseMinutes int `json:"close_minutes"`
				} `json:"week"`
			}
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid hours payload", "err", err, "topic", msg.Topic)
				return nil
			}
			if payload.ProviderID == "" {
				logger.Error("hours event missing provider_id", "topic", msg.Topic)
				return nil
			}
			week := make(workinghours.WeeklyHours, len(payload.Week))
			for _, d := range payload.Week {
				if d.Weekday < 0 || d.Weekday > 6 || d.CloseMinutes <= d.OpenMinutes {
					continue
				}
				week[time.Weekday(d.Weekday)] = [2]int{d.OpenMinutes, d.CloseMinutes}
			}
			return hoursRepo.ReplaceWeeklyHours(ctx, payload.ProviderID, week)
		})
		go hoursConsumer.Run(ctx)
	}

	api := handlers.NewAPI(engine, catalogRepo, catalogRepo, idempotencyRepo, logger)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	var rateLimit httpx.Middleware
	if redisAddr := config.String("REDIS_ADDR", ""); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		limiter := httpx.NewRedisRateLimiter(rdb,
			config.Int("RATE_LIMIT_PER_MINUTE", 120), time.Minute, service)
		rateLimit = limiter.Middleware(logger, true)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	} else {
		rateLimit = httpx.NewRateLimiter(config.Int("RATE_LIMIT_PER_MINUTE", 120), time.Minute).Middleware()
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("/api/v1/public/slots", api.Slots)
	mux.Handle("/api/v1/", handlers.RequireAuth(authedMux(api), jwtSecret, jwksClient))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,PUT,OPTIONS")),
			AllowedHeaders: parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id,Idempotency-Key")),
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(1<<20),
		rateLimit,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
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

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// authedMux holds every route behind authentication. The public slots
// endpoint is also mounted on the outer mux, where the exact-path match
// wins over this prefix handler.
func authedMux(api *handlers.API) http.Handler {
	mux := http.NewServeMux()
	api.Register(mux)
	return mux
}
