package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/artistcal/libs/auth"
	"github.com/md-rashed-zaman/artistcal/libs/config"
	"github.com/md-rashed-zaman/artistcal/libs/db"
	"github.com/md-rashed-zaman/artistcal/libs/httpx"
	"github.com/md-rashed-zaman/artistcal/libs/kafkax"
	otelx "github.com/md-rashed-zaman/artistcal/libs/otel"
	"github.com/md-rashed-zaman/artistcal/libs/runtime"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/cache"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/compiler"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/consumer"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/feed"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/handlers"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/inbox"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/lock"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/mutation"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/notify"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/outbox"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/pending"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/query"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/storage"
)

func main() {
	_ = config.LoadDotEnv()
	service := config.String("SERVICE_NAME", "schedule-service")
	port, err := config.Port("PORT", "8085")
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

	mode, err := compiler.ParseMode(config.String("SCHEDULE_OVERRIDE_MODE", "union"))
	if err != nil {
		panic(err)
	}
	engine := compiler.New(mode)
	pendingReader := pending.NewReader(config.Duration("PENDING_HOLD_TTL_MINUTES", pending.DefaultHoldTTL, time.Minute))
	defaultTZ := config.String("DEFAULT_TIMEZONE", "UTC")
	brokers := config.String("KAFKA_BROKERS", "")

	var readyChecks []runtime.ReadyCheck

	var store storage.Store
	var inboxRepo inbox.Recorder
	if dbURL := config.String("DATABASE_URL", ""); dbURL != "" {
		pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: int32(config.Int("DB_MAX_CONNS", 10, 1))})
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()

		outboxRepo := outbox.NewRepository()
		store = storage.NewPostgres(pool, outboxRepo)
		inboxRepo = inbox.NewRepository(pool)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})

		publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   brokers,
			PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second, time.Millisecond),
			BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50, 1),
			Retention: config.Duration("OUTBOX_RETENTION_HOURS", 7*24*time.Hour, time.Hour),
		})
		go publisher.Run(ctx)
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory store")
		store = storage.NewMemory()
		inboxRepo = inbox.NewMemory()
	}

	lockers := []lock.Locker{lock.NewKeyed()}
	var weekCache cache.WeekCache = cache.Nop{}
	var rateLimit, writeLimit httpx.Middleware
	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120, 1)
	writesPerMinute := config.Int("WRITE_RATE_LIMIT_PER_MINUTE", 30, 1)
	writeKey := auth.SubjectKey(httpx.ClientIP)
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0, 0),
		})
		defer func() { _ = rdb.Close() }()

		lockers = append(lockers, lock.NewRedis(rdb, lock.RedisOptions{
			TTL:  config.Duration("SCHEDULE_LOCK_TTL", 10*time.Second, time.Second),
			Wait: config.Duration("SCHEDULE_LOCK_WAIT", 5*time.Second, time.Second),
		}, logger))
		weekCache = cache.NewRedis(rdb, cache.RedisOptions{
			TTL: config.Duration("WEEK_CACHE_TTL", 10*time.Minute, time.Second),
		}, logger)
		prefix := config.String("RATE_LIMIT_PREFIX", "rl:schedule")
		failOpen := config.Bool("RATE_LIMIT_FAIL_OPEN", true)
		rateLimit = httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, prefix, nil).Middleware(logger, failOpen)
		writeLimit = httpx.NewRedisRateLimiter(rdb, writesPerMinute, time.Minute, prefix+":write", writeKey).Middleware(logger, failOpen)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		logger.Info("redis enabled", "addr", addr)
	} else {
		rateLimit = httpx.NewRateLimiter(limitPerMinute, time.Minute, nil).Middleware()
		writeLimit = httpx.NewRateLimiter(writesPerMinute, time.Minute, writeKey).Middleware()
	}

	var sinks []notify.Sink
	if url := config.String("RABBITMQ_URL", ""); url != "" {
		sink, err := notify.NewAMQPSink(url, config.String("RABBITMQ_EXCHANGE", notify.DefaultExchange), logger)
		if err != nil {
			logger.Error("rabbitmq sink init failed; continuing without it", "err", err)
		} else {
			defer func() { _ = sink.Close() }()
			sinks = append(sinks, sink)
		}
	}
	hub := notify.NewHub(logger, config.Int("SSE_BUFFER", 16, 1), sinks...)

	queries := query.NewService(store, engine, pendingReader, weekCache, query.Config{DefaultTimezone: defaultTZ}, logger)
	mutations := mutation.NewService(store, engine, pendingReader, mutation.Options{
		DefaultTimezone: defaultTZ,
		Locker:          lock.Chain(lockers...),
		Cache:           weekCache,
		Notifier:        hub,
		Logger:          logger,
	})

	topics := feed.Topics{
		Created:   config.String("KAFKA_BOOKING_CREATED_TOPIC", "booking.created.v1"),
		Cancelled: config.String("KAFKA_BOOKING_CANCELLED_TOPIC", "booking.cancelled.v1"),
	}
	if strings.TrimSpace(brokers) != "" {
		bookingFeed := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", service),
			Topics:  []string{topics.Created, topics.Cancelled},
		}, feed.Handler(mutations, topics, logger))
		go bookingFeed.Run(ctx)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	verifier, err := newVerifier(logger)
	if err != nil {
		panic(err)
	}

	grpcChecks, err := startGRPC(ctx, logger)
	if err != nil {
		logger.Error("grpc setup failed", "err", err)
	}
	readyChecks = append(readyChecks, grpcChecks...)

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	handlers.NewScheduleHandler(queries, mutations, hub, logger).LimitWrites(writeLimit).Register(mux, verifier)

	cors := httpx.CORSPolicyFromEnv()
	httpHandler := httpx.Chain(mux,
		httpx.WithCORSRoutes(cors,
			httpx.CORSRoute{Match: httpx.PathSuffix("/events"), Policy: httpx.StreamCORSPolicy(cors)},
			httpx.CORSRoute{Match: httpx.PathSuffix(".ics"), Policy: httpx.CalendarCORSPolicy(cors)},
		),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20, 1))),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT_SECONDS", 10*time.Second, time.Second), isStream),
		rateLimit,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "schedule")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	runtime.ServeHTTP(ctx, srv, logger, 10*time.Second)
}

// isStream exempts the SSE endpoint from the request timeout.
func isStream(r *http.Request) bool {
	return strings.HasSuffix(r.URL.Path, "/events")
}

// newVerifier returns nil when neither JWT_HS256_SECRET nor JWKS_URL is set, which leaves the
// write routes open for local development.
func newVerifier(logger *slog.Logger) (*auth.Verifier, error) {
	opts := auth.VerifierOptions{
		HS256Secret: config.String("JWT_HS256_SECRET", ""),
		Issuer:      config.String("JWT_ISSUER", ""),
		Leeway:      config.Duration("JWT_LEEWAY_SECONDS", 30*time.Second, time.Second),
	}
	if jwksURL := config.String("JWKS_URL", ""); jwksURL != "" {
		opts.Keys = auth.NewJWKSClient(jwksURL, config.Duration("JWKS_CACHE_SECONDS", 5*time.Minute, time.Second))
	}
	if opts.HS256Secret == "" && opts.Keys == nil {
		logger.Warn("no JWT secret or JWKS configured; schedule writes are unauthenticated")
		return nil, nil
	}
	return auth.NewVerifier(opts)
}
