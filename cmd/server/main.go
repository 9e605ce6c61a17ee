// Command server runs the conforma quality workflow API: nonconformance
// reports, the material review board, and corrective actions.
//
// main only wires dependencies and owns the process lifecycle. Postgres,
// Redis, and Kafka are all optional: without them the service runs on
// in-memory stores with log-only notifications, which is how development
// and the test suites run it.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	capahandler "conforma/internal/capa/handler"
	capametrics "conforma/internal/capa/metrics"
	capaservice "conforma/internal/capa/service"
	capastore "conforma/internal/capa/store"
	jwttoken "conforma/internal/jwt_token"
	mrbhandler "conforma/internal/mrb/handler"
	mrbservice "conforma/internal/mrb/service"
	mrbstore "conforma/internal/mrb/store"
	ncrhandler "conforma/internal/ncr/handler"
	ncrmetrics "conforma/internal/ncr/metrics"
	ncrservice "conforma/internal/ncr/service"
	ncrstore "conforma/internal/ncr/store"
	"conforma/internal/notify"
	"conforma/internal/platform/config"
	"conforma/internal/platform/httpserver"
	"conforma/internal/platform/kafka"
	"conforma/internal/platform/logger"
	"conforma/internal/platform/metrics"
	"conforma/internal/platform/middleware"
	"conforma/internal/platform/postgres"
	redisplatform "conforma/internal/platform/redis"
	audit "conforma/pkg/platform/audit"
	auditpublisher "conforma/pkg/platform/audit/publisher"
	auditmemory "conforma/pkg/platform/audit/store/memory"
	auditpostgres "conforma/pkg/platform/audit/store/postgres"
	tx "conforma/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Document stores. An empty CONFORMA_POSTGRES_URL keeps everything in
	// memory.
	var db *sql.DB
	if cfg.Postgres.URL != "" {
		var err error
		db, err = postgres.Open(cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()

		if cfg.Postgres.Migrate {
			migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := ensureSchemas(migrateCtx, db); err != nil {
				return err
			}
		}
		log.Info("postgres document store ready")
	} else {
		log.Info("no postgres configured, using in-memory stores")
	}

	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Quality event pipeline: every trail event lands in the audit store
	// and streams to Kafka when brokers are configured.
	var sink audit.Sink
	var producer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafka.NewProducer(cfg.Kafka, log)
		if err != nil {
			return err
		}
		defer producer.Close()
		sink = kafka.NewEventSink(producer)
		log.Info("kafka event sink ready", "topic", cfg.Kafka.EventsTopic)
	}

	var auditStore audit.Store
	if db != nil {
		auditStore = auditpostgres.New(db)
	} else {
		auditStore = auditmemory.NewInMemoryStore()
	}
	publisherOpts := []auditpublisher.Option{
		auditpublisher.WithLogger(log),
		auditpublisher.WithAsyncBuffer(256),
	}
	if sink != nil {
		publisherOpts = append(publisherOpts, auditpublisher.WithSink(sink))
	}
	publisher := auditpublisher.NewPublisher(auditStore, publisherOpts...)
	defer publisher.Close()

	var notifier notify.Notifier
	if redisClient != nil {
		notifier = notify.NewRedisNotifier(redisClient.Client, cfg.Redis.NotifyChannel)
		log.Info("redis notification fanout ready", "channel", cfg.Redis.NotifyChannel)
	} else {
		notifier = notify.NewLogNotifier(log)
	}

	var (
		ncrStore ncrservice.NCRStore
		mrbStore mrbservice.MRBStore
		capaSt   capaservice.CAPAStore
		txRunner tx.Runner
	)
	if db != nil {
		ncrStore = ncrstore.NewPostgres(db)
		mrbStore = mrbstore.NewPostgres(db)
		capaSt = capastore.NewPostgres(db)
		txRunner = tx.NewSQLRunner(db, 5*time.Second)
	} else {
		ncrStore = ncrstore.NewInMemoryStore()
		mrbStore = mrbstore.NewInMemoryStore()
		capaSt = capastore.NewInMemoryStore()
		txRunner = tx.NewMemoryRunner()
	}

	httpMetrics := metrics.New()

	capaSvc := capaservice.New(capaSt,
		capaservice.WithLogger(log),
		capaservice.WithAuditPublisher(publisher),
		capaservice.WithNotifier(notifier),
		capaservice.WithMetrics(capametrics.New()),
		capaservice.WithReviewLead(cfg.Workflow.CAPAReviewLead),
	)
	ncrSvc := ncrservice.New(ncrStore, mrbStore, txRunner,
		ncrservice.WithLogger(log),
		ncrservice.WithAuditPublisher(publisher),
		ncrservice.WithNotifier(notifier),
		ncrservice.WithMetrics(ncrmetrics.New()),
		ncrservice.WithCAPAGenerator(capaSvc),
		ncrservice.WithQuorum(cfg.Workflow.DispositionQuorum),
	)
	mrbSvc := mrbservice.New(mrbStore, ncrSvc,
		mrbservice.WithLogger(log),
		mrbservice.WithAuditPublisher(publisher),
	)

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	tokenValidator := jwttoken.NewJWTServiceAdapter(jwtService)

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.ClientMetadata)
	router.Use(middleware.Logger(log))
	router.Use(middleware.LatencyMiddleware(httpMetrics))
	router.Use(middleware.Timeout(cfg.HTTP.RequestTimeout))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.ActorContext(tokenValidator, log))

	ncrhandler.New(ncrSvc, publisher, log).Register(router)
	mrbhandler.New(mrbSvc, ncrSvc, log,
		mrbhandler.WithAdminMiddleware(middleware.RequireAdminToken(cfg.Auth.AdminToken, log)),
	).Register(router)
	capahandler.New(capaSvc, log).Register(router)

	router.Get("/healthz", healthHandler(db, redisClient, producer))
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.HTTP.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting conforma server",
			"addr", cfg.HTTP.Addr,
			"quorum", cfg.Workflow.DispositionQuorum,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ensureSchemas applies every document-store schema. Each statement is
// CREATE IF NOT EXISTS, so reruns are harmless.
func ensureSchemas(ctx context.Context, db *sql.DB) error {
	for _, ensure := range []func(context.Context, *sql.DB) error{
		ncrstore.EnsureSchema,
		mrbstore.EnsureSchema,
		capastore.EnsureSchema,
		auditpostgres.EnsureSchema,
	} {
		if err := ensure(ctx, db); err != nil {
			return err
		}
	}
	return nil
}

// healthHandler reports liveness plus the state of each optional backend. A
// degraded backend keeps the endpoint 200: the service still serves from
// whatever it has, and the scheduler should not restart it over a flaky
// broker.
func healthHandler(db *sql.DB, redisClient *redisplatform.Client, producer *kafka.Producer) http.HandlerFunc {
	type health struct {
		Status   string            `json:"status"`
		Backends map[string]string `json:"backends"`
	}
	check := func(ctx context.Context, h *health, name string, ping func(context.Context) error) {
		if ping == nil {
			h.Backends[name] = "not configured"
			return
		}
		if err := ping(ctx); err != nil {
			h.Backends[name] = "unreachable"
			h.Status = "degraded"
			return
		}
		h.Backends[name] = "ok"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		h := health{Status: "ok", Backends: map[string]string{}}
		var dbPing, redisPing, kafkaPing func(context.Context) error
		if db != nil {
			dbPing = db.PingContext
		}
		if redisClient != nil {
			redisPing = redisClient.Health
		}
		if producer != nil {
			kafkaPing = producer.Health
		}
		check(ctx, &h, "postgres", dbPing)
		check(ctx, &h, "redis", redisPing)
		check(ctx, &h, "kafka", kafkaPing)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(h)
	}
}
