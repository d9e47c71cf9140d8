package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"tokenhold/internal/certificate"
	certpostgres "tokenhold/internal/certificate/store/postgres"
	"tokenhold/internal/eligibility"
	"tokenhold/internal/hold"
	holdmetrics "tokenhold/internal/hold/metrics"
	holdpostgres "tokenhold/internal/hold/store/postgres"
	"tokenhold/internal/hooks"
	jwttoken "tokenhold/internal/jwt_token"
	"tokenhold/internal/ledger"
	"tokenhold/internal/platform/config"
	"tokenhold/internal/platform/httpserver"
	"tokenhold/internal/platform/kafka"
	"tokenhold/internal/platform/logger"
	"tokenhold/internal/platform/metrics"
	"tokenhold/internal/platform/postgres"
	"tokenhold/internal/platform/ratelimit"
	redisclient "tokenhold/internal/platform/redis"
	"tokenhold/internal/signature"
	"tokenhold/internal/tokensetup"
	setuppostgres "tokenhold/internal/tokensetup/store/postgres"
	"tokenhold/internal/transfer"
	httptransport "tokenhold/internal/transport/http"
	audit "tokenhold/pkg/platform/audit"
	"tokenhold/pkg/platform/audit/publisher"
	kafkapublisher "tokenhold/pkg/platform/audit/publishers/kafka"
	auditmemory "tokenhold/pkg/platform/audit/store/memory"
	auditredis "tokenhold/pkg/platform/audit/store/redis"
	"tokenhold/pkg/platform/circuit"
	"tokenhold/pkg/platform/tx"
)

const (
	jwtAudience     = "tokenhold-api"
	auditBufferSize = 1024
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logging.Format, cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

type stores struct {
	holds        hold.Store
	certificates certificate.Store
	setups       tokensetup.Store
	eligibility  eligibility.Store
	pool         *pgxpool.Pool
	closers      []func()
}

type auditSinks struct {
	emitter *publisher.Publisher
	kafka   *kgo.Client
	redis   *redisclient.Client
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	st, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range st.closers {
			c()
		}
	}()

	sinks, err := buildAudit(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer sinks.close()

	reg := prometheus.NewRegistry()
	appMetrics := metrics.New(reg)

	runnerOpts := []tx.Option{tx.WithTimeout(cfg.TxTimeout)}
	if st.pool != nil {
		runnerOpts = append(runnerOpts, tx.WithPool(st.pool))
	}
	runner := tx.NewRunner(runnerOpts...)

	// The base ledger is an external collaborator; the server runs against
	// the in-memory reference ledger.
	baseLedger := ledger.NewMemory()

	setups, err := tokensetup.New(st.setups, baseLedger, runner,
		tokensetup.WithLogger(log),
		tokensetup.WithAuditPublisher(sinks.emitter),
		tokensetup.WithMetrics(appMetrics),
	)
	if err != nil {
		return fmt.Errorf("token setup service: %w", err)
	}
	verifier := signature.NewVerifier(signature.WithStrictRecoveryID(cfg.Certificates.StrictRecoveryID))
	certs, err := certificate.New(st.certificates, setups, verifier, runner,
		certificate.WithDomain(certificate.Domain{ChainID: cfg.Certificates.ChainID, Name: cfg.Certificates.DomainName}),
		certificate.WithLogger(log),
		certificate.WithAuditPublisher(sinks.emitter),
	)
	if err != nil {
		return fmt.Errorf("certificate validator: %w", err)
	}
	lists, err := eligibility.New(st.eligibility, setups, runner,
		eligibility.WithLogger(log),
		eligibility.WithAuditPublisher(sinks.emitter),
	)
	if err != nil {
		return fmt.Errorf("eligibility service: %w", err)
	}

	balances := hold.NewBalances(st.holds, baseLedger)
	gate, err := transfer.New(baseLedger, setups, certs, lists, balances, runner,
		transfer.WithHooks(hooks.NewRegistry()),
		transfer.WithLogger(log),
		transfer.WithAuditPublisher(sinks.emitter),
		transfer.WithMetrics(appMetrics),
	)
	if err != nil {
		return fmt.Errorf("transfer gate: %w", err)
	}
	holds, err := hold.New(st.holds, baseLedger, setups, certs, gate, runner,
		hold.WithLogger(log),
		hold.WithAuditPublisher(sinks.emitter),
		hold.WithMetrics(holdmetrics.New(reg)),
	)
	if err != nil {
		return fmt.Errorf("hold service: %w", err)
	}

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, jwtAudience)
	handler, err := httptransport.New(holds, balances, gate, setups, certs, lists, log)
	if err != nil {
		return fmt.Errorf("http handler: %w", err)
	}
	requestTimeout := cfg.TxTimeout * 2
	var limiter *ratelimit.Window
	if cfg.Server.RateLimitPerMinute > 0 {
		limiter = ratelimit.NewWindow(cfg.Server.RateLimitPerMinute, time.Minute)
	}
	router := httptransport.NewRouter(handler, httptransport.RouterConfig{
		Logger:         log,
		JWTValidator:   jwttoken.NewJWTServiceAdapter(jwtService),
		Metrics:        appMetrics,
		Gatherer:       prometheus.Gatherers{reg, prometheus.DefaultGatherer},
		AdminToken:     cfg.Server.AdminToken,
		RequestTimeout: requestTimeout,
		HealthChecks:   healthChecks(st, sinks),
		RateLimit:      limiter,
	})
	srv := httpserver.New(cfg.Server.Addr, router, requestTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting tokenhold", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
		defer cancel()
		log.Info("shutting down", "grace", cfg.Server.ShutdownGrace.String())
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildStores picks postgres when DATABASE_URL is set and the in-memory
// stores otherwise.
func buildStores(ctx context.Context, cfg config.Config, log *slog.Logger) (*stores, error) {
	if cfg.Postgres.URL == "" {
		log.Warn("DATABASE_URL not set, state is kept in memory")
		return &stores{
			holds:        hold.NewInMemoryStore(),
			certificates: certificate.NewInMemoryStore(),
			setups:       tokensetup.NewInMemoryStore(),
			eligibility:  eligibility.NewInMemoryStore(),
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres.URL, cfg.Postgres.MaxConns)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	db, err := sql.Open("postgres", cfg.Postgres.URL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("open eligibility database: %w", err)
	}
	return &stores{
		holds:        holdpostgres.New(pool),
		certificates: certpostgres.New(pool),
		setups:       setuppostgres.New(pool),
		eligibility:  eligibility.NewPostgres(db),
		pool:         pool,
		closers:      []func(){func() { _ = db.Close() }, pool.Close},
	}, nil
}

// buildAudit fans audit events out to every configured sink behind one
// async publisher. With no sink configured events stay in memory.
func buildAudit(ctx context.Context, cfg config.Config, log *slog.Logger) (*auditSinks, error) {
	sinks := &auditSinks{}
	var fan audit.Fanout

	rc, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		sinks.redis = rc
		fan = append(fan, auditredis.NewStreamStore(rc.Client, auditredis.WithMaxLen(cfg.Redis.StreamMaxLen)))
	}

	kc, err := kafka.NewClient(cfg.Kafka)
	if err != nil {
		sinks.close()
		return nil, err
	}
	if kc != nil {
		sinks.kafka = kc
		if err := kafka.EnsureTopic(ctx, kc, cfg.Kafka.Topic, cfg.Kafka.Partitions); err != nil {
			sinks.close()
			return nil, err
		}
		pub, err := kafkapublisher.New(kc, cfg.Kafka.Topic,
			kafkapublisher.WithLogger(log),
			kafkapublisher.WithBreaker(circuit.New("kafka-audit", circuit.WithCooldown(30*time.Second))),
		)
		if err != nil {
			sinks.close()
			return nil, err
		}
		fan = append(fan, pub)
	}

	if len(fan) == 0 {
		fan = append(fan, auditmemory.NewInMemoryStore())
	}
	sinks.emitter = publisher.NewPublisher(fan, publisher.WithAsyncBuffer(auditBufferSize))
	return sinks, nil
}

func (s *auditSinks) close() {
	if s.emitter != nil {
		s.emitter.Close()
	}
	if s.kafka != nil {
		s.kafka.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
}

func healthChecks(st *stores, sinks *auditSinks) map[string]httptransport.HealthCheck {
	checks := map[string]httptransport.HealthCheck{}
	if st.pool != nil {
		checks["postgres"] = st.pool.Ping
	}
	if sinks.redis != nil {
		checks["redis"] = sinks.redis.Health
	}
	if sinks.kafka != nil {
		checks["kafka"] = sinks.kafka.Ping
	}
	return checks
}
