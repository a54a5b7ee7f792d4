// Command server runs the boreal decision-core API.
//
// Wiring lives here: config, stores (postgres or in-memory), the audit
// pipeline and the HTTP router. Business logic stays in internal packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"boreal/internal/agent"
	agentstore "boreal/internal/agent/store"
	agentmemory "boreal/internal/agent/store/memory"
	agentpostgres "boreal/internal/agent/store/postgres"
	agentredis "boreal/internal/agent/store/redis"
	"boreal/internal/billing"
	billingmemory "boreal/internal/billing/store/memory"
	billingpostgres "boreal/internal/billing/store/postgres"
	caseservice "boreal/internal/casefile/service"
	casestore "boreal/internal/casefile/store"
	casememory "boreal/internal/casefile/store/memory"
	casepostgres "boreal/internal/casefile/store/postgres"
	"boreal/internal/configbundle"
	"boreal/internal/evaluation"
	httpapi "boreal/internal/http"
	"boreal/internal/lifecycle"
	"boreal/internal/platform/config"
	"boreal/internal/platform/httpserver"
	"boreal/internal/platform/logger"
	"boreal/internal/platform/metrics"
	"boreal/internal/platform/middleware"
	platformredis "boreal/internal/platform/redis"
	"boreal/internal/tasks"
	taskstore "boreal/internal/tasks/store"
	tasksmemory "boreal/internal/tasks/store/memory"
	taskspostgres "boreal/internal/tasks/store/postgres"
	audit "boreal/pkg/platform/audit"
	auditkafka "boreal/pkg/platform/audit/kafka"
	"boreal/pkg/platform/audit/outbox"
	"boreal/pkg/platform/audit/publisher"
	auditmemory "boreal/pkg/platform/audit/store/memory"
	auditpostgres "boreal/pkg/platform/audit/store/postgres"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

type stores struct {
	cases     casestore.CaseStore
	snapshots casestore.SnapshotStore
	events    casestore.EventStore
	documents casestore.DocumentStore
	tenants   casestore.TenantStore
	tasks     taskstore.TaskStore
	sessions  agentstore.SessionStore
	actions   agentstore.ActionStore
	usage     billing.UsageStore
	audit     audit.Store
}

func run(cfg config.Server, log *slog.Logger) error {
	bundle, err := configbundle.Load(cfg.DomainDir)
	if err != nil {
		return err
	}
	configbundle.SetCurrent(bundle)
	log.Info("domain config loaded", "version", bundle.Version(), "hash", bundle.Hash())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		st stores
		db *sql.DB
	)
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}

		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()

		st = stores{
			cases:     casepostgres.NewCaseStore(db),
			snapshots: casepostgres.NewSnapshotStore(db),
			events:    casepostgres.NewEventStore(db),
			documents: casepostgres.NewDocumentStore(db),
			tenants:   casepostgres.NewTenantStore(db),
			tasks:     taskspostgres.NewTaskStore(db),
			sessions:  agentpostgres.NewSessionStore(db),
			actions:   agentpostgres.NewActionStore(db),
			usage:     billingpostgres.NewUsageStore(pool),
			audit:     auditpostgres.New(db),
		}
	} else {
		log.Warn("POSTGRES_DSN not set, using in-memory stores")
		st = stores{
			cases:     casememory.NewCaseStore(),
			snapshots: casememory.NewSnapshotStore(),
			events:    casememory.NewEventStore(),
			documents: casememory.NewDocumentStore(),
			tenants:   casememory.NewTenantStore(),
			tasks:     tasksmemory.NewTaskStore(),
			sessions:  agentmemory.NewSessionStore(),
			actions:   agentmemory.NewActionStore(),
			usage:     billingmemory.NewUsageStore(),
			audit:     auditmemory.NewInMemoryStore(),
		}
	}

	var throttle agentstore.ThrottleStore = agentmemory.NewThrottleStore()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		throttle = agentredis.NewThrottleStore(redisClient.Client)
		log.Info("agent throttle backed by redis")
	}

	auditPub := publisher.NewPublisher(st.audit, publisher.WithAsyncBuffer(1024))
	defer auditPub.Close()

	bundleFn := configbundle.Current
	billingSvc := billing.NewService(st.usage, bundleFn,
		billing.WithAudit(auditPub), billing.WithLogger(log))

	caseOpts := []caseservice.Option{caseservice.WithAudit(auditPub), caseservice.WithLogger(log)}
	lifecycleOpts := []lifecycle.Option{lifecycle.WithAudit(auditPub), lifecycle.WithLogger(log)}
	if db != nil {
		caseOpts = append(caseOpts, caseservice.WithDB(db))
		lifecycleOpts = append(lifecycleOpts, lifecycle.WithDB(db))
	}

	handler := httpapi.NewHandler(httpapi.Config{
		Cases:      caseservice.NewService(st.cases, st.snapshots, st.events, st.documents, st.tenants, billingSvc, caseOpts...),
		Lifecycle:  lifecycle.NewService(st.cases, st.snapshots, st.events, lifecycleOpts...),
		Evaluation: evaluation.NewService(st.cases, st.tenants, billingSvc, bundleFn, evaluation.WithAudit(auditPub), evaluation.WithLogger(log)),
		Tasks:      tasks.NewService(st.tasks, tasks.WithLogger(log)),
		Agent:      agent.NewService(st.sessions, st.actions, throttle, st.tenants, billingSvc, agent.WithAudit(auditPub), agent.WithLogger(log)),
		Billing:    billingSvc,
		Bundle:     bundleFn,
		DomainDir:  cfg.DomainDir,
		AdminToken: cfg.AdminToken,
		Metrics:    metrics.New(),
		Audit:      auditPub,
		Logger:     log,
	})

	router := httpapi.NewRouter(handler, middleware.NewValidator(cfg.JWTSigningKey))
	srv := httpserver.New(cfg.Addr, router)

	group, ctx := errgroup.WithContext(ctx)

	if len(cfg.Kafka.Brokers) > 0 && db != nil {
		kafkaOpts := []auditkafka.Option{auditkafka.WithLogger(log)}
		if cfg.Kafka.Topic != "" {
			kafkaOpts = append(kafkaOpts, auditkafka.WithTopic(cfg.Kafka.Topic))
		}
		sink, err := auditkafka.New(cfg.Kafka.Brokers, kafkaOpts...)
		if err != nil {
			return err
		}
		defer sink.Close()

		relay := outbox.New(db, sink, outbox.WithLogger(log))
		group.Go(func() error {
			if err := relay.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		log.Info("audit outbox relay started", "brokers", cfg.Kafka.Brokers)
	}

	group.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
