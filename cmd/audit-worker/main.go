// Command audit-worker consumes the Kafka audit stream and materializes
// events into the audit_events table. Run it alongside the API server;
// consumer-group membership makes multiple replicas safe.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"boreal/internal/platform/config"
	"boreal/internal/platform/logger"
	audit "boreal/pkg/platform/audit"
	"boreal/pkg/platform/audit/consumer"
	auditpostgres "boreal/pkg/platform/audit/store/postgres"
)

const (
	defaultTopic = "boreal.audit.events"
	group        = "boreal-audit-worker"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("audit worker exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	if cfg.PostgresDSN == "" {
		return errors.New("POSTGRES_DSN is required")
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	topic := cfg.Kafka.Topic
	if topic == "" {
		topic = defaultTopic
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	archive := auditpostgres.New(db)

	// Keep every compliance and security event; sample routine ops events.
	sampler := consumer.NewSampler(0.1)
	sampler.SetRate(string(audit.EventConfigReloaded), 1.0)

	router := consumer.NewRouter(log, consumer.NewComplianceHandler(archive, log))
	router.Register(audit.CategoryCompliance, consumer.NewComplianceHandler(archive, log))
	router.Register(audit.CategorySecurity, consumer.NewSecurityHandler(archive, log))
	router.Register(audit.CategoryOperations, consumer.NewOpsHandler(archive, sampler, log))

	c, err := consumer.New(cfg.Kafka.Brokers, topic, group, router, log)
	if err != nil {
		return err
	}
	defer c.Close()

	log.Info("audit worker consuming", "topic", topic, "group", group)
	return c.Run(ctx)
}
