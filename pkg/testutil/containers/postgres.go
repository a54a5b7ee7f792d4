//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers Postgres instance with an open pool
// and the schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts Postgres and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("boreal_test"),
		tcpostgres.WithUsername("boreal"),
		tcpostgres.WithPassword("boreal"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres pool: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	// Note: no t.Cleanup here; the container is managed by the singleton
	// Manager and shared across suites. Ryuk handles cleanup.

	return &PostgresContainer{Container: container, DSN: dsn, DB: db}
}

// TruncateTables truncates the given tables. Use between tests for isolation.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	query := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(tables, ", "))
	if _, err := p.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS tenants (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	plan TEXT NOT NULL DEFAULT 'starter',
	metadata JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS cases (
	id UUID PRIMARY KEY,
	tenant_id UUID NOT NULL,
	status TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	created_by UUID,
	profile JSONB,
	program_eligibility JSONB,
	crs_breakdown JSONB,
	required_artifacts JSONB,
	config_fingerprint TEXT NOT NULL DEFAULT '',
	automation_eligible BOOLEAN NOT NULL DEFAULT FALSE,
	deleted BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cases_tenant ON cases(tenant_id);

CREATE TABLE IF NOT EXISTS case_snapshots (
	id UUID PRIMARY KEY,
	tenant_id UUID NOT NULL,
	case_id UUID NOT NULL,
	version INT NOT NULL,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (tenant_id, case_id, version)
);

CREATE TABLE IF NOT EXISTS case_events (
	id UUID PRIMARY KEY,
	tenant_id UUID NOT NULL,
	case_id UUID NOT NULL,
	event_type TEXT NOT NULL,
	actor_id UUID,
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_case_events_case ON case_events(tenant_id, case_id);

CREATE TABLE IF NOT EXISTS case_documents (
	id UUID PRIMARY KEY,
	tenant_id UUID NOT NULL,
	case_id UUID NOT NULL,
	document_type TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	filename TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'uploaded',
	uploaded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_case_documents_case ON case_documents(tenant_id, case_id);

CREATE TABLE IF NOT EXISTS outbox (
	id UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	published_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS audit_events (
	id UUID PRIMARY KEY,
	category TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	tenant_id UUID,
	case_id UUID,
	actor_id UUID,
	subject TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL,
	decision TEXT NOT NULL DEFAULT '',
	reason TEXT NOT NULL DEFAULT '',
	request_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS case_tasks (
	id UUID PRIMARY KEY,
	tenant_id UUID NOT NULL,
	case_id UUID NOT NULL,
	title TEXT NOT NULL,
	status TEXT NOT NULL,
	assignee UUID,
	due_at TIMESTAMPTZ,
	reminder_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_case_tasks_case ON case_tasks(tenant_id, case_id);

CREATE TABLE IF NOT EXISTS case_task_deps (
	tenant_id UUID NOT NULL,
	task_id UUID NOT NULL,
	depends_on UUID NOT NULL,
	PRIMARY KEY (tenant_id, task_id, depends_on)
);

CREATE TABLE IF NOT EXISTS agent_sessions (
	id UUID PRIMARY KEY,
	tenant_id UUID NOT NULL,
	case_id UUID NOT NULL,
	agent_name TEXT NOT NULL,
	status TEXT NOT NULL,
	started_by UUID,
	idempotency_key TEXT NOT NULL DEFAULT '',
	context JSONB NOT NULL DEFAULT '{}',
	started_at TIMESTAMPTZ NOT NULL,
	ended_at TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_agent_sessions_idem
	ON agent_sessions(tenant_id, idempotency_key) WHERE idempotency_key <> '';

CREATE TABLE IF NOT EXISTS agent_actions (
	id UUID PRIMARY KEY,
	tenant_id UUID NOT NULL,
	session_id UUID NOT NULL,
	action_type TEXT NOT NULL,
	status TEXT NOT NULL,
	auto_mode BOOLEAN NOT NULL DEFAULT FALSE,
	idempotency_key TEXT NOT NULL DEFAULT '',
	payload JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_agent_actions_idem
	ON agent_actions(tenant_id, idempotency_key) WHERE idempotency_key <> '';
CREATE INDEX IF NOT EXISTS idx_agent_actions_session ON agent_actions(tenant_id, session_id);

CREATE TABLE IF NOT EXISTS billing_usage (
	tenant_id UUID NOT NULL,
	event TEXT NOT NULL,
	month TEXT NOT NULL,
	count BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (tenant_id, event, month)
);
`
