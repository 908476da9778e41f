package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver
)

// DB wraps the sql connection pool shared by all repositories.
type DB struct {
	*sql.DB
}

// New opens a Postgres connection pool and verifies it with a ping.
func New(databaseURL string) (*DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			_ = closeErr
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Migrate applies the schema. Statements are idempotent so Migrate is safe
// to run on every startup.
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d failed: %w", i, err)
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		api_key_hash TEXT NOT NULL UNIQUE,
		retention_periods INT NOT NULL DEFAULT 2,
		custom_prompt TEXT NOT NULL DEFAULT '',
		auto_respond_threshold DOUBLE PRECISION NOT NULL DEFAULT 0.6,
		conversation_count BIGINT NOT NULL DEFAULT 0,
		message_count BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id UUID PRIMARY KEY,
		tenant_id UUID NOT NULL REFERENCES tenants(id),
		name TEXT NOT NULL DEFAULT '',
		external_id TEXT NOT NULL DEFAULT '',
		profile_summary TEXT NOT NULL DEFAULT '',
		preferences JSONB NOT NULL DEFAULT '{}',
		tags TEXT[] NOT NULL DEFAULT '{}',
		insights TEXT[] NOT NULL DEFAULT '{}',
		profile_updated_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_customers_tenant ON customers(tenant_id)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id UUID PRIMARY KEY,
		tenant_id UUID NOT NULL REFERENCES tenants(id),
		customer_id UUID NOT NULL REFERENCES customers(id),
		period_key TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'current',
		category TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL DEFAULT 'normal',
		tags TEXT[] NOT NULL DEFAULT '{}',
		subject TEXT NOT NULL DEFAULT '',
		message_count INT NOT NULL DEFAULT 0,
		last_message_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_customer_state_period
		ON conversations(customer_id, state, period_key)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_tenant_state
		ON conversations(tenant_id, state)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id UUID PRIMARY KEY,
		conversation_id UUID NOT NULL REFERENCES conversations(id),
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		platform TEXT NOT NULL DEFAULT '',
		ts TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation_ts
		ON messages(conversation_id, ts)`,
	`CREATE TABLE IF NOT EXISTS summaries (
		id UUID PRIMARY KEY,
		tenant_id UUID NOT NULL REFERENCES tenants(id),
		customer_id UUID NOT NULL REFERENCES customers(id),
		period_key TEXT NOT NULL,
		summary_text TEXT NOT NULL,
		message_count INT NOT NULL DEFAULT 0,
		conversation_count INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (customer_id, period_key)
	)`,
	`CREATE TABLE IF NOT EXISTS learning_records (
		id UUID PRIMARY KEY,
		tenant_id UUID NOT NULL REFERENCES tenants(id),
		customer_id UUID NOT NULL,
		conversation_id UUID,
		input_text TEXT NOT NULL DEFAULT '',
		platform TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		sentiment TEXT NOT NULL DEFAULT '',
		confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		context_quality INT NOT NULL DEFAULT 0,
		context_messages INT NOT NULL DEFAULT 0,
		context_summaries INT NOT NULL DEFAULT 0,
		had_custom_prompt BOOLEAN NOT NULL DEFAULT false,
		responded BOOLEAN NOT NULL DEFAULT false,
		response_text TEXT NOT NULL DEFAULT '',
		latency_ms BIGINT NOT NULL DEFAULT 0,
		feedback JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_learning_records_tenant_created
		ON learning_records(tenant_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS failure_analyses (
		id UUID PRIMARY KEY,
		tenant_id UUID NOT NULL REFERENCES tenants(id),
		learning_record_id UUID NOT NULL REFERENCES learning_records(id),
		causes TEXT[] NOT NULL DEFAULT '{}',
		actions TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (learning_record_id)
	)`,
}
