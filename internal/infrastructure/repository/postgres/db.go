package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
)

const schemaLockKey int64 = 2026101601

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates every table the advisor uses. embedDimensions fixes
// the width of the chunk embedding column.
func EnsureSchema(ctx context.Context, db *sql.DB, embedDimensions int) error {
	if embedDimensions <= 0 {
		return fmt.Errorf("embed dimensions must be positive, got %d", embedDimensions)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Worker and CLI may start concurrently.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(schemaDDL, embedDimensions)); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS uploaded_policies (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL UNIQUE,
	insurer TEXT NOT NULL,
	label TEXT NOT NULL DEFAULT '',
	storage_path TEXT NOT NULL,
	status TEXT NOT NULL,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_uploaded_policies_insurer ON uploaded_policies(lower(insurer), status);

CREATE TABLE IF NOT EXISTS policy_chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES uploaded_policies(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	page_number INTEGER NOT NULL,
	section_type TEXT NOT NULL,
	content TEXT NOT NULL,
	embedding vector(%d) NOT NULL,
	content_tsv tsvector GENERATED ALWAYS AS (to_tsvector('english', content)) STORED
);
CREATE INDEX IF NOT EXISTS idx_policy_chunks_document ON policy_chunks(document_id, section_type);
CREATE INDEX IF NOT EXISTS idx_policy_chunks_tsv ON policy_chunks USING GIN (content_tsv);

CREATE TABLE IF NOT EXISTS catalog_policies (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	insurer TEXT NOT NULL,
	policy_type TEXT NOT NULL,
	premium_min DOUBLE PRECISION NOT NULL DEFAULT 0,
	attributes JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	session_name TEXT NOT NULL DEFAULT '',
	context JSONB NOT NULL DEFAULT '{}'::jsonb,
	version BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	mode TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, created_at DESC);
`

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func ensureAffected(res sql.Result, kind error, op, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return wrapNotFound(kind, op, id)
	}
	return nil
}

func wrapNotFound(kind error, op, id string) error {
	return domain.WrapError(kind, op, fmt.Errorf("id=%s", id))
}
