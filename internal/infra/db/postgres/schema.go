package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS chatlog_analyses (
  id               TEXT        PRIMARY KEY,
  tenant_id        TEXT        NOT NULL,
  instructor_names TEXT        NOT NULL,
  chat_log_key     TEXT        NOT NULL DEFAULT '',
  report_key       TEXT        NOT NULL DEFAULT '',
  provider         TEXT        NOT NULL,
  model            TEXT        NOT NULL,
  report_json      JSONB       NOT NULL,
  created_at       TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_chatlog_analyses_tenant_created ON chatlog_analyses (tenant_id, created_at DESC)`,
	`
CREATE TABLE IF NOT EXISTS chatlog_analysis_failures (
  id         BIGSERIAL   PRIMARY KEY,
  tenant_id  TEXT        NOT NULL,
  kind       TEXT        NOT NULL,
  message    TEXT        NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_chatlog_analysis_failures_tenant_created ON chatlog_analysis_failures (tenant_id, created_at DESC)`,
}

// Migrate creates the tables used by the repositories when they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
