package mysql

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS chatlog_analyses (
  id               VARCHAR(64)  NOT NULL PRIMARY KEY,
  tenant_id        VARCHAR(64)  NOT NULL,
  instructor_names TEXT         NOT NULL,
  chat_log_key     VARCHAR(255) NOT NULL DEFAULT '',
  report_key       VARCHAR(255) NOT NULL DEFAULT '',
  provider         VARCHAR(32)  NOT NULL,
  model            VARCHAR(128) NOT NULL,
  report_json      JSON         NOT NULL,
  created_at       DATETIME(6)  NOT NULL,
  INDEX idx_chatlog_analyses_tenant_created (tenant_id, created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, `
CREATE TABLE IF NOT EXISTS chatlog_analysis_failures (
  id         BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
  tenant_id  VARCHAR(64)  NOT NULL,
  kind       VARCHAR(32)  NOT NULL,
  message    TEXT         NOT NULL,
  created_at DATETIME(6)  NOT NULL,
  INDEX idx_chatlog_analysis_failures_tenant_created (tenant_id, created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
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
