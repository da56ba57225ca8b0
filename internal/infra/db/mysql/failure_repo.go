package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	domain "github.com/bryanwahyu/chatlog-analyzer/internal/domain/analysis"
)

type FailureRepository struct {
	db *sql.DB
}

func NewFailureRepository(db *sql.DB) *FailureRepository { return &FailureRepository{db: db} }

func (r *FailureRepository) Save(ctx context.Context, f *domain.Failure) error {
	const q = `
INSERT INTO chatlog_analysis_failures
  (tenant_id, kind, message, created_at)
VALUES (?,?,?,?)
`
	msg := f.Message
	if strings.TrimSpace(msg) == "" {
		msg = "-"
	}
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := r.db.ExecContext(ctx, q, stringOrDash(f.TenantID), stringOrDash(f.Kind), msg, created)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		f.ID = id
	}
	return nil
}

func (r *FailureRepository) List(ctx context.Context, tenant string, limit int) ([]*domain.Failure, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, kind, message, created_at
FROM chatlog_analysis_failures
WHERE tenant_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Failure{}
	for rows.Next() {
		var f domain.Failure
		if err := rows.Scan(&f.ID, &f.TenantID, &f.Kind, &f.Message, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}
