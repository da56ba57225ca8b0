package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	domain "github.com/bryanwahyu/chatlog-analyzer/internal/domain/analysis"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Save inserts or updates an analysis record
func (r *AnalysisRepository) Save(ctx context.Context, a *domain.Record) error {
	const q = `
INSERT INTO chatlog_analyses
  (id, tenant_id, instructor_names, chat_log_key, report_key, provider, model, report_json, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  chat_log_key=EXCLUDED.chat_log_key,
  report_key=EXCLUDED.report_key,
  report_json=EXCLUDED.report_json;
`
	report := string(a.Report)
	if strings.TrimSpace(report) == "" {
		report = "{}"
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		a.ID, stringOrDash(a.TenantID), a.InstructorNames, a.ChatLogKey, a.ReportKey,
		stringOrDash(a.Provider), stringOrDash(a.Model), report, createdAt,
	)
	return err
}

const selectColumns = `
SELECT id, tenant_id, instructor_names, chat_log_key, report_key, provider, model, report_json, created_at
FROM chatlog_analyses`

// Get returns one analysis or domain.ErrNotFound
func (r *AnalysisRepository) Get(ctx context.Context, tenant string, id domain.RecordID) (*domain.Record, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE tenant_id=$1 AND id=$2 LIMIT 1;`, tenant, id)
	var a domain.Record
	var report []byte
	if err := row.Scan(&a.ID, &a.TenantID, &a.InstructorNames, &a.ChatLogKey, &a.ReportKey,
		&a.Provider, &a.Model, &report, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	a.Report = report
	return &a, nil
}

// Paginate returns a page of analysis records ordered by created_at desc
func (r *AnalysisRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) (domain.PaginatedResult, error) {
	page, pageSize, offset := pageBounds(page, pageSize)

	rows, err := r.db.QueryContext(ctx,
		selectColumns+` WHERE tenant_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3;`,
		tenant, pageSize, offset)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("querying analyses: %w", err)
	}
	defer rows.Close()

	out := []*domain.Record{}
	for rows.Next() {
		var a domain.Record
		var report []byte
		if err := rows.Scan(&a.ID, &a.TenantID, &a.InstructorNames, &a.ChatLogKey, &a.ReportKey,
			&a.Provider, &a.Model, &report, &a.CreatedAt); err != nil {
			return domain.PaginatedResult{}, fmt.Errorf("scanning row: %w", err)
		}
		a.Report = report
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("iterating rows: %w", err)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chatlog_analyses WHERE tenant_id=$1`, tenant).Scan(&total); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("getting total count: %w", err)
	}

	return domain.PaginatedResult{
		Data:       out,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}
