package mysql

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

// Save inserts an analysis record
func (r *AnalysisRepository) Save(ctx context.Context, a *domain.Record) error {
	const q = `
INSERT INTO chatlog_analyses
  (id, tenant_id, instructor_names, chat_log_key, report_key, provider, model, report_json, created_at)
VALUES (?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  chat_log_key=VALUES(chat_log_key), report_key=VALUES(report_key), report_json=VALUES(report_json);
`
	tenant := stringOrDash(a.TenantID)
	report := string(a.Report)
	if strings.TrimSpace(report) == "" {
		// report_json column requires valid JSON; use empty object
		report = "{}"
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, q,
		a.ID, tenant, a.InstructorNames, a.ChatLogKey, a.ReportKey,
		stringOrDash(a.Provider), stringOrDash(a.Model), report, createdAt,
	)
	return err
}

const selectColumns = `
SELECT id, tenant_id, instructor_names, chat_log_key, report_key, provider, model, report_json, created_at
FROM chatlog_analyses`

// Get by ID + Tenant
func (r *AnalysisRepository) Get(ctx context.Context, tenant string, id domain.RecordID) (*domain.Record, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE tenant_id=? AND id=? LIMIT 1;`, tenant, id)
	a, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

// Paginate returns a page of analysis records ordered by created_at desc
func (r *AnalysisRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) (domain.PaginatedResult, error) {
	page, pageSize, offset := pageBounds(page, pageSize)

	rows, err := r.db.QueryContext(ctx,
		selectColumns+` WHERE tenant_id=? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?;`,
		tenant, pageSize, offset)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("querying analyses: %w", err)
	}
	defer rows.Close()

	out := []*domain.Record{}
	for rows.Next() {
		a, err := scanRecord(rows)
		if err != nil {
			return domain.PaginatedResult{}, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("iterating rows: %w", err)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chatlog_analyses WHERE tenant_id=?`, tenant).Scan(&total); err != nil {
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	var a domain.Record
	var report []byte
	if err := row.Scan(&a.ID, &a.TenantID, &a.InstructorNames, &a.ChatLogKey, &a.ReportKey,
		&a.Provider, &a.Model, &report, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Report = report
	return &a, nil
}
