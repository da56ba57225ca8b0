package analysis

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/chatlog-analyzer/internal/application"
	domain "github.com/bryanwahyu/chatlog-analyzer/internal/domain/analysis"
)

// ReportAnalyzer is the single-call analysis port the Service drives.
type ReportAnalyzer interface {
	Analyze(ctx context.Context, chatLog, instructorNames string) (domain.Report, error)
}

// Service runs analyses for tenants and keeps their results.
// Failures and Archive are optional.
type Service struct {
	Analyzer ReportAnalyzer
	Repo     domain.Repository
	Failures domain.FailureRepository
	Archive  domain.Archive
	Clock    application.Clock
	Provider string
	Model    string
	Log      logrus.FieldLogger
}

// AnalyzeCommand is the input of AnalyzeAndStore.
type AnalyzeCommand struct {
	ChatLog         string
	InstructorNames string
}

// AnalyzeAndStore runs one analysis. A successful report is archived and saved; a failed one
// is recorded and its classified error returned unchanged.
func (s *Service) AnalyzeAndStore(ctx context.Context, tenant string, cmd AnalyzeCommand) (*domain.Record, error) {
	log := s.logger().WithField("tenant", tenant)

	report, err := s.Analyzer.Analyze(ctx, cmd.ChatLog, cmd.InstructorNames)
	if err != nil {
		s.recordFailure(ctx, tenant, err)
		return nil, err
	}

	id := uuid.New().String()
	rec := &domain.Record{
		ID:              domain.RecordID(id),
		TenantID:        tenant,
		InstructorNames: cmd.InstructorNames,
		Provider:        s.Provider,
		Model:           s.Model,
		Report:          report.Raw,
		CreatedAt:       s.Clock.Now(),
	}

	if s.Archive != nil {
		rec.ChatLogKey = fmt.Sprintf("%s/%s/chatlog.txt", tenant, id)
		rec.ReportKey = fmt.Sprintf("%s/%s/report.json", tenant, id)
		if err := s.Archive.PutText(ctx, rec.ChatLogKey, cmd.ChatLog); err != nil {
			return nil, fmt.Errorf("archive chat log: %w", err)
		}
		if err := s.Archive.PutJSON(ctx, rec.ReportKey, report.Raw); err != nil {
			return nil, fmt.Errorf("archive report: %w", err)
		}
	}

	if err := s.Repo.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save analysis: %w", err)
	}
	log.WithField("id", id).Info("analysis stored")
	return rec, nil
}

// Get returns one stored analysis.
func (s *Service) Get(ctx context.Context, tenant string, id domain.RecordID) (*domain.Record, error) {
	return s.Repo.Get(ctx, tenant, id)
}

// ChatLog returns the archived transcript of a stored analysis. It is ErrNotFound when the
// record does not exist or was saved without an archive.
func (s *Service) ChatLog(ctx context.Context, tenant string, id domain.RecordID) ([]byte, error) {
	rec, err := s.Repo.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if s.Archive == nil || rec.ChatLogKey == "" {
		return nil, fmt.Errorf("chat log of %s not archived: %w", id, domain.ErrNotFound)
	}
	return s.Archive.Get(ctx, rec.ChatLogKey)
}

// List returns stored analyses, newest first.
func (s *Service) List(ctx context.Context, tenant string, page, pageSize int) (domain.PaginatedResult, error) {
	return s.Repo.Paginate(ctx, tenant, page, pageSize)
}

// RecentFailures returns the latest failed analyses, or nothing when failures are not kept.
func (s *Service) RecentFailures(ctx context.Context, tenant string, limit int) ([]*domain.Failure, error) {
	if s.Failures == nil {
		return []*domain.Failure{}, nil
	}
	return s.Failures.List(ctx, tenant, limit)
}

func (s *Service) recordFailure(ctx context.Context, tenant string, cause error) {
	if s.Failures == nil {
		return
	}
	f := &domain.Failure{
		TenantID:  tenant,
		Kind:      domain.KindOf(cause).String(),
		Message:   cause.Error(),
		CreatedAt: s.Clock.Now(),
	}
	// the failure may itself be a cancellation of ctx
	if err := s.Failures.Save(context.WithoutCancel(ctx), f); err != nil {
		s.logger().WithError(err).WithField("tenant", tenant).Warn("failed to record analysis failure")
	}
}

func (s *Service) logger() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}
