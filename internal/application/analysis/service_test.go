package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	domain "github.com/bryanwahyu/chatlog-analyzer/internal/domain/analysis"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeAnalyzer struct {
	report domain.Report
	err    error
	calls  int
}

func (f *fakeAnalyzer) Analyze(context.Context, string, string) (domain.Report, error) {
	f.calls++
	return f.report, f.err
}

type memRepo struct {
	mu      sync.Mutex
	records []*domain.Record
	saveErr error
}

func (m *memRepo) Save(_ context.Context, r *domain.Record) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

func (m *memRepo) Get(_ context.Context, tenant string, id domain.RecordID) (*domain.Record, error) {
	for _, r := range m.records {
		if r.TenantID == tenant && r.ID == id {
			return r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memRepo) Paginate(_ context.Context, tenant string, page, pageSize int) (domain.PaginatedResult, error) {
	var out []*domain.Record
	for _, r := range m.records {
		if r.TenantID == tenant {
			out = append(out, r)
		}
	}
	return domain.PaginatedResult{Data: out, Page: page, PageSize: pageSize, Total: int64(len(out)), TotalPages: 1}, nil
}

type memFailures struct {
	saved []*domain.Failure
	ctxOK bool
}

func (m *memFailures) Save(ctx context.Context, f *domain.Failure) error {
	m.ctxOK = ctx.Err() == nil
	m.saved = append(m.saved, f)
	return nil
}

func (m *memFailures) List(_ context.Context, tenant string, limit int) ([]*domain.Failure, error) {
	return m.saved, nil
}

type memArchive struct {
	objects map[string][]byte
	err     error
}

func (m *memArchive) PutText(_ context.Context, key, text string) error {
	if m.err != nil {
		return m.err
	}
	m.objects[key] = []byte(text)
	return nil
}

func (m *memArchive) PutJSON(_ context.Context, key string, raw []byte) error {
	if m.err != nil {
		return m.err
	}
	m.objects[key] = raw
	return nil
}

func (m *memArchive) Get(_ context.Context, key string) ([]byte, error) {
	b, ok := m.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return b, nil
}

var now = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newService(an ReportAnalyzer) (*Service, *memRepo, *memFailures, *memArchive) {
	logger, _ := test.NewNullLogger()
	repo := &memRepo{}
	failures := &memFailures{}
	archive := &memArchive{objects: map[string][]byte{}}
	return &Service{
		Analyzer: an,
		Repo:     repo,
		Failures: failures,
		Archive:  archive,
		Clock:    fixedClock{now},
		Provider: "gemini",
		Model:    "gemini-2.5-pro",
		Log:      logger,
	}, repo, failures, archive
}

func TestAnalyzeAndStore(t *testing.T) {
	report, _ := domain.ParseReport(`{"summary":"fine"}`)
	svc, repo, failures, archive := newService(&fakeAnalyzer{report: report})

	rec, err := svc.AnalyzeAndStore(context.Background(), "acme", AnalyzeCommand{ChatLog: "a: hi", InstructorNames: "Host"})
	if err != nil {
		t.Fatalf("AnalyzeAndStore: %v", err)
	}
	if rec.TenantID != "acme" || rec.InstructorNames != "Host" || rec.Provider != "gemini" || rec.Model != "gemini-2.5-pro" {
		t.Errorf("record = %+v", rec)
	}
	if !rec.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v", rec.CreatedAt)
	}
	if string(rec.Report) != `{"summary":"fine"}` {
		t.Errorf("Report = %s", rec.Report)
	}
	if len(repo.records) != 1 {
		t.Fatalf("saved %d records", len(repo.records))
	}
	if len(failures.saved) != 0 {
		t.Errorf("unexpected failures recorded: %d", len(failures.saved))
	}

	wantLog := "acme/" + string(rec.ID) + "/chatlog.txt"
	wantReport := "acme/" + string(rec.ID) + "/report.json"
	if rec.ChatLogKey != wantLog || rec.ReportKey != wantReport {
		t.Errorf("keys = %q %q", rec.ChatLogKey, rec.ReportKey)
	}
	if string(archive.objects[wantLog]) != "a: hi" {
		t.Errorf("archived chat log = %q", archive.objects[wantLog])
	}
	if !json.Valid(archive.objects[wantReport]) {
		t.Errorf("archived report is not JSON: %s", archive.objects[wantReport])
	}
}

func TestAnalyzeAndStore_NoArchive(t *testing.T) {
	report, _ := domain.ParseReport(`{}`)
	svc, repo, _, _ := newService(&fakeAnalyzer{report: report})
	svc.Archive = nil

	rec, err := svc.AnalyzeAndStore(context.Background(), "acme", AnalyzeCommand{ChatLog: "x"})
	if err != nil {
		t.Fatalf("AnalyzeAndStore: %v", err)
	}
	if rec.ChatLogKey != "" || rec.ReportKey != "" {
		t.Errorf("keys should be empty without archive: %+v", rec)
	}
	if len(repo.records) != 1 {
		t.Errorf("saved %d records", len(repo.records))
	}
}

func TestAnalyzeAndStore_AnalysisFailure(t *testing.T) {
	cause := &domain.Error{Kind: domain.KindEmptyResponse}
	svc, repo, failures, _ := newService(&fakeAnalyzer{err: cause})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.AnalyzeAndStore(ctx, "acme", AnalyzeCommand{ChatLog: "x"})
	if err != cause {
		t.Fatalf("error should be returned unchanged, got %v", err)
	}
	if len(repo.records) != 0 {
		t.Error("failed analysis must not be saved as a record")
	}
	if len(failures.saved) != 1 {
		t.Fatalf("failures = %d", len(failures.saved))
	}
	f := failures.saved[0]
	if f.Kind != "empty_response" || f.TenantID != "acme" || f.Message != cause.Error() {
		t.Errorf("failure = %+v", f)
	}
	if !failures.ctxOK {
		t.Error("failure should be recorded with a live context")
	}
}

func TestAnalyzeAndStore_ArchiveError(t *testing.T) {
	report, _ := domain.ParseReport(`{}`)
	svc, repo, _, archive := newService(&fakeAnalyzer{report: report})
	archive.err = errors.New("bucket gone")

	_, err := svc.AnalyzeAndStore(context.Background(), "acme", AnalyzeCommand{ChatLog: "x"})
	if err == nil || !errors.Is(err, archive.err) {
		t.Fatalf("err = %v", err)
	}
	if len(repo.records) != 0 {
		t.Error("record should not be saved when archiving fails")
	}
}

func TestAnalyzeAndStore_SaveError(t *testing.T) {
	report, _ := domain.ParseReport(`{}`)
	svc, repo, _, _ := newService(&fakeAnalyzer{report: report})
	repo.saveErr = errors.New("db down")

	_, err := svc.AnalyzeAndStore(context.Background(), "acme", AnalyzeCommand{})
	if !errors.Is(err, repo.saveErr) {
		t.Errorf("err = %v", err)
	}
}

func TestGetAndList(t *testing.T) {
	report, _ := domain.ParseReport(`{}`)
	svc, _, _, _ := newService(&fakeAnalyzer{report: report})

	rec, _ := svc.AnalyzeAndStore(context.Background(), "acme", AnalyzeCommand{})
	svc.AnalyzeAndStore(context.Background(), "other", AnalyzeCommand{})

	got, err := svc.Get(context.Background(), "acme", rec.ID)
	if err != nil || got.ID != rec.ID {
		t.Errorf("Get = %v, %v", got, err)
	}
	if _, err := svc.Get(context.Background(), "other", rec.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("cross-tenant Get err = %v", err)
	}

	page, err := svc.List(context.Background(), "acme", 1, 20)
	if err != nil || page.Total != 1 {
		t.Errorf("List = %+v, %v", page, err)
	}
}

func TestRecentFailures_Disabled(t *testing.T) {
	svc, _, _, _ := newService(&fakeAnalyzer{})
	svc.Failures = nil
	got, err := svc.RecentFailures(context.Background(), "acme", 10)
	if err != nil || got == nil || len(got) != 0 {
		t.Errorf("RecentFailures = %v, %v", got, err)
	}
}

func TestChatLog(t *testing.T) {
	report, _ := domain.ParseReport(`{}`)
	svc, _, _, _ := newService(&fakeAnalyzer{report: report})
	ctx := context.Background()

	rec, err := svc.AnalyzeAndStore(ctx, "acme", AnalyzeCommand{ChatLog: "[10:00] Ana: hi"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := svc.ChatLog(ctx, "acme", rec.ID)
	if err != nil || string(got) != "[10:00] Ana: hi" {
		t.Errorf("ChatLog = %q, %v", got, err)
	}
	if _, err := svc.ChatLog(ctx, "acme", "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing record err = %v", err)
	}

	svc.Archive = nil
	bare, err := svc.AnalyzeAndStore(ctx, "acme", AnalyzeCommand{ChatLog: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ChatLog(ctx, "acme", bare.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unarchived record err = %v", err)
	}
}
