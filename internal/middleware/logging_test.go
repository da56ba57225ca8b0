package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestLoggingLevels(t *testing.T) {
	tests := []struct {
		status int
		level  logrus.Level
	}{
		{http.StatusOK, logrus.InfoLevel},
		{http.StatusNotFound, logrus.WarnLevel},
		{http.StatusBadGateway, logrus.ErrorLevel},
	}
	for _, tt := range tests {
		logger, hook := test.NewNullLogger()
		h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte("body"))
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/acme/chatlogs/analyze", nil))

		entry := hook.LastEntry()
		if entry == nil {
			t.Fatalf("status %d: no log entry", tt.status)
		}
		if entry.Level != tt.level {
			t.Errorf("status %d: level = %v, want %v", tt.status, entry.Level, tt.level)
		}
		if entry.Data["status"] != tt.status || entry.Data["bytes"] != int64(4) {
			t.Errorf("status %d: fields = %v", tt.status, entry.Data)
		}
	}
}

type stubBucket struct {
	exists bool
	err    error
}

func (b stubBucket) BucketExists(context.Context) (bool, error) { return b.exists, b.err }

func TestStorageHealthChecker(t *testing.T) {
	tests := []struct {
		name    string
		bucket  stubBucket
		wantErr bool
	}{
		{"present", stubBucket{exists: true}, false},
		{"missing", stubBucket{}, true},
		{"unreachable", stubBucket{err: errors.New("dial tcp: refused")}, true},
	}
	for _, tt := range tests {
		err := (&StorageHealthChecker{Store: tt.bucket}).Check(context.Background())
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Check() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestHealthHandler(t *testing.T) {
	h := HealthHandler(map[string]HealthChecker{
		"archive": &StorageHealthChecker{Store: stubBucket{exists: true}},
		"storage": &StorageHealthChecker{Store: stubBucket{err: errors.New("bucket gone")}},
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Checks["storage"].Message != "bucket gone" || body.Checks["archive"].Status != "healthy" {
		t.Errorf("checks = %+v", body.Checks)
	}
}

func TestMetricsCounters(t *testing.T) {
	before := GetMetrics()
	done := StartAnalysis()
	if got := GetMetrics()["analyses_running"].(uint64); got != before["analyses_running"].(uint64)+1 {
		t.Errorf("analyses_running = %d", got)
	}
	done(true)
	after := GetMetrics()
	if after["analyses_total"].(uint64) != before["analyses_total"].(uint64)+1 {
		t.Errorf("analyses_total not incremented")
	}
	if after["analyses_failed"].(uint64) != before["analyses_failed"].(uint64)+1 {
		t.Errorf("analyses_failed not incremented")
	}

	h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	if GetMetrics()["requests_failed"].(uint64) != after["requests_failed"].(uint64)+1 {
		t.Errorf("requests_failed not incremented")
	}
}
