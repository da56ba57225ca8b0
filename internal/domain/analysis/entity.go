package analysis

import (
	"encoding/json"
	"time"
)

// Request is the caller-supplied input for one analysis. No size limit is enforced here.
type Request struct {
	ChatLog         string `json:"chat_log"`
	InstructorNames string `json:"instructor_names"`
}

// Report is the parsed analysis document returned by the model. Its shape is owned by the
// configured response schema; only JSON syntax is checked.
type Report struct {
	Raw  json.RawMessage
	Data any
}

// ParseReport decodes text as a single JSON document.
func ParseReport(text string) (Report, error) {
	var data any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return Report{}, err
	}
	return Report{Raw: json.RawMessage(text), Data: data}, nil
}

// MarshalJSON emits the report exactly as the model produced it.
func (r Report) MarshalJSON() ([]byte, error) {
	if len(r.Raw) == 0 {
		return []byte("null"), nil
	}
	return r.Raw, nil
}

// RecordID identifier type
type RecordID string

// Record is a stored analysis, kept for auditing and retrieval.
type Record struct {
	ID              RecordID        `json:"id"`
	TenantID        string          `json:"tenant_id"`
	InstructorNames string          `json:"instructor_names"`
	ChatLogKey      string          `json:"chat_log_key,omitempty"`
	ReportKey       string          `json:"report_key,omitempty"`
	Provider        string          `json:"provider"`
	Model           string          `json:"model"`
	Report          json.RawMessage `json:"report"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Failure is a persisted failed analysis attempt.
type Failure struct {
	ID        int64     `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// PaginatedResult represents a paginated response with data and metadata
type PaginatedResult struct {
	Data       []*Record `json:"data"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	Total      int64     `json:"totalItems"`
	TotalPages int       `json:"totalPages"`
}
