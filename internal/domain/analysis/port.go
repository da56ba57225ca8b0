package analysis

import "context"

// Repository port for persisting and querying analyses
type Repository interface {
	Save(ctx context.Context, r *Record) error
	Get(ctx context.Context, tenant string, id RecordID) (*Record, error)
	Paginate(ctx context.Context, tenant string, page, pageSize int) (PaginatedResult, error)
}

// FailureRepository defines persistence for failed analyses
type FailureRepository interface {
	Save(ctx context.Context, f *Failure) error
	List(ctx context.Context, tenant string, limit int) ([]*Failure, error)
}

// Archive stores transcripts and reports as objects.
type Archive interface {
	PutText(ctx context.Context, key, text string) error
	PutJSON(ctx context.Context, key string, raw []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}
