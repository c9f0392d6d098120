package audit

import (
	"context"
	"time"

	"toolgate/internal/domain"
)

// UpdateFields carries the completion data applied to a pending record.
type UpdateFields struct {
	Status      domain.AuditStatus
	CompletedAt time.Time
	DurationMs  int64
	Error       string
}

// Store persists audit records. Implementations must refuse to overwrite
// a record that already reached a terminal status.
type Store interface {
	Insert(ctx context.Context, record domain.AuditRecord) error
	Update(ctx context.Context, id string, fields UpdateFields) error
	Get(ctx context.Context, id string) (domain.AuditRecord, error)
	List(ctx context.Context, limit int) ([]domain.AuditRecord, error)
	ListPending(ctx context.Context) ([]domain.AuditRecord, error)
	Close() error
}
