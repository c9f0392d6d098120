package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"toolgate/internal/domain"
)

var recordsBucket = []byte("records")

// BoltStore persists audit records in a single-file bbolt database.
type BoltStore struct {
	db   *bolt.DB
	path string
}

func OpenBoltStore(path string) (*BoltStore, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("audit db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("ensure audit dir: %w", err)
	}
	db, err := bolt.Open(trimmed, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure audit schema: %w", err)
	}
	return &BoltStore{db: db, path: trimmed}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Insert(ctx context.Context, record domain.AuditRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record.ID == "" {
		return domain.E(domain.CodeInvalidArgument, "audit.insert", "record id is required", nil)
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(recordsBucket)
		if bucket.Get([]byte(record.ID)) != nil {
			return domain.E(domain.CodeConflict, "audit.insert",
				fmt.Sprintf("audit record %s already exists", record.ID), nil)
		}
		return bucket.Put([]byte(record.ID), raw)
	})
}

// Update applies completion fields inside a single read-modify-write
// transaction. Records that already reached a terminal status are left
// untouched.
func (s *BoltStore) Update(ctx context.Context, id string, fields UpdateFields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(recordsBucket)
		raw := bucket.Get([]byte(id))
		if raw == nil {
			return domain.E(domain.CodeNotFound, "audit.update",
				fmt.Sprintf("audit record %s not found", id), nil)
		}
		var record domain.AuditRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return fmt.Errorf("decode audit record %s: %w", id, err)
		}
		if record.Status.Terminal() {
			return domain.E(domain.CodeConflict, "audit.update",
				fmt.Sprintf("audit record %s already completed as %s", id, record.Status), nil)
		}
		record.Status = fields.Status
		record.Error = fields.Error
		record.DurationMs = fields.DurationMs
		if !fields.CompletedAt.IsZero() {
			completed := fields.CompletedAt
			record.CompletedAt = &completed
		}
		encoded, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("encode audit record %s: %w", id, err)
		}
		return bucket.Put([]byte(id), encoded)
	})
}

func (s *BoltStore) Get(ctx context.Context, id string) (domain.AuditRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.AuditRecord{}, err
	}
	var record domain.AuditRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(recordsBucket).Get([]byte(id))
		if raw == nil {
			return domain.E(domain.CodeNotFound, "audit.get",
				fmt.Sprintf("audit record %s not found", id), nil)
		}
		return json.Unmarshal(raw, &record)
	})
	return record, err
}

// List returns records newest first, capped at limit when limit is
// positive.
func (s *BoltStore) List(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	records, err := s.scan(ctx, func(domain.AuditRecord) bool { return true })
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (s *BoltStore) ListPending(ctx context.Context) ([]domain.AuditRecord, error) {
	return s.scan(ctx, func(record domain.AuditRecord) bool {
		return record.Status == domain.AuditStatusPending
	})
}

func (s *BoltStore) scan(ctx context.Context, keep func(domain.AuditRecord) bool) ([]domain.AuditRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var records []domain.AuditRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(recordsBucket).ForEach(func(_, value []byte) error {
			var record domain.AuditRecord
			if err := json.Unmarshal(value, &record); err != nil {
				return fmt.Errorf("decode audit record: %w", err)
			}
			if keep(record) {
				records = append(records, record)
			}
			return nil
		})
	})
	return records, err
}
