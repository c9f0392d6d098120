package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"toolgate/internal/domain"
	"toolgate/internal/infra/telemetry"
)

// Ledger records every governed tool call attempt. Records are inserted
// synchronously as PENDING before the call runs; completions flow through
// a bounded queue served by a fixed writer pool so slow disks never stall
// the call path.
type Ledger struct {
	store   Store
	logger  *zap.Logger
	metrics domain.Metrics
	now     func() time.Time

	queue  chan completionJob
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

type completionJob struct {
	id     string
	fields UpdateFields
}

// BeginFields describes the call attempt being opened.
type BeginFields struct {
	TraceID  string
	UserID   string
	ToolName string
	Action   domain.AuditAction
	// Arguments are redacted before storage.
	Arguments map[string]any
}

// Completion closes a pending record.
type Completion struct {
	Status   domain.AuditStatus
	Error    string
	Duration time.Duration
}

type Options struct {
	Config  domain.AuditConfig
	Logger  *zap.Logger
	Metrics domain.Metrics
	Now     func() time.Time
}

func NewLedger(store Store, opts Options) *Ledger {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	cfg := opts.Config
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = domain.DefaultAuditQueueSize
	}
	if cfg.Writers <= 0 {
		cfg.Writers = domain.DefaultAuditWriters
	}
	l := &Ledger{
		store:   store,
		logger:  logger.Named("audit"),
		metrics: opts.Metrics,
		now:     now,
		queue:   make(chan completionJob, cfg.QueueSize),
	}
	for range cfg.Writers {
		l.wg.Add(1)
		go l.writer()
	}
	return l
}

// Begin opens a PENDING record and returns its id. The insert is
// synchronous: the record must exist before the call it describes runs.
func (l *Ledger) Begin(ctx context.Context, fields BeginFields) (string, error) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return "", domain.ErrLedgerClosed
	}

	action := fields.Action
	if action == "" {
		action = domain.AuditActionToolCall
	}
	record := domain.AuditRecord{
		ID:        uuid.NewString(),
		TraceID:   fields.TraceID,
		UserID:    fields.UserID,
		ToolName:  fields.ToolName,
		Action:    action,
		Arguments: RedactArgs(fields.Arguments),
		Status:    domain.AuditStatusPending,
		CreatedAt: l.now().UTC(),
	}
	if err := l.store.Insert(ctx, record); err != nil {
		return "", err
	}
	return record.ID, nil
}

// Complete moves a pending record to a terminal status. The write is
// queued; when the queue is full it falls back to an inline synchronous
// write rather than dropping the completion.
func (l *Ledger) Complete(id string, completion Completion) {
	if id == "" {
		return
	}
	fields := UpdateFields{
		Status:      completion.Status,
		Error:       completion.Error,
		CompletedAt: l.now().UTC(),
		DurationMs:  completion.Duration.Milliseconds(),
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.apply(completionJob{id: id, fields: fields})
		return
	}
	select {
	case l.queue <- completionJob{id: id, fields: fields}:
		l.mu.Unlock()
		l.observeDepth()
	default:
		l.mu.Unlock()
		l.logger.Warn("audit queue full, writing completion inline",
			telemetry.RecordIDField(id))
		l.apply(completionJob{id: id, fields: fields})
	}
}

// SweepStale reconciles PENDING records older than cutoff to UNKNOWN.
// Run at startup so crash-abandoned records do not read as in flight
// forever. Returns how many records were reconciled.
func (l *Ledger) SweepStale(ctx context.Context, olderThan time.Duration) (int, error) {
	pending, err := l.store.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := l.now().UTC().Add(-olderThan)
	swept := 0
	for _, record := range pending {
		if !record.CreatedAt.Before(cutoff) {
			continue
		}
		err := l.store.Update(ctx, record.ID, UpdateFields{
			Status:      domain.AuditStatusUnknown,
			Error:       "outcome lost, reconciled at startup",
			CompletedAt: l.now().UTC(),
		})
		if err != nil {
			l.logger.Warn("stale audit record reconciliation failed",
				telemetry.EventField(telemetry.EventAuditWriteError),
				telemetry.RecordIDField(record.ID),
				zap.Error(err))
			continue
		}
		swept++
	}
	if swept > 0 {
		l.logger.Info("stale audit records reconciled", zap.Int("count", swept))
	}
	return swept, nil
}

// Close drains queued completions and stops the writer pool. The store
// itself is closed by its owner.
func (l *Ledger) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()
	l.wg.Wait()
}

func (l *Ledger) writer() {
	defer l.wg.Done()
	for job := range l.queue {
		l.apply(job)
		l.observeDepth()
	}
}

func (l *Ledger) apply(job completionJob) {
	if err := l.store.Update(context.Background(), job.id, job.fields); err != nil {
		l.logger.Warn("audit completion write failed",
			telemetry.EventField(telemetry.EventAuditWriteError),
			telemetry.RecordIDField(job.id),
			zap.Error(err))
	}
}

func (l *Ledger) observeDepth() {
	if l.metrics != nil {
		l.metrics.SetAuditQueueDepth(len(l.queue))
	}
}
