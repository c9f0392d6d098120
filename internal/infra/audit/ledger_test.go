package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"toolgate/internal/domain"
)

type memStore struct {
	mu      sync.Mutex
	records map[string]domain.AuditRecord
}

func newMemStore() *memStore {
	return &memStore{records: map[string]domain.AuditRecord{}}
}

func (m *memStore) Insert(_ context.Context, record domain.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.ID]; ok {
		return domain.E(domain.CodeConflict, "memstore.insert", "duplicate id", nil)
	}
	m.records[record.ID] = record
	return nil
}

func (m *memStore) Update(_ context.Context, id string, fields UpdateFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return domain.E(domain.CodeNotFound, "memstore.update", "not found", nil)
	}
	if record.Status.Terminal() {
		return domain.E(domain.CodeConflict, "memstore.update", "already terminal", nil)
	}
	record.Status = fields.Status
	record.Error = fields.Error
	record.DurationMs = fields.DurationMs
	if !fields.CompletedAt.IsZero() {
		completed := fields.CompletedAt
		record.CompletedAt = &completed
	}
	m.records[id] = record
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (domain.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return domain.AuditRecord{}, domain.E(domain.CodeNotFound, "memstore.get", "not found", nil)
	}
	return record, nil
}

func (m *memStore) List(_ context.Context, _ int) ([]domain.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AuditRecord, 0, len(m.records))
	for _, record := range m.records {
		out = append(out, record)
	}
	return out, nil
}

func (m *memStore) ListPending(_ context.Context) ([]domain.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AuditRecord
	for _, record := range m.records {
		if record.Status == domain.AuditStatusPending {
			out = append(out, record)
		}
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

func TestLedger_BeginWritesPendingRecord(t *testing.T) {
	store := newMemStore()
	ledger := NewLedger(store, Options{})
	defer ledger.Close()

	id, err := ledger.Begin(context.Background(), BeginFields{
		TraceID:   "trace-1",
		UserID:    "alice",
		ToolName:  "toggle_light",
		Arguments: map[string]any{"room": "kitchen", "api_key": "sk-1"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	record, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, domain.AuditStatusPending, record.Status)
	require.Equal(t, domain.AuditActionToolCall, record.Action)
	require.Equal(t, "kitchen", record.Arguments["room"])
	require.Equal(t, "***", record.Arguments["api_key"])
	require.False(t, record.CreatedAt.IsZero())
}

func TestLedger_CompleteReachesTerminalStatus(t *testing.T) {
	store := newMemStore()
	ledger := NewLedger(store, Options{})

	id, err := ledger.Begin(context.Background(), BeginFields{ToolName: "toggle_light"})
	require.NoError(t, err)

	ledger.Complete(id, Completion{
		Status:   domain.AuditStatusSuccess,
		Duration: 250 * time.Millisecond,
	})
	ledger.Close()

	record, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, domain.AuditStatusSuccess, record.Status)
	require.Equal(t, int64(250), record.DurationMs)
	require.NotNil(t, record.CompletedAt)
}

func TestLedger_CompleteAfterCloseWritesInline(t *testing.T) {
	store := newMemStore()
	ledger := NewLedger(store, Options{})

	id, err := ledger.Begin(context.Background(), BeginFields{ToolName: "toggle_light"})
	require.NoError(t, err)
	ledger.Close()

	ledger.Complete(id, Completion{Status: domain.AuditStatusFailure, Error: "boom"})

	record, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, domain.AuditStatusFailure, record.Status)
	require.Equal(t, "boom", record.Error)
}

func TestLedger_BeginAfterCloseFails(t *testing.T) {
	ledger := NewLedger(newMemStore(), Options{})
	ledger.Close()

	_, err := ledger.Begin(context.Background(), BeginFields{ToolName: "toggle_light"})
	require.ErrorIs(t, err, domain.ErrLedgerClosed)
}

func TestLedger_CloseDrainsQueuedCompletions(t *testing.T) {
	store := newMemStore()
	ledger := NewLedger(store, Options{Config: domain.AuditConfig{QueueSize: 64, Writers: 1}})

	ids := make([]string, 0, 20)
	for range 20 {
		id, err := ledger.Begin(context.Background(), BeginFields{ToolName: "toggle_light"})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	for _, id := range ids {
		ledger.Complete(id, Completion{Status: domain.AuditStatusSuccess})
	}
	ledger.Close()

	pending, err := store.ListPending(context.Background())
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestLedger_SweepStaleReconcilesOldPending(t *testing.T) {
	store := newMemStore()
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ledger := NewLedger(store, Options{Now: func() time.Time { return current }})
	defer ledger.Close()

	staleID, err := ledger.Begin(context.Background(), BeginFields{ToolName: "toggle_light"})
	require.NoError(t, err)

	current = current.Add(2 * time.Hour)
	freshID, err := ledger.Begin(context.Background(), BeginFields{ToolName: "play_music"})
	require.NoError(t, err)

	swept, err := ledger.SweepStale(context.Background(), time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, swept)

	stale, err := store.Get(context.Background(), staleID)
	require.NoError(t, err)
	require.Equal(t, domain.AuditStatusUnknown, stale.Status)

	fresh, err := store.Get(context.Background(), freshID)
	require.NoError(t, err)
	require.Equal(t, domain.AuditStatusPending, fresh.Status)
}

func TestLedger_DeniedAttemptRecorded(t *testing.T) {
	store := newMemStore()
	ledger := NewLedger(store, Options{})

	id, err := ledger.Begin(context.Background(), BeginFields{
		UserID:   "bob",
		ToolName: "run_script",
		Action:   domain.AuditActionToolDenied,
	})
	require.NoError(t, err)

	ledger.Complete(id, Completion{
		Status: domain.AuditStatusFailure,
		Error:  "permission denied",
	})
	ledger.Close()

	record, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, domain.AuditActionToolDenied, record.Action)
	require.Equal(t, domain.AuditStatusFailure, record.Status)
}
