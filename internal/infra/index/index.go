package index

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"go.uber.org/zap"

	"toolgate/internal/domain"
)

// Index maintains an embedding-backed snapshot of all registered tools and
// skills. Rebuilds replace the snapshot with a single pointer swap so
// concurrent readers always see one fully consistent generation; individual
// entries are never updated in place.
type Index struct {
	embedder embedding.Embedder
	logger   *zap.Logger
	metrics  domain.Metrics

	snapshot   atomic.Pointer[domain.IndexSnapshot]
	generation atomic.Uint64
	rebuildMu  sync.Mutex
	now        func() time.Time
}

type Options struct {
	Logger  *zap.Logger
	Metrics domain.Metrics
	Now     func() time.Time
}

func New(embedder embedding.Embedder, opts Options) *Index {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Index{
		embedder: embedder,
		logger:   logger.Named("index"),
		metrics:  opts.Metrics,
		now:      now,
	}
}

// Snapshot returns the active snapshot, or nil when no rebuild has ever
// succeeded. It never blocks, including during a concurrent rebuild.
func (i *Index) Snapshot() *domain.IndexSnapshot {
	return i.snapshot.Load()
}

// Rebuild batch-embeds the routed descriptors and swaps in a new snapshot.
// On any embedding failure the previous snapshot stays active and callers
// keep operating in degraded mode.
func (i *Index) Rebuild(ctx context.Context, tools []domain.ToolDescriptor, skills []domain.SkillDescriptor) error {
	i.rebuildMu.Lock()
	defer i.rebuildMu.Unlock()

	start := i.now()
	var core, routed []domain.ToolDescriptor
	for _, t := range normalizeTools(tools) {
		if t.Core {
			core = append(core, t)
		} else {
			routed = append(routed, t)
		}
	}

	vectors, err := i.embedBatch(ctx, toolTexts(routed))
	if err != nil {
		i.abortRebuild(core, routed, skills, err)
		return fmt.Errorf("embed tools: %w", err)
	}

	skillVectors, err := i.embedBatch(ctx, skillTexts(skills))
	if err != nil {
		i.abortRebuild(core, routed, skills, err)
		return fmt.Errorf("embed skills: %w", err)
	}

	snap := &domain.IndexSnapshot{
		Generation:   i.generation.Add(1),
		BuiltAt:      i.now(),
		Core:         core,
		Routed:       routed,
		Vectors:      vectors,
		Skills:       append([]domain.SkillDescriptor(nil), skills...),
		SkillVectors: skillVectors,
	}
	i.snapshot.Store(snap)
	i.observeRebuild(true, len(tools))

	i.logger.Info("index rebuilt",
		zap.Uint64("generation", snap.Generation),
		zap.Int("core", len(core)),
		zap.Int("routed", len(routed)),
		zap.Int("skills", len(skills)),
		zap.Duration("took", i.now().Sub(start)))
	return nil
}

// abortRebuild keeps the previous snapshot active. On first boot, when no
// snapshot exists yet, it publishes a vectorless one so the router can
// degrade to all permitted tools instead of none.
func (i *Index) abortRebuild(core, routed []domain.ToolDescriptor, skills []domain.SkillDescriptor, cause error) {
	i.observeRebuild(false, 0)
	i.logger.Warn("index rebuild aborted, previous snapshot stays active",
		zap.Int("tools", len(core)+len(routed)),
		zap.Error(cause))
	if i.snapshot.Load() != nil {
		return
	}
	i.snapshot.Store(&domain.IndexSnapshot{
		Generation: i.generation.Add(1),
		BuiltAt:    i.now(),
		Core:       core,
		Routed:     routed,
		Skills:     append([]domain.SkillDescriptor(nil), skills...),
	})
}

func (i *Index) embedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if i.embedder == nil {
		return nil, domain.ErrIndexUnavailable
	}
	vectors, err := i.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding provider returned %d vectors for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

func (i *Index) observeRebuild(success bool, tools int) {
	if i.metrics == nil {
		return
	}
	i.metrics.RecordIndexRebuild(success, tools)
}

func normalizeTools(tools []domain.ToolDescriptor) []domain.ToolDescriptor {
	out := make([]domain.ToolDescriptor, 0, len(tools))
	for _, t := range tools {
		if t.Name == "" {
			continue
		}
		if t.RequiredRole == "" {
			t.RequiredRole = domain.DefaultRequiredRole
		}
		out = append(out, t)
	}
	return out
}

func toolTexts(tools []domain.ToolDescriptor) []string {
	texts := make([]string, len(tools))
	for i, t := range tools {
		texts[i] = t.EmbedText()
	}
	return texts
}

func skillTexts(skills []domain.SkillDescriptor) []string {
	texts := make([]string, len(skills))
	for i, s := range skills {
		texts[i] = s.EmbedText()
	}
	return texts
}
