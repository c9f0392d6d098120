package index

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/require"

	"toolgate/internal/domain"
)

type fakeEmbedder struct {
	fail  bool
	calls int
}

func (f *fakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("provider down")
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{float64(len(texts[i])), 1, 0}
	}
	return out, nil
}

func TestIndex_RebuildSwapsSnapshot(t *testing.T) {
	idx := New(&fakeEmbedder{}, Options{})
	require.Nil(t, idx.Snapshot())

	tools := []domain.ToolDescriptor{
		{Name: "get_time", Domain: "standard", Core: true},
		{Name: "toggle_light", Description: "turn lights on or off", Domain: "home"},
		{Name: "run_script", Description: "run a shell script", Domain: "dev"},
	}
	skills := []domain.SkillDescriptor{
		{Name: "morning_routine", Description: "morning automation hints"},
	}

	require.NoError(t, idx.Rebuild(context.Background(), tools, skills))

	snap := idx.Snapshot()
	require.NotNil(t, snap)
	require.Equal(t, uint64(1), snap.Generation)
	require.Len(t, snap.Core, 1)
	require.Len(t, snap.Routed, 2)
	require.Len(t, snap.Vectors, 2)
	require.Len(t, snap.SkillVectors, 1)

	// Descriptors with no explicit role default to "user".
	require.Equal(t, domain.DefaultRequiredRole, snap.Routed[0].RequiredRole)

	require.NoError(t, idx.Rebuild(context.Background(), tools[:2], nil))
	require.Equal(t, uint64(2), idx.Snapshot().Generation)
}

func TestIndex_FailedRebuildKeepsPreviousSnapshot(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := New(emb, Options{})

	tools := []domain.ToolDescriptor{{Name: "toggle_light", Description: "lights", Domain: "home"}}
	require.NoError(t, idx.Rebuild(context.Background(), tools, nil))
	before := idx.Snapshot()

	emb.fail = true
	err := idx.Rebuild(context.Background(), tools, nil)
	require.Error(t, err)
	require.Same(t, before, idx.Snapshot())
}

func TestIndex_FirstBootFailurePublishesDegradedSnapshot(t *testing.T) {
	idx := New(&fakeEmbedder{fail: true}, Options{})

	tools := []domain.ToolDescriptor{
		{Name: "get_time", Domain: "standard", Core: true},
		{Name: "toggle_light", Description: "lights", Domain: "home"},
	}
	err := idx.Rebuild(context.Background(), tools, nil)
	require.Error(t, err)

	snap := idx.Snapshot()
	require.NotNil(t, snap)
	require.Empty(t, snap.Vectors)
	require.Len(t, snap.Core, 1)
	require.Len(t, snap.Routed, 1)
}

func TestIndex_LookupAndAllTools(t *testing.T) {
	idx := New(&fakeEmbedder{}, Options{})
	tools := []domain.ToolDescriptor{
		{Name: "get_time", Domain: "standard", Core: true},
		{Name: "toggle_light", Description: "lights", Domain: "home"},
	}
	require.NoError(t, idx.Rebuild(context.Background(), tools, nil))

	snap := idx.Snapshot()
	d, ok := snap.Lookup("toggle_light")
	require.True(t, ok)
	require.Equal(t, "home", d.Domain)

	_, ok = snap.Lookup("missing")
	require.False(t, ok)

	require.Len(t, snap.AllTools(), 2)
}
