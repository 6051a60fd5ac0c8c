package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jak3Gil/melvin/pkg/graph"
	"github.com/Jak3Gil/melvin/pkg/wave"
)

func newFixture() (*Engine, *graph.Store, *wave.Wave) {
	en := NewEngine()
	en.Former = nil // keep topology predictable; hierarchy has its own tests
	return en, graph.NewStore(graph.DefaultOptions()), wave.New(wave.DefaultCap)
}

func TestIngestInternsAndBindsForward(t *testing.T) {
	en, s, w := newFixture()

	require.NoError(t, en.Ingest(s, w, []byte("ab"), false))

	a, ok := s.Lookup([]byte("a"))
	require.True(t, ok)
	b, ok := s.Lookup([]byte("b"))
	require.True(t, ok)

	require.Equal(t, 1, s.EdgeCount())
	e := s.Edge(0)
	assert.Equal(t, a, e.From)
	assert.Equal(t, b, e.To)
	assert.False(t, e.IsStop)
	assert.InDelta(t, 1.0, float64(e.Weight), 1e-6)
	assert.Equal(t, uint64(1), e.Activations)

	// One activation per byte.
	assert.Equal(t, uint64(1), s.Node(a).Activations)
	assert.Equal(t, uint64(1), s.Node(b).Activations)

	last, _ := w.Last()
	assert.Equal(t, b, last)
}

func TestForwardOnlyEdges(t *testing.T) {
	en, s, w := newFixture()
	require.NoError(t, en.Ingest(s, w, []byte("world"), false))

	// Every edge points from the node of an earlier byte to the node of
	// the byte immediately after it; no reverse pair exists.
	text := []byte("world")
	for i := 0; i < s.EdgeCount(); i++ {
		e := s.Edge(graph.EdgeID(i))
		from := s.Node(e.From).Payload[0]
		to := s.Node(e.To).Payload[0]
		found := false
		for j := 0; j+1 < len(text); j++ {
			if text[j] == from && text[j+1] == to {
				found = true
				break
			}
		}
		assert.True(t, found, "edge %c->%c does not follow input order", from, to)
	}
}

func TestHebbianDecayOnRepeat(t *testing.T) {
	en, s, w := newFixture()

	require.NoError(t, en.Ingest(s, w, []byte("ab"), false))
	w.Reset()
	require.NoError(t, en.Ingest(s, w, []byte("ab"), false))
	w.Reset()
	require.NoError(t, en.Ingest(s, w, []byte("ab"), false))

	// First bind 1.0, then 1/2, then 1/3.
	e := s.Edge(0)
	assert.InDelta(t, 1.0+0.5+1.0/3, float64(e.Weight), 1e-6)
	assert.Equal(t, uint64(3), e.Activations)
}

func TestContextTagsFromWave(t *testing.T) {
	en, s, w := newFixture()
	require.NoError(t, en.Ingest(s, w, []byte("abc"), false))

	a, _ := s.Lookup([]byte("a"))
	b, _ := s.Lookup([]byte("b"))

	// The b->c edge was bound while the wave held [a, b]; b is the
	// source and is excluded, leaving a tag for a.
	e := s.Edge(1)
	assert.Equal(t, b, e.From)
	assert.InDelta(t, 1.0, float64(e.Tags.Strength(a)), 1e-6)
	assert.Equal(t, float32(0), e.Tags.Strength(b))
}

func TestCompleteTrainsStopEdge(t *testing.T) {
	en, s, w := newFixture()
	require.NoError(t, en.Ingest(s, w, []byte("ab"), true))

	b, _ := s.Lookup([]byte("b"))
	out := s.Outgoing(b)
	require.Len(t, out, 1)
	stop := s.Edge(out[0])
	assert.True(t, stop.IsStop)
	assert.Equal(t, graph.StopTarget, stop.To)
	assert.InDelta(t, 1.0, float64(stop.Weight), 1e-6)
	assert.Equal(t, uint64(1), stop.Activations)
}

func TestCompleteOnEmptyWaveIsNoop(t *testing.T) {
	en, s, w := newFixture()
	require.NoError(t, en.Ingest(s, w, nil, true))
	assert.Equal(t, 0, s.NodeCount())
	assert.Equal(t, 0, s.EdgeCount())
}

func TestRepeatedByteSelfEdge(t *testing.T) {
	en, s, w := newFixture()
	require.NoError(t, en.Ingest(s, w, []byte("aa"), false))

	a, _ := s.Lookup([]byte("a"))
	require.Equal(t, 1, s.NodeCount())
	require.Equal(t, 1, s.EdgeCount())
	e := s.Edge(0)
	assert.Equal(t, a, e.From)
	assert.Equal(t, a, e.To)
	assert.Equal(t, uint64(2), s.Node(a).Activations)
}

func TestHierarchyFormedDuringIngest(t *testing.T) {
	en := NewEngine()
	s := graph.NewStore(graph.DefaultOptions())
	w := wave.New(wave.DefaultCap)

	for i := 0; i < 4; i++ {
		require.NoError(t, en.Ingest(s, w, []byte("ab"), true))
		w.Reset()
	}

	// With two nodes the threshold floor of 3 applies, so the third
	// traversal of a->b promotes the pair.
	id, ok := s.Lookup([]byte("ab"))
	require.True(t, ok)
	assert.Equal(t, uint32(1), s.Node(id).Level)
}
