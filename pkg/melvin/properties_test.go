package melvin

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jak3Gil/melvin/pkg/graph"
)

// Invariant checks over a brain trained on a mixed corpus: every edge
// references live endpoints and carries a finite nonnegative weight,
// payloads are unique, and hierarchy payloads concatenate their
// children's payloads.
func TestGraphInvariantsAfterTraining(t *testing.T) {
	db := newTestDB(t, nil)
	corpus := []string{
		"hello world", "hello there", "the quick brown fox",
		"hello world", "aaaabbbb", "the quick brown fox",
		"hello world", "mississippi", "aaaabbbb",
	}
	for _, line := range corpus {
		require.NoError(t, db.Ingest([]byte(line), true))
	}
	require.NoError(t, db.Ingest([]byte("hello"), false))
	_, err := db.Generate(64)
	require.NoError(t, err)
	require.NoError(t, db.Feedback([]byte(" world")))

	s := db.store

	t.Run("edges reference live nodes and finite weights", func(t *testing.T) {
		for i := 0; i < s.EdgeCount(); i++ {
			e := s.Edge(graph.EdgeID(i))
			require.NotNil(t, s.Node(e.From), "edge %d has dead source", i)
			if e.IsStop {
				assert.Equal(t, graph.StopTarget, e.To)
			} else {
				require.NotNil(t, s.Node(e.To), "edge %d has dead target", i)
			}
			w := float64(e.Weight)
			assert.False(t, math.IsNaN(w) || math.IsInf(w, 0), "edge %d weight %v", i, w)
			assert.GreaterOrEqual(t, w, 0.0)
		}
	})

	t.Run("payload uniqueness", func(t *testing.T) {
		seen := make(map[string]graph.NodeID)
		for i := 0; i < s.NodeCount(); i++ {
			n := s.Node(graph.NodeID(i))
			prev, dup := seen[string(n.Payload)]
			assert.False(t, dup, "nodes %d and %d share payload %q", prev, n.ID, n.Payload)
			seen[string(n.Payload)] = n.ID
		}
	})

	t.Run("edge uniqueness per triple", func(t *testing.T) {
		type triple struct {
			from, to graph.NodeID
			stop     bool
		}
		seen := make(map[triple]bool)
		for i := 0; i < s.EdgeCount(); i++ {
			e := s.Edge(graph.EdgeID(i))
			k := triple{e.From, e.To, e.IsStop}
			assert.False(t, seen[k], "duplicate edge triple %+v", k)
			seen[k] = true
		}
	})

	t.Run("hierarchy payload concatenation", func(t *testing.T) {
		for i := 0; i < s.NodeCount(); i++ {
			n := s.Node(graph.NodeID(i))
			if n.Level == 0 {
				assert.Empty(t, n.Children)
				continue
			}
			require.Len(t, n.Children, 2, "hierarchy node %d", i)
			var concat []byte
			for _, child := range n.Children {
				c := s.Node(child)
				require.NotNil(t, c)
				assert.Less(t, c.Level, n.Level)
				concat = append(concat, c.Payload...)
			}
			assert.Equal(t, concat, n.Payload, "hierarchy node %d", i)
		}
	})
}

// Forward-only holds through the public surface: every regular edge
// created while ingesting a sequence joins a byte to the byte right
// after it somewhere in that sequence.
func TestForwardOnlyInvariant(t *testing.T) {
	db := newTestDB(t, nil)
	text := []byte("abacab")
	require.NoError(t, db.Ingest(text, true))

	s := db.store
	for i := 0; i < s.EdgeCount(); i++ {
		e := s.Edge(graph.EdgeID(i))
		if e.IsStop {
			continue
		}
		from, to := s.Node(e.From), s.Node(e.To)
		if from.Level > 0 || to.Level > 0 {
			continue // clones around hierarchy nodes are derived, not bound
		}
		found := false
		for j := 0; j+1 < len(text); j++ {
			if text[j] == from.Payload[0] && text[j+1] == to.Payload[0] {
				found = true
				break
			}
		}
		assert.True(t, found, "edge %q->%q not forward in input", from.Payload, to.Payload)
	}
}
