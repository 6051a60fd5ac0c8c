package persist

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"

	"github.com/Jak3Gil/melvin/pkg/graph"
)

// buildBrain assembles a small graph with every feature the codec has to
// carry: levels, counters, tags, a stop edge.
func buildBrain(t *testing.T) *graph.Store {
	t.Helper()
	s := graph.NewStore(graph.DefaultOptions())

	a, _, err := s.Intern([]byte("a"), 0, nil)
	require.NoError(t, err)
	b, _, err := s.Intern([]byte("b"), 0, nil)
	require.NoError(t, err)
	ab, _, err := s.Intern([]byte("ab"), 1, []graph.NodeID{a, b})
	require.NoError(t, err)

	e1, _, _ := s.AddEdge(a, b, false)
	s.AddWeight(e1, 1.5)
	s.BumpEdge(e1)
	s.TagEdge(e1, 0.9, []graph.NodeID{ab})

	e2, _, _ := s.AddEdge(a, ab, false)
	s.AddWeight(e2, 0.25)

	stop, _, _ := s.AddEdge(b, graph.StopTarget, true)
	s.AddWeight(stop, 1.0)
	s.BumpEdge(stop)

	s.BumpNode(a)
	s.BumpNode(b)
	s.BumpNode(b)
	return s
}

func assertSameBrain(t *testing.T, want, got *graph.Store) {
	t.Helper()
	require.Equal(t, want.NodeCount(), got.NodeCount())
	require.Equal(t, want.EdgeCount(), got.EdgeCount())
	assert.Equal(t, want.TotalActivations(), got.TotalActivations())

	for i := 0; i < want.NodeCount(); i++ {
		w, g := want.Node(graph.NodeID(i)), got.Node(graph.NodeID(i))
		assert.Equal(t, w.Payload, g.Payload)
		assert.Equal(t, w.Level, g.Level)
		assert.Equal(t, w.Activations, g.Activations)
		assert.Equal(t, w.Outgoing, g.Outgoing)
		assert.Equal(t, w.Incoming, g.Incoming)
	}
	for i := 0; i < want.EdgeCount(); i++ {
		w, g := want.Edge(graph.EdgeID(i)), got.Edge(graph.EdgeID(i))
		assert.Equal(t, w.From, g.From)
		assert.Equal(t, w.To, g.To)
		assert.Equal(t, w.IsStop, g.IsStop)
		assert.Equal(t, w.Weight, g.Weight)
		assert.Equal(t, w.Activations, g.Activations)
		assert.Equal(t, w.Tags.All(), g.Tags.All())
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := buildBrain(t)
	rngState := []byte{1, 2, 3, 4, 5}

	data, err := Encode(s, rngState)
	require.NoError(t, err)

	got, gotRNG, err := Decode(data, graph.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, rngState, gotRNG)
	assertSameBrain(t, s, got)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := buildBrain(t)
	path := filepath.Join(t.TempDir(), "brain.melvin")

	require.NoError(t, Save(path, s, []byte("rng")))

	got, rngState, err := Load(path, graph.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []byte("rng"), rngState)
	assertSameBrain(t, s, got)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "brain.melvin")
	require.NoError(t, Save(path, buildBrain(t), nil))
	// Saving over an existing file must also be clean.
	require.NoError(t, Save(path, buildBrain(t), nil))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "brain.melvin", entries[0].Name())
}

func TestDecodeRejectsCorruption(t *testing.T) {
	data, err := Encode(buildBrain(t), nil)
	require.NoError(t, err)

	t.Run("flipped byte", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[10] ^= 0xFF
		_, _, err := Decode(bad, graph.DefaultOptions())
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("truncated", func(t *testing.T) {
		_, _, err := Decode(data[:8], graph.DefaultOptions())
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		binary.LittleEndian.PutUint32(bad[0:], 0xDEADBEEF)
		bad = resign(bad)
		_, _, err := Decode(bad, graph.DefaultOptions())
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("future version", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		binary.LittleEndian.PutUint32(bad[4:], Version+1)
		bad = resign(bad)
		_, _, err := Decode(bad, graph.DefaultOptions())
		assert.ErrorIs(t, err, ErrVersionMismatch)
	})
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.melvin"), graph.DefaultOptions())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// resign recomputes the checksum trailer after the test mutated the body.
func resign(data []byte) []byte {
	body := data[:len(data)-blake2b.Size256]
	sum := blake2b.Sum256(body)
	return append(append([]byte(nil), body...), sum[:]...)
}
