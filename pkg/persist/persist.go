// Package persist encodes a graph store to the brain-file format and
// rebuilds one from it.
//
// The file is a single little-endian blob:
//
//	magic u32 | version u32
//	nodes_n u32 | nodes_n x (id u32, payload_offset u32, payload_len u32,
//	                         abstraction_level u32, activations u64)
//	edges_n u32 | edges_n x (id u32, from u32, to u32, is_stop u8,
//	                         weight f32, activations u64,
//	                         tag_n u16, tag_n x (node_id u32, strength f32))
//	payload_n u32 | payload bytes
//	rng_len u32 | rng state bytes
//	checksum: 32-byte BLAKE2b-256 over everything above
//
// Ids are dense and written in ascending order, so replaying Intern and
// AddEdge in file order reproduces both the id assignment and the
// adjacency insertion order exactly. Save writes to a temp file in the
// target directory and renames it into place.
package persist

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"

	"github.com/Jak3Gil/melvin/pkg/graph"
)

// Brain-file constants.
const (
	Magic   uint32 = 0x4D454C56 // "MELV"
	Version uint32 = 1
)

// Fixed on-disk entry sizes, used to reject implausible counts before
// allocating.
const (
	nodeEntrySize = 4 + 4 + 4 + 4 + 8
	edgeEntrySize = 4 + 4 + 4 + 1 + 4 + 8 + 2
)

// Errors surfaced by the codec.
var (
	ErrCorrupt         = errors.New("persist: brain file corrupt")
	ErrVersionMismatch = errors.New("persist: brain file version mismatch")
)

// Save writes the store and RNG state to path atomically.
func Save(path string, s *graph.Store, rngState []byte) error {
	data, err := Encode(s, rngState)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("persist: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("persist: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("persist: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("persist: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("persist: rename: %w", err)
	}
	return nil
}

// Load reads path and rebuilds the store and RNG state. The store is
// created with opts; bounds are not part of the file format.
func Load(path string, opts graph.Options) (*graph.Store, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("persist: read: %w", err)
	}
	return Decode(data, opts)
}

// Encode serialises the store to the brain-file blob, checksum included.
func Encode(s *graph.Store, rngState []byte) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := func(v any) {
		binary.Write(buf, binary.LittleEndian, v)
	}

	w(Magic)
	w(Version)

	nodeCount := s.NodeCount()
	w(uint32(nodeCount))
	payload := &bytes.Buffer{}
	for i := 0; i < nodeCount; i++ {
		n := s.Node(graph.NodeID(i))
		w(uint32(n.ID))
		w(uint32(payload.Len()))
		w(uint32(len(n.Payload)))
		w(n.Level)
		w(n.Activations)
		payload.Write(n.Payload)
	}

	edgeCount := s.EdgeCount()
	w(uint32(edgeCount))
	for i := 0; i < edgeCount; i++ {
		e := s.Edge(graph.EdgeID(i))
		w(uint32(e.ID))
		w(uint32(e.From))
		w(uint32(e.To))
		stop := uint8(0)
		if e.IsStop {
			stop = 1
		}
		w(stop)
		w(e.Weight)
		w(e.Activations)
		tags := e.Tags.All()
		if len(tags) > math.MaxUint16 {
			tags = tags[:math.MaxUint16]
		}
		w(uint16(len(tags)))
		for _, t := range tags {
			w(uint32(t.Node))
			w(t.Strength)
		}
	}

	w(uint32(payload.Len()))
	buf.Write(payload.Bytes())
	w(uint32(len(rngState)))
	buf.Write(rngState)

	sum := blake2b.Sum256(buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes(), nil
}

// Decode rebuilds a store from a brain-file blob, validating the checksum,
// magic and version before touching any structure.
func Decode(data []byte, opts graph.Options) (*graph.Store, []byte, error) {
	if len(data) < blake2b.Size256+8 {
		return nil, nil, fmt.Errorf("%w: truncated", ErrCorrupt)
	}
	body := data[:len(data)-blake2b.Size256]
	sum := blake2b.Sum256(body)
	if !bytes.Equal(sum[:], data[len(data)-blake2b.Size256:]) {
		return nil, nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	r := &reader{data: body}
	if r.u32() != Magic {
		return nil, nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if v := r.u32(); v != Version {
		return nil, nil, fmt.Errorf("%w: got version %d, want %d", ErrVersionMismatch, v, Version)
	}

	nodeCount := int(r.u32())
	if nodeCount > len(body)/nodeEntrySize {
		return nil, nil, fmt.Errorf("%w: implausible node count %d", ErrCorrupt, nodeCount)
	}
	type nodeEntry struct {
		offset, length uint32
		level          uint32
		activations    uint64
	}
	nodes := make([]nodeEntry, 0, nodeCount)
	for i := 0; i < nodeCount; i++ {
		if id := r.u32(); id != uint32(i) {
			return nil, nil, fmt.Errorf("%w: node id %d out of order", ErrCorrupt, id)
		}
		nodes = append(nodes, nodeEntry{
			offset:      r.u32(),
			length:      r.u32(),
			level:       r.u32(),
			activations: r.u64(),
		})
	}

	edgeCount := int(r.u32())
	if edgeCount > len(body)/edgeEntrySize {
		return nil, nil, fmt.Errorf("%w: implausible edge count %d", ErrCorrupt, edgeCount)
	}
	type edgeEntry struct {
		from, to    uint32
		stop        bool
		weight      float32
		activations uint64
		tags        []graph.Tag
	}
	edges := make([]edgeEntry, 0, edgeCount)
	for i := 0; i < edgeCount; i++ {
		if id := r.u32(); id != uint32(i) {
			return nil, nil, fmt.Errorf("%w: edge id %d out of order", ErrCorrupt, id)
		}
		e := edgeEntry{
			from: r.u32(),
			to:   r.u32(),
			stop: r.u8() != 0,
		}
		e.weight = r.f32()
		e.activations = r.u64()
		tagCount := int(r.u16())
		for t := 0; t < tagCount; t++ {
			e.tags = append(e.tags, graph.Tag{Node: graph.NodeID(r.u32()), Strength: r.f32()})
		}
		edges = append(edges, e)
	}

	payloadLen := int(r.u32())
	payload := r.bytes(payloadLen)
	rngLen := int(r.u32())
	rngState := append([]byte(nil), r.bytes(rngLen)...)
	if r.failed {
		return nil, nil, fmt.Errorf("%w: truncated body", ErrCorrupt)
	}

	s := graph.NewStore(opts)
	for i, n := range nodes {
		end := uint64(n.offset) + uint64(n.length)
		if end > uint64(len(payload)) {
			return nil, nil, fmt.Errorf("%w: node %d payload out of range", ErrCorrupt, i)
		}
		id, created, err := s.Intern(payload[n.offset:end], n.level, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("persist: rebuild node %d: %w", i, err)
		}
		if !created || id != graph.NodeID(i) {
			return nil, nil, fmt.Errorf("%w: duplicate node payload at id %d", ErrCorrupt, i)
		}
		s.RestoreNodeState(id, n.activations)
	}
	for i, e := range edges {
		id, created, err := s.AddEdge(graph.NodeID(e.from), graph.NodeID(e.to), e.stop)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: edge %d: %v", ErrCorrupt, i, err)
		}
		if !created || id != graph.EdgeID(i) {
			return nil, nil, fmt.Errorf("%w: duplicate edge triple at id %d", ErrCorrupt, i)
		}
		s.RestoreEdgeState(id, e.weight, e.activations, e.tags)
	}
	return s, rngState, nil
}

// reader is a little-endian cursor that records rather than panics on
// truncation.
type reader struct {
	data   []byte
	pos    int
	failed bool
}

func (r *reader) take(n int) []byte {
	if r.failed || r.pos+n > len(r.data) {
		r.failed = true
		return make([]byte, n)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *reader) u8() uint8   { return r.take(1)[0] }
func (r *reader) u16() uint16 { return binary.LittleEndian.Uint16(r.take(2)) }
func (r *reader) u32() uint32 { return binary.LittleEndian.Uint32(r.take(4)) }
func (r *reader) u64() uint64 { return binary.LittleEndian.Uint64(r.take(8)) }
func (r *reader) f32() float32 {
	return math.Float32frombits(r.u32())
}
func (r *reader) bytes(n int) []byte {
	if n < 0 || n > len(r.data) {
		r.failed = true
		return nil
	}
	return r.take(n)
}
