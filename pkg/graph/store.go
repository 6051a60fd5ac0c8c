package graph

import (
	"fmt"
	"math"
)

// Options configures a Store.
type Options struct {
	// TagCap bounds every edge's context-tag set (K).
	TagCap int
	// MaxPayload bounds node payload length in bytes (P).
	MaxPayload int
}

// DefaultOptions returns the standard bounds: K=24 tags per edge and
// payloads up to 256 bytes.
func DefaultOptions() Options {
	return Options{TagCap: 24, MaxPayload: 256}
}

// Store owns the node and edge arenas and the payload interning map.
//
// All mutation goes through Store methods so that an active transaction
// can record undo state. Slices returned by accessors are valid only until
// the next mutating call.
//
// The Store is not safe for concurrent use; the melvin facade serialises
// callers.
type Store struct {
	opts Options

	nodes []*Node
	edges []*Edge

	// byPayload is the payload-keyed interning map. Keys are the raw
	// payload bytes; collisions resolve by Go's full-key comparison.
	byPayload map[string]NodeID

	// byTriple enforces at most one edge per (from, to, is_stop).
	byTriple map[edgeKey]EdgeID

	txn *txnLog
}

type edgeKey struct {
	from NodeID
	to   NodeID
	stop bool
}

// NewStore creates an empty store.
func NewStore(opts Options) *Store {
	if opts.TagCap < 1 {
		opts.TagCap = DefaultOptions().TagCap
	}
	if opts.MaxPayload < 1 {
		opts.MaxPayload = DefaultOptions().MaxPayload
	}
	return &Store{
		opts:      opts,
		byPayload: make(map[string]NodeID),
		byTriple:  make(map[edgeKey]EdgeID),
	}
}

// Options returns the bounds the store was created with.
func (s *Store) Options() Options { return s.opts }

// NodeCount reports the number of live nodes.
func (s *Store) NodeCount() int { return len(s.nodes) }

// EdgeCount reports the number of live edges.
func (s *Store) EdgeCount() int { return len(s.edges) }

// Node returns the node for id, or nil if out of range.
func (s *Store) Node(id NodeID) *Node {
	if uint64(id) >= uint64(len(s.nodes)) {
		return nil
	}
	return s.nodes[id]
}

// Edge returns the edge for id, or nil if out of range.
func (s *Store) Edge(id EdgeID) *Edge {
	if uint64(id) >= uint64(len(s.edges)) {
		return nil
	}
	return s.edges[id]
}

// Lookup returns the node interned for payload, if any.
func (s *Store) Lookup(payload []byte) (NodeID, bool) {
	id, ok := s.byPayload[string(payload)]
	return id, ok
}

// Intern returns the node whose payload equals the argument, creating it
// with a fresh id if absent. Level and children describe the node only on
// creation; for an existing node they are ignored.
//
// Creation fails with ErrResourceExhausted once the u32 id space (minus
// the stop sentinel) is spent, and with ErrPayloadTooLong past the
// configured payload bound.
func (s *Store) Intern(payload []byte, level uint32, children []NodeID) (NodeID, bool, error) {
	if len(payload) == 0 {
		return 0, false, ErrPayloadEmpty
	}
	if len(payload) > s.opts.MaxPayload {
		return 0, false, fmt.Errorf("%w: %d > %d", ErrPayloadTooLong, len(payload), s.opts.MaxPayload)
	}
	if id, ok := s.byPayload[string(payload)]; ok {
		return id, false, nil
	}
	if uint64(len(s.nodes)) >= MaxNodes {
		return 0, false, fmt.Errorf("node ids: %w", ErrResourceExhausted)
	}

	n := &Node{
		ID:      NodeID(len(s.nodes)),
		Payload: append([]byte(nil), payload...),
		Level:   level,
	}
	if len(children) > 0 {
		n.Children = append([]NodeID(nil), children...)
	}
	s.nodes = append(s.nodes, n)
	s.byPayload[string(n.Payload)] = n.ID
	return n.ID, true, nil
}

// AddEdge returns the edge for (from, to, isStop), creating it with zero
// weight if absent. Stop edges must target StopTarget; regular edges must
// target a live node. The created flag tells the caller whether the
// first-bind weight rule applies.
func (s *Store) AddEdge(from, to NodeID, isStop bool) (EdgeID, bool, error) {
	if s.Node(from) == nil {
		return 0, false, fmt.Errorf("edge source %d: %w", from, ErrNotFound)
	}
	if isStop {
		to = StopTarget
	} else if s.Node(to) == nil {
		return 0, false, fmt.Errorf("edge target %d: %w", to, ErrNotFound)
	}

	key := edgeKey{from: from, to: to, stop: isStop}
	if id, ok := s.byTriple[key]; ok {
		return id, false, nil
	}
	if uint64(len(s.edges)) > uint64(math.MaxUint32) {
		return 0, false, fmt.Errorf("edge ids: %w", ErrResourceExhausted)
	}

	e := &Edge{
		ID:     EdgeID(len(s.edges)),
		From:   from,
		To:     to,
		IsStop: isStop,
		Tags:   NewContextTags(s.opts.TagCap),
	}
	s.edges = append(s.edges, e)
	s.byTriple[key] = e.ID

	src := s.nodes[from]
	s.touchAdjacency(src)
	src.Outgoing = append(src.Outgoing, e.ID)
	if !isStop {
		dst := s.nodes[to]
		s.touchAdjacency(dst)
		dst.Incoming = append(dst.Incoming, e.ID)
	}
	return e.ID, true, nil
}

// Outgoing returns from's edge ids in insertion order.
func (s *Store) Outgoing(id NodeID) []EdgeID {
	if n := s.Node(id); n != nil {
		return n.Outgoing
	}
	return nil
}

// Incoming returns to's edge ids in insertion order.
func (s *Store) Incoming(id NodeID) []EdgeID {
	if n := s.Node(id); n != nil {
		return n.Incoming
	}
	return nil
}

// AddWeight adds delta to the edge's weight, clamping the result to a
// finite nonnegative value.
func (s *Store) AddWeight(id EdgeID, delta float32) {
	e := s.Edge(id)
	if e == nil {
		return
	}
	s.touchEdge(e)
	e.Weight = clampWeight(e.Weight + delta)
}

// ScaleWeight multiplies the edge's weight by factor, clamping the result
// to a finite nonnegative value.
func (s *Store) ScaleWeight(id EdgeID, factor float32) {
	e := s.Edge(id)
	if e == nil {
		return
	}
	s.touchEdge(e)
	e.Weight = clampWeight(e.Weight * factor)
}

// BumpEdge increments the edge's traversal counter.
func (s *Store) BumpEdge(id EdgeID) {
	e := s.Edge(id)
	if e == nil {
		return
	}
	s.touchEdge(e)
	e.Activations++
}

// BumpNode increments the node's activation counter.
func (s *Store) BumpNode(id NodeID) {
	n := s.Node(id)
	if n == nil {
		return
	}
	s.touchNode(n)
	n.Activations++
}

// TagEdge decays the edge's existing tags by gamma and then merges each
// context node in with unit strength.
func (s *Store) TagEdge(id EdgeID, gamma float32, context []NodeID) {
	e := s.Edge(id)
	if e == nil {
		return
	}
	s.touchEdge(e)
	e.Tags.Decay(gamma)
	for _, n := range context {
		e.Tags.Add(n, 1.0)
	}
}

// TotalActivations sums activation counters across all nodes.
func (s *Store) TotalActivations() uint64 {
	var total uint64
	for _, n := range s.nodes {
		total += n.Activations
	}
	return total
}

// HierarchyNodeCount reports how many nodes have level > 0.
func (s *Store) HierarchyNodeCount() int {
	count := 0
	for _, n := range s.nodes {
		if n.Level > 0 {
			count++
		}
	}
	return count
}

// clampWeight replaces NaN and negative values with 0 and +Inf with the
// largest finite float32, per the numerical policy in the scoring layer.
func clampWeight(w float32) float32 {
	if math.IsNaN(float64(w)) || w < 0 {
		return 0
	}
	if math.IsInf(float64(w), 1) {
		return math.MaxFloat32
	}
	return w
}
