// Package graph provides the node/edge store at the heart of Melvin.
//
// The graph is an arena: nodes and edges live in dense slices indexed by
// their ids, ids are assigned monotonically and never reused, and adjacency
// lists hold ids rather than pointers. Insertion order of adjacency lists is
// therefore exactly id order, which the persistence layer relies on when it
// rebuilds the graph from disk.
//
// Design Principles:
//   - Dense u32 id space for nodes and edges (arena addressing)
//   - Payload interning: one node per distinct byte span
//   - AddEdge accepts any pair of live endpoints and does not check input
//     order; forward-only edges come from the ingest engine, which only
//     binds the previous wave head to the next byte
//   - Undo-log transactions so a failed ingest leaves no visible change
//
// Example Usage:
//
//	s := graph.NewStore(graph.DefaultOptions())
//
//	a, _, _ := s.Intern([]byte{'h'}, 0, nil)
//	b, _, _ := s.Intern([]byte{'i'}, 0, nil)
//
//	e, created, _ := s.AddEdge(a, b, false)
//	if created {
//		s.AddWeight(e, 1.0)
//	}
//
//	for _, id := range s.Outgoing(a) {
//		fmt.Println(s.Edge(id).To)
//	}
package graph

import "errors"

// Common errors.
var (
	ErrNotFound          = errors.New("graph: not found")
	ErrResourceExhausted = errors.New("graph: id space or payload capacity exhausted")
	ErrPayloadEmpty      = errors.New("graph: empty payload")
	ErrPayloadTooLong    = errors.New("graph: payload exceeds maximum length")
	ErrTxnActive         = errors.New("graph: transaction already active")
	ErrNoTxn             = errors.New("graph: no active transaction")
)

// NodeID is a dense integer identifier for graph nodes.
//
// Ids are assigned monotonically starting at 0 and are never reused while
// the node exists. The all-ones value is reserved for the stop sentinel.
type NodeID uint32

// EdgeID is a dense integer identifier for graph edges.
type EdgeID uint32

// StopTarget is the distinguished target of stop edges. It is not a real
// node: it has no payload and never appears in the node arena.
const StopTarget NodeID = 0xFFFFFFFF

// MaxNodes is the number of assignable node ids. The sentinel value is
// excluded from the id space.
const MaxNodes = uint64(StopTarget)

// Node is one entity per distinct byte payload present in the graph.
//
// Fields:
//   - Payload: immutable byte span of length >= 1
//   - Level: 0 for single-byte nodes, >=1 for hierarchy nodes
//   - Activations: monotonic counter, bumped on ingestion selection and
//     generator emission
//   - Outgoing/Incoming: edge ids in insertion order, never reordered
//   - Children: the two child ids recorded when a hierarchy node is
//     created; nil for level-0 nodes. Children are an in-memory record
//     only and are not part of the brain-file format.
type Node struct {
	ID          NodeID
	Payload     []byte
	Level       uint32
	Activations uint64
	Outgoing    []EdgeID
	Incoming    []EdgeID
	Children    []NodeID
}

// Edge is a directed transition from a source node to a target node.
//
// A stop edge has To == StopTarget and IsStop == true; selecting it during
// generation terminates the walk. At most one edge exists per
// (From, To, IsStop) triple.
type Edge struct {
	ID          EdgeID
	From        NodeID
	To          NodeID
	IsStop      bool
	Weight      float32
	Activations uint64
	Tags        ContextTags
}
