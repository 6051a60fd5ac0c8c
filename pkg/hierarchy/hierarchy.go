// Package hierarchy promotes frequently co-activated node pairs into
// higher-level nodes. A promoted node's payload is the concatenation of
// its children's payloads, letting the generator emit a learned span in a
// single step.
package hierarchy

import (
	"math"

	"github.com/Jak3Gil/melvin/pkg/graph"
)

// Former watches strengthened edges and synthesises hierarchy nodes when
// an edge's traversal count crosses the adaptive threshold.
type Former struct {
	// MinThreshold is the floor for the promotion threshold (T_h).
	MinThreshold uint64
	// CloneWeight is the initial weight of edges cloned around a fresh
	// hierarchy node.
	CloneWeight float32
}

// NewFormer returns a Former with the design defaults: threshold floor 3,
// clone weight 0.25.
func NewFormer() *Former {
	return &Former{MinThreshold: 3, CloneWeight: 0.25}
}

// Threshold is the adaptive promotion threshold:
// max(MinThreshold, ceil(log2(nodes+1))). It grows with the graph so that
// mature brains demand more evidence before chunking.
func (f *Former) Threshold(s *graph.Store) uint64 {
	adaptive := uint64(math.Ceil(math.Log2(float64(s.NodeCount() + 1))))
	if adaptive < f.MinThreshold {
		return f.MinThreshold
	}
	return adaptive
}

// Consider inspects the just-strengthened edge and, when it qualifies,
// interns the combined node and clones the surrounding edges onto it.
//
// An edge qualifies when it is a regular edge between nodes of equal
// level whose traversal count has reached the threshold. Promotion is
// skipped silently when the combined payload would exceed the store's
// payload bound or when the combined node already exists; the original
// edge always persists — hierarchy nodes are additive.
func (f *Former) Consider(s *graph.Store, id graph.EdgeID) error {
	e := s.Edge(id)
	if e == nil || e.IsStop {
		return nil
	}
	a, b := s.Node(e.From), s.Node(e.To)
	if a == nil || b == nil || a.Level != b.Level {
		return nil
	}
	if e.Activations < f.Threshold(s) {
		return nil
	}

	combined := make([]byte, 0, len(a.Payload)+len(b.Payload))
	combined = append(combined, a.Payload...)
	combined = append(combined, b.Payload...)
	if len(combined) > s.Options().MaxPayload {
		return nil
	}
	if _, exists := s.Lookup(combined); exists {
		return nil
	}

	parent, created, err := s.Intern(combined, a.Level+1, []graph.NodeID{a.ID, b.ID})
	if err != nil || !created {
		return err
	}

	// Contexts that predicted the pair now also predict the chunk: clone
	// predecessors of a whose tags mention b, and successors of b whose
	// tags mention a.
	for _, inID := range s.Incoming(a.ID) {
		in := s.Edge(inID)
		if in == nil || in.Tags.Strength(b.ID) == 0 || in.From == parent {
			continue
		}
		if err := f.cloneEdge(s, in.From, parent); err != nil {
			return err
		}
	}
	for _, outID := range s.Outgoing(b.ID) {
		out := s.Edge(outID)
		if out == nil || out.IsStop || out.Tags.Strength(a.ID) == 0 || out.To == parent {
			continue
		}
		if err := f.cloneEdge(s, parent, out.To); err != nil {
			return err
		}
	}
	return nil
}

func (f *Former) cloneEdge(s *graph.Store, from, to graph.NodeID) error {
	id, created, err := s.AddEdge(from, to, false)
	if err != nil {
		return err
	}
	if created {
		s.AddWeight(id, f.CloneWeight)
	}
	return nil
}
