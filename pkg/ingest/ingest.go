// Package ingest implements the online learning walk: every input byte is
// interned as a level-0 node, bound forward from the previous wave head,
// and strengthened with a decaying Hebbian increment. Sequence completion
// trains a stop edge at the final node.
package ingest

import (
	"github.com/Jak3Gil/melvin/pkg/graph"
	"github.com/Jak3Gil/melvin/pkg/hierarchy"
	"github.com/Jak3Gil/melvin/pkg/wave"
)

// Engine drives the ingestion pipeline over a store and a wave.
type Engine struct {
	// Alpha is the first-bind weight increment; later traversals use the
	// decaying increment Alpha/(1+activations).
	Alpha float32
	// Gamma is the multiplicative decay applied to existing context tags
	// before new ones merge in.
	Gamma float32
	// Former promotes frequently traversed pairs; nil disables hierarchy
	// formation.
	Former *hierarchy.Former
}

// NewEngine returns an engine with the design defaults: alpha 1.0,
// gamma 0.9, hierarchy formation on.
func NewEngine() *Engine {
	return &Engine{Alpha: 1.0, Gamma: 0.9, Former: hierarchy.NewFormer()}
}

// Ingest walks data in arrival order, interning nodes and binding forward
// edges tagged with the current wave. When complete is true the final
// node additionally trains its stop edge and the wave is left for the
// caller to discard.
//
// Edges are created strictly forward in input order; no reverse edge ever
// comes into existence here, which is what guarantees generation can only
// replay learned orderings.
func (en *Engine) Ingest(s *graph.Store, w *wave.Wave, data []byte, complete bool) error {
	for _, b := range data {
		target, _, err := s.Intern([]byte{b}, 0, nil)
		if err != nil {
			return err
		}
		bound := graph.EdgeID(0)
		hasBound := false
		if src, ok := w.Last(); ok {
			id, err := en.bind(s, w, src, target, false)
			if err != nil {
				return err
			}
			bound, hasBound = id, true
		}
		s.BumpNode(target)
		w.Push(target)
		if hasBound && en.Former != nil {
			if err := en.Former.Consider(s, bound); err != nil {
				return err
			}
		}
	}

	if complete {
		if final, ok := w.Last(); ok {
			if _, err := en.bind(s, w, final, graph.StopTarget, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// bind creates or strengthens the (src, target) edge, refreshes its
// context tags from the wave, and counts the traversal.
func (en *Engine) bind(s *graph.Store, w *wave.Wave, src, target graph.NodeID, isStop bool) (graph.EdgeID, error) {
	id, _, err := s.AddEdge(src, target, isStop)
	if err != nil {
		return 0, err
	}
	e := s.Edge(id)
	s.AddWeight(id, float32(float64(en.Alpha)/(1+float64(e.Activations))))
	s.TagEdge(id, en.Gamma, w.Snapshot(src))
	s.BumpEdge(id)
	return id, nil
}
