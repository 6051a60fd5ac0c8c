// Package score computes per-edge activation scores for the generator.
//
// Regular edges and stop edges are normalised independently (two
// softmax-free normalisations over raw weights), then biased by context-tag
// overlap with the current wave, by the target's abstraction level, and —
// for stop edges — by the learned stop statistic of the source node.
//
// Numerical policy: edges with a NaN weight are excluded from the step
// (the store itself clamps NaN to 0 on every weight write); a zero
// denominator yields a uniform distribution over the class.
package score

import (
	"math"

	"github.com/Jak3Gil/melvin/pkg/graph"
	"github.com/Jak3Gil/melvin/pkg/wave"
)

// Params holds the scoring coefficients.
type Params struct {
	// Beta scales the context-overlap bonus.
	Beta float64
	// Eta scales the hierarchy bonus per abstraction level.
	Eta float64
}

// DefaultParams returns the design coefficients.
func DefaultParams() Params {
	return Params{Beta: 1.0, Eta: 0.25}
}

// waveEps keeps the context denominator away from zero for empty waves.
const waveEps = 1e-6

// recencyBase discounts a matched tag by how far back in the wave its
// node last appeared: a tag matching the immediately preceding node
// counts at half strength per step of distance. Without the discount,
// stale context shared by competing edges (a long common prefix) drowns
// out the recent context that actually disambiguates them.
const recencyBase = 0.5

// Scored is one candidate edge with its computed score.
type Scored struct {
	Edge  graph.EdgeID
	Score float64
	Stop  bool
}

// Outgoing scores every usable outgoing edge of src against the current
// wave. Edges with NaN weight are excluded. The returned slice preserves
// adjacency (insertion) order, so equal scores tie-break toward the lower
// edge id by taking the first maximum.
func Outgoing(s *graph.Store, src graph.NodeID, w *wave.Wave, p Params) []Scored {
	n := s.Node(src)
	if n == nil {
		return nil
	}

	var regularSum, stopSum float64
	var regularN, stopN int
	usable := make([]*graph.Edge, 0, len(n.Outgoing))
	for _, id := range n.Outgoing {
		e := s.Edge(id)
		if e == nil || math.IsNaN(float64(e.Weight)) {
			continue
		}
		usable = append(usable, e)
		if e.IsStop {
			stopSum += float64(e.Weight)
			stopN++
		} else {
			regularSum += float64(e.Weight)
			regularN++
		}
	}

	out := make([]Scored, 0, len(usable))
	for _, e := range usable {
		base := classBase(e, regularSum, regularN, stopSum, stopN)
		sc := base * contextFactor(e, w, p.Beta)
		if e.IsStop {
			sc *= stopWeight(e, n)
		} else if t := s.Node(e.To); t != nil {
			sc *= 1 + p.Eta*float64(t.Level)
		}
		if math.IsNaN(sc) || math.IsInf(sc, 0) {
			sc = 0
		}
		out = append(out, Scored{Edge: e.ID, Score: sc, Stop: e.IsStop})
	}
	return out
}

// classBase normalises the edge weight within its stop class, falling back
// to uniform when the class carries no weight.
func classBase(e *graph.Edge, regularSum float64, regularN int, stopSum float64, stopN int) float64 {
	sum, count := regularSum, regularN
	if e.IsStop {
		sum, count = stopSum, stopN
	}
	if sum <= 0 {
		return 1 / float64(count)
	}
	return float64(e.Weight) / sum
}

// contextFactor is 1 + beta * overlap / (|wave| + eps), where overlap sums
// the recency-discounted strengths of the edge's tags whose node is
// currently in the wave.
func contextFactor(e *graph.Edge, w *wave.Wave, beta float64) float64 {
	var overlap float64
	for _, t := range e.Tags.All() {
		if dist, ok := w.Distance(t.Node); ok {
			overlap += float64(t.Strength) * math.Pow(recencyBase, float64(dist))
		}
	}
	return 1 + beta*overlap/(float64(w.Len())+waveEps)
}

// stopWeight is the learned stop statistic of the source node: the
// fraction of its activations that completed a sequence through its stop
// edge. Both counters persist in the brain file, so the statistic survives
// save/load unchanged.
func stopWeight(e *graph.Edge, n *graph.Node) float64 {
	den := n.Activations
	if den == 0 {
		den = 1
	}
	return float64(e.Activations) / float64(den)
}
