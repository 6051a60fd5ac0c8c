// Package generate implements the autoregressive walk: starting from the
// wave head, it scores the current node's outgoing edges, lets the stop
// class compete with the regular class, samples a regular edge, and emits
// the target's payload — until a stop fires or a runaway guard trips.
package generate

import (
	"bytes"
	"math"
	"math/rand/v2"

	"github.com/Jak3Gil/melvin/pkg/graph"
	"github.com/Jak3Gil/melvin/pkg/score"
	"github.com/Jak3Gil/melvin/pkg/wave"
)

// DefaultMaxBytes bounds a walk when the caller passes no limit.
const DefaultMaxBytes = 256

// Generator drives the generation walk.
type Generator struct {
	// Params are the scoring coefficients.
	Params score.Params
	// Epsilon0 is the base exploration rate; the effective rate shrinks
	// as the current node accumulates activations.
	Epsilon0 float64
}

// NewGenerator returns a generator with the design defaults.
func NewGenerator() *Generator {
	return &Generator{Params: score.DefaultParams(), Epsilon0: 0.1}
}

// Step records one selection of the walk, kept so feedback can revisit
// the exact path taken.
type Step struct {
	Source  graph.NodeID
	Edge    graph.EdgeID
	Emitted int
}

// Result is the outcome of one walk.
type Result struct {
	Output []byte
	Steps  []Step
	// Stopped is true when the walk ended by winning stop competition
	// rather than by a byte limit or cycle guard.
	Stopped bool
}

// Generate walks from the wave head until termination and returns the
// emitted bytes. Identical RNG state and brain state produce identical
// output. An empty wave yields an empty result.
//
// The walk mutates only activation counters and the wave; weights and
// topology are untouched. The counters it bumps do feed later steps of the
// same walk: the stop modifier divides by the source node's activations,
// and the exploration rate shrinks as they grow.
func (g *Generator) Generate(s *graph.Store, w *wave.Wave, rng *rand.Rand, maxBytes int) Result {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	var res Result

	current, ok := w.Last()
	if !ok {
		return res
	}

	for {
		scored := score.Outgoing(s, current, w, g.Params)
		bestStop, hasStop := maxOfClass(scored, true)
		bestRegular, hasRegular := maxOfClass(scored, false)

		if !hasRegular {
			res.Stopped = hasStop
			break
		}
		if hasStop && bestStop.Score > bestRegular.Score {
			res.Stopped = true
			break
		}

		chosen := g.selectEdge(s, scored, bestRegular, current, rng)
		e := s.Edge(chosen.Edge)
		t := s.Node(e.To)

		res.Output = append(res.Output, t.Payload...)
		res.Steps = append(res.Steps, Step{Source: current, Edge: e.ID, Emitted: len(t.Payload)})

		s.BumpNode(t.ID)
		s.BumpEdge(e.ID)
		w.Push(t.ID)
		current = t.ID

		if len(res.Output) >= maxBytes || w.Saturated() || periodic(res.Output) {
			break
		}
	}

	if len(res.Output) > maxBytes {
		res.Output = res.Output[:maxBytes]
	}
	return res
}

// selectEdge applies the epsilon-greedy policy: argmax with probability
// 1-eps, score-weighted random otherwise. The exploration rate adapts
// downward as the source node's activation count grows.
func (g *Generator) selectEdge(s *graph.Store, scored []score.Scored, best score.Scored, current graph.NodeID, rng *rand.Rand) score.Scored {
	eps := g.Epsilon0
	if n := s.Node(current); n != nil {
		eps = g.Epsilon0 / (1 + math.Log1p(float64(n.Activations)))
	}
	if rng == nil || rng.Float64() >= eps {
		return best
	}

	var total float64
	for _, c := range scored {
		if !c.Stop {
			total += c.Score
		}
	}
	if total <= 0 {
		// All-zero scores: uniform over regular candidates.
		count := 0
		for _, c := range scored {
			if !c.Stop {
				count++
			}
		}
		pick := rng.IntN(count)
		for _, c := range scored {
			if c.Stop {
				continue
			}
			if pick == 0 {
				return c
			}
			pick--
		}
		return best
	}

	u := rng.Float64() * total
	for _, c := range scored {
		if c.Stop {
			continue
		}
		u -= c.Score
		if u <= 0 {
			return c
		}
	}
	return best
}

// maxOfClass returns the best-scored candidate of the class. Candidates
// arrive in ascending edge-id order, and the strict comparison keeps the
// first maximum, giving the (-score, edge_id) tie-break.
func maxOfClass(scored []score.Scored, stop bool) (score.Scored, bool) {
	var best score.Scored
	found := false
	for _, c := range scored {
		if c.Stop != stop {
			continue
		}
		if !found || c.Score > best.Score {
			best = c
			found = true
		}
	}
	return best, found
}

// periodic reports whether the output tail repeats with period r in
// {1,2,3}: the last 2r bytes equal to the 2r bytes before them.
func periodic(out []byte) bool {
	for r := 1; r <= 3; r++ {
		n := len(out)
		if n < 4*r {
			continue
		}
		if bytes.Equal(out[n-2*r:], out[n-4*r:n-2*r]) {
			return true
		}
	}
	return false
}
