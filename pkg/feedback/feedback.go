// Package feedback applies a scalar error signal to the path the last
// generation walk took, nudging each step's weights toward the edge that
// would have emitted the known-correct continuation.
package feedback

import (
	"github.com/Jak3Gil/melvin/pkg/generate"
	"github.com/Jak3Gil/melvin/pkg/graph"
)

// Applier nudges edge weights along a recorded walk.
type Applier struct {
	// Lambda is the reinforcement rate, in (0, 0.5).
	Lambda float32
	// Alpha seeds the weight of a correct edge created on demand.
	Alpha float32
}

// NewApplier returns an applier with the design defaults: lambda 0.1,
// alpha 1.0.
func NewApplier() *Applier {
	return &Applier{Lambda: 0.1, Alpha: 1.0}
}

// Apply walks the recorded steps against expected. At each step the
// correct edge is the one from the step's source to the level-0 node of
// the next expected byte; once expected is exhausted, the source's stop
// edge is the correct one. Matching steps are strengthened, mismatches
// are weakened while the correct edge is strengthened (and created with
// weight alpha if it did not exist).
//
// No explicit renormalisation follows: scoring normalises at read time.
func (a *Applier) Apply(s *graph.Store, steps []generate.Step, expected []byte) error {
	consumed := 0
	for _, step := range steps {
		correct, err := a.correctEdge(s, step.Source, expected, consumed)
		if err != nil {
			return err
		}
		if step.Edge == correct {
			s.ScaleWeight(step.Edge, 1+a.Lambda)
		} else {
			s.ScaleWeight(step.Edge, 1-a.Lambda)
			s.ScaleWeight(correct, 1+a.Lambda)
		}
		consumed += step.Emitted
	}
	return nil
}

// correctEdge resolves (creating if needed) the edge the walk should have
// taken at a source given the unconsumed tail of expected.
func (a *Applier) correctEdge(s *graph.Store, src graph.NodeID, expected []byte, consumed int) (graph.EdgeID, error) {
	if consumed >= len(expected) {
		id, created, err := s.AddEdge(src, graph.StopTarget, true)
		if err != nil {
			return 0, err
		}
		if created {
			s.AddWeight(id, a.Alpha)
		}
		return id, nil
	}

	node, _, err := s.Intern([]byte{expected[consumed]}, 0, nil)
	if err != nil {
		return 0, err
	}
	id, created, err := s.AddEdge(src, node, false)
	if err != nil {
		return 0, err
	}
	if created {
		s.AddWeight(id, a.Alpha)
	}
	return id, nil
}
