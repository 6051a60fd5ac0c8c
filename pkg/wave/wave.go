// Package wave tracks the recently activated nodes that form the context
// for edge scoring. A wave is ephemeral: ingestion and generation push
// into it, and independent operations reset it unless the caller sustains
// it across calls.
package wave

import "github.com/Jak3Gil/melvin/pkg/graph"

// DefaultCap is the standard wave bound (W).
const DefaultCap = 16

// Wave is a bounded ordered sequence of node ids, most recent last.
type Wave struct {
	entries []graph.NodeID
	cap     int
}

// New returns an empty wave bounded to capacity w.
func New(w int) *Wave {
	if w < 1 {
		w = DefaultCap
	}
	return &Wave{cap: w}
}

// Cap reports the bound W.
func (w *Wave) Cap() int { return w.cap }

// Len reports the number of entries.
func (w *Wave) Len() int { return len(w.entries) }

// Push appends id, trimming the head when the wave is full.
func (w *Wave) Push(id graph.NodeID) {
	w.entries = append(w.entries, id)
	if len(w.entries) > w.cap {
		// Shift instead of re-slicing so the backing array stays bounded.
		copy(w.entries, w.entries[1:])
		w.entries = w.entries[:w.cap]
	}
}

// Last returns the most recent entry.
func (w *Wave) Last() (graph.NodeID, bool) {
	if len(w.entries) == 0 {
		return 0, false
	}
	return w.entries[len(w.entries)-1], true
}

// Contains reports whether id is in the wave.
func (w *Wave) Contains(id graph.NodeID) bool {
	_, ok := w.Distance(id)
	return ok
}

// Distance returns how many entries back the most recent occurrence of id
// sits (0 = most recent), or false if id is not in the wave.
func (w *Wave) Distance(id graph.NodeID) (int, bool) {
	for i := len(w.entries) - 1; i >= 0; i-- {
		if w.entries[i] == id {
			return len(w.entries) - 1 - i, true
		}
	}
	return 0, false
}

// Snapshot returns the entries in order, oldest first, excluding every
// occurrence of skip. The result is a fresh slice.
func (w *Wave) Snapshot(skip graph.NodeID) []graph.NodeID {
	out := make([]graph.NodeID, 0, len(w.entries))
	for _, e := range w.entries {
		if e != skip {
			out = append(out, e)
		}
	}
	return out
}

// Saturated reports whether the wave is full and every entry is the same
// node. The generator uses this as its cycle guard.
func (w *Wave) Saturated() bool {
	if len(w.entries) < w.cap {
		return false
	}
	first := w.entries[0]
	for _, e := range w.entries[1:] {
		if e != first {
			return false
		}
	}
	return true
}

// Reset empties the wave.
func (w *Wave) Reset() {
	w.entries = w.entries[:0]
}
