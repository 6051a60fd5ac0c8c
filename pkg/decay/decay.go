// Package decay implements the optional weight-decay maintenance pass.
//
// Edge weights in the core only ever grow (ingestion) or get nudged
// (feedback). Long-lived brains accumulate weight on transitions that
// stopped occurring; the decay pass counters that by multiplying every
// edge weight by an exponential factor derived from a configured
// half-life and the time elapsed since the previous pass.
//
// Edges whose weight falls below the archive threshold are reported to
// the caller so a snapshot of their state can be archived; the edges
// themselves always stay in the graph — the pass changes weights, never
// topology.
//
// Example Usage:
//
//	manager := decay.New(decay.DefaultConfig())
//	defer manager.Stop()
//
//	// One manual pass:
//	faded := manager.Pass(store)
//	for _, id := range faded {
//		archive.PutEdge(store.Edge(id))
//	}
//
//	// Or on a background ticker:
//	manager.Start(func(ctx context.Context) error {
//		db.Maintain()
//		return nil
//	})
package decay

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/Jak3Gil/melvin/pkg/graph"
)

// Config controls the decay pass.
type Config struct {
	// HalfLife is the elapsed time over which an untouched weight halves.
	HalfLife time.Duration

	// ArchiveThreshold is the weight below which a decayed edge is
	// reported for archiving.
	ArchiveThreshold float64

	// Interval is the background pass cadence used by Start.
	Interval time.Duration
}

// DefaultConfig returns a one-week half-life, a 0.01 archive threshold
// and an hourly background cadence.
func DefaultConfig() *Config {
	return &Config{
		HalfLife:         7 * 24 * time.Hour,
		ArchiveThreshold: 0.01,
		Interval:         time.Hour,
	}
}

// Manager runs decay passes, manually or on a ticker.
type Manager struct {
	config *Config

	mu       sync.Mutex
	lastPass time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a manager. The first Pass measures elapsed time from here.
func New(config *Config) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		config:   config,
		lastPass: time.Now(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Factor returns the multiplicative decay for an elapsed duration:
// 0.5 ^ (elapsed / half-life). Non-positive elapsed yields 1.
func (m *Manager) Factor(elapsed time.Duration) float64 {
	if elapsed <= 0 || m.config.HalfLife <= 0 {
		return 1
	}
	return math.Pow(0.5, float64(elapsed)/float64(m.config.HalfLife))
}

// ShouldArchive reports whether a weight has faded below the threshold.
func (m *Manager) ShouldArchive(weight float64) bool {
	return weight < m.config.ArchiveThreshold
}

// Pass decays every edge weight by the factor accumulated since the
// previous pass and returns the ids of edges that faded below the
// archive threshold during this pass.
func (m *Manager) Pass(s *graph.Store) []graph.EdgeID {
	m.mu.Lock()
	now := time.Now()
	factor := m.Factor(now.Sub(m.lastPass))
	m.lastPass = now
	m.mu.Unlock()
	return m.ApplyFactor(s, factor)
}

// ApplyFactor is the deterministic core of Pass: scale all weights by
// factor and collect newly faded edges. Factors outside (0, 1] are
// ignored.
func (m *Manager) ApplyFactor(s *graph.Store, factor float64) []graph.EdgeID {
	if factor <= 0 || factor > 1 {
		return nil
	}
	var faded []graph.EdgeID
	for i := 0; i < s.EdgeCount(); i++ {
		id := graph.EdgeID(i)
		e := s.Edge(id)
		before := float64(e.Weight)
		s.ScaleWeight(id, float32(factor))
		after := float64(s.Edge(id).Weight)
		if !m.ShouldArchive(before) && m.ShouldArchive(after) {
			faded = append(faded, id)
		}
	}
	return faded
}

// Start runs passFunc on the configured interval until Stop.
func (m *Manager) Start(passFunc func(context.Context) error) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				_ = passFunc(m.ctx)
			}
		}
	}()
}

// Stop halts background passes and waits for the goroutine to exit.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
}
