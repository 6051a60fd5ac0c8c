// Package melvin is the public surface of the byte-level associative
// graph engine.
//
// A DB wraps one brain file: a persistent directed graph whose nodes
// carry byte payloads and whose edges carry contextual transition
// weights. The engine learns byte sequences by co-occurrence (Ingest),
// emits continuations by a guarded stochastic walk (Generate), accepts
// an error signal over the last walk (Feedback), and round-trips the
// whole graph plus RNG state through a single on-disk artifact
// (Save/Load).
//
// Example Usage:
//
//	db, err := melvin.Create("brain.melvin", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	for i := 0; i < 20; i++ {
//		db.Ingest([]byte("hello world"), true)
//	}
//
//	db.Ingest([]byte("hello"), false)
//	out, _ := db.Generate(20)
//	fmt.Printf("%q\n", out) // " world"
//
// All operations on one DB are serialised behind a single mutex; the
// engine is single-threaded by design and callers get that contract
// enforced at this boundary. The brain file must be owned by exactly one
// process at a time — guarding against concurrent opens is left to the
// caller.
package melvin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"sync"

	"github.com/Jak3Gil/melvin/pkg/archive"
	"github.com/Jak3Gil/melvin/pkg/config"
	"github.com/Jak3Gil/melvin/pkg/decay"
	"github.com/Jak3Gil/melvin/pkg/feedback"
	"github.com/Jak3Gil/melvin/pkg/generate"
	"github.com/Jak3Gil/melvin/pkg/graph"
	"github.com/Jak3Gil/melvin/pkg/hierarchy"
	"github.com/Jak3Gil/melvin/pkg/ingest"
	"github.com/Jak3Gil/melvin/pkg/persist"
	"github.com/Jak3Gil/melvin/pkg/score"
	"github.com/Jak3Gil/melvin/pkg/wave"
)

// Errors returned by DB operations.
var (
	ErrAlreadyExists = errors.New("melvin: brain file already exists")
	ErrClosed        = errors.New("melvin: database is closed")
	ErrEmptyWave     = errors.New("melvin: generate requires a non-empty wave")
)

// DB is a handle to one open brain file.
type DB struct {
	mu sync.Mutex

	path string
	cfg  *config.Config

	store     *graph.Store
	wv        *wave.Wave
	pcg       *rand.PCG
	rng       *rand.Rand
	ingester  *ingest.Engine
	generator *generate.Generator
	applier   *feedback.Applier

	decay   *decay.Manager
	archive *archive.Store

	// Universal byte queues. Ingest feeds through input, Generate drains
	// through output; both exist so port adapters can copy bytes in and
	// out without touching engine internals.
	input  []byte
	output []byte

	lastWalk []generate.Step

	// waveLive is true while the wave belongs to an unfinished sequence
	// (an Ingest with complete=false). Ingest with complete=true and
	// Generate clear it, so the next Ingest starts from an empty wave.
	waveLive bool

	closed bool
}

// Stats is the observable summary of a brain.
type Stats struct {
	NodeCount        int
	EdgeCount        int
	ActivationsTotal uint64
	HierarchyNodes   int
	Path             string
}

// Create makes an empty brain file at path and returns its handle. The
// file is written immediately so that a second Create at the same path
// fails with ErrAlreadyExists.
func Create(path string, cfg *config.Config) (*DB, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("melvin: stat %s: %w", path, err)
	}

	db, err := newDB(path, cfg, nil, nil)
	if err != nil {
		return nil, err
	}
	if err := db.Save(); err != nil {
		db.teardown()
		return nil, err
	}
	return db, nil
}

// Load opens an existing brain file.
func Load(path string, cfg *config.Config) (*DB, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, rngState, err := persist.Load(path, graph.Options{
		TagCap:     cfg.TagCap,
		MaxPayload: cfg.MaxPayload,
	})
	if err != nil {
		return nil, err
	}
	return newDB(path, cfg, store, rngState)
}

// newDB wires the engine components around a store (created empty when
// nil) and restores the RNG from rngState when present.
func newDB(path string, cfg *config.Config, store *graph.Store, rngState []byte) (*DB, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		store = graph.NewStore(graph.Options{
			TagCap:     cfg.TagCap,
			MaxPayload: cfg.MaxPayload,
		})
	}

	pcg := rand.NewPCG(cfg.Seed, cfg.Seed^0x9E3779B97F4A7C15)
	if len(rngState) > 0 {
		if err := pcg.UnmarshalBinary(rngState); err != nil {
			return nil, fmt.Errorf("%w: rng state: %v", persist.ErrCorrupt, err)
		}
	}

	former := hierarchy.NewFormer()
	former.MinThreshold = cfg.HierarchyMin
	former.CloneWeight = float32(cfg.CloneWeight)

	db := &DB{
		path:  path,
		cfg:   cfg,
		store: store,
		wv:    wave.New(cfg.WaveCap),
		pcg:   pcg,
		ingester: &ingest.Engine{
			Alpha:  float32(cfg.Alpha),
			Gamma:  float32(cfg.Gamma),
			Former: former,
		},
		generator: &generate.Generator{
			Params:   score.Params{Beta: cfg.Beta, Eta: cfg.Eta},
			Epsilon0: cfg.Epsilon,
		},
		applier: &feedback.Applier{
			Lambda: float32(cfg.Lambda),
			Alpha:  float32(cfg.Alpha),
		},
	}
	db.rng = rand.New(db.pcg)

	if cfg.ArchiveDir != "" {
		arch, err := archive.Open(cfg.ArchiveDir)
		if err != nil {
			return nil, err
		}
		db.archive = arch
	}
	if cfg.DecayEnabled {
		db.decay = decay.New(&decay.Config{
			HalfLife:         cfg.DecayHalfLife,
			ArchiveThreshold: cfg.ArchiveThreshold,
			Interval:         cfg.DecayInterval,
		})
		db.decay.Start(db.backgroundMaintain)
	}
	return db, nil
}

// Ingest appends bytes to the universal input buffer and runs the
// ingestion pipeline over them. With complete=true the final node trains
// its stop edge and the wave is discarded; with complete=false the wave
// stays live so a following Generate continues the sequence.
//
// The call is transactional: on any internal failure the graph, the wave
// and the input buffer are restored and the error is returned.
func (db *DB) Ingest(data []byte, complete bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}

	if !db.waveLive {
		db.wv.Reset()
	}
	// StopTarget never enters the wave, so this snapshot is a full copy.
	waveBefore := db.wv.Snapshot(graph.StopTarget)
	inputBefore := len(db.input)
	db.input = append(db.input, data...)

	if err := db.store.Begin(); err != nil {
		return err
	}
	if err := db.ingester.Ingest(db.store, db.wv, db.input, complete); err != nil {
		db.store.Rollback()
		db.restoreWave(waveBefore)
		db.input = db.input[:inputBefore]
		return err
	}
	if err := db.store.Commit(); err != nil {
		return err
	}
	db.input = db.input[:0]

	if complete {
		db.wv.Reset()
		db.waveLive = false
	} else {
		db.waveLive = true
	}
	return nil
}

// Generate runs the autoregressive walk from the current wave head and
// returns up to maxBytes of continuation. maxBytes <= 0 selects the
// configured default. An empty wave yields ErrEmptyWave.
func (db *DB) Generate(maxBytes int) ([]byte, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, ErrClosed
	}
	if db.wv.Len() == 0 {
		return nil, ErrEmptyWave
	}
	if maxBytes <= 0 {
		maxBytes = db.cfg.MaxBytes
	}

	res := db.generator.Generate(db.store, db.wv, db.rng, maxBytes)
	db.lastWalk = res.Steps
	db.waveLive = false

	db.output = append(db.output, res.Output...)
	out := make([]byte, len(db.output))
	copy(out, db.output)
	db.output = db.output[:0]
	return out, nil
}

// Feedback replays the last Generate walk against the continuation that
// would have been correct, strengthening matching choices and weakening
// mismatches.
func (db *DB) Feedback(expected []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	if len(db.lastWalk) == 0 {
		return nil
	}

	if err := db.store.Begin(); err != nil {
		return err
	}
	if err := db.applier.Apply(db.store, db.lastWalk, expected); err != nil {
		db.store.Rollback()
		return err
	}
	return db.store.Commit()
}

// Save writes the brain file atomically, RNG state included.
func (db *DB) Save() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	return db.saveLocked()
}

func (db *DB) saveLocked() error {
	rngState, err := db.pcg.MarshalBinary()
	if err != nil {
		return fmt.Errorf("melvin: marshal rng: %w", err)
	}
	return persist.Save(db.path, db.store, rngState)
}

// Maintain runs one decay pass and archives edges that faded below the
// threshold. A no-op when decay is disabled.
func (db *DB) Maintain() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	return db.maintainLocked()
}

func (db *DB) maintainLocked() error {
	if db.decay == nil {
		return nil
	}
	faded := db.decay.Pass(db.store)
	if db.archive == nil {
		return nil
	}
	for _, id := range faded {
		if err := db.archive.PutEdge(db.store.Edge(id)); err != nil {
			return err
		}
	}
	return nil
}

// Stats reports the observable counters of the brain.
func (db *DB) Stats() Stats {
	db.mu.Lock()
	defer db.mu.Unlock()
	return Stats{
		NodeCount:        db.store.NodeCount(),
		EdgeCount:        db.store.EdgeCount(),
		ActivationsTotal: db.store.TotalActivations(),
		HierarchyNodes:   db.store.HierarchyNodeCount(),
		Path:             db.path,
	}
}

// Close saves the brain and releases every resource. The handle is
// unusable afterwards.
func (db *DB) Close() error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return nil
	}
	err := db.saveLocked()
	db.closed = true
	db.mu.Unlock()

	db.teardown()
	return err
}

// teardown stops background work and closes the archive. Called outside
// the DB mutex: the decay goroutine takes the mutex via backgroundMaintain.
func (db *DB) teardown() {
	if db.decay != nil {
		db.decay.Stop()
	}
	if db.archive != nil {
		if err := db.archive.Close(); err != nil {
			log.Printf("melvin: closing archive: %v", err)
		}
	}
}

func (db *DB) backgroundMaintain(_ context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	if err := db.maintainLocked(); err != nil {
		log.Printf("melvin: maintenance pass: %v", err)
		return err
	}
	return nil
}

// restoreWave rebuilds the wave from a snapshot after a rolled-back
// ingest.
func (db *DB) restoreWave(entries []graph.NodeID) {
	db.wv.Reset()
	for _, id := range entries {
		db.wv.Push(id)
	}
}
