// Package archive stores snapshots of faded edges in a Badger database
// that lives next to the brain file.
//
// The decay maintenance pass reports edges whose weight fell below the
// archive threshold; their state at that moment is recorded here as an
// audit trail. Archiving never alters the graph — the brain file remains
// the single source of truth for live state.
package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/Jak3Gil/melvin/pkg/graph"
)

// Record is the archived snapshot of one edge.
type Record struct {
	EdgeID      graph.EdgeID
	From        graph.NodeID
	To          graph.NodeID
	IsStop      bool
	Weight      float32
	Activations uint64
	ArchivedAt  time.Time
}

// Store is a Badger-backed archive.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the archive at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("archive: open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens an archive backed by memory only, for tests.
func OpenInMemory() (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("archive: open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// edgeKey is "edge:<id BE u32>:<archived-at BE u64 nanos>"; the
// big-endian fields keep iteration ordered by edge id, then time.
func edgeKey(id graph.EdgeID, at time.Time) []byte {
	key := make([]byte, 0, 5+4+1+8)
	key = append(key, "edge:"...)
	key = binary.BigEndian.AppendUint32(key, uint32(id))
	key = append(key, ':')
	key = binary.BigEndian.AppendUint64(key, uint64(at.UnixNano()))
	return key
}

func edgePrefix(id graph.EdgeID) []byte {
	key := make([]byte, 0, 5+4+1)
	key = append(key, "edge:"...)
	key = binary.BigEndian.AppendUint32(key, uint32(id))
	return append(key, ':')
}

// PutEdge records the edge's current state.
func (s *Store) PutEdge(e *graph.Edge) error {
	rec := Record{
		EdgeID:      e.ID,
		From:        e.From,
		To:          e.To,
		IsStop:      e.IsStop,
		Weight:      e.Weight,
		Activations: e.Activations,
		ArchivedAt:  time.Now(),
	}
	val := encodeRecord(&rec)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(edgeKey(rec.EdgeID, rec.ArchivedAt), val)
	})
	if err != nil {
		return fmt.Errorf("archive: put edge %d: %w", e.ID, err)
	}
	return nil
}

// History returns the archived snapshots of one edge, oldest first.
func (s *Store) History(id graph.EdgeID) ([]Record, error) {
	var out []Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = edgePrefix(id)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				rec, err := decodeRecord(val)
				if err != nil {
					return err
				}
				out = append(out, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive: history of edge %d: %w", id, err)
	}
	return out, nil
}

// Count returns the total number of archived records.
func (s *Store) Count() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("archive: count: %w", err)
	}
	return count, nil
}

func encodeRecord(rec *Record) []byte {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, uint32(rec.EdgeID))
	binary.Write(buf, binary.LittleEndian, uint32(rec.From))
	binary.Write(buf, binary.LittleEndian, uint32(rec.To))
	stop := uint8(0)
	if rec.IsStop {
		stop = 1
	}
	buf.WriteByte(stop)
	binary.Write(buf, binary.LittleEndian, rec.Weight)
	binary.Write(buf, binary.LittleEndian, rec.Activations)
	binary.Write(buf, binary.LittleEndian, rec.ArchivedAt.UnixNano())
	return buf.Bytes()
}

func decodeRecord(data []byte) (Record, error) {
	var rec Record
	if len(data) != 4+4+4+1+4+8+8 {
		return rec, fmt.Errorf("archive: record length %d", len(data))
	}
	r := bytes.NewReader(data)
	var edgeID, from, to uint32
	var stop uint8
	var nanos int64
	binary.Read(r, binary.LittleEndian, &edgeID)
	binary.Read(r, binary.LittleEndian, &from)
	binary.Read(r, binary.LittleEndian, &to)
	binary.Read(r, binary.LittleEndian, &stop)
	binary.Read(r, binary.LittleEndian, &rec.Weight)
	binary.Read(r, binary.LittleEndian, &rec.Activations)
	binary.Read(r, binary.LittleEndian, &nanos)
	rec.EdgeID = graph.EdgeID(edgeID)
	rec.From = graph.NodeID(from)
	rec.To = graph.NodeID(to)
	rec.IsStop = stop != 0
	rec.ArchivedAt = time.Unix(0, nanos)
	return rec, nil
}
