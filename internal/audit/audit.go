// Package audit provides a diagnostic, badger-backed ring log of
// admissibility decisions and ship events. It is a debugging aid, not a
// durability mechanism: replica correctness never depends on reading it
// back (spec §1 non-goal: durable persistence), so a closed or corrupted
// audit log degrades logging only, never convergence.
package audit

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"
)

// Event is one recorded admissibility or ship decision.
type Event struct {
	Time     time.Time `json:"time"`
	Kind     string    `json:"kind"` // "accept", "reject", "ship", "ship_failed"
	Neighbor string    `json:"neighbor,omitempty"`
	Detail   string    `json:"detail,omitempty"`
}

// Log is a bounded ring of recent Events backed by BadgerDB. Writes never
// block the replica actor: internal/replica's recordAudit calls RecordEvent
// from a separate goroutine, and RecordEvent discards any error without
// logging it, per the package's diagnostic-only contract.
type Log struct {
	db       *badger.DB
	capacity int
	seq      uint64
}

// Open creates or reopens a ring log at path with room for capacity
// events. A non-positive capacity defaults to 4096.
func Open(path string, capacity int) (*Log, error) {
	if capacity <= 0 {
		capacity = 4096
	}
	opts := badger.DefaultOptions(path)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to open badger db: %w", err)
	}
	return &Log{db: db, capacity: capacity}, nil
}

// Record appends an event, pruning the oldest entry once the ring exceeds
// its capacity.
func (l *Log) Record(ctx context.Context, ev Event) error {
	ev.Time = time.Now()
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("audit: failed to marshal event: %w", err)
	}

	key := l.seqKey(l.seq)
	l.seq++

	err = l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, payload)
	})
	if err != nil {
		return fmt.Errorf("audit: failed to record event: %w", err)
	}

	if l.seq > uint64(l.capacity) {
		oldest := l.seqKey(l.seq - uint64(l.capacity) - 1)
		_ = l.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(oldest)
		})
	}
	return nil
}

// Recent returns up to limit of the most recently recorded events, oldest
// first among the returned slice.
func (l *Log) Recent(ctx context.Context, limit int) ([]Event, error) {
	var out []Event
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte{0xFF}); it.Valid() && len(out) < limit; it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var ev Event
				if err := json.Unmarshal(val, &ev); err != nil {
					return err
				}
				out = append(out, ev)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("audit: failed to read recent events: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// RecordEvent wraps Record, swallowing its error. It satisfies
// replica.AuditSink structurally.
func (l *Log) RecordEvent(ctx context.Context, kind, neighbor, detail string) {
	_ = l.Record(ctx, Event{Kind: kind, Neighbor: neighbor, Detail: detail})
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}

func (l *Log) seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
