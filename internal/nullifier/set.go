// set.go - Double-spend guard over spent-note nullifiers.
//
// The contract is a single atomic check-and-set; there is no removal.
// Storage layout (single map, badger keyspace, future sharding) is a
// backend concern hidden behind Set.

package nullifier

import (
	"errors"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v3"
)

// Set records spent nullifiers exactly once.
type Set interface {
	// InsertIfAbsent inserts n and returns true, or returns false
	// without mutation when n is already present.
	InsertIfAbsent(n [32]byte) (bool, error)

	// Contains reports membership without mutating.
	Contains(n [32]byte) (bool, error)
}

// Memory is a mutex-guarded in-process Set.
type Memory struct {
	mu   sync.Mutex
	seen map[[32]byte]struct{}
}

// NewMemory returns an empty in-memory set.
func NewMemory() *Memory {
	return &Memory{seen: map[[32]byte]struct{}{}}
}

func (m *Memory) InsertIfAbsent(n [32]byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[n]; ok {
		return false, nil
	}
	m.seen[n] = struct{}{}
	return true, nil
}

func (m *Memory) Contains(n [32]byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[n]
	return ok, nil
}

// keyPrefix namespaces nullifier keys within a shared database.
var keyPrefix = []byte("nf/")

// Badger is a Set persisted in a badger keyspace.
type Badger struct {
	db *badger.DB
}

// NewBadger wraps an open database.
func NewBadger(db *badger.DB) *Badger {
	return &Badger{db: db}
}

func key(n [32]byte) []byte {
	k := make([]byte, 0, len(keyPrefix)+32)
	k = append(k, keyPrefix...)
	return append(k, n[:]...)
}

// InsertIfAbsentIn performs the check-and-set inside an existing
// transaction, so callers can commit it together with other writes.
func (b *Badger) InsertIfAbsentIn(txn *badger.Txn, n [32]byte) (bool, error) {
	k := key(n)
	_, err := txn.Get(k)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, badger.ErrKeyNotFound):
	default:
		return false, fmt.Errorf("nullifier: lookup: %w", err)
	}
	if err := txn.Set(k, nil); err != nil {
		return false, fmt.Errorf("nullifier: insert: %w", err)
	}
	return true, nil
}

func (b *Badger) InsertIfAbsent(n [32]byte) (bool, error) {
	var inserted bool
	err := b.db.Update(func(txn *badger.Txn) error {
		var err error
		inserted, err = b.InsertIfAbsentIn(txn, n)
		return err
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (b *Badger) Contains(n [32]byte) (bool, error) {
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key(n))
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("nullifier: lookup: %w", err)
	}
}
