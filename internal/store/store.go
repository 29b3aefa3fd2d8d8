// store.go - Badger-backed persistence for slots, tree, and results.
//
// One database holds every durable structure: the per-computation state
// slots, the serialized commitment tree, terminal result records, and
// the nullifier keyspace. Accept-path writes for one computation go
// through a single Update transaction, which is what makes the final
// status change and the tree/nullifier mutation atomic.

package store

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/rs/zerolog"
)

// ErrNotFound means no value exists under the requested key.
var ErrNotFound = errors.New("store: not found")

var (
	slotPrefix   = []byte("slot/")
	resultPrefix = []byte("res/")
	treeKey      = []byte("tree")
)

// Store wraps one open badger database.
type Store struct {
	db  *badger.DB
	log zerolog.Logger
}

// Open opens (or creates) the database at dir. With inMemory set, dir is
// ignored and nothing touches disk; tests use this mode.
func Open(dir string, inMemory bool, log zerolog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).
		WithInMemory(inMemory).
		WithLogger(nil)
	if inMemory {
		opts.Dir = ""
		opts.ValueDir = ""
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", dir, err)
	}
	log.Info().Str("dir", dir).Bool("in_memory", inMemory).Msg("store opened")
	return &Store{db: db, log: log}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying database for components that manage their
// own keyspace, such as the nullifier set.
func (s *Store) DB() *badger.DB {
	return s.db
}

// Update runs fn in one read-write transaction.
func (s *Store) Update(fn func(txn *badger.Txn) error) error {
	return s.db.Update(fn)
}

func slotKey(id [16]byte) []byte {
	return append(append([]byte{}, slotPrefix...), id[:]...)
}

func resultKey(id [16]byte) []byte {
	return append(append([]byte{}, resultPrefix...), id[:]...)
}

func get(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get: %w", err)
	}
	return item.ValueCopy(nil)
}

// GetSlot loads the persisted state of one computation.
func (s *Store) GetSlot(id [16]byte) ([]byte, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		raw, err = get(txn, slotKey(id))
		return err
	})
	return raw, err
}

// PutSlotIn writes a slot inside an existing transaction.
func (s *Store) PutSlotIn(txn *badger.Txn, id [16]byte, raw []byte) error {
	return txn.Set(slotKey(id), raw)
}

// PutSlot writes a slot in its own transaction.
func (s *Store) PutSlot(id [16]byte, raw []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return s.PutSlotIn(txn, id, raw)
	})
}

// DeleteSlotIn removes a slot inside an existing transaction.
func (s *Store) DeleteSlotIn(txn *badger.Txn, id [16]byte) error {
	return txn.Delete(slotKey(id))
}

// HasSlot reports whether a live slot exists for id.
func (s *Store) HasSlot(id [16]byte) (bool, error) {
	_, err := s.GetSlot(id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetTree loads the serialized commitment tree, if any was saved.
func (s *Store) GetTree() ([]byte, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		raw, err = get(txn, treeKey)
		return err
	})
	return raw, err
}

// PutTreeIn writes the serialized tree inside an existing transaction.
func (s *Store) PutTreeIn(txn *badger.Txn, raw []byte) error {
	return txn.Set(treeKey, raw)
}

// GetResult loads a terminal result record.
func (s *Store) GetResult(id [16]byte) ([]byte, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		raw, err = get(txn, resultKey(id))
		return err
	})
	return raw, err
}

// PutResultIn writes a terminal result record inside an existing
// transaction.
func (s *Store) PutResultIn(txn *badger.Txn, id [16]byte, raw []byte) error {
	return txn.Set(resultKey(id), raw)
}

// DeleteResultIn removes a result record inside an existing transaction.
func (s *Store) DeleteResultIn(txn *badger.Txn, id [16]byte) error {
	return txn.Delete(resultKey(id))
}
