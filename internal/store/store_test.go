package store

import (
	"testing"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", true, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSlotLifecycle(t *testing.T) {
	s := openTest(t)
	id := [16]byte{1, 2, 3}

	_, err := s.GetSlot(id)
	require.ErrorIs(t, err, ErrNotFound)
	ok, err := s.HasSlot(id)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.PutSlot(id, []byte("state-v1")))
	raw, err := s.GetSlot(id)
	require.NoError(t, err)
	require.Equal(t, []byte("state-v1"), raw)

	err = s.Update(func(txn *badger.Txn) error {
		return s.DeleteSlotIn(txn, id)
	})
	require.NoError(t, err)
	_, err = s.GetSlot(id)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAtomicSlotTreeResultWrite(t *testing.T) {
	s := openTest(t)
	id := [16]byte{9}

	// All three writes commit together or not at all.
	err := s.Update(func(txn *badger.Txn) error {
		if err := s.PutSlotIn(txn, id, []byte("slot")); err != nil {
			return err
		}
		if err := s.PutTreeIn(txn, []byte("tree")); err != nil {
			return err
		}
		return s.PutResultIn(txn, id, []byte("result"))
	})
	require.NoError(t, err)

	tree, err := s.GetTree()
	require.NoError(t, err)
	require.Equal(t, []byte("tree"), tree)
	res, err := s.GetResult(id)
	require.NoError(t, err)
	require.Equal(t, []byte("result"), res)

	err = s.Update(func(txn *badger.Txn) error {
		if err := s.PutSlotIn(txn, id, []byte("changed")); err != nil {
			return err
		}
		return badger.ErrConflict
	})
	require.Error(t, err)

	raw, err := s.GetSlot(id)
	require.NoError(t, err)
	require.Equal(t, []byte("slot"), raw, "aborted transaction must leave no partial write")
}
