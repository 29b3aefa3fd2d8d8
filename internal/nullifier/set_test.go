package nullifier

import (
	"testing"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/require"
)

func openInMemory(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testSet(t *testing.T, s Set) {
	t.Helper()
	var a, b [32]byte
	a[0], b[0] = 1, 2

	ok, err := s.Contains(a)
	require.NoError(t, err)
	require.False(t, ok)

	inserted, err := s.InsertIfAbsent(a)
	require.NoError(t, err)
	require.True(t, inserted)

	// Second insert of the same nullifier must not mutate.
	inserted, err = s.InsertIfAbsent(a)
	require.NoError(t, err)
	require.False(t, inserted)

	ok, err = s.Contains(a)
	require.NoError(t, err)
	require.True(t, ok)

	inserted, err = s.InsertIfAbsent(b)
	require.NoError(t, err)
	require.True(t, inserted)
}

func TestMemorySet(t *testing.T) {
	testSet(t, NewMemory())
}

func TestBadgerSet(t *testing.T) {
	testSet(t, NewBadger(openInMemory(t)))
}

func TestBadgerInsertSurvivesReopenOfTxn(t *testing.T) {
	db := openInMemory(t)
	s := NewBadger(db)

	var n [32]byte
	n[0] = 7

	// Composed into a caller transaction that commits.
	err := db.Update(func(txn *badger.Txn) error {
		inserted, err := s.InsertIfAbsentIn(txn, n)
		require.NoError(t, err)
		require.True(t, inserted)
		return nil
	})
	require.NoError(t, err)

	ok, err := s.Contains(n)
	require.NoError(t, err)
	require.True(t, ok)

	// A caller transaction that aborts must leave no trace.
	var m [32]byte
	m[0] = 8
	err = db.Update(func(txn *badger.Txn) error {
		inserted, err := s.InsertIfAbsentIn(txn, m)
		require.NoError(t, err)
		require.True(t, inserted)
		return badger.ErrConflict
	})
	require.Error(t, err)

	ok, err = s.Contains(m)
	require.NoError(t, err)
	require.False(t, ok)
}
