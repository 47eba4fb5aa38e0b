package kv

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func withDatabases(t *testing.T, fn func(t *testing.T, db Database)) {
	t.Run("memory", func(t *testing.T) {
		db := NewMemoryDatabase()
		defer db.Close()
		fn(t, db)
	})

	t.Run("badger", func(t *testing.T) {
		dir, err := ioutil.TempDir("", "fsh-kv-db-test")
		require.Nil(t, err)
		defer os.RemoveAll(dir)

		db, err := NewBadgerDatabase(dir)
		require.Nil(t, err)
		defer func() {
			require.Nil(t, db.Close())
		}()

		fn(t, db)
	})
}

func TestDatabasePutGet(t *testing.T) {
	withDatabases(t, func(t *testing.T, db Database) {
		_, err := db.Get("a", "b")
		require.Equal(t, ErrNoSuchKey, err)

		batch := db.Batch()
		batch.Put([]byte("1"), "a", "b")
		batch.Put([]byte("2"), "a", "c")

		// Nothing is visible before the flush.
		_, err = db.Get("a", "b")
		require.Equal(t, ErrNoSuchKey, err)

		require.Nil(t, batch.Flush())

		data, err := db.Get("a", "b")
		require.Nil(t, err)
		require.Equal(t, []byte("1"), data)

		batch = db.Batch()
		batch.Erase("a", "b")
		require.Nil(t, batch.Flush())

		_, err = db.Get("a", "b")
		require.Equal(t, ErrNoSuchKey, err)
	})
}

func TestDatabaseRollback(t *testing.T) {
	withDatabases(t, func(t *testing.T, db Database) {
		batch := db.Batch()
		batch.Put([]byte("x"), "k")
		batch.Rollback()

		_, err := db.Get("k")
		require.Equal(t, ErrNoSuchKey, err)
	})
}

func TestDatabaseKeys(t *testing.T) {
	withDatabases(t, func(t *testing.T, db Database) {
		batch := db.Batch()
		batch.Put([]byte{}, "meta", "/a")
		batch.Put([]byte{}, "meta", "/a/b")
		batch.Put([]byte{}, "meta", "/ab")
		batch.Put([]byte{}, "blk", "x", "0")
		require.Nil(t, batch.Flush())

		keys, err := db.Keys("meta", "/a/")
		require.Nil(t, err)
		require.Equal(t, [][]string{{"meta", "/a/b"}}, keys)

		keys, err = db.Keys("meta", "/a")
		require.Nil(t, err)
		require.Equal(t, [][]string{
			{"meta", "/a"},
			{"meta", "/a/b"},
			{"meta", "/ab"},
		}, keys)

		keys, err = db.Keys("blk")
		require.Nil(t, err)
		require.Equal(t, [][]string{{"blk", "x", "0"}}, keys)
	})
}
