// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package store

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// storeFactories produces one fresh store per implementation under test.
var storeFactories = map[string]func(t *testing.T) Store{
	"leveldb": func(t *testing.T) Store {
		res, err := OpenLevelDB(filepath.Join(t.TempDir(), "db"))
		require.NoError(t, err)
		t.Cleanup(func() { res.Close() })
		return res
	},
	"memory": func(t *testing.T) Store {
		return NewMemStore()
	},
}

func TestStore_SetGet_RoundTripsAcrossColumns(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			s := factory(t)

			require.NoError(s.Set(ColState, []byte("key"), []byte("state value")))
			require.NoError(s.Set(ColFlatState, []byte("key"), []byte("flat value")))

			value, err := s.Get(ColState, []byte("key"))
			require.NoError(err)
			require.Equal([]byte("state value"), value)

			// Columns are independent key spaces.
			value, err = s.Get(ColFlatState, []byte("key"))
			require.NoError(err)
			require.Equal([]byte("flat value"), value)
		})
	}
}

func TestStore_Get_MissingKeyReportsNotFound(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			s := factory(t)
			_, err := s.Get(ColBlockMisc, []byte("missing"))
			require.ErrorIs(err, ErrNotFound)
			found, err := s.Has(ColBlockMisc, []byte("missing"))
			require.NoError(err)
			require.False(found)
		})
	}
}

func TestStore_Delete_RemovesKeyAndToleratesAbsence(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			s := factory(t)

			require.NoError(s.Set(ColBlockMisc, []byte("key"), []byte("value")))
			require.NoError(s.Delete(ColBlockMisc, []byte("key")))
			_, err := s.Get(ColBlockMisc, []byte("key"))
			require.ErrorIs(err, ErrNotFound)

			require.NoError(s.Delete(ColBlockMisc, []byte("key")))
		})
	}
}

func TestStore_StateParts_CompressionIsTransparent(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			s := factory(t)

			// Highly repetitive payload, as state parts typically are.
			part := bytes.Repeat([]byte("trie node data "), 1000)
			require.NoError(s.Set(ColStateParts, []byte("part-0"), part))
			value, err := s.Get(ColStateParts, []byte("part-0"))
			require.NoError(err)
			require.Equal(part, value)
		})
	}
}

func TestStore_Checkpoint_CopiesOnlyRequestedColumns(t *testing.T) {
	factories := map[string]func(t *testing.T) Checkpointer{
		"leveldb": func(t *testing.T) Checkpointer {
			res, err := OpenLevelDB(filepath.Join(t.TempDir(), "db"))
			require.NoError(t, err)
			t.Cleanup(func() { res.Close() })
			return res
		},
		"memory": func(t *testing.T) Checkpointer {
			return NewMemStore()
		},
	}

	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			source := factory(t)
			s := source.(Store)

			require.NoError(s.Set(ColFlatState, []byte("kept"), []byte("value")))
			require.NoError(s.Set(ColStateParts, []byte("part"), []byte("payload")))
			require.NoError(s.Set(ColState, []byte("dropped"), []byte("value")))

			checkpoint, err := source.Checkpoint(
				filepath.Join(t.TempDir(), "checkpoint"),
				[]DBCol{ColFlatState, ColStateParts},
			)
			require.NoError(err)
			defer checkpoint.Close()

			value, err := checkpoint.Get(ColFlatState, []byte("kept"))
			require.NoError(err)
			require.Equal([]byte("value"), value)

			// Compressed columns survive the raw copy.
			value, err = checkpoint.Get(ColStateParts, []byte("part"))
			require.NoError(err)
			require.Equal([]byte("payload"), value)

			_, err = checkpoint.Get(ColState, []byte("dropped"))
			require.ErrorIs(err, ErrNotFound)

			// The checkpoint is detached from later writes.
			require.NoError(s.Set(ColFlatState, []byte("late"), []byte("value")))
			_, err = checkpoint.Get(ColFlatState, []byte("late"))
			require.ErrorIs(err, ErrNotFound)
		})
	}
}

func TestLevelDBStore_ReadOnlyOpen_FailsOnMissingDatabase(t *testing.T) {
	require := require.New(t)
	_, err := OpenLevelDBReadOnly(filepath.Join(t.TempDir(), "missing"))
	require.Error(err)
}

func TestLevelDBStore_ReopenedStore_SeesPersistedData(t *testing.T) {
	require := require.New(t)
	path := filepath.Join(t.TempDir(), "db")

	s, err := OpenLevelDB(path)
	require.NoError(err)
	require.NoError(s.Set(ColBlockMisc, []byte("key"), []byte("value")))
	require.NoError(s.Close())

	reopened, err := OpenLevelDBReadOnly(path)
	require.NoError(err)
	defer reopened.Close()
	value, err := reopened.Get(ColBlockMisc, []byte("key"))
	require.NoError(err)
	require.Equal([]byte("value"), value)
}
