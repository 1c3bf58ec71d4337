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
	"errors"
	"fmt"

	"github.com/golang/snappy"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBStore is a Store backed by a LevelDB instance on disk.
type LevelDBStore struct {
	db   *leveldb.DB
	path string
}

// OpenLevelDB opens (or creates) the store at the given path.
func OpenLevelDB(path string) (*LevelDBStore, error) {
	return openLevelDB(path, &opt.Options{})
}

// OpenLevelDBReadOnly opens an existing store at the given path for
// reading. Mutating operations fail.
func OpenLevelDBReadOnly(path string) (*LevelDBStore, error) {
	return openLevelDB(path, &opt.Options{ReadOnly: true, ErrorIfMissing: true})
}

func openLevelDB(path string, options *opt.Options) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, options)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", path, err)
	}
	return &LevelDBStore{db: db, path: path}, nil
}

func (s *LevelDBStore) Get(col DBCol, key []byte) ([]byte, error) {
	value, err := s.db.Get(dbKey(col, key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if col.compressed() {
		return snappy.Decode(nil, value)
	}
	return value, nil
}

func (s *LevelDBStore) Has(col DBCol, key []byte) (bool, error) {
	return s.db.Has(dbKey(col, key), nil)
}

func (s *LevelDBStore) Set(col DBCol, key, value []byte) error {
	if col.compressed() {
		value = snappy.Encode(nil, value)
	}
	return s.db.Put(dbKey(col, key), value, nil)
}

func (s *LevelDBStore) Delete(col DBCol, key []byte) error {
	return s.db.Delete(dbKey(col, key), nil)
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

// Compact compacts the whole key space of the underlying database.
func (s *LevelDBStore) Compact() error {
	return s.db.CompactRange(util.Range{})
}

// Checkpoint clones the given columns into a new store at path. The copy is
// made from a consistent read snapshot of the database. Raw bytes are
// copied as they are, so compressed columns stay compressed.
func (s *LevelDBStore) Checkpoint(path string, cols []DBCol) (Store, error) {
	snapshot, err := s.db.GetSnapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot store at %s: %w", s.path, err)
	}
	defer snapshot.Release()

	res, err := OpenLevelDB(path)
	if err != nil {
		return nil, err
	}
	batch := new(leveldb.Batch)
	for _, col := range cols {
		iter := snapshot.NewIterator(util.BytesPrefix([]byte{byte(col)}), nil)
		for iter.Next() {
			key := make([]byte, len(iter.Key()))
			copy(key, iter.Key())
			value := make([]byte, len(iter.Value()))
			copy(value, iter.Value())
			batch.Put(key, value)
		}
		err := iter.Error()
		iter.Release()
		if err != nil {
			return nil, errors.Join(err, res.Close())
		}
	}
	if err := res.db.Write(batch, nil); err != nil {
		return nil, errors.Join(err, res.Close())
	}
	return res, nil
}
