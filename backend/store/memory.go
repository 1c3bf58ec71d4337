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
	"sync"
)

// MemStore is an all-in-memory Store used in tests and tooling. It applies
// the same transparent column compression as the durable store.
type MemStore struct {
	mutex sync.RWMutex
	data  [numColumns]map[string][]byte
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	res := &MemStore{}
	for i := range res.data {
		res.data[i] = make(map[string][]byte)
	}
	return res
}

func (s *MemStore) Get(col DBCol, key []byte) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	value, found := s.data[col][string(key)]
	if !found {
		return nil, ErrNotFound
	}
	res := make([]byte, len(value))
	copy(res, value)
	return res, nil
}

func (s *MemStore) Has(col DBCol, key []byte) (bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, found := s.data[col][string(key)]
	return found, nil
}

func (s *MemStore) Set(col DBCol, key, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.data[col][string(key)] = stored
	return nil
}

func (s *MemStore) Delete(col DBCol, key []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.data[col], string(key))
	return nil
}

func (s *MemStore) Close() error {
	return nil
}

// Checkpoint clones the given columns into a new in-memory store. The path
// argument is accepted for interface compatibility and ignored.
func (s *MemStore) Checkpoint(path string, cols []DBCol) (Store, error) {
	res := NewMemStore()
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	for _, col := range cols {
		for key, value := range s.data[col] {
			stored := make([]byte, len(value))
			copy(stored, value)
			res.data[col][key] = stored
		}
	}
	return res, nil
}
