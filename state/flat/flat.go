// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package flat implements the flat-storage read path: resolving values by
// their content hash directly from the store, without descending the trie.
package flat

import (
	"bytes"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/i-fix-typos/nearcore/backend/store"
	"github.com/i-fix-typos/nearcore/common"
	"github.com/i-fix-typos/nearcore/database/trie"
)

// DefaultCacheSize is the default number of resolved values kept in memory.
const DefaultCacheSize = 4096

// FlatStorage resolves value references against the FlatState column of a
// store, caching resolved values. It is safe for concurrent use.
type FlatStorage struct {
	store store.Store
	cache *lru.Cache
}

// NewFlatStorage creates a flat storage over the given store. A cacheSize
// of zero selects DefaultCacheSize.
func NewFlatStorage(s store.Store, cacheSize int) (*FlatStorage, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &FlatStorage{store: s, cache: cache}, nil
}

// GetValue resolves a value reference to the referenced bytes. The stored
// value is verified against the reference's length. The returned slice is
// owned by the caller; mutating it does not affect later reads.
func (f *FlatStorage) GetValue(ref trie.ValueRef) ([]byte, error) {
	if cached, found := f.cache.Get(ref.Hash); found {
		return bytes.Clone(cached.([]byte)), nil
	}
	value, err := f.store.Get(store.ColFlatState, ref.Hash[:])
	if err != nil {
		return nil, fmt.Errorf("failed to resolve value %s: %w", ref.Hash, err)
	}
	if uint32(len(value)) != ref.Length {
		return nil, fmt.Errorf("value %s has %d bytes, reference declares %d", ref.Hash, len(value), ref.Length)
	}
	f.cache.Add(ref.Hash, value)
	return bytes.Clone(value), nil
}

// GetFlatValue resolves a flat state value to its raw bytes. Inlined values
// are returned directly without touching the store.
func (f *FlatStorage) GetFlatValue(value trie.FlatStateValue) ([]byte, error) {
	if value.IsInlined() {
		return value.Inlined(), nil
	}
	return f.GetValue(value.ToValueRef())
}

// SetValue stores the value under its content hash and returns the
// resulting reference.
func (f *FlatStorage) SetValue(value []byte) (trie.ValueRef, error) {
	ref := trie.ValueRef{
		Length: uint32(len(value)),
		Hash:   common.Sha256Hash(value),
	}
	if err := f.store.Set(store.ColFlatState, ref.Hash[:], value); err != nil {
		return trie.ValueRef{}, err
	}
	return ref, nil
}
