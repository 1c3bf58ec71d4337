// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package store provides the durable column-oriented key-value store backing
// the trie, the flat state, and the snapshot machinery. Columns are mapped
// onto a single key space by a one-byte prefix.
package store

import (
	"errors"
	"fmt"
)

// DBCol identifies a column of the store. Each column holds an independent
// key space.
type DBCol byte

const (
	// ColBlockMisc holds miscellaneous bookkeeping values, among them the
	// hash of the currently valid state snapshot.
	ColBlockMisc DBCol = iota
	// ColState holds canonical trie nodes keyed by their hash.
	ColState
	// ColFlatState holds values keyed by their content hash, for reads
	// that bypass trie descent.
	ColFlatState
	// ColStateParts holds downloaded state-sync parts. Parts are bulk
	// payloads and are stored snappy-compressed.
	ColStateParts

	numColumns
)

func (c DBCol) String() string {
	switch c {
	case ColBlockMisc:
		return "BlockMisc"
	case ColState:
		return "State"
	case ColFlatState:
		return "FlatState"
	case ColStateParts:
		return "StateParts"
	}
	return fmt.Sprintf("DBCol(%d)", byte(c))
}

// compressed reports whether values of the column are stored
// snappy-compressed. Compression is transparent to users of the store.
func (c DBCol) compressed() bool {
	return c == ColStateParts
}

// ErrNotFound is returned when a requested key does not exist.
var ErrNotFound = errors.New("key not found")

// Store is a column-oriented key-value store. Implementations must be safe
// for concurrent use.
type Store interface {
	// Get returns the value stored under the given key, or ErrNotFound.
	Get(col DBCol, key []byte) ([]byte, error)
	// Has returns whether the given key exists.
	Has(col DBCol, key []byte) (bool, error)
	// Set stores the value under the given key, overwriting any previous
	// value.
	Set(col DBCol, key, value []byte) error
	// Delete removes the key. Deleting an absent key is not an error.
	Delete(col DBCol, key []byte) error
	// Close releases the store. No other method may be called afterwards.
	Close() error
}

// Checkpointer is implemented by stores that can clone themselves into a
// consistent point-in-time copy holding only the given columns.
type Checkpointer interface {
	Checkpoint(path string, cols []DBCol) (Store, error)
}

// dbKey maps a column and key onto the store's single key space.
func dbKey(col DBCol, key []byte) []byte {
	res := make([]byte, 0, 1+len(key))
	res = append(res, byte(col))
	return append(res, key...)
}
