// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package memtrie

import (
	"bytes"
	"fmt"
	"log"

	"github.com/pbnjay/memory"

	"github.com/i-fix-typos/nearcore/database/memtrie/arena"
	"github.com/i-fix-typos/nearcore/database/trie"
)

// Entry is one key/value pair of a trie to be loaded.
type Entry struct {
	Key   []byte
	Value trie.FlatStateValue
}

// Load builds a whole trie bottom-up from the given entries, which must be
// strictly ascending by key, and computes all node hashes. It returns the
// index of the root node, or the nil index for an empty entry list.
//
// Keys are split into hex nibbles; shared nibble runs become extension
// nodes, divergence points become branches, and key fragments are stored
// with the parity-prefixed nibble encoding of encodeNibbles.
func Load(a *arena.Arena, entries []Entry) (arena.Idx, error) {
	if len(entries) == 0 {
		return arena.Nil, nil
	}
	for i := 1; i < len(entries); i++ {
		if bytes.Compare(entries[i-1].Key, entries[i].Key) >= 0 {
			return arena.Nil, fmt.Errorf("entries must be strictly ascending by key, violated at position %d", i)
		}
	}

	if estimate := estimateLoadSize(entries); estimate > memory.TotalMemory() {
		log.Printf("loading a trie with an estimated size of %d bytes, which exceeds the total system memory of %d bytes", estimate, memory.TotalMemory())
	}

	items := make([]loadItem, len(entries))
	for i, entry := range entries {
		items[i] = loadItem{nibbles: keyToNibbles(entry.Key), value: entry.Value}
	}
	root, err := buildNode(a, items, 0)
	if err != nil {
		return arena.Nil, err
	}
	ComputeHashRecursively(a, root)
	return root, nil
}

type loadItem struct {
	nibbles []byte
	value   trie.FlatStateValue
}

// buildNode builds the subtree of all items, which agree on their first
// depth nibbles. A single item becomes a leaf; multiple items are joined by
// an extension over their shared nibble run, if any, and a branch at the
// divergence point.
func buildNode(a *arena.Arena, items []loadItem, depth int) (arena.Idx, error) {
	if len(items) == 1 {
		return NewNode(a, InputLeaf{
			Extension: encodeNibbles(items[0].nibbles[depth:]),
			Value:     items[0].value,
		})
	}
	prefix := commonPrefixLen(items, depth)
	if prefix == 0 {
		return buildBranch(a, items, depth)
	}
	child, err := buildBranch(a, items, depth+prefix)
	if err != nil {
		return arena.Nil, err
	}
	return NewNode(a, InputExtension{
		Extension: encodeNibbles(items[0].nibbles[depth : depth+prefix]),
		Child:     child,
	})
}

// buildBranch builds the branch at a divergence point: the item whose key
// is fully consumed, if any, becomes the branch value; the remaining items
// are grouped by their next nibble.
func buildBranch(a *arena.Arena, items []loadItem, depth int) (arena.Idx, error) {
	var children [trie.NumChildren]arena.Idx
	var value *trie.FlatStateValue

	for start := 0; start < len(items); {
		if len(items[start].nibbles) == depth {
			v := items[start].value
			value = &v
			start++
			continue
		}
		nibble := items[start].nibbles[depth]
		end := start + 1
		for end < len(items) && len(items[end].nibbles) > depth && items[end].nibbles[depth] == nibble {
			end++
		}
		child, err := buildNode(a, items[start:end], depth+1)
		if err != nil {
			return arena.Nil, err
		}
		children[nibble] = child
		start = end
	}

	if value != nil {
		return NewNode(a, InputBranchWithValue{Children: children, Value: *value})
	}
	return NewNode(a, InputBranch{Children: children})
}

// commonPrefixLen returns the length of the longest nibble run shared by
// all items beyond depth. A key ending within the run counts as divergence.
func commonPrefixLen(items []loadItem, depth int) int {
	first := items[0].nibbles
	length := len(first) - depth
	for _, item := range items[1:] {
		if l := len(item.nibbles) - depth; l < length {
			length = l
		}
	}
	for i := 0; i < length; i++ {
		nibble := first[depth+i]
		for _, item := range items[1:] {
			if item.nibbles[depth+i] != nibble {
				return i
			}
		}
	}
	return length
}

func keyToNibbles(key []byte) []byte {
	res := make([]byte, 0, 2*len(key))
	for _, b := range key {
		res = append(res, b>>4, b&0x0F)
	}
	return res
}

// encodeNibbles packs a nibble run into the byte form stored in node
// extensions: a parity byte (0 even, 1 odd) followed by the nibbles packed
// two per byte, high half first, with an odd trailing nibble in the high
// half of the final byte.
func encodeNibbles(nibbles []byte) []byte {
	res := make([]byte, 0, 1+(len(nibbles)+1)/2)
	res = append(res, byte(len(nibbles)%2))
	for i := 0; i+1 < len(nibbles); i += 2 {
		res = append(res, nibbles[i]<<4|nibbles[i+1])
	}
	if len(nibbles)%2 == 1 {
		res = append(res, nibbles[len(nibbles)-1]<<4)
	}
	return res
}

func estimateLoadSize(entries []Entry) uint64 {
	var res uint64
	for _, entry := range entries {
		res += uint64(headerSize + extensionEncodedSize(entry.Key) + flatValueEncodedSize(entry.Value))
	}
	return res
}
