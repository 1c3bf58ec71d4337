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
	"github.com/i-fix-typos/nearcore/database/memtrie/arena"
	"github.com/i-fix-typos/nearcore/database/trie"
)

// ComputeHashRecursively populates the hash and memory-usage fields of the
// node at idx and, in post-order, of any of its descendants whose fields
// are still unset. It is idempotent: already-computed subtrees are skipped,
// so shared subtrees are hashed only once. This is the only mutating
// operation after construction.
func ComputeHashRecursively(a *arena.Arena, idx arena.Idx) {
	view := View(a, idx)
	if view.HashComputed() {
		return
	}

	var memoryUsage uint64
	switch view.Kind() {
	case NodeKindExtension:
		child := view.Child()
		ComputeHashRecursively(a, child)
		childUsage, _ := View(a, child).MemoryUsage()
		memoryUsage = childUsage +
			trie.Costs.NodeCost +
			trie.MemoryUsageForExtension(len(view.Extension()))
	case NodeKindBranch, NodeKindBranchWithValue:
		memoryUsage = trie.Costs.NodeCost
		if view.Kind() == NodeKindBranchWithValue {
			memoryUsage += trie.MemoryUsageForValue(view.Value().ValueLength())
		}
		for child := range view.Children().All() {
			ComputeHashRecursively(a, child)
			childUsage, _ := View(a, child).MemoryUsage()
			memoryUsage += childUsage
		}
	default:
		// Leaves are computed at construction time.
		return
	}

	// All children are computed at this point, so building the canonical
	// encoding cannot fail.
	raw, err := view.toRawTrieNodeWithSize(memoryUsage)
	if err != nil {
		panic(err)
	}
	markComputed(a.MemoryMut(idx), memoryUsage, raw.Hash())
}
