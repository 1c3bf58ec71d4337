// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package trie

// TrieCosts defines the resource-accounting cost model of the trie. The
// memory usage of a node is a protocol-level number derived from these
// constants and has no relation to actual allocation sizes. The constants
// are consensus-relevant and must not be changed.
type TrieCosts struct {
	ByteOfKey   uint64
	ByteOfValue uint64
	NodeCost    uint64
}

// Costs is the cost model used by the protocol.
var Costs = TrieCosts{
	ByteOfKey:   2,
	ByteOfValue: 1,
	NodeCost:    50,
}

// MemoryUsageForValue returns the memory-usage contribution of a value of
// the given byte length. A value counts as a node of its own, so it
// contributes one node cost in addition to its per-byte cost.
func MemoryUsageForValue(length uint32) uint64 {
	return uint64(length)*Costs.ByteOfValue + Costs.NodeCost
}

// MemoryUsageForExtension returns the memory-usage contribution of an
// extension (key fragment) of the given byte length.
func MemoryUsageForExtension(length int) uint64 {
	return uint64(length) * Costs.ByteOfKey
}
