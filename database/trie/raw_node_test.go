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

import (
	"encoding/binary"
	"testing"

	"github.com/i-fix-typos/nearcore/common"
	"github.com/stretchr/testify/require"
)

func TestRawTrieNode_Leaf_EncodesTagExtensionAndValueRef(t *testing.T) {
	require := require.New(t)

	value := InlinedValue([]byte{5, 6, 7, 8, 9})
	valueRef := value.ToValueRef()
	node := RawTrieNodeWithSize{
		Node:        Leaf{Extension: []byte{0, 1, 2, 3, 4}, Value: valueRef},
		MemoryUsage: 115,
	}

	var expected []byte
	expected = append(expected, 0)                                    // leaf tag
	expected = binary.LittleEndian.AppendUint32(expected, 5)          // extension length
	expected = append(expected, 0, 1, 2, 3, 4)                        // extension
	expected = binary.LittleEndian.AppendUint32(expected, 5)          // value length
	expected = append(expected, valueRef.Hash[:]...)                  // value hash
	expected = binary.LittleEndian.AppendUint64(expected, 115)        // memory usage
	require.Equal(expected, node.Encode())
	require.Equal(common.Sha256Hash(expected), node.Hash())
}

func TestRawTrieNode_Extension_EncodesTagExtensionAndChildHash(t *testing.T) {
	require := require.New(t)

	childHash := common.Sha256Hash([]byte("child"))
	node := RawTrieNodeWithSize{
		Node:        Extension{Extension: []byte{5, 6}, ChildHash: childHash},
		MemoryUsage: 175,
	}

	var expected []byte
	expected = append(expected, 3)                             // extension tag
	expected = binary.LittleEndian.AppendUint32(expected, 2)   // extension length
	expected = append(expected, 5, 6)                          // extension
	expected = append(expected, childHash[:]...)               // child hash
	expected = binary.LittleEndian.AppendUint64(expected, 175) // memory usage
	require.Equal(expected, node.Encode())
}

func TestRawTrieNode_Branch_EncodesBitmapAndPresentHashesInNibbleOrder(t *testing.T) {
	require := require.New(t)

	hash3 := common.Sha256Hash([]byte("three"))
	hash5 := common.Sha256Hash([]byte("five"))
	var children Children
	children.Set(5, hash5)
	children.Set(3, hash3)
	node := RawTrieNodeWithSize{
		Node:        BranchNoValue{Children: children},
		MemoryUsage: 50,
	}

	var expected []byte
	expected = append(expected, 1)                                      // branch-no-value tag
	expected = binary.LittleEndian.AppendUint16(expected, 1<<3|1<<5)    // presence bitmap
	expected = append(expected, hash3[:]...)                            // nibble 3 first
	expected = append(expected, hash5[:]...)                            // then nibble 5
	expected = binary.LittleEndian.AppendUint64(expected, 50)           // memory usage
	require.Equal(expected, node.Encode())
}

func TestRawTrieNode_BranchWithValue_PutsValueRefBeforeChildren(t *testing.T) {
	require := require.New(t)

	value := InlinedValue([]byte{3, 4, 5})
	valueRef := value.ToValueRef()
	childHash := common.Sha256Hash([]byte("child"))
	var children Children
	children.Set(15, childHash)
	node := RawTrieNodeWithSize{
		Node:        BranchWithValue{Value: valueRef, Children: children},
		MemoryUsage: 103,
	}

	var expected []byte
	expected = append(expected, 2)                                // branch-with-value tag
	expected = binary.LittleEndian.AppendUint32(expected, 3)      // value length
	expected = append(expected, valueRef.Hash[:]...)              // value hash
	expected = binary.LittleEndian.AppendUint16(expected, 1<<15)  // presence bitmap
	expected = append(expected, childHash[:]...)                  // nibble 15
	expected = binary.LittleEndian.AppendUint64(expected, 103)    // memory usage
	require.Equal(expected, node.Encode())
}

func TestRawTrieNode_Decode_RoundTripsEveryVariant(t *testing.T) {
	var children Children
	children.Set(0, common.Sha256Hash([]byte("a")))
	children.Set(7, common.Sha256Hash([]byte("b")))

	tests := map[string]RawTrieNodeWithSize{
		"leaf": {
			Node:        Leaf{Extension: []byte{1, 2, 3}, Value: InlinedValue([]byte{9}).ToValueRef()},
			MemoryUsage: 107,
		},
		"extension": {
			Node:        Extension{Extension: []byte{4, 5}, ChildHash: common.Sha256Hash([]byte("c"))},
			MemoryUsage: 161,
		},
		"branch": {
			Node:        BranchNoValue{Children: children},
			MemoryUsage: 264,
		},
		"branch with value": {
			Node:        BranchWithValue{Value: InlinedValue([]byte{1, 2}).ToValueRef(), Children: children},
			MemoryUsage: 316,
		},
	}

	for name, node := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			decoded, err := DecodeRawTrieNodeWithSize(node.Encode())
			require.NoError(err)
			require.Equal(node, decoded)
		})
	}
}

func TestRawTrieNode_Decode_RejectsMalformedInput(t *testing.T) {
	tests := map[string][]byte{
		"empty input":    {},
		"invalid tag":    {42},
		"truncated leaf": {0, 5, 0, 0, 0, 1, 2},
		"trailing bytes": append(RawTrieNodeWithSize{
			Node:        Leaf{Extension: []byte{1}, Value: ValueRef{}},
			MemoryUsage: 100,
		}.Encode(), 0xFF),
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRawTrieNodeWithSize(data)
			require.Error(t, err)
		})
	}
}

func TestChildren_All_YieldsPresentSlotsInAscendingOrder(t *testing.T) {
	require := require.New(t)

	var children Children
	children.Set(9, common.Hash{9})
	children.Set(0, common.Hash{0})
	children.Set(15, common.Hash{15})

	var nibbles []int
	for nibble, hash := range children.All() {
		nibbles = append(nibbles, nibble)
		require.Equal(common.Hash{byte(nibble)}, hash)
	}
	require.Equal([]int{0, 9, 15}, nibbles)
	require.Equal(3, children.Len())

	_, present := children.Get(1)
	require.False(present)
	hash, present := children.Get(9)
	require.True(present)
	require.Equal(common.Hash{9}, hash)
}

func TestFlatStateValue_ToValueRef_IsLosslessForBothVariants(t *testing.T) {
	require := require.New(t)

	data := []byte{5, 6, 7, 8, 9}
	inlined := InlinedValue(data)
	require.True(inlined.IsInlined())
	require.Equal(data, inlined.Inlined())
	require.Equal(uint32(5), inlined.ValueLength())
	require.Equal(ValueRef{Length: 5, Hash: common.Sha256Hash(data)}, inlined.ToValueRef())

	ref := ValueRef{Length: 5, Hash: common.Sha256Hash(data)}
	refValue := RefValue(ref)
	require.False(refValue.IsInlined())
	got, ok := refValue.Ref()
	require.True(ok)
	require.Equal(ref, got)
	require.Equal(ref, refValue.ToValueRef())
	require.Equal(uint32(5), refValue.ValueLength())
}

func TestTrieCosts_ReproduceFixtureConstants(t *testing.T) {
	require := require.New(t)

	// Empty extension, empty inlined value.
	require.Equal(uint64(100), Costs.NodeCost+MemoryUsageForExtension(0)+MemoryUsageForValue(0))
	// 5-byte extension, 5-byte inlined value.
	require.Equal(uint64(115), Costs.NodeCost+MemoryUsageForExtension(5)+MemoryUsageForValue(5))
	// Extension overhead for a 5-byte extension.
	require.Equal(uint64(60), Costs.NodeCost+MemoryUsageForExtension(5))
	// Branch-with-value overhead for a 3-byte inlined value.
	require.Equal(uint64(103), Costs.NodeCost+MemoryUsageForValue(3))
}
