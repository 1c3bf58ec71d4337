// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package memtrie holds a Merkle-Patricia trie entirely in memory while
// producing the same root hash and canonical node encoding as the durable
// trie. Nodes live in an arena and reference each other by arena index,
// never by pointer.
//
// Nodes are built strictly bottom-up: a node can only be constructed from
// child indices that already exist, which makes cycles structurally
// impossible. After construction a node is immutable except for its hash
// and memory-usage fields, which transition from unset to computed exactly
// once via ComputeHashRecursively.
package memtrie

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/i-fix-typos/nearcore/common"
	"github.com/i-fix-typos/nearcore/database/memtrie/arena"
	"github.com/i-fix-typos/nearcore/database/trie"
)

// In-arena node layout. Every node starts with a fixed header holding the
// variant kind, a flag byte, and the lazily computed memory-usage and hash
// fields, followed by variant-specific data:
//
//	leaf:              extension, value
//	extension:         extension, packed child index
//	branch:            presence bitmap, packed child indices ascending
//	branch with value: value, presence bitmap, packed child indices
//
// Extensions are length-prefixed with a u16, values are encoded by
// putFlatValue. All integers are little-endian.
const (
	kindLeaf byte = iota
	kindExtension
	kindBranch
	kindBranchWithValue
)

const (
	offKind        = 0
	offFlags       = 1
	offMemoryUsage = 2
	offHash        = 10
	headerSize     = offHash + common.HashSize
)

const flagHashComputed byte = 1

// ErrHashNotComputed is returned when a node's hash or memory usage is read
// before ComputeHashRecursively has run on that node.
var ErrHashNotComputed = errors.New("node hash has not been computed yet")

// ErrEmptyBranch is returned when a branch description has no children and
// no value. Such a node has no canonical meaning and is rejected.
var ErrEmptyBranch = errors.New("branch node must have at least one child")

// ErrNilChild is returned when a node description references the nil index
// as a child.
var ErrNilChild = errors.New("child index must not be nil")

// InputNode is the abstract description a node is constructed from. One of
// InputLeaf, InputExtension, InputBranch, or InputBranchWithValue. Children
// are given as already-allocated indices of the same arena.
type InputNode interface {
	isInputNode()
}

// InputLeaf describes a terminal node.
type InputLeaf struct {
	Extension []byte
	Value     trie.FlatStateValue
}

// InputExtension describes a single-child compression node.
type InputExtension struct {
	Extension []byte
	Child     arena.Idx
}

// InputBranch describes a branch node without a value. Absent child slots
// hold the nil index.
type InputBranch struct {
	Children [trie.NumChildren]arena.Idx
}

// InputBranchWithValue describes a branch node additionally terminating a
// key with a value.
type InputBranchWithValue struct {
	Children [trie.NumChildren]arena.Idx
	Value    trie.FlatStateValue
}

func (InputLeaf) isInputNode()            {}
func (InputExtension) isInputNode()       {}
func (InputBranch) isInputNode()          {}
func (InputBranchWithValue) isInputNode() {}

// NewNode serializes the given node description into the arena and returns
// its index. Children referenced by the description must already exist in
// the same arena. Leaf nodes have their hash and memory usage computed
// immediately since they depend on no children; all other variants are
// finalized by ComputeHashRecursively.
func NewNode(a *arena.Arena, input InputNode) (arena.Idx, error) {
	switch input := input.(type) {
	case InputLeaf:
		return newLeafNode(a, input)
	case InputExtension:
		return newExtensionNode(a, input)
	case InputBranch:
		return newBranchNode(a, input.Children, nil)
	case InputBranchWithValue:
		value := input.Value
		return newBranchNode(a, input.Children, &value)
	default:
		return arena.Nil, fmt.Errorf("unknown input node type %T", input)
	}
}

func newLeafNode(a *arena.Arena, input InputLeaf) (arena.Idx, error) {
	if err := checkExtension(input.Extension); err != nil {
		return arena.Nil, err
	}
	size := headerSize + extensionEncodedSize(input.Extension) + flatValueEncodedSize(input.Value)
	idx := a.Alloc(size)
	data := a.MemoryMut(idx)
	data[offKind] = kindLeaf
	off := headerSize
	off += putExtension(data[off:], input.Extension)
	putFlatValue(data[off:], input.Value)

	// A leaf has no children, so its hash and memory usage are known at
	// construction time already.
	memoryUsage := trie.Costs.NodeCost +
		trie.MemoryUsageForExtension(len(input.Extension)) +
		trie.MemoryUsageForValue(input.Value.ValueLength())
	raw := trie.RawTrieNodeWithSize{
		Node:        trie.Leaf{Extension: input.Extension, Value: input.Value.ToValueRef()},
		MemoryUsage: memoryUsage,
	}
	markComputed(data, memoryUsage, raw.Hash())
	return idx, nil
}

func newExtensionNode(a *arena.Arena, input InputExtension) (arena.Idx, error) {
	if err := checkExtension(input.Extension); err != nil {
		return arena.Nil, err
	}
	if input.Child.IsNil() {
		return arena.Nil, ErrNilChild
	}
	size := headerSize + extensionEncodedSize(input.Extension) + arena.IdxSize
	idx := a.Alloc(size)
	data := a.MemoryMut(idx)
	data[offKind] = kindExtension
	off := headerSize
	off += putExtension(data[off:], input.Extension)
	binary.LittleEndian.PutUint64(data[off:], input.Child.Pack())
	return idx, nil
}

func newBranchNode(a *arena.Arena, children [trie.NumChildren]arena.Idx, value *trie.FlatStateValue) (arena.Idx, error) {
	var mask uint16
	numChildren := 0
	for i, child := range children {
		if child.IsNil() {
			continue
		}
		mask |= 1 << i
		numChildren++
	}
	if numChildren == 0 && value == nil {
		return arena.Nil, ErrEmptyBranch
	}

	size := headerSize + 2 + numChildren*arena.IdxSize
	kind := kindBranch
	if value != nil {
		size += flatValueEncodedSize(*value)
		kind = kindBranchWithValue
	}
	idx := a.Alloc(size)
	data := a.MemoryMut(idx)
	data[offKind] = kind
	off := headerSize
	if value != nil {
		off += putFlatValue(data[off:], *value)
	}
	binary.LittleEndian.PutUint16(data[off:], mask)
	off += 2
	for _, child := range children {
		if child.IsNil() {
			continue
		}
		binary.LittleEndian.PutUint64(data[off:], child.Pack())
		off += arena.IdxSize
	}
	return idx, nil
}

func markComputed(data []byte, memoryUsage uint64, hash common.Hash) {
	binary.LittleEndian.PutUint64(data[offMemoryUsage:], memoryUsage)
	copy(data[offHash:], hash[:])
	data[offFlags] |= flagHashComputed
}

func checkExtension(extension []byte) error {
	if len(extension) > math.MaxUint16 {
		return fmt.Errorf("extension of %d bytes exceeds the maximum node extension size", len(extension))
	}
	return nil
}

// --- extension encoding ---

func extensionEncodedSize(extension []byte) int {
	return 2 + len(extension)
}

func putExtension(dst, extension []byte) int {
	binary.LittleEndian.PutUint16(dst, uint16(len(extension)))
	copy(dst[2:], extension)
	return 2 + len(extension)
}

// readExtension returns the extension bytes without copying them.
func readExtension(data []byte) ([]byte, int) {
	length := int(binary.LittleEndian.Uint16(data))
	return data[2 : 2+length], 2 + length
}

// --- flat value encoding ---

const (
	valueTagInlined byte = 0
	valueTagRef     byte = 1
)

func flatValueEncodedSize(value trie.FlatStateValue) int {
	if value.IsInlined() {
		return 1 + 4 + len(value.Inlined())
	}
	return 1 + 4 + common.HashSize
}

func putFlatValue(dst []byte, value trie.FlatStateValue) int {
	if ref, ok := value.Ref(); ok {
		dst[0] = valueTagRef
		binary.LittleEndian.PutUint32(dst[1:], ref.Length)
		copy(dst[5:], ref.Hash[:])
		return 1 + 4 + common.HashSize
	}
	inlined := value.Inlined()
	dst[0] = valueTagInlined
	binary.LittleEndian.PutUint32(dst[1:], uint32(len(inlined)))
	copy(dst[5:], inlined)
	return 1 + 4 + len(inlined)
}

// readFlatValue returns the value without copying inlined bytes.
func readFlatValue(data []byte) (trie.FlatStateValue, int) {
	length := binary.LittleEndian.Uint32(data[1:])
	if data[0] == valueTagRef {
		return trie.RefValue(trie.ValueRef{
			Length: length,
			Hash:   common.Hash(data[5 : 5+common.HashSize]),
		}), 1 + 4 + common.HashSize
	}
	return trie.InlinedValue(data[5 : 5+length]), 1 + 4 + int(length)
}
