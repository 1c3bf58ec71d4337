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
	"encoding/binary"
	"fmt"

	"github.com/i-fix-typos/nearcore/common"
	"github.com/i-fix-typos/nearcore/database/memtrie/arena"
	"github.com/i-fix-typos/nearcore/database/trie"
)

// NodeKind identifies the variant of a node.
type NodeKind byte

const (
	NodeKindLeaf            = NodeKind(kindLeaf)
	NodeKindExtension       = NodeKind(kindExtension)
	NodeKindBranch          = NodeKind(kindBranch)
	NodeKindBranchWithValue = NodeKind(kindBranchWithValue)
)

func (k NodeKind) String() string {
	switch k {
	case NodeKindLeaf:
		return "Leaf"
	case NodeKindExtension:
		return "Extension"
	case NodeKindBranch:
		return "Branch"
	case NodeKindBranchWithValue:
		return "BranchWithValue"
	}
	return fmt.Sprintf("NodeKind(%d)", byte(k))
}

// NodeView is a read-only, zero-copy projection over the arena bytes of one
// node. Accessors returning byte slices alias arena memory and stay valid
// as long as the arena exists.
//
// Once hashing of a subtree is complete, its views are safe to share for
// concurrent reads.
type NodeView struct {
	arena *arena.Arena
	idx   arena.Idx
	data  []byte
}

// View creates a view of the node at the given index.
func View(a *arena.Arena, idx arena.Idx) NodeView {
	return NodeView{arena: a, idx: idx, data: a.Memory(idx)}
}

// Idx returns the index of the viewed node.
func (v NodeView) Idx() arena.Idx {
	return v.idx
}

// Kind returns the variant of the viewed node.
func (v NodeView) Kind() NodeKind {
	return NodeKind(v.data[offKind])
}

// HashComputed returns whether the node's hash and memory usage have been
// computed.
func (v NodeView) HashComputed() bool {
	return v.data[offFlags]&flagHashComputed != 0
}

// NodeHash returns the cached content hash of the node. It is an error to
// call it before ComputeHashRecursively has run on this node.
func (v NodeView) NodeHash() (common.Hash, error) {
	if !v.HashComputed() {
		return common.Hash{}, ErrHashNotComputed
	}
	return common.Hash(v.data[offHash : offHash+common.HashSize]), nil
}

// MemoryUsage returns the cached protocol memory usage of the node. It is
// an error to call it before ComputeHashRecursively has run on this node.
func (v NodeView) MemoryUsage() (uint64, error) {
	if !v.HashComputed() {
		return 0, ErrHashNotComputed
	}
	return binary.LittleEndian.Uint64(v.data[offMemoryUsage:]), nil
}

// Extension returns the extension bytes of a Leaf or Extension node,
// aliasing arena memory. It panics on other variants.
func (v NodeView) Extension() []byte {
	switch v.Kind() {
	case NodeKindLeaf, NodeKindExtension:
		extension, _ := readExtension(v.data[headerSize:])
		return extension
	}
	panic(fmt.Sprintf("%v node has no extension", v.Kind()))
}

// Value returns the value of a Leaf or BranchWithValue node. Inlined value
// bytes alias arena memory. It panics on other variants.
func (v NodeView) Value() trie.FlatStateValue {
	switch v.Kind() {
	case NodeKindLeaf:
		_, extensionSize := readExtension(v.data[headerSize:])
		value, _ := readFlatValue(v.data[headerSize+extensionSize:])
		return value
	case NodeKindBranchWithValue:
		value, _ := readFlatValue(v.data[headerSize:])
		return value
	}
	panic(fmt.Sprintf("%v node has no value", v.Kind()))
}

// Child returns the child index of an Extension node. It panics on other
// variants.
func (v NodeView) Child() arena.Idx {
	if v.Kind() != NodeKindExtension {
		panic(fmt.Sprintf("%v node has no single child", v.Kind()))
	}
	_, extensionSize := readExtension(v.data[headerSize:])
	return arena.UnpackIdx(binary.LittleEndian.Uint64(v.data[headerSize+extensionSize:]))
}

// Children returns the child slots of a Branch or BranchWithValue node. It
// panics on other variants.
func (v NodeView) Children() ChildrenView {
	off := headerSize
	switch v.Kind() {
	case NodeKindBranch:
	case NodeKindBranchWithValue:
		_, valueSize := readFlatValue(v.data[off:])
		off += valueSize
	default:
		panic(fmt.Sprintf("%v node has no children", v.Kind()))
	}
	mask := binary.LittleEndian.Uint16(v.data[off:])
	return ChildrenView{mask: mask, data: v.data[off+2:]}
}

// ToRawTrieNodeWithSize produces the canonical, hashable encoding of the
// node, with children represented by their hashes. It requires the node's
// hash (and therefore all children's hashes) to be computed.
func (v NodeView) ToRawTrieNodeWithSize() (trie.RawTrieNodeWithSize, error) {
	memoryUsage, err := v.MemoryUsage()
	if err != nil {
		return trie.RawTrieNodeWithSize{}, err
	}
	return v.toRawTrieNodeWithSize(memoryUsage)
}

// toRawTrieNodeWithSize builds the canonical encoding using the given
// memory usage, so it can also serve the hash computation before the node's
// own fields are set. Children must already be computed.
func (v NodeView) toRawTrieNodeWithSize(memoryUsage uint64) (trie.RawTrieNodeWithSize, error) {
	var node trie.RawTrieNode
	switch v.Kind() {
	case NodeKindLeaf:
		node = trie.Leaf{Extension: v.Extension(), Value: v.Value().ToValueRef()}
	case NodeKindExtension:
		childHash, err := View(v.arena, v.Child()).NodeHash()
		if err != nil {
			return trie.RawTrieNodeWithSize{}, err
		}
		node = trie.Extension{Extension: v.Extension(), ChildHash: childHash}
	case NodeKindBranch:
		children, err := v.childrenHashes()
		if err != nil {
			return trie.RawTrieNodeWithSize{}, err
		}
		node = trie.BranchNoValue{Children: children}
	case NodeKindBranchWithValue:
		children, err := v.childrenHashes()
		if err != nil {
			return trie.RawTrieNodeWithSize{}, err
		}
		node = trie.BranchWithValue{Value: v.Value().ToValueRef(), Children: children}
	}
	return trie.RawTrieNodeWithSize{Node: node, MemoryUsage: memoryUsage}, nil
}

func (v NodeView) childrenHashes() (trie.Children, error) {
	var res trie.Children
	children := v.Children()
	for nibble := 0; nibble < trie.NumChildren; nibble++ {
		child, ok := children.Get(nibble)
		if !ok {
			continue
		}
		hash, err := View(v.arena, child).NodeHash()
		if err != nil {
			return trie.Children{}, err
		}
		res.Set(nibble, hash)
	}
	return res, nil
}
