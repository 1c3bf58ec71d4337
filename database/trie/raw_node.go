// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package trie defines the canonical node model of the state trie: the four
// node shapes, their deterministic byte serialization, and the cost model
// for the protocol's memory accounting.
//
// The serialization produced here is the hash preimage of every node. The
// durable store and the in-memory trie both encode through this package, so
// a hash computed over in-memory nodes equals the hash computed by decoding
// the same logical node from durable storage.
package trie

import (
	"encoding/binary"
	"fmt"
	"iter"
	"math/bits"

	"github.com/i-fix-typos/nearcore/common"
)

// Node tags of the canonical encoding. One of these is the first byte of
// every serialized node.
const (
	rawTagLeaf            byte = 0
	rawTagBranchNoValue   byte = 1
	rawTagBranchWithValue byte = 2
	rawTagExtension       byte = 3
)

// NumChildren is the number of child slots of a branch node, one per hex
// nibble.
const NumChildren = 16

// Children is the sparse 16-slot array of child hashes of a branch node.
// Absent slots hold the zero hash and are excluded by the presence mask.
// The type is comparable; two Children values are equal iff they have the
// same present slots with the same hashes.
type Children struct {
	mask   uint16
	hashes [NumChildren]common.Hash
}

// Set stores the hash of the child at the given nibble.
func (c *Children) Set(nibble int, hash common.Hash) {
	c.mask |= 1 << nibble
	c.hashes[nibble] = hash
}

// Get returns the hash of the child at the given nibble and whether the
// slot is present.
func (c *Children) Get(nibble int) (common.Hash, bool) {
	if c.mask&(1<<nibble) == 0 {
		return common.Hash{}, false
	}
	return c.hashes[nibble], true
}

// Mask returns the presence bitmap, bit k corresponding to nibble k.
func (c *Children) Mask() uint16 {
	return c.mask
}

// Len returns the number of present children.
func (c *Children) Len() int {
	return bits.OnesCount16(c.mask)
}

// All yields the present children in ascending nibble order.
func (c *Children) All() iter.Seq2[int, common.Hash] {
	return func(yield func(int, common.Hash) bool) {
		for i := 0; i < NumChildren; i++ {
			if c.mask&(1<<i) == 0 {
				continue
			}
			if !yield(i, c.hashes[i]) {
				return
			}
		}
	}
}

// RawTrieNode is one of the four canonical node shapes. It is a closed set:
// Leaf, Extension, BranchNoValue, and BranchWithValue.
type RawTrieNode interface {
	// appendTo appends the canonical encoding of the node, including its
	// tag byte, to dst.
	appendTo(dst []byte) []byte
}

// Leaf terminates a key. The extension holds the remaining key material,
// the value is referenced by hash and length.
type Leaf struct {
	Extension []byte
	Value     ValueRef
}

// Extension is a single-child compression node holding a shared key
// fragment and the hash of its only child.
type Extension struct {
	Extension []byte
	ChildHash common.Hash
}

// BranchNoValue fans out over up to 16 children without terminating a key.
type BranchNoValue struct {
	Children Children
}

// BranchWithValue fans out over up to 16 children and additionally
// terminates a key with a value.
type BranchWithValue struct {
	Value    ValueRef
	Children Children
}

// RawTrieNodeWithSize pairs a canonical node with its memory usage. Its
// encoding is the hash preimage of the node.
type RawTrieNodeWithSize struct {
	Node        RawTrieNode
	MemoryUsage uint64
}

// Encode returns the canonical byte serialization: the node followed by the
// memory usage as a little-endian u64.
func (n RawTrieNodeWithSize) Encode() []byte {
	out := n.Node.appendTo(nil)
	return binary.LittleEndian.AppendUint64(out, n.MemoryUsage)
}

// Hash returns the content hash of the canonical serialization.
func (n RawTrieNodeWithSize) Hash() common.Hash {
	return common.Sha256Hash(n.Encode())
}

func appendExtension(dst, extension []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(extension)))
	return append(dst, extension...)
}

func appendValueRef(dst []byte, ref ValueRef) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, ref.Length)
	return append(dst, ref.Hash[:]...)
}

func appendChildren(dst []byte, children *Children) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, children.mask)
	for _, hash := range children.All() {
		dst = append(dst, hash[:]...)
	}
	return dst
}

func (n Leaf) appendTo(dst []byte) []byte {
	dst = append(dst, rawTagLeaf)
	dst = appendExtension(dst, n.Extension)
	return appendValueRef(dst, n.Value)
}

func (n Extension) appendTo(dst []byte) []byte {
	dst = append(dst, rawTagExtension)
	dst = appendExtension(dst, n.Extension)
	return append(dst, n.ChildHash[:]...)
}

func (n BranchNoValue) appendTo(dst []byte) []byte {
	dst = append(dst, rawTagBranchNoValue)
	return appendChildren(dst, &n.Children)
}

func (n BranchWithValue) appendTo(dst []byte) []byte {
	dst = append(dst, rawTagBranchWithValue)
	dst = appendValueRef(dst, n.Value)
	return appendChildren(dst, &n.Children)
}

// --- Decoding ---

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) bytes(n int) ([]byte, error) {
	if d.pos+n > len(d.data) {
		return nil, fmt.Errorf("unexpected end of node encoding at offset %d", d.pos)
	}
	res := d.data[d.pos : d.pos+n]
	d.pos += n
	return res, nil
}

func (d *decoder) uint16() (uint16, error) {
	raw, err := d.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(raw), nil
}

func (d *decoder) uint32() (uint32, error) {
	raw, err := d.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(raw), nil
}

func (d *decoder) uint64() (uint64, error) {
	raw, err := d.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(raw), nil
}

func (d *decoder) hash() (common.Hash, error) {
	raw, err := d.bytes(common.HashSize)
	if err != nil {
		return common.Hash{}, err
	}
	return common.Hash(raw), nil
}

func (d *decoder) extension() ([]byte, error) {
	length, err := d.uint32()
	if err != nil {
		return nil, err
	}
	raw, err := d.bytes(int(length))
	if err != nil {
		return nil, err
	}
	// Copy, so decoded nodes do not alias the input buffer.
	res := make([]byte, length)
	copy(res, raw)
	return res, nil
}

func (d *decoder) valueRef() (ValueRef, error) {
	length, err := d.uint32()
	if err != nil {
		return ValueRef{}, err
	}
	hash, err := d.hash()
	if err != nil {
		return ValueRef{}, err
	}
	return ValueRef{Length: length, Hash: hash}, nil
}

func (d *decoder) children() (Children, error) {
	mask, err := d.uint16()
	if err != nil {
		return Children{}, err
	}
	var res Children
	for i := 0; i < NumChildren; i++ {
		if mask&(1<<i) == 0 {
			continue
		}
		hash, err := d.hash()
		if err != nil {
			return Children{}, err
		}
		res.Set(i, hash)
	}
	return res, nil
}

// DecodeRawTrieNodeWithSize parses a canonical node serialization. The
// input must contain exactly one node; trailing bytes are an error.
func DecodeRawTrieNodeWithSize(data []byte) (RawTrieNodeWithSize, error) {
	d := decoder{data: data}
	tag, err := d.bytes(1)
	if err != nil {
		return RawTrieNodeWithSize{}, err
	}

	var node RawTrieNode
	switch tag[0] {
	case rawTagLeaf:
		extension, err := d.extension()
		if err != nil {
			return RawTrieNodeWithSize{}, err
		}
		value, err := d.valueRef()
		if err != nil {
			return RawTrieNodeWithSize{}, err
		}
		node = Leaf{Extension: extension, Value: value}
	case rawTagBranchNoValue:
		children, err := d.children()
		if err != nil {
			return RawTrieNodeWithSize{}, err
		}
		node = BranchNoValue{Children: children}
	case rawTagBranchWithValue:
		value, err := d.valueRef()
		if err != nil {
			return RawTrieNodeWithSize{}, err
		}
		children, err := d.children()
		if err != nil {
			return RawTrieNodeWithSize{}, err
		}
		node = BranchWithValue{Value: value, Children: children}
	case rawTagExtension:
		extension, err := d.extension()
		if err != nil {
			return RawTrieNodeWithSize{}, err
		}
		childHash, err := d.hash()
		if err != nil {
			return RawTrieNodeWithSize{}, err
		}
		node = Extension{Extension: extension, ChildHash: childHash}
	default:
		return RawTrieNodeWithSize{}, fmt.Errorf("invalid node tag %d", tag[0])
	}

	memoryUsage, err := d.uint64()
	if err != nil {
		return RawTrieNodeWithSize{}, err
	}
	if d.pos != len(data) {
		return RawTrieNodeWithSize{}, fmt.Errorf("%d trailing bytes after node encoding", len(data)-d.pos)
	}
	return RawTrieNodeWithSize{Node: node, MemoryUsage: memoryUsage}, nil
}
