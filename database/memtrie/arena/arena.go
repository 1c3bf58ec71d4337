// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package arena provides a growable byte arena handing out allocations by
// offset instead of by address. All node data of one in-memory trie session
// lives in a single arena and is released as a unit when the arena is
// dropped.
//
// Growth strategy: memory is organized in fixed-size chunks. Growing the
// arena appends a new chunk and never relocates existing ones, so an Idx
// issued once stays valid for the lifetime of the arena. An allocation
// never spans a chunk boundary; the tail of a chunk too small for the next
// allocation is left unused.
package arena

import (
	"fmt"
	"sync/atomic"
)

// chunkSize is the size of one arena chunk. It bounds the largest single
// allocation.
const chunkSize = 256 * 1024

// maxArenaSize is the total capacity of one arena. Idx stores positions as
// 32-bit offsets, so an arena can never address more than this.
const maxArenaSize = 1 << 32

// IdxSize is the number of bytes of the packed representation of an Idx.
const IdxSize = 8

// Idx is an opaque position inside one specific arena. The zero value is
// the nil index, which never addresses a node. An Idx is only meaningful
// for the arena that issued it; dereferencing it against another arena
// panics.
type Idx struct {
	arena uint32
	pos   uint32
}

// Nil is the index that addresses nothing.
var Nil = Idx{}

// IsNil returns true if the index addresses nothing.
func (i Idx) IsNil() bool {
	return i.pos == 0
}

// Pack returns a compact representation of the index suitable for embedding
// in arena bytes.
func (i Idx) Pack() uint64 {
	return uint64(i.arena)<<32 | uint64(i.pos)
}

// UnpackIdx is the inverse of Pack.
func UnpackIdx(raw uint64) Idx {
	return Idx{arena: uint32(raw >> 32), pos: uint32(raw)}
}

// nextArenaId distinguishes arenas from each other, allowing indices to be
// checked against the arena they are dereferenced on.
var nextArenaId atomic.Uint32

// Arena owns a growable memory region and hands out allocations by Idx.
// There is no per-allocation deallocation; the whole arena is dropped as a
// unit by letting it go out of scope.
//
// An Arena is not safe for concurrent mutation. Once all writes are done,
// any number of readers may use it concurrently.
type Arena struct {
	id     uint32
	chunks [][]byte
	pos    uint64 // global offset of the next free byte
}

// New creates an empty arena. Position 0 is reserved as the nil sentinel,
// so the first allocation starts at offset 1.
func New() *Arena {
	return &Arena{
		id:     nextArenaId.Add(1),
		chunks: [][]byte{make([]byte, chunkSize)},
		pos:    1,
	}
}

// Alloc reserves size contiguous bytes and returns their index. The
// returned memory is zeroed. Size must be positive and fit into one chunk.
// Alloc panics when the arena's 32-bit index space is exhausted; such an
// arena cannot hand out further indices without aliasing existing ones.
func (a *Arena) Alloc(size int) Idx {
	if size <= 0 || size > chunkSize {
		panic(fmt.Sprintf("invalid arena allocation size %d", size))
	}
	pos := a.pos
	if pos%chunkSize+uint64(size) > chunkSize {
		// Skip the remainder of the current chunk; allocations do not
		// span chunk boundaries.
		pos = (pos/chunkSize + 1) * chunkSize
	}
	if pos+uint64(size) > maxArenaSize {
		panic(fmt.Sprintf("arena exhausted: allocating %d bytes at offset %d exceeds the %d byte capacity", size, pos, uint64(maxArenaSize)))
	}
	for int(pos)+size > len(a.chunks)*chunkSize {
		a.chunks = append(a.chunks, make([]byte, chunkSize))
	}
	res := Idx{arena: a.id, pos: uint32(pos)}
	a.pos = pos + uint64(size)
	return res
}

// Memory returns the bytes starting at the given index, extending to the
// end of the allocation's chunk. The result aliases arena memory and must
// be treated as read-only.
func (a *Arena) Memory(idx Idx) []byte {
	a.check(idx)
	return a.chunks[idx.pos/chunkSize][idx.pos%chunkSize:]
}

// MemoryMut returns the mutable bytes starting at the given index,
// extending to the end of the allocation's chunk.
func (a *Arena) MemoryMut(idx Idx) []byte {
	a.check(idx)
	return a.chunks[idx.pos/chunkSize][idx.pos%chunkSize:]
}

// Size returns the total number of reserved bytes.
func (a *Arena) Size() uint64 {
	return uint64(len(a.chunks)) * chunkSize
}

func (a *Arena) check(idx Idx) {
	if idx.IsNil() {
		panic("dereferencing nil arena index")
	}
	if idx.arena != a.id {
		panic(fmt.Sprintf("arena index of arena %d dereferenced against arena %d", idx.arena, a.id))
	}
	if uint64(idx.pos) >= a.pos {
		panic(fmt.Sprintf("arena index %d beyond allocation watermark %d", idx.pos, a.pos))
	}
}
