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
	"math/bits"

	"github.com/i-fix-typos/nearcore/database/memtrie/arena"
)

// ChildrenView is a zero-copy projection over the child slots of a branch
// node. Present children are stored densely in ascending nibble order; the
// bitmap maps nibbles to their dense position.
type ChildrenView struct {
	mask uint16
	data []byte // packed child indices of the present children
}

// Get returns the child index at the given nibble and whether the slot is
// present. The lookup is O(1).
func (c ChildrenView) Get(nibble int) (arena.Idx, bool) {
	if c.mask&(1<<nibble) == 0 {
		return arena.Nil, false
	}
	rank := bits.OnesCount16(c.mask & (1<<nibble - 1))
	return c.at(rank), true
}

// Len returns the number of present children.
func (c ChildrenView) Len() int {
	return bits.OnesCount16(c.mask)
}

// All yields the present children in ascending nibble order. Each call
// starts a fresh iteration.
func (c ChildrenView) All() func(yield func(arena.Idx) bool) {
	return func(yield func(arena.Idx) bool) {
		for i := 0; i < c.Len(); i++ {
			if !yield(c.at(i)) {
				return
			}
		}
	}
}

func (c ChildrenView) at(rank int) arena.Idx {
	return arena.UnpackIdx(binary.LittleEndian.Uint64(c.data[rank*arena.IdxSize:]))
}
