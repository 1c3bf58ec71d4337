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
	"github.com/i-fix-typos/nearcore/common"
)

// ValueRef identifies a value stored outside the trie by its content hash
// and byte length. It is the form in which values enter the canonical node
// encoding, regardless of whether the value itself is inlined in memory.
type ValueRef struct {
	Length uint32
	Hash   common.Hash
}

// FlatStateValue is a value as held by the flat state and the in-memory
// trie: either inlined raw bytes, or a reference to a value stored
// elsewhere. Exactly one representation is active.
//
// The inlined form may alias memory owned by a caller or an arena; it is
// treated as immutable by this package.
type FlatStateValue struct {
	inlined []byte
	ref     *ValueRef
}

// InlinedValue creates a FlatStateValue holding the given bytes directly.
// The bytes are not copied.
func InlinedValue(data []byte) FlatStateValue {
	if data == nil {
		data = []byte{}
	}
	return FlatStateValue{inlined: data}
}

// RefValue creates a FlatStateValue referencing a value stored elsewhere.
func RefValue(ref ValueRef) FlatStateValue {
	return FlatStateValue{ref: &ref}
}

// IsInlined returns true if the value is stored directly.
func (v FlatStateValue) IsInlined() bool {
	return v.ref == nil
}

// Inlined returns the inlined bytes. It must only be called on inlined
// values.
func (v FlatStateValue) Inlined() []byte {
	return v.inlined
}

// Ref returns the value reference and true if the value is stored
// out-of-line, or a zero reference and false otherwise.
func (v FlatStateValue) Ref() (ValueRef, bool) {
	if v.ref == nil {
		return ValueRef{}, false
	}
	return *v.ref, true
}

// ToValueRef converts the value losslessly into the reference form used by
// the canonical encoding: inlined values are hashed, references are returned
// as they are.
func (v FlatStateValue) ToValueRef() ValueRef {
	if v.ref != nil {
		return *v.ref
	}
	return ValueRef{
		Length: uint32(len(v.inlined)),
		Hash:   common.Sha256Hash(v.inlined),
	}
}

// ValueLength returns the byte length of the value, independent of its
// representation. This is the length that enters the memory-usage formula.
func (v FlatStateValue) ValueLength() uint32 {
	if v.ref != nil {
		return v.ref.Length
	}
	return uint32(len(v.inlined))
}
