// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
)

// HashSize is the number of bytes in a Hash.
const HashSize = 32

// Hash is the 32-byte content hash used throughout the protocol. Node
// hashes, value references, and snapshot identifiers are all of this type.
// The protocol hash function is SHA-256.
type Hash [HashSize]byte

// Sha256Hash computes the protocol content hash of the given data.
func Sha256Hash(data []byte) Hash {
	return Hash(sha256.Sum256(data))
}

// String returns the hash in lowercase hexadecimal notation.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Compare returns a negative number, zero, or a positive number if this hash
// is ordered before, equal to, or after the other hash.
func (h *Hash) Compare(other *Hash) int {
	return bytes.Compare(h[:], other[:])
}
