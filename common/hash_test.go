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
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHash_Sha256Hash_MatchesReferenceImplementation(t *testing.T) {
	require := require.New(t)
	data := []byte{5, 6, 7, 8, 9}
	require.Equal(Hash(sha256.Sum256(data)), Sha256Hash(data))
	require.Equal(Hash(sha256.Sum256(nil)), Sha256Hash(nil))
}

func TestHash_String_IsLowercaseHex(t *testing.T) {
	require := require.New(t)
	h := Hash{0x01, 0xab}
	s := h.String()
	require.Len(s, 2*HashSize)
	require.Equal("01ab", s[:4])
}

func TestHash_Compare_OrdersByBytes(t *testing.T) {
	require := require.New(t)
	a := Hash{1}
	b := Hash{2}
	require.Negative(a.Compare(&b))
	require.Positive(b.Compare(&a))
	require.Zero(a.Compare(&a))
}
