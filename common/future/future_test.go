// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package future

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFuture_Await_ReturnsFulfilledValue(t *testing.T) {
	require := require.New(t)
	promise, future := Create[int]()
	go promise.Fulfill(42)
	require.Equal(42, future.Await())
}

func TestFuture_Immediate_IsAlreadyFulfilled(t *testing.T) {
	require := require.New(t)
	require.Equal("done", Immediate("done").Await())
}
