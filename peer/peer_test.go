// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func TestBuildFilterIncludesEveryItem(t *testing.T) {
	filter := BuildFilter(FilterParams{
		AddressHashes: [][]byte{
			{0x01, 0x02, 0x03},
			{0x04, 0x05, 0x06},
		},
		UTXOs: []wire.OutPoint{
			{Index: 0},
			{Index: 1},
		},
		FalsePositiveRate: DefaultFalsePositiveRate,
		Tweak:             42,
	})

	require.NotNil(t, filter)
	msg := filter.MsgFilterLoad()
	require.NotNil(t, msg)
	require.Equal(t, wire.BloomUpdateAll, msg.Flags)
	require.True(t, filter.Matches([]byte{0x01, 0x02, 0x03}))
	require.True(t, filter.Matches([]byte{0x04, 0x05, 0x06}))
	require.True(t, filter.MatchesOutPoint(&wire.OutPoint{Index: 0}))
	require.True(t, filter.MatchesOutPoint(&wire.OutPoint{Index: 1}))
}

func TestBuildFilterEmpty(t *testing.T) {
	filter := BuildFilter(FilterParams{FalsePositiveRate: ReducedFalsePositiveRate})
	require.NotNil(t, filter)
}
