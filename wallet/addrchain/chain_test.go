// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrchain

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/bwspv/addr"
	"github.com/stretchr/testify/require"
)

func testSeed() []byte {
	seed, err := hdkeychain.GenerateSeed(hdkeychain.RecommendedSeedLen)
	if err != nil {
		panic(err)
	}
	return seed
}

func TestUnusedAddrsGrowsToGapLimit(t *testing.T) {
	c, err := New(testSeed(), External, addr.MainNetParams, false)
	require.NoError(t, err)

	addrs, err := c.UnusedAddrs(GapLimitExternal, GapLimitExternal)
	require.NoError(t, err)
	require.Len(t, addrs, GapLimitExternal)
	require.Len(t, c.Addresses(), GapLimitExternal)
}

func TestUnusedAddrsAdvancesPastUsed(t *testing.T) {
	c, err := New(testSeed(), Internal, addr.MainNetParams, false)
	require.NoError(t, err)

	first, err := c.UnusedAddrs(1, GapLimitInternal)
	require.NoError(t, err)
	require.Len(t, first, 1)

	c.MarkUsed(first[0])

	next, err := c.UnusedAddrs(GapLimitInternal, GapLimitInternal)
	require.NoError(t, err)
	require.Len(t, next, GapLimitInternal)
	require.NotEqual(t, first[0], next[0])
	require.Len(t, c.Addresses(), GapLimitInternal+1)
}

func TestZeroGapLimitRejected(t *testing.T) {
	c, err := New(testSeed(), External, addr.MainNetParams, false)
	require.NoError(t, err)

	_, err = c.UnusedAddrs(1, 0)
	require.ErrorIs(t, err, ErrGapLimit)
}

func TestIndexOfAndContains(t *testing.T) {
	c, err := New(testSeed(), External, addr.MainNetParams, true)
	require.NoError(t, err)

	addrs, err := c.UnusedAddrs(3, GapLimitExternal)
	require.NoError(t, err)

	require.True(t, c.Contains(addrs[1]))
	require.Equal(t, 1, c.IndexOf(addrs[1]))
	require.Equal(t, -1, c.IndexOf("not-a-chain-address"))
}
