// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockstore

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/bwspv/chainparams"
	"github.com/stretchr/testify/require"
)

func testParams() *chainparams.Params {
	return &chainparams.Params{
		Name:               "regtest",
		PowLimitBits:       0x207fffff,
		PowLimit:           chainparams.MainNet.PowLimit,
		TargetTimespan:     time.Hour * 24 * 14,
		TargetTimePerBlock: time.Minute * 10,
	}
}

func mkBlock(prev *Header, nonce byte) *Header {
	h := &Header{
		PrevBlock: prev.Hash,
		Time:      prev.Time.Add(10 * time.Minute),
		Bits_:     prev.Bits_,
	}
	h.Hash[0] = nonce
	return h
}

func TestAddBlockExtendsMainChain(t *testing.T) {
	s := New(testParams())
	genesis := s.LastBlock()

	b1 := mkBlock(genesis, 1)
	result := s.AddBlock(b1, 0)
	require.Equal(t, Extended, result.Classification)
	require.Equal(t, uint32(1), s.LastBlock().Height)
}

func TestAddBlockOrphan(t *testing.T) {
	s := New(testParams())
	genesis := s.LastBlock()

	b1 := mkBlock(genesis, 1)
	b2 := mkBlock(b1, 2)

	result := s.AddBlock(b2, 0) // b1 unknown yet
	require.Equal(t, Orphaned, result.Classification)
	require.Equal(t, uint32(0), s.LastBlock().Height)
}

func TestAddBlockResolvesOrphanChain(t *testing.T) {
	s := New(testParams())
	genesis := s.LastBlock()

	b1 := mkBlock(genesis, 1)
	b2 := mkBlock(b1, 2)

	s.AddBlock(b2, 0)
	result := s.AddBlock(b1, 0)
	require.Equal(t, Extended, result.Classification)
	require.NotNil(t, result.Next)
	require.Equal(t, b2.Hash, result.Next.Hash)
}

func TestAddBlockRejectsCheckpointMismatch(t *testing.T) {
	s := New(testParams())
	genesis := s.LastBlock()

	// Pin a checkpoint at height 1 that the block we're about to relay
	// does not match.
	s.checkpoints[1] = chainparams.Checkpoint{Height: 1, Hash: chainhash.Hash{0xaa}}

	b1 := mkBlock(genesis, 1) // hash[0] == 1, doesn't match the pinned checkpoint hash
	result := s.AddBlock(b1, 0)
	require.Equal(t, Rejected, result.Classification)
}

func TestBlockLocatorsIncludesGenesis(t *testing.T) {
	s := New(testParams())
	genesis := s.LastBlock()
	cur := genesis
	for i := byte(1); i <= 15; i++ {
		next := mkBlock(cur, i)
		s.AddBlock(next, 0)
		cur = next
	}

	locators := s.BlockLocators()
	require.Equal(t, genesis.Hash, locators[len(locators)-1])
	require.Equal(t, cur.Hash, locators[0])
}

func TestOrphanSetIsBounded(t *testing.T) {
	s := New(testParams())
	genesis := s.LastBlock()

	for i := 0; i < maxOrphanBlocks+10; i++ {
		orphan := &Header{Time: genesis.Time}
		orphan.PrevBlock[0] = byte(i)
		orphan.PrevBlock[1] = byte(i >> 8)
		orphan.PrevBlock[31] = 0xff // never the hash of a stored block
		orphan.Hash[0] = byte(i + 1)
		s.AddBlock(orphan, 0)
	}

	require.LessOrEqual(t, len(s.orphans), maxOrphanBlocks)
}

func TestReorgMarksJoinHeight(t *testing.T) {
	s := New(testParams())
	genesis := s.LastBlock()

	a1 := mkBlock(genesis, 1)
	a2 := mkBlock(a1, 2)
	s.AddBlock(a1, 0)
	s.AddBlock(a2, 0)

	b1 := mkBlock(genesis, 10)
	s.AddBlock(b1, 0)
	b2 := mkBlock(b1, 11)
	s.AddBlock(b2, 0)
	b3 := mkBlock(b2, 12)
	result := s.AddBlock(b3, 0)

	require.Equal(t, Reorganized, result.Classification)
	require.Equal(t, genesis.Height, result.ReorgJoinHeight)
	require.Equal(t, b3.Hash, s.LastBlock().Hash)
}

func TestContainsBlock(t *testing.T) {
	s := New(testParams())
	genesis := s.LastBlock()
	b1 := mkBlock(genesis, 1)
	s.AddBlock(b1, 0)

	require.True(t, s.ContainsBlock(b1.Hash))
	require.False(t, s.ContainsBlock(chainhash.Hash{0xff}))
}
