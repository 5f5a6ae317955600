// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockstore is the Merkle Block Store: a set of accepted headers
// keyed by hash, a bounded set of orphans keyed by previous-hash, and the
// chain-tip pointer, with reorg support and difficulty/checkpoint
// verification. It is the Go counterpart of BWPeerManager.c's
// manager->blocks/orphans/checkpoints fields and the block-acceptance
// logic in _peerRelayedBlock/_BWPeerManagerVerifyBlock.
//
// Store is plain data: it carries no lock of its own. The single coarse
// mutex discipline spec.md §5 requires lives one level up, in peermgr,
// exactly as BWPeerManager.c holds manager->lock across all of
// manager->blocks/orphans's direct field access.
package blockstore

import (
	"math"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/bwspv/chainparams"
)

var log = btclog.Disabled

// UseLogger sets the logger this package reports through.
func UseLogger(logger btclog.Logger) { log = logger }

// UnknownHeight is the sentinel used for a header whose chain position
// has not yet been determined (BLOCK_UNKNOWN_HEIGHT in the original).
const UnknownHeight = math.MaxUint32

// maxOrphanBlocks bounds the orphan set so a flood of unconnected headers
// cannot exhaust memory — the original tracks this as a known bug
// ("BUG: limit total orphans to avoid memory exhaustion attack") and this
// module fixes it per the corresponding REDESIGN note.
const maxOrphanBlocks = 2000

// blockDifficultyInterval is the height interval checked for a possible
// retarget, matching Bitcoin's 2016-block epoch.
const blockDifficultyInterval = 2016

// Header is one merkle block: enough of the header to verify difficulty
// and chain position, plus the subset of the block's transaction hashes
// this wallet's Bloom filter matched (merkle-proof verification itself is
// a cryptographic primitive out of scope per spec.md §1).
type Header struct {
	Hash       chainhash.Hash
	PrevBlock  chainhash.Hash
	MerkleRoot chainhash.Hash
	Time       time.Time
	Bits_      uint32
	Nonce      uint32
	Height     uint32
	TotalTx    uint32
	TxHashes   []chainhash.Hash
}

// chainparamsHeader adapts *Header to chainparams.Header. A separate
// adapter is used because Header's own field names (Height, Bits_) aren't
// shaped as the zero-argument accessor methods the interface wants.
type chainparamsHeader struct{ h *Header }

func (c chainparamsHeader) Height() uint32       { return c.h.Height }
func (c chainparamsHeader) Bits() uint32         { return c.h.Bits_ }
func (c chainparamsHeader) Timestamp() time.Time { return c.h.Time }
func (c chainparamsHeader) Hash() chainhash.Hash { return c.h.Hash }

// Classification reports how AddBlock handled a relayed block.
type Classification int

const (
	Rejected Classification = iota
	IgnoredHeader
	Orphaned
	Extended
	AlreadyHave
	PendingRescan
	IgnoredOldFork
	ForkExtended
	Reorganized
)

// TxHeightUpdate is one batch of transactions whose confirmation height
// and timestamp changed, to be forwarded to wallet.Engine.UpdateTransactions.
type TxHeightUpdate struct {
	TxHashes  []chainhash.Hash
	Height    uint32
	Timestamp time.Time
}

// AddResult is the outcome of AddBlock: what happened, and what the
// caller (peermgr) needs to forward to the wallet and to any pending
// orphan-chain continuation.
type AddResult struct {
	Classification  Classification
	Block           *Header
	TxUpdates       []TxHeightUpdate
	ReorgJoinHeight uint32 // > 0 only when Classification == Reorganized
	Next            *Header
}

// Store holds the accepted-block set, the orphan set, and the checkpoint
// table for one network.
type Store struct {
	params *chainparams.Params

	blocks   map[chainhash.Hash]*Header
	byHeight map[uint32]*Header // tracks only the current main chain

	orphans     map[chainhash.Hash]*Header // keyed by PrevBlock
	orphanOrder []chainhash.Hash           // insertion order, for eviction
	lastOrphan  *Header

	lastBlock *Header

	checkpoints map[uint32]chainparams.Checkpoint
}

// New returns a Store seeded with params's checkpoint table as trusted
// blocks, the way BWPeerManagerNew seeds manager->checkpoints and treats
// the latest one reached as the initial lastBlock.
func New(params *chainparams.Params) *Store {
	s := &Store{
		params:      params,
		blocks:      make(map[chainhash.Hash]*Header),
		byHeight:    make(map[uint32]*Header),
		orphans:     make(map[chainhash.Hash]*Header),
		checkpoints: make(map[uint32]chainparams.Checkpoint, len(params.Checkpoints)),
	}

	for _, cp := range params.Checkpoints {
		s.checkpoints[cp.Height] = cp
		h := &Header{Hash: cp.Hash, Time: cp.Timestamp, Bits_: cp.Target, Height: cp.Height}
		s.blocks[cp.Hash] = h
		s.byHeight[cp.Height] = h
		if s.lastBlock == nil || h.Height > s.lastBlock.Height {
			s.lastBlock = h
		}
	}

	if s.lastBlock == nil {
		s.lastBlock = &Header{Height: 0, Bits_: params.PowLimitBits}
		s.blocks[s.lastBlock.Hash] = s.lastBlock
		s.byHeight[0] = s.lastBlock
	}

	return s
}

// LastBlock returns the current chain tip.
func (s *Store) LastBlock() *Header { return s.lastBlock }

// HeaderAtHeight implements chainparams.BlockSource against the current
// main chain.
func (s *Store) HeaderAtHeight(height uint32) (chainparams.Header, bool) {
	h, ok := s.byHeight[height]
	if !ok {
		return nil, false
	}
	return chainparamsHeader{h}, true
}

// ContainsBlock reports whether hash is known, on the main chain or a
// fork.
func (s *Store) ContainsBlock(hash chainhash.Hash) bool {
	_, ok := s.blocks[hash]
	return ok
}

// BlockLocators returns the descending set of block hashes used to build
// a getblocks/getheaders request: the 10 most recent, then exponentially
// spaced ones back to genesis — the Go port of
// _BWPeerManagerBlockLocators.
func (s *Store) BlockLocators() []chainhash.Hash {
	var locators []chainhash.Hash
	block := s.lastBlock
	step := 1

	for block != nil && block.Height > 0 {
		locators = append(locators, block.Hash)
		if len(locators) >= 10 {
			step *= 2
		}
		for j := 0; block != nil && j < step; j++ {
			block = s.blocks[block.PrevBlock]
		}
	}

	locators = append(locators, s.genesisHash())
	return locators
}

func (s *Store) genesisHash() chainhash.Hash {
	if cp, ok := s.checkpoints[0]; ok {
		return cp.Hash
	}
	if h, ok := s.byHeight[0]; ok {
		return h.Hash
	}
	return chainhash.Hash{}
}

func (s *Store) lastCheckpointHeight() uint32 {
	var max uint32
	for height := range s.checkpoints {
		if height > max {
			max = height
		}
	}
	return max
}

func averageTime(a, b time.Time) time.Time {
	return a.Add(b.Sub(a) / 2)
}

// AddBlock classifies and, where accepted, incorporates block into the
// store. peerLastBlockHeight is the reporting peer's advertised chain
// height (used to distinguish an orphan seen mid-sync from a block mined
// during an active rescan), matching _peerRelayedBlock's
// BWPeerLastBlock(peer) checks.
func (s *Store) AddBlock(block *Header, peerLastBlockHeight uint32) AddResult {
	prev, havePrev := s.blocks[block.PrevBlock]

	var txTime time.Time
	if havePrev {
		txTime = averageTime(block.Time, prev.Time)
		block.Height = prev.Height + 1
	}

	switch {
	case !havePrev:
		return s.handleOrphan(block)

	case !s.verifyBlock(block, prev):
		log.Warnf("rejecting block %s at height %d: failed verification", block.Hash, block.Height)
		return AddResult{Classification: Rejected, Block: block}

	case block.PrevBlock == s.lastBlock.Hash:
		return s.extendMainChain(block, txTime)

	case s.ContainsBlock(block.Hash):
		return s.handleDuplicate(block, txTime)

	case s.lastBlock.Height < peerLastBlockHeight && block.Height > s.lastBlock.Height+1:
		s.markPendingRescan(block)
		return AddResult{Classification: PendingRescan, Block: block}

	case block.Height <= s.lastCheckpointHeight():
		return AddResult{Classification: IgnoredOldFork, Block: block}

	default:
		return s.extendFork(block)
	}
}

func (s *Store) handleOrphan(block *Header) AddResult {
	if len(s.orphans) >= maxOrphanBlocks && len(s.orphanOrder) > 0 {
		oldest := s.orphanOrder[0]
		s.orphanOrder = s.orphanOrder[1:]
		if evicted, ok := s.orphans[oldest]; ok {
			delete(s.orphans, evicted.PrevBlock)
		}
	}

	s.orphans[block.PrevBlock] = block
	s.orphanOrder = append(s.orphanOrder, block.PrevBlock)
	s.lastOrphan = block

	return AddResult{Classification: Orphaned, Block: block}
}

func (s *Store) markPendingRescan(block *Header) {
	s.orphans[block.PrevBlock] = block
	s.orphanOrder = append(s.orphanOrder, block.PrevBlock)
	s.lastOrphan = block
}

// verifyBlock mirrors _BWPeerManagerVerifyBlock: chain-position
// continuity, then difficulty, then checkpoint equality.
func (s *Store) verifyBlock(block, prev *Header) bool {
	if block.PrevBlock != prev.Hash || block.Height != prev.Height+1 {
		return false
	}

	if block.Height%blockDifficultyInterval == 0 {
		ok := s.params.VerifyDifficulty(chainparamsHeader{block}, chainparamsHeader{prev}, s)
		if !ok {
			return false
		}
	}

	if cp, ok := s.checkpoints[block.Height]; ok && cp.Hash != block.Hash {
		return false
	}

	return true
}

func (s *Store) extendMainChain(block *Header, txTime time.Time) AddResult {
	s.blocks[block.Hash] = block
	s.byHeight[block.Height] = block
	s.lastBlock = block

	result := AddResult{Classification: Extended, Block: block}
	if len(block.TxHashes) > 0 {
		result.TxUpdates = []TxHeightUpdate{{TxHashes: block.TxHashes, Height: block.Height, Timestamp: txTime}}
	}
	s.absorbWaitingOrphan(&result)
	return result
}

func (s *Store) handleDuplicate(block *Header, txTime time.Time) AddResult {
	// Walk main chain down to block's height to see whether it matches.
	b := s.lastBlock
	for b != nil && b.Height > block.Height {
		b = s.blocks[b.PrevBlock]
	}

	result := AddResult{Classification: AlreadyHave, Block: block}
	if b != nil && b.Hash == block.Hash {
		if len(block.TxHashes) > 0 {
			result.TxUpdates = []TxHeightUpdate{{TxHashes: block.TxHashes, Height: block.Height, Timestamp: txTime}}
		}
		if block.Height == s.lastBlock.Height {
			s.lastBlock = block
		}
	}

	s.blocks[block.Hash] = block
	s.byHeight[block.Height] = block
	return result
}

func (s *Store) extendFork(block *Header) AddResult {
	s.blocks[block.Hash] = block

	if block.Height <= s.lastBlock.Height {
		return AddResult{Classification: ForkExtended, Block: block}
	}

	// Fork overtakes the main chain: walk both back to the join point.
	b, b2 := block, s.lastBlock
	for b != nil && b2 != nil && b.Hash != b2.Hash {
		b = s.blocks[b.PrevBlock]
		if b != nil && b.Height < b2.Height {
			b2 = s.blocks[b2.PrevBlock]
		}
	}

	joinHeight := uint32(0)
	if b != nil {
		joinHeight = b.Height
	}

	var updates []TxHeightUpdate
	cur := block
	prevWalk := b2
	for cur != nil && prevWalk != nil && cur.Height > prevWalk.Height {
		ts := cur.Time
		if parent := s.blocks[cur.PrevBlock]; parent != nil {
			ts = averageTime(cur.Time, parent.Time)
		}
		if len(cur.TxHashes) > 0 {
			updates = append(updates, TxHeightUpdate{TxHashes: cur.TxHashes, Height: cur.Height, Timestamp: ts})
		}
		s.byHeight[cur.Height] = cur
		cur = s.blocks[cur.PrevBlock]
	}

	s.lastBlock = block

	log.Infof("reorganizing chain: new tip %s at height %d, joined at height %d",
		block.Hash, block.Height, joinHeight)

	result := AddResult{
		Classification:  Reorganized,
		Block:           block,
		TxUpdates:       updates,
		ReorgJoinHeight: joinHeight,
	}
	s.absorbWaitingOrphan(&result)
	return result
}

// absorbWaitingOrphan checks whether an orphan was waiting on the block
// just accepted, mirroring the `next` lookup at the end of
// _peerRelayedBlock; the caller is expected to call AddBlock again with
// result.Next if it is non-nil.
func (s *Store) absorbWaitingOrphan(result *AddResult) {
	if next, ok := s.orphans[result.Block.Hash]; ok {
		delete(s.orphans, result.Block.Hash)
		for i, h := range s.orphanOrder {
			if h == result.Block.Hash {
				s.orphanOrder = append(s.orphanOrder[:i], s.orphanOrder[i+1:]...)
				break
			}
		}
		if s.lastOrphan == next {
			s.lastOrphan = nil
		}
		result.Next = next
	}
}

// BlocksToSave returns up to count blocks walking back from the chain
// tip, trimmed so the oldest entry falls on a difficulty-interval
// boundary — mirrors the saveBlocks bookkeeping at the end of
// _peerRelayedBlock.
func (s *Store) BlocksToSave(count int) []*Header {
	var out []*Header
	b := s.lastBlock
	for i := 0; b != nil && i < count; i++ {
		out = append(out, b)
		b = s.blocks[b.PrevBlock]
	}

	if len(out) == 0 {
		return out
	}
	rem := out[len(out)-1].Height % blockDifficultyInterval
	if rem > 0 {
		trim := blockDifficultyInterval - rem
		if uint32(len(out)) > trim {
			out = out[:uint32(len(out))-trim]
		} else {
			out = nil
		}
	}
	return out
}

// ClearOrphans discards every pending orphan, matching
// _BWPeerManagerLoadBloomFilter's reset whenever the bloom filter is
// rebuilt.
func (s *Store) ClearOrphans() {
	s.orphans = make(map[chainhash.Hash]*Header)
	s.orphanOrder = nil
	s.lastOrphan = nil
}
