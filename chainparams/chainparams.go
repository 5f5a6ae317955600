// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainparams is the Chain Parameters external collaborator:
// per-network magic bytes, standard port, DNS seeds, checkpoint table, and
// difficulty verification. The difficulty retarget arithmetic is the same
// algorithm blockmanager.go's calcNextRequiredDifficulty runs, adapted from
// "compute the next target" to "verify a claimed target" since this core
// only ever checks headers it is handed, never mines.
package chainparams

import (
	"math/big"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Checkpoint pins a known-good block, the way BWPeerManagerSetupPeers seeds
// manager->checkpoints so a relayed header that contradicts one is rejected
// outright rather than accepted onto a fork.
type Checkpoint struct {
	Height    uint32
	Hash      chainhash.Hash
	Timestamp time.Time
	Target    uint32
}

// Header is the subset of a blockstore header this package needs to verify
// difficulty and checkpoints, kept independent of the blockstore package to
// avoid a cyclic import.
type Header interface {
	Height() uint32
	Bits() uint32
	Timestamp() time.Time
	Hash() chainhash.Hash
}

// BlockSource looks up a previously-accepted header by height, used to find
// the start of the current retarget window.
type BlockSource interface {
	HeaderAtHeight(height uint32) (Header, bool)
}

// Params is one network's chain parameters.
type Params struct {
	Name        string
	MagicNumber uint32
	Services    uint64
	StandardPort uint16
	DNSSeeds    []string
	Checkpoints []Checkpoint

	PowLimit             *big.Int
	PowLimitBits         uint32
	TargetTimespan       time.Duration
	TargetTimePerBlock   time.Duration
	ReduceMinDifficulty  bool
	MinDiffReductionTime time.Duration
}

// BlocksPerRetarget is the number of blocks between difficulty
// adjustments, matching blockmanager.go's blocksPerRetarget field.
func (p *Params) BlocksPerRetarget() int32 {
	return int32(p.TargetTimespan / p.TargetTimePerBlock)
}

// LastCheckpoint returns the highest-height checkpoint, or false if the
// network carries none.
func (p *Params) LastCheckpoint() (Checkpoint, bool) {
	if len(p.Checkpoints) == 0 {
		return Checkpoint{}, false
	}
	return p.Checkpoints[len(p.Checkpoints)-1], true
}

// CheckpointAtHeight returns the checkpoint pinned at height, if any.
func (p *Params) CheckpointAtHeight(height uint32) (Checkpoint, bool) {
	for _, cp := range p.Checkpoints {
		if cp.Height == height {
			return cp, true
		}
	}
	return Checkpoint{}, false
}

// VerifyDifficulty reports whether header's claimed target (Bits) is the
// one this network's retarget rule requires at its height, given prior
// and at a retarget boundary. blocks supplies the header at the start of
// the current retarget window. It returns false (reject) on any lookup
// failure — an unverifiable claim is not an accepted one.
func (p *Params) VerifyDifficulty(header Header, prev Header, blocks BlockSource) bool {
	if header.Height() == 0 {
		return header.Bits() == p.PowLimitBits
	}

	if header.Height()%uint32(p.BlocksPerRetarget()) != 0 {
		if p.ReduceMinDifficulty {
			reductionTime := int64(p.MinDiffReductionTime / time.Second)
			allowMinTime := prev.Timestamp().Unix() + reductionTime
			if header.Timestamp().Unix() > allowMinTime {
				return header.Bits() == p.PowLimitBits
			}
		}
		return header.Bits() == prev.Bits()
	}

	firstHeight := header.Height() - uint32(p.BlocksPerRetarget())
	firstNode, ok := blocks.HeaderAtHeight(firstHeight)
	if !ok {
		return false
	}

	actualTimespan := prev.Timestamp().Unix() - firstNode.Timestamp().Unix()
	adjustedTimespan := actualTimespan

	minTimespan := int64(p.TargetTimespan/time.Second) / 4
	maxTimespan := int64(p.TargetTimespan/time.Second) * 4
	if actualTimespan < minTimespan {
		adjustedTimespan = minTimespan
	} else if actualTimespan > maxTimespan {
		adjustedTimespan = maxTimespan
	}

	oldTarget := blockchain.CompactToBig(prev.Bits())
	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(adjustedTimespan))
	newTarget.Div(newTarget, big.NewInt(int64(p.TargetTimespan/time.Second)))

	if newTarget.Cmp(p.PowLimit) > 0 {
		newTarget.Set(p.PowLimit)
	}

	return header.Bits() == blockchain.BigToCompact(newTarget)
}

func mustHash(s string) chainhash.Hash {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		panic(err)
	}
	return *h
}

var mainPowLimit = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 224), big.NewInt(1))
var testNetPowLimit = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 224), big.NewInt(1))

// MainNet carries the real Bitcoin mainnet DNS seeds and a trimmed
// checkpoint table (hashes are the genuine mainnet block hashes at each
// height; timestamps are approximated at ten minutes per block from
// genesis since the exact historical timestamps weren't part of the
// retrieval pack this module was built from).
var MainNet = &Params{
	Name:         "mainnet",
	MagicNumber:  0xd9b4bef9,
	Services:     1,
	StandardPort: 8333,
	DNSSeeds: []string{
		"seed.bitcoin.sipa.be",
		"dnsseed.bluematt.me",
		"dnsseed.bitcoin.dashjr.org",
		"seed.bitcoinstats.com",
		"seed.bitnodes.io",
		"seed.bitcoin.jonasschnelli.ch",
	},
	Checkpoints: []Checkpoint{
		{Height: 11111, Hash: mustHash("0000000069e244f73d78e8fd29ba2fd2ed618bd6fa2ee92559f542fdb26e7c1d"), Timestamp: approxTimestamp(11111), Target: 0x1d00ffff},
		{Height: 33333, Hash: mustHash("000000002dd5588a74784eaa7ab0507a18ad16a236e7b1ce69f00d7ddfb5d0a6"), Timestamp: approxTimestamp(33333), Target: 0x1d00ffff},
		{Height: 74000, Hash: mustHash("0000000000573993a3c9e41ce34471c079dcf5f52a0e824a81e7f953b8661a20"), Timestamp: approxTimestamp(74000), Target: 0x1d00ffff},
		{Height: 105000, Hash: mustHash("00000000000291ce28027faea320c8d2b054b2e0fe44a773f3eefb151d6bdc97"), Timestamp: approxTimestamp(105000), Target: 0x1d00ffff},
		{Height: 134444, Hash: mustHash("00000000000005b12ffd4cd315cd34ffd4a594f430ac814c91184a0d42d2b0fe"), Timestamp: approxTimestamp(134444), Target: 0x1d00ffff},
		{Height: 168000, Hash: mustHash("000000000000099e61ea72015e79632f216fe6cb33d7899acb35b75c8303b763"), Timestamp: approxTimestamp(168000), Target: 0x1d00ffff},
		{Height: 193000, Hash: mustHash("000000000000059f452a5f7340de6682a977387c17010ff6e6c3bd83ca8b1317"), Timestamp: approxTimestamp(193000), Target: 0x1d00ffff},
		{Height: 210000, Hash: mustHash("000000000000048b95347e83192f69cf0366076336c639f9b7228e9ba171342e"), Timestamp: approxTimestamp(210000), Target: 0x1903a30c},
	},
	PowLimit:             mainPowLimit,
	PowLimitBits:         0x1d00ffff,
	TargetTimespan:       time.Hour * 24 * 14,
	TargetTimePerBlock:   time.Minute * 10,
	ReduceMinDifficulty:  false,
	MinDiffReductionTime: 0,
}

// TestNet carries the real Bitcoin testnet3 DNS seeds, with the reduced
// checkpoint table and minimum-difficulty-reduction rule that testnet
// applies.
var TestNet = &Params{
	Name:         "testnet3",
	MagicNumber:  0x0709110b,
	Services:     1,
	StandardPort: 18333,
	DNSSeeds: []string{
		"testnet-seed.bitcoin.jonasschnelli.ch",
		"testnet-seed.bitcoin.schildbach.de",
		"seed.tbtc.petertodd.org",
		"testnet-seed.bluematt.me",
	},
	Checkpoints: []Checkpoint{
		{Height: 546, Hash: mustHash("000000002a936ca763904c3c35fce2f3556c559c0214345d31b1bcebf76acb70"), Timestamp: approxTimestamp(546), Target: 0x1d00ffff},
	},
	PowLimit:             testNetPowLimit,
	PowLimitBits:         0x1d00ffff,
	TargetTimespan:       time.Hour * 24 * 14,
	TargetTimePerBlock:   time.Minute * 10,
	ReduceMinDifficulty:  true,
	MinDiffReductionTime: time.Minute * 20,
}

var bitcoinGenesisTime = time.Date(2009, time.January, 3, 18, 15, 5, 0, time.UTC)

func approxTimestamp(height uint32) time.Time {
	return bitcoinGenesisTime.Add(time.Duration(height) * 10 * time.Minute)
}
