// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peer defines the Peer Capability contract peermgr drives — the
// byte-level wire protocol (framing, handshake, ping/pong, getheaders,
// getblocks, inv, getdata, mempool, filterload, filteradd, feefilter,
// reject, tx, merkleblock) is explicitly out of scope per spec.md §1;
// this package only specifies the interface a concrete wire
// implementation must satisfy, plus the Bloom filter item builder that
// turns wallet state into what gets loaded onto that wire.
package peer

import (
	"time"

	"github.com/btcsuite/btcd/btcutil/bloom"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/bwspv/blockstore"
	"github.com/btcsuite/bwspv/txcodec"
)

// ConnectStatus mirrors BWPeerStatus.
type ConnectStatus int

const (
	Disconnected ConnectStatus = iota
	Connecting
	Connected
)

// Address is a peer address as relayed by the `addr` message or looked up
// via DNS seed, the Go counterpart of BWPeer's address fields used by
// _BWPeerManagerFindPeers/_peerRelayedPeers.
type Address struct {
	Host      string
	Port      uint16
	Services  uint64
	Timestamp time.Time
}

// Capability is the opaque peer session contract from spec.md §4.1. A
// concrete wire implementation owns its own message-pumping thread and
// send-queue and may call back into the Manager from that thread (see
// spec.md §5's lock discipline, which peermgr implements on the
// receiving end of every Callbacks method).
type Capability interface {
	Connect()
	Disconnect()
	// ScheduleDisconnect arms a disconnect timeout; seconds < 0 cancels
	// any pending timeout.
	ScheduleDisconnect(seconds int)

	SendFilterload(filter *wire.MsgFilterLoad)
	SendGetblocks(locators []chainhash.Hash, stop chainhash.Hash)
	SendGetheaders(locators []chainhash.Hash, stop chainhash.Hash)
	SendGetdata(txHashes, blockHashes []chainhash.Hash)
	SendMempool()
	SendInv(txHashes []chainhash.Hash)
	// SendPing's done callback fires only after every message already
	// enqueued from this peer has been processed — the barrier spec.md
	// §5 calls the explicit suspension point.
	SendPing(done func())
	SendGetaddr()
	RerequestBlocks(fromHash chainhash.Hash)
	SetCurrentBlockHeight(height uint32)
	SetNeedsFilterUpdate(needsUpdate bool)
	SetEarliestKeyTime(t time.Time)

	ConnectStatus() ConnectStatus
	LastBlock() uint32
	PingTime() time.Duration
	Version() uint32
	Services() uint64
	FeePerKB() uint64
	Host() string
	Port() uint16
	Timestamp() time.Time
}

// Callbacks is how a Capability notifies the Manager; every method here
// is invoked from the peer's own pump thread, never concurrently with
// another callback from the *same* peer (spec.md §5's per-peer ordering
// guarantee).
type Callbacks struct {
	Connected          func()
	Disconnected       func(err error)
	RelayedPeers       func(peers []Address)
	RelayedTx          func(tx *txcodec.Tx)
	HasTx              func(hash chainhash.Hash)
	RejectedTx         func(hash chainhash.Hash, code byte)
	RelayedBlock       func(block *blockstore.Header)
	DataNotfound       func(txHashes, blockHashes []chainhash.Hash)
	SetFeePerKB        func(rate uint64)
	RequestedTx        func(hash chainhash.Hash) (*txcodec.Tx, bool)
	NetworkIsReachable func() bool
	ThreadCleanup      func()
}

// FilterParams is everything needed to build a fresh Bloom filter scoped
// to this wallet's current interest set, matching
// _BWPeerManagerLoadBloomFilter's inputs: every generated address
// (hash160), every UTXO outpoint, and the outpoints of unconfirmed
// transactions from the last 100 blocks (so a double-spend or RBF
// replacement of our own pending tx is still matched).
type FilterParams struct {
	AddressHashes  [][]byte
	UTXOs          []wire.OutPoint
	RecentOutpoints []wire.OutPoint
	FalsePositiveRate float64
	Tweak          uint32
}

// BuildFilter constructs a Bloom filter sized to p's item count plus
// slack (the "+100" in the original, which absorbs the spare addresses
// BWWalletUnusedAddrs pre-generates so the filter need not be rebuilt on
// every single new address).
func BuildFilter(p FilterParams) *bloom.Filter {
	n := uint32(len(p.AddressHashes)+len(p.UTXOs)+len(p.RecentOutpoints)) + 100

	filter := bloom.NewFilter(n, p.Tweak, p.FalsePositiveRate, wire.BloomUpdateAll)

	for _, h := range p.AddressHashes {
		filter.Add(h)
	}
	for i := range p.UTXOs {
		filter.AddOutPoint(&p.UTXOs[i])
	}
	for i := range p.RecentOutpoints {
		filter.AddOutPoint(&p.RecentOutpoints[i])
	}

	return filter
}

// DefaultFalsePositiveRate and ReducedFalsePositiveRate are the two fpRate
// levels _peerRelayedBlock's low-pass filter compares against: the
// starting target, and the fallback used once a degraded filter forces a
// disconnect.
const (
	DefaultFalsePositiveRate = 0.0005
	ReducedFalsePositiveRate = 0.00005
)
