// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peermgr is the Peer Manager: it drives a small pool of
// peer.Capability sessions, elects one as the download peer, keeps
// blockstore.Store and wallet.Engine in sync with whatever those peers
// relay, and tracks which peers have relayed which transactions well
// enough to call them verified. It is the Go counterpart of
// BWPeerManager.c, built behind the single coarse mutex spec.md §5
// requires: every Callbacks method below takes Manager's lock on entry,
// mutates state, and only invokes a host notification after the lock is
// released.
package peermgr

import (
	"sync"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/bwspv/blockstore"
	"github.com/btcsuite/bwspv/chainparams"
	"github.com/btcsuite/bwspv/peer"
	"github.com/btcsuite/bwspv/txcodec"
	"github.com/btcsuite/bwspv/wallet"
)

var log = btclog.Disabled

// UseLogger sets the logger this package reports through.
func UseLogger(logger btclog.Logger) { log = logger }

// Dialer is the external collaborator that actually resolves and opens
// connections — wire I/O is explicitly out of this module's scope (spec.md
// §1), so the Manager only ever asks a Dialer for sessions and drives them
// through peer.Capability/peer.Callbacks.
type Dialer interface {
	// LookupSeeds resolves a network's DNS seeds into candidate
	// addresses, the Go counterpart of _addressLookup's background
	// thread.
	LookupSeeds(seeds []string) []peer.Address

	// Dial opens a new peer session against addr, wiring cb into
	// whatever transport the implementation speaks. The returned
	// Capability must not be connected yet; the Manager calls Connect
	// itself once bookkeeping is in place.
	Dial(addr peer.Address, cb peer.Callbacks) peer.Capability
}

// Notifications mirrors the host callbacks BWPeerManagerNew takes, fired
// only after Manager's lock has been released.
type Notifications struct {
	SyncStarted    func()
	SyncStopped    func(err error)
	TxStatusUpdate func()
	SavePeers      func(replace bool, peers []peer.Address)
	SaveBlocks     func(replace bool, blocks []*blockstore.Header)
}

// peerSession is everything the Manager tracks about one connected or
// connecting peer, the Go counterpart of a BWPeer plus the manager-side
// bookkeeping BWPeerCallbackInfo carries per peer.
type peerSession struct {
	cap peer.Capability

	sawMempoolDone   bool
	pendingPublishes map[chainhash.Hash]bool
}

// Manager is the long-lived Peer Manager object: one mutex guarding the
// peer pool, the download-peer election, the relay bookkeeping maps, and
// the Bloom filter feedback-loop state, exactly as BWPeerManager.c holds
// manager->lock across all of its own fields.
type Manager struct {
	mu sync.Mutex

	params *chainparams.Params
	store  *blockstore.Store
	wallet *wallet.Engine
	dialer Dialer
	notify Notifications

	maxPeers   int
	fixedPeers []peer.Address // non-nil disables DNS-seed discovery
	knownPeers []peer.Address

	sessions     map[peer.Capability]*peerSession
	downloadPeer peer.Capability

	connected          bool
	syncStartHeight    uint32
	estimatedHeight    uint32
	earliestKeyTime    time.Time
	connectFailures    int
	misbehaveStreak    int
	filterTweak        uint32
	needsFilterUpdate  bool
	filterLoaded       bool
	filterUpdateHeight uint32

	fpRate            float64
	averageTxPerBlock float64

	txRelays    map[chainhash.Hash]map[peer.Capability]bool
	txRequests  map[chainhash.Hash]map[peer.Capability]bool
	publishTxes map[chainhash.Hash]*publishedTx
}

// New returns a Manager ready to Connect, matching BWPeerManagerNew's
// signature in spirit: chain parameters, the block store and wallet it
// keeps synchronized, and the Dialer used to open peer sessions.
func New(params *chainparams.Params, store *blockstore.Store, w *wallet.Engine, dialer Dialer, notify Notifications) *Manager {
	return &Manager{
		params:            params,
		store:             store,
		wallet:            w,
		dialer:            dialer,
		notify:            notify,
		maxPeers:          txcodec.PeerMaxConnections,
		sessions:          make(map[peer.Capability]*peerSession),
		fpRate:            peer.DefaultFalsePositiveRate,
		averageTxPerBlock: 1400,
		txRelays:          make(map[chainhash.Hash]map[peer.Capability]bool),
		txRequests:        make(map[chainhash.Hash]map[peer.Capability]bool),
		publishTxes:       make(map[chainhash.Hash]*publishedTx),
	}
}

// SetFixedPeer pins the Manager to a single, explicitly configured peer
// instead of discovering peers via DNS seeds and relayed addr messages —
// the Go counterpart of BWPeerManagerSetFixedPeer.
func (m *Manager) SetFixedPeer(addr peer.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixedPeers = []peer.Address{addr}
	m.maxPeers = 1
}

// SetEarliestKeyTime records the wallet's earliest key creation time,
// used to decide whether a freshly elected download peer should be asked
// for headers or full blocks from the genesis of its search.
func (m *Manager) SetEarliestKeyTime(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.earliestKeyTime = t
}

// Connect opens sessions up to maxPeers, from the fixed peer, the
// existing known-peer cache, or a fresh DNS-seed lookup when neither is
// available — BWPeerManagerConnect's connect loop.
func (m *Manager) Connect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectLocked()
}

func (m *Manager) connectLocked() {
	if m.syncStartHeight == 0 {
		m.syncStartHeight = m.store.LastBlock().Height
	}

	candidates := m.candidatePeersLocked()
	for len(m.sessions) < m.maxPeers && len(candidates) > 0 {
		addr := candidates[0]
		candidates = candidates[1:]
		m.connectPeerLocked(addr)
	}
}

// candidatePeersLocked picks the next batch of addresses to dial,
// preferring the fixed peer, then the known-peer cache (filled by a
// DNS-seed lookup when it is empty), skipping peers already in session.
// Cache entries are returned in the order they were stored; they are not
// sorted by timestamp and no random selection is made.
func (m *Manager) candidatePeersLocked() []peer.Address {
	if len(m.fixedPeers) > 0 {
		return m.fixedPeers
	}
	if len(m.knownPeers) == 0 {
		m.knownPeers = m.dialer.LookupSeeds(m.params.DNSSeeds)
	}

	out := make([]peer.Address, 0, len(m.knownPeers))
	for _, a := range m.knownPeers {
		if !m.alreadyConnectedLocked(a) {
			out = append(out, a)
		}
	}
	return out
}

func (m *Manager) alreadyConnectedLocked(addr peer.Address) bool {
	for sess := range m.sessions {
		if sess.Host() == addr.Host && sess.Port() == addr.Port {
			return true
		}
	}
	return false
}

// sanitizePeerTimestampLocked clamps p's self-reported timestamp to now if
// it's more than two hours off, matching _peerConnected's "sanity check",
// then folds the corrected value back into the matching knownPeers entry
// so a stale or future timestamp never leaks into a persisted SavePeers
// call.
func (m *Manager) sanitizePeerTimestampLocked(p peer.Capability) {
	now := time.Now()
	ts := p.Timestamp()
	if ts.After(now.Add(2*time.Hour)) || ts.Before(now.Add(-2*time.Hour)) {
		ts = now
	}
	for i, a := range m.knownPeers {
		if a.Host == p.Host() && a.Port == p.Port() {
			m.knownPeers[i].Timestamp = ts
			return
		}
	}
}

func (m *Manager) connectPeerLocked(addr peer.Address) {
	var sess peer.Capability
	cb := peer.Callbacks{
		Connected:          func() { m.onConnected(sess) },
		Disconnected:       func(err error) { m.onDisconnected(sess, err) },
		RelayedPeers:       func(peers []peer.Address) { m.onRelayedPeers(peers) },
		RelayedTx:          func(tx *txcodec.Tx) { m.onRelayedTx(sess, tx) },
		HasTx:              func(hash chainhash.Hash) { m.onHasTx(sess, hash) },
		RejectedTx:         func(hash chainhash.Hash, code byte) { m.onRejectedTx(sess, hash, code) },
		RelayedBlock:       func(block *blockstore.Header) { m.onRelayedBlock(sess, block) },
		DataNotfound:       func(txHashes, blockHashes []chainhash.Hash) { m.onDataNotfound(sess, txHashes, blockHashes) },
		SetFeePerKB:        func(rate uint64) { m.wallet.SetFeePerKB(rate) },
		RequestedTx:        func(hash chainhash.Hash) (*txcodec.Tx, bool) { return m.onRequestedTx(sess, hash) },
		NetworkIsReachable: func() bool { return true },
	}

	sess = m.dialer.Dial(addr, cb)
	m.sessions[sess] = &peerSession{cap: sess, pendingPublishes: make(map[chainhash.Hash]bool)}
	sess.Connect()
}

