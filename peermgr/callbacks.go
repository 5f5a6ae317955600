// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peermgr

import (
	"syscall"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/bwspv/blockstore"
	"github.com/btcsuite/bwspv/peer"
	"github.com/btcsuite/bwspv/txcodec"
)

// onConnected runs the peer-connected policy from _peerConnectedCallback:
// a service-bit sanity check, then either sticking with the existing
// download peer (if it is good enough) or electing this peer as the new
// one.
func (m *Manager) onConnected(p peer.Capability) {
	m.mu.Lock()

	m.sanitizePeerTimestampLocked(p)

	if p.Services()&m.params.Services != m.params.Services {
		m.misbehaveLocked(p, "missing required services")
		m.mu.Unlock()
		return
	}

	if m.store.LastBlock().Height > 0 && p.LastBlock() > 0 &&
		p.LastBlock()+10 < m.store.LastBlock().Height {
		m.misbehaveLocked(p, "node isn't synced")
		m.mu.Unlock()
		return
	}

	if p.LastBlock() > m.estimatedHeight {
		m.estimatedHeight = p.LastBlock()
	}

	keepExisting := m.downloadPeer != nil &&
		(m.downloadPeer.LastBlock() >= p.LastBlock() || m.store.LastBlock().Height >= p.LastBlock()) &&
		(m.downloadPeer.PingTime() <= p.PingTime() || m.store.LastBlock().Height < m.downloadPeer.LastBlock())

	if keepExisting {
		p.ScheduleDisconnect(-1)
		m.mu.Unlock()
		return
	}

	m.electDownloadPeerLocked(p)
	m.mu.Unlock()
}

// electDownloadPeerLocked replaces the current download peer with p,
// loads a fresh Bloom filter onto it, and kicks off the header/block
// request appropriate to how far behind the wallet's earliest key time
// puts it, matching the tail of _peerConnectedCallback.
func (m *Manager) electDownloadPeerLocked(p peer.Capability) {
	if m.downloadPeer != nil && m.downloadPeer != p {
		m.downloadPeer.Disconnect()
	}
	m.downloadPeer = p

	if !m.connected {
		m.connected = true
		notify := m.notify.SyncStarted
		if notify != nil {
			m.mu.Unlock()
			notify()
			m.mu.Lock()
		}
	}

	m.loadBloomFilterLocked(p)

	locators := m.store.BlockLocators()
	if m.store.LastBlock().Time.Add(7 * 24 * time.Hour).Before(m.earliestKeyTime) {
		p.SendGetheaders(locators, chainhash.Hash{})
	} else {
		p.SendGetblocks(locators, chainhash.Hash{})
	}

	p.ScheduleDisconnect(txcodec.PeerProtocolTimeoutSeconds)
}

// onDisconnected runs _peerDisconnectedCallback: drop the session, retire
// it as download peer if it was one, and either schedule a reconnect or
// give up and report sync stopped once MAX_CONNECT_FAILURES is reached.
func (m *Manager) onDisconnected(p peer.Capability, err error) {
	m.mu.Lock()

	sess := m.sessions[p]
	delete(m.sessions, p)
	wasDownloadPeer := p == m.downloadPeer
	if wasDownloadPeer {
		m.downloadPeer = nil
		m.connected = false
	}

	if err != nil {
		m.connectFailures++
		if m.connectFailures > txcodec.MaxConnectFailures {
			m.connectFailures = txcodec.MaxConnectFailures
		}
	}

	stopped := !m.connected && m.connectFailures == txcodec.MaxConnectFailures
	if stopped {
		m.connected = false
	} else if m.connectFailures < txcodec.MaxConnectFailures {
		m.connectLocked()
	}

	// A timeout waiting on the download peer mid-sync is a sync problem,
	// not a publish failure — its pending publishes are left in place for
	// the next download peer to pick up. Any other timeout, or total sync
	// failure, gives up on the publishes it was carrying.
	var txErr error
	switch {
	case stopped:
		txErr = syscall.ENOTCONN
	case err == syscall.ETIMEDOUT && (!wasDownloadPeer || m.syncStartHeight == 0):
		txErr = syscall.ETIMEDOUT
	}

	var callbacks []func(error)
	if txErr != nil {
		for _, h := range m.publishesToCancelLocked(sess, stopped) {
			if cb := m.completedPublishLocked(h); cb != nil {
				callbacks = append(callbacks, cb)
			}
		}
	}

	m.mu.Unlock()

	for _, cb := range callbacks {
		cb(txErr)
	}

	if stopped && m.notify.SyncStopped != nil {
		m.notify.SyncStopped(err)
	}
}

// publishesToCancelLocked lists the publish hashes a disconnect gives up
// on: every tracked publish once the whole sync has failed, otherwise just
// the ones this particular peer was asked to relay.
func (m *Manager) publishesToCancelLocked(sess *peerSession, all bool) []chainhash.Hash {
	if all {
		hashes := make([]chainhash.Hash, 0, len(m.publishTxes))
		for h := range m.publishTxes {
			hashes = append(hashes, h)
		}
		return hashes
	}
	if sess == nil {
		return nil
	}
	hashes := make([]chainhash.Hash, 0, len(sess.pendingPublishes))
	for h := range sess.pendingPublishes {
		hashes = append(hashes, h)
	}
	return hashes
}

// onRelayedPeers folds newly relayed addresses into the known-peer cache,
// the Go counterpart of _peerRelayedPeersCallback.
func (m *Manager) onRelayedPeers(addrs []peer.Address) {
	m.mu.Lock()
	m.knownPeers = append(m.knownPeers, addrs...)
	save := m.notify.SavePeers
	peers := append([]peer.Address(nil), m.knownPeers...)
	m.mu.Unlock()

	if save != nil {
		save(false, peers)
	}
}

// onRelayedTx registers a tx the peer relayed and tracks it as a seen-by
// this peer, so it can be promoted to verified once enough peers have
// relayed it — _peerRelayedTxCallback/_BWPeerManagerPublishTxStatusUpdate.
func (m *Manager) onRelayedTx(p peer.Capability, tx *txcodec.Tx) {
	m.mu.Lock()
	m.markRelayedLocked(tx.Hash, p)
	cb := m.completedPublishLocked(tx.Hash)
	if !m.hasPendingPublishCallbacksLocked() && (m.syncStartHeight == 0 || p != m.downloadPeer) {
		p.ScheduleDisconnect(-1)
	}
	notify := m.notify.TxStatusUpdate
	m.mu.Unlock()

	added := m.wallet.RegisterTransaction(tx)
	if cb != nil {
		cb(nil)
	}
	if added && notify != nil {
		notify()
	}
}

// onHasTx records that p has also seen hash, without relaying the full
// transaction again (an `inv` with no matching `getdata` reply needed) —
// _peerHasTxCallback. A match against a pending publish completes it, the
// same as if the full transaction had come back.
func (m *Manager) onHasTx(p peer.Capability, hash chainhash.Hash) {
	m.mu.Lock()
	m.markRelayedLocked(hash, p)
	cb := m.completedPublishLocked(hash)
	if !m.hasPendingPublishCallbacksLocked() && (m.syncStartHeight == 0 || p != m.downloadPeer) {
		p.ScheduleDisconnect(-1)
	}
	m.mu.Unlock()

	if cb != nil {
		cb(nil)
	}
}

// onRejectedTx handles a peer's reject message for hash —
// _peerRejectedTxCallback: it drops p from hash's relay set and removes the
// transaction from the wallet.
func (m *Manager) onRejectedTx(p peer.Capability, hash chainhash.Hash, code byte) {
	m.mu.Lock()
	if relays, ok := m.txRelays[hash]; ok {
		delete(relays, p)
	}
	m.mu.Unlock()

	m.wallet.RemoveTransaction(hash)
}

// tooRecentHeaderWindow and rescanLookback bound spec.md §4.4 case 1
// ("header only, too recent"): a header-only block (no matched
// transactions) timestamped further than tooRecentHeaderWindow into the
// future of (earliestKeyTime - rescanLookback) is dropped, since it falls
// past the point a rescan from earliestKeyTime would ever need it.
const (
	tooRecentHeaderWindow = 7 * 24 * time.Hour
	rescanLookback        = 2 * time.Hour
)

// walletUpdate is one deferred call into wallet.Engine collected while
// Manager's lock is held, applied only after it is released — Engine has
// its own lock and fires its own host callbacks, but calling it while
// m.mu is still held would nest the two locks around whatever a host
// callback does, exactly the hazard spec.md §5 rules out.
type walletUpdate struct {
	isReorg     bool
	reorgHeight uint32
	hashes      []chainhash.Hash
	blockHeight int32
	timestamp   time.Time
}

// onRelayedBlock feeds a newly relayed merkle block into the block store,
// forwards any resulting tx height updates to the wallet, runs the Bloom
// filter false-positive feedback loop, and recurses through any orphan
// chain the new block completes — the Go counterpart of
// _peerRelayedBlockCallback/_peerRelayedBlock.
func (m *Manager) onRelayedBlock(p peer.Capability, block *blockstore.Header) {
	m.mu.Lock()

	// spec.md §4.4 case 1: header-only block too recent to matter yet.
	if block.TotalTx == 0 && !m.earliestKeyTime.IsZero() &&
		block.Time.After(m.earliestKeyTime.Add(-rescanLookback).Add(tooRecentHeaderWindow)) {
		m.mu.Unlock()
		return
	}

	// spec.md §4.4 case 2: filter reload pending, block can't be trusted
	// against a stale filter — drop it, and if we're mid-sync against the
	// download peer, keep its timeout alive rather than let it starve
	// waiting for a reply that will never come.
	if !m.filterLoaded {
		if p == m.downloadPeer && m.store.LastBlock().Height < m.estimatedHeight {
			p.ScheduleDisconnect(txcodec.PeerProtocolTimeoutSeconds)
		}
		m.mu.Unlock()
		return
	}

	peerTip := uint32(0)
	if p != nil {
		peerTip = p.LastBlock()
	}

	var updates []walletUpdate

	result := m.store.AddBlock(block, peerTip)
	for {
		updates = append(updates, m.applyBlockResultLocked(p, result)...)
		if result.Next == nil {
			break
		}
		result = m.store.AddBlock(result.Next, peerTip)
	}

	if p == m.downloadPeer {
		p.SetCurrentBlockHeight(m.store.LastBlock().Height)
		if m.store.LastBlock().Height < m.estimatedHeight {
			p.ScheduleDisconnect(txcodec.PeerProtocolTimeoutSeconds)
		} else {
			m.checkSyncDoneLocked(p)
		}
	}

	save := m.notify.SaveBlocks
	blocks := m.store.BlocksToSave(100)
	m.mu.Unlock()

	for _, u := range updates {
		if u.isReorg {
			m.wallet.SetTxUnconfirmedAfter(u.reorgHeight)
		} else {
			m.wallet.UpdateTransactions(u.hashes, u.blockHeight, u.timestamp)
		}
	}

	if save != nil {
		save(false, blocks)
	}
}

// applyBlockResultLocked reports the wallet updates result implies,
// leaving the actual wallet.Engine calls to the caller once m.mu is
// released, and (still under the lock, since it only touches Manager's
// own fpRate/needsFilterUpdate state) runs the Bloom filter feedback
// loop.
func (m *Manager) applyBlockResultLocked(p peer.Capability, result blockstore.AddResult) []walletUpdate {
	var updates []walletUpdate
	// spec.md §4.4 case 9: mark every wallet tx above the join height
	// unconfirmed *before* replaying the new chain's heights forward —
	// SetTxUnconfirmedAfter resets everything above blockHeight
	// unconditionally, so applying it after the new-chain TxUpdates would
	// immediately wipe out the confirmations just set on them.
	if result.Classification == blockstore.Reorganized {
		updates = append(updates, walletUpdate{isReorg: true, reorgHeight: result.ReorgJoinHeight})
	}
	for _, upd := range result.TxUpdates {
		updates = append(updates, walletUpdate{
			hashes:      upd.TxHashes,
			blockHeight: int32(upd.Height),
			timestamp:   upd.Timestamp,
		})
	}
	if p == m.downloadPeer && result.Block != nil && result.Block.TotalTx > 0 {
		m.updateFalsePositiveRateLocked(p, result.Block)
	}
	return updates
}

// onDataNotfound removes any publish tracking for transactions the peer
// reports it does not have, matching _peerNotFoundCallback.
func (m *Manager) onDataNotfound(p peer.Capability, txHashes, blockHashes []chainhash.Hash) {
	m.mu.Lock()
	for _, h := range txHashes {
		if sess := m.sessions[p]; sess != nil {
			delete(sess.pendingPublishes, h)
		}
	}
	m.mu.Unlock()
}

// onRequestedTx answers a peer's getdata for a transaction hash from the
// pending publishes only (any other hash yields false), recording p against
// hash in txRequests so a later reject or inv from a different peer can
// be cross-checked against who we actually sent it to —
// _peerRequestedTxCallback.
func (m *Manager) onRequestedTx(p peer.Capability, hash chainhash.Hash) (*txcodec.Tx, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	requests, ok := m.txRequests[hash]
	if !ok {
		requests = make(map[peer.Capability]bool)
		m.txRequests[hash] = requests
	}
	requests[p] = true

	if entry, ok := m.publishTxes[hash]; ok {
		return entry.tx, true
	}
	return nil, false
}

// checkSyncDoneLocked acts once the download peer has reached the
// estimated chain height: it sends a mempool request to every connected
// peer not yet sent one and sets that session's sawMempoolDone when the
// request is sent. It does not wait for the mempool replies and does not
// fire SyncStopped.
func (m *Manager) checkSyncDoneLocked(p peer.Capability) {
	if m.store.LastBlock().Height < m.estimatedHeight {
		return
	}
	for _, sess := range m.sessions {
		if !sess.sawMempoolDone {
			sess.cap.SendMempool()
			sess.sawMempoolDone = true
		}
	}
}

func (m *Manager) markRelayedLocked(hash chainhash.Hash, p peer.Capability) {
	relays, ok := m.txRelays[hash]
	if !ok {
		relays = make(map[peer.Capability]bool)
		m.txRelays[hash] = relays
	}
	relays[p] = true
}

// misbehaveLocked disconnects p and increments the misbehavior streak;
// ten in a row discards the known-peer cache so the next connect attempt
// starts from a fresh DNS-seed lookup, matching the original's
// misbehavinCount >= 10 reset.
func (m *Manager) misbehaveLocked(p peer.Capability, reason string) {
	log.Warnf("peer %s:%d misbehaved: %s", p.Host(), p.Port(), reason)
	p.Disconnect()

	m.misbehaveStreak++
	if m.misbehaveStreak >= txcodec.PeerMisbehaveStreakLimit {
		m.misbehaveStreak = 0
		m.knownPeers = nil
	}
}
