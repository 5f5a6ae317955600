// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peermgr

import (
	"syscall"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/bwspv/txcodec"
)

// publishedTx is one transaction the Manager is trying to relay: tx itself,
// plus the callback to fire once it's known verified, rejected, or timed
// out. An unconfirmed ancestor dragged in only so its child can be relayed
// gets no callback of its own, matching
// _BWPeerManagerAddTxToPublishList(manager, tx, NULL, NULL) in the original.
type publishedTx struct {
	tx *txcodec.Tx
	cb func(error)
}

// PublishTransaction broadcasts tx (and any unconfirmed ancestor of tx this
// wallet already knows about) to every connected peer except the download
// peer (which is used only when it is the sole session), the Go
// counterpart of BWPeerManagerPublishTx. A peer that does not yet have an
// ancestor cannot accept a child that spends it, so every pending ancestor
// is announced first. cb is called once: with nil as soon as any peer
// relays tx back or announces it, or with an error (EINVAL, ENOTCONN,
// ETIMEDOUT) if it could not be published.
func (m *Manager) PublishTransaction(tx *txcodec.Tx, cb func(error)) {
	m.mu.Lock()

	if !tx.IsSigned() {
		m.mu.Unlock()
		if cb != nil {
			cb(syscall.EINVAL)
		}
		return
	}

	if !m.connected || len(m.sessions) == 0 {
		m.mu.Unlock()
		if cb != nil {
			cb(syscall.ENOTCONN)
		}
		return
	}

	chain := m.unconfirmedAncestorsLocked(tx)
	hashes := make([]chainhash.Hash, len(chain))
	for i, t := range chain {
		entry := &publishedTx{tx: t}
		if t.Hash == tx.Hash {
			entry.cb = cb
		}
		m.publishTxes[t.Hash] = entry
		hashes[i] = t.Hash
	}

	// The download peer is busy serving the initial sync; skip it unless
	// it's the only session we have, matching the original's
	// `if (peer != manager->downloadPeer || count == 1)`.
	for _, sess := range m.sessions {
		if sess.cap == m.downloadPeer && len(m.sessions) > 1 {
			continue
		}
		sess.cap.SendInv(hashes)
		for _, h := range hashes {
			sess.pendingPublishes[h] = true
		}
		sess.cap.ScheduleDisconnect(txcodec.PeerProtocolTimeoutSeconds)
		sess.cap.SendPing(func() {})
	}

	m.mu.Unlock()
}

// unconfirmedAncestorsLocked walks tx's inputs back through the wallet's
// own pending transactions, returning every unconfirmed ancestor followed
// by tx itself, oldest first — so relaying them in order lets a peer
// accept each one in turn.
func (m *Manager) unconfirmedAncestorsLocked(tx *txcodec.Tx) []*txcodec.Tx {
	seen := map[chainhash.Hash]bool{tx.Hash: true}
	var chain []*txcodec.Tx

	var walk func(t *txcodec.Tx)
	walk = func(t *txcodec.Tx) {
		for _, in := range t.Inputs {
			if seen[in.PrevHash] {
				continue
			}
			if parent, ok := m.wallet.TransactionForHash(in.PrevHash); ok && parent.BlockHeight == txcodec.TxUnconfirmed {
				seen[in.PrevHash] = true
				walk(parent)
				chain = append(chain, parent)
			}
		}
	}
	walk(tx)
	chain = append(chain, tx)
	return chain
}

// completedPublishLocked reports whether hash was a tracked publish and, if
// so, removes it and returns its callback — nil if hash was only tracked as
// an unconfirmed ancestor with no callback of its own.
func (m *Manager) completedPublishLocked(hash chainhash.Hash) func(error) {
	entry, ok := m.publishTxes[hash]
	if !ok {
		return nil
	}
	delete(m.publishTxes, hash)
	return entry.cb
}

// hasPendingPublishCallbacksLocked reports whether any tracked publish
// still has a caller waiting on it, the Go counterpart of the original's
// hasPendingCallbacks scan — used to decide whether a peer's
// publish-driven disconnect timeout can be canceled once relayed back.
func (m *Manager) hasPendingPublishCallbacksLocked() bool {
	for _, entry := range m.publishTxes {
		if entry.cb != nil {
			return true
		}
	}
	return false
}
