// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peermgr

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/bwspv/addr"
	"github.com/btcsuite/bwspv/blockstore"
	"github.com/btcsuite/bwspv/peer"
	"github.com/btcsuite/bwspv/txcodec"
)

// recentOutpointWindow is how far back from the chain tip an unconfirmed
// transaction's outpoints are still folded into the Bloom filter, so a
// double-spend or fee-bump of our own pending tx is still matched —
// _BWPeerManagerLoadBloomFilter's 100-block window.
const recentOutpointWindow = 100

// loadBloomFilterLocked rebuilds the Bloom filter from the wallet's
// current address set and UTXOs and loads it onto p, then clears any
// orphan blocks accumulated under the stale filter — the Go counterpart
// of _BWPeerManagerLoadBloomFilter.
func (m *Manager) loadBloomFilterLocked(p peer.Capability) {
	addrs := m.wallet.AllAddrs()
	hashes := make([][]byte, 0, len(addrs))
	for _, a := range addrs {
		if h, err := addr.Decode(a); err == nil {
			hashes = append(hashes, h)
		}
	}

	utxos := m.wallet.UTXOs()
	outpoints := make([]wire.OutPoint, len(utxos))
	for i, u := range utxos {
		outpoints[i] = wire.OutPoint{Hash: u.Hash, Index: u.Index}
	}

	tip := m.store.LastBlock().Height
	var recent []wire.OutPoint
	for _, tx := range m.wallet.Transactions() {
		if tx.BlockHeight != txcodec.TxUnconfirmed && uint32(tx.BlockHeight)+recentOutpointWindow < tip {
			continue
		}
		for _, in := range tx.Inputs {
			recent = append(recent, wire.OutPoint{Hash: in.PrevHash, Index: in.PrevIndex})
		}
	}

	m.filterTweak++
	filter := peer.BuildFilter(peer.FilterParams{
		AddressHashes:     hashes,
		UTXOs:             outpoints,
		RecentOutpoints:   recent,
		FalsePositiveRate: m.fpRate,
		Tweak:             m.filterTweak,
	})

	p.SendFilterload(filter.MsgFilterLoad())
	m.store.ClearOrphans()
	m.needsFilterUpdate = false
	m.filterLoaded = true
	m.filterUpdateHeight = tip
}

// updateFalsePositiveRateLocked recomputes the running false-positive
// rate estimate from a block relayed by the download peer, a low-pass
// filter over (matched but not ours) / averageTxPerBlock — the Go
// counterpart of the bookkeeping at the end of _peerRelayedBlock. A
// sufficiently degraded rate forces a disconnect and a reset to the
// reduced target rate; a chronically elevated one while far behind the
// peer's reported tip schedules a filter reload.
func (m *Manager) updateFalsePositiveRateLocked(p peer.Capability, block *blockstore.Header) {
	totalTx := float64(block.TotalTx)
	if totalTx == 0 {
		return
	}

	fpCount := 0.0
	for _, h := range block.TxHashes {
		if !m.wallet.ContainsTransactionHash(h) {
			fpCount++
		}
	}

	m.averageTxPerBlock = m.averageTxPerBlock*0.999 + totalTx*0.001
	m.fpRate = m.fpRate*(1.0-0.01*totalTx/m.averageTxPerBlock) + 0.01*fpCount/m.averageTxPerBlock

	behind := m.estimatedHeight > m.store.LastBlock().Height && m.estimatedHeight-m.store.LastBlock().Height >= recentOutpointWindow*5

	switch {
	case m.fpRate > peer.DefaultFalsePositiveRate*10:
		log.Warnf("bloom filter false positive rate %f too high, resetting", m.fpRate)
		m.fpRate = peer.ReducedFalsePositiveRate
		p.Disconnect()

	case !m.needsFilterUpdate && behind && m.fpRate > peer.ReducedFalsePositiveRate*10:
		m.needsFilterUpdate = true
		m.filterLoaded = false
		p.SetNeedsFilterUpdate(true)
	}
}

