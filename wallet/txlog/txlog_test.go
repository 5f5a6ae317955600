// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txlog

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/bwspv/addr"
	"github.com/btcsuite/bwspv/txcodec"
	"github.com/btcsuite/bwspv/wallet/addrchain"
	"github.com/stretchr/testify/require"
)

func newChains(t *testing.T) (*addrchain.Chain, *addrchain.Chain) {
	seed, err := hdkeychain.GenerateSeed(hdkeychain.RecommendedSeedLen)
	require.NoError(t, err)
	ext, err := addrchain.New(seed, addrchain.External, addr.MainNetParams, false)
	require.NoError(t, err)
	internal, err := addrchain.New(seed, addrchain.Internal, addr.MainNetParams, false)
	require.NoError(t, err)
	return ext, internal
}

func coinbaseLikeTx(t *testing.T, to string, amount int64, blockHeight int32) *txcodec.Tx {
	script, err := addr.ScriptPubKey(to, addr.MainNetParams)
	require.NoError(t, err)

	tx := txcodec.New()
	tx.AddOutput(amount, script, addr.MainNetParams)
	tx.BlockHeight = blockHeight
	tx.Timestamp = time.Now()

	// give it a distinguishing hash without needing a real signature —
	// tests only exercise the log, not signature validity.
	tx.Hash[0] = byte(amount)
	tx.Hash[1] = byte(blockHeight)
	tx.Inputs = append(tx.Inputs, &txcodec.Input{Signature: []byte{0x01}})
	return tx
}

func TestRegisterUpdatesBalance(t *testing.T) {
	ext, internal := newChains(t)
	l := New(ext, internal, txcodec.TxFeePerKB)

	addrs, err := ext.UnusedAddrs(1, addrchain.GapLimitExternal)
	require.NoError(t, err)

	tx := coinbaseLikeTx(t, addrs[0], 50000, 100)
	accepted, added := l.Register(tx)
	require.True(t, accepted)
	require.True(t, added)
	require.Equal(t, uint64(50000), l.Balance())
	require.Len(t, l.UTXOs(), 1)

	accepted, added = l.Register(tx)
	require.True(t, accepted)
	require.False(t, added, "re-registering a known tx must not report a change")
}

func TestRegisterRejectsForeignTx(t *testing.T) {
	ext, internal := newChains(t)
	l := New(ext, internal, txcodec.TxFeePerKB)

	otherExt, otherInternal := newChains(t)
	otherAddrs, err := otherExt.UnusedAddrs(1, addrchain.GapLimitExternal)
	require.NoError(t, err)
	_ = otherInternal

	tx := coinbaseLikeTx(t, otherAddrs[0], 1000, 50)
	accepted, added := l.Register(tx)
	require.False(t, accepted)
	require.False(t, added)
	require.Equal(t, uint64(0), l.Balance())
}

func TestRemoveCascadesToDependents(t *testing.T) {
	ext, internal := newChains(t)
	l := New(ext, internal, txcodec.TxFeePerKB)

	addrs, err := ext.UnusedAddrs(2, addrchain.GapLimitExternal)
	require.NoError(t, err)

	parent := coinbaseLikeTx(t, addrs[0], 20000, 10)
	_, added := l.Register(parent)
	require.True(t, added)

	child := txcodec.New()
	childScript, err := addr.ScriptPubKey(addrs[1], addr.MainNetParams)
	require.NoError(t, err)
	child.AddOutput(19000, childScript, addr.MainNetParams)
	child.Inputs = append(child.Inputs, &txcodec.Input{
		PrevHash: parent.Hash, PrevIndex: 0, Signature: []byte{0x01},
	})
	child.Hash[0] = 0xEE
	child.BlockHeight = txcodec.TxUnconfirmed
	_, added = l.Register(child)
	require.True(t, added)

	removed := l.Remove(parent.Hash)

	_, stillHasParent := l.TransactionForHash(parent.Hash)
	_, stillHasChild := l.TransactionForHash(child.Hash)
	require.False(t, stillHasParent)
	require.False(t, stillHasChild)

	require.Len(t, removed, 2, "cascade should report the dependent and the parent")
	require.Equal(t, child.Hash, removed[0].Hash, "dependents are reported before the tx that pulled them")
	require.Equal(t, parent.Hash, removed[1].Hash)
}

func TestBalanceAfterTxReflectsHistory(t *testing.T) {
	ext, internal := newChains(t)
	l := New(ext, internal, txcodec.TxFeePerKB)

	addrs, err := ext.UnusedAddrs(2, addrchain.GapLimitExternal)
	require.NoError(t, err)

	tx1 := coinbaseLikeTx(t, addrs[0], 10000, 5)
	tx2 := coinbaseLikeTx(t, addrs[1], 5000, 6)

	_, added1 := l.Register(tx1)
	_, added2 := l.Register(tx2)
	require.True(t, added1)
	require.True(t, added2)

	require.Equal(t, uint64(10000), l.BalanceAfterTx(tx1))
	require.Equal(t, uint64(15000), l.BalanceAfterTx(tx2))
}
