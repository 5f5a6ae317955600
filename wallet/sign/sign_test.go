// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sign

import (
	"crypto/rand"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/bwspv/addr"
	"github.com/btcsuite/bwspv/txcodec"
	"github.com/stretchr/testify/require"
)

func randomHash(t *testing.T) chainhash.Hash {
	var h chainhash.Hash
	_, err := rand.Read(h[:])
	require.NoError(t, err)
	return h
}

func TestSignTxWithChainDerivedKey(t *testing.T) {
	seed, err := hdkeychain.GenerateSeed(hdkeychain.RecommendedSeedLen)
	require.NoError(t, err)

	kc, err := NewKeyChain(seed, addr.MainNetParams, false)
	require.NoError(t, err)

	addrs, err := kc.External().UnusedAddrs(1, 10)
	require.NoError(t, err)
	fromAddr := addrs[0]

	prevoutScript, err := addr.ScriptPubKey(fromAddr, addr.MainNetParams)
	require.NoError(t, err)

	tx := txcodec.New()
	tx.AddInput(randomHash(t), 0, 50000, prevoutScript, nil, txcodec.TxInSequence, addr.MainNetParams)
	tx.AddOutput(10000, prevoutScript, addr.MainNetParams)

	require.True(t, SignTx(tx, 0, kc))
	require.True(t, tx.IsSigned())
}

func TestSignTxFailsForUnknownAddress(t *testing.T) {
	seed, err := hdkeychain.GenerateSeed(hdkeychain.RecommendedSeedLen)
	require.NoError(t, err)
	kc, err := NewKeyChain(seed, addr.MainNetParams, false)
	require.NoError(t, err)

	otherSeed, err := hdkeychain.GenerateSeed(hdkeychain.RecommendedSeedLen)
	require.NoError(t, err)
	other, err := NewKeyChain(otherSeed, addr.MainNetParams, false)
	require.NoError(t, err)

	addrs, err := other.External().UnusedAddrs(1, 10)
	require.NoError(t, err)
	prevoutScript, err := addr.ScriptPubKey(addrs[0], addr.MainNetParams)
	require.NoError(t, err)

	tx := txcodec.New()
	tx.AddInput(randomHash(t), 0, 1000, prevoutScript, nil, txcodec.TxInSequence, addr.MainNetParams)
	tx.AddOutput(500, prevoutScript, addr.MainNetParams)

	require.False(t, SignTx(tx, 0, kc))
	require.False(t, tx.IsSigned())
}
