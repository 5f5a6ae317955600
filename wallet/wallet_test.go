// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/bwspv/addr"
	"github.com/btcsuite/bwspv/txcodec"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, notify Notifications) *Engine {
	seed, err := hdkeychain.GenerateSeed(hdkeychain.RecommendedSeedLen)
	require.NoError(t, err)

	e, err := New(seed, addr.MainNetParams, false, 0, notify)
	require.NoError(t, err)
	return e
}

func newFundingTx(t *testing.T, script []byte, amount int64) *txcodec.Tx {
	tx := txcodec.New()
	tx.AddOutput(amount, script, addr.MainNetParams)
	tx.BlockHeight = 100
	tx.Timestamp = time.Now()
	tx.Hash[0] = byte(amount)
	tx.Inputs = append(tx.Inputs, &txcodec.Input{Signature: []byte{0x01}})
	return tx
}

func TestNewEngineHasReceiveAddress(t *testing.T) {
	e := newEngine(t, Notifications{})

	recvAddr, err := e.ReceiveAddress()
	require.NoError(t, err)
	require.True(t, e.ContainsAddress(recvAddr))
	require.Zero(t, e.Balance())
}

func TestRegisterTransactionUpdatesBalance(t *testing.T) {
	var notified uint64
	e := newEngine(t, Notifications{
		BalanceChanged: func(b uint64) { notified = b },
	})

	recvAddr, err := e.ReceiveAddress()
	require.NoError(t, err)
	script, err := addr.ScriptPubKey(recvAddr, addr.MainNetParams)
	require.NoError(t, err)

	tx := newFundingTx(t, script, 75000)
	require.True(t, e.RegisterTransaction(tx))
	require.Equal(t, uint64(75000), e.Balance())
	require.Equal(t, uint64(75000), notified)
}

func TestCreateAndSignTransaction(t *testing.T) {
	e := newEngine(t, Notifications{})

	recvAddr, err := e.ReceiveAddress()
	require.NoError(t, err)
	script, err := addr.ScriptPubKey(recvAddr, addr.MainNetParams)
	require.NoError(t, err)

	funding := newFundingTx(t, script, 100000)
	require.True(t, e.RegisterTransaction(funding))

	payTo, err := e.ReceiveAddress()
	require.NoError(t, err)

	tx, err := e.CreateTransaction(40000, payTo)
	require.NoError(t, err)
	require.NotEmpty(t, tx.Inputs)

	require.True(t, e.SignTransaction(tx))
	require.True(t, tx.IsSigned())
}

func TestWatchOnlyEngineCannotSign(t *testing.T) {
	seed, err := hdkeychain.GenerateSeed(hdkeychain.RecommendedSeedLen)
	require.NoError(t, err)
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	require.NoError(t, err)

	externalPriv, err := master.Derive(0)
	require.NoError(t, err)
	internalPriv, err := master.Derive(1)
	require.NoError(t, err)

	externalPub, err := externalPriv.Neuter()
	require.NoError(t, err)
	internalPub, err := internalPriv.Neuter()
	require.NoError(t, err)

	e := NewWatchOnly(externalPub, internalPub, addr.MainNetParams, Notifications{})

	tx := newFundingTx(t, []byte{0x76, 0xa9, 0x14}, 1000)
	require.False(t, e.SignTransaction(tx))
}
