// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txcodec

import (
	"crypto/rand"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/bwspv/addr"
	"github.com/stretchr/testify/require"
)

type mapSigner map[string]*btcec.PrivateKey

func (m mapSigner) PrivateKeyForAddress(address string) (*btcec.PrivateKey, bool) {
	k, ok := m[address]
	return k, ok
}

func randomHash(t *testing.T) chainhash.Hash {
	var h chainhash.Hash
	_, err := rand.Read(h[:])
	require.NoError(t, err)
	return h
}

// TestRoundTrip is the concrete scenario from the testable-properties
// section: one P2PKH input, one output, sign, serialize, reparse, and
// check every field survives byte-identical.
func TestRoundTrip(t *testing.T) {
	params := addr.MainNetParams

	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pubKeyHash := addr.Hash160(key.PubKey().SerializeCompressed())
	fromAddr := addr.Encode(pubKeyHash, params.PubKeyHashAddrID)

	toHash := make([]byte, 20)
	toHash[0] = 0xAB
	toAddr := addr.Encode(toHash, params.PubKeyHashAddrID)

	prevoutScript, err := addr.ScriptPubKey(fromAddr, params)
	require.NoError(t, err)

	tx := New()
	tx.AddInput(randomHash(t), 0, 200000, prevoutScript, nil, TxInSequence, params)

	outScript, err := addr.ScriptPubKey(toAddr, params)
	require.NoError(t, err)
	tx.AddOutput(100000, outScript, params)

	signer := mapSigner{fromAddr: key}
	require.True(t, Sign(tx, 0, signer, params))
	require.True(t, tx.IsSigned())

	serialized := tx.Serialize()
	wantHash := chainhash.DoubleHashH(serialized)
	require.Equal(t, wantHash, tx.Hash)

	parsed, err := Parse(serialized, params)
	require.NoError(t, err)
	require.Equal(t, tx.Hash, parsed.Hash)
	require.Len(t, parsed.Inputs, 1)
	require.Len(t, parsed.Outputs, 1)
	require.EqualValues(t, TxLockTime, parsed.LockTime)
	require.EqualValues(t, TxVersion, parsed.Version)
	require.Equal(t, tx.Inputs[0].Signature, parsed.Inputs[0].Signature)
	require.Equal(t, int64(100000), parsed.Outputs[0].Amount)

	reserialized := parsed.Serialize()
	require.Equal(t, serialized, reserialized)
}

func TestSerializeSizeMatchesActual(t *testing.T) {
	params := addr.MainNetParams
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pubKeyHash := addr.Hash160(key.PubKey().SerializeCompressed())
	fromAddr := addr.Encode(pubKeyHash, params.PubKeyHashAddrID)
	prevoutScript, err := addr.ScriptPubKey(fromAddr, params)
	require.NoError(t, err)

	tx := New()
	tx.AddInput(randomHash(t), 0, 50000, prevoutScript, nil, TxInSequence, params)
	tx.AddOutput(10000, prevoutScript, params)

	signer := mapSigner{fromAddr: key}
	require.True(t, Sign(tx, 0, signer, params))

	require.Equal(t, len(tx.Serialize()), tx.SerializeSize())
}

func TestParseUnsignedInputRoundTrip(t *testing.T) {
	params := addr.MainNetParams
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pubKeyHash := addr.Hash160(key.PubKey().SerializeCompressed())
	fromAddr := addr.Encode(pubKeyHash, params.PubKeyHashAddrID)
	prevoutScript, err := addr.ScriptPubKey(fromAddr, params)
	require.NoError(t, err)

	tx := New()
	tx.AddInput(randomHash(t), 0, 12345, prevoutScript, nil, TxInSequence, params)
	tx.AddOutput(100, prevoutScript, params)

	// unsigned tx serialization uses the in-memory hand-off extension
	buf := tx.digestData(SentinelIndex, SigHashAll)
	parsed, err := Parse(buf, params)
	require.NoError(t, err)
	require.False(t, parsed.IsSigned())
	require.Equal(t, int64(12345), parsed.Inputs[0].Amount)
	require.Equal(t, fromAddr, parsed.Inputs[0].Address)
}
