// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txcodec

import (
	"github.com/btcsuite/btclog"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/bwspv/addr"
)

var log = btclog.Disabled

// UseLogger sets the logger this package reports through.
func UseLogger(logger btclog.Logger) { log = logger }

// Signer resolves a spending private key for a prevout address. The wallet
// package supplies the real implementation backed by its address chains;
// tests can supply a map.
type Signer interface {
	PrivateKeyForAddress(address string) (*btcec.PrivateKey, bool)
}

// Sign signs every input of tx whose prevout script matches a key the
// Signer can produce, using forkId|SigHashAll as the hash type (forkId is 0
// for this chain's default variant, nonzero for fork-id signature
// variants). A pay-to-pubkey-hash prevout gets push(sig) push(pubkey); any
// other prevout whose address the Signer resolves gets push(sig) alone.
// Prevouts with no address form, pay-to-pubkey among them, are skipped and
// stay unsigned. It recomputes tx.Hash once every input is signed and
// reports whether every input ended up signed.
func Sign(tx *Tx, forkID byte, signer Signer, params addr.Params) bool {
	for i, in := range tx.Inputs {
		if len(in.Script) == 0 {
			continue
		}

		address, ok := addr.FromScriptPubKey(in.Script, params)
		if !ok {
			continue
		}

		key, ok := signer.PrivateKeyForAddress(address)
		if !ok {
			continue
		}

		hashType := uint32(forkID) | SigHashAll
		digest := tx.SigHash(i, hashType)
		sig := ecdsa.Sign(key, digest[:])
		sigBytes := append(sig.Serialize(), byte(hashType))

		pubKey := key.PubKey().SerializeCompressed()

		var script []byte
		if addr.IsPubKeyHashScript(in.Script) {
			script = pushData(pushData(nil, sigBytes), pubKey)
		} else {
			script = pushData(nil, sigBytes)
		}

		in.setSignature(script, params)
	}

	if tx.IsSigned() {
		tx.Hash = chainhash.DoubleHashH(tx.digestData(SentinelIndex, 0))
		return true
	}
	log.Debugf("tx missing a key for at least one input, leaving it unsigned")
	return false
}

// pushData appends a minimal-push-opcode-prefixed data element to script.
func pushData(script, data []byte) []byte {
	n := len(data)
	switch {
	case n < addr.OP_PUSHDATA1:
		script = append(script, byte(n))
	case n <= 0xff:
		script = append(script, addr.OP_PUSHDATA1, byte(n))
	case n <= 0xffff:
		script = append(script, addr.OP_PUSHDATA2, byte(n), byte(n>>8))
	default:
		script = append(script, addr.OP_PUSHDATA4, byte(n), byte(n>>8), byte(n>>16), byte(n>>24))
	}
	return append(script, data...)
}
