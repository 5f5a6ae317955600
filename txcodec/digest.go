// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txcodec

import (
	"bytes"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// digestData returns the bytes that must be double-SHA256'd to produce the
// signature pre-image for input index under hashType, or — when index is
// SentinelIndex — the bytes of the fully serialized transaction. It
// dispatches to the witness form when SigHashForkID is set in hashType.
//
// This mirrors _BWTransactionData / _BWTransactionWitnessData exactly,
// including the in-memory serialization extension used for unsigned inputs
// (see Tx doc comment) and the documented gap: OP_CODESEPARATOR is not
// special-cased, so scriptCode is always the whole prevout script.
func (tx *Tx) digestData(index int, hashType uint32) []byte {
	if hashType&SigHashForkID != 0 {
		return tx.witnessDigestData(index, hashType)
	}

	anyoneCanPay := hashType&SigHashAnyoneCanPay != 0
	sigHash := hashType & 0x1f

	if anyoneCanPay && index >= len(tx.Inputs) {
		return nil
	}

	buf := new(bytes.Buffer)
	writeUint32LE(buf, uint32(tx.Version))

	if !anyoneCanPay {
		writeVarInt(buf, uint64(len(tx.Inputs)))

		for i, original := range tx.Inputs {
			local := *original

			switch {
			case index == i:
				local.Signature = original.Script
				local.Amount = 0
			case index == SentinelIndex && len(original.Signature) == 0:
				local.Signature = original.Script
			case index != SentinelIndex:
				local.Signature = nil
				if sigHash == SigHashNone || sigHash == SigHashSingle {
					local.Sequence = 0
				}
				local.Amount = 0
			default:
				local.Amount = 0
			}

			writeInputData(buf, &local)
		}
	} else {
		writeVarInt(buf, 1)
		local := *tx.Inputs[index]
		local.Signature = local.Script
		local.Amount = 0
		writeInputData(buf, &local)
	}

	switch {
	case sigHash != SigHashSingle && sigHash != SigHashNone:
		writeVarInt(buf, uint64(len(tx.Outputs)))
		writeAllOutputs(buf, tx)
	case sigHash == SigHashSingle && index < len(tx.Outputs):
		writeVarInt(buf, uint64(index+1))
		for i := 0; i < index; i++ {
			writeUint64LE(buf, uint64(0xFFFFFFFFFFFFFFFF)) // amount = -1
			writeVarInt(buf, 0)
		}
		writeOutput(buf, tx.Outputs[index])
	default:
		writeVarInt(buf, 0)
	}

	writeUint32LE(buf, tx.LockTime)
	if index != SentinelIndex {
		writeUint32LE(buf, hashType)
	}

	return buf.Bytes()
}

// witnessDigestData implements the BIP143-style witness pre-image:
// version ‖ hashPrevouts ‖ hashSequence ‖ outpoint ‖ scriptCode ‖ amount ‖
// nSequence ‖ hashOutputs ‖ locktime ‖ hashType.
func (tx *Tx) witnessDigestData(index int, hashType uint32) []byte {
	if index < 0 || index >= len(tx.Inputs) {
		return nil
	}

	anyoneCanPay := hashType&SigHashAnyoneCanPay != 0
	sigHash := hashType & 0x1f
	var zero chainhash.Hash

	buf := new(bytes.Buffer)
	writeUint32LE(buf, uint32(tx.Version))

	if !anyoneCanPay {
		inner := new(bytes.Buffer)
		for _, in := range tx.Inputs {
			inner.Write(in.PrevHash[:])
			writeUint32LE(inner, in.PrevIndex)
		}
		h := chainhash.DoubleHashH(inner.Bytes())
		buf.Write(h[:])
	} else {
		buf.Write(zero[:])
	}

	if !anyoneCanPay && sigHash != SigHashSingle && sigHash != SigHashNone {
		inner := new(bytes.Buffer)
		for _, in := range tx.Inputs {
			writeUint32LE(inner, in.Sequence)
		}
		h := chainhash.DoubleHashH(inner.Bytes())
		buf.Write(h[:])
	} else {
		buf.Write(zero[:])
	}

	// The amount is always written here, even when zero, unlike
	// writeInputData. scriptCode is the whole prevout script;
	// OP_CODESEPARATOR is not handled.
	in := tx.Inputs[index]
	buf.Write(in.PrevHash[:])
	writeUint32LE(buf, in.PrevIndex)
	writeVarInt(buf, uint64(len(in.Script)))
	buf.Write(in.Script)
	writeUint64LE(buf, uint64(in.Amount))
	writeUint32LE(buf, in.Sequence)

	switch {
	case sigHash != SigHashSingle && sigHash != SigHashNone:
		outBuf := new(bytes.Buffer)
		writeAllOutputs(outBuf, tx)
		h := chainhash.DoubleHashH(outBuf.Bytes())
		buf.Write(h[:])
	case sigHash == SigHashSingle && index < len(tx.Outputs):
		outBuf := new(bytes.Buffer)
		writeOutput(outBuf, tx.Outputs[index])
		h := chainhash.DoubleHashH(outBuf.Bytes())
		buf.Write(h[:])
	default:
		buf.Write(zero[:])
	}

	writeUint32LE(buf, tx.LockTime)
	writeUint32LE(buf, hashType)

	return buf.Bytes()
}

// SigHash returns the double-SHA256 digest to sign for input index under
// hashType — the value a signer feeds to ECDSA, for either the legacy or
// the witness pre-image form depending on hashType's SigHashForkID bit.
func (tx *Tx) SigHash(index int, hashType uint32) chainhash.Hash {
	return chainhash.DoubleHashH(tx.digestData(index, hashType))
}
