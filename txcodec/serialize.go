// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txcodec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/bwspv/addr"
)

// ErrTruncated is returned by Parse when buf doesn't contain a complete
// transaction.
var ErrTruncated = errors.New("txcodec: truncated transaction")

// Serialize returns the legacy-form bytes of tx: the same bytes that, once
// hashed, give Hash for a fully signed tx. BlockHeight and Timestamp are not
// serialized.
func (tx *Tx) Serialize() []byte {
	return tx.digestData(SentinelIndex, SigHashAll)
}

// SerializeSize returns len(tx.Serialize()) without actually building it —
// signed inputs cost their real scriptSig size, unsigned ones are charged
// the fixed TxInputSize estimate (compact-pubkey-sig assumption).
func (tx *Tx) SerializeSize() int {
	size := 8 + varIntSize(uint64(len(tx.Inputs))) + varIntSize(uint64(len(tx.Outputs)))

	for _, in := range tx.Inputs {
		if in.Signature != nil {
			// Serialize writes no amount for a signed input.
			local := *in
			local.Amount = 0
			size += inputDataSize(&local)
		} else {
			size += TxInputSize
		}
	}

	for _, out := range tx.Outputs {
		size += 8 + varIntSize(uint64(len(out.Script))) + len(out.Script)
	}

	return size
}

// StandardFee is the minimum fee needed for tx to relay, based purely on
// its size rounded up to the next whole kilobyte.
func (tx *Tx) StandardFee() int64 {
	size := tx.SerializeSize()
	return int64((size+999)/1000) * TxFeePerKB
}

// Parse decodes a legacy-form serialized transaction. The parser
// distinguishes signed from unsigned inputs: if the bytes following an
// input's outpoint parse as a recognized scriptPubKey, they're treated as
// an unsigned input's prevout script (with a trailing 8-byte amount, an
// in-memory-only extension — never the wire format); otherwise they're
// treated as a signed input's scriptSig. Hash is computed iff every input
// ends up signed.
func Parse(buf []byte, params addr.Params) (*Tx, error) {
	tx := New()
	r := bytes.NewReader(buf)
	isSigned := true

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, ErrTruncated
	}
	tx.Version = int32(version)

	inCount, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, ErrTruncated
	}

	for i := uint64(0); i < inCount; i++ {
		in := &Input{}

		var hashBytes [32]byte
		if _, err := io.ReadFull(r, hashBytes[:]); err != nil {
			return nil, ErrTruncated
		}
		in.PrevHash = chainhash.Hash(hashBytes)

		if err := binary.Read(r, binary.LittleEndian, &in.PrevIndex); err != nil {
			return nil, ErrTruncated
		}

		sLen, err := wire.ReadVarInt(r, 0)
		if err != nil {
			return nil, ErrTruncated
		}

		script := make([]byte, sLen)
		if _, err := io.ReadFull(r, script); err != nil {
			return nil, ErrTruncated
		}

		if _, ok := addr.FromScriptPubKey(script, params); ok {
			in.setScript(script, params)
			var amount uint64
			if err := binary.Read(r, binary.LittleEndian, &amount); err != nil {
				return nil, ErrTruncated
			}
			in.Amount = int64(amount)
			isSigned = false
		} else {
			in.setSignature(script, params)
		}

		if err := binary.Read(r, binary.LittleEndian, &in.Sequence); err != nil {
			return nil, ErrTruncated
		}

		tx.Inputs = append(tx.Inputs, in)
	}

	outCount, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, ErrTruncated
	}

	for i := uint64(0); i < outCount; i++ {
		out := &Output{}

		var amount uint64
		if err := binary.Read(r, binary.LittleEndian, &amount); err != nil {
			return nil, ErrTruncated
		}
		out.Amount = int64(amount)

		sLen, err := wire.ReadVarInt(r, 0)
		if err != nil {
			return nil, ErrTruncated
		}

		script := make([]byte, sLen)
		if _, err := io.ReadFull(r, script); err != nil {
			return nil, ErrTruncated
		}
		out.setScript(script, params)

		tx.Outputs = append(tx.Outputs, out)
	}

	var lockTime uint32
	if err := binary.Read(r, binary.LittleEndian, &lockTime); err != nil {
		return nil, ErrTruncated
	}
	tx.LockTime = lockTime

	if inCount == 0 {
		return nil, ErrTruncated
	}

	if isSigned {
		tx.Hash = chainhash.DoubleHashH(buf[:len(buf)-r.Len()])
	}

	return tx, nil
}
