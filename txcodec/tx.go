// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txcodec implements bit-exact transaction serialization in the two
// protocol variants this core supports — legacy and a BIP143-style witness
// digest — along with the address-aware parser that tells signed inputs
// apart from unsigned ones. It deliberately does not depend on txscript:
// digest construction is one of the three hard subsystems this core must
// get right itself.
package txcodec

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/bwspv/addr"
)

// Input is a reference to a previous Output, along with whatever this core
// currently knows about it: its prevout script (when available), a
// signature (scriptSig, nil when unsigned), the derived spending address,
// and an amount that is 0 when unknown.
type Input struct {
	PrevHash  chainhash.Hash
	PrevIndex uint32
	Amount    int64
	Script    []byte // scriptPubKey of the prevout, when known
	Signature []byte // scriptSig; nil when the input is unsigned
	Sequence  uint32
	Address   string
}

// setScript records the prevout scriptPubKey and derives Address from it,
// mirroring BWTxInputSetScript.
func (in *Input) setScript(script []byte, params addr.Params) {
	in.Script = script
	in.Address = ""
	if script == nil {
		return
	}
	if a, ok := addr.FromScriptPubKey(script, params); ok {
		in.Address = a
	}
}

// setSignature records scriptSig and, if the address wasn't already known
// from the prevout script, derives it from the signature script — mirroring
// BWTxInputSetSignature's fallback path.
func (in *Input) setSignature(sig []byte, params addr.Params) {
	in.Signature = sig
	if sig != nil && in.Address == "" {
		if a, ok := addr.FromScriptSig(sig, params); ok {
			in.Address = a
		}
	}
}

// Output is an amount paid to a script, with its derived address (empty if
// the script isn't one of the recognized templates).
type Output struct {
	Amount  int64
	Script  []byte
	Address string
}

func (out *Output) setScript(script []byte, params addr.Params) {
	out.Script = script
	out.Address = ""
	if script == nil {
		return
	}
	if a, ok := addr.FromScriptPubKey(script, params); ok {
		out.Address = a
	}
}

// Tx is a version, an ordered list of Inputs, an ordered list of Outputs, a
// lockTime, and the three non-serialized fields identity depends on: Hash,
// BlockHeight, and Timestamp. Identity is Hash; two Txs are equal iff their
// hashes match. Hash is valid iff the Tx IsSigned, and is (re)computed only
// on a successful transition to signed — never read it before checking
// IsSigned.
type Tx struct {
	Version  int32
	Inputs   []*Input
	Outputs  []*Output
	LockTime uint32

	Hash        chainhash.Hash
	BlockHeight int32
	Timestamp   time.Time
}

// New returns an empty, unconfirmed transaction with the normative default
// version and lockTime.
func New() *Tx {
	return &Tx{
		Version:     TxVersion,
		LockTime:    TxLockTime,
		BlockHeight: TxUnconfirmed,
	}
}

// AddInput appends an input referencing (prevHash, prevIndex). script is the
// prevout's scriptPubKey if known; signature is the scriptSig if the input
// is already signed.
func (tx *Tx) AddInput(prevHash chainhash.Hash, prevIndex uint32, amount int64, script, signature []byte,
	sequence uint32, params addr.Params) *Input {

	in := &Input{PrevHash: prevHash, PrevIndex: prevIndex, Amount: amount, Sequence: sequence}
	if script != nil {
		in.setScript(script, params)
	}
	if signature != nil {
		in.setSignature(signature, params)
	}
	tx.Inputs = append(tx.Inputs, in)
	return in
}

// AddOutput appends an output paying amount to script.
func (tx *Tx) AddOutput(amount int64, script []byte, params addr.Params) *Output {
	out := &Output{Amount: amount}
	out.setScript(script, params)
	tx.Outputs = append(tx.Outputs, out)
	return out
}

// Copy returns a full structural clone of tx, independent of the original —
// the Go analogue of BWTransactionCopy. Identity (Hash) is copied too; the
// clone is not re-hashed until it is mutated and re-signed.
func (tx *Tx) Copy() *Tx {
	cpy := &Tx{
		Version:     tx.Version,
		LockTime:    tx.LockTime,
		Hash:        tx.Hash,
		BlockHeight: tx.BlockHeight,
		Timestamp:   tx.Timestamp,
	}

	cpy.Inputs = make([]*Input, len(tx.Inputs))
	for i, in := range tx.Inputs {
		c := *in
		c.Script = append([]byte(nil), in.Script...)
		c.Signature = append([]byte(nil), in.Signature...)
		cpy.Inputs[i] = &c
	}

	cpy.Outputs = make([]*Output, len(tx.Outputs))
	for i, out := range tx.Outputs {
		c := *out
		c.Script = append([]byte(nil), out.Script...)
		cpy.Outputs[i] = &c
	}

	return cpy
}

// IsSigned reports whether every input carries a non-empty signature. It
// does not verify any signature, only checks presence.
func (tx *Tx) IsSigned() bool {
	for _, in := range tx.Inputs {
		if len(in.Signature) == 0 {
			return false
		}
	}
	return true
}

// Eq compares transactions by Hash, their identity per the data model.
func (tx *Tx) Eq(other *Tx) bool {
	if tx == nil || other == nil {
		return tx == other
	}
	return tx.Hash == other.Hash
}
