// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package addr maps between Base58Check address strings, scriptPubKey /
// scriptSig byte templates, and 160-bit key hashes. It implements only the
// small fixed set of script opcodes this core needs to recognize; general
// script execution is out of scope.
package addr

import (
	"crypto/sha256"
	"errors"

	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/ripemd160"
)

// Opcodes used by this core. Anything else encountered while tokenizing a
// script is treated as opaque and causes recognition to fail, never a panic.
const (
	OP_0           = 0x00
	OP_PUSHDATA1   = 0x4c
	OP_PUSHDATA2   = 0x4d
	OP_PUSHDATA4   = 0x4e
	OP_1NEGATE     = 0x4f
	OP_1           = 0x51
	OP_16          = 0x60
	OP_DUP         = 0x76
	OP_EQUAL       = 0x87
	OP_EQUALVERIFY = 0x88
	OP_HASH160     = 0xa9
	OP_CHECKSIG    = 0xac
)

// Params carries the Base58Check version bytes for one network. Unlike
// mainline Bitcoin, this core's target chain uses 48/50 on mainnet.
type Params struct {
	PubKeyHashAddrID byte
	ScriptHashAddrID byte
}

// MainNetParams and TestNetParams are the two networks named in the spec's
// external interfaces section.
var (
	MainNetParams = Params{PubKeyHashAddrID: 48, ScriptHashAddrID: 50}
	TestNetParams = Params{PubKeyHashAddrID: 111, ScriptHashAddrID: 58}
)

var (
	// ErrInvalidAddress is returned when an address string fails
	// Base58Check decoding or does not belong to a known version byte.
	ErrInvalidAddress = errors.New("addr: invalid address")

	// ErrUnrecognizedScript is returned when a script does not match one
	// of the templates this core understands (P2PKH or P2SH/P2PK).
	ErrUnrecognizedScript = errors.New("addr: unrecognized script")
)

// Hash160 returns ripemd160(sha256(b)), the key/script hash used throughout
// the address layer. Cryptographic primitives are otherwise out of scope
// per the spec, but this one is needed to glue scripts to addresses.
func Hash160(b []byte) []byte {
	sum := sha256.Sum256(b)
	h := ripemd160.New()
	h.Write(sum[:])
	return h.Sum(nil)
}

// token is one opcode byte or one push of data, in script order. Multi-byte
// opcodes (push operators) are represented by their pushed data, not by the
// operator byte, mirroring BWScriptElements in the original source.
func tokenize(script []byte) ([][]byte, bool) {
	var toks [][]byte
	i := 0

	for i < len(script) {
		op := script[i]
		switch {
		case op >= 1 && op <= 0x4b:
			if i+1+int(op) > len(script) {
				return nil, false
			}
			toks = append(toks, script[i+1:i+1+int(op)])
			i += 1 + int(op)
		case op == OP_PUSHDATA1:
			if i+2 > len(script) {
				return nil, false
			}
			n := int(script[i+1])
			if i+2+n > len(script) {
				return nil, false
			}
			toks = append(toks, script[i+2:i+2+n])
			i += 2 + n
		case op == OP_PUSHDATA2:
			if i+3 > len(script) {
				return nil, false
			}
			n := int(script[i+1]) | int(script[i+2])<<8
			if i+3+n > len(script) {
				return nil, false
			}
			toks = append(toks, script[i+3:i+3+n])
			i += 3 + n
		case op == OP_PUSHDATA4:
			if i+5 > len(script) {
				return nil, false
			}
			n := int(script[i+1]) | int(script[i+2])<<8 | int(script[i+3])<<16 | int(script[i+4])<<24
			if i+5+n > len(script) {
				return nil, false
			}
			toks = append(toks, script[i+5:i+5+n])
			i += 5 + n
		default:
			toks = append(toks, script[i:i+1])
			i++
		}
	}

	return toks, true
}

// isOp reports whether token t is the single opcode byte op (as opposed to
// a data push that happens to be one byte long).
func isOp(t []byte, op byte) bool {
	return len(t) == 1 && t[0] == op
}

// ScriptPubKey returns the scriptPubKey bytes for address, P2PKH or P2SH
// depending on which version byte it decodes to.
func ScriptPubKey(address string, params Params) ([]byte, error) {
	hash, version, err := decode(address)
	if err != nil {
		return nil, err
	}

	switch version {
	case params.PubKeyHashAddrID:
		script := make([]byte, 0, 25)
		script = append(script, OP_DUP, OP_HASH160, byte(len(hash)))
		script = append(script, hash...)
		script = append(script, OP_EQUALVERIFY, OP_CHECKSIG)
		return script, nil
	case params.ScriptHashAddrID:
		script := make([]byte, 0, 23)
		script = append(script, OP_HASH160, byte(len(hash)))
		script = append(script, hash...)
		script = append(script, OP_EQUAL)
		return script, nil
	default:
		return nil, ErrInvalidAddress
	}
}

// FromScriptPubKey recognizes a P2PKH or P2SH scriptPubKey and returns its
// address. ok is false for any other script shape (including P2PK, which
// has no address form distinct from its pubkey in this core).
func FromScriptPubKey(script []byte, params Params) (address string, ok bool) {
	toks, valid := tokenize(script)
	if !valid {
		return "", false
	}

	if len(toks) == 5 && isOp(toks[0], OP_DUP) && isOp(toks[1], OP_HASH160) &&
		len(toks[2]) == 20 && isOp(toks[3], OP_EQUALVERIFY) && isOp(toks[4], OP_CHECKSIG) {
		return Encode(toks[2], params.PubKeyHashAddrID), true
	}

	if len(toks) == 3 && isOp(toks[0], OP_HASH160) && len(toks[1]) == 20 && isOp(toks[2], OP_EQUAL) {
		return Encode(toks[1], params.ScriptHashAddrID), true
	}

	return "", false
}

// FromScriptSig derives the spending address from a scriptSig, for inputs
// whose prevout script wasn't known when the input was parsed. It handles
// the two sigScript shapes this core produces: push(sig) push(pubkey) for
// P2PKH, and push(sig) alone for P2PK (which has no address form, so ok is
// false in that case — matching _BWWalletContainsTx's prevout-address-only
// view of the world).
func FromScriptSig(sigScript []byte, params Params) (address string, ok bool) {
	toks, valid := tokenize(sigScript)
	if !valid || len(toks) != 2 {
		return "", false
	}

	pubKey := toks[1]
	if len(pubKey) != 33 && len(pubKey) != 65 {
		return "", false
	}

	return Encode(Hash160(pubKey), params.PubKeyHashAddrID), true
}

// IsPubKeyHashScript reports whether script is a P2PKH template — used by
// the signer to choose the pay-to-pubkey-hash signature form over pay-to-
// pubkey, the same test BWTransactionSign makes on elemsCount-2.
func IsPubKeyHashScript(script []byte) bool {
	toks, valid := tokenize(script)
	return valid && len(toks) >= 2 && isOp(toks[len(toks)-2], OP_EQUALVERIFY)
}

// Encode Base58Check-encodes a 160-bit hash under the given version byte.
func Encode(hash160 []byte, version byte) string {
	return base58.CheckEncode(hash160, version)
}

func decode(address string) (hash []byte, version byte, err error) {
	hash, version, err = base58.CheckDecode(address)
	if err != nil {
		return nil, 0, ErrInvalidAddress
	}
	if len(hash) != 20 {
		return nil, 0, ErrInvalidAddress
	}
	return hash, version, nil
}

// Decode recovers the 160-bit hash encoded in address, for callers that
// need the raw hash rather than a scriptPubKey — the Bloom filter item
// builder is the main one, since a filter matches the hash160 pushed
// inside a pubkey script, not the address string.
func Decode(address string) (hash160 []byte, err error) {
	hash, _, err := decode(address)
	return hash, err
}

// IsValid reports whether address is a well-formed Base58Check address
// under one of params' two version bytes.
func IsValid(address string, params Params) bool {
	_, version, err := decode(address)
	return err == nil && (version == params.PubKeyHashAddrID || version == params.ScriptHashAddrID)
}
