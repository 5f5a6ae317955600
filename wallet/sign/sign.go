// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package sign resolves the wallet's address-chain indices down to
// concrete private keys and drives txcodec.Sign, wiping every derived key
// the moment it is no longer needed.
package sign

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/bwspv/addr"
	"github.com/btcsuite/bwspv/internal/zero"
	"github.com/btcsuite/bwspv/txcodec"
	"github.com/btcsuite/bwspv/wallet/addrchain"
)

// ErrNoKeyForAddress is returned when the resolver doesn't recognize an
// input's spending address.
var ErrNoKeyForAddress = errors.New("sign: no key for address")

var (
	mainNetHD = &chaincfg.Params{
		HDPrivateKeyID: [4]byte{0x04, 0x88, 0xAD, 0xE4},
		HDPublicKeyID:  [4]byte{0x04, 0x88, 0xB2, 0x1E},
	}
	testNetHD = &chaincfg.Params{
		HDPrivateKeyID: [4]byte{0x04, 0x35, 0x83, 0x94},
		HDPublicKeyID:  [4]byte{0x04, 0x35, 0x87, 0xCF},
	}
)

// KeyChain holds the wallet's master extended private key in memory just
// long enough to derive spending keys on demand; it never persists the
// seed or master key itself. Analogous to the BWKey handling scattered
// through BWWalletSignTransaction, centralized and made explicit about
// zeroing.
type KeyChain struct {
	master   *hdkeychain.ExtendedKey
	external *addrchain.Chain
	internal *addrchain.Chain
	params   addr.Params
}

// NewKeyChain derives a master extended key from seed and builds the two
// address chains (external=receive, internal=change) that share it.
// Callers should zero seed themselves once this returns.
func NewKeyChain(seed []byte, params addr.Params, testNet bool) (*KeyChain, error) {
	hd := mainNetHD
	if testNet {
		hd = testNetHD
	}

	master, err := hdkeychain.NewMaster(seed, hd)
	if err != nil {
		return nil, err
	}

	external, err := addrchain.New(seed, addrchain.External, params, testNet)
	if err != nil {
		return nil, err
	}
	internal, err := addrchain.New(seed, addrchain.Internal, params, testNet)
	if err != nil {
		return nil, err
	}

	return &KeyChain{master: master, external: external, internal: internal, params: params}, nil
}

// External returns the receive-address chain.
func (kc *KeyChain) External() *addrchain.Chain { return kc.external }

// Internal returns the change-address chain.
func (kc *KeyChain) Internal() *addrchain.Chain { return kc.internal }

// PrivateKeyForAddress derives and returns the private key spending
// address, searching both chains. It satisfies txcodec.Signer. The
// returned key is caller-owned; call zero.Bytes on its serialized form (or
// use SignTx, which always wipes its own derivations) once done with it.
func (kc *KeyChain) PrivateKeyForAddress(address string) (*btcec.PrivateKey, bool) {
	if i := kc.external.IndexOf(address); i >= 0 {
		return kc.derive(addrchain.External, uint32(i))
	}
	if i := kc.internal.IndexOf(address); i >= 0 {
		return kc.derive(addrchain.Internal, uint32(i))
	}
	return nil, false
}

func (kc *KeyChain) derive(branch uint32, index uint32) (*btcec.PrivateKey, bool) {
	branchKey, err := kc.master.Derive(branch)
	if err != nil {
		return nil, false
	}
	defer branchKey.Zero()

	leaf, err := branchKey.Derive(index)
	if err != nil {
		return nil, false
	}
	defer leaf.Zero()

	priv, err := leaf.ECPrivKey()
	if err != nil {
		return nil, false
	}
	return priv, true
}

// zeroingSigner wraps a KeyChain, remembering every key it hands out so
// SignTx can wipe them all once txcodec.Sign is done with them.
type zeroingSigner struct {
	kc      *KeyChain
	derived []*btcec.PrivateKey
}

func (s *zeroingSigner) PrivateKeyForAddress(address string) (*btcec.PrivateKey, bool) {
	key, ok := s.kc.PrivateKeyForAddress(address)
	if ok {
		s.derived = append(s.derived, key)
	}
	return key, ok
}

// wipe overwrites the scalar bytes of every key this signer handed out.
// btcec.PrivateKey's ModNScalar field is unexported, so the only public
// hook is Serialize's output buffer — zeroing that is the best this can
// do without a zeroing method on btcec.PrivateKey itself.
func (s *zeroingSigner) wipe() {
	for _, k := range s.derived {
		b := k.Serialize()
		zero.Bytes(b)
	}
}

// SignTx signs every input of tx that kc can resolve a key for, using
// forkID to select the legacy or fork-id signature variant, and reports
// whether every input ended up signed. Every derived private key is
// wiped immediately after txcodec.Sign finishes with it.
func SignTx(tx *txcodec.Tx, forkID byte, kc *KeyChain) bool {
	signer := &zeroingSigner{kc: kc}
	defer signer.wipe()
	return txcodec.Sign(tx, forkID, signer, kc.params)
}
