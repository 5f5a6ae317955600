// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package addrchain implements the two BIP32-style address chains —
// external (receive) and internal (change) — that the wallet engine
// derives from a single master public key, grown on demand by a
// gap-limit policy.
package addrchain

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/bwspv/addr"
)

// Chain index selectors, mirroring SEQUENCE_EXTERNAL_CHAIN / SEQUENCE_INTERNAL_CHAIN.
const (
	External = 0
	Internal = 1
)

// Default gap limits. breadwallet-core's original constants; not overridden
// by the spec, which only requires that they be fixed.
const (
	GapLimitExternal = 10
	GapLimitInternal = 5
)

// hdkeychain.NewMaster wants a *chaincfg.Params purely for the HD
// extended-key version bytes it stamps into the encoded xprv/xpub — a
// different namespace from addr.Params (script/address version bytes) and
// from chainparams.Params (the network-identity collaborator in §4.6).
// These two literals carry only the fields hdkeychain reads; they are not
// chaincfg.MainNetParams/TestNet3Params and never feed the DNS-seed or
// checkpoint machinery this core keeps behind chainparams.Params instead.
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

// ErrGapLimit is returned when gapLimit is non-positive.
var ErrGapLimit = errors.New("addrchain: gapLimit must be > 0")

// Chain is one append-only sequence of addresses derived from a master
// public key along a single BIP32 branch (external or internal). Addresses
// are never reclaimed, matching BWWallet's array_add-only discipline.
type Chain struct {
	masterPub *hdkeychain.ExtendedKey
	branch    uint32
	params    addr.Params

	addrs []string // index i == derivation index i
	used  map[string]bool
}

// New derives the branch-0 (or branch-1) extended key from seed and
// returns an empty chain ready to grow. testNet selects the HD version
// bytes; it has no bearing on addr.Params, which the caller supplies
// separately so a chain can serve either network's script encoding.
func New(seed []byte, branch uint32, params addr.Params, testNet bool) (*Chain, error) {
	hd := mainNetHD
	if testNet {
		hd = testNetHD
	}

	master, err := hdkeychain.NewMaster(seed, hd)
	if err != nil {
		return nil, err
	}
	defer master.Zero()

	branchKey, err := master.Derive(branch)
	if err != nil {
		return nil, err
	}

	pub, err := branchKey.Neuter()
	if err != nil {
		return nil, err
	}
	branchKey.Zero()

	return &Chain{
		masterPub: pub,
		branch:    branch,
		params:    params,
		used:      make(map[string]bool),
	}, nil
}

// NewFromExtendedPubKey builds a watch-only chain (no private key material
// ever touches the process) from an already-neutered branch extended key —
// the form a wallet restored from an xpub would use.
func NewFromExtendedPubKey(branchPub *hdkeychain.ExtendedKey, branch uint32, params addr.Params) *Chain {
	return &Chain{
		masterPub: branchPub,
		branch:    branch,
		params:    params,
		used:      make(map[string]bool),
	}
}

// deriveAddress computes the address at index i on this branch without
// mutating the chain.
func (c *Chain) deriveAddress(i uint32) (string, error) {
	child, err := c.masterPub.Derive(i)
	if err != nil {
		return "", err
	}
	pubKey, err := child.ECPubKey()
	if err != nil {
		return "", err
	}
	hash160 := addr.Hash160(pubKey.SerializeCompressed())
	return addr.Encode(hash160, c.params.PubKeyHashAddrID), nil
}

// MarkUsed records that address has appeared in a transaction, the signal
// UnusedAddrs uses to decide how far the gap has been consumed.
func (c *Chain) MarkUsed(address string) {
	c.used[address] = true
}

// IsUsed reports whether address has ever been recorded as used.
func (c *Chain) IsUsed(address string) bool {
	return c.used[address]
}

// Contains reports whether address belongs to this chain at all (used or not).
func (c *Chain) Contains(address string) bool {
	for _, a := range c.addrs {
		if a == address {
			return true
		}
	}
	return false
}

// Addresses returns every address generated on this chain so far, in
// derivation order. Callers must not mutate the returned slice.
func (c *Chain) Addresses() []string {
	return c.addrs
}

// UnusedAddrs returns the n addresses following the last used address on
// this chain, extending it as needed so there are always at least
// gapLimit trailing unused addresses. It mirrors BWWalletUnusedAddrs: the
// chain is grown one address at a time, walking back from the end to find
// the last used index, then deriving forward until the gap is satisfied.
func (c *Chain) UnusedAddrs(n int, gapLimit int) ([]string, error) {
	if gapLimit <= 0 {
		return nil, ErrGapLimit
	}

	i := len(c.addrs)
	for i > 0 && !c.used[c.addrs[i-1]] {
		i--
	}

	for i+gapLimit > len(c.addrs) {
		next, err := c.deriveAddress(uint32(len(c.addrs)))
		if err != nil {
			break
		}
		c.addrs = append(c.addrs, next)
		if c.used[next] {
			i = len(c.addrs)
		}
	}

	if n <= 0 || i+n > len(c.addrs) {
		return nil, nil
	}
	out := make([]string, n)
	copy(out, c.addrs[i:i+n])
	return out, nil
}

// IndexOf returns the derivation index of address on this chain, or -1 if
// it has not been generated.
func (c *Chain) IndexOf(address string) int {
	for i, a := range c.addrs {
		if a == address {
			return i
		}
	}
	return -1
}

// Branch reports the BIP32 branch (External or Internal) this chain derives.
func (c *Chain) Branch() uint32 {
	return c.branch
}

// PublicKeyAt returns the public key at derivation index i on this
// branch, derived from the extended public key alone.
func (c *Chain) PublicKeyAt(i uint32) (*btcec.PublicKey, error) {
	child, err := c.masterPub.Derive(i)
	if err != nil {
		return nil, err
	}
	return child.ECPubKey()
}
