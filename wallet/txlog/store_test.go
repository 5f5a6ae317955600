// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txlog

import (
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/bwspv/addr"
	"github.com/btcsuite/bwspv/wallet/addrchain"
	_ "github.com/btcsuite/bwspv/walletdb/bdb"
	"github.com/btcsuite/bwspv/walletdb"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) walletdb.Namespace {
	path := filepath.Join(t.TempDir(), "txlog.db")
	db, err := walletdb.Create("bdb", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ns, err := db.Namespace([]byte("txlog"))
	require.NoError(t, err)
	return ns
}

func TestPersistAndLoadRoundTrip(t *testing.T) {
	external, internal := newChains(t)
	log := New(external, internal, 1000)

	addrs, err := external.UnusedAddrs(1, addrchain.GapLimitExternal)
	require.NoError(t, err)
	to := addrs[0]
	tx1 := coinbaseLikeTx(t, to, 50000, 100)
	tx2 := coinbaseLikeTx(t, to, 75000, 101)
	// Load recomputes each hash from the stored bytes, so give both
	// transactions their real hashes.
	tx1.Hash = chainhash.DoubleHashH(tx1.Serialize())
	tx2.Hash = chainhash.DoubleHashH(tx2.Serialize())
	accepted1, _ := log.Register(tx1)
	accepted2, _ := log.Register(tx2)
	require.True(t, accepted1)
	require.True(t, accepted2)

	ns := openTestDB(t)
	require.NoError(t, log.Persist(ns))

	// Reload against the same address chains, the way a restarted wallet
	// would reopen its existing keys before restoring the tx log.
	reloaded := New(external, internal, 1000)
	require.NoError(t, reloaded.Load(ns, addr.MainNetParams))
	require.Equal(t, log.Balance(), reloaded.Balance())
	require.Len(t, reloaded.Transactions(), 2)

	_, ok := reloaded.TransactionForHash(tx1.Hash)
	require.True(t, ok)
}

func TestLoadEmptyNamespace(t *testing.T) {
	external, internal := newChains(t)
	log := New(external, internal, 1000)

	ns := openTestDB(t)
	require.NoError(t, log.Load(ns, addr.MainNetParams))
	require.Equal(t, uint64(0), log.Balance())
}
