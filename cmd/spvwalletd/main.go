// Copyright (c) 2013-2015 The btcsuite developers
// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/bwspv/addr"
	"github.com/btcsuite/bwspv/blockstore"
	"github.com/btcsuite/bwspv/peer"
	"github.com/btcsuite/bwspv/peermgr"
	"github.com/btcsuite/bwspv/wallet"
	"github.com/btcsuite/bwspv/walletdb"
	_ "github.com/btcsuite/bwspv/walletdb/bdb"
)

var (
	cfg          *config
	shutdownChan = make(chan struct{})
)

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	if err := spvwalletdMain(); err != nil {
		os.Exit(1)
	}
}

// spvwalletdMain is a work-around main function that is required since
// deferred functions (such as log flushing) are not called after os.Exit.
func spvwalletdMain() error {
	tcfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = tcfg
	defer backendLog.Flush()

	params := cfg.chainParams()
	addrParams := addr.MainNetParams
	if cfg.TestNet {
		addrParams = addr.TestNetParams
	}

	seed, err := hdkeychain.GenerateSeed(hdkeychain.RecommendedSeedLen)
	if err != nil {
		log.Errorf("unable to generate wallet seed: %v", err)
		return err
	}

	engine, err := wallet.New(seed, addrParams, cfg.TestNet, 0x00, wallet.Notifications{
		BalanceChanged: func(balance uint64) {
			log.Infof("balance changed: %d", balance)
		},
	})
	if err != nil {
		log.Errorf("unable to create wallet engine: %v", err)
		return err
	}
	engine.SetFeePerKB(uint64(cfg.FeePerKB.Amount))

	dbPath := filepath.Join(cfg.DataDir, "txlog.db")
	db, err := walletdb.Create("bdb", dbPath)
	if err != nil {
		log.Errorf("unable to open wallet database %s: %v", dbPath, err)
		return err
	}
	addInterruptHandler(func() {
		db.Close()
	})

	ns, err := db.Namespace([]byte("txlog"))
	if err != nil {
		log.Errorf("unable to open txlog namespace: %v", err)
		return err
	}
	if err := engine.Load(ns); err != nil {
		log.Warnf("unable to load persisted transactions: %v", err)
	}
	addInterruptHandler(func() {
		if err := engine.Persist(ns); err != nil {
			log.Errorf("unable to persist transactions: %v", err)
		}
	})

	store := blockstore.New(params)

	mgr := peermgr.New(params, store, engine, &stubDialer{}, peermgr.Notifications{
		SyncStarted: func() { log.Info("chain sync started") },
		SyncStopped: func(err error) {
			if err != nil {
				log.Errorf("chain sync stopped: %v", err)
			}
		},
	})
	if cfg.ConnectPeer.Value != "" {
		if a, ok := parsePeerAddress(cfg.ConnectPeer.Value); ok {
			mgr.SetFixedPeer(a)
		}
	}
	mgr.Connect()

	addInterruptHandler(func() {
		close(shutdownChan)
	})

	<-shutdownChan
	<-interruptHandlersDone
	return nil
}

// parsePeerAddress splits a "host:port" string into a peer.Address,
// defaulting to the network's standard port when no port is given; a port
// that does not parse yields ok == false.
func parsePeerAddress(hostport string) (peer.Address, bool) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return peer.Address{Host: hostport, Port: cfg.chainParams().StandardPort}, true
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return peer.Address{}, false
	}
	return peer.Address{Host: host, Port: uint16(port)}, true
}

// stubDialer satisfies peermgr.Dialer without opening any real connection.
// The wire protocol (framing, handshake, message pump) is an explicit
// external collaborator per spec.md §1 — a production deployment supplies
// its own Dialer backed by a real TCP/wire.Message transport; this one lets
// the daemon start and exercise its wallet/block-store wiring standalone.
type stubDialer struct{}

func (stubDialer) LookupSeeds(seeds []string) []peer.Address { return nil }

func (stubDialer) Dial(a peer.Address, cb peer.Callbacks) peer.Capability {
	return &nullCapability{addr: a}
}

// nullCapability is a peer.Capability that never actually connects; every
// Send* call and Connect itself is a no-op. It exists only so this daemon's
// peermgr.Manager has something satisfying the interface to drive until a
// host supplies a real wire transport.
type nullCapability struct {
	addr   peer.Address
	status peer.ConnectStatus
}

func (c *nullCapability) Connect()             { c.status = peer.Disconnected }
func (c *nullCapability) Disconnect()           { c.status = peer.Disconnected }
func (c *nullCapability) ScheduleDisconnect(int) {}

func (c *nullCapability) SendFilterload(*wire.MsgFilterLoad)             {}
func (c *nullCapability) SendGetblocks([]chainhash.Hash, chainhash.Hash)  {}
func (c *nullCapability) SendGetheaders([]chainhash.Hash, chainhash.Hash) {}
func (c *nullCapability) SendGetdata([]chainhash.Hash, []chainhash.Hash)  {}
func (c *nullCapability) SendMempool()                                    {}
func (c *nullCapability) SendInv([]chainhash.Hash)                        {}
func (c *nullCapability) SendPing(done func())                            {}
func (c *nullCapability) SendGetaddr()                                    {}
func (c *nullCapability) RerequestBlocks(chainhash.Hash)                  {}
func (c *nullCapability) SetCurrentBlockHeight(uint32)                    {}
func (c *nullCapability) SetNeedsFilterUpdate(bool)                       {}
func (c *nullCapability) SetEarliestKeyTime(time.Time)                    {}

func (c *nullCapability) ConnectStatus() peer.ConnectStatus { return c.status }
func (c *nullCapability) LastBlock() uint32                 { return 0 }
func (c *nullCapability) PingTime() time.Duration            { return 0 }
func (c *nullCapability) Version() uint32                    { return 0 }
func (c *nullCapability) Services() uint64                   { return 0 }
func (c *nullCapability) FeePerKB() uint64                   { return 0 }
func (c *nullCapability) Host() string                       { return c.addr.Host }
func (c *nullCapability) Port() uint16                       { return c.addr.Port }
func (c *nullCapability) Timestamp() time.Time               { return c.addr.Timestamp }
