// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wallet ties address derivation, the transaction log, coin
// selection, and signing together behind one coarse mutex — the
// "Wallet Engine" component. Every exported method takes the lock for its
// full body and only invokes host callbacks after releasing it, per the
// single-mutex-per-long-lived-object discipline this core follows
// throughout.
package wallet

import (
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btclog"
	"github.com/btcsuite/bwspv/addr"
	"github.com/btcsuite/bwspv/txcodec"
	"github.com/btcsuite/bwspv/walletdb"
	"github.com/btcsuite/bwspv/wallet/addrchain"
	"github.com/btcsuite/bwspv/wallet/coinselect"
	"github.com/btcsuite/bwspv/wallet/sign"
	"github.com/btcsuite/bwspv/wallet/txlog"
)

var log = btclog.Disabled

// UseLogger sets the logger this package reports through.
func UseLogger(logger btclog.Logger) { log = logger }

// Notifications mirrors BWWallet's four host callbacks. Each field is
// optional and, when set, is invoked only after Engine's lock has been
// released.
type Notifications struct {
	BalanceChanged func(balance uint64)
	TxAdded        func(tx *txcodec.Tx)
	TxUpdated      func(hashes []chainhash.Hash, blockHeight int32, timestamp time.Time)
	TxDeleted      func(hash chainhash.Hash, notifyUser, recommendRescan bool)
}

// Engine is the wallet's single long-lived object: one mutex guarding the
// address chains, transaction log, and fee rate it owns. notify holds the
// host callbacks; Engine itself fires them, always after e.mu has been
// released, since txlog.Log has no lock of its own and never calls a
// callback directly.
type Engine struct {
	mu sync.Mutex

	keyChain *sign.KeyChain
	txLog    *txlog.Log
	params   addr.Params
	forkID   byte
	notify   Notifications
}

// New derives a fresh Engine from seed.
func New(seed []byte, params addr.Params, testNet bool, forkID byte, notify Notifications) (*Engine, error) {
	kc, err := sign.NewKeyChain(seed, params, testNet)
	if err != nil {
		return nil, err
	}

	tl := txlog.New(kc.External(), kc.Internal(), txcodec.TxFeePerKB)

	if _, err := kc.External().UnusedAddrs(addrchain.GapLimitExternal, addrchain.GapLimitExternal); err != nil {
		return nil, err
	}
	if _, err := kc.Internal().UnusedAddrs(addrchain.GapLimitInternal, addrchain.GapLimitInternal); err != nil {
		return nil, err
	}

	return &Engine{keyChain: kc, txLog: tl, params: params, forkID: forkID, notify: notify}, nil
}

// NewWatchOnly builds an Engine from already-neutered branch extended
// keys, with signing disabled — a watch-only wallet restored from an
// xpub pair rather than a seed.
func NewWatchOnly(externalPub, internalPub *hdkeychain.ExtendedKey, params addr.Params, notify Notifications) *Engine {
	external := addrchain.NewFromExtendedPubKey(externalPub, addrchain.External, params)
	internal := addrchain.NewFromExtendedPubKey(internalPub, addrchain.Internal, params)

	tl := txlog.New(external, internal, txcodec.TxFeePerKB)
	return &Engine{txLog: tl, params: params, notify: notify}
}

// Balance returns the wallet's current balance, excluding invalid and
// pending transactions.
func (e *Engine) Balance() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txLog.Balance()
}

// ReceiveAddress returns the first unused external-chain address.
func (e *Engine) ReceiveAddress() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	addrs, err := e.txLog.ExternalChain().UnusedAddrs(1, addrchain.GapLimitExternal)
	if err != nil {
		return "", err
	}
	return addrs[0], nil
}

// ContainsAddress reports whether address belongs to either chain.
func (e *Engine) ContainsAddress(address string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txLog.ExternalChain().Contains(address) || e.txLog.InternalChain().Contains(address)
}

// AllAddrs returns every address generated so far on both chains.
func (e *Engine) AllAddrs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := append([]string(nil), e.txLog.ExternalChain().Addresses()...)
	return append(out, e.txLog.InternalChain().Addresses()...)
}

// CreateTransaction builds an unsigned transaction paying amount to a
// single address — the single-output convenience wrapper mirroring
// BWWalletCreateTransaction. Sign it with SignTransaction.
func (e *Engine) CreateTransaction(amount int64, address string) (*txcodec.Tx, error) {
	script, err := addr.ScriptPubKey(address, e.params)
	if err != nil {
		return nil, err
	}
	return e.CreateTxForOutputs([]coinselect.OutputSpec{{Amount: btcutil.Amount(amount), Script: script}})
}

// CreateOpsTransaction builds an unsigned transaction paying amount to
// address plus a separate service fee opsFee to opsAddr in the same
// transaction — mirrors BWWalletCreateOpsTransaction, the supplemented
// multi-output convenience wrapper.
func (e *Engine) CreateOpsTransaction(amount int64, address string, opsFee int64, opsAddr string) (*txcodec.Tx, error) {
	mainScript, err := addr.ScriptPubKey(address, e.params)
	if err != nil {
		return nil, err
	}
	opsScript, err := addr.ScriptPubKey(opsAddr, e.params)
	if err != nil {
		return nil, err
	}
	return e.CreateTxForOutputs([]coinselect.OutputSpec{
		{Amount: btcutil.Amount(opsFee), Script: opsScript},
		{Amount: btcutil.Amount(amount), Script: mainScript},
	})
}

// CreateTxForOutputs builds an unsigned, fee-bounded transaction paying
// every output in outputs, per coinselect's algorithm.
func (e *Engine) CreateTxForOutputs(outputs []coinselect.OutputSpec) (*txcodec.Tx, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return coinselect.CreateTxForOutputs(e.txLog, outputs, e.params)
}

// SignTransaction signs every input of tx this wallet holds a key for,
// reporting whether every input ended up signed.
func (e *Engine) SignTransaction(tx *txcodec.Tx) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.keyChain == nil {
		return false // watch-only
	}
	return sign.SignTx(tx, e.forkID, e.keyChain)
}

// RegisterTransaction adds tx to the wallet if it belongs here, notifying
// the host only after the lock is released.
func (e *Engine) RegisterTransaction(tx *txcodec.Tx) bool {
	e.mu.Lock()
	accepted, added := e.txLog.Register(tx)
	balance := e.txLog.Balance()
	e.mu.Unlock()

	if added {
		if e.notify.BalanceChanged != nil {
			e.notify.BalanceChanged(balance)
		}
		if e.notify.TxAdded != nil {
			e.notify.TxAdded(tx)
		}
	}
	return accepted
}

// RemoveTransaction removes the transaction with the given hash,
// cascading to every dependent, notifying the host for each removal only
// after the lock is released.
func (e *Engine) RemoveTransaction(hash chainhash.Hash) {
	e.mu.Lock()
	removed := e.txLog.Remove(hash)
	e.mu.Unlock()

	for _, r := range removed {
		if e.notify.BalanceChanged != nil {
			e.notify.BalanceChanged(r.Balance)
		}
		if e.notify.TxDeleted != nil {
			e.notify.TxDeleted(r.Hash, r.NotifyUser, r.RecommendRescan)
		}
	}
}

// ContainsTransaction reports whether tx belongs to this wallet.
func (e *Engine) ContainsTransaction(tx *txcodec.Tx) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txLog.ContainsTransaction(tx)
}

// TransactionIsValid, TransactionIsPending, and TransactionIsVerified
// expose the recursive classification predicates from txlog directly.

func (e *Engine) TransactionIsValid(tx *txcodec.Tx) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txLog.TransactionIsValid(tx)
}

func (e *Engine) TransactionIsPending(tx *txcodec.Tx) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txLog.TransactionIsPending(tx)
}

func (e *Engine) TransactionIsVerified(tx *txcodec.Tx) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txLog.TransactionIsVerified(tx)
}

// UpdateTransactions sets the block height and timestamp for hashes,
// driving reclassification and host notification (fired only after the
// lock is released).
func (e *Engine) UpdateTransactions(hashes []chainhash.Hash, blockHeight int32, timestamp time.Time) {
	e.mu.Lock()
	needsUpdate, touched := e.txLog.UpdateTransactions(hashes, blockHeight, timestamp)
	balance := e.txLog.Balance()
	e.mu.Unlock()

	if needsUpdate && e.notify.BalanceChanged != nil {
		e.notify.BalanceChanged(balance)
	}
	if len(touched) > 0 && e.notify.TxUpdated != nil {
		e.notify.TxUpdated(touched, blockHeight, timestamp)
	}
}

// SetTxUnconfirmedAfter marks every tx confirmed above blockHeight as
// unconfirmed, for reorg handling, notifying the host only after the
// lock is released.
func (e *Engine) SetTxUnconfirmedAfter(blockHeight uint32) {
	e.mu.Lock()
	hashes := e.txLog.SetTxUnconfirmedAfter(blockHeight)
	balance := e.txLog.Balance()
	e.mu.Unlock()

	if len(hashes) == 0 {
		return
	}
	if e.notify.BalanceChanged != nil {
		e.notify.BalanceChanged(balance)
	}
	if e.notify.TxUpdated != nil {
		e.notify.TxUpdated(hashes, txcodec.TxUnconfirmed, time.Time{})
	}
}

// AmountReceivedFromTx, AmountSentByTx, FeeForTx, and BalanceAfterTx
// expose the history-query supplement (§4.9) from txlog directly.

func (e *Engine) AmountReceivedFromTx(tx *txcodec.Tx) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txLog.AmountReceivedFromTx(tx)
}

func (e *Engine) AmountSentByTx(tx *txcodec.Tx) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txLog.AmountSentByTx(tx)
}

func (e *Engine) FeeForTx(tx *txcodec.Tx) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txLog.FeeForTx(tx)
}

func (e *Engine) BalanceAfterTx(tx *txcodec.Tx) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txLog.BalanceAfterTx(tx)
}

// UnconfirmedBefore returns every unconfirmed transaction timestamped
// before t.
func (e *Engine) UnconfirmedBefore(t time.Time) []*txcodec.Tx {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txLog.UnconfirmedBefore(t)
}

// MinOutputAmount returns the dust floor at the wallet's current fee rate,
// mirroring BWWalletMinOutputAmount.
func (e *Engine) MinOutputAmount() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	feePerKB := e.txLog.FeePerKB()
	amount := (uint64(txcodec.TxMinOutputAmount)*feePerKB + txcodec.MinFeePerKB - 1) / txcodec.MinFeePerKB
	if amount > txcodec.TxMinOutputAmount {
		return int64(amount)
	}
	return txcodec.TxMinOutputAmount
}

// MaxOutputAmount returns the most spendable to a single address after
// fees, given the current UTXO set.
func (e *Engine) MaxOutputAmount() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return coinselect.MaxOutputAmount(e.txLog)
}

// SetFeePerKB updates the fee rate used for estimation and coin
// selection.
func (e *Engine) SetFeePerKB(feePerKB uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.txLog.SetFeePerKB(feePerKB)
}

// UTXOs returns a snapshot of the wallet's current unspent outputs, one
// of the three item sets peermgr folds into a fresh Bloom filter.
func (e *Engine) UTXOs() []txlog.UTXO {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txLog.UTXOs()
}

// Transactions returns the ordered transaction log, oldest first —
// peermgr walks this to find unconfirmed transactions from recent blocks
// whose outpoints also belong in the Bloom filter.
func (e *Engine) Transactions() []*txcodec.Tx {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txLog.Transactions()
}

// BlockHeight returns the wallet's last-seen chain tip height.
func (e *Engine) BlockHeight() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txLog.BlockHeight()
}

// ContainsTransactionHash reports whether a transaction with the given
// hash has been registered — peermgr uses this to tell a true positive
// apart from a Bloom filter false positive when it recomputes fpRate.
func (e *Engine) ContainsTransactionHash(hash chainhash.Hash) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.txLog.TransactionForHash(hash)
	return ok
}

// TransactionForHash returns the registered transaction with the given
// hash, if any — peermgr walks this to find the unconfirmed ancestors a
// freshly published transaction depends on.
func (e *Engine) TransactionForHash(hash chainhash.Hash) (*txcodec.Tx, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txLog.TransactionForHash(hash)
}

// Persist writes the wallet's transaction log to ns, so a host binary can
// restore it across restarts instead of doing a full rescan.
func (e *Engine) Persist(ns walletdb.Namespace) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txLog.Persist(ns)
}

// Load restores a transaction log previously written by Persist.
func (e *Engine) Load(ns walletdb.Namespace) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txLog.Load(ns, e.params)
}
