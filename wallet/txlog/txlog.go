// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txlog maintains the wallet's ordered transaction log, the UTXO
// set derived from it, and the invalid/pending classification recomputed
// on every mutation — the Go counterpart of BWWallet.c's transaction
// bookkeeping, split out from address derivation and signing.
package txlog

import (
	"math"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/bwspv/txcodec"
	"github.com/btcsuite/bwspv/wallet/addrchain"
)

var log = btclog.Disabled

// UseLogger sets the logger this package reports through.
func UseLogger(logger btclog.Logger) { log = logger }

// UTXO identifies a transaction output.
type UTXO struct {
	Hash  chainhash.Hash
	Index uint32
}

// RemovedTx describes one transaction Remove pulled out of the log —
// itself or a cascading dependent — along with the balance and host
// notification flags that applied at the moment it was removed. Log has
// no lock of its own, so it never invokes a host callback directly;
// Engine collects these after a Remove call and fires TxDeleted/
// BalanceChanged itself, once its own lock is released.
type RemovedTx struct {
	Hash            chainhash.Hash
	Balance         uint64
	NotifyUser      bool
	RecommendRescan bool
}

// Log is the ordered set of transactions this wallet has accepted, plus
// everything derived from it: spentOutputs, the UTXO set, invalid/pending
// sub-sets, and the per-tx balance history. Log has no lock of its own —
// it is always called from within its owner's (Engine's) critical
// section — and never invokes a host callback; mutating methods report
// what changed so the caller can notify after releasing its lock.
type Log struct {
	external, internal *addrchain.Chain

	feePerKB    uint64
	blockHeight uint32

	order       []*txcodec.Tx // sorted by the total order; index parallels balanceHist
	all         map[chainhash.Hash]*txcodec.Tx
	invalid     map[chainhash.Hash]bool
	pending     map[chainhash.Hash]bool
	spent       map[UTXO]bool
	usedAddrs   map[string]bool
	utxos       []UTXO
	balanceHist []uint64

	balance, totalSent, totalReceived uint64
}

// New returns an empty log bound to the given address chains, used to
// decide which outputs belong to the wallet.
func New(external, internal *addrchain.Chain, feePerKB uint64) *Log {
	return &Log{
		external:  external,
		internal:  internal,
		feePerKB:  feePerKB,
		all:       make(map[chainhash.Hash]*txcodec.Tx),
		invalid:   make(map[chainhash.Hash]bool),
		pending:   make(map[chainhash.Hash]bool),
		spent:     make(map[UTXO]bool),
		usedAddrs: make(map[string]bool),
	}
}

// txFee mirrors _txFee: the larger of the standard per-kb fee and the
// wallet's configured feePerKB, both rounded up.
func txFee(feePerKB uint64, size int) uint64 {
	standard := uint64((size+999)/1000) * txcodec.TxFeePerKB
	byRate := ((uint64(size)*feePerKB/1000 + 99) / 100) * 100
	if byRate > standard {
		return byRate
	}
	return standard
}

// belongsTo reports whether any output address of tx is in allAddrs, or
// any input spends a prevout whose output address is — the Go analogue
// of _BWWalletContainsTx.
func (l *Log) belongsTo(tx *txcodec.Tx) bool {
	for _, out := range tx.Outputs {
		if out.Address != "" && (l.external.Contains(out.Address) || l.internal.Contains(out.Address)) {
			return true
		}
	}
	for _, in := range tx.Inputs {
		t, ok := l.all[in.PrevHash]
		if !ok || int(in.PrevIndex) >= len(t.Outputs) {
			continue
		}
		a := t.Outputs[in.PrevIndex].Address
		if a != "" && (l.external.Contains(a) || l.internal.Contains(a)) {
			return true
		}
	}
	return false
}

// chainIndex finds the chain position of tx's first output address that
// appears in chain, walking from the end — mirrors _txChainIndex.
func chainIndex(tx *txcodec.Tx, chain *addrchain.Chain) int {
	addrs := chain.Addresses()
	for i := len(addrs); i > 0; i-- {
		for _, out := range tx.Outputs {
			if out.Address == addrs[i-1] {
				return i - 1
			}
		}
	}
	return -1
}

// isAscending reports whether tx1 transitively depends on tx2 — mirrors
// _BWWalletTxIsAscending.
func (l *Log) isAscending(tx1, tx2 *txcodec.Tx) bool {
	if tx1 == nil || tx2 == nil {
		return false
	}
	if tx1.BlockHeight > tx2.BlockHeight {
		return true
	}
	if tx1.BlockHeight < tx2.BlockHeight {
		return false
	}
	for _, in := range tx1.Inputs {
		if in.PrevHash == tx2.Hash {
			return true
		}
	}
	for _, in := range tx2.Inputs {
		if in.PrevHash == tx1.Hash {
			return false
		}
	}
	for _, in := range tx1.Inputs {
		if parent, ok := l.all[in.PrevHash]; ok && l.isAscending(parent, tx2) {
			return true
		}
	}
	return false
}

// compare implements the total order from the ordering rule: dependency
// first, then chain position as a tiebreak — mirrors _BWWalletTxCompare.
func (l *Log) compare(tx1, tx2 *txcodec.Tx) int {
	if l.isAscending(tx1, tx2) {
		return 1
	}
	if l.isAscending(tx2, tx1) {
		return -1
	}

	i := chainIndex(tx1, l.internal)
	var j int
	if i == -1 {
		j = chainIndex(tx2, l.external)
	} else {
		j = chainIndex(tx2, l.internal)
	}
	if i == -1 && j != -1 {
		i = chainIndex(tx1, l.external)
	}
	if i != -1 && j != -1 && i != j {
		if i > j {
			return 1
		}
		return -1
	}
	return 0
}

// insert inserts tx into l.order, keeping it sorted oldest-first —
// mirrors _BWWalletInsertTx's insertion sort.
func (l *Log) insert(tx *txcodec.Tx) {
	i := len(l.order)
	l.order = append(l.order, tx)
	for i > 0 && l.compare(l.order[i-1], tx) > 0 {
		l.order[i] = l.order[i-1]
		i--
	}
	l.order[i] = tx
}

// updateBalance recomputes spentOutputs, the UTXO set, invalid/pending
// classification, and the parallel balance history from scratch by
// walking l.order — mirrors _BWWalletUpdateBalance exactly, including its
// two-pass UTXO/spent reconciliation (transaction order isn't guaranteed
// to match spend order).
func (l *Log) updateBalance() {
	l.utxos = l.utxos[:0]
	l.balanceHist = l.balanceHist[:0]
	l.spent = make(map[UTXO]bool)
	l.invalid = make(map[chainhash.Hash]bool)
	l.pending = make(map[chainhash.Hash]bool)
	l.usedAddrs = make(map[string]bool)
	l.totalSent = 0
	l.totalReceived = 0

	var balance, prevBalance uint64
	now := time.Now()

	for _, tx := range l.order {
		if tx.BlockHeight == txcodec.TxUnconfirmed {
			invalid := false
			for _, in := range tx.Inputs {
				if l.spent[UTXO{in.PrevHash, in.PrevIndex}] || l.invalid[in.PrevHash] {
					invalid = true
					break
				}
			}
			if invalid {
				l.invalid[tx.Hash] = true
				l.balanceHist = append(l.balanceHist, balance)
				continue
			}
		}

		for _, in := range tx.Inputs {
			l.spent[UTXO{in.PrevHash, in.PrevIndex}] = true
		}

		if tx.BlockHeight == txcodec.TxUnconfirmed {
			if l.isPendingLocked(tx, now) {
				l.pending[tx.Hash] = true
				l.balanceHist = append(l.balanceHist, balance)
				continue
			}
		}

		for j, out := range tx.Outputs {
			if out.Address == "" {
				continue
			}
			l.usedAddrs[out.Address] = true
			l.external.MarkUsed(out.Address)
			l.internal.MarkUsed(out.Address)

			if l.external.Contains(out.Address) || l.internal.Contains(out.Address) {
				l.utxos = append(l.utxos, UTXO{tx.Hash, uint32(j)})
				balance += uint64(out.Amount)
			}
		}

		for j := len(l.utxos); j > 0; j-- {
			u := l.utxos[j-1]
			if !l.spent[u] {
				continue
			}
			t := l.all[u.Hash]
			balance -= uint64(t.Outputs[u.Index].Amount)
			l.utxos = append(l.utxos[:j-1], l.utxos[j:]...)
		}

		if prevBalance < balance {
			l.totalReceived += balance - prevBalance
		}
		if balance < prevBalance {
			l.totalSent += prevBalance - balance
		}
		l.balanceHist = append(l.balanceHist, balance)
		prevBalance = balance
	}

	l.balance = balance
}

// isPendingLocked mirrors the per-tx pending checks embedded in
// _BWWalletUpdateBalance / BWWalletTransactionIsPending.
func (l *Log) isPendingLocked(tx *txcodec.Tx, now time.Time) bool {
	if tx.SerializeSize() > txcodec.TxMaxSize {
		return true
	}
	for _, out := range tx.Outputs {
		if out.Amount < txcodec.TxMinOutputAmount {
			return true
		}
	}
	for _, in := range tx.Inputs {
		if in.Sequence < math.MaxUint32-1 {
			return true
		}
		if in.Sequence < math.MaxUint32 && tx.LockTime < txcodec.TxMaxLockHeight &&
			tx.LockTime > l.blockHeight+1 {
			return true
		}
		if in.Sequence < math.MaxUint32 && int64(tx.LockTime) > now.Unix() {
			return true
		}
		if l.pending[in.PrevHash] {
			return true
		}
	}
	return false
}

// ExternalChain returns the receive-address chain this log classifies
// outputs against.
func (l *Log) ExternalChain() *addrchain.Chain { return l.external }

// InternalChain returns the change-address chain this log classifies
// outputs against.
func (l *Log) InternalChain() *addrchain.Chain { return l.internal }

// Balance returns the current confirmed+pending-excluded balance.
func (l *Log) Balance() uint64 { return l.balance }

// TotalSent returns the lifetime total sent from the wallet.
func (l *Log) TotalSent() uint64 { return l.totalSent }

// TotalReceived returns the lifetime total received by the wallet.
func (l *Log) TotalReceived() uint64 { return l.totalReceived }

// UTXOs returns a snapshot of the current unspent output set.
func (l *Log) UTXOs() []UTXO {
	out := make([]UTXO, len(l.utxos))
	copy(out, l.utxos)
	return out
}

// Transactions returns the ordered log, oldest first.
func (l *Log) Transactions() []*txcodec.Tx {
	out := make([]*txcodec.Tx, len(l.order))
	copy(out, l.order)
	return out
}

// TransactionForHash returns the transaction with the given hash, if it
// has been registered.
func (l *Log) TransactionForHash(hash chainhash.Hash) (*txcodec.Tx, bool) {
	tx, ok := l.all[hash]
	return tx, ok
}

// ContainsTransaction reports whether tx belongs to this wallet, per the
// containment rule (see belongsTo).
func (l *Log) ContainsTransaction(tx *txcodec.Tx) bool {
	return l.belongsTo(tx)
}

// Register adds tx to the log if it is signed and belongs to the wallet.
// accepted mirrors BWWalletRegisterTransaction's return value (false,
// without error, for a tx this wallet has no stake in, kept only for
// conflict tracking); added reports whether this call is what newly
// inserted it, i.e. whether the caller should treat the log as changed
// and notify BalanceChanged/TxAdded. Already-known transactions are
// accepted idempotently (accepted=true, added=false).
func (l *Log) Register(tx *txcodec.Tx) (accepted, added bool) {
	if !tx.IsSigned() {
		return false, false
	}

	if _, known := l.all[tx.Hash]; known {
		return true, false
	}

	if !l.belongsTo(tx) {
		if tx.BlockHeight == txcodec.TxUnconfirmed {
			l.all[tx.Hash] = tx
		}
		return false, false
	}

	l.all[tx.Hash] = tx
	l.insert(tx)
	l.updateBalance()

	log.Debugf("registered tx %s, balance now %d", tx.Hash, l.balance)
	return true, true
}

// Remove deletes the transaction with the given hash, cascading to every
// transaction that spends one of its outputs — mirrors
// BWWalletRemoveTransaction. It returns one RemovedTx per transaction
// actually removed, dependents first, in the same order the original
// fired its per-removal callbacks.
func (l *Log) Remove(hash chainhash.Hash) []RemovedTx {
	tx, ok := l.all[hash]
	if !ok {
		return nil
	}

	var dependents []chainhash.Hash
	for i := len(l.order); i > 0; i-- {
		t := l.order[i-1]
		if t.BlockHeight < tx.BlockHeight {
			break
		}
		if t.Eq(tx) {
			continue
		}
		for _, in := range t.Inputs {
			if in.PrevHash == hash {
				dependents = append(dependents, t.Hash)
				break
			}
		}
	}

	var removed []RemovedTx
	for i := len(dependents); i > 0; i-- {
		removed = append(removed, l.Remove(dependents[i-1])...)
	}

	delete(l.all, hash)
	for i := len(l.order); i > 0; i-- {
		if l.order[i-1].Eq(tx) {
			l.order = append(l.order[:i-1], l.order[i:]...)
			break
		}
	}

	l.updateBalance()
	log.Debugf("removed tx %s, balance now %d", hash, l.balance)

	sentByTx := l.amountSentByTx(tx)
	notifyUser := false
	recommendRescan := false
	if sentByTx > 0 && l.transactionIsValid(tx) {
		notifyUser = true
		recommendRescan = true
		for _, in := range tx.Inputs {
			if t, ok := l.all[in.PrevHash]; ok && t.BlockHeight != txcodec.TxUnconfirmed {
				continue
			}
			recommendRescan = false
			break
		}
	}

	return append(removed, RemovedTx{
		Hash:            hash,
		Balance:         l.balance,
		NotifyUser:      notifyUser,
		RecommendRescan: recommendRescan,
	})
}

// transactionIsValid mirrors BWWalletTransactionIsValid.
func (l *Log) transactionIsValid(tx *txcodec.Tx) bool {
	if tx.BlockHeight != txcodec.TxUnconfirmed {
		return true
	}

	if _, known := l.all[tx.Hash]; !known {
		for _, in := range tx.Inputs {
			if l.spent[UTXO{in.PrevHash, in.PrevIndex}] {
				return false
			}
		}
	} else if l.invalid[tx.Hash] {
		return false
	}

	for _, in := range tx.Inputs {
		if t, ok := l.all[in.PrevHash]; ok && !l.transactionIsValid(t) {
			return false
		}
	}
	return true
}

// TransactionIsValid reports whether tx (or any ancestor) double-spends
// or descends from an invalid tx.
func (l *Log) TransactionIsValid(tx *txcodec.Tx) bool {
	return l.transactionIsValid(tx)
}

// transactionIsPending mirrors BWWalletTransactionIsPending.
func (l *Log) transactionIsPending(tx *txcodec.Tx) bool {
	if tx.BlockHeight != txcodec.TxUnconfirmed {
		return false
	}
	if l.isPendingLocked(tx, time.Now()) {
		return true
	}
	for _, in := range tx.Inputs {
		if t, ok := l.all[in.PrevHash]; ok && l.transactionIsPending(t) {
			return true
		}
	}
	return false
}

// TransactionIsPending reports whether tx cannot yet be safely spent
// against (size, dust, RBF, lockTime, or a pending ancestor).
func (l *Log) TransactionIsPending(tx *txcodec.Tx) bool {
	return l.transactionIsPending(tx)
}

// TransactionIsVerified reports whether tx is 0-conf safe: valid, not
// pending, timestamped, and with no unverified ancestor — mirrors
// BWWalletTransactionIsVerified.
func (l *Log) TransactionIsVerified(tx *txcodec.Tx) bool {
	if tx.BlockHeight != txcodec.TxUnconfirmed {
		return true
	}
	if tx.Timestamp.IsZero() || !l.transactionIsValid(tx) || l.transactionIsPending(tx) {
		return false
	}
	for _, in := range tx.Inputs {
		t, ok := l.all[in.PrevHash]
		if ok && !l.TransactionIsVerified(t) {
			return false
		}
	}
	return true
}

// UpdateTransactions sets the block height and timestamp for every hash
// in hashes, re-sorting the log and recomputing balance if needed. Use
// blockHeight=TxUnconfirmed, timestamp=zero to mark a tx unverified again
// — mirrors BWWalletUpdateTransactions. needsUpdate reports whether the
// balance changed (caller should fire BalanceChanged); touched lists the
// hashes the caller should report via TxUpdated.
func (l *Log) UpdateTransactions(hashes []chainhash.Hash, blockHeight int32, timestamp time.Time) (needsUpdate bool, touched []chainhash.Hash) {
	if uint32(blockHeight) > l.blockHeight && blockHeight != txcodec.TxUnconfirmed {
		l.blockHeight = uint32(blockHeight)
	}

	for _, h := range hashes {
		tx, ok := l.all[h]
		if !ok || (tx.BlockHeight == blockHeight && tx.Timestamp.Equal(timestamp)) {
			continue
		}
		tx.Timestamp = timestamp
		tx.BlockHeight = blockHeight

		if l.belongsTo(tx) {
			for i := len(l.order); i > 0; i-- {
				if l.order[i-1].Eq(tx) {
					l.order = append(l.order[:i-1], l.order[i:]...)
					l.insert(tx)
					break
				}
			}
			touched = append(touched, h)
			if l.pending[tx.Hash] || l.invalid[tx.Hash] {
				needsUpdate = true
			}
		} else if blockHeight != txcodec.TxUnconfirmed {
			delete(l.all, h)
		}
	}

	if needsUpdate {
		l.updateBalance()
	}

	return needsUpdate, touched
}

// SetTxUnconfirmedAfter marks every tx confirmed above blockHeight as
// unconfirmed again, for reorg handling — mirrors
// BWWalletSetTxUnconfirmedAfter. It returns the hashes that were
// unconfirmed, for the caller to report via TxUpdated (blockHeight
// TxUnconfirmed, zero timestamp) if the slice is non-empty.
func (l *Log) SetTxUnconfirmedAfter(blockHeight uint32) []chainhash.Hash {
	l.blockHeight = blockHeight

	i := len(l.order)
	for i > 0 && l.order[i-1].BlockHeight > int32(blockHeight) {
		i--
	}

	var hashes []chainhash.Hash
	for j := i; j < len(l.order); j++ {
		l.order[j].BlockHeight = txcodec.TxUnconfirmed
		hashes = append(hashes, l.order[j].Hash)
	}

	if len(hashes) > 0 {
		l.updateBalance()
	}

	return hashes
}

// amountReceivedFromTx returns the total paid to the wallet's own
// addresses by tx — mirrors BWWalletAmountReceivedFromTx.
func (l *Log) amountReceivedFromTx(tx *txcodec.Tx) uint64 {
	var amount uint64
	for _, out := range tx.Outputs {
		if out.Address != "" && (l.external.Contains(out.Address) || l.internal.Contains(out.Address)) {
			amount += uint64(out.Amount)
		}
	}
	return amount
}

// AmountReceivedFromTx is the exported form of amountReceivedFromTx.
func (l *Log) AmountReceivedFromTx(tx *txcodec.Tx) uint64 {
	return l.amountReceivedFromTx(tx)
}

// amountSentByTx returns the total the wallet's own prevouts spent by tx
// contribute — mirrors BWWalletAmountSentByTx.
func (l *Log) amountSentByTx(tx *txcodec.Tx) uint64 {
	var amount uint64
	for _, in := range tx.Inputs {
		t, ok := l.all[in.PrevHash]
		if !ok || int(in.PrevIndex) >= len(t.Outputs) {
			continue
		}
		a := t.Outputs[in.PrevIndex].Address
		if a != "" && (l.external.Contains(a) || l.internal.Contains(a)) {
			amount += uint64(t.Outputs[in.PrevIndex].Amount)
		}
	}
	return amount
}

// AmountSentByTx is the exported form of amountSentByTx.
func (l *Log) AmountSentByTx(tx *txcodec.Tx) uint64 {
	return l.amountSentByTx(tx)
}

// FeeForTx returns tx's fee if every input traces back to a known
// transaction, or math.MaxUint64 otherwise — mirrors BWWalletFeeForTx.
func (l *Log) FeeForTx(tx *txcodec.Tx) uint64 {
	var amount uint64
	for _, in := range tx.Inputs {
		t, ok := l.all[in.PrevHash]
		if !ok || int(in.PrevIndex) >= len(t.Outputs) {
			return math.MaxUint64
		}
		amount += uint64(t.Outputs[in.PrevIndex].Amount)
	}
	for _, out := range tx.Outputs {
		amount -= uint64(out.Amount)
	}
	return amount
}

// BalanceAfterTx returns the historical balance immediately after tx, or
// the current balance if tx isn't registered — mirrors
// BWWalletBalanceAfterTx.
func (l *Log) BalanceAfterTx(tx *txcodec.Tx) uint64 {
	for i := len(l.order); i > 0; i-- {
		if l.order[i-1].Eq(tx) {
			return l.balanceHist[i-1]
		}
	}
	return l.balance
}

// FeeForTxSize returns the fee a transaction of the given size would need
// at the wallet's configured feePerKB.
func (l *Log) FeeForTxSize(size int) uint64 {
	return txFee(l.feePerKB, size)
}

// UnconfirmedBefore returns every unconfirmed transaction with a
// timestamp earlier than t, oldest first — mirrors
// BWWalletTxUnconfirmedBefore.
func (l *Log) UnconfirmedBefore(t time.Time) []*txcodec.Tx {
	var out []*txcodec.Tx
	for _, tx := range l.order {
		if tx.BlockHeight == txcodec.TxUnconfirmed && tx.Timestamp.Before(t) {
			out = append(out, tx)
		}
	}
	return out
}

// SetFeePerKB updates the fee rate used by FeeForTxSize and coin
// selection's fee estimate.
func (l *Log) SetFeePerKB(feePerKB uint64) {
	l.feePerKB = feePerKB
}

// FeePerKB returns the wallet's configured fee rate.
func (l *Log) FeePerKB() uint64 {
	return l.feePerKB
}

// BlockHeight returns the last block height this log knows about.
func (l *Log) BlockHeight() uint32 {
	return l.blockHeight
}
