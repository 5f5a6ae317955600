// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package coinselect builds unsigned, fee-bounded transactions from a
// wallet's UTXO set — the Go counterpart of BWWallet.c's
// BWWalletCreateTxForOutputs, including its abandon/shrink/rebuild
// recursion when a candidate transaction grows past TX_MAX_SIZE, and the
// non-cryptographic output shuffle used to avoid leaking change-output
// position.
package coinselect

import (
	"errors"
	"math/rand"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/bwspv/addr"
	"github.com/btcsuite/bwspv/txcodec"
	"github.com/btcsuite/bwspv/wallet/addrchain"
	"github.com/btcsuite/bwspv/wallet/txlog"
	"github.com/btcsuite/bwspv/wallet/txrules"
)

// ErrInsufficientFunds is returned when the wallet's balance cannot cover
// the requested outputs plus fees, even after shrinking.
var ErrInsufficientFunds = errors.New("coinselect: insufficient funds")

// ErrNoOutputs is returned when outputs is empty.
var ErrNoOutputs = errors.New("coinselect: no outputs")

// OutputSpec is one requested payment: an amount and a destination
// scriptPubKey. Amount is a btcutil.Amount so callers work in whole
// satoshi units the same way the rest of the btcsuite ecosystem does,
// even though the wire-level Tx stores a plain int64.
type OutputSpec struct {
	Amount btcutil.Amount
	Script []byte
}

// minOutputAmount mirrors BWWalletMinOutputAmount: the absolute dust
// floor, raised if the configured feePerKB demands more.
func minOutputAmount(feePerKB uint64) int64 {
	amount := (uint64(txcodec.TxMinOutputAmount)*feePerKB + txcodec.MinFeePerKB - 1) / txcodec.MinFeePerKB
	if amount > txcodec.TxMinOutputAmount {
		return int64(amount)
	}
	return txcodec.TxMinOutputAmount
}

// MaxOutputAmount returns the most that can be sent to a single address
// after fees, given the current UTXO set — mirrors
// BWWalletMaxOutputAmount.
func MaxOutputAmount(log *txlog.Log) int64 {
	var amount uint64
	var inCount int

	for _, u := range log.UTXOs() {
		tx, ok := log.TransactionForHash(u.Hash)
		if !ok || int(u.Index) >= len(tx.Outputs) {
			continue
		}
		inCount++
		amount += uint64(tx.Outputs[u.Index].Amount)
	}

	txSize := 8 + varIntSize(uint64(inCount)) + txcodec.TxInputSize*inCount +
		varIntSize(2) + txcodec.TxOutputSize*2
	fee := txFee(log.FeePerKB(), txSize)

	if amount > fee {
		return int64(amount - fee)
	}
	return 0
}

func txFee(feePerKB uint64, size int) uint64 {
	standard := uint64((size+999)/1000) * txcodec.TxFeePerKB
	byRate := ((uint64(size)*feePerKB/1000 + 99) / 100) * 100
	if byRate > standard {
		return byRate
	}
	return standard
}

func varIntSize(v uint64) int {
	switch {
	case v < 0xfd:
		return 1
	case v <= 0xffff:
		return 3
	case v <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// CreateTxForOutputs builds an unsigned transaction paying every output
// in outputs, selecting UTXOs in the order txlog exposes them and
// appending a change output back to a fresh internal-chain address when
// the leftover exceeds the dust floor. It mirrors
// BWWalletCreateTxForOutputs's abandon/shrink/rebuild behavior when the
// candidate grows past TX_MAX_SIZE.
func CreateTxForOutputs(log *txlog.Log, outputs []OutputSpec, params addr.Params) (*txcodec.Tx, error) {
	if len(outputs) == 0 {
		return nil, ErrNoOutputs
	}

	tx := txcodec.New()
	var amount int64
	for _, o := range outputs {
		out := &txcodec.Output{Amount: int64(o.Amount), Script: o.Script}
		if err := txrules.CheckOutput(out, txrules.DefaultRelayFeePerKb); err != nil {
			return nil, err
		}
		tx.AddOutput(int64(o.Amount), o.Script, params)
		amount += int64(o.Amount)
	}

	minAmount := minOutputAmount(log.FeePerKB())
	feeAmount := int64(txFee(log.FeePerKB(), tx.SerializeSize()+txcodec.TxOutputSize))

	var balance int64
	utxos := log.UTXOs()

	for _, u := range utxos {
		prevTx, ok := log.TransactionForHash(u.Hash)
		if !ok || int(u.Index) >= len(prevTx.Outputs) {
			continue
		}
		out := prevTx.Outputs[u.Index]
		tx.AddInput(u.Hash, u.Index, out.Amount, out.Script, nil, txcodec.TxInSequence, params)

		if tx.SerializeSize()+txcodec.TxOutputSize > txcodec.TxMaxSize {
			// Abandon this candidate. If total wallet funds genuinely
			// can't cover a reasonably-sized rebuild, give up entirely.
			requiredForRebuild := amount + int64(txFee(log.FeePerKB(),
				10+len(utxos)*txcodec.TxInputSize+(len(outputs)+1)*txcodec.TxOutputSize))
			if int64(log.Balance()) < requiredForRebuild {
				return nil, ErrInsufficientFunds
			}

			if int64(outputs[len(outputs)-1].Amount) > amount+feeAmount+minAmount-balance {
				shrunk := append([]OutputSpec(nil), outputs...)
				shrunk[len(shrunk)-1].Amount -= btcutil.Amount(amount + feeAmount - balance)
				return CreateTxForOutputs(log, shrunk, params)
			}
			return CreateTxForOutputs(log, outputs[:len(outputs)-1], params)
		}

		balance += out.Amount

		feeAmount = int64(txFee(log.FeePerKB(), tx.SerializeSize()+txcodec.TxOutputSize))
		if int64(log.Balance()) > amount+feeAmount {
			feeAmount += (int64(log.Balance()) - (amount + feeAmount)) % 100
		}

		if balance == amount+feeAmount || balance >= amount+feeAmount+minAmount {
			break
		}
	}

	if balance < amount+feeAmount {
		return nil, ErrInsufficientFunds
	}

	changeAmount := balance - (amount + feeAmount)
	if changeAmount > minAmount {
		changeAddrs, err := log.InternalChain().UnusedAddrs(1, addrchain.GapLimitInternal)
		if err == nil && len(changeAddrs) == 1 {
			changeScript, err := addr.ScriptPubKey(changeAddrs[0], params)
			if err == nil {
				changeOut := &txcodec.Output{Amount: changeAmount, Script: changeScript}
				if !txrules.IsDustOutput(changeOut, txrules.DefaultRelayFeePerKb) {
					tx.AddOutput(changeAmount, changeScript, params)
					shuffleOutputs(tx)
				}
			}
		}
	}

	return tx, nil
}

// shuffleOutputs reorders tx's outputs with a non-cryptographic
// Fisher-Yates shuffle, matching BWTransactionShuffleOutputs /
// BWRand — used only to avoid leaking which output is change by
// position, never for anything security-sensitive.
func shuffleOutputs(tx *txcodec.Tx) {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	n := len(tx.Outputs)
	for i := 0; i+1 < n; i++ {
		j := i + rnd.Intn(n-i)
		if j != i {
			tx.Outputs[i], tx.Outputs[j] = tx.Outputs[j], tx.Outputs[i]
		}
	}
}
