// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txrules holds the relay-fee and dust policy checks coin
// selection and transaction construction apply before handing a
// transaction back to the caller — generalized from the teacher's
// Decred-flavored txrules to this core's own Output/Amount types.
package txrules

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/bwspv/txcodec"
)

// DefaultRelayFeePerKb is the default minimum relay fee policy, matching
// the codec's own TxFeePerKB constant.
const DefaultRelayFeePerKb btcutil.Amount = txcodec.TxFeePerKB

// IsDustAmount reports whether amount, paid to a script of the given
// size, would be considered dust at relayFeePerKb — the network cost of
// spending it (input size plus output size) exceeds a third of what it's
// worth relaying. The input is sized as a compressed P2PKH redeem input
// (txcodec.TxInputSize, 148 bytes), so a 25-byte P2PKH output at 1000
// sat/kB is dust below txcodec.TxMinOutputAmount.
func IsDustAmount(amount btcutil.Amount, scriptSize int, relayFeePerKb btcutil.Amount) bool {
	totalSize := 8 + wireVarIntSerializeSize(uint64(scriptSize)) + scriptSize + txcodec.TxInputSize
	return int64(amount)*1000/(3*int64(totalSize)) < int64(relayFeePerKb)
}

// IsDustOutput reports whether output is dust at relayFeePerKb.
func IsDustOutput(output *txcodec.Output, relayFeePerKb btcutil.Amount) bool {
	return IsDustAmount(btcutil.Amount(output.Amount), len(output.Script), relayFeePerKb)
}

// Transaction rule violations.
var (
	ErrAmountNegative   = errors.New("transaction output amount is negative")
	ErrAmountExceedsMax = errors.New("transaction output amount exceeds maximum value")
	ErrOutputIsDust     = errors.New("transaction output is dust")
)

// CheckOutput performs the consensus and relay-policy checks a newly
// built output must pass before coinselect will include it.
func CheckOutput(output *txcodec.Output, relayFeePerKb btcutil.Amount) error {
	if output.Amount < 0 {
		return ErrAmountNegative
	}
	if output.Amount > txcodec.MaxMoney {
		return ErrAmountExceedsMax
	}
	if IsDustOutput(output, relayFeePerKb) {
		return ErrOutputIsDust
	}
	return nil
}

// FeeForSerializeSize calculates the required fee for a transaction of
// the given serialized size under relayFeePerKb.
func FeeForSerializeSize(relayFeePerKb btcutil.Amount, txSerializeSize int) btcutil.Amount {
	fee := relayFeePerKb * btcutil.Amount(txSerializeSize) / 1000

	if fee == 0 && relayFeePerKb > 0 {
		fee = relayFeePerKb
	}
	if fee < 0 || fee > txcodec.MaxMoney {
		fee = txcodec.MaxMoney
	}
	return fee
}

// wireVarIntSerializeSize mirrors wire.VarIntSerializeSize without
// importing wire into this leaf package solely for a four-branch integer
// size calculation.
func wireVarIntSerializeSize(val uint64) int {
	switch {
	case val < 0xfd:
		return 1
	case val <= 0xffff:
		return 3
	case val <= 0xffffffff:
		return 5
	default:
		return 9
	}
}
