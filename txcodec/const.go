// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txcodec

import "math"

// Normative constants from the external interfaces section. These are
// wire-level and fee-model constants shared by the codec, the wallet
// engine, and coin selection; they live here because the codec is the
// lowest leaf package and everything else already imports it.
const (
	TxVersion  = 1
	TxLockTime = 0

	SigHashAll         = 0x01
	SigHashNone        = 0x02
	SigHashSingle      = 0x03
	SigHashAnyoneCanPay = 0x80
	SigHashForkID      = 0x40

	TxFeePerKB   = 1000
	TxOutputSize = 34
	TxInputSize  = 148

	// TxMinOutputAmount = TxFeePerKB*3*(TxOutputSize+TxInputSize)/1000
	TxMinOutputAmount = TxFeePerKB * 3 * (TxOutputSize + TxInputSize) / 1000

	TxMaxSize            = 100000
	TxFreeMaxSize        = 1000
	TxFreeMinPriority    = 57600000
	TxMaxLockHeight      = 500000000
	TxInSequence         = math.MaxUint32
	Satoshis             = 100000000
	MaxMoney             = 84 * 1000000 * Satoshis
	MinFeePerKB          = TxFeePerKB

	PeerMaxConnections   = 3
	MaxConnectFailures   = 20
	PeerProtocolTimeoutSeconds = 20
	PeerMisbehaveStreakLimit   = 10

	// TxUnconfirmed is the sentinel block height for a transaction that
	// has not yet been confirmed.
	TxUnconfirmed = math.MaxInt32
)

// SentinelIndex marks "the whole transaction" rather than a single input,
// the Go analogue of SIZE_MAX in _BWTransactionData's index parameter.
const SentinelIndex = -1
