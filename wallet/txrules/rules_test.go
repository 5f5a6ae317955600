// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txrules

import (
	"testing"

	"github.com/btcsuite/bwspv/txcodec"
	"github.com/stretchr/testify/require"
)

func TestIsDustOutput(t *testing.T) {
	p2pkhScript := make([]byte, 25)

	tests := []struct {
		name   string
		amount int64
		isDust bool
	}{
		{"well above dust", 10000, false},
		{"at the floor", int64(txcodec.TxMinOutputAmount), false},
		{"zero", 0, true},
		{"one satoshi", 1, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := &txcodec.Output{Amount: tc.amount, Script: p2pkhScript}
			require.Equal(t, tc.isDust, IsDustOutput(out, DefaultRelayFeePerKb))
		})
	}
}

func TestCheckOutput(t *testing.T) {
	out := &txcodec.Output{Amount: -1, Script: make([]byte, 25)}
	require.Equal(t, ErrAmountNegative, CheckOutput(out, DefaultRelayFeePerKb))

	out = &txcodec.Output{Amount: txcodec.MaxMoney + 1, Script: make([]byte, 25)}
	require.Equal(t, ErrAmountExceedsMax, CheckOutput(out, DefaultRelayFeePerKb))

	out = &txcodec.Output{Amount: 1, Script: make([]byte, 25)}
	require.Equal(t, ErrOutputIsDust, CheckOutput(out, DefaultRelayFeePerKb))

	out = &txcodec.Output{Amount: 50000, Script: make([]byte, 25)}
	require.NoError(t, CheckOutput(out, DefaultRelayFeePerKb))
}

func TestFeeForSerializeSize(t *testing.T) {
	require.Equal(t, DefaultRelayFeePerKb, FeeForSerializeSize(DefaultRelayFeePerKb, 1))
	require.Equal(t, DefaultRelayFeePerKb*2, FeeForSerializeSize(DefaultRelayFeePerKb, 2000))
}
