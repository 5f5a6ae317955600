// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txcodec

import (
	"bytes"
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

func writeUint32LE(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64LE(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeVarInt(buf *bytes.Buffer, v uint64) {
	// wire.WriteVarInt never errors writing into a bytes.Buffer.
	_ = wire.WriteVarInt(buf, 0, v)
}

func varIntSize(v uint64) int {
	return wire.VarIntSerializeSize(v)
}

func writeInputData(buf *bytes.Buffer, in *Input) {
	buf.Write(in.PrevHash[:])
	writeUint32LE(buf, in.PrevIndex)
	writeVarInt(buf, uint64(len(in.Signature)))
	buf.Write(in.Signature)
	if in.Amount != 0 {
		writeUint64LE(buf, uint64(in.Amount))
	}
	writeUint32LE(buf, in.Sequence)
}

func inputDataSize(in *Input) int {
	size := chainhash.HashSize + 4 + varIntSize(uint64(len(in.Signature))) + len(in.Signature) + 4
	if in.Amount != 0 {
		size += 8
	}
	return size
}

func writeOutput(buf *bytes.Buffer, out *Output) {
	writeUint64LE(buf, uint64(out.Amount))
	writeVarInt(buf, uint64(len(out.Script)))
	buf.Write(out.Script)
}

func writeAllOutputs(buf *bytes.Buffer, tx *Tx) {
	for _, out := range tx.Outputs {
		writeOutput(buf, out)
	}
}
