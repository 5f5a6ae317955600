// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txlog

import (
	"encoding/binary"
	"time"

	"github.com/btcsuite/bwspv/addr"
	"github.com/btcsuite/bwspv/txcodec"
	"github.com/btcsuite/bwspv/walletdb"
)

// txBucketName is the root-level bucket every persisted transaction is
// stored under, keyed by transaction hash.
var txBucketName = []byte("transactions")

// recordHeaderSize is the fixed-width prefix (block height, Unix
// timestamp) stored ahead of each transaction's wire serialization.
const recordHeaderSize = 4 + 8

// Persist writes every transaction currently in the log to ns, replacing
// whatever was stored there before — the walletdb counterpart of wtxmgr's
// bucket-per-record persistence, adapted to this log's in-memory ordering
// model (the order itself is recomputed from BlockHeight/Timestamp on
// Load, not stored).
func (l *Log) Persist(ns walletdb.Namespace) error {
	return ns.Update(func(tx walletdb.Tx) error {
		root := tx.RootBucket()
		if err := root.DeleteBucket(txBucketName); err != nil && err != walletdb.ErrBucketNotFound {
			return err
		}
		b, err := root.CreateBucket(txBucketName)
		if err != nil {
			return err
		}
		for _, t := range l.order {
			if err := putTx(b, t); err != nil {
				return err
			}
		}
		return nil
	})
}

func putTx(b walletdb.Bucket, t *txcodec.Tx) error {
	raw := t.Serialize()
	rec := make([]byte, recordHeaderSize+len(raw))
	binary.LittleEndian.PutUint32(rec[0:4], uint32(t.BlockHeight))
	binary.LittleEndian.PutUint64(rec[4:12], uint64(t.Timestamp.Unix()))
	copy(rec[recordHeaderSize:], raw)
	return b.Put(t.Hash[:], rec)
}

// Load reads every transaction persisted under ns and registers it with l,
// restoring the log, UTXO set, and balance a prior Persist call saved.
// params must match the address chains l was constructed with.
func (l *Log) Load(ns walletdb.Namespace, params addr.Params) error {
	return ns.View(func(tx walletdb.Tx) error {
		root := tx.RootBucket()
		if root == nil {
			return nil
		}
		b := root.Bucket(txBucketName)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			if len(v) < recordHeaderSize {
				return nil
			}
			height := int32(binary.LittleEndian.Uint32(v[0:4]))
			ts := time.Unix(int64(binary.LittleEndian.Uint64(v[4:12])), 0)

			t, err := txcodec.Parse(v[recordHeaderSize:], params)
			if err != nil {
				return err
			}
			t.BlockHeight = height
			t.Timestamp = ts
			l.Register(t)
			return nil
		})
	})
}
