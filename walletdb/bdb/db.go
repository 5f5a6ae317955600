// Copyright (c) 2014 The btcsuite developers
// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bdb

import (
	"io"
	"os"
	"path/filepath"

	"github.com/btcsuite/bwspv/walletdb"
	bolt "go.etcd.io/bbolt"
)

// convertErr converts some bolt errors to the equivalent walletdb error.
func convertErr(err error) error {
	switch err {
	case bolt.ErrDatabaseNotOpen:
		return walletdb.ErrDbNotOpen
	case bolt.ErrInvalid:
		return walletdb.ErrInvalid

	case bolt.ErrTxNotWritable:
		return walletdb.ErrTxNotWritable
	case bolt.ErrTxClosed:
		return walletdb.ErrTxClosed

	case bolt.ErrBucketNotFound:
		return walletdb.ErrBucketNotFound
	case bolt.ErrBucketExists:
		return walletdb.ErrBucketExists
	case bolt.ErrBucketNameRequired:
		return walletdb.ErrBucketNameRequired
	case bolt.ErrKeyRequired:
		return walletdb.ErrKeyRequired
	case bolt.ErrKeyTooLarge:
		return walletdb.ErrKeyTooLarge
	case bolt.ErrValueTooLarge:
		return walletdb.ErrValueTooLarge
	case bolt.ErrIncompatibleValue:
		return walletdb.ErrIncompatibleValue
	}
	return err
}

// bucket is a walletdb.Bucket implementation backed by a bolt bucket.
type bucket bolt.Bucket

func (b *bucket) parent() *bolt.Bucket { return (*bolt.Bucket)(b) }

func (b *bucket) Bucket(key []byte) walletdb.Bucket {
	boltBucket := b.parent().Bucket(key)
	if boltBucket == nil {
		return nil
	}
	return (*bucket)(boltBucket)
}

func (b *bucket) CreateBucket(key []byte) (walletdb.Bucket, error) {
	boltBucket, err := b.parent().CreateBucket(key)
	if err != nil {
		return nil, convertErr(err)
	}
	return (*bucket)(boltBucket), nil
}

func (b *bucket) CreateBucketIfNotExists(key []byte) (walletdb.Bucket, error) {
	boltBucket, err := b.parent().CreateBucketIfNotExists(key)
	if err != nil {
		return nil, convertErr(err)
	}
	return (*bucket)(boltBucket), nil
}

func (b *bucket) DeleteBucket(key []byte) error {
	return convertErr(b.parent().DeleteBucket(key))
}

func (b *bucket) ForEach(fn func(k, v []byte) error) error {
	return convertErr(b.parent().ForEach(fn))
}

func (b *bucket) Writable() bool {
	return b.parent().Writable()
}

func (b *bucket) Put(key, value []byte) error {
	return convertErr(b.parent().Put(key, value))
}

func (b *bucket) Get(key []byte) []byte {
	return b.parent().Get(key)
}

func (b *bucket) Delete(key []byte) error {
	return convertErr(b.parent().Delete(key))
}

func (b *bucket) Cursor() walletdb.Cursor {
	return (*cursor)(b.parent().Cursor())
}

// cursor is a walletdb.Cursor implementation backed by a bolt cursor.
type cursor bolt.Cursor

func (c *cursor) parent() *bolt.Cursor { return (*bolt.Cursor)(c) }

func (c *cursor) Bucket() walletdb.Bucket {
	return (*bucket)(c.parent().Bucket())
}

func (c *cursor) Delete() error {
	return convertErr(c.parent().Delete())
}

func (c *cursor) First() (key, value []byte) { return c.parent().First() }
func (c *cursor) Last() (key, value []byte)  { return c.parent().Last() }
func (c *cursor) Next() (key, value []byte)  { return c.parent().Next() }
func (c *cursor) Prev() (key, value []byte)  { return c.parent().Prev() }

func (c *cursor) Seek(seek []byte) (key, value []byte) {
	return c.parent().Seek(seek)
}

// transaction is a walletdb.Tx implementation backed by a bolt transaction,
// scoped to the single top-level bucket its owning Namespace was opened
// against.
type transaction struct {
	boltTx *bolt.Tx
	nsKey  []byte
}

// RootBucket returns the namespace's top-level bucket, creating it on a
// writable transaction if this is the first access.
func (tx *transaction) RootBucket() walletdb.Bucket {
	boltBucket := tx.boltTx.Bucket(tx.nsKey)
	if boltBucket == nil && tx.boltTx.Writable() {
		var err error
		boltBucket, err = tx.boltTx.CreateBucket(tx.nsKey)
		if err != nil {
			return nil
		}
	}
	if boltBucket == nil {
		return nil
	}
	return (*bucket)(boltBucket)
}

func (tx *transaction) Commit() error {
	return convertErr(tx.boltTx.Commit())
}

func (tx *transaction) Rollback() error {
	return convertErr(tx.boltTx.Rollback())
}

// namespace is a walletdb.Namespace implementation: every operation it
// performs is scoped to the top-level bucket keyed by nsKey, the way the
// original Namespace concept lets one bolt.DB serve several independent
// callers without their bucket trees colliding.
type namespace struct {
	boltDB *bolt.DB
	nsKey  []byte
}

func (n *namespace) Begin(writable bool) (walletdb.Tx, error) {
	boltTx, err := n.boltDB.Begin(writable)
	if err != nil {
		return nil, convertErr(err)
	}
	return &transaction{boltTx: boltTx, nsKey: n.nsKey}, nil
}

func (n *namespace) View(fn func(walletdb.Tx) error) error {
	return convertErr(n.boltDB.View(func(boltTx *bolt.Tx) error {
		return fn(&transaction{boltTx: boltTx, nsKey: n.nsKey})
	}))
}

func (n *namespace) Update(fn func(walletdb.Tx) error) error {
	return convertErr(n.boltDB.Update(func(boltTx *bolt.Tx) error {
		return fn(&transaction{boltTx: boltTx, nsKey: n.nsKey})
	}))
}

// db is a walletdb.DB implementation backed by a single bolt.DB file, with
// namespaces multiplexed as distinct top-level buckets within it.
type db bolt.DB

func (d *db) parent() *bolt.DB { return (*bolt.DB)(d) }

func (d *db) Namespace(key []byte) (walletdb.Namespace, error) {
	return &namespace{boltDB: d.parent(), nsKey: append([]byte(nil), key...)}, nil
}

func (d *db) DeleteNamespace(key []byte) error {
	return convertErr(d.parent().Update(func(tx *bolt.Tx) error {
		return tx.DeleteBucket(key)
	}))
}

func (d *db) Copy(w io.Writer) error {
	return convertErr(d.parent().View(func(tx *bolt.Tx) error {
		return tx.Copy(w)
	}))
}

func (d *db) Close() error {
	return convertErr(d.parent().Close())
}

func fileExists(name string) bool {
	if _, err := os.Stat(name); os.IsNotExist(err) {
		return false
	}
	return true
}

// openDB opens the bolt database at dbPath, creating it (and its parent
// directories) first when create is true.
func openDB(dbPath string, create bool) (walletdb.DB, error) {
	if !create && !fileExists(dbPath) {
		return nil, walletdb.ErrDbDoesNotExist
	}
	if create {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
			return nil, err
		}
	}

	boltDB, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, convertErr(err)
	}
	return (*db)(boltDB), nil
}
