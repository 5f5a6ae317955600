// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package txrules provides functions that help establish whether a
transaction output abides by non-consensus relay policy: the dust
threshold and minimum-relay-fee calculations a wallet applies before
handing a constructed transaction to the Peer Manager for broadcast.
*/
package txrules
