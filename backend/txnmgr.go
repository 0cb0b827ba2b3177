/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package backend

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/xelabs/go-mysqlstack/xlog"
)

// TxnManager tuple.
type TxnManager struct {
	log        *xlog.Log
	registry   *Registry
	identity   *Identity
	txnz       *Txnz
	txnid      uint64
	txnNums    int64
	commitLock sync.RWMutex
}

// NewTxnManager creates new TxnManager.
func NewTxnManager(log *xlog.Log, registry *Registry, identity *Identity) *TxnManager {
	return &TxnManager{
		log:      log,
		registry: registry,
		identity: identity,
		txnz:     NewTxnz(),
		txnid:    0,
	}
}

// GetID returns a new txnid.
func (mgr *TxnManager) GetID() uint64 {
	return atomic.AddUint64(&mgr.txnid, 1)
}

// Add used to add a txn to mgr.
func (mgr *TxnManager) Add() error {
	atomic.AddInt64(&mgr.txnNums, 1)
	return nil
}

// Remove used to remove a txn from mgr.
func (mgr *TxnManager) Remove() error {
	atomic.AddInt64(&mgr.txnNums, -1)
	return nil
}

// Count returns the live txns.
func (mgr *TxnManager) Count() int64 {
	return atomic.LoadInt64(&mgr.txnNums)
}

// CreateTxn creates new txn.
func (mgr *TxnManager) CreateTxn() (*Txn, error) {
	if mgr.registry == nil {
		return nil, errors.New("registry.is.NULL")
	}
	txid := mgr.GetID()
	txn := NewTxn(mgr.log, txid, mgr, mgr.registry, mgr.identity)
	mgr.Add()
	return txn, nil
}

// CommitLock used to acquire the commit.
func (mgr *TxnManager) CommitLock() {
	mgr.commitLock.Lock()
}

// CommitUnlock used to release the commit.
func (mgr *TxnManager) CommitUnlock() {
	mgr.commitLock.Unlock()
}

// CommitRLock used to acquire the read lock of commit.
func (mgr *TxnManager) CommitRLock() {
	mgr.commitLock.RLock()
}

// CommitRUnlock used to release the read lock of commit.
func (mgr *TxnManager) CommitRUnlock() {
	mgr.commitLock.RUnlock()
}
