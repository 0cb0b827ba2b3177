/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/radondb/fedlink/monitor"

	"go.uber.org/multierr"
)

type txnXAState int32

const (
	txnXAStateNone txnXAState = iota
	txnXAStateStart
	txnXAStateEnd
	txnXAStateEndFinished
	txnXAStatePrepare
	txnXAStatePrepareFinished
	txnXAStateCommit
	txnXAStateCommitFinished
	txnXAStateRollback
	txnXAStateRollbackFinished
)

// BeginXA starts a two-phase transaction, XA START is queued on every
// connection at its first use.
func (txn *Txn) BeginXA() error {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	txn.twopc = true
	txn.inTxn = true
	txn.xid = fmt.Sprintf("fedlink-%s-%v-%d", txn.identity.serverID, time.Now().Format("20060102150405"), txn.id)
	txn.xaState.Store(int32(txnXAStateStart))
	return nil
}

// started returns the connections the transaction really began on, in
// tree order.
func (txn *Txn) started() []*Connection {
	var conns []*Connection
	for _, conn := range txn.tree.Conns() {
		if conn.pendingStructural() {
			continue
		}
		conns = append(conns, conn)
	}
	return conns
}

// xaPhase runs one XA statement on the connections in tree order and
// stops at the first failed branch.
func (txn *Txn) xaPhase(conns []*Connection, stmt string, state, finished txnXAState) error {
	txn.xaState.Store(int32(state))
	defer txn.xaState.Store(int32(finished))

	query := fmt.Sprintf("%s '%s'", stmt, txn.xid)
	var err error
	for _, conn := range conns {
		if _, err = conn.Execute(context.Background(), query); err != nil {
			txn.log.Error("txn[%d].xa[%s].on[%s].error:%+v", txn.id, query, conn.Address(), err)
			break
		}
	}
	result := "ok"
	if err != nil {
		result = "error"
		txn.incErrors()
	}
	monitor.QueryTotalCounterInc(stmt, result)
	return err
}

// xaFinish runs XA COMMIT or XA ROLLBACK with retries, an unknown xid
// means an earlier try already finished the branch.
func (txn *Txn) xaFinish(conn *Connection, query string) error {
	var err error
	retries := txn.registry.dconf.XARetries
	if retries < 1 {
		retries = 1
	}
	for retry := 0; retry < retries; retry++ {
		if _, err = conn.Execute(context.Background(), query); err == nil {
			return nil
		}
		if sqlCode(err) == ER_XAER_NOTA {
			txn.log.Warning("txn[%d].xa[%s].on[%s].XAE04.unknown.xid", txn.id, query, conn.Address())
			return nil
		}
		txn.log.Error("txn[%d].xa[%s].on[%s].retried[%d/%d].error:%+v", txn.id, query, conn.Address(), retry, retries, err)
		if conn.Broken() {
			break
		}
		time.Sleep(time.Duration(retry) * 100 * time.Millisecond)
	}
	return err
}

// xaFinishAll finishes every branch in tree order, a failed branch does
// not stop the others.
func (txn *Txn) xaFinishAll(conns []*Connection, stmt string, state, finished txnXAState) error {
	txn.xaState.Store(int32(state))
	defer txn.xaState.Store(int32(finished))

	query := fmt.Sprintf("%s '%s'", stmt, txn.xid)
	var errs error
	for _, conn := range conns {
		errs = multierr.Append(errs, txn.xaFinish(conn, query))
	}
	result := "ok"
	if errs != nil {
		result = "error"
		txn.incErrors()
	}
	monitor.QueryTotalCounterInc(stmt, result)
	return errs
}

// xaCommit commits with one phase on a single connection and with XA
// PREPARE then XA COMMIT on more. A failed prepare rolls every branch back.
func (txn *Txn) xaCommit() error {
	defer txn.endTransaction()

	conns := txn.started()
	if len(conns) == 0 {
		return nil
	}

	txn.mgr.CommitLock()
	defer txn.mgr.CommitUnlock()

	if err := txn.xaPhase(conns, "XA END", txnXAStateEnd, txnXAStateEndFinished); err != nil {
		txn.xaFinishAll(conns, "XA ROLLBACK", txnXAStateRollback, txnXAStateRollbackFinished)
		return err
	}
	if len(conns) == 1 {
		txn.xaState.Store(int32(txnXAStateCommit))
		defer txn.xaState.Store(int32(txnXAStateCommitFinished))
		query := fmt.Sprintf("XA COMMIT '%s' ONE PHASE", txn.xid)
		if err := txn.xaFinish(conns[0], query); err != nil {
			txn.incErrors()
			monitor.QueryTotalCounterInc("XA COMMIT", "error")
			return err
		}
		monitor.QueryTotalCounterInc("XA COMMIT", "ok")
		return nil
	}

	if err := txn.xaPhase(conns, "XA PREPARE", txnXAStatePrepare, txnXAStatePrepareFinished); err != nil {
		txn.xaFinishAll(conns, "XA ROLLBACK", txnXAStateRollback, txnXAStateRollbackFinished)
		return err
	}
	return txn.xaFinishAll(conns, "XA COMMIT", txnXAStateCommit, txnXAStateCommitFinished)
}

func (txn *Txn) xaRollback() error {
	defer txn.endTransaction()

	conns := txn.started()
	if len(conns) == 0 {
		return nil
	}

	txn.mgr.CommitLock()
	defer txn.mgr.CommitUnlock()

	// A branch already ended rejects XA END, the rollback still goes on.
	txn.xaPhase(conns, "XA END", txnXAStateEnd, txnXAStateEndFinished)
	return txn.xaFinishAll(conns, "XA ROLLBACK", txnXAStateRollback, txnXAStateRollbackFinished)
}
