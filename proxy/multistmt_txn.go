/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package proxy

import (
	"github.com/radondb/fedlink/backend"

	"github.com/xelabs/go-mysqlstack/sqlparser"
	"github.com/xelabs/go-mysqlstack/sqlparser/depends/sqltypes"
)

// handleTransaction used to handle the multi-statement transaction of the
// session: BEGIN/START TRANSACTION, COMMIT and ROLLBACK.
func (spanner *Spanner) handleTransaction(session *session, node *sqlparser.Transaction) (*sqltypes.Result, error) {
	var err error
	switch node.Action {
	case sqlparser.StartTxnStr, sqlparser.BeginTxnStr:
		err = spanner.ExecuteBegin(session)
	case sqlparser.CommitTxnStr:
		err = spanner.ExecuteEnd(session, true)
	case sqlparser.RollbackTxnStr:
		err = spanner.ExecuteEnd(session, false)
	}
	if err != nil {
		return nil, err
	}
	return &sqltypes.Result{}, nil
}

// ExecuteBegin opens the transaction of the session, XA when twopc is
// enabled. An open transaction is committed first.
func (spanner *Spanner) ExecuteBegin(session *session) error {
	log := spanner.log
	if session.openTxn() != nil {
		log.Warning("spanner.execute.begin.implicit.commit.session[%v]", session.session.ID())
		if err := spanner.ExecuteEnd(session, true); err != nil {
			return err
		}
	}

	txn, err := spanner.engine.CreateTxn()
	if err != nil {
		log.Error("spanner.txn.create.error:[%v]", err)
		return err
	}
	if spanner.isTwoPC() {
		err = txn.BeginXA()
	} else {
		err = txn.Begin()
	}
	if err != nil {
		txn.Finish()
		return backend.ToSQLError(err)
	}
	session.setOpenTxn(txn)
	return nil
}

// ExecuteEnd commits or rolls back the open transaction of the session,
// nothing is sent when there is none.
func (spanner *Spanner) ExecuteEnd(session *session, commit bool) error {
	log := spanner.log
	txn := session.openTxn()
	if txn == nil {
		return nil
	}
	session.setOpenTxn(nil)
	defer txn.Finish()

	var err error
	if commit {
		err = txn.Commit()
	} else {
		err = txn.Rollback()
	}
	if err != nil {
		log.Error("spanner.execute.end[commit:%v].txn[%d].error:%+v", commit, txn.TxID(), err)
		return backend.ToSQLError(err)
	}
	return nil
}
