/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package backend

import (
	"testing"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/xelabs/go-mysqlstack/xlog"
)

func TestTxnz(t *testing.T) {
	defer leaktest.Check(t)()
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	fakedb, engine, cleanup := MockEngine(log, 2)
	defer cleanup()

	table, err := engine.Table("sbtest.t1")
	assert.Nil(t, err)
	fakedb.AddQuery("select 1", result1)

	txn, err := engine.CreateTxn()
	assert.Nil(t, err)
	assert.Nil(t, txn.BeginXA())
	_, err = txn.ExecuteScatter(table, "select 1")
	assert.Nil(t, err)

	var found *TxnDetailzRow
	rows := engine.RunningTxns()
	for i := range rows {
		if rows[i].TxnID == txn.TxID() {
			found = &rows[i]
		}
	}
	if assert.NotNil(t, found) {
		assert.Equal(t, txn.XID(), found.XAID)
		assert.Equal(t, "txnStateExecuting", found.State)
		assert.Equal(t, "txnXAStateStart", found.XaState)
		assert.Equal(t, 2, found.Conns)
		assert.NotEqual(t, "", found.Color)
	}

	// Each manager only lists its own transactions.
	{
		other := NewTxnManager(log, engine.Registry(), engine.Identity())
		assert.Equal(t, 0, len(other.RunningTxns()))
	}

	assert.Nil(t, txn.Rollback())
	assert.Nil(t, txn.Finish())
	for _, row := range engine.RunningTxns() {
		assert.NotEqual(t, txn.TxID(), row.TxnID)
	}
}
