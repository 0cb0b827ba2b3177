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

	"github.com/stretchr/testify/assert"
)

func TestCommandQueueMerge(t *testing.T) {
	q := NewCommandQueue()
	q.Enqueue(SetAutocommit(true))
	q.Enqueue(SetIsolation("READ-COMMITTED"))
	q.Enqueue(SetAutocommit(false))

	// One entry per kind, the last value wins, the first position stays.
	{
		settings := q.Settings()
		assert.Equal(t, 2, len(settings))
		assert.Equal(t, CmdAutocommit, settings[0].Kind)
		assert.Equal(t, "0", settings[0].Value)
		assert.Equal(t, CmdIsolation, settings[1].Kind)
	}

	{
		want := []string{"SET autocommit=0, tx_isolation='READ-COMMITTED'"}
		got := q.Statements()
		assert.Equal(t, want, got)
	}
}

func TestCommandQueueStatements(t *testing.T) {
	q := NewCommandQueue()
	q.Enqueue(Command{Kind: CmdConnect})
	q.Enqueue(SetWaitTimeout(28800))
	q.Enqueue(SetTimeZone("+08:00"))
	q.Enqueue(SetSQLMode("STRICT_TRANS_TABLES"))
	q.Enqueue(SetNetReadTimeout(30))
	q.Enqueue(SetNetWriteTimeout(60))
	q.Enqueue(SetLoopCheck("fedlink_lc_db_t1", "[a/db.t1:m:1]"))
	q.Enqueue(StartTransaction())
	q.Enqueue(XAStart("x'1"))

	assert.Equal(t, 9, q.Len())
	want := []string{
		"SET wait_timeout=28800, time_zone='+08:00', sql_mode='STRICT_TRANS_TABLES', net_read_timeout=30, net_write_timeout=60, @fedlink_lc_db_t1='[a/db.t1:m:1]'",
		"START TRANSACTION",
		"XA START 'x\\'1'",
	}
	got := q.Statements()
	assert.Equal(t, want, got)
}

func TestCommandQueueLoopCheckByName(t *testing.T) {
	q := NewCommandQueue()
	q.Enqueue(SetLoopCheck("fedlink_lc_a", "1"))
	q.Enqueue(SetLoopCheck("fedlink_lc_b", "2"))
	q.Enqueue(SetLoopCheck("fedlink_lc_a", "3"))

	want := []string{"SET @fedlink_lc_a='3', @fedlink_lc_b='2'"}
	got := q.Statements()
	assert.Equal(t, want, got)
}

func TestCommandQueueClearAtCommit(t *testing.T) {
	q := NewCommandQueue()
	q.Enqueue(SetAutocommit(false))
	q.Enqueue(StartTransaction())
	q.Enqueue(XAStart("xid"))

	q.ClearAtCommit()
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, []string{"SET autocommit=0"}, q.Statements())

	q.Clear()
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, []string{}, q.Statements())
}

func TestCommandQueueTakeRestore(t *testing.T) {
	q := NewCommandQueue()
	q.Enqueue(Command{Kind: CmdPing})
	q.Enqueue(SetAutocommit(false))
	q.Enqueue(StartTransaction())

	batch := q.take()
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 3, batch.Len())

	// Queued while the batch was out.
	q.Enqueue(SetAutocommit(true))
	q.Enqueue(SetIsolation("SERIALIZABLE"))

	q.restore(batch)
	assert.True(t, q.ping)
	want := []string{"SET autocommit=1, tx_isolation='SERIALIZABLE'", "START TRANSACTION"}
	got := q.Statements()
	assert.Equal(t, want, got)
}

func TestCommandKind(t *testing.T) {
	assert.True(t, CmdAutocommit.IsSetting())
	assert.True(t, CmdLoopCheck.IsSetting())
	assert.False(t, CmdConnect.IsSetting())
	assert.False(t, CmdStartTransaction.IsSetting())
	assert.True(t, CmdXAStart.IsStructural())
	assert.False(t, CmdPing.IsStructural())
	assert.Equal(t, "tx_isolation", CmdIsolation.String())
	assert.Equal(t, "CommandKind(99)", CommandKind(99).String())
}
