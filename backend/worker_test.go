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
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/xelabs/go-mysqlstack/sqldb"
	"github.com/xelabs/go-mysqlstack/sqlparser/depends/sqltypes"
	"github.com/xelabs/go-mysqlstack/xlog"
)

func TestWorkerRun(t *testing.T) {
	defer leaktest.Check(t)()
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	fakedb, registry, cleanup := MockRegistry(log, 1)
	defer cleanup()

	links := MockLinkSet(fakedb, "sbtest.t1", "s0")
	conn, err := MockConn(registry, 1, links, 0)
	assert.Nil(t, err)
	defer registry.Free(conn)

	fakedb.AddQuery("select * from t1_0", result1)
	fakedb.AddQuery("select * from t1_1", result2)

	// connect.
	{
		err := conn.AssignJob(&Job{Action: JobConnect}, true)
		assert.Nil(t, err)
		assert.Equal(t, WorkerIdle, conn.State())
	}

	// fetch-records.
	{
		qr, err := conn.Run(&Job{Action: JobFetchRecords, Query: "select * from t1_0", Table: "sbtest.t1"})
		assert.Nil(t, err)
		assert.Equal(t, result1.Rows, qr.Rows)
	}

	// run-queued-search flushes then runs every query.
	{
		conn.Enqueue(SetAutocommit(false))
		job := &Job{Action: JobRunQueuedSearch, Queries: []string{"select * from t1_0", "select * from t1_1"}}
		qr, err := conn.Run(job)
		assert.Nil(t, err)
		assert.Equal(t, 4, len(qr.Rows))
		assert.Equal(t, 1, fakedb.GetQueryCalledNum("set autocommit=0"))
	}

	// disconnect, the next job dials again.
	{
		tid := conn.ThreadID()
		_, err := conn.Run(&Job{Action: JobDisconnect})
		assert.Nil(t, err)
		assert.Equal(t, uint32(0), conn.ThreadID())

		_, err = conn.Run(&Job{Action: JobFetchRecords, Query: "select * from t1_0"})
		assert.Nil(t, err)
		assert.NotEqual(t, tid, conn.ThreadID())
	}

	// Job error.
	{
		fakedb.AddQueryError("select * from t1_err", sqldb.NewSQLErrorf(1146, "Table 't1_err' doesn't exist"))
		_, err := conn.Run(&Job{Action: JobFetchRecords, Query: "select * from t1_err", Table: "sbtest.t1"})
		assert.True(t, IsKind(err, KindJobFailed))
		assert.Equal(t, uint16(1146), err.(*Error).Code)
		assert.Equal(t, WorkerIdle, conn.State())
	}
}

func TestWorkerBusy(t *testing.T) {
	defer leaktest.Check(t)()
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	fakedb, registry, cleanup := MockRegistry(log, 1)
	defer cleanup()

	links := MockLinkSet(fakedb, "sbtest.t1", "s0")
	conn, err := MockConn(registry, 1, links, 0)
	assert.Nil(t, err)
	defer registry.Free(conn)

	fakedb.AddQueryDelay("select sleep", result1, 200)
	err = conn.AssignJob(&Job{Action: JobFetchRecords, Query: "select sleep"}, false)
	assert.Nil(t, err)

	// A second job is refused while the first runs.
	{
		err := conn.AssignJob(&Job{Action: JobFetchRecords, Query: "select sleep"}, false)
		assert.Equal(t, ErrConnectionBusy, err)
		_, err = conn.Execute(context.Background(), "select 1")
		assert.Equal(t, ErrConnectionBusy, err)
		assert.Equal(t, "busy", conn.reuseBlocker())
	}

	// Done but never waited.
	{
		time.Sleep(400 * time.Millisecond)
		assert.Equal(t, WorkerIdle, conn.State())
		assert.Equal(t, "unobserved", conn.reuseBlocker())
		err := conn.AssignJob(&Job{Action: JobFetchRecords, Query: "select sleep"}, false)
		assert.Equal(t, ErrResultUnobserved, err)
	}

	qr, err := conn.Wait()
	assert.Nil(t, err)
	assert.Equal(t, result1.Rows, qr.Rows)
	assert.Equal(t, "", conn.reuseBlocker())
}

func TestWorkerBreak(t *testing.T) {
	defer leaktest.Check(t)()
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	fakedb, registry, cleanup := MockRegistry(log, 1)
	defer cleanup()

	links := MockLinkSet(fakedb, "sbtest.t1", "s0")
	conn, err := MockConn(registry, 1, links, 0)
	assert.Nil(t, err)
	defer registry.Free(conn)
	assert.Nil(t, conn.AssignJob(&Job{Action: JobConnect}, true))

	fakedb.AddQueryDelay("select long", result1, 5000)
	err = conn.AssignJob(&Job{Action: JobFetchRecords, Query: "select long", Table: "sbtest.t1"}, false)
	assert.Nil(t, err)
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	assert.True(t, conn.Break())
	_, err = conn.Wait()
	assert.True(t, IsKind(err, KindJobCancelled))
	assert.Equal(t, ER_QUERY_INTERRUPTED, ToSQLError(err).Num)
	assert.True(t, time.Since(start) < 4*time.Second)
	assert.Equal(t, WorkerIdle, conn.State())

	// Nothing left to break.
	assert.False(t, conn.Break())
}

func TestWorkerTimeout(t *testing.T) {
	defer leaktest.Check(t)()
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	fakedb, registry, cleanup := MockRegistry(log, 1)
	defer cleanup()

	links := MockLinkSet(fakedb, "sbtest.t1", "s0")
	conn, err := MockConn(registry, 1, links, 0)
	assert.Nil(t, err)
	defer registry.Free(conn)
	assert.Nil(t, conn.AssignJob(&Job{Action: JobConnect}, true))

	fakedb.AddQueryDelay("select long", result1, 5000)
	_, err = conn.Run(&Job{Action: JobFetchRecords, Query: "select long", Timeout: 100 * time.Millisecond})
	assert.True(t, IsKind(err, KindJobFailed))
	assert.Contains(t, err.Error(), "timeout[100ms] exceeded")
	assert.Equal(t, WorkerIdle, conn.State())
}

func TestWorkerChecksum(t *testing.T) {
	defer leaktest.Check(t)()
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	fakedb, registry, cleanup := MockRegistry(log, 1)
	defer cleanup()

	links := MockLinkSet(fakedb, "sbtest.t1", "s0")
	conn, err := MockConn(registry, 1, links, 0)
	assert.Nil(t, err)
	defer registry.Free(conn)

	r := &sqltypes.Result{
		Fields: result1.Fields,
		Rows:   [][]sqltypes.Value{{sqltypes.NewVarChar("sbtest.t1_0"), sqltypes.NewUint64(42)}},
	}
	fakedb.AddQuery(checksumQuery("sbtest.t1_0"), r)
	qr, err := conn.Run(&Job{Action: JobChecksumTable, Table: "sbtest.t1_0"})
	assert.Nil(t, err)
	assert.Equal(t, r.Rows, qr.Rows)
}

func TestJobz(t *testing.T) {
	defer leaktest.Check(t)()
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	fakedb, registry, cleanup := MockRegistry(log, 1)
	defer cleanup()

	links := MockLinkSet(fakedb, "sbtest.t1", "s0")
	conn, err := MockConn(registry, 1, links, 0)
	assert.Nil(t, err)
	defer registry.Free(conn)

	fakedb.AddQueryDelay("select long", result1, 300)
	assert.Nil(t, conn.AssignJob(&Job{Action: JobFetchRecords, Query: "select long"}, false))
	time.Sleep(100 * time.Millisecond)

	rows := registry.RunningJobs()
	assert.Equal(t, 1, len(rows))
	_, other, otherCleanup := MockRegistry(log, 1)
	assert.Equal(t, 0, len(other.RunningJobs()))
	otherCleanup()
	assert.Equal(t, "fetch-records", rows[0].Action)
	assert.Equal(t, conn.ID(), rows[0].ConnID)

	_, err = conn.Wait()
	assert.Nil(t, err)
	assert.Equal(t, 0, len(registry.RunningJobs()))
}
