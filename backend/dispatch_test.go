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
	"github.com/xelabs/go-mysqlstack/xlog"
)

func TestDispatchWaitAll(t *testing.T) {
	defer leaktest.Check(t)()
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	fakedb, registry, cleanup := MockRegistry(log, 3)
	defer cleanup()

	links := MockLinkSet(fakedb, "sbtest.t1", "s0")
	var conns []*Connection
	var jobs []*Job
	for i := 0; i < 3; i++ {
		conn, err := MockConn(registry, 1, links, i)
		assert.Nil(t, err)
		conns = append(conns, conn)
	}
	fakedb.AddQueryDelay("select a", result1, 50)
	fakedb.AddQueryDelay("select b", result2, 150)
	fakedb.AddQueryError("select c", sqldb.NewSQLErrorf(1105, "c.failed"))
	for _, q := range []string{"select a", "select b", "select c"} {
		jobs = append(jobs, &Job{Action: JobFetchRecords, Query: q})
	}

	assert.Nil(t, Dispatch(conns, jobs))
	results, err := WaitAll(conns)
	assert.True(t, IsKind(err, KindJobFailed))
	// Every worker is idle once WaitAll returns, the slow one included.
	for _, conn := range conns {
		assert.Equal(t, WorkerIdle, conn.State())
		assert.Equal(t, "", conn.reuseBlocker())
	}
	assert.Equal(t, result1.Rows, results[0].Rows)
	assert.Equal(t, result2.Rows, results[1].Rows)
	assert.Nil(t, results[2])

	// Mismatch.
	{
		err := Dispatch(conns, jobs[:1])
		assert.NotNil(t, err)
	}

	for _, conn := range conns {
		registry.Free(conn)
	}
}

func TestDispatchBusyRollback(t *testing.T) {
	defer leaktest.Check(t)()
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	fakedb, registry, cleanup := MockRegistry(log, 2)
	defer cleanup()

	links := MockLinkSet(fakedb, "sbtest.t1", "s0")
	c0, err := MockConn(registry, 1, links, 0)
	assert.Nil(t, err)
	c1, err := MockConn(registry, 1, links, 1)
	assert.Nil(t, err)

	fakedb.AddQueryDelay("select long", result1, 3000)
	assert.Nil(t, c1.AssignJob(&Job{Action: JobFetchRecords, Query: "select long"}, false))

	// c1 is busy, the job assigned to c0 is broken back.
	start := time.Now()
	jobs := []*Job{{Action: JobFetchRecords, Query: "select long"}, {Action: JobFetchRecords, Query: "select long"}}
	err = Dispatch([]*Connection{c0, c1}, jobs)
	assert.Equal(t, ErrConnectionBusy, err)
	assert.Equal(t, WorkerIdle, c0.State())
	_, err = c0.Wait()
	assert.True(t, IsKind(err, KindJobCancelled))

	c1.Break()
	c1.Wait()
	assert.True(t, time.Since(start) < 2500*time.Millisecond)
	registry.Free(c0)
	registry.Free(c1)
}

func TestFanout(t *testing.T) {
	defer leaktest.Check(t)()
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	fakedb, registry, cleanup := MockRegistry(log, 2)
	defer cleanup()

	links := MockLinkSet(fakedb, "sbtest.t1", "s0")
	var conns []*Connection
	var jobs []*Job
	for i := 0; i < 2; i++ {
		conn, err := MockConn(registry, 9, links, i)
		assert.Nil(t, err)
		conns = append(conns, conn)
		jobs = append(jobs, &Job{Action: JobFetchRecords, Query: "select 1"})
	}
	fakedb.AddQuery("select 1", result1)

	results, err := Fanout(conns, jobs)
	assert.Nil(t, err)
	assert.Equal(t, 2, len(results))
	for _, conn := range conns {
		registry.Release(conn)
	}
	assert.Equal(t, 2, registry.Stats().Idle)
}

func TestFanoutOverlap(t *testing.T) {
	defer leaktest.Check(t)()
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	fakedb, registry, cleanup := MockRegistry(log, 4)
	defer cleanup()

	links := MockLinkSet(fakedb, "sbtest.t1", "s0")
	var conns []*Connection
	var jobs []*Job
	for i := 0; i < 4; i++ {
		conn, err := MockConn(registry, 3, links, i)
		assert.Nil(t, err)
		assert.Nil(t, conn.Ping(context.Background()))
		conns = append(conns, conn)
		jobs = append(jobs, &Job{Action: JobFetchRecords, Query: "select slow"})
	}
	fakedb.AddQueryDelay("select slow", result1, 200)

	// 4 jobs of 200ms each overlap instead of running one after another.
	start := time.Now()
	results, err := Fanout(conns, jobs)
	elapsed := time.Since(start)
	assert.Nil(t, err)
	assert.Equal(t, 4, len(results))
	for _, qr := range results {
		assert.Equal(t, result1.Rows, qr.Rows)
	}
	assert.True(t, elapsed >= 200*time.Millisecond)
	assert.True(t, elapsed < 600*time.Millisecond, "elapsed:%v", elapsed)

	for _, conn := range conns {
		registry.Free(conn)
	}
}
