/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package backend

import (
	"sync"
	"testing"
	"time"

	"github.com/radondb/fedlink/config"

	"github.com/fortytw2/leaktest"
	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	querypb "github.com/xelabs/go-mysqlstack/sqlparser/depends/query"
	"github.com/xelabs/go-mysqlstack/sqlparser/depends/sqltypes"
	"github.com/xelabs/go-mysqlstack/xlog"
)

func mockStatusResult(rows, dataLength, avg string) *sqltypes.Result {
	return &sqltypes.Result{
		Fields: []*querypb.Field{
			{Name: "Name", Type: querypb.Type_VARCHAR},
			{Name: "Rows", Type: querypb.Type_UINT64},
			{Name: "Avg_row_length", Type: querypb.Type_UINT64},
			{Name: "Data_length", Type: querypb.Type_UINT64},
		},
		Rows: [][]sqltypes.Value{
			{
				sqltypes.MakeTrusted(querypb.Type_VARCHAR, []byte("t")),
				sqltypes.MakeTrusted(querypb.Type_UINT64, []byte(rows)),
				sqltypes.MakeTrusted(querypb.Type_UINT64, []byte(avg)),
				sqltypes.MakeTrusted(querypb.Type_UINT64, []byte(dataLength)),
			},
		},
	}
}

var mockIndexResult = &sqltypes.Result{
	Fields: []*querypb.Field{
		{Name: "Table", Type: querypb.Type_VARCHAR},
		{Name: "Column_name", Type: querypb.Type_VARCHAR},
		{Name: "Cardinality", Type: querypb.Type_INT64},
	},
	Rows: [][]sqltypes.Value{
		{
			sqltypes.MakeTrusted(querypb.Type_VARCHAR, []byte("t")),
			sqltypes.MakeTrusted(querypb.Type_VARCHAR, []byte("id")),
			sqltypes.MakeTrusted(querypb.Type_INT64, []byte("5")),
		},
		{
			sqltypes.MakeTrusted(querypb.Type_VARCHAR, []byte("t")),
			sqltypes.MakeTrusted(querypb.Type_VARCHAR, []byte("name")),
			sqltypes.MakeTrusted(querypb.Type_INT64, []byte("3")),
		},
	},
}

func TestRefresher(t *testing.T) {
	defer leaktest.Check(t)()
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	fakedb, registry, cleanup := MockRegistry(log, 2)
	defer cleanup()

	pool, err := ants.NewPool(2)
	assert.Nil(t, err)
	defer pool.ReleaseTimeout(time.Second)

	table, err := NewTable(fakedb.TableConf("sbtest.t1"))
	assert.Nil(t, err)
	r := NewRefresher(log, config.DefaultRefreshConfig(), registry, pool, table)

	fakedb.AddQuery("SHOW TABLE STATUS FROM `sbtest` LIKE 't1_0'", mockStatusResult("10", "1000", "100"))
	fakedb.AddQuery("SHOW TABLE STATUS FROM `sbtest` LIKE 't1_1'", mockStatusResult("30", "6000", "200"))
	fakedb.AddQueryPattern("show index from .*", mockIndexResult)

	// Table status, the average row length is weighted by rows.
	{
		err := r.RefreshStatus()
		assert.Nil(t, err)
		stats := table.Stats()
		assert.Equal(t, uint64(40), stats.Rows)
		assert.Equal(t, uint64(7000), stats.DataLength)
		assert.Equal(t, "175", stats.AvgRowLength)
		assert.False(t, stats.StsUpdated.IsZero())
	}

	// Cardinality summed per column.
	{
		err := r.RefreshCardinality()
		assert.Nil(t, err)
		stats := table.Stats()
		assert.Equal(t, map[string]int64{"id": 10, "name": 6}, stats.Cardinality)
	}

	// The refresh connections are pooled.
	assert.Equal(t, 0, registry.Stats().Live)
	r.Stop()
}

func TestRefresherError(t *testing.T) {
	defer leaktest.Check(t)()
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	fakedb, registry, cleanup := MockRegistry(log, 2)
	defer cleanup()

	pool, err := ants.NewPool(2)
	assert.Nil(t, err)
	defer pool.ReleaseTimeout(time.Second)

	table, err := NewTable(fakedb.TableConf("sbtest.t1"))
	assert.Nil(t, err)
	r := NewRefresher(log, config.DefaultRefreshConfig(), registry, pool, table)

	// Nothing answers SHOW TABLE STATUS.
	err = r.RefreshStatus()
	assert.NotNil(t, err)
	assert.Equal(t, uint64(0), table.Stats().Rows)
	assert.Equal(t, 0, registry.Stats().Live)
}

func TestRefresherConcurrentProbes(t *testing.T) {
	defer leaktest.Check(t)()
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	fakedb, registry, cleanup := MockRegistry(log, 2)
	defer cleanup()

	pool, err := ants.NewPool(4)
	assert.Nil(t, err)
	defer pool.ReleaseTimeout(time.Second)

	table, err := NewTable(fakedb.TableConf("sbtest.t1"))
	assert.Nil(t, err)
	r := NewRefresher(log, config.DefaultRefreshConfig(), registry, pool, table)

	fakedb.AddQueryDelay("SHOW TABLE STATUS FROM `sbtest` LIKE 't1_0'", mockStatusResult("10", "1000", "100"), 300)
	fakedb.AddQueryDelay("SHOW TABLE STATUS FROM `sbtest` LIKE 't1_1'", mockStatusResult("30", "6000", "200"), 300)
	fakedb.AddQueryPattern("show index from .*", mockIndexResult)

	// Status and cardinality overlap on the same links.
	var wg sync.WaitGroup
	var stsErr, crdErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		stsErr = r.RefreshStatus()
	}()
	go func() {
		defer wg.Done()
		time.Sleep(time.Millisecond * 50)
		crdErr = r.RefreshCardinality()
	}()
	wg.Wait()

	assert.Nil(t, stsErr)
	assert.Nil(t, crdErr)
	stats := table.Stats()
	assert.Equal(t, uint64(40), stats.Rows)
	assert.Equal(t, map[string]int64{"id": 10, "name": 6}, stats.Cardinality)
	assert.Equal(t, 0, registry.Stats().Live)
}
