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
	"os"
	"time"

	"github.com/radondb/fedlink/config"
	"github.com/radondb/fedlink/fakedb"

	querypb "github.com/xelabs/go-mysqlstack/sqlparser/depends/query"
	"github.com/xelabs/go-mysqlstack/sqlparser/depends/sqltypes"
	"github.com/xelabs/go-mysqlstack/xlog"
)

var (
	result1 = &sqltypes.Result{
		RowsAffected: 2,
		Fields: []*querypb.Field{
			{
				Name: "id",
				Type: querypb.Type_INT32,
			},
			{
				Name: "name",
				Type: querypb.Type_VARCHAR,
			},
		},
		Rows: [][]sqltypes.Value{
			{
				sqltypes.MakeTrusted(querypb.Type_INT32, []byte("11")),
				sqltypes.MakeTrusted(querypb.Type_VARCHAR, []byte("1nice name")),
			},
			{
				sqltypes.MakeTrusted(querypb.Type_INT32, []byte("12")),
				sqltypes.MakeTrusted(querypb.Type_VARCHAR, []byte("12nice name")),
			},
		},
	}
	result2 = &sqltypes.Result{
		RowsAffected: 2,
		Fields: []*querypb.Field{
			{
				Name: "id",
				Type: querypb.Type_INT32,
			},
			{
				Name: "name",
				Type: querypb.Type_VARCHAR,
			},
		},
		Rows: [][]sqltypes.Value{
			{
				sqltypes.MakeTrusted(querypb.Type_INT32, []byte("21")),
				sqltypes.MakeTrusted(querypb.Type_VARCHAR, []byte("2nice name")),
			},
			{
				sqltypes.MakeTrusted(querypb.Type_INT32, []byte("22")),
				sqltypes.MakeTrusted(querypb.Type_VARCHAR, []byte("22nice name")),
			},
		},
	}
)

// MockConfig mocks a config with the background workers off and the
// metadir in a new temp dir.
func MockConfig(log *xlog.Log) *config.Config {
	conf := config.DefaultConfig()
	conf.Proxy.MetaDir = fakedb.GetTmpDir("", "fedlink_backend_", log)
	conf.Proxy.ServerID = "mock"
	conf.Monitor.Interval = 0
	conf.Refresh.StsInterval = 0
	conf.Refresh.CrdInterval = 0
	return conf
}

// MockRegistry mocks a registry over a fakedb with n listeners.
func MockRegistry(log *xlog.Log, n int) (*fakedb.DB, *Registry, func()) {
	fakedb := fakedb.NewWithDefaults(log, n)
	conf := MockConfig(log)
	registry := NewRegistry(log, conf.Registry, conf.Dispatcher)
	return fakedb, registry, func() {
		registry.Close()
		fakedb.Close()
		os.RemoveAll(conf.Proxy.MetaDir)
	}
}

// MockLinkSet mocks the links of one shard, one link per fakedb listener.
func MockLinkSet(fakedb *fakedb.DB, table, shard string) *LinkSet {
	return NewLinkSet(table, shard, fakedb.LinkConfs())
}

// MockConn mocks a connection to the link idx of links.
func MockConn(registry *Registry, owner uint64, links *LinkSet, idx int) (*Connection, error) {
	link := links.Link(idx)
	key := NewConnKey(owner, "sbtest.t1/s0", idx, link.Conf())
	return registry.Get(context.Background(), key, link)
}

// MockEngine mocks an engine with the table sbtest.t1, one shard per
// fakedb listener.
func MockEngine(log *xlog.Log, n int) (*fakedb.DB, *Engine, func()) {
	return MockEngineWithConfig(log, MockConfig(log), n)
}

// MockEngineWithConfig mocks an engine with conf.
func MockEngineWithConfig(log *xlog.Log, conf *config.Config, n int) (*fakedb.DB, *Engine, func()) {
	fakedb := fakedb.NewWithDefaults(log, n)
	engine := NewEngine(log, conf)
	if err := engine.Init(); err != nil {
		log.Panic("mock.engine.init.error:%+v", err)
	}
	if err := engine.AddTable(fakedb.TableConf("sbtest.t1")); err != nil {
		log.Panic("mock.engine.add.table.error:%+v", err)
	}
	return fakedb, engine, func() {
		time.Sleep(time.Millisecond * 10)
		engine.Close()
		fakedb.Close()
		os.RemoveAll(conf.Proxy.MetaDir)
	}
}
