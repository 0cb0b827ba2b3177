/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package proxy

import (
	"fmt"
	"math/rand"
	"os"
	"path"
	"time"

	"github.com/radondb/fedlink/backend"
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

	checksumResult = &sqltypes.Result{
		Fields: []*querypb.Field{
			{
				Name: "Table",
				Type: querypb.Type_VARCHAR,
			},
			{
				Name: "Checksum",
				Type: querypb.Type_INT64,
			},
		},
		Rows: [][]sqltypes.Value{
			{
				sqltypes.MakeTrusted(querypb.Type_VARCHAR, []byte("t")),
				sqltypes.MakeTrusted(querypb.Type_INT64, []byte("21")),
			},
		},
	}
)

func randomPort(min int, max int) int {
	rand := rand.New(rand.NewSource(time.Now().UnixNano()))
	d, delta := min, (max - min)
	if delta > 0 {
		d += rand.Intn(int(delta))
	}
	return d
}

// MockConfig mocks the config of a node listening on a random port.
func MockConfig(log *xlog.Log, serverID string) *config.Config {
	conf := backend.MockConfig(log)
	conf.Proxy.ServerID = serverID
	conf.Proxy.Endpoint = fmt.Sprintf("127.0.0.1:%d", randomPort(15000, 20000))
	conf.Proxy.MaxConnections = 16
	conf.Log = &config.LogConfig{
		Level: "ERROR",
	}
	return conf
}

// MockProxy mocks a proxy with the federated table sbtest.t1, one shard
// per fakedb listener.
func MockProxy(log *xlog.Log) (*fakedb.DB, *Proxy, func()) {
	return MockProxy1(log, MockConfig(log, "mock"))
}

// MockProxy1 mocks the proxy with config.
func MockProxy1(log *xlog.Log, conf *config.Config) (*fakedb.DB, *Proxy, func()) {
	fakedbs := fakedb.NewWithDefaults(log, 2)
	proxy, cleanup := MockProxyWithTables(log, conf)
	if err := proxy.Engine().AddTable(fakedbs.TableConf("sbtest.t1")); err != nil {
		log.Panic("mock.proxy.add.table.error:%+v", err)
	}
	return fakedbs, proxy, func() {
		cleanup()
		fakedbs.Close()
	}
}

// MockProxyWithTables mocks a started proxy with the tables of conf only.
func MockProxyWithTables(log *xlog.Log, conf *config.Config, tables ...*config.TableConfig) (*Proxy, func()) {
	if x := os.MkdirAll(conf.Proxy.MetaDir, 0777); x != nil {
		log.Panic("%+v", x)
	}
	proxy := NewProxy(log, path.Join(conf.Proxy.MetaDir, "fedlink_mock.json"), conf)
	proxy.Start()
	for _, table := range tables {
		if err := proxy.Engine().AddTable(table); err != nil {
			log.Panic("mock.proxy.add.table.error:%+v", err)
		}
	}
	return proxy, func() {
		proxy.Stop()
		os.RemoveAll(conf.Proxy.MetaDir)
	}
}
