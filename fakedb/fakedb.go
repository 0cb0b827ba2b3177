/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package fakedb

import (
	"fmt"
	"io/ioutil"
	"os"
	"sync"

	"github.com/radondb/fedlink/config"

	"github.com/xelabs/go-mysqlstack/driver"
	querypb "github.com/xelabs/go-mysqlstack/sqlparser/depends/query"
	"github.com/xelabs/go-mysqlstack/sqlparser/depends/sqltypes"
	"github.com/xelabs/go-mysqlstack/xlog"
)

var (
	// Result1 result.
	Result1 = &sqltypes.Result{
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
				sqltypes.NULL,
			},
		},
	}

	// Result2 result.
	Result2 = &sqltypes.Result{
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
				sqltypes.NULL,
			},
		},
	}

	// Result3 result.
	Result3 = &sqltypes.Result{}
)

// GetTmpDir used to create a test tmp dir
// dir: path specified, can be an empty string
// module: the name of test module
func GetTmpDir(dir, module string, log *xlog.Log) string {
	tmpDir := ""
	var err error
	if dir == "" {
		tmpDir, err = ioutil.TempDir(os.TempDir(), module)
		if err != nil {
			log.Error("%v.test.can't.create.temp.dir.in:[%v]", module, os.TempDir())
		}
	} else {
		tmpDir, err = ioutil.TempDir(dir, module)
		if err != nil {
			log.Error("%v.test.can't.create.temp.dir.in:[%v]", module, dir)
		}
	}
	return tmpDir
}

// DB is a fake database.
type DB struct {
	log       *xlog.Log
	mu        sync.RWMutex
	handler   *driver.TestHandler
	listeners []*driver.Listener
	linkconfs []*config.LinkConfig
	addrs     []string
}

// New creates a new DB with n listeners sharing one handler.
func New(log *xlog.Log, n int) *DB {
	th := driver.NewTestHandler(log)
	listeners := make([]*driver.Listener, 0, 8)
	addrs := make([]string, 0, 8)
	linkconfs := make([]*config.LinkConfig, 0, 8)
	for i := 0; i < n; i++ {
		l, err := driver.MockMysqlServer(log, th)
		if err != nil {
			panic(err)
		}
		conf := &config.LinkConfig{
			Address:  l.Addr(),
			User:     "mock",
			Password: "pwd",
			DBName:   "sbtest",
			Charset:  "utf8",
			Status:   config.LinkStatusActive,
			Weight:   1,
		}
		linkconfs = append(linkconfs, conf)
		addrs = append(addrs, l.Addr())
		listeners = append(listeners, l)
	}
	db := &DB{
		log:       log,
		handler:   th,
		addrs:     addrs,
		listeners: listeners,
		linkconfs: linkconfs,
	}
	// Add mock/mock user to mysql.user table.
	db.addMockUser()
	return db
}

// NewWithDefaults creates a new DB answering the session statements.
func NewWithDefaults(log *xlog.Log, n int) *DB {
	db := New(log, n)
	db.AddDefaults()
	return db
}

// Addrs used to get all address of the server.
func (db *DB) Addrs() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.addrs
}

// LinkConfs used to get the link configs, one per listener.
func (db *DB) LinkConfs() []*config.LinkConfig {
	db.mu.RLock()
	defer db.mu.RUnlock()
	confs := make([]*config.LinkConfig, 0, len(db.linkconfs))
	for _, c := range db.linkconfs {
		conf := *c
		confs = append(confs, &conf)
	}
	return confs
}

// TableConf returns the config of table with one shard per listener, every
// shard served by the listener of its index. Shard i is named si and its
// remote table is table_i.
func (db *DB) TableConf(table string) *config.TableConfig {
	conf := &config.TableConfig{Name: table}
	for i, link := range db.LinkConfs() {
		conf.Shards = append(conf.Shards, &config.ShardConfig{
			Name:        fmt.Sprintf("s%d", i),
			RemoteTable: fmt.Sprintf("%s_%d", table, i),
			Links:       []*config.LinkConfig{link},
		})
	}
	return conf
}

// ReplicaTableConf returns the config of table with one shard served by
// every listener as a link.
func (db *DB) ReplicaTableConf(table string) *config.TableConfig {
	return &config.TableConfig{
		Name: table,
		Shards: []*config.ShardConfig{
			{
				Name:        "s0",
				RemoteTable: fmt.Sprintf("%s_0", table),
				Links:       db.LinkConfs(),
			},
		},
	}
}

// AddDefaults answers the statements every session sends: the SET
// batches, the transaction and XA statements.
func (db *DB) AddDefaults() {
	for _, pat := range []string{"set .*", "start transaction", "commit", "rollback", "xa .*"} {
		db.AddQueryPattern(pat, &sqltypes.Result{})
	}
}

// Stop closes the listener of index i, its sessions fail from now on.
func (db *DB) Stop(i int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.listeners[i].Close()
}

// Close used to close all the listeners.
func (db *DB) Close() {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, l := range db.listeners {
		l.Close()
	}
}

// AddQuery used to add a query and the return result expected.
func (db *DB) AddQuery(query string, result *sqltypes.Result) {
	db.handler.AddQuery(query, result)
}

// AddQuerys used to add a query and the return results expected.
func (db *DB) AddQuerys(query string, result ...*sqltypes.Result) {
	db.handler.AddQuerys(query, result...)
}

// AddQueryStream used to add a query and the streamly return result expected.
func (db *DB) AddQueryStream(query string, result *sqltypes.Result) {
	db.handler.AddQueryStream(query, result)
}

// AddQueryDelay used to add query and return by delay.
func (db *DB) AddQueryDelay(query string, result *sqltypes.Result, delayMS int) {
	db.handler.AddQueryDelay(query, result, delayMS)
}

// AddQueryError use to add a query and return the error expected.
func (db *DB) AddQueryError(query string, err error) {
	db.handler.AddQueryError(query, err)
}

// AddQueryPanic used to add the query with panic.
func (db *DB) AddQueryPanic(query string) {
	db.handler.AddQueryPanic(query)
}

// AddQueryPattern used to add an expected result for a set of queries.
func (db *DB) AddQueryPattern(qp string, result *sqltypes.Result) {
	db.handler.AddQueryPattern(qp, result)
}

// AddQueryErrorPattern use to add a query and return the error expected.
func (db *DB) AddQueryErrorPattern(qp string, err error) {
	db.handler.AddQueryErrorPattern(qp, err)
}

// GetQueryCalledNum returns how many times db executes a certain query.
func (db *DB) GetQueryCalledNum(query string) int {
	return db.handler.GetQueryCalledNum(query)
}

// ResetAll will reset all, including: query and query patterns.
func (db *DB) ResetAll() {
	db.handler.ResetAll()
}

// ResetPatternErrors used to reset all the error pattern.
func (db *DB) ResetPatternErrors() {
	db.handler.ResetPatternErrors()
}

// ResetErrors used to reset all the errors.
func (db *DB) ResetErrors() {
	db.handler.ResetErrors()
}

// addMockUser adds mock/mock user to mysql.user table.
func (db *DB) addMockUser() {
	r1 := &sqltypes.Result{
		Fields: []*querypb.Field{
			{
				Name: "authentication_string ",
				Type: querypb.Type_VARCHAR,
			},
		},
		Rows: [][]sqltypes.Value{
			{
				sqltypes.MakeTrusted(querypb.Type_VARCHAR, []byte("*CC86C0D547DE7603129BC1D3B98DB2242E7F744F")),
			},
		},
	}
	db.AddQuery("select authentication_string from mysql.user where user='mock'", r1)
}
