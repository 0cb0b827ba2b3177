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
	"testing"

	"github.com/radondb/fedlink/config"
	"github.com/radondb/fedlink/fakedb"

	"github.com/stretchr/testify/assert"
	"github.com/xelabs/go-mysqlstack/driver"
	"github.com/xelabs/go-mysqlstack/xlog"
)

// peerTable is the table db.t of one shard on the node at address.
func peerTable(address string) *config.TableConfig {
	return &config.TableConfig{
		Name: "db.t",
		Shards: []*config.ShardConfig{
			{
				Name:        "s0",
				RemoteTable: "db.t",
				Links: []*config.LinkConfig{
					{
						Address:  address,
						User:     "mock",
						Password: "pwd",
						DBName:   "db",
						Charset:  "utf8",
						Status:   config.LinkStatusActive,
						Weight:   1,
					},
				},
			},
		},
	}
}

func TestProxyLoopChain(t *testing.T) {
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	fakedbs := fakedb.NewWithDefaults(log, 2)
	defer fakedbs.Close()
	fakedbs.AddQueryPattern("select .* from db.t_.*", result1)

	// a(db.t) -> b(db.t) -> fakedbs(db.t_0, db.t_1).
	b, cleanupB := MockProxyWithTables(log, MockConfig(log, "node-b"), fakedbs.TableConf("db.t"))
	defer cleanupB()
	a, cleanupA := MockProxyWithTables(log, MockConfig(log, "node-a"), peerTable(b.Address()))
	defer cleanupA()

	client, err := driver.NewConn("mock", "pwd", a.Address(), "db", "utf8")
	assert.Nil(t, err)
	defer client.Close()

	qr, err := client.FetchAll("select * from t", -1)
	assert.Nil(t, err)
	assert.Equal(t, 4, len(qr.Rows))

	// The marker reaching the data nodes carries both hops.
	tokenA := a.Engine().Identity().Token("db.t")
	tokenB := b.Engine().Identity().Token("db.t")
	for i := 0; i < 2; i++ {
		set := fmt.Sprintf("SET @fedlink_lc_db_t_%d='%s%s'", i, tokenB, tokenA)
		assert.Equal(t, 1, fakedbs.GetQueryCalledNum(set), set)
	}
}

func TestProxyLoopDetected(t *testing.T) {
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	confA := MockConfig(log, "node-a")
	confB := MockConfig(log, "node-b")

	// a(db.t) -> b(db.t) -> a(db.t).
	a, cleanupA := MockProxyWithTables(log, confA, peerTable(confB.Proxy.Endpoint))
	defer cleanupA()
	b, cleanupB := MockProxyWithTables(log, confB, peerTable(confA.Proxy.Endpoint))
	defer cleanupB()

	client, err := driver.NewConn("mock", "pwd", a.Address(), "db", "utf8")
	assert.Nil(t, err)
	defer client.Close()

	_, err = client.FetchAll("select * from t", -1)
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "An infinite loop is detected when opening table db.t (errno 12719)")

	// Nothing is left checked out on either node.
	assert.Equal(t, 0, a.Engine().Registry().Stats().Live)
	assert.Equal(t, 0, b.Engine().Registry().Stats().Live)

	// The nodes still serve.
	{
		client, err := driver.NewConn("mock", "pwd", b.Address(), "db", "utf8")
		assert.Nil(t, err)
		client.Close()
	}
}
