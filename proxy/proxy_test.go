/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package proxy

import (
	"testing"

	"github.com/radondb/fedlink/config"

	"github.com/stretchr/testify/assert"
	"github.com/xelabs/go-mysqlstack/driver"
	"github.com/xelabs/go-mysqlstack/xlog"
)

func TestProxySetters(t *testing.T) {
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	_, proxy, cleanup := MockProxy(log)
	defer cleanup()

	proxy.SetMaxConnections(6)
	proxy.SetQueryTimeout(1000)
	proxy.SetTwoPC(true)
	proxy.SetThrottle(100)
	assert.Equal(t, 6, proxy.Config().Proxy.MaxConnections)
	assert.Equal(t, 1000, proxy.Config().Proxy.QueryTimeout)
	assert.True(t, proxy.Config().Proxy.TwopcEnable)
	assert.Equal(t, 100, proxy.throttle.Limits())
	assert.Equal(t, proxy.Config().Proxy.PeerAddress, proxy.PeerAddress())

	// Flush and load back.
	{
		err := proxy.FlushConfig()
		assert.Nil(t, err)
		conf, err := config.LoadConfig(proxy.confPath)
		assert.Nil(t, err)
		assert.Equal(t, 6, conf.Proxy.MaxConnections)
		assert.True(t, conf.Proxy.TwopcEnable)
	}
}

func TestProxyServerVersion(t *testing.T) {
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	_, proxy, cleanup := MockProxy(log)
	defer cleanup()

	spanner := proxy.Spanner()
	spanner.SetServerVersion()
	assert.Equal(t, ServerVersion, spanner.ServerVersion())
}

func TestProxyInitDB(t *testing.T) {
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	_, proxy, cleanup := MockProxy(log)
	defer cleanup()
	address := proxy.Address()

	// The db of a federated table.
	{
		client, err := driver.NewConn("mock", "pwd", address, "sbtest", "utf8")
		assert.Nil(t, err)
		assert.Nil(t, client.InitDB("sbtest"))
		client.Close()
	}

	// Unknown db.
	{
		_, err := driver.NewConn("mock", "pwd", address, "xx", "utf8")
		assert.NotNil(t, err)
		assert.Contains(t, err.Error(), "Unknown database 'xx'")
	}
}
