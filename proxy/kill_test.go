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

	"github.com/stretchr/testify/assert"
	"github.com/xelabs/go-mysqlstack/driver"
	"github.com/xelabs/go-mysqlstack/xlog"
)

func TestProxyKill(t *testing.T) {
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	fakedbs, proxy, cleanup := MockProxy(log)
	defer cleanup()
	address := proxy.Address()

	// fakedbs.
	{
		fakedbs.AddQueryPattern("select .* from sbtest.t1_.*", result1)
	}

	client1, err := driver.NewConn("mock", "pwd", address, "sbtest", "utf8")
	assert.Nil(t, err)
	defer client1.Close()

	client2, err := driver.NewConn("mock", "pwd", address, "sbtest", "utf8")
	assert.Nil(t, err)
	defer client2.Close()

	// Client1 holds an open txn.
	{
		_, err := client1.FetchAll("begin", -1)
		assert.Nil(t, err)
		_, err = client1.FetchAll("select * from t1", -1)
		assert.Nil(t, err)
	}

	// Kill client1 from client2.
	{
		id := client1.ConnectionID()
		_, err := client2.FetchAll(fmt.Sprintf("kill %d", id), -1)
		assert.Nil(t, err)
		assert.Nil(t, proxy.Sessions().get(id))

		// The open txn was rolled back.
		assert.Equal(t, 2, fakedbs.GetQueryCalledNum("rollback"))

		_, err = client1.FetchAll("select * from t1", -1)
		assert.NotNil(t, err)
	}

	// Unknown thread.
	{
		_, err := client2.FetchAll("kill 99999", -1)
		assert.NotNil(t, err)
		assert.Contains(t, err.Error(), "Unknown thread id: 99999 (errno 1094)")
	}
}
