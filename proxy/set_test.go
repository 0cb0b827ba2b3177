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

	"github.com/radondb/fedlink/backend"

	"github.com/stretchr/testify/assert"
	"github.com/xelabs/go-mysqlstack/driver"
	"github.com/xelabs/go-mysqlstack/xlog"
)

func TestParseSet(t *testing.T) {
	tests := []struct {
		query string
		want  []setExpr
	}{
		{
			query: "SET autocommit=0",
			want:  []setExpr{{name: "autocommit", value: "0"}},
		},
		{
			query: "SET SESSION wait_timeout = 2147483",
			want:  []setExpr{{name: "wait_timeout", value: "2147483"}},
		},
		{
			query: "set @@session.time_zone='+08:00', @@sql_mode = \"STRICT_TRANS_TABLES,NO_ZERO_DATE\"",
			want: []setExpr{
				{name: "time_zone", value: "+08:00"},
				{name: "sql_mode", value: "STRICT_TRANS_TABLES,NO_ZERO_DATE"},
			},
		},
		{
			query: "SET NAMES utf8",
			want:  []setExpr{{name: "names"}},
		},
		{
			query: "SET @fedlink_lc_db_t='[a/db.t:00:1]', @x := 'it\\'s'",
			want: []setExpr{
				{name: "@fedlink_lc_db_t", value: "[a/db.t:00:1]"},
				{name: "@x", value: "it's"},
			},
		},
		{
			query: "SET SESSION TRANSACTION ISOLATION LEVEL read committed",
			want:  []setExpr{{name: "tx_isolation", value: "READ-COMMITTED"}},
		},
	}

	for _, test := range tests {
		got, err := parseSet(test.query)
		assert.Nil(t, err, test.query)
		assert.Equal(t, test.want, got, test.query)
	}

	// Errors.
	{
		querys := []string{
			"SET a",
			"SET a=1,,b=2",
			"SET GLOBAL wait_timeout=1",
			"SET @@global.wait_timeout=1",
		}
		for _, query := range querys {
			_, err := parseSet(query)
			assert.NotNil(t, err, query)
		}
	}
}

func TestUnquote(t *testing.T) {
	tests := []struct {
		in  string
		out string
	}{
		{"'a'", "a"},
		{"\"a\"", "a"},
		{"'a''b'", "a'b"},
		{"'a\\nb\\\\'", "a\nb\\"},
		{"abc", "abc"},
		{"'abc", "'abc"},
	}
	for _, test := range tests {
		assert.Equal(t, test.out, unquote(test.in))
	}
}

func TestProxySet(t *testing.T) {
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	fakedbs, proxy, cleanup := MockProxy(log)
	defer cleanup()
	address := proxy.Address()

	// fakedbs.
	{
		fakedbs.AddQueryPattern("select .* from sbtest.t1_.*", result1)
	}

	client, err := driver.NewConn("mock", "pwd", address, "sbtest", "utf8")
	assert.Nil(t, err)
	defer client.Close()

	// Settings and marker kept on the session.
	{
		_, err := client.FetchAll("SET autocommit=0, @FEDLINK_LC_SBTEST_T1='[x/y:00:1]', sql_mode='STRICT_TRANS_TABLES', character_set_results=NULL", -1)
		assert.Nil(t, err)

		session := proxy.Sessions().get(client.ConnectionID())
		assert.NotNil(t, session)
		assert.Equal(t, []backend.Command{backend.SetAutocommit(false), backend.SetSQLMode("STRICT_TRANS_TABLES")}, session.getSettings())
		assert.Equal(t, "[x/y:00:1]", session.getMarker(backend.MarkerName("sbtest.t1")))
	}

	// The settings and the marker(with the token of this node) reach every shard.
	{
		_, err := client.FetchAll("select * from t1", -1)
		assert.Nil(t, err)

		token := proxy.Engine().Identity().Token("sbtest.t1")
		for i := 0; i < 2; i++ {
			set := fmt.Sprintf("SET autocommit=0, sql_mode='STRICT_TRANS_TABLES', @fedlink_lc_sbtest_t1_%d='%s[x/y:00:1]'", i, token)
			assert.Equal(t, 1, fakedbs.GetQueryCalledNum(set), set)
		}
	}

	// An empty value drops the marker.
	{
		_, err := client.FetchAll("SET @fedlink_lc_sbtest_t1=''", -1)
		assert.Nil(t, err)
		session := proxy.Sessions().get(client.ConnectionID())
		assert.Equal(t, "", session.getMarker(backend.MarkerName("sbtest.t1")))
	}

	// Invalid.
	{
		_, err := client.FetchAll("SET autocommit=maybe", -1)
		assert.NotNil(t, err)
		_, err = client.FetchAll("SET wait_timeout='x'", -1)
		assert.NotNil(t, err)
		_, err = client.FetchAll("SET GLOBAL wait_timeout=1", -1)
		assert.NotNil(t, err)
		assert.Contains(t, err.Error(), "errno 1227")
	}
}
