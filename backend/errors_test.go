/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package backend

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/xelabs/go-mysqlstack/sqldb"
)

func TestErrorString(t *testing.T) {
	cause := sqldb.NewSQLErrorf(1146, "Table 'x' doesn't exist")
	err := newError(KindJobFailed, cause, "job[%s]", JobFetchRecords).at("db.t", "s0", 1)
	assert.Equal(t, "JobFailed: table[db.t].shard[s0].link[1]: job[fetch-records]: "+cause.Error(), err.Error())
	assert.Equal(t, uint16(1146), err.Code)
	assert.Equal(t, cause, errors.Cause(err))

	// No link.
	err = newError(KindLinkExhausted, nil, "no.eligible.link").at("db.t", "s0", NoLink)
	assert.Equal(t, "LinkExhausted: table[db.t].shard[s0]: no.eligible.link", err.Error())

	assert.Equal(t, "ErrorKind(99)", ErrorKind(99).String())
}

func TestErrorKind(t *testing.T) {
	err := errors.Wrap(newError(KindConnectionUnavailable, io.EOF, "dial"), "wrapped")
	assert.True(t, IsKind(err, KindConnectionUnavailable))
	assert.False(t, IsKind(err, KindJobFailed))
	assert.Equal(t, KindConnectionUnavailable, KindOf(err))
	assert.Equal(t, ErrorKind(0), KindOf(io.EOF))
	assert.False(t, IsKind(nil, KindJobFailed))

	// A loop detected by a remote node.
	remote := sqldb.NewSQLError1(ER_FEDLINK_INFINITE_LOOP, sqldb.SQLStateGeneral, "An infinite loop is detected")
	assert.True(t, IsLoopDetected(remote))
	assert.False(t, IsLoopDetected(io.EOF))
}

func TestIsConnError(t *testing.T) {
	assert.False(t, isConnError(nil))
	assert.True(t, isConnError(io.EOF))
	assert.True(t, isConnError(errors.Wrap(io.ErrUnexpectedEOF, "read")))
	assert.True(t, isConnError(sqldb.NewSQLError1(2013, "HY000", "Lost connection to MySQL server during query")))
	assert.False(t, isConnError(sqldb.NewSQLError1(1064, "42000", "syntax error")))
	assert.True(t, isConnError(errors.New("unknown")))
}

func TestToSQLError(t *testing.T) {
	assert.Nil(t, ToSQLError(nil))

	loop := newError(KindLoopDetected, nil, "marker[x]").at("db.t", "", NoLink)
	se := ToSQLError(loop)
	assert.Equal(t, ER_FEDLINK_INFINITE_LOOP, se.Num)
	assert.Contains(t, se.Message, "db.t")

	exhausted := newError(KindLinkExhausted, nil, "no.eligible.link").at("db.t", "s0", NoLink)
	se = ToSQLError(exhausted)
	assert.Equal(t, ER_CONNECT_TO_FOREIGN_DATA_SOURCE, se.Num)
	assert.Equal(t, "Unable to connect to foreign data source: db.t.s0", se.Message)

	cancelled := newError(KindJobCancelled, errCancelled, "job[fetch-records]")
	assert.Equal(t, ER_QUERY_INTERRUPTED, ToSQLError(cancelled).Num)

	// The driver error goes through as is.
	cause := sqldb.NewSQLErrorf(1146, "Table 'x' doesn't exist")
	assert.Equal(t, cause, ToSQLError(newError(KindJobFailed, cause, "job")))

	se = ToSQLError(errors.New("mock.error"))
	assert.Equal(t, uint16(sqldb.ER_UNKNOWN_ERROR), se.Num)
	assert.Equal(t, "mock.error", se.Message)
}
