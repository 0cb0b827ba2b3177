/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package backend

import (
	"bytes"
	"fmt"
	"io"
	"net"

	"github.com/pkg/errors"
	"github.com/xelabs/go-mysqlstack/sqldb"
)

// ErrorKind classifies the failures of the connection layer.
type ErrorKind int

const (
	// KindConnectionUnavailable means no usable connection could be produced.
	KindConnectionUnavailable ErrorKind = iota + 1
	// KindQueueFlushFailed means sending the deferred commands failed.
	KindQueueFlushFailed
	// KindJobFailed means a dispatched job failed, Code holds the driver error.
	KindJobFailed
	// KindJobCancelled is the result of a Break.
	KindJobCancelled
	// KindLoopDetected means the statement would recurse into itself.
	KindLoopDetected
	// KindLinkExhausted means no eligible link is left on the shard.
	KindLinkExhausted
)

var kindNames = map[ErrorKind]string{
	KindConnectionUnavailable: "ConnectionUnavailable",
	KindQueueFlushFailed:      "QueueFlushFailed",
	KindJobFailed:             "JobFailed",
	KindJobCancelled:          "JobCancelled",
	KindLoopDetected:          "LoopDetected",
	KindLinkExhausted:         "LinkExhausted",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

const (
	// ER_FEDLINK_INFINITE_LOOP is sent to the client when a loop is detected.
	ER_FEDLINK_INFINITE_LOOP uint16 = 12719
	// ER_CONNECT_TO_FOREIGN_DATA_SOURCE is sent when every link of a shard is gone.
	ER_CONNECT_TO_FOREIGN_DATA_SOURCE uint16 = 1429
	// ER_QUERY_INTERRUPTED is sent when a job was broken.
	ER_QUERY_INTERRUPTED uint16 = 1317
	// ER_XAER_NOTA is returned by the server for an unknown xid.
	ER_XAER_NOTA uint16 = 1397
)

var (
	// ErrConnectionBusy is returned when a job is assigned to a connection whose worker is not idle.
	ErrConnectionBusy = errors.New("connection.is.busy")
	// ErrResultUnobserved is returned when the previous fire-and-forget job was never waited.
	ErrResultUnobserved = errors.New("connection.job.result.unobserved")
	// ErrConnectionFreed is returned by a connection already destroyed by the registry.
	ErrConnectionFreed = errors.New("connection.is.freed")
	// ErrRegistryClosed is returned by a closed registry.
	ErrRegistryClosed = errors.New("registry.is.closed")
	// errCancelled is the internal checkpoint error.
	errCancelled = errors.New("job.cancelled")
)

// Error carries the kind of a failure and the table, shard and link it
// belongs to, so the caller can decide a failover.
type Error struct {
	Kind  ErrorKind
	Table string
	Shard string
	Link  int
	// Code is the MySQL error number of the driver error, 0 if none.
	Code uint16
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	buf := &bytes.Buffer{}
	buf.WriteString(e.Kind.String())
	if e.Table != "" {
		fmt.Fprintf(buf, ": table[%s]", e.Table)
	}
	if e.Shard != "" {
		fmt.Fprintf(buf, ".shard[%s]", e.Shard)
		if e.Link >= 0 {
			fmt.Fprintf(buf, ".link[%d]", e.Link)
		}
	}
	if e.Msg != "" {
		fmt.Fprintf(buf, ": %s", e.Msg)
	}
	if e.Err != nil {
		fmt.Fprintf(buf, ": %v", e.Err)
	}
	return buf.String()
}

// Cause returns the wrapped error.
func (e *Error) Cause() error {
	return e.Err
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, err error, format string, args ...interface{}) *Error {
	return &Error{
		Kind: kind,
		Link: NoLink,
		Code: sqlCode(err),
		Msg:  fmt.Sprintf(format, args...),
		Err:  err,
	}
}

// at fills the location of the failure.
func (e *Error) at(table, shard string, link int) *Error {
	e.Table = table
	e.Shard = shard
	e.Link = link
	return e
}

// IsKind reports whether err or any error it wraps is an *Error of kind.
func IsKind(err error, kind ErrorKind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// KindOf returns the kind of the outermost *Error in the chain, 0 if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsLoopDetected reports whether err is a loop detected here or on a remote node.
func IsLoopDetected(err error) bool {
	return IsKind(err, KindLoopDetected) || sqlCode(err) == ER_FEDLINK_INFINITE_LOOP
}

// sqlCode returns the MySQL error number carried by err, 0 when none.
func sqlCode(err error) uint16 {
	var se *sqldb.SQLError
	if err != nil && errors.As(err, &se) {
		return se.Num
	}
	return 0
}

// isConnError reports whether err means the session itself is unusable.
// Server errors(errno < 2000) keep the session alive, client errors and
// i/o errors do not.
func isConnError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var se *sqldb.SQLError
	if errors.As(err, &se) {
		return se.Num >= 2000 && se.Num < 3000
	}
	return true
}

// ToSQLError converts err to the error sent back to a MySQL client.
func ToSQLError(err error) *sqldb.SQLError {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		switch {
		case IsKind(err, KindLoopDetected):
			return sqldb.NewSQLError1(ER_FEDLINK_INFINITE_LOOP, sqldb.SQLStateGeneral, "An infinite loop is detected when opening table %s", e.Table)
		case e.Kind == KindLinkExhausted:
			return sqldb.NewSQLError1(ER_CONNECT_TO_FOREIGN_DATA_SOURCE, sqldb.SQLStateGeneral, "Unable to connect to foreign data source: %s.%s", e.Table, e.Shard)
		case e.Kind == KindJobCancelled:
			return sqldb.NewSQLError1(ER_QUERY_INTERRUPTED, "70100", "Query execution was interrupted")
		}
	}

	var se *sqldb.SQLError
	if errors.As(err, &se) {
		return se
	}
	return sqldb.NewSQLErrorf(sqldb.ER_UNKNOWN_ERROR, "%s", err.Error())
}
