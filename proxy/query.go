/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package proxy

import (
	"strings"

	"github.com/radondb/fedlink/monitor"
	"github.com/radondb/fedlink/xbase"

	"github.com/xelabs/go-mysqlstack/driver"
	"github.com/xelabs/go-mysqlstack/sqldb"
	"github.com/xelabs/go-mysqlstack/sqlparser"
	querypb "github.com/xelabs/go-mysqlstack/sqlparser/depends/query"
	"github.com/xelabs/go-mysqlstack/sqlparser/depends/sqltypes"
)

// Command labels of the query metrics.
const (
	cmdSelect      = "select"
	cmdSet         = "set"
	cmdChecksum    = "checksum"
	cmdTransaction = "transaction"
	cmdKill        = "kill"
	cmdUnsupported = "unsupported"
)

func returnQuery(qr *sqltypes.Result, callback func(qr *sqltypes.Result) error, err error) error {
	if err != nil {
		return err
	}
	return callback(qr)
}

func queryStat(command string, err error) {
	result := "OK"
	if err != nil {
		result = "Error"
	}
	monitor.QueryTotalCounterInc(command, result)
}

// ComQuery impl.
// Supports statements are:
// 1. SET
// 2. SELECT on a federated table
// 3. CHECKSUM TABLE
// 4. BEGIN/START TRANSACTION/COMMIT/ROLLBACK
// 5. KILL
func (spanner *Spanner) ComQuery(s *driver.Session, query string, bindVariables map[string]*querypb.BindVariable, callback func(qr *sqltypes.Result) error) error {
	var qr *sqltypes.Result
	var err error
	log := spanner.log
	throttle := spanner.throttle

	// Throttle.
	throttle.Acquire()
	defer throttle.Release()

	if len(bindVariables) > 0 {
		queryStat(cmdUnsupported, nil)
		return sqldb.NewSQLErrorf(sqldb.ER_UNKNOWN_ERROR, "unsupported.prepared.statement:%v", xbase.TruncateQuery(query, 256))
	}

	session := spanner.sessions.get(s.ID())
	if session == nil {
		return sqldb.NewSQLErrorf(sqldb.ER_UNKNOWN_ERROR, "session[%d].can't.be.found", s.ID())
	}

	query = strings.TrimSpace(query)
	query = strings.TrimSuffix(query, ";")
	lower := strings.ToLower(query)

	// The SET and CHECKSUM nodes of the parser carry no operands.
	switch {
	case strings.HasPrefix(lower, "set "):
		if qr, err = spanner.handleSet(session, query); err != nil {
			log.Error("proxy.set[%s].from.session[%v].error:%+v", query, s.ID(), err)
		}
		queryStat(cmdSet, err)
		return returnQuery(qr, callback, err)
	case strings.HasPrefix(lower, "checksum "):
		if qr, err = spanner.handleChecksumTable(session, query); err != nil {
			log.Error("proxy.checksum[%s].from.session[%v].error:%+v", query, s.ID(), err)
		}
		queryStat(cmdChecksum, err)
		return returnQuery(qr, callback, err)
	}

	node, err := sqlparser.Parse(query)
	if err != nil {
		log.Error("query[%v].parser.error: %v", query, err)
		return sqldb.NewSQLErrorf(sqldb.ER_SYNTAX_ERROR, "%s", err.Error())
	}

	switch node := node.(type) {
	case *sqlparser.Select:
		if qr, err = spanner.handleSelect(session, query, node); err != nil {
			log.Error("proxy.select[%s].from.session[%v].error:%+v", xbase.TruncateQuery(query, 256), s.ID(), err)
		}
		queryStat(cmdSelect, err)
		return returnQuery(qr, callback, err)
	case *sqlparser.Transaction:
		if qr, err = spanner.handleTransaction(session, node); err != nil {
			log.Error("proxy.transaction[%s].from.session[%v].error:%+v", query, s.ID(), err)
		}
		queryStat(cmdTransaction, err)
		return returnQuery(qr, callback, err)
	case *sqlparser.Kill:
		if qr, err = spanner.handleKill(session, node); err != nil {
			log.Error("proxy.kill[%s].from.session[%v].error:%+v", query, s.ID(), err)
		}
		queryStat(cmdKill, err)
		return returnQuery(qr, callback, err)
	default:
		log.Error("proxy.unsupported[%s].from.session[%v]", query, s.ID())
		queryStat(cmdUnsupported, nil)
		return sqldb.NewSQLErrorf(sqldb.ER_UNKNOWN_ERROR, "unsupported.query:%v", query)
	}
}
