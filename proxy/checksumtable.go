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
	"strings"

	"github.com/radondb/fedlink/backend"

	"github.com/xelabs/go-mysqlstack/sqldb"
	querypb "github.com/xelabs/go-mysqlstack/sqlparser/depends/query"
	"github.com/xelabs/go-mysqlstack/sqlparser/depends/sqltypes"
)

// parseChecksum returns the tables of 'CHECKSUM TABLE[S] t1[, t2] [QUICK|EXTENDED]'.
func parseChecksum(query string) ([]string, error) {
	fields := strings.Fields(strings.Replace(query, ",", " , ", -1))
	if len(fields) < 3 || !strings.EqualFold(fields[0], "checksum") {
		return nil, sqldb.NewSQLErrorf(sqldb.ER_SYNTAX_ERROR, "You have an error in your SQL syntax near '%s'", query)
	}
	switch strings.ToLower(fields[1]) {
	case "table", "tables":
	default:
		return nil, sqldb.NewSQLErrorf(sqldb.ER_SYNTAX_ERROR, "You have an error in your SQL syntax near '%s'", fields[1])
	}

	fields = fields[2:]
	if n := len(fields); n > 1 {
		switch strings.ToLower(fields[n-1]) {
		case "quick", "extended":
			fields = fields[:n-1]
		}
	}

	var tables []string
	comma := true
	for _, f := range fields {
		switch {
		case f == ",":
			if comma {
				return nil, sqldb.NewSQLErrorf(sqldb.ER_SYNTAX_ERROR, "You have an error in your SQL syntax near ','")
			}
			comma = true
		case comma:
			tables = append(tables, strings.Replace(f, "`", "", -1))
			comma = false
		default:
			return nil, sqldb.NewSQLErrorf(sqldb.ER_SYNTAX_ERROR, "You have an error in your SQL syntax near '%s'", f)
		}
	}
	if comma {
		return nil, sqldb.NewSQLErrorf(sqldb.ER_SYNTAX_ERROR, "You have an error in your SQL syntax near '%s'", query)
	}
	return tables, nil
}

// handleChecksumTable used to handle the 'CHECKSUM TABLE ' command.
// The checksum of a federated table is the sum over its shards, a table
// which is not federated gets NULL like MySQL does for a missing one.
func (spanner *Spanner) handleChecksumTable(session *session, query string) (*sqltypes.Result, error) {
	tables, err := parseChecksum(query)
	if err != nil {
		return nil, err
	}

	newqr := &sqltypes.Result{}
	newqr.Fields = []*querypb.Field{
		{Name: "Table", Type: querypb.Type_VARCHAR},
		{Name: "Checksum", Type: querypb.Type_INT64},
	}
	for _, name := range tables {
		db, tbl := splitTableName(name)
		if db == "" {
			db = session.session.Schema()
		}
		name = fmt.Sprintf("%v.%v", db, tbl)

		table, err := spanner.engine.Table(name)
		if err != nil {
			newqr.Rows = append(newqr.Rows, []sqltypes.Value{
				sqltypes.MakeTrusted(querypb.Type_VARCHAR, []byte(name)),
				sqltypes.NULL,
			})
			continue
		}

		qr, err := spanner.checksum(session, table)
		if err != nil {
			return nil, err
		}
		newqr.Rows = append(newqr.Rows, []sqltypes.Value{
			sqltypes.MakeTrusted(querypb.Type_VARCHAR, []byte(name)),
			qr.Rows[0][1],
		})
	}
	newqr.RowsAffected = uint64(len(newqr.Rows))
	return newqr, nil
}

func (spanner *Spanner) checksum(session *session, table *backend.Table) (*sqltypes.Result, error) {
	txn := session.openTxn()
	if txn == nil {
		var err error
		if txn, err = spanner.engine.CreateTxn(); err != nil {
			return nil, err
		}
		defer txn.Finish()
	}
	txn.SetTimeout(spanner.conf.Proxy.QueryTimeout)
	txn.SetSettings(session.getSettings())

	spanner.sessions.TxnBinding(session.session, txn, "checksum table "+table.Name)
	defer spanner.sessions.TxnUnBinding(session.session)

	qr, err := txn.Checksum(table)
	if err != nil {
		return nil, backend.ToSQLError(err)
	}
	return qr, nil
}
