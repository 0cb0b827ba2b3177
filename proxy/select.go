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
	"github.com/radondb/fedlink/xcontext"

	"github.com/xelabs/go-mysqlstack/sqldb"
	"github.com/xelabs/go-mysqlstack/sqlparser"
	"github.com/xelabs/go-mysqlstack/sqlparser/depends/sqltypes"
)

// splitTableName splits db.tbl, the db is empty when name is not qualified.
func splitTableName(name string) (string, string) {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// federatedTable returns the federated table the statement reads from.
func (spanner *Spanner) federatedTable(session *session, aliased *sqlparser.AliasedTableExpr) (*backend.Table, sqlparser.TableName, error) {
	expr, ok := aliased.Expr.(sqlparser.TableName)
	if !ok {
		return nil, expr, sqldb.NewSQLErrorf(sqldb.ER_UNKNOWN_ERROR, "unsupported: subqueries.in.select")
	}

	db := expr.Qualifier.String()
	if db == "" {
		db = session.session.Schema()
	}
	if db == "" {
		return nil, expr, sqldb.NewSQLErrorf(sqldb.ER_NO_DB_ERROR, "No database selected")
	}
	name := fmt.Sprintf("%s.%s", db, expr.Name.String())
	table, err := spanner.engine.Table(name)
	if err != nil {
		return nil, expr, sqldb.NewSQLErrorf(sqldb.ER_NO_SUCH_TABLE, "Table '%s' doesn't exist", name)
	}
	return table, expr, nil
}

// handleSelect used to handle the SELECT on a federated table.
// The table is rewritten to the remote table of every shard, the shards
// run in parallel with the loop marker the upstream node set for the table.
func (spanner *Spanner) handleSelect(session *session, query string, node *sqlparser.Select) (*sqltypes.Result, error) {
	if len(node.From) != 1 {
		return nil, sqldb.NewSQLErrorf(sqldb.ER_UNKNOWN_ERROR, "unsupported: more.than.one.table.in.select")
	}
	aliased, ok := node.From[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return nil, sqldb.NewSQLErrorf(sqldb.ER_UNKNOWN_ERROR, "unsupported: join.in.select")
	}
	table, expr, err := spanner.federatedTable(session, aliased)
	if err != nil {
		return nil, err
	}

	// Columns qualified by the table name keep resolving on the remote side.
	if aliased.As.IsEmpty() {
		aliased.As = sqlparser.NewTableIdent(expr.Name.String())
	}

	req := xcontext.NewRequestContext()
	req.Table = table.Name
	req.RawQuery = query
	req.TxnMode = xcontext.TxnRead
	req.LoopMarker = session.getMarker(backend.MarkerName(table.Name))
	for _, shard := range table.Shards() {
		db, tbl := splitTableName(shard.RemoteTable)
		aliased.Expr = sqlparser.TableName{
			Name:      sqlparser.NewTableIdent(tbl),
			Qualifier: sqlparser.NewTableIdent(db),
		}
		req.Querys = append(req.Querys, xcontext.QueryTuple{
			Query: sqlparser.String(node),
			Shard: shard.Name,
		})
	}
	return spanner.execute(session, table, req)
}

// execute runs req in the open transaction of the session, or in a new
// autocommit txn finished right after.
func (spanner *Spanner) execute(session *session, table *backend.Table, req *xcontext.RequestContext) (*sqltypes.Result, error) {
	conf := spanner.conf.Proxy
	txn := session.openTxn()
	if txn == nil {
		var err error
		if txn, err = spanner.engine.CreateTxn(); err != nil {
			return nil, err
		}
		defer txn.Finish()
	}
	txn.SetTimeout(conf.QueryTimeout)
	txn.SetMaxResult(conf.MaxResultRows)
	txn.SetSettings(session.getSettings())

	spanner.sessions.TxnBinding(session.session, txn, req.RawQuery)
	defer spanner.sessions.TxnUnBinding(session.session)

	qr, err := txn.Execute(table, req)
	if err != nil {
		return nil, backend.ToSQLError(err)
	}
	return qr, nil
}
