/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package proxy

import (
	"github.com/xelabs/go-mysqlstack/sqldb"
	"github.com/xelabs/go-mysqlstack/sqlparser"
	"github.com/xelabs/go-mysqlstack/sqlparser/depends/sqltypes"
)

// handleKill used to handle the KILL command.
//mysql> kill 67;
//ERROR 1095 (HY000): You are not owner of thread 67
//mysql> kill 66;
//ERROR 1094 (HY000): Unknown thread id: 66
func (spanner *Spanner) handleKill(session *session, node *sqlparser.Kill) (*sqltypes.Result, error) {
	log := spanner.log
	id := uint32(node.QueryID.AsUint64())
	log.Warning("proxy.handleKill[%d].from.session[%v]", id, session.session.ID())
	sessions := spanner.sessions

	needKill := sessions.get(id)
	if needKill == nil {
		return nil, sqldb.NewSQLError1(1094, sqldb.SQLStateGeneral, "Unknown thread id: %d", id)
	}
	if needKill.session.User() != session.session.User() {
		return nil, sqldb.NewSQLError1(1095, sqldb.SQLStateGeneral, "You are not owner of thread %d", id)
	}
	sessions.Kill(id, "kill.query.from.client")
	return &sqltypes.Result{}, nil
}
