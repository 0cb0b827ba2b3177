/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package proxy

import (
	"github.com/radondb/fedlink/backend"
	"github.com/radondb/fedlink/config"
	"github.com/radondb/fedlink/monitor"
	"github.com/radondb/fedlink/xbase"

	"github.com/xelabs/go-mysqlstack/driver"
	"github.com/xelabs/go-mysqlstack/sqldb"
	"github.com/xelabs/go-mysqlstack/xlog"
)

// ServerVersion is the version the node greets its clients with.
const ServerVersion = "5.7.25-FedLink"

// Spanner tuple.
type Spanner struct {
	log      *xlog.Log
	conf     *config.Config
	engine   *backend.Engine
	sessions *Sessions
	throttle *xbase.Throttle
}

// NewSpanner creates a new spanner.
func NewSpanner(log *xlog.Log, conf *config.Config, engine *backend.Engine, sessions *Sessions, throttle *xbase.Throttle) *Spanner {
	return &Spanner{
		log:      log,
		conf:     conf,
		engine:   engine,
		sessions: sessions,
		throttle: throttle,
	}
}

// ServerVersion impl.
func (spanner *Spanner) ServerVersion() string {
	return ServerVersion
}

// SetServerVersion impl, the version is fixed.
func (spanner *Spanner) SetServerVersion() {
}

// NewSession impl.
func (spanner *Spanner) NewSession(s *driver.Session) {
	spanner.sessions.Add(s)
}

// SessionInc increase client connection metrics, it need the user is assigned
func (spanner *Spanner) SessionInc(s *driver.Session) {
	monitor.ClientConnectionInc(s.User())
}

// SessionDec decrease client connection metrics.
func (spanner *Spanner) SessionDec(s *driver.Session) {
	monitor.ClientConnectionDec(s.User())
}

// SessionClosed impl.
func (spanner *Spanner) SessionClosed(s *driver.Session) {
	spanner.sessions.Remove(s)
}

// ComInitDB impl, the database must hold a federated table.
func (spanner *Spanner) ComInitDB(s *driver.Session, database string) error {
	for _, table := range spanner.engine.Tables() {
		db, _ := splitTableName(table.Name)
		if db == database {
			return nil
		}
	}
	return sqldb.NewSQLErrorf(sqldb.ER_BAD_DB_ERROR, "Unknown database '%s'", database)
}

func (spanner *Spanner) isTwoPC() bool {
	return spanner.conf.Proxy.TwopcEnable
}
