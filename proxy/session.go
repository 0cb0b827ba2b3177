/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package proxy

import (
	"sync"
	"time"

	"github.com/radondb/fedlink/backend"

	"github.com/xelabs/go-mysqlstack/driver"
	"github.com/xelabs/go-mysqlstack/xlog"
)

// session is the state of one client session: the settings it applied,
// the loop markers the upstream node set and its transactions.
type session struct {
	log       *xlog.Log
	mu        sync.Mutex // Race with snapshot
	query     string
	session   *driver.Session
	timestamp int64
	settings  []backend.Command
	// marker name(lower case) -> value.
	markers map[string]string
	// txn is the explicit transaction opened by BEGIN, nil in autocommit.
	txn *backend.Txn
	// running is the txn executing the current statement.
	running *backend.Txn
}

func newSession(log *xlog.Log, s *driver.Session) *session {
	log.Debug("session[%v].created", s.ID())
	return &session{
		log:       log,
		session:   s,
		timestamp: time.Now().Unix(),
		markers:   make(map[string]string),
	}
}

// setSetting records cmd, replacing the setting of the same kind.
func (s *session) setSetting(cmd backend.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.settings {
		if s.settings[i].Kind == cmd.Kind {
			s.settings[i] = cmd
			return
		}
	}
	s.settings = append(s.settings, cmd)
}

func (s *session) getSettings() []backend.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings := make([]backend.Command, len(s.settings))
	copy(settings, s.settings)
	return settings
}

// setMarker records the loop marker name, an empty value drops it.
func (s *session) setMarker(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == "" {
		delete(s.markers, name)
		return
	}
	s.markers[name] = value
}

func (s *session) getMarker(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markers[name]
}

func (s *session) openTxn() *backend.Txn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txn
}

func (s *session) setOpenTxn(txn *backend.Txn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txn = txn
}

// close ends the session transactions: the running statement is aborted,
// an open transaction is rolled back.
func (s *session) close() {
	log := s.log

	s.mu.Lock()
	running, txn := s.running, s.txn
	s.running, s.txn = nil, nil
	s.mu.Unlock()

	if running != nil {
		log.Warning("session[%v].close.abort.txn[%d]", s.session.ID(), running.TxID())
		if err := running.Abort(); err != nil {
			log.Error("session.close.txn.abort.error:%+v", err)
		}
		if running == txn {
			return
		}
	}
	if txn != nil {
		if err := txn.Rollback(); err != nil {
			log.Error("session.close.txn.rollback.error:%+v", err)
		}
		txn.Finish()
	}
}
