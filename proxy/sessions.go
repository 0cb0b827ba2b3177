/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package proxy

import (
	"sort"
	"sync"
	"time"

	"github.com/radondb/fedlink/backend"
	"github.com/radondb/fedlink/xbase"

	"github.com/xelabs/go-mysqlstack/driver"
	"github.com/xelabs/go-mysqlstack/xlog"
)

// Sessions tuple.
type Sessions struct {
	log *xlog.Log
	mu  sync.RWMutex
	// Key is session ID.
	sessions map[uint32]*session
}

// NewSessions creates new session.
func NewSessions(log *xlog.Log) *Sessions {
	return &Sessions{
		log:      log,
		sessions: make(map[uint32]*session),
	}
}

// Add used to add the session to map when session created.
func (ss *Sessions) Add(s *driver.Session) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.sessions[s.ID()] = newSession(ss.log, s)
}

func (ss *Sessions) get(id uint32) *session {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.sessions[id]
}

// Remove used to remove the session from the map when session exit.
func (ss *Sessions) Remove(s *driver.Session) {
	ss.mu.Lock()
	session, ok := ss.sessions[s.ID()]
	if !ok {
		ss.mu.Unlock()
		return
	}
	delete(ss.sessions, s.ID())
	ss.mu.Unlock()

	session.close()
}

// Kill used to kill a live session.
// 1. remove from sessions list.
// 2. close the session from the server side.
// 3. abort the session's txn.
func (ss *Sessions) Kill(id uint32, reason string) bool {
	log := ss.log
	ss.mu.Lock()
	session, ok := ss.sessions[id]
	if !ok {
		ss.mu.Unlock()
		return false
	}
	log.Warning("session.id[%v].killed.reason:%s", id, reason)
	delete(ss.sessions, id)
	ss.mu.Unlock()

	session.session.Close()
	session.close()
	return true
}

// Reaches used to check whether the sessions count reaches(>=) the quota.
func (ss *Sessions) Reaches(quota int) bool {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return (len(ss.sessions) >= quota)
}

// TxnBinding used to bind the running txn to the session.
func (ss *Sessions) TxnBinding(s *driver.Session, txn *backend.Txn, query string) {
	session := ss.get(s.ID())
	if session == nil {
		return
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	session.query = xbase.TruncateQuery(query, 128)
	session.running = txn
	session.timestamp = time.Now().Unix()
}

// TxnUnBinding used to set the running txn to nil.
func (ss *Sessions) TxnUnBinding(s *driver.Session) {
	session := ss.get(s.ID())
	if session == nil {
		return
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	session.query = ""
	session.running = nil
	session.timestamp = time.Now().Unix()
}

// Close used to close all sessions.
func (ss *Sessions) Close() {
	ss.mu.Lock()
	all := make([]*session, 0, len(ss.sessions))
	for k, v := range ss.sessions {
		all = append(all, v)
		delete(ss.sessions, k)
	}
	ss.mu.Unlock()

	for _, v := range all {
		v.session.Close()
		v.close()
	}
}

// SessionInfo tuple.
type SessionInfo struct {
	ID      uint32
	User    string
	Host    string
	DB      string
	Command string
	Time    uint32
	Info    string
	InTxn   bool
	Markers int
}

// Sort by id.
type sessionInfos []SessionInfo

// Len impl.
func (q sessionInfos) Len() int { return len(q) }

// Swap impl.
func (q sessionInfos) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

// Less impl.
func (q sessionInfos) Less(i, j int) bool { return q[i].ID < q[j].ID }

// Snapshot returns all session info.
func (ss *Sessions) Snapshot() []SessionInfo {
	var infos sessionInfos

	now := time.Now().Unix()
	ss.mu.RLock()
	for _, v := range ss.sessions {
		v.mu.Lock()
		info := SessionInfo{
			ID:      v.session.ID(),
			User:    v.session.User(),
			Host:    v.session.Addr(),
			DB:      v.session.Schema(),
			Command: "Sleep",
			Time:    uint32(now - v.timestamp),
			InTxn:   v.txn != nil,
			Markers: len(v.markers),
		}
		if v.running != nil {
			info.Command = "Query"
			info.Info = v.query
		}
		v.mu.Unlock()
		infos = append(infos, info)
	}
	ss.mu.RUnlock()
	sort.Sort(infos)
	return infos
}
