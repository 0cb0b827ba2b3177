/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package proxy

import (
	"bytes"
	"crypto/sha1"

	"github.com/xelabs/go-mysqlstack/driver"
	"github.com/xelabs/go-mysqlstack/sqldb"
)

// SessionCheck used to check the max connections.
func (spanner *Spanner) SessionCheck(s *driver.Session) error {
	max := spanner.conf.Proxy.MaxConnections
	if spanner.sessions.Reaches(max) {
		return sqldb.NewSQLErrorf(sqldb.ER_CON_COUNT_ERROR, "Too many connections(max: %v)", max)
	}
	return nil
}

// stage2 returns SHA1(SHA1(password)).
func stage2(password string) []byte {
	crypt := sha1.New()
	crypt.Write([]byte(password))
	stage1 := crypt.Sum(nil)
	crypt.Reset()
	crypt.Write(stage1)
	return crypt.Sum(nil)
}

// AuthCheck impl, the node has one account: proxy.user/proxy.password.
func (spanner *Spanner) AuthCheck(s *driver.Session) error {
	log := spanner.log
	conf := spanner.conf.Proxy
	user := s.User()

	if user != conf.User {
		log.Error("proxy: auth.can't.find.the.user:%s", user)
		return sqldb.NewSQLErrorf(sqldb.ER_ACCESS_DENIED_ERROR, "Access denied for user '%v'", user)
	}

	// Server salt.
	salt := s.Salt()
	// Client response.
	resp := s.Scramble()

	if conf.Password == "" {
		if len(resp) == 0 {
			return nil
		}
		log.Error("proxy: auth.user[%s].failed(password.not.expected)", user)
		return sqldb.NewSQLErrorf(sqldb.ER_ACCESS_DENIED_ERROR, "Access denied for user '%v'", user)
	}
	if len(resp) != sha1.Size {
		log.Error("proxy: auth.user[%s].failed(scramble.size[%d])", user, len(resp))
		return sqldb.NewSQLErrorf(sqldb.ER_ACCESS_DENIED_ERROR, "Access denied for user '%v'", user)
	}

	wantStage2 := stage2(conf.Password)

	// last= SHA1(salt <concat> SHA1(SHA1(password)))
	crypt := sha1.New()
	crypt.Write(salt)
	crypt.Write(wantStage2)
	want := crypt.Sum(nil)

	// gotStage1 = SHA1(password)
	gotStage1 := make([]byte, sha1.Size)
	for i := range resp {
		// SHA1(password) = (resp XOR want)
		gotStage1[i] = (resp[i] ^ want[i])
	}

	// gotStage2 = SHA1(SHA1(password))
	crypt.Reset()
	crypt.Write(gotStage1)
	gotStage2 := crypt.Sum(nil)

	// last= SHA1(salt <concat> SHA1(SHA1(password)))
	crypt.Reset()
	crypt.Write(salt)
	crypt.Write(gotStage2)
	got := crypt.Sum(nil)

	if !bytes.Equal(want, got) {
		log.Error("proxy: auth.user[%s].failed(password.invalid):want[%+v]!=got[%+v]", user, want, got)
		return sqldb.NewSQLErrorf(sqldb.ER_ACCESS_DENIED_ERROR, "Access denied for user '%v'", user)
	}
	return nil
}
