/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package backend

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/radondb/fedlink/config"
)

// ConnKey is the identity of a connection.
// Two keys with the same PoolKey may share one physical session one after
// another, two keys with the same String never exist at the same time.
type ConnKey struct {
	// Owner is the transaction or background worker holding the connection.
	Owner uint64
	// Shard is the qualified shard name, table/shard.
	Shard    string
	Link     int
	Address  string
	User     string
	Database string
	Charset  string
	secret   string
}

// NewConnKey creates the key of the link-th link of shard for owner.
func NewConnKey(owner uint64, shard string, link int, conf *config.LinkConfig) ConnKey {
	sum := sha1.Sum([]byte(conf.Password))
	return ConnKey{
		Owner:    owner,
		Shard:    shard,
		Link:     link,
		Address:  conf.Address,
		User:     conf.User,
		Database: conf.DBName,
		Charset:  conf.Charset,
		secret:   hex.EncodeToString(sum[:8]),
	}
}

// PoolKey identifies the remote session regardless of the owner and shard.
func (k ConnKey) PoolKey() string {
	return fmt.Sprintf("%s@%s/%s?charset=%s&auth=%s", k.User, k.Address, k.Database, k.Charset, k.secret)
}

// Endpoint returns the network endpoint key.
func (k ConnKey) Endpoint() string {
	return k.Address
}

func (k ConnKey) String() string {
	return fmt.Sprintf("%d#%s#%d#%s", k.Owner, k.Shard, k.Link, k.PoolKey())
}
