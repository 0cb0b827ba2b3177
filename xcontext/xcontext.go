/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package xcontext

import (
	"github.com/xelabs/go-mysqlstack/sqlparser/depends/sqltypes"
)

// RequestMode type.
type RequestMode int

const (
	// ReqNormal mode sends every QueryTuple to its own shard.
	// This is the default mode.
	ReqNormal RequestMode = iota

	// ReqScatter mode sends the RawQuery to every shard of the table.
	ReqScatter

	// ReqSingle mode sends the RawQuery to the first shard of the table.
	ReqSingle
)

// TxnMode type.
type TxnMode int

const (
	// TxnNone enum.
	TxnNone TxnMode = iota
	// TxnRead enum.
	TxnRead
	// TxnWrite enum.
	TxnWrite
)

// ResultContext tuple.
type ResultContext struct {
	Results *sqltypes.Result
}

// NewResultContext returns the result context.
func NewResultContext() *ResultContext {
	return &ResultContext{}
}

// RequestContext tuple.
type RequestContext struct {
	// Table is the qualified name of the federated table.
	Table    string
	RawQuery string
	Mode     RequestMode
	TxnMode  TxnMode
	Querys   []QueryTuple

	// LoopMarker is the loop-check value the upstream node set for Table,
	// empty when the statement comes from a plain client.
	LoopMarker string
}

// NewRequestContext creates RequestContext
// The default Mode is ReqNormal
func NewRequestContext() *RequestContext {
	return &RequestContext{}
}

// QueryTuple tuple.
type QueryTuple struct {
	// Query string.
	Query string

	// Shard name.
	Shard string
}

// QueryTuples represents the query tuple slice.
type QueryTuples []QueryTuple

// Len impl.
func (q QueryTuples) Len() int { return len(q) }

// Swap impl.
func (q QueryTuples) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

// Less impl.
func (q QueryTuples) Less(i, j int) bool { return q[i].Shard < q[j].Shard }
