/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package xcontext

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestXContext(t *testing.T) {
	q1 := QueryTuple{Query: "select b1", Shard: "s2"}
	q2 := QueryTuple{Query: "select a2", Shard: "s1"}
	q3 := QueryTuple{Query: "select 00", Shard: "s0"}
	querys := []QueryTuple{q1, q2, q3}

	sort.Sort(QueryTuples(querys))
	assert.Equal(t, querys[0], q3)
	assert.Equal(t, querys[1], q2)
	assert.Equal(t, querys[2], q1)
}

func TestXContextDefaults(t *testing.T) {
	req := NewRequestContext()
	assert.Equal(t, ReqNormal, req.Mode)
	assert.Equal(t, TxnNone, req.TxnMode)
	assert.Equal(t, "", req.LoopMarker)
	assert.Nil(t, NewResultContext().Results)
}
