/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package backend

import (
	"math/rand"
	"testing"

	"github.com/radondb/fedlink/config"

	"github.com/stretchr/testify/assert"
	"github.com/xelabs/go-mysqlstack/xlog"
)

func mockTreeConn(log *xlog.Log, id uint64) *Connection {
	return newConnection(log, nil, id, ConnKey{}, nil, config.DefaultDispatcherConfig())
}

func treeIDs(tree *OrderTree) []uint64 {
	var ids []uint64
	for _, c := range tree.Conns() {
		ids = append(ids, c.ID())
	}
	return ids
}

func TestOrderTreeEnumerate(t *testing.T) {
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	tree := NewOrderTree()

	handles := make(map[uint64]TreeHandle)
	for _, id := range []uint64{5, 3, 8, 1, 4, 7, 9} {
		handles[id] = tree.Insert("k", mockTreeConn(log, id))
	}
	assert.Equal(t, 7, tree.Len())
	assert.Equal(t, []uint64{1, 3, 4, 5, 7, 8, 9}, treeIDs(tree))

	// First/Next and Last/Prev.
	{
		var fwd, bwd []uint64
		for h := tree.First(); h != NilHandle; h = tree.Next(h) {
			fwd = append(fwd, tree.Conn(h).ID())
		}
		for h := tree.Last(); h != NilHandle; h = tree.Prev(h) {
			bwd = append(bwd, tree.Conn(h).ID())
		}
		assert.Equal(t, []uint64{1, 3, 4, 5, 7, 8, 9}, fwd)
		assert.Equal(t, []uint64{9, 8, 7, 5, 4, 3, 1}, bwd)
	}

	// Delete a leaf, a node with one child and the root.
	{
		tree.Delete(handles[1])
		tree.Delete(handles[3])
		tree.Delete(handles[5])
		assert.Equal(t, 4, tree.Len())
		assert.Equal(t, []uint64{4, 7, 8, 9}, treeIDs(tree))
	}

	// Freed slots are reused.
	{
		h := tree.Insert("k", mockTreeConn(log, 2))
		assert.True(t, h == handles[1] || h == handles[3] || h == handles[5])
		assert.Equal(t, []uint64{2, 4, 7, 8, 9}, treeIDs(tree))
	}

	// Deleting a stale handle is a no-op.
	{
		tree.Delete(NilHandle)
		tree.Delete(TreeHandle(100))
		assert.Equal(t, 5, tree.Len())
	}
}

func TestOrderTreeKeyOrder(t *testing.T) {
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	tree := NewOrderTree()

	tree.Insert("db.t/s1", mockTreeConn(log, 1))
	tree.Insert("db.t/s0", mockTreeConn(log, 2))
	tree.Insert("db.t/s0", mockTreeConn(log, 3))
	assert.Equal(t, []uint64{2, 3, 1}, treeIDs(tree))
}

func TestOrderTreeRandom(t *testing.T) {
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	tree := NewOrderTree()
	r := rand.New(rand.NewSource(1))

	live := make(map[uint64]TreeHandle)
	for i := 0; i < 500; i++ {
		id := uint64(r.Intn(200))
		if h, ok := live[id]; ok {
			tree.Delete(h)
			delete(live, id)
			continue
		}
		live[id] = tree.Insert("k", mockTreeConn(log, id))
	}

	ids := treeIDs(tree)
	assert.Equal(t, len(live), tree.Len())
	assert.Equal(t, len(live), len(ids))
	for i := 1; i < len(ids); i++ {
		assert.True(t, ids[i-1] < ids[i])
	}

	n := 0
	err := tree.Walk(func(conn *Connection) error {
		n++
		return nil
	})
	assert.Nil(t, err)
	assert.Equal(t, len(live), n)
}
