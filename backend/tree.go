/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package backend

import (
	"sync"
)

// TreeHandle is the index of a node inside an OrderTree arena.
type TreeHandle int32

// NilHandle is the empty handle.
const NilHandle TreeHandle = -1

type treeNode struct {
	key    string
	conn   *Connection
	parent TreeHandle
	left   TreeHandle
	right  TreeHandle
}

// OrderTree orders the connections taking part in one transaction so that
// commit and rollback walk them deterministically. Nodes live in an arena
// and link each other by handle, a connection only holds its own handle.
// It is not balanced, a transaction touches few shards.
type OrderTree struct {
	mu    sync.Mutex
	nodes []treeNode
	free  []TreeHandle
	root  TreeHandle
	count int
}

// NewOrderTree creates a new OrderTree.
func NewOrderTree() *OrderTree {
	return &OrderTree{root: NilHandle}
}

func less(akey string, aid uint64, bkey string, bid uint64) bool {
	if akey != bkey {
		return akey < bkey
	}
	return aid < bid
}

func (t *OrderTree) node(h TreeHandle) *treeNode {
	return &t.nodes[h]
}

// Insert adds conn under key and returns its handle.
func (t *OrderTree) Insert(key string, conn *Connection) TreeHandle {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := treeNode{key: key, conn: conn, parent: NilHandle, left: NilHandle, right: NilHandle}
	var h TreeHandle
	if l := len(t.free); l > 0 {
		h = t.free[l-1]
		t.free = t.free[:l-1]
		t.nodes[h] = n
	} else {
		h = TreeHandle(len(t.nodes))
		t.nodes = append(t.nodes, n)
	}
	t.count++

	if t.root == NilHandle {
		t.root = h
		return h
	}
	cur := t.root
	for {
		c := t.node(cur)
		if less(key, conn.ID(), c.key, c.conn.ID()) {
			if c.left == NilHandle {
				c.left = h
				break
			}
			cur = c.left
		} else {
			if c.right == NilHandle {
				c.right = h
				break
			}
			cur = c.right
		}
	}
	t.node(h).parent = cur
	return h
}

func (t *OrderTree) min(h TreeHandle) TreeHandle {
	for h != NilHandle && t.node(h).left != NilHandle {
		h = t.node(h).left
	}
	return h
}

func (t *OrderTree) max(h TreeHandle) TreeHandle {
	for h != NilHandle && t.node(h).right != NilHandle {
		h = t.node(h).right
	}
	return h
}

// First returns the smallest handle.
func (t *OrderTree) First() TreeHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.min(t.root)
}

// Last returns the largest handle.
func (t *OrderTree) Last() TreeHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.max(t.root)
}

func (t *OrderTree) next(h TreeHandle) TreeHandle {
	if h == NilHandle {
		return NilHandle
	}
	if r := t.node(h).right; r != NilHandle {
		return t.min(r)
	}
	p := t.node(h).parent
	for p != NilHandle && h == t.node(p).right {
		h, p = p, t.node(p).parent
	}
	return p
}

// Next returns the in-order successor of h.
func (t *OrderTree) Next(h TreeHandle) TreeHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next(h)
}

// Prev returns the in-order predecessor of h.
func (t *OrderTree) Prev(h TreeHandle) TreeHandle {
	t.mu.Lock()
	defer t.mu.Unlock()

	if h == NilHandle {
		return NilHandle
	}
	if l := t.node(h).left; l != NilHandle {
		return t.max(l)
	}
	p := t.node(h).parent
	for p != NilHandle && h == t.node(p).left {
		h, p = p, t.node(p).parent
	}
	return p
}

// replace puts v in the place of u under u's parent.
func (t *OrderTree) replace(u, v TreeHandle) {
	p := t.node(u).parent
	switch {
	case p == NilHandle:
		t.root = v
	case t.node(p).left == u:
		t.node(p).left = v
	default:
		t.node(p).right = v
	}
	if v != NilHandle {
		t.node(v).parent = p
	}
}

// Delete removes h and returns the new root.
func (t *OrderTree) Delete(h TreeHandle) TreeHandle {
	t.mu.Lock()
	defer t.mu.Unlock()

	if h == NilHandle || int(h) >= len(t.nodes) || t.node(h).conn == nil {
		return t.root
	}
	n := t.node(h)
	switch {
	case n.left == NilHandle:
		t.replace(h, n.right)
	case n.right == NilHandle:
		t.replace(h, n.left)
	default:
		s := t.min(n.right)
		if t.node(s).parent != h {
			t.replace(s, t.node(s).right)
			t.node(s).right = n.right
			t.node(n.right).parent = s
		}
		t.replace(h, s)
		t.node(s).left = n.left
		t.node(n.left).parent = s
	}
	t.nodes[h] = treeNode{parent: NilHandle, left: NilHandle, right: NilHandle}
	t.free = append(t.free, h)
	t.count--
	return t.root
}

// Conn returns the connection at h.
func (t *OrderTree) Conn(h TreeHandle) *Connection {
	t.mu.Lock()
	defer t.mu.Unlock()
	if h == NilHandle || int(h) >= len(t.nodes) {
		return nil
	}
	return t.node(h).conn
}

// Len returns the number of nodes.
func (t *OrderTree) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Conns returns the connections in order.
func (t *OrderTree) Conns() []*Connection {
	t.mu.Lock()
	defer t.mu.Unlock()

	conns := make([]*Connection, 0, t.count)
	for h := t.min(t.root); h != NilHandle; h = t.next(h) {
		conns = append(conns, t.node(h).conn)
	}
	return conns
}

// Walk calls fn on every connection in order, stops at the first error.
func (t *OrderTree) Walk(fn func(conn *Connection) error) error {
	for _, conn := range t.Conns() {
		if err := fn(conn); err != nil {
			return err
		}
	}
	return nil
}
