/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package backend

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/radondb/fedlink/xcontext"

	"github.com/pkg/errors"
	"github.com/xelabs/go-mysqlstack/sqlparser/depends/sqltypes"
	"github.com/xelabs/go-mysqlstack/xlog"
)

type txnState int32

const (
	txnStateLive txnState = iota
	txnStateExecuting
	txnStateRollbacking
	txnStateCommitting
	txnStateFinshing
	txnStateAborting
)

// Txn is the unit owning the connections of one statement, or of several
// statements inside a transaction. Its id is the owner of its connection keys.
type Txn struct {
	log      *xlog.Log
	id       uint64
	xid      string
	mu       sync.Mutex
	mgr      *TxnManager
	registry *Registry
	identity *Identity
	txnd     *TxnDetail
	start    time.Time
	state    atomic.Int32
	xaState  atomic.Int32

	// twopc is set by BeginXA, inTxn by Begin or BeginXA.
	twopc bool
	inTxn bool

	settings  []Command
	timeout   int
	maxResult int
	errors    int

	tree *OrderTree
	// Shard.Qualified() -> connection held by the txn.
	conns map[string]*Connection
}

// NewTxn creates the new Txn.
func NewTxn(log *xlog.Log, txid uint64, mgr *TxnManager, registry *Registry, identity *Identity) *Txn {
	txn := &Txn{
		log:      log,
		id:       txid,
		mgr:      mgr,
		registry: registry,
		identity: identity,
		start:    time.Now(),
		tree:     NewOrderTree(),
		conns:    make(map[string]*Connection),
	}
	txnd := NewTxnDetail(txn)
	txn.txnd = txnd
	mgr.txnz.Add(txnd)
	return txn
}

// SetTimeout used to set the statement timeout in milliseconds.
func (txn *Txn) SetTimeout(timeout int) {
	txn.timeout = timeout
}

// SetMaxResult used to set the txn max result.
func (txn *Txn) SetMaxResult(max int) {
	txn.maxResult = max
}

// SetSettings sets the session settings queued on every connection.
func (txn *Txn) SetSettings(settings []Command) {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	txn.settings = settings
}

// TxID returns txn id.
func (txn *Txn) TxID() uint64 {
	return txn.id
}

// XID returns txn xid.
func (txn *Txn) XID() string {
	return txn.xid
}

// State returns txn.state.
func (txn *Txn) State() int32 {
	return txn.state.Load()
}

// XaState returns txn xastate.
func (txn *Txn) XaState() int32 {
	return txn.xaState.Load()
}

// InTransaction reports whether Begin or BeginXA was called.
func (txn *Txn) InTransaction() bool {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	return txn.inTxn
}

// Conns returns the connections of the txn in order.
func (txn *Txn) Conns() []*Connection {
	return txn.tree.Conns()
}

// Begin starts a plain transaction, START TRANSACTION is queued on every
// connection at its first use.
func (txn *Txn) Begin() error {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	txn.inTxn = true
	return nil
}

func (txn *Txn) incErrors() {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	txn.errors++
}

// target is the work of one shard in a statement.
type target struct {
	shard   *Shard
	queries []string
	link    int
	tried   map[int]bool
	conn    *Connection
	qr      *sqltypes.Result
	err     error
	done    bool
}

func (txn *Txn) targets(table *Table, req *xcontext.RequestContext) ([]*target, error) {
	var targets []*target
	newTarget := func(shard *Shard, queries []string) *target {
		return &target{shard: shard, queries: queries, link: NoLink, tried: make(map[int]bool)}
	}

	switch req.Mode {
	case xcontext.ReqSingle:
		targets = append(targets, newTarget(table.Shards()[0], []string{req.RawQuery}))
	case xcontext.ReqScatter:
		for _, shard := range table.Shards() {
			targets = append(targets, newTarget(shard, []string{req.RawQuery}))
		}
	case xcontext.ReqNormal:
		queries := make(map[string][]string)
		for _, qt := range req.Querys {
			if _, err := table.Shard(qt.Shard); err != nil {
				return nil, err
			}
			queries[qt.Shard] = append(queries[qt.Shard], qt.Query)
		}
		for _, shard := range table.Shards() {
			if qs, ok := queries[shard.Name]; ok {
				targets = append(targets, newTarget(shard, qs))
			}
		}
	}
	return targets, nil
}

// acquire returns the connection of the target, the one the txn already
// holds on the shard or a new one from the registry, with the session
// settings, the loop marker and the transaction start queued.
func (txn *Txn) acquire(ctx context.Context, table *Table, t *target, marker string) (*Connection, error) {
	q := t.shard.Qualified()

	txn.mu.Lock()
	conn, held := txn.conns[q]
	settings := txn.settings
	inTxn, twopc, xid := txn.inTxn, txn.twopc, txn.xid
	txn.mu.Unlock()

	if !held {
		idx := t.link
		if idx == NoLink {
			var err error
			if idx, err = t.shard.Links.Select(); err != nil {
				return nil, err
			}
		}
		link := t.shard.Links.Link(idx)
		key := NewConnKey(txn.id, q, idx, link.Conf())
		var err error
		if conn, err = txn.registry.Get(ctx, key, link); err != nil {
			return nil, err
		}
		conn.attach(txn.tree, q)
		txn.mu.Lock()
		txn.conns[q] = conn
		txn.mu.Unlock()

		switch {
		case twopc:
			conn.Enqueue(XAStart(xid))
			conn.SetXA(true)
		case inTxn:
			conn.Enqueue(StartTransaction())
		}
	}
	t.link = conn.Key().Link
	t.tried[t.link] = true

	conn.ResetLoopChecks()
	for _, cmd := range settings {
		conn.Enqueue(cmd)
	}
	conn.QueueCheck(txn.identity, table.Name, t.shard.RemoteTable, marker)
	return conn, nil
}

// drop removes the connection of the target from the txn and frees it.
func (txn *Txn) drop(t *target) {
	q := t.shard.Qualified()
	txn.mu.Lock()
	conn := txn.conns[q]
	delete(txn.conns, q)
	txn.mu.Unlock()
	if conn != nil {
		txn.registry.Free(conn)
	}
}

// failover reports whether the target can be retried on another link.
func (txn *Txn) failover(t *target) bool {
	if txn.InTransaction() || t.err == nil {
		return false
	}
	switch {
	case IsKind(t.err, KindJobCancelled), IsLoopDetected(t.err), IsKind(t.err, KindLinkExhausted):
		return false
	case IsKind(t.err, KindConnectionUnavailable):
	case t.conn != nil && t.conn.Broken():
	default:
		return false
	}

	failed := t.link
	txn.drop(t)
	next, err := t.shard.Links.Failover(failed)
	if err != nil || t.tried[next] {
		t.err = newError(KindLinkExhausted, t.err, "links.tried[%d]", len(t.tried)).at(t.shard.Table, t.shard.Name, NoLink)
		return false
	}
	txn.log.Warning("txn[%d].shard[%s].link[%d].failover.to[%d]:%v", txn.id, t.shard.Qualified(), failed, next, t.err)
	t.link = next
	t.conn, t.qr, t.err = nil, nil, nil
	return true
}

// Execute runs the request on the shards of its table and returns the
// results appended in shard order. A statement carrying a loop marker that
// already went through this table fails before any remote work.
func (txn *Txn) Execute(table *Table, req *xcontext.RequestContext) (*sqltypes.Result, error) {
	if txn.twopc {
		switch req.TxnMode {
		case xcontext.TxnRead:
			// read-txn acquires the commit read-lock.
			txn.mgr.CommitRLock()
			defer txn.mgr.CommitRUnlock()
		}
	}
	qr, err := txn.execute(table, req)
	if err != nil {
		txn.incErrors()
		return nil, err
	}
	return qr, nil
}

func (txn *Txn) execute(table *Table, req *xcontext.RequestContext) (*sqltypes.Result, error) {
	log := txn.log
	txn.state.Store(int32(txnStateExecuting))

	if err := txn.identity.CheckLoop(table.Name, req.LoopMarker); err != nil {
		log.Error("txn[%d].table[%s].loop.detected.marker[%s]", txn.id, table.Name, req.LoopMarker)
		return nil, err
	}

	targets, err := txn.targets(table, req)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	for pending := targets; len(pending) > 0; {
		var conns []*Connection
		var jobs []*Job
		var running []*target
		for _, t := range pending {
			conn, err := txn.acquire(ctx, table, t, req.LoopMarker)
			if err != nil {
				t.err = err
				continue
			}
			t.conn = conn
			conns = append(conns, conn)
			jobs = append(jobs, &Job{
				Action:  JobRunQueuedSearch,
				Queries: t.queries,
				Table:   table.Name,
				MaxRows: txn.maxResult,
				Timeout: time.Duration(txn.timeout) * time.Millisecond,
			})
			running = append(running, t)
		}

		if err := Dispatch(conns, jobs); err != nil {
			return nil, err
		}
		WaitAll(conns)
		for i, t := range running {
			t.qr, t.err = conns[i].Wait()
		}

		var retry []*target
		for _, t := range pending {
			if t.err != nil && txn.failover(t) {
				retry = append(retry, t)
			}
		}
		pending = retry
	}

	qr := &sqltypes.Result{}
	for _, t := range targets {
		if t.err != nil {
			log.Error("txn[%d].execute.on.shard[%s].error:%+v", txn.id, t.shard.Qualified(), t.err)
			return nil, t.err
		}
		if t.qr != nil {
			qr.AppendResult(t.qr)
		}
	}
	return qr, nil
}

// ExecuteScatter used to execute query on all shards.
func (txn *Txn) ExecuteScatter(table *Table, query string) (*sqltypes.Result, error) {
	rctx := &xcontext.RequestContext{
		Table:    table.Name,
		RawQuery: query,
		Mode:     xcontext.ReqScatter,
	}
	return txn.Execute(table, rctx)
}

// ExecuteSingle used to execute query on one shard.
func (txn *Txn) ExecuteSingle(table *Table, query string) (*sqltypes.Result, error) {
	rctx := &xcontext.RequestContext{
		Table:    table.Name,
		RawQuery: query,
		Mode:     xcontext.ReqSingle,
	}
	return txn.Execute(table, rctx)
}

// ExecuteOnThisShard used to send the query to this shard.
func (txn *Txn) ExecuteOnThisShard(table *Table, shard string, query string) (*sqltypes.Result, error) {
	rctx := &xcontext.RequestContext{
		Table:  table.Name,
		Querys: []xcontext.QueryTuple{{Query: query, Shard: shard}},
	}
	return txn.Execute(table, rctx)
}

// Checksum checksums the remote table of every shard and returns one row
// with the sum.
func (txn *Txn) Checksum(table *Table) (*sqltypes.Result, error) {
	var conns []*Connection
	var jobs []*Job
	for _, shard := range table.Shards() {
		t := &target{shard: shard, link: NoLink, tried: make(map[int]bool)}
		conn, err := txn.acquire(context.Background(), table, t, "")
		if err != nil {
			txn.incErrors()
			return nil, err
		}
		conns = append(conns, conn)
		jobs = append(jobs, &Job{Action: JobChecksumTable, Table: shard.RemoteTable})
	}
	results, err := Fanout(conns, jobs)
	if err != nil {
		txn.incErrors()
		return nil, err
	}

	var sum uint64
	qr := &sqltypes.Result{}
	for _, r := range results {
		if r == nil || len(r.Rows) == 0 || len(r.Rows[0]) < 2 {
			continue
		}
		if qr.Fields == nil {
			qr.Fields = r.Fields
		}
		v, err := r.Rows[0][1].ParseUint64()
		if err != nil {
			return nil, errors.Wrapf(err, "txn.checksum.table[%s]", table.Name)
		}
		sum += v
	}
	qr.Rows = [][]sqltypes.Value{{sqltypes.NewVarChar(table.Name), sqltypes.NewUint64(sum)}}
	qr.RowsAffected = 1
	return qr, nil
}

// Commit commits the transaction on every connection in tree order.
func (txn *Txn) Commit() error {
	txn.state.Store(int32(txnStateCommitting))
	if txn.twopc {
		return txn.xaCommit()
	}
	if !txn.InTransaction() {
		return nil
	}
	return txn.endEach("COMMIT")
}

// Rollback rolls the transaction back on every connection in tree order.
func (txn *Txn) Rollback() error {
	txn.state.Store(int32(txnStateRollbacking))
	if txn.twopc {
		return txn.xaRollback()
	}
	if !txn.InTransaction() {
		return nil
	}
	return txn.endEach("ROLLBACK")
}

// endEach sends query on every started connection in tree order.
func (txn *Txn) endEach(query string) error {
	defer txn.endTransaction()
	return txn.tree.Walk(func(conn *Connection) error {
		if conn.pendingStructural() {
			// The transaction never started there.
			conn.ClearQueueAtCommit()
			return nil
		}
		if _, err := conn.Execute(context.Background(), query); err != nil {
			txn.log.Error("txn[%d].%s.on[%s].error:%+v", txn.id, query, conn.Address(), err)
			txn.incErrors()
			return err
		}
		return nil
	})
}

func (txn *Txn) endTransaction() {
	txn.mu.Lock()
	txn.inTxn = false
	txn.twopc = false
	txn.mu.Unlock()
	for _, conn := range txn.tree.Conns() {
		conn.ClearQueueAtCommit()
		conn.SetXA(false)
	}
}

// Finish gives the connections back: pooled when the txn saw no error,
// freed otherwise.
func (txn *Txn) Finish() error {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	defer txn.mgr.txnz.Remove(txn.txnd)

	// If the txn has aborted, we won't do finish.
	if txn.state.Load() == int32(txnStateAborting) {
		return nil
	}
	txn.xaState.Store(int32(txnXAStateNone))
	txn.state.Store(int32(txnStateFinshing))

	for _, conn := range txn.tree.Conns() {
		if txn.errors > 0 || txn.inTxn {
			txn.registry.Free(conn)
		} else {
			txn.registry.Release(conn)
		}
	}
	txn.conns = make(map[string]*Connection)
	txn.inTxn = false
	txn.twopc = false
	txn.mgr.Remove()
	return nil
}

// Abort breaks every running job and frees the connections.
func (txn *Txn) Abort() error {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	defer txn.mgr.txnz.Remove(txn.txnd)

	// If the txn has finished, we won't do abort.
	if txn.state.Load() == int32(txnStateFinshing) {
		return nil
	}
	txn.state.Store(int32(txnStateAborting))

	conns := txn.tree.Conns()
	for _, conn := range conns {
		conn.Break()
	}
	for _, conn := range conns {
		txn.registry.Free(conn)
	}
	txn.conns = make(map[string]*Connection)
	txn.mgr.Remove()
	return nil
}
