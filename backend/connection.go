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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/radondb/fedlink/config"
	"github.com/radondb/fedlink/monitor"

	"github.com/pkg/errors"
	"github.com/xelabs/go-mysqlstack/driver"
	"github.com/xelabs/go-mysqlstack/sqldb"
	"github.com/xelabs/go-mysqlstack/sqlparser/depends/sqltypes"
	"github.com/xelabs/go-mysqlstack/xlog"
)

// LockMode is the table lock held through a connection.
type LockMode int

const (
	// LockNone holds no lock.
	LockNone LockMode = iota
	// LockShared holds a read lock.
	LockShared
	// LockExclusive holds a write lock.
	LockExclusive
)

func (m LockMode) String() string {
	switch m {
	case LockShared:
		return "SHARED"
	case LockExclusive:
		return "EXCLUSIVE"
	}
	return "NONE"
}

// Connection is one session to a remote link, owned by the registry.
type Connection struct {
	log      *xlog.Log
	id       uint64
	registry *Registry
	link     *Link
	dconf    *config.DispatcherConfig

	mu       sync.Mutex
	key      ConnKey
	driver   driver.Conn
	threadID uint32
	applied  map[settingKey]string
	queue    *CommandQueue
	checks   *LoopChecks
	lockMode LockMode
	xa       bool
	// If lastErr is not nil, this connection should be freed.
	lastErr error
	tree    *OrderTree
	handle  TreeHandle
	// Release timestamp, in unix nano.
	timestamp int64

	worker *worker

	pooled atomic.Bool
	freed  atomic.Bool
}

func newConnection(log *xlog.Log, registry *Registry, id uint64, key ConnKey, link *Link, dconf *config.DispatcherConfig) *Connection {
	c := &Connection{
		log:      log,
		id:       id,
		registry: registry,
		link:     link,
		dconf:    dconf,
		key:      key,
		applied:  make(map[settingKey]string),
		queue:    NewCommandQueue(),
		checks:   NewLoopChecks(),
		handle:   NilHandle,
	}
	c.worker = newWorker(c)
	c.queue.Enqueue(Command{Kind: CmdConnect})
	return c
}

// ID returns the registry-unique id of the connection.
func (c *Connection) ID() uint64 {
	return c.id
}

// Key returns the identity key.
func (c *Connection) Key() ConnKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key
}

// rekey hands a pooled connection to a new owner.
func (c *Connection) rekey(key ConnKey, link *Link) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = key
	c.link = link
}

// Link returns the link the connection talks to.
func (c *Connection) Link() *Link {
	return c.link
}

// Address returns the remote address.
func (c *Connection) Address() string {
	return c.link.Address()
}

// ThreadID returns the remote connection id, 0 before the dial.
func (c *Connection) ThreadID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threadID
}

// LockMode returns the lock mode.
func (c *Connection) LockMode() LockMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lockMode
}

// SetLockMode sets the lock mode.
func (c *Connection) SetLockMode(mode LockMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lockMode = mode
}

// SetXA marks the connection inside an XA transaction.
func (c *Connection) SetXA(xa bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.xa = xa
}

// InXA reports whether an XA transaction is in progress.
func (c *Connection) InXA() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.xa
}

// LastErr returns the error that broke the connection.
func (c *Connection) LastErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Broken reports whether the session is unusable.
func (c *Connection) Broken() bool {
	return c.LastErr() != nil
}

func (c *Connection) markBroken(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastErr == nil {
		c.lastErr = err
	}
}

// Enqueue defers cmd until the next flush. A setting already applied on
// the session with the same value is dropped.
func (c *Connection) Enqueue(cmd Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enqueue(cmd)
}

func (c *Connection) enqueue(cmd Command) {
	if cmd.Kind.IsSetting() {
		if v, ok := c.applied[cmd.key()]; ok && v == cmd.Value {
			c.queue.drop(cmd.key())
			return
		}
	}
	c.queue.Enqueue(cmd)
}

// ClearQueue discards every queued command.
func (c *Connection) ClearQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue.Clear()
}

// ClearQueueAtCommit discards the transaction-scoped commands.
func (c *Connection) ClearQueueAtCommit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue.ClearAtCommit()
}

// Pending returns the statements the next flush would send.
func (c *Connection) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Statements()
}

// PendingLen returns the number of queued commands.
func (c *Connection) PendingLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Len()
}

// pendingStructural reports whether a transaction statement is still
// waiting for the next flush.
func (c *Connection) pendingStructural() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue.structural) > 0
}

// LoopChecks returns the loop-check entries of the connection.
func (c *Connection) LoopChecks() *LoopChecks {
	return c.checks
}

// QueueCheck builds the probe of table toward the remote target and
// queues its marker on the session.
func (c *Connection) QueueCheck(id *Identity, table, target, from string) *LoopCheckEntry {
	entry := c.checks.QueueAndMerge(id.NewEntry(table, target, from))
	if entry.State == LoopCheckIgnored {
		return entry
	}
	c.Enqueue(SetLoopCheck(MarkerName(target), c.checks.MarkerValue(entry.TargetHash)))
	return entry
}

// ResetLoopChecks drops the pending probes and their queued markers.
func (c *Connection) ResetLoopChecks() {
	names := c.checks.Reset()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range names {
		c.queue.drop(settingKey{kind: CmdLoopCheck, name: name})
	}
}

func (c *Connection) busy() bool {
	return c.worker.State() != WorkerIdle
}

// Flush sends the queued commands now.
func (c *Connection) Flush(ctx context.Context) error {
	if c.busy() {
		return ErrConnectionBusy
	}
	return c.flush(ctx)
}

// flush sends the queued commands: the dial if pending, the ping if
// pending, then one SET and the structural commands. The queue is cleared
// on success and kept on failure.
func (c *Connection) flush(ctx context.Context) error {
	if c.freed.Load() {
		return ErrConnectionFreed
	}
	if ctx.Err() != nil {
		return errCancelled
	}

	c.mu.Lock()
	key := c.key
	batch := c.queue.take()
	dial := batch.connect || c.driver == nil || c.driver.Closed()
	c.mu.Unlock()

	var err error
	if dial {
		if err = c.connect(); err == nil {
			batch.connect = false
		}
	} else if batch.ping {
		if err = c.ping(); err != nil {
			err = newError(KindQueueFlushFailed, err, "ping").at("", key.Shard, key.Link)
		}
	}
	batch.ping = false
	if err == nil {
		for _, stmt := range batch.Statements() {
			if ctx.Err() != nil {
				err = errCancelled
				break
			}
			if _, err = c.fetch(ctx, stmt, -1); err != nil {
				err = newError(KindQueueFlushFailed, err, "flush[%s]", stmt).at("", key.Shard, key.Link)
				break
			}
		}
	}

	c.mu.Lock()
	if err != nil {
		c.queue.restore(batch)
		c.mu.Unlock()
		if !errors.Is(err, errCancelled) {
			monitor.FlushFailureInc(c.Address())
			c.log.Error("conn[%d:%s].flush.error:%+v", c.id, c.Address(), err)
		}
		return err
	}
	for _, cmd := range batch.Settings() {
		c.applied[cmd.key()] = cmd.Value
	}
	c.mu.Unlock()
	c.checks.Resolve()
	return nil
}

// connect dials the link, the previous session if any is closed.
func (c *Connection) connect() error {
	conf := c.link.Conf()

	c.mu.Lock()
	key := c.key
	old := c.driver
	c.driver = nil
	c.threadID = 0
	c.mu.Unlock()
	if old != nil {
		old.Close()
		monitor.LinkConnectionDec(conf.Address, "open")
	}

	drv, err := driver.NewConn(conf.User, conf.Password, conf.Address, conf.DBName, conf.Charset)
	if err != nil {
		c.log.Error("conn[%d:%s].dial.error:%+v", c.id, conf.Address, err)
		c.markBroken(err)
		return newError(KindConnectionUnavailable, err, "dial[%s]", conf.Address).at("", key.Shard, key.Link)
	}
	monitor.LinkConnectionInc(conf.Address, "open")

	c.mu.Lock()
	defer c.mu.Unlock()
	c.driver = drv
	c.threadID = drv.ConnectionID()
	c.applied = make(map[settingKey]string)
	c.lastErr = nil
	return nil
}

// disconnect closes the session, the next flush dials again.
func (c *Connection) disconnect() error {
	c.mu.Lock()
	drv := c.driver
	c.driver = nil
	c.threadID = 0
	c.applied = make(map[settingKey]string)
	c.queue.Enqueue(Command{Kind: CmdConnect})
	c.mu.Unlock()

	c.checks.Clear()
	if drv == nil {
		return nil
	}
	monitor.LinkConnectionDec(c.Address(), "open")
	return drv.Close()
}

func (c *Connection) ping() error {
	c.mu.Lock()
	drv := c.driver
	c.mu.Unlock()
	if drv == nil {
		return errors.New("connection.not.connected")
	}
	if err := drv.Ping(); err != nil {
		c.markBroken(err)
		return err
	}
	return nil
}

// Ping flushes the queue and pings the session.
func (c *Connection) Ping(ctx context.Context) error {
	if err := c.Flush(ctx); err != nil {
		return err
	}
	return c.ping()
}

// Execute flushes the queue and runs query synchronously.
func (c *Connection) Execute(ctx context.Context, query string) (*sqltypes.Result, error) {
	if c.busy() {
		return nil, ErrConnectionBusy
	}
	if err := c.flush(ctx); err != nil {
		return nil, err
	}
	return c.fetch(ctx, query, -1)
}

// fetch runs query, ctx is checked between rows.
func (c *Connection) fetch(ctx context.Context, query string, maxRows int) (*sqltypes.Result, error) {
	if ctx.Err() != nil {
		return nil, errCancelled
	}

	c.mu.Lock()
	drv := c.driver
	c.mu.Unlock()
	if drv == nil || drv.Closed() {
		err := errors.Errorf("conn[%d:%s].not.connected", c.id, c.Address())
		c.markBroken(err)
		return nil, err
	}

	maxSize := c.dconf.MaxResultSize
	checkFunc := func(rows driver.Rows) error {
		if ctx.Err() != nil {
			return errCancelled
		}
		if maxSize > 0 && rows.Bytes() > maxSize {
			return sqldb.NewSQLErrorf(sqldb.ER_UNKNOWN_ERROR, "Query execution was interrupted, max memory usage[%d bytes] exceeded", maxSize)
		}
		return nil
	}

	if maxRows <= 0 {
		maxRows = -1
	}
	qr, err := drv.FetchAllWithFunc(query, maxRows, checkFunc)
	if err != nil {
		if errors.Is(err, errCancelled) || ctx.Err() != nil {
			return nil, errCancelled
		}
		if isConnError(err) {
			c.markBroken(err)
		}
		c.log.Error("conn[%d:%s].execute[%s].error:%+v", c.id, c.Address(), query, err)
		return nil, err
	}
	return qr, nil
}

// kill kills the running statement through a side session.
func (c *Connection) kill(reason string) error {
	tid := c.ThreadID()
	if tid == 0 {
		return nil
	}
	conf := c.link.Conf()
	kc, err := driver.NewConn(conf.User, conf.Password, conf.Address, "", conf.Charset)
	if err != nil {
		c.log.Warning("conn[%d:%s].kill.dial.error:%+v", c.id, conf.Address, err)
		return err
	}
	defer kc.Close()

	c.log.Warning("conn[%d:%s, ID:%v].be.killed.reason[%s]", c.id, conf.Address, tid, reason)
	if _, err = kc.FetchAll(fmt.Sprintf("KILL %d", tid), -1); err != nil {
		c.log.Warning("conn[%d:%s, ID:%v].kill.error:%+v", c.id, conf.Address, tid, err)
		return err
	}
	c.markBroken(errors.Errorf("conn[%d].killed[%s]", c.id, reason))
	return nil
}

func (c *Connection) attach(tree *OrderTree, key string) {
	h := tree.Insert(key, c)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tree = tree
	c.handle = h
}

func (c *Connection) detach() {
	c.mu.Lock()
	tree, h := c.tree, c.handle
	c.tree = nil
	c.handle = NilHandle
	c.mu.Unlock()
	if tree != nil {
		tree.Delete(h)
	}
}

// Tree returns the ordering tree the connection belongs to.
func (c *Connection) Tree() (*OrderTree, TreeHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree, c.handle
}

// reuseBlocker returns why the connection can't go back to the pool, "" if it can.
func (c *Connection) reuseBlocker() string {
	if c.busy() {
		return "busy"
	}
	if c.worker.unobserved() {
		return "unobserved"
	}
	conf := c.link.Conf()
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.lastErr != nil:
		return "broken"
	case c.driver == nil || c.driver.Closed():
		return "closed"
	case c.xa:
		return "xa"
	case c.lockMode != LockNone:
		return "locked"
	case conf.ForceDisconnect:
		return "force-disconnect"
	case c.link.Status() == LinkDisabled:
		return "link-disabled"
	}
	return ""
}

// recycle prepares the connection for the next owner.
func (c *Connection) recycle() {
	c.detach()
	names := c.checks.ResetSession()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue.ClearAtCommit()
	for _, name := range names {
		c.queue.Enqueue(SetLoopCheck(name, ""))
	}
	c.lockMode = LockNone
	c.timestamp = time.Now().UnixNano()
}

func (c *Connection) idleSince() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(time.Now().UnixNano() - c.timestamp)
}

// teardown stops the worker and closes the session.
func (c *Connection) teardown() error {
	c.Break()
	c.worker.wait()
	c.worker.stop()
	c.detach()
	c.checks.Clear()

	c.mu.Lock()
	c.queue.Clear()
	drv := c.driver
	c.driver = nil
	c.lastErr = ErrConnectionFreed
	c.mu.Unlock()

	if drv != nil {
		monitor.LinkConnectionDec(c.Address(), "open")
		return drv.Close()
	}
	return nil
}
