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
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/radondb/fedlink/config"
	"github.com/radondb/fedlink/monitor"

	jump "github.com/lithammer/go-jump-consistent-hash"
	"github.com/xelabs/go-mysqlstack/xlog"
	"go.uber.org/multierr"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// Owner ids of the background probes start here, above every
// transaction id.
const backgroundOwnerBase uint64 = 1 << 63

type partition struct {
	mu sync.Mutex
	// ConnKey.String() -> connection in use.
	live map[string]*Connection
	// ConnKey.PoolKey() -> pooled connections, the newest last.
	idle map[string][]*Connection
}

type endpoint struct {
	sem   *semaphore.Weighted
	conns map[uint64]*Connection
}

// Registry owns every remote connection of the process.
type Registry struct {
	log    *xlog.Log
	conf   *config.RegistryConfig
	dconf  *config.DispatcherConfig
	parts  []*partition
	group  singleflight.Group
	jobz   *Jobz
	seq    atomic.Uint64
	owners atomic.Uint64
	closed atomic.Bool

	mu        sync.Mutex
	endpoints map[string]*endpoint
}

// NewRegistry creates a new Registry.
func NewRegistry(log *xlog.Log, conf *config.RegistryConfig, dconf *config.DispatcherConfig) *Registry {
	n := conf.Partitions
	if n <= 0 {
		n = 1
	}
	r := &Registry{
		log:       log,
		conf:      conf,
		dconf:     dconf,
		jobz:      NewJobz(),
		parts:     make([]*partition, n),
		endpoints: make(map[string]*endpoint),
	}
	for i := range r.parts {
		r.parts[i] = &partition{
			live: make(map[string]*Connection),
			idle: make(map[string][]*Connection),
		}
	}
	return r
}

func (r *Registry) partition(key ConnKey) *partition {
	h := fnv.New64a()
	h.Write([]byte(key.PoolKey()))
	idx := jump.Hash(h.Sum64(), int32(len(r.parts)))
	return r.parts[idx]
}

// BackgroundOwner returns a new owner for one monitor or refresher probe.
// Each probe holds its own live connection, two probes of the same link
// never share one.
func (r *Registry) BackgroundOwner() uint64 {
	return backgroundOwnerBase + r.owners.Add(1)
}

func (r *Registry) endpoint(addr string) *endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	ep, ok := r.endpoints[addr]
	if !ok {
		ep = &endpoint{
			sem:   semaphore.NewWeighted(int64(r.conf.MaxEndpointConnections)),
			conns: make(map[uint64]*Connection),
		}
		r.endpoints[addr] = ep
	}
	return ep
}

// Lookup returns the live connection of key.
func (r *Registry) Lookup(key ConnKey) *Connection {
	part := r.partition(key)
	part.mu.Lock()
	defer part.mu.Unlock()
	return part.live[key.String()]
}

// Get returns the live connection of key, or a pooled one with the same
// pool key, or a new one. The new connection dials at its first flush.
// Concurrent calls for the same key get the same object.
func (r *Registry) Get(ctx context.Context, key ConnKey, link *Link) (*Connection, error) {
	if r.closed.Load() {
		return nil, ErrRegistryClosed
	}
	if conn := r.Lookup(key); conn != nil {
		return conn, nil
	}

	v, err, _ := r.group.Do(key.String(), func() (interface{}, error) {
		if conn := r.Lookup(key); conn != nil {
			return conn, nil
		}
		if conn := r.popIdle(key, link); conn != nil {
			return conn, nil
		}
		return r.create(ctx, key, link)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Connection), nil
}

// popIdle takes the newest pooled connection of the pool key, stale ones
// are destroyed on the way.
func (r *Registry) popIdle(key ConnKey, link *Link) *Connection {
	part := r.partition(key)
	pk := key.PoolKey()
	idleTimeout := time.Duration(r.conf.IdleTimeout) * time.Millisecond

	var stale []*Connection
	var conn *Connection
	part.mu.Lock()
	for conns := part.idle[pk]; len(conns) > 0; conns = part.idle[pk] {
		c := conns[len(conns)-1]
		part.idle[pk] = conns[:len(conns)-1]
		c.pooled.Store(false)
		monitor.LinkConnectionDec(c.Address(), "idle")
		if idleTimeout > 0 && c.idleSince() > idleTimeout {
			stale = append(stale, c)
			continue
		}
		conn = c
		break
	}
	if len(part.idle[pk]) == 0 {
		delete(part.idle, pk)
	}
	if conn != nil {
		conn.rekey(key, link)
		part.live[key.String()] = conn
	}
	part.mu.Unlock()

	for _, c := range stale {
		r.log.Info("registry.idle.conn[%d:%s].timeout", c.ID(), c.Address())
		r.destroy(c)
	}
	if conn != nil {
		if conn.idleSince() > time.Duration(r.conf.PingInterval)*time.Millisecond {
			conn.Enqueue(Command{Kind: CmdPing})
		}
		r.log.Debug("registry.get.reuse[%d:%s]", conn.ID(), key)
	}
	return conn
}

func (r *Registry) create(ctx context.Context, key ConnKey, link *Link) (*Connection, error) {
	addr := key.Endpoint()
	if err := r.acquireSlot(ctx, addr); err != nil {
		return nil, newError(KindConnectionUnavailable, err, "endpoint[%s].max-connections[%d].reached", addr, r.conf.MaxEndpointConnections).at("", key.Shard, key.Link)
	}

	conn := newConnection(r.log, r, r.seq.Add(1), key, link, r.dconf)
	ep := r.endpoint(addr)
	r.mu.Lock()
	ep.conns[conn.ID()] = conn
	r.mu.Unlock()

	part := r.partition(key)
	part.mu.Lock()
	part.live[key.String()] = conn
	part.mu.Unlock()
	r.log.Debug("registry.get.create[%d:%s]", conn.ID(), key)
	return conn, nil
}

// acquireSlot takes one connection slot of the endpoint. When the endpoint
// is full a pooled connection is evicted, else the caller waits.
func (r *Registry) acquireSlot(ctx context.Context, addr string) error {
	ep := r.endpoint(addr)
	if ep.sem.TryAcquire(1) {
		return nil
	}
	if r.evictIdle(addr) && ep.sem.TryAcquire(1) {
		return nil
	}

	wait := time.Duration(r.conf.ConnWaitTimeout) * time.Millisecond
	wctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	return ep.sem.Acquire(wctx, 1)
}

// evictIdle destroys one pooled connection to addr.
func (r *Registry) evictIdle(addr string) bool {
	r.mu.Lock()
	var candidates []*Connection
	if ep, ok := r.endpoints[addr]; ok {
		for _, c := range ep.conns {
			if c.pooled.Load() {
				candidates = append(candidates, c)
			}
		}
	}
	r.mu.Unlock()

	for _, c := range candidates {
		if r.unpool(c) {
			r.log.Warning("registry.endpoint[%s].full.evict[%d]", addr, c.ID())
			r.destroy(c)
			return true
		}
	}
	return false
}

// unpool removes c from the idle lists, false if someone took it first.
func (r *Registry) unpool(c *Connection) bool {
	key := c.Key()
	part := r.partition(key)
	pk := key.PoolKey()

	part.mu.Lock()
	defer part.mu.Unlock()
	conns := part.idle[pk]
	for i, idle := range conns {
		if idle == c {
			part.idle[pk] = append(conns[:i:i], conns[i+1:]...)
			if len(part.idle[pk]) == 0 {
				delete(part.idle, pk)
			}
			c.pooled.Store(false)
			monitor.LinkConnectionDec(c.Address(), "idle")
			return true
		}
	}
	return false
}

// Release gives conn back. It is pooled for the next owner with the same
// pool key, or destroyed when it can't be reused.
func (r *Registry) Release(conn *Connection) {
	if conn == nil || conn.freed.Load() {
		return
	}
	if reason := conn.reuseBlocker(); reason != "" || r.closed.Load() {
		r.log.Debug("registry.release.conn[%d:%s].free.reason[%s]", conn.ID(), conn.Address(), reason)
		r.Free(conn)
		return
	}

	key := conn.Key()
	part := r.partition(key)
	pk := key.PoolKey()

	part.mu.Lock()
	if part.live[key.String()] != conn {
		part.mu.Unlock()
		return
	}
	if len(part.idle[pk]) >= r.conf.MaxIdlePerLink {
		part.mu.Unlock()
		r.log.Debug("registry.release.conn[%d:%s].pool.full", conn.ID(), conn.Address())
		r.Free(conn)
		return
	}
	delete(part.live, key.String())
	part.mu.Unlock()

	conn.recycle()

	part.mu.Lock()
	conn.pooled.Store(true)
	part.idle[pk] = append(part.idle[pk], conn)
	part.mu.Unlock()
	monitor.LinkConnectionInc(conn.Address(), "idle")
}

// Free destroys conn whatever its state.
func (r *Registry) Free(conn *Connection) error {
	if conn == nil {
		return nil
	}
	if conn.pooled.Load() {
		r.unpool(conn)
	}
	return r.destroy(conn)
}

func (r *Registry) destroy(conn *Connection) error {
	if !conn.freed.CompareAndSwap(false, true) {
		return nil
	}

	key := conn.Key()
	part := r.partition(key)
	part.mu.Lock()
	if part.live[key.String()] == conn {
		delete(part.live, key.String())
	}
	part.mu.Unlock()

	err := conn.teardown()

	addr := key.Endpoint()
	r.mu.Lock()
	ep, ok := r.endpoints[addr]
	if ok {
		delete(ep.conns, conn.ID())
	}
	r.mu.Unlock()
	if ok {
		ep.sem.Release(1)
	}
	r.log.Debug("registry.free.conn[%d:%s]", conn.ID(), key)
	return err
}

// Close destroys every connection.
func (r *Registry) Close() error {
	r.closed.Store(true)

	r.mu.Lock()
	var conns []*Connection
	for _, ep := range r.endpoints {
		for _, c := range ep.conns {
			conns = append(conns, c)
		}
	}
	r.mu.Unlock()

	var errs error
	for _, c := range conns {
		errs = multierr.Append(errs, r.Free(c))
	}
	return errs
}

// EndpointStats tuple.
type EndpointStats struct {
	Address string `json:"address"`
	Live    int    `json:"live"`
	Idle    int    `json:"idle"`
}

// RegistryStats tuple.
type RegistryStats struct {
	Live      int              `json:"live"`
	Idle      int              `json:"idle"`
	Endpoints []*EndpointStats `json:"endpoints"`
}

// Stats returns the connection counts.
func (r *Registry) Stats() *RegistryStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &RegistryStats{Endpoints: []*EndpointStats{}}
	for addr, ep := range r.endpoints {
		es := &EndpointStats{Address: addr}
		for _, c := range ep.conns {
			if c.pooled.Load() {
				es.Idle++
			} else {
				es.Live++
			}
		}
		stats.Live += es.Live
		stats.Idle += es.Idle
		stats.Endpoints = append(stats.Endpoints, es)
	}
	sort.Slice(stats.Endpoints, func(i, j int) bool {
		return stats.Endpoints[i].Address < stats.Endpoints[j].Address
	})
	return stats
}
