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
	"time"

	"github.com/radondb/fedlink/config"
	"github.com/radondb/fedlink/monitor"
	"github.com/radondb/fedlink/xbase"

	"github.com/xelabs/go-mysqlstack/xlog"
)

// LinkMonitor probes every link of every table on a ticker and moves the
// link status with the results. Failures never reach a caller.
type LinkMonitor struct {
	log      *xlog.Log
	conf     *config.MonitorConfig
	registry *Registry
	throttle *xbase.Throttle
	tables   func() []*Table
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	// checkFunc probes one link, a ping through the registry by default.
	checkFunc func(ctx context.Context, shard *Shard, idx int) error
}

// NewLinkMonitor creates a new LinkMonitor, tables provides the tables to probe.
func NewLinkMonitor(log *xlog.Log, conf *config.MonitorConfig, registry *Registry, tables func() []*Table) *LinkMonitor {
	ctx, cancel := context.WithCancel(context.Background())
	m := &LinkMonitor{
		log:      log,
		conf:     conf,
		registry: registry,
		throttle: xbase.NewThrottle(conf.ProbeRate),
		tables:   tables,
		ctx:      ctx,
		cancel:   cancel,
	}
	m.checkFunc = m.ping
	return m
}

// Start starts the probe loop, a monitor-interval of 0 disables it.
func (m *LinkMonitor) Start() {
	interval := time.Duration(m.conf.Interval) * time.Millisecond
	if interval <= 0 {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		m.log.Info("link.monitor.started.interval[%v]", interval)
		for {
			select {
			case <-ticker.C:
				m.CheckAll()
			case <-m.ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the probe loop and waits it.
func (m *LinkMonitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

// CheckAll probes every link once.
func (m *LinkMonitor) CheckAll() {
	for _, table := range m.tables() {
		for _, shard := range table.Shards() {
			for _, l := range shard.Links.Links() {
				if m.ctx.Err() != nil {
					return
				}
				m.Check(shard, l.Index())
			}
		}
	}
}

// Check probes link idx of shard and returns its new status. A link
// disabled by an administrator is not probed.
func (m *LinkMonitor) Check(shard *Shard, idx int) LinkStatus {
	l := shard.Links.Link(idx)
	if l == nil {
		return LinkDisabled
	}
	if l.Status() == LinkDisabled && !l.byMonitor.Load() {
		return LinkDisabled
	}

	m.throttle.Acquire()
	defer m.throttle.Release()

	err := m.checkFunc(m.ctx, shard, idx)
	if err != nil {
		monitor.LinkProbeFailureInc(l.Address())
		m.log.Warning("link.monitor.table[%s].shard[%s].link[%d:%s].probe.error:%v", shard.Table, shard.Name, idx, l.Address(), err)
	}
	prev := l.Status()
	status := shard.Links.probed(idx, err == nil, m.conf.MaxFailures)
	if status != prev {
		m.log.Warning("link.monitor.table[%s].shard[%s].link[%d:%s].status[%s->%s]", shard.Table, shard.Name, idx, l.Address(), prev, status)
	}
	return status
}

func (m *LinkMonitor) ping(ctx context.Context, shard *Shard, idx int) error {
	l := shard.Links.Link(idx)
	key := NewConnKey(m.registry.BackgroundOwner(), shard.Qualified(), idx, l.Conf())
	conn, err := m.registry.Get(ctx, key, l)
	if err != nil {
		return err
	}
	if err := conn.Ping(ctx); err != nil {
		m.registry.Free(conn)
		return err
	}
	m.registry.Release(conn)
	return nil
}
