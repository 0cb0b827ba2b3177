/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package proxy

import (
	"sync"

	"github.com/radondb/fedlink/backend"
	"github.com/radondb/fedlink/config"
	"github.com/radondb/fedlink/xbase"

	"github.com/xelabs/go-mysqlstack/driver"
	"github.com/xelabs/go-mysqlstack/xlog"
)

// Proxy tuple.
type Proxy struct {
	mu       sync.RWMutex
	log      *xlog.Log
	conf     *config.Config
	confPath string
	engine   *backend.Engine
	spanner  *Spanner
	sessions *Sessions
	listener *driver.Listener
	throttle *xbase.Throttle
}

// NewProxy creates new proxy.
func NewProxy(log *xlog.Log, path string, conf *config.Config) *Proxy {
	return &Proxy{
		log:      log,
		conf:     conf,
		confPath: path,
		engine:   backend.NewEngine(log, conf),
		sessions: NewSessions(log),
		throttle: xbase.NewThrottle(0),
	}
}

// Start used to start the proxy.
func (p *Proxy) Start() {
	log := p.log
	conf := p.conf
	engine := p.engine
	endpoint := conf.Proxy.Endpoint

	log.Info("proxy.config[%+v]...", conf.Proxy)
	log.Info("log.config[%+v]...", conf.Log)

	if err := engine.Init(); err != nil {
		log.Panic("proxy.engine.init.panic:%+v", err)
	}

	spanner := NewSpanner(log, conf, engine, p.sessions, p.throttle)
	svr, err := driver.NewListener(log, endpoint, spanner)
	if err != nil {
		log.Panic("proxy.start.error[%+v]", err)
	}
	p.spanner = spanner
	p.listener = svr
	log.Info("proxy.start[%v]...", endpoint)
	go svr.Accept()
}

// Stop used to stop the proxy.
func (p *Proxy) Stop() {
	log := p.log

	log.Info("proxy.starting.shutdown...")
	p.listener.Close()
	p.sessions.Close()
	p.engine.Close()
	log.Info("proxy.shutdown.complete...")
}

// Config returns the config.
func (p *Proxy) Config() *config.Config {
	return p.conf
}

// Address returns the proxy endpoint.
func (p *Proxy) Address() string {
	return p.conf.Proxy.Endpoint
}

// Engine returns the engine.
func (p *Proxy) Engine() *backend.Engine {
	return p.engine
}

// Sessions returns the sessions.
func (p *Proxy) Sessions() *Sessions {
	return p.sessions
}

// Spanner returns the spanner.
func (p *Proxy) Spanner() *Spanner {
	return p.spanner
}

// SetMaxConnections used to set the max connections.
func (p *Proxy) SetMaxConnections(connections int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log.Info("proxy.SetMaxConnections:[%d->%d]", p.conf.Proxy.MaxConnections, connections)
	p.conf.Proxy.MaxConnections = connections
}

// SetQueryTimeout used to set query timeout.
func (p *Proxy) SetQueryTimeout(timeout int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log.Info("proxy.SetQueryTimeout:[%d->%d]", p.conf.Proxy.QueryTimeout, timeout)
	p.conf.Proxy.QueryTimeout = timeout
}

// SetMaxResultRows used to set the row cap of one shard.
func (p *Proxy) SetMaxResultRows(rows int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log.Info("proxy.SetMaxResultRows:[%d->%d]", p.conf.Proxy.MaxResultRows, rows)
	p.conf.Proxy.MaxResultRows = rows
}

// SetTwoPC used to set twopc to enable or disable.
func (p *Proxy) SetTwoPC(enable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log.Info("proxy.SetTwoPC:[%v->%v]", p.conf.Proxy.TwopcEnable, enable)
	p.conf.Proxy.TwopcEnable = enable
}

// SetThrottle used to set the throttle.
func (p *Proxy) SetThrottle(val int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log.Info("proxy.SetThrottle:[%v->%v]", p.throttle.Limits(), val)
	p.throttle.Set(val)
}

// PeerAddress returns the peer address.
func (p *Proxy) PeerAddress() string {
	return p.conf.Proxy.PeerAddress
}

// FlushConfig used to flush the config to disk.
func (p *Proxy) FlushConfig() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log.Info("proxy.flush.config.to.file:%v, config:%+v", p.confPath, p.conf.Proxy)
	if err := config.WriteConfig(p.confPath, p.conf); err != nil {
		p.log.Error("proxy.flush.config.to.file[%v].error:%v", p.confPath, err)
		return err
	}
	return nil
}
