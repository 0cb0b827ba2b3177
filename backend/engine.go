/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package backend

import (
	"io/ioutil"
	"os"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/radondb/fedlink/config"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/xelabs/go-mysqlstack/xlog"
	"go.uber.org/multierr"
)

const (
	shardsJSONFile     = "shards.json"
	poolReleaseTimeout = 3 * time.Second
)

// Engine tuple.
type Engine struct {
	log        *xlog.Log
	mu         sync.RWMutex
	metadir    string
	conf       *config.Config
	registry   *Registry
	txnMgr     *TxnManager
	identity   *Identity
	monitor    *LinkMonitor
	pool       *ants.Pool
	tables     map[string]*Table
	refreshers map[string]*Refresher
}

// NewEngine creates a new engine.
func NewEngine(log *xlog.Log, conf *config.Config) *Engine {
	identity := NewIdentity(conf.Proxy.ServerID)
	registry := NewRegistry(log, conf.Registry, conf.Dispatcher)
	e := &Engine{
		log:        log,
		metadir:    conf.Proxy.MetaDir,
		conf:       conf,
		registry:   registry,
		identity:   identity,
		txnMgr:     NewTxnManager(log, registry, identity),
		tables:     make(map[string]*Table),
		refreshers: make(map[string]*Refresher),
	}
	e.monitor = NewLinkMonitor(log, conf.Monitor, registry, e.Tables)
	return e
}

// Init loads the tables from the metadir and starts the background workers.
func (e *Engine) Init() error {
	workers := e.conf.Refresh.Workers
	if workers <= 0 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return errors.WithStack(err)
	}
	e.pool = pool

	if err := e.LoadConfig(); err != nil {
		return err
	}
	e.monitor.Start()
	return nil
}

func (e *Engine) file() string {
	return path.Join(e.metadir, shardsJSONFile)
}

// LoadConfig used to load the tables from the shards file.
func (e *Engine) LoadConfig() error {
	log := e.log
	file := e.file()
	if err := os.MkdirAll(e.metadir, os.ModePerm); err != nil {
		return errors.WithStack(err)
	}
	if _, err := os.Stat(file); os.IsNotExist(err) {
		log.Warning("engine.shards.file[%s].not.exists.create.it", file)
		if err := config.WriteConfig(file, &config.ShardsConfig{Tables: []*config.TableConfig{}}); err != nil {
			return err
		}
	}

	data, err := ioutil.ReadFile(file)
	if err != nil {
		return errors.WithStack(err)
	}
	conf, err := config.ReadShardsConfig(string(data))
	if err != nil {
		log.Error("engine.read.shards.file[%s].error:%+v", file, err)
		return err
	}
	for _, tconf := range conf.Tables {
		if err := e.add(tconf); err != nil {
			log.Error("engine.load.table[%s].error:%+v", tconf.Name, err)
			return err
		}
	}
	return nil
}

// FlushConfig used to write the tables to the shards file.
func (e *Engine) FlushConfig() error {
	conf := &config.ShardsConfig{Tables: []*config.TableConfig{}}
	for _, t := range e.Tables() {
		conf.Tables = append(conf.Tables, t.Conf())
	}
	if err := config.WriteConfig(e.file(), conf); err != nil {
		e.log.Error("engine.flush.shards.file[%s].error:%+v", e.file(), err)
		return err
	}
	return nil
}

func (e *Engine) add(tconf *config.TableConfig) error {
	table, err := NewTable(tconf)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.tables[table.Name]; ok {
		return errors.Errorf("engine.table[%s].exists", table.Name)
	}
	e.tables[table.Name] = table
	if e.pool != nil {
		refresher := NewRefresher(e.log, e.conf.Refresh, e.registry, e.pool, table)
		refresher.Start()
		e.refreshers[table.Name] = refresher
	}
	e.log.Info("engine.add.table[%s].shards[%d]", table.Name, len(table.Shards()))
	return nil
}

// AddTable adds a federated table and flushes the shards file.
func (e *Engine) AddTable(tconf *config.TableConfig) error {
	if err := e.add(tconf); err != nil {
		return err
	}
	return e.FlushConfig()
}

// RemoveTable removes a federated table and flushes the shards file.
func (e *Engine) RemoveTable(name string) error {
	e.mu.Lock()
	if _, ok := e.tables[name]; !ok {
		e.mu.Unlock()
		return errors.Errorf("engine.table[%s].can't.be.found", name)
	}
	delete(e.tables, name)
	refresher := e.refreshers[name]
	delete(e.refreshers, name)
	e.mu.Unlock()

	if refresher != nil {
		refresher.Stop()
	}
	e.log.Warning("engine.remove.table[%s]", name)
	return e.FlushConfig()
}

// Table returns the table by its qualified name.
func (e *Engine) Table(name string) (*Table, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	table, ok := e.tables[name]
	if !ok {
		return nil, errors.Errorf("engine.table[%s].can't.be.found", name)
	}
	return table, nil
}

// Tables returns the tables sorted by name.
func (e *Engine) Tables() []*Table {
	e.mu.RLock()
	defer e.mu.RUnlock()
	tables := make([]*Table, 0, len(e.tables))
	for _, t := range e.tables {
		tables = append(tables, t)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return tables
}

// SetLinkStatus sets the status of one link by hand and flushes the shards file.
func (e *Engine) SetLinkStatus(table, shard string, idx int, status LinkStatus) error {
	t, err := e.Table(table)
	if err != nil {
		return err
	}
	s, err := t.Shard(shard)
	if err != nil {
		return err
	}
	if !s.Links.SetStatus(idx, status) {
		return errors.Errorf("engine.table[%s].shard[%s].link[%d].can't.be.found", table, shard, idx)
	}
	e.log.Warning("engine.table[%s].shard[%s].link[%d].set.status[%s]", table, shard, idx, status)
	return e.FlushConfig()
}

// Refresh refreshes the statistics of table now.
func (e *Engine) Refresh(table string) error {
	e.mu.RLock()
	refresher, ok := e.refreshers[table]
	e.mu.RUnlock()
	if !ok {
		return errors.Errorf("engine.table[%s].can't.be.found", table)
	}
	return multierr.Combine(refresher.RefreshStatus(), refresher.RefreshCardinality())
}

// CreateTxn creates a txn.
func (e *Engine) CreateTxn() (*Txn, error) {
	return e.txnMgr.CreateTxn()
}

// Registry returns the connection registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Identity returns the node identity.
func (e *Engine) Identity() *Identity {
	return e.identity
}

// TxnManager returns the txn manager.
func (e *Engine) TxnManager() *TxnManager {
	return e.txnMgr
}

// RunningJobs returns the jobs running on the remote connections.
func (e *Engine) RunningJobs() []JobzRow {
	return e.registry.RunningJobs()
}

// RunningTxns returns the live transactions.
func (e *Engine) RunningTxns() []TxnDetailzRow {
	return e.txnMgr.RunningTxns()
}

// Monitor returns the link monitor.
func (e *Engine) Monitor() *LinkMonitor {
	return e.monitor
}

// Close stops the background workers and frees every connection.
func (e *Engine) Close() error {
	e.monitor.Stop()

	e.mu.Lock()
	refreshers := e.refreshers
	e.refreshers = make(map[string]*Refresher)
	e.mu.Unlock()
	for _, r := range refreshers {
		r.Stop()
	}
	var err error
	if e.pool != nil {
		err = errors.Wrap(e.pool.ReleaseTimeout(poolReleaseTimeout), "engine.pool.release")
	}
	return multierr.Append(err, e.registry.Close())
}
