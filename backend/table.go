/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package backend

import (
	"fmt"
	"sync"
	"time"

	"github.com/radondb/fedlink/config"

	"github.com/pkg/errors"
)

// Shard is one part of a federated table, served by a set of links.
type Shard struct {
	Name string
	// Table is the federated table the shard belongs to.
	Table       string
	RemoteTable string
	Links       *LinkSet
}

// Qualified returns table/shard, the shard part of connection keys.
func (s *Shard) Qualified() string {
	return fmt.Sprintf("%s/%s", s.Table, s.Name)
}

// TableStats is the last statistics refreshed from the remote tables.
type TableStats struct {
	Rows       uint64 `json:"rows"`
	DataLength uint64 `json:"data-length"`
	// AvgRowLength is a decimal string weighted by the rows of each shard.
	AvgRowLength string           `json:"avg-row-length"`
	Cardinality  map[string]int64 `json:"cardinality"`
	StsUpdated   time.Time        `json:"sts-updated"`
	CrdUpdated   time.Time        `json:"crd-updated"`
}

// Table is a federated table.
type Table struct {
	Name   string
	conf   *config.TableConfig
	shards []*Shard
	byName map[string]*Shard

	mu    sync.RWMutex
	stats TableStats
}

// NewTable creates the table from its config.
func NewTable(conf *config.TableConfig) (*Table, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	t := &Table{
		Name:   conf.Name,
		conf:   conf,
		byName: make(map[string]*Shard),
		stats:  TableStats{AvgRowLength: "0", Cardinality: map[string]int64{}},
	}
	for _, sc := range conf.Shards {
		shard := &Shard{
			Name:        sc.Name,
			Table:       conf.Name,
			RemoteTable: sc.RemoteTable,
			Links:       NewLinkSet(conf.Name, sc.Name, sc.Links),
		}
		t.shards = append(t.shards, shard)
		t.byName[sc.Name] = shard
	}
	return t, nil
}

// Conf returns the table config, with the link statuses of now.
func (t *Table) Conf() *config.TableConfig {
	for i, shard := range t.shards {
		for j, l := range shard.Links.Links() {
			t.conf.Shards[i].Links[j].Status = l.Status().String()
		}
	}
	return t.conf
}

// Shards returns the shards in config order.
func (t *Table) Shards() []*Shard {
	return t.shards
}

// Shard returns the shard by name.
func (t *Table) Shard(name string) (*Shard, error) {
	shard, ok := t.byName[name]
	if !ok {
		return nil, errors.Errorf("table[%s].shard[%s].can't.be.found", t.Name, name)
	}
	return shard, nil
}

// Stats returns a copy of the table statistics.
func (t *Table) Stats() TableStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	stats := t.stats
	stats.Cardinality = make(map[string]int64, len(t.stats.Cardinality))
	for k, v := range t.stats.Cardinality {
		stats.Cardinality[k] = v
	}
	return stats
}

func (t *Table) setSts(rows, dataLength uint64, avgRowLength string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Rows = rows
	t.stats.DataLength = dataLength
	t.stats.AvgRowLength = avgRowLength
	t.stats.StsUpdated = time.Now()
}

func (t *Table) setCrd(cardinality map[string]int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Cardinality = cardinality
	t.stats.CrdUpdated = time.Now()
}
