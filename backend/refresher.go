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
	"strings"
	"sync"
	"time"

	"github.com/radondb/fedlink/config"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/xelabs/go-mysqlstack/sqlparser/depends/sqltypes"
	"github.com/xelabs/go-mysqlstack/xlog"
	"go.uber.org/multierr"
)

// Refresher keeps the statistics of one federated table up to date, table
// status and index cardinality on two independent tickers.
type Refresher struct {
	log      *xlog.Log
	conf     *config.RefreshConfig
	registry *Registry
	pool     *ants.Pool
	table    *Table
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewRefresher creates the refresher of table, shard probes run on pool.
func NewRefresher(log *xlog.Log, conf *config.RefreshConfig, registry *Registry, pool *ants.Pool, table *Table) *Refresher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Refresher{
		log:      log,
		conf:     conf,
		registry: registry,
		pool:     pool,
		table:    table,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the tickers, an interval of 0 disables its ticker.
func (r *Refresher) Start() {
	r.every(time.Duration(r.conf.StsInterval)*time.Second, r.RefreshStatus)
	r.every(time.Duration(r.conf.CrdInterval)*time.Second, r.RefreshCardinality)
}

func (r *Refresher) every(interval time.Duration, fn func() error) {
	if interval <= 0 {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := fn(); err != nil {
					r.log.Warning("refresher.table[%s].error:%v", r.table.Name, err)
				}
			case <-r.ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the tickers and waits them.
func (r *Refresher) Stop() {
	r.cancel()
	r.wg.Wait()
}

func splitQualified(name string) (string, string) {
	parts := strings.SplitN(name, ".", 2)
	if len(parts) != 2 {
		return "", name
	}
	return parts[0], parts[1]
}

// fanout runs query on one link of every shard, on the pool.
func (r *Refresher) fanout(query func(shard *Shard) string) ([]*sqltypes.Result, error) {
	var mu sync.Mutex
	var wg sync.WaitGroup
	var errs error

	shards := r.table.Shards()
	results := make([]*sqltypes.Result, len(shards))
	for i, shard := range shards {
		i, shard := i, shard
		wg.Add(1)
		task := func() {
			defer wg.Done()
			qr, err := r.probe(shard, query(shard))
			mu.Lock()
			defer mu.Unlock()
			results[i] = qr
			errs = multierr.Append(errs, err)
		}
		if err := r.pool.Submit(task); err != nil {
			wg.Done()
			mu.Lock()
			errs = multierr.Append(errs, errors.Wrapf(err, "refresher.submit.shard[%s]", shard.Name))
			mu.Unlock()
		}
	}
	wg.Wait()
	return results, errs
}

func (r *Refresher) probe(shard *Shard, query string) (*sqltypes.Result, error) {
	idx, err := shard.Links.Select()
	if err != nil {
		return nil, err
	}
	key := NewConnKey(r.registry.BackgroundOwner(), shard.Qualified(), idx, shard.Links.Link(idx).Conf())
	conn, err := r.registry.Get(r.ctx, key, shard.Links.Link(idx))
	if err != nil {
		return nil, err
	}
	qr, err := conn.Run(&Job{Action: JobFetchRecords, Query: query, Table: r.table.Name})
	if err != nil {
		r.registry.Free(conn)
		return nil, err
	}
	r.registry.Release(conn)
	return qr, nil
}

func columnIndex(qr *sqltypes.Result, name string) int {
	for i, f := range qr.Fields {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}

// RefreshStatus sums the table status of every shard.
func (r *Refresher) RefreshStatus() error {
	results, err := r.fanout(func(shard *Shard) string {
		db, tbl := splitQualified(shard.RemoteTable)
		return fmt.Sprintf("SHOW TABLE STATUS FROM `%s` LIKE '%s'", db, tbl)
	})
	if err != nil {
		return err
	}

	var rows, dataLength uint64
	weighted := decimal.Zero
	for _, qr := range results {
		if qr == nil || len(qr.Rows) == 0 {
			continue
		}
		row := qr.Rows[0]
		var n uint64
		if i := columnIndex(qr, "Rows"); i >= 0 {
			n, _ = row[i].ParseUint64()
		}
		if i := columnIndex(qr, "Data_length"); i >= 0 {
			l, _ := row[i].ParseUint64()
			dataLength += l
		}
		if i := columnIndex(qr, "Avg_row_length"); i >= 0 {
			avg, err := decimal.NewFromString(row[i].ToString())
			if err == nil {
				weighted = weighted.Add(avg.Mul(decimal.NewFromInt(int64(n))))
			}
		}
		rows += n
	}

	avg := decimal.Zero
	if rows > 0 {
		avg = weighted.DivRound(decimal.NewFromInt(int64(rows)), 4)
	}
	r.table.setSts(rows, dataLength, avg.String())
	r.log.Debug("refresher.table[%s].sts.rows[%d].data[%d].avg[%s]", r.table.Name, rows, dataLength, avg)
	return nil
}

// RefreshCardinality sums the index cardinality of every shard per column.
func (r *Refresher) RefreshCardinality() error {
	results, err := r.fanout(func(shard *Shard) string {
		db, tbl := splitQualified(shard.RemoteTable)
		return fmt.Sprintf("SHOW INDEX FROM `%s`.`%s`", db, tbl)
	})
	if err != nil {
		return err
	}

	cardinality := make(map[string]int64)
	for _, qr := range results {
		if qr == nil {
			continue
		}
		col, crd := columnIndex(qr, "Column_name"), columnIndex(qr, "Cardinality")
		if col < 0 || crd < 0 {
			continue
		}
		for _, row := range qr.Rows {
			n, _ := row[crd].ParseInt64()
			cardinality[row[col].ToString()] += n
		}
	}
	r.table.setCrd(cardinality)
	return nil
}
