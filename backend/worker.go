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
	"sync/atomic"
	"time"

	"github.com/radondb/fedlink/monitor"

	"github.com/pkg/errors"
	"github.com/xelabs/go-mysqlstack/sqlparser/depends/sqltypes"
)

// JobAction is the kind of work a background worker runs.
type JobAction int

const (
	// JobConnect dials the link and flushes the queue.
	JobConnect JobAction = iota + 1
	// JobDisconnect closes the session.
	JobDisconnect
	// JobFetchRecords flushes the queue and runs one query.
	JobFetchRecords
	// JobChecksumTable flushes the queue and checksums the remote table.
	JobChecksumTable
	// JobRunQueuedSearch flushes the queue and runs the queries in order.
	JobRunQueuedSearch
)

var jobNames = map[JobAction]string{
	JobConnect:         "connect",
	JobDisconnect:      "disconnect",
	JobFetchRecords:    "fetch-records",
	JobChecksumTable:   "checksum-table",
	JobRunQueuedSearch: "run-queued-search",
}

func (a JobAction) String() string {
	if name, ok := jobNames[a]; ok {
		return name
	}
	return fmt.Sprintf("JobAction(%d)", int(a))
}

// Job is a unit of work for the background worker of a connection.
type Job struct {
	Action JobAction
	// Query for JobFetchRecords.
	Query string
	// Queries for JobRunQueuedSearch.
	Queries []string
	// Table is the federated table the job works for, the remote table
	// for JobChecksumTable.
	Table   string
	MaxRows int
	// Timeout, 0 means no limit.
	Timeout time.Duration
}

func (j *Job) describe() string {
	switch j.Action {
	case JobFetchRecords:
		return j.Query
	case JobRunQueuedSearch:
		return strings.Join(j.Queries, ";")
	case JobChecksumTable:
		return checksumQuery(j.Table)
	}
	return j.Action.String()
}

func checksumQuery(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return fmt.Sprintf("CHECKSUM TABLE `%s`.`%s`", parts[0], parts[1])
	}
	return fmt.Sprintf("CHECKSUM TABLE `%s`", table)
}

// WorkerState is the state of a connection's background worker.
type WorkerState int32

const (
	// WorkerIdle waits for a job.
	WorkerIdle WorkerState = iota
	// WorkerAssigned holds a job not started yet.
	WorkerAssigned
	// WorkerRunning runs a job.
	WorkerRunning
	// WorkerBreaking runs a job being broken.
	WorkerBreaking
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "IDLE"
	case WorkerAssigned:
		return "ASSIGNED"
	case WorkerRunning:
		return "RUNNING"
	case WorkerBreaking:
		return "BREAKING"
	}
	return fmt.Sprintf("WorkerState(%d)", int32(s))
}

type jobSlot struct {
	job    *Job
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	start  time.Time
	broken atomic.Bool
	result *sqltypes.Result
	err    error
}

func (s *jobSlot) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// worker is the dedicated goroutine of one connection, started on the
// first job.
type worker struct {
	conn    *Connection
	state   atomic.Int32
	jobs    chan *jobSlot
	quit    chan struct{}
	wg      sync.WaitGroup
	started bool
	stopped bool

	mu      sync.Mutex
	current *jobSlot
	pending bool
}

func newWorker(conn *Connection) *worker {
	return &worker{
		conn: conn,
		jobs: make(chan *jobSlot, 1),
		quit: make(chan struct{}),
	}
}

// State returns the worker state.
func (w *worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

func (w *worker) unobserved() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

func (w *worker) assign(job *Job) (*jobSlot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil, ErrConnectionFreed
	}
	if w.State() != WorkerIdle {
		return nil, ErrConnectionBusy
	}
	if w.pending {
		return nil, ErrResultUnobserved
	}
	if !w.state.CompareAndSwap(int32(WorkerIdle), int32(WorkerAssigned)) {
		return nil, ErrConnectionBusy
	}
	if !w.started {
		w.started = true
		w.wg.Add(1)
		go w.loop()
	}

	slot := &jobSlot{job: job, done: make(chan struct{}), start: time.Now()}
	if job.Timeout > 0 {
		slot.ctx, slot.cancel = context.WithTimeout(context.Background(), job.Timeout)
	} else {
		slot.ctx, slot.cancel = context.WithCancel(context.Background())
	}
	w.current = slot
	w.pending = true
	w.jobs <- slot
	return slot, nil
}

func (w *worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case slot := <-w.jobs:
			w.state.CompareAndSwap(int32(WorkerAssigned), int32(WorkerRunning))
			if slot.broken.Load() {
				w.state.CompareAndSwap(int32(WorkerRunning), int32(WorkerBreaking))
			}
			qr, err := w.conn.runJob(slot)
			w.finish(slot, qr, err)
		case <-w.quit:
			return
		}
	}
}

func (w *worker) finish(slot *jobSlot, qr *sqltypes.Result, err error) {
	c := w.conn
	job := slot.job
	key := c.Key()

	switch {
	case err != nil && !slot.broken.Load() && errors.Is(slot.ctx.Err(), context.DeadlineExceeded):
		qr = nil
		err = newError(KindJobFailed, err, "Query execution was interrupted, timeout[%v] exceeded", job.Timeout).at(job.Table, key.Shard, key.Link)
	case slot.broken.Load() || errors.Is(err, errCancelled):
		qr = nil
		err = newError(KindJobCancelled, err, "job[%s]", job.Action).at(job.Table, key.Shard, key.Link)
	case err == nil:
	case IsLoopDetected(err):
		if !IsKind(err, KindLoopDetected) {
			err = newError(KindLoopDetected, err, "job[%s]", job.Action).at(job.Table, key.Shard, key.Link)
			monitor.LoopDetectedInc(job.Table)
		}
	case KindOf(err) != 0:
	default:
		err = newError(KindJobFailed, err, "job[%s]", job.Action).at(job.Table, key.Shard, key.Link)
	}

	result := "ok"
	if err != nil {
		result = strings.ToLower(KindOf(err).String())
		c.log.Error("worker[%d:%s].job[%s].failed:%+v", c.id, c.Address(), job.Action, err)
	}
	monitor.JobTotalCounterInc(job.Action.String(), result)

	w.mu.Lock()
	defer w.mu.Unlock()
	slot.result, slot.err = qr, err
	slot.cancel()
	w.state.Store(int32(WorkerIdle))
	close(slot.done)
}

// wait blocks until the current job is done and returns its result.
func (w *worker) wait() (*sqltypes.Result, error) {
	w.mu.Lock()
	slot := w.current
	w.mu.Unlock()
	if slot == nil {
		return nil, nil
	}

	<-slot.done
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == slot {
		w.pending = false
	}
	return slot.result, slot.err
}

// brk cancels the current job, a running statement is killed when kill is set.
func (w *worker) brk(kill bool) bool {
	w.mu.Lock()
	slot := w.current
	if slot == nil || slot.finished() {
		w.mu.Unlock()
		return false
	}
	slot.broken.Store(true)
	running := w.state.CompareAndSwap(int32(WorkerRunning), int32(WorkerBreaking))
	w.mu.Unlock()

	slot.cancel()
	if running && kill {
		w.conn.kill("break")
	}
	return true
}

func (w *worker) stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	started := w.started
	w.mu.Unlock()

	if started {
		close(w.quit)
		w.wg.Wait()
	}
}

// runJob runs the job of slot on the worker goroutine.
func (c *Connection) runJob(slot *jobSlot) (*sqltypes.Result, error) {
	ctx, job := slot.ctx, slot.job

	detail := NewJobDetail(c, job)
	c.registry.jobz.Add(detail)
	defer c.registry.jobz.Remove(detail)

	// A deadline kills the running statement the way a break does.
	if job.Timeout > 0 {
		done := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) && c.dconf.KillOnBreak {
					c.kill(ctx.Err().Error())
				}
			case <-done:
			}
		}()
		defer func() {
			close(done)
			wg.Wait()
		}()
	}

	switch job.Action {
	case JobConnect:
		c.Enqueue(Command{Kind: CmdConnect})
		return nil, c.flush(ctx)
	case JobDisconnect:
		return nil, c.disconnect()
	case JobFetchRecords:
		if err := c.flush(ctx); err != nil {
			return nil, err
		}
		return c.fetch(ctx, job.Query, job.MaxRows)
	case JobChecksumTable:
		if err := c.flush(ctx); err != nil {
			return nil, err
		}
		return c.fetch(ctx, checksumQuery(job.Table), -1)
	case JobRunQueuedSearch:
		if err := c.flush(ctx); err != nil {
			return nil, err
		}
		qr := &sqltypes.Result{}
		for _, query := range job.Queries {
			r, err := c.fetch(ctx, query, job.MaxRows)
			if err != nil {
				return nil, err
			}
			qr.AppendResult(r)
		}
		return qr, nil
	}
	return nil, errors.Errorf("unsupported.job.action[%v]", job.Action)
}

// State returns the state of the background worker.
func (c *Connection) State() WorkerState {
	return c.worker.State()
}

// AssignJob hands job to the background worker. It fails with
// ErrConnectionBusy unless the worker is idle, and with ErrResultUnobserved
// when the previous result was never waited. With callerWait it waits the
// job and returns its error.
func (c *Connection) AssignJob(job *Job, callerWait bool) error {
	if c.freed.Load() {
		return ErrConnectionFreed
	}
	if _, err := c.worker.assign(job); err != nil {
		return err
	}
	if callerWait {
		_, err := c.worker.wait()
		return err
	}
	return nil
}

// Run assigns job and waits its result.
func (c *Connection) Run(job *Job) (*sqltypes.Result, error) {
	if c.freed.Load() {
		return nil, ErrConnectionFreed
	}
	if _, err := c.worker.assign(job); err != nil {
		return nil, err
	}
	return c.worker.wait()
}

// Wait blocks until the worker is idle and returns the result of the last job.
func (c *Connection) Wait() (*sqltypes.Result, error) {
	return c.worker.wait()
}

// Break cancels the assigned or running job, it reports whether there was one.
func (c *Connection) Break() bool {
	return c.worker.brk(c.dconf.KillOnBreak)
}
