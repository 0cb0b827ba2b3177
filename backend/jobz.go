/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 * This code was derived from https://github.com/youtube/vitess.
 */

package backend

import (
	"sort"
	"sync"
	"time"

	"github.com/radondb/fedlink/xbase"
)

// JobDetail is a simple wrapper for a running job.
type JobDetail struct {
	ID     uint64
	connID uint64
	shard  string
	link   int
	addr   string
	action JobAction
	query  string
	start  time.Time
}

// NewJobDetail creates a new JobDetail.
func NewJobDetail(conn *Connection, job *Job) *JobDetail {
	key := conn.Key()
	return &JobDetail{
		connID: conn.ID(),
		shard:  key.Shard,
		link:   key.Link,
		addr:   conn.Address(),
		action: job.Action,
		query:  xbase.TruncateQuery(job.describe(), 256),
		start:  time.Now(),
	}
}

// Jobz holds a thread safe list of JobDetails.
type Jobz struct {
	ID         uint64
	mu         sync.RWMutex
	jobDetails map[uint64]*JobDetail
}

// NewJobz creates a new Jobz.
func NewJobz() *Jobz {
	return &Jobz{jobDetails: make(map[uint64]*JobDetail)}
}

// Add adds a JobDetail to Jobz.
func (jz *Jobz) Add(jd *JobDetail) {
	jz.mu.Lock()
	defer jz.mu.Unlock()
	jz.ID++
	jd.ID = jz.ID
	jz.jobDetails[jd.ID] = jd
}

// Remove removes a JobDetail from Jobz.
func (jz *Jobz) Remove(jd *JobDetail) {
	jz.mu.Lock()
	defer jz.mu.Unlock()
	delete(jz.jobDetails, jd.ID)
}

// JobzRow is used for rendering JobDetail.
type JobzRow struct {
	Start    time.Time
	Duration time.Duration
	ConnID   uint64
	Shard    string
	Link     int
	Address  string
	Action   string
	Query    string
	Color    string
}

type byStartTime []JobzRow

func (a byStartTime) Len() int           { return len(a) }
func (a byStartTime) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byStartTime) Less(i, j int) bool { return a[i].Start.Before(a[j].Start) }

// GetJobzRows returns a list of JobzRow sorted by start time.
func (jz *Jobz) GetJobzRows() []JobzRow {
	jz.mu.RLock()
	rows := []JobzRow{}
	for _, jd := range jz.jobDetails {
		row := JobzRow{
			Start:    jd.start,
			Duration: time.Since(jd.start),
			ConnID:   jd.connID,
			Shard:    jd.shard,
			Link:     jd.link,
			Address:  jd.addr,
			Action:   jd.action.String(),
			Query:    jd.query,
		}
		if row.Duration < 10*time.Millisecond {
			row.Color = "low"
		} else if row.Duration < 100*time.Millisecond {
			row.Color = "medium"
		} else {
			row.Color = "high"
		}
		rows = append(rows, row)
	}
	jz.mu.RUnlock()
	sort.Sort(byStartTime(rows))
	return rows
}

// RunningJobs returns the jobs running on the connections of the registry.
func (r *Registry) RunningJobs() []JobzRow {
	return r.jobz.GetJobzRows()
}
