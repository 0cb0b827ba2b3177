/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package v1

import (
	"strconv"
	"time"

	"github.com/radondb/fedlink/proxy"

	"github.com/ant0ine/go-json-rest/rest"
	"github.com/xelabs/go-mysqlstack/xlog"
)

// JobzRow is one running job as the admin API shows it.
type JobzRow struct {
	ConnID   uint64        `json:"connid"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
	Shard    string        `json:"shard"`
	Link     int           `json:"link"`
	Address  string        `json:"address"`
	Action   string        `json:"action"`
	Query    string        `json:"query"`
	Color    string        `json:"color"`
}

// JobzHandler impl.
func JobzHandler(log *xlog.Log, proxy *proxy.Proxy) rest.HandlerFunc {
	f := func(w rest.ResponseWriter, r *rest.Request) {
		jobzHandler(log, proxy, w, r)
	}
	return f
}

func jobzHandler(log *xlog.Log, proxy *proxy.Proxy, w rest.ResponseWriter, r *rest.Request) {
	limit := 100
	if v, err := strconv.Atoi(r.PathParam("limit")); err == nil {
		limit = v
	}

	rsp := []JobzRow{}
	for i, row := range proxy.Engine().RunningJobs() {
		if i >= limit {
			break
		}
		rsp = append(rsp, JobzRow{
			ConnID:   row.ConnID,
			Start:    row.Start,
			Duration: row.Duration,
			Shard:    row.Shard,
			Link:     row.Link,
			Address:  row.Address,
			Action:   row.Action,
			Query:    row.Query,
			Color:    row.Color,
		})
	}
	w.WriteJson(rsp)
}
