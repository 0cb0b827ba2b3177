/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package v1

import (
	"net/http"

	"github.com/radondb/fedlink/backend"
	"github.com/radondb/fedlink/config"
	"github.com/radondb/fedlink/proxy"

	"github.com/ant0ine/go-json-rest/rest"
	"github.com/xelabs/go-mysqlstack/xlog"
)

type shardInfo struct {
	Name        string `json:"name"`
	RemoteTable string `json:"remote-table"`
	Links       int    `json:"links"`
}

type tableInfo struct {
	Name   string      `json:"name"`
	Shards []shardInfo `json:"shards"`
}

// TablesHandler impl.
func TablesHandler(log *xlog.Log, proxy *proxy.Proxy) rest.HandlerFunc {
	f := func(w rest.ResponseWriter, r *rest.Request) {
		tablesHandler(log, proxy, w, r)
	}
	return f
}

func tablesHandler(log *xlog.Log, proxy *proxy.Proxy, w rest.ResponseWriter, r *rest.Request) {
	rsp := []tableInfo{}
	for _, table := range proxy.Engine().Tables() {
		info := tableInfo{Name: table.Name}
		for _, shard := range table.Shards() {
			info.Shards = append(info.Shards, shardInfo{
				Name:        shard.Name,
				RemoteTable: shard.RemoteTable,
				Links:       shard.Links.Len(),
			})
		}
		rsp = append(rsp, info)
	}
	w.WriteJson(rsp)
}

// AddTableHandler impl.
func AddTableHandler(log *xlog.Log, proxy *proxy.Proxy) rest.HandlerFunc {
	f := func(w rest.ResponseWriter, r *rest.Request) {
		addTableHandler(log, proxy, w, r)
	}
	return f
}

func addTableHandler(log *xlog.Log, proxy *proxy.Proxy, w rest.ResponseWriter, r *rest.Request) {
	p := &config.TableConfig{}
	err := r.DecodeJsonPayload(p)
	if err != nil {
		log.Error("api.v1.add.table.error:%+v", err)
		rest.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	log.Warning("api.v1.add.table[from:%v].table[%s]", r.RemoteAddr, p.Name)
	if err := proxy.Engine().AddTable(p); err != nil {
		log.Error("api.v1.add.table[%s].error:%+v", p.Name, err)
		rest.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// RemoveTableHandler impl.
func RemoveTableHandler(log *xlog.Log, proxy *proxy.Proxy) rest.HandlerFunc {
	f := func(w rest.ResponseWriter, r *rest.Request) {
		removeTableHandler(log, proxy, w, r)
	}
	return f
}

func removeTableHandler(log *xlog.Log, proxy *proxy.Proxy, w rest.ResponseWriter, r *rest.Request) {
	name := r.PathParam("name")
	log.Warning("api.v1.remove.table[from:%v].table[%s]", r.RemoteAddr, name)
	if err := proxy.Engine().RemoveTable(name); err != nil {
		log.Error("api.v1.remove.table[%s].error:%+v", name, err)
		rest.Error(w, err.Error(), http.StatusNotFound)
		return
	}
}

// RefreshTableHandler impl.
func RefreshTableHandler(log *xlog.Log, proxy *proxy.Proxy) rest.HandlerFunc {
	f := func(w rest.ResponseWriter, r *rest.Request) {
		refreshTableHandler(log, proxy, w, r)
	}
	return f
}

func refreshTableHandler(log *xlog.Log, proxy *proxy.Proxy, w rest.ResponseWriter, r *rest.Request) {
	name := r.PathParam("name")
	table, err := proxy.Engine().Table(name)
	if err != nil {
		rest.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err := proxy.Engine().Refresh(name); err != nil {
		log.Error("api.v1.refresh.table[%s].error:%+v", name, err)
		rest.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteJson(table.Stats())
}

type tableStats struct {
	Name  string             `json:"name"`
	Stats backend.TableStats `json:"stats"`
}

// TableStatsHandler impl.
func TableStatsHandler(log *xlog.Log, proxy *proxy.Proxy) rest.HandlerFunc {
	f := func(w rest.ResponseWriter, r *rest.Request) {
		tableStatsHandler(log, proxy, w, r)
	}
	return f
}

func tableStatsHandler(log *xlog.Log, proxy *proxy.Proxy, w rest.ResponseWriter, r *rest.Request) {
	rsp := []tableStats{}
	for _, table := range proxy.Engine().Tables() {
		rsp = append(rsp, tableStats{Name: table.Name, Stats: table.Stats()})
	}
	w.WriteJson(rsp)
}
