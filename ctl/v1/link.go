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
	"github.com/radondb/fedlink/proxy"

	"github.com/ant0ine/go-json-rest/rest"
	"github.com/xelabs/go-mysqlstack/xlog"
)

// LinkInfo is one link of a shard as the admin API shows it.
type LinkInfo struct {
	Table   string `json:"table"`
	Shard   string `json:"shard"`
	Index   int    `json:"index"`
	Address string `json:"address"`
	Status  string `json:"status"`
	Weight  int    `json:"weight"`
}

// LinksHandler impl.
func LinksHandler(log *xlog.Log, proxy *proxy.Proxy) rest.HandlerFunc {
	f := func(w rest.ResponseWriter, r *rest.Request) {
		linksHandler(log, proxy, w, r)
	}
	return f
}

func linksHandler(log *xlog.Log, proxy *proxy.Proxy, w rest.ResponseWriter, r *rest.Request) {
	rsp := []LinkInfo{}
	for _, table := range proxy.Engine().Tables() {
		for _, shard := range table.Shards() {
			for _, l := range shard.Links.Links() {
				rsp = append(rsp, LinkInfo{
					Table:   table.Name,
					Shard:   shard.Name,
					Index:   l.Index(),
					Address: l.Address(),
					Status:  l.Status().String(),
					Weight:  l.Weight(),
				})
			}
		}
	}
	w.WriteJson(rsp)
}

// LinkStatusParams is the body of PUT /v1/fedlink/link/status.
type LinkStatusParams struct {
	Table  string `json:"table"`
	Shard  string `json:"shard"`
	Index  int    `json:"index"`
	Status string `json:"status"`
}

// LinkStatusHandler impl.
func LinkStatusHandler(log *xlog.Log, proxy *proxy.Proxy) rest.HandlerFunc {
	f := func(w rest.ResponseWriter, r *rest.Request) {
		linkStatusHandler(log, proxy, w, r)
	}
	return f
}

func linkStatusHandler(log *xlog.Log, proxy *proxy.Proxy, w rest.ResponseWriter, r *rest.Request) {
	p := LinkStatusParams{}
	err := r.DecodeJsonPayload(&p)
	if err != nil {
		log.Error("api.v1.link.status.error:%+v", err)
		rest.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	log.Warning("api.v1.link.status[from:%v].body:%+v", r.RemoteAddr, p)
	status, err := backend.ParseLinkStatus(p.Status)
	if err != nil || p.Status == "" {
		log.Error("api.v1.link.status[%s].invalid", p.Status)
		rest.Error(w, "api.v1.link.status.invalid:"+p.Status, http.StatusBadRequest)
		return
	}
	if err := proxy.Engine().SetLinkStatus(p.Table, p.Shard, p.Index, status); err != nil {
		log.Error("api.v1.link.status.set.error:%+v", err)
		rest.Error(w, err.Error(), http.StatusNotFound)
		return
	}
}
