/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package v1

import (
	"fmt"
	"net/http"

	"github.com/radondb/fedlink/proxy"

	"github.com/ant0ine/go-json-rest/rest"
	"github.com/xelabs/go-mysqlstack/xlog"
)

// PingHandler impl.
func PingHandler(log *xlog.Log, proxy *proxy.Proxy) rest.HandlerFunc {
	f := func(w rest.ResponseWriter, r *rest.Request) {
		pingHandler(log, proxy, w, r)
	}
	return f
}

// pingHandler probes every link once, the node is unavailable when a
// shard is left without a usable link.
func pingHandler(log *xlog.Log, proxy *proxy.Proxy, w rest.ResponseWriter, r *rest.Request) {
	engine := proxy.Engine()
	engine.Monitor().CheckAll()
	for _, table := range engine.Tables() {
		for _, shard := range table.Shards() {
			if _, err := shard.Links.Select(); err != nil {
				log.Error("api.v1.ping.table[%s].shard[%s].error:%+v", table.Name, shard.Name, err)
				rest.Error(w, fmt.Sprintf("%s.%s: %v", table.Name, shard.Name, err), http.StatusServiceUnavailable)
				return
			}
		}
	}
}
