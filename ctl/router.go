/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package ctl

import (
	v1 "github.com/radondb/fedlink/ctl/v1"

	"github.com/ant0ine/go-json-rest/rest"
)

// NewRouter creates the new router.
func (admin *Admin) NewRouter() (rest.App, error) {
	log := admin.log
	proxy := admin.proxy

	return rest.MakeRouter(
		// fedlink
		rest.Get("/v1/fedlink/ping", v1.PingHandler(log, proxy)),
		rest.Put("/v1/fedlink/config", v1.FedlinkConfigHandler(log, proxy)),
		rest.Put("/v1/fedlink/throttle", v1.ThrottleHandler(log, proxy)),

		// tables
		rest.Get("/v1/fedlink/tables", v1.TablesHandler(log, proxy)),
		rest.Post("/v1/fedlink/table", v1.AddTableHandler(log, proxy)),
		rest.Delete("/v1/fedlink/table/#name", v1.RemoveTableHandler(log, proxy)),
		rest.Post("/v1/fedlink/table/#name/refresh", v1.RefreshTableHandler(log, proxy)),

		// links
		rest.Get("/v1/fedlink/links", v1.LinksHandler(log, proxy)),
		rest.Put("/v1/fedlink/link/status", v1.LinkStatusHandler(log, proxy)),

		// debug
		rest.Get("/v1/debug/processlist", v1.ProcesslistHandler(log, proxy)),
		rest.Get("/v1/debug/jobz/:limit", v1.JobzHandler(log, proxy)),
		rest.Get("/v1/debug/txnz/:limit", v1.TxnzHandler(log, proxy)),
		rest.Get("/v1/debug/registryz", v1.RegistryzHandler(log, proxy)),
		rest.Get("/v1/debug/tablestats", v1.TableStatsHandler(log, proxy)),
		rest.Get("/v1/debug/configz", v1.ConfigzHandler(log, proxy)),

		// version
		rest.Get("/v1/version", v1.VersionHandler(log, proxy)),
	)
}
