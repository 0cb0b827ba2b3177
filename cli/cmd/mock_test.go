/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package cmd

import (
	"github.com/radondb/fedlink/ctl"
	"github.com/radondb/fedlink/fakedb"
	"github.com/radondb/fedlink/proxy"
)

// mockAdmin starts a mocked node with its admin server on a free port.
func mockAdmin() (*fakedb.DB, *proxy.Proxy, string, func()) {
	conf := proxy.MockConfig(log, "mock")
	conf.Proxy.PeerAddress = "127.0.0.1:0"
	fakedbs, proxy, cleanup := proxy.MockProxy1(log, conf)

	admin := ctl.NewAdmin(log, proxy)
	if err := admin.Start(); err != nil {
		log.Panic("mock.admin.start.error:%+v", err)
	}
	return fakedbs, proxy, admin.Addr(), func() {
		admin.Stop()
		cleanup()
	}
}
