/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package ctl

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/radondb/fedlink/proxy"

	"github.com/ant0ine/go-json-rest/rest"
	"github.com/pkg/errors"
	"github.com/xelabs/go-mysqlstack/xlog"
)

// Admin is the http admin server of the node.
type Admin struct {
	log      *xlog.Log
	proxy    *proxy.Proxy
	server   *http.Server
	listener net.Listener
}

// NewAdmin creates the admin server on the peer address of proxy.
func NewAdmin(log *xlog.Log, proxy *proxy.Proxy) *Admin {
	return &Admin{
		log:   log,
		proxy: proxy,
	}
}

// Start starts http server.
func (admin *Admin) Start() error {
	log := admin.log
	api := rest.NewApi()
	api.Use(&rest.RecoverMiddleware{EnableResponseStackTrace: false})
	router, err := admin.NewRouter()
	if err != nil {
		return errors.Wrap(err, "admin.new.router")
	}
	api.SetApp(router)

	l, err := net.Listen("tcp", admin.proxy.PeerAddress())
	if err != nil {
		return errors.Wrapf(err, "admin.listen[%s]", admin.proxy.PeerAddress())
	}
	admin.listener = l
	admin.server = &http.Server{Handler: api.MakeHandler(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.Info("http.server.start[%v]...", l.Addr())
		if err := admin.server.Serve(l); err != http.ErrServerClosed {
			log.Error("http.server.serve.error:%+v", err)
		}
	}()
	return nil
}

// Addr returns the address the server listens on.
func (admin *Admin) Addr() string {
	return admin.listener.Addr().String()
}

// Stop stops the http server.
func (admin *Admin) Stop() {
	log := admin.log
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	admin.server.Shutdown(ctx)
	log.Info("http.server.gracefully.stop")
}
