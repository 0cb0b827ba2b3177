/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package v1

import (
	"testing"

	"github.com/radondb/fedlink/backend"
	"github.com/radondb/fedlink/config"
	"github.com/radondb/fedlink/proxy"

	"github.com/ant0ine/go-json-rest/rest"
	"github.com/ant0ine/go-json-rest/rest/test"
	"github.com/stretchr/testify/assert"
	"github.com/xelabs/go-mysqlstack/xlog"
)

func TestCtlV1Links(t *testing.T) {
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	fakedbs, proxy, cleanup := proxy.MockProxy(log)
	defer cleanup()

	// server
	api := rest.NewApi()
	router, _ := rest.MakeRouter(
		rest.Get("/v1/fedlink/links", LinksHandler(log, proxy)),
		rest.Put("/v1/fedlink/link/status", LinkStatusHandler(log, proxy)),
	)
	api.SetApp(router)
	handler := api.MakeHandler()

	// List.
	{
		recorded := test.RunRequest(t, handler, test.MakeSimpleRequest("GET", "http://localhost/v1/fedlink/links", nil))
		recorded.CodeIs(200)

		var rsp []LinkInfo
		err := recorded.DecodeJsonPayload(&rsp)
		assert.Nil(t, err)
		want := []LinkInfo{
			{Table: "sbtest.t1", Shard: "s0", Index: 0, Address: fakedbs.Addrs()[0], Status: config.LinkStatusActive, Weight: 1},
			{Table: "sbtest.t1", Shard: "s1", Index: 0, Address: fakedbs.Addrs()[1], Status: config.LinkStatusActive, Weight: 1},
		}
		assert.Equal(t, want, rsp)
	}

	// Disable.
	{
		p := &LinkStatusParams{Table: "sbtest.t1", Shard: "s1", Index: 0, Status: config.LinkStatusDisabled}
		recorded := test.RunRequest(t, handler, test.MakeSimpleRequest("PUT", "http://localhost/v1/fedlink/link/status", p))
		recorded.CodeIs(200)

		table, err := proxy.Engine().Table("sbtest.t1")
		assert.Nil(t, err)
		shard, err := table.Shard("s1")
		assert.Nil(t, err)
		assert.Equal(t, backend.LinkDisabled, shard.Links.Link(0).Status())
	}

	// 400.
	{
		p := &LinkStatusParams{Table: "sbtest.t1", Shard: "s1", Index: 0, Status: "broken"}
		recorded := test.RunRequest(t, handler, test.MakeSimpleRequest("PUT", "http://localhost/v1/fedlink/link/status", p))
		recorded.CodeIs(400)
	}

	// 404.
	{
		querys := []*LinkStatusParams{
			{Table: "sbtest.t9", Shard: "s1", Index: 0, Status: config.LinkStatusActive},
			{Table: "sbtest.t1", Shard: "s9", Index: 0, Status: config.LinkStatusActive},
			{Table: "sbtest.t1", Shard: "s1", Index: 3, Status: config.LinkStatusActive},
		}
		for _, p := range querys {
			recorded := test.RunRequest(t, handler, test.MakeSimpleRequest("PUT", "http://localhost/v1/fedlink/link/status", p))
			recorded.CodeIs(404)
		}
	}

	// 500.
	{
		recorded := test.RunRequest(t, handler, test.MakeSimpleRequest("PUT", "http://localhost/v1/fedlink/link/status", "x"))
		recorded.CodeIs(500)
	}
}
