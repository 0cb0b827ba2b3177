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

	"github.com/radondb/fedlink/config"
	"github.com/radondb/fedlink/proxy"

	"github.com/ant0ine/go-json-rest/rest"
	"github.com/ant0ine/go-json-rest/rest/test"
	"github.com/stretchr/testify/assert"
	"github.com/xelabs/go-mysqlstack/xlog"
)

func TestCtlV1FedlinkConfig(t *testing.T) {
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	_, proxy, cleanup := proxy.MockProxy(log)
	defer cleanup()

	// server
	api := rest.NewApi()
	router, _ := rest.MakeRouter(
		rest.Put("/v1/fedlink/config", FedlinkConfigHandler(log, proxy)),
		rest.Get("/v1/debug/configz", ConfigzHandler(log, proxy)),
	)
	api.SetApp(router)
	handler := api.MakeHandler()

	// 200.
	{
		p := map[string]interface{}{
			"max-connections": 1023,
			"query-timeout":   33,
			"twopc-enable":    true,
		}
		recorded := test.RunRequest(t, handler, test.MakeSimpleRequest("PUT", "http://localhost/v1/fedlink/config", p))
		recorded.CodeIs(200)

		conf := proxy.Config()
		assert.Equal(t, 1023, conf.Proxy.MaxConnections)
		assert.Equal(t, 33, conf.Proxy.QueryTimeout)
		assert.Equal(t, 0, conf.Proxy.MaxResultRows)
		assert.True(t, conf.Proxy.TwopcEnable)
	}

	// Only the fields in the body change.
	{
		p := map[string]interface{}{
			"max-result-rows": 100,
		}
		recorded := test.RunRequest(t, handler, test.MakeSimpleRequest("PUT", "http://localhost/v1/fedlink/config", p))
		recorded.CodeIs(200)

		conf := proxy.Config()
		assert.Equal(t, 1023, conf.Proxy.MaxConnections)
		assert.Equal(t, 100, conf.Proxy.MaxResultRows)
	}

	// Configz.
	{
		recorded := test.RunRequest(t, handler, test.MakeSimpleRequest("GET", "http://localhost/v1/debug/configz", nil))
		recorded.CodeIs(200)
		conf := &config.Config{}
		err := recorded.DecodeJsonPayload(conf)
		assert.Nil(t, err)
		assert.Equal(t, 100, conf.Proxy.MaxResultRows)
		assert.Equal(t, "mock", conf.Proxy.ServerID)
	}

	// 500.
	{
		recorded := test.RunRequest(t, handler, test.MakeSimpleRequest("PUT", "http://localhost/v1/fedlink/config", "bad"))
		recorded.CodeIs(500)
	}
}

func TestCtlV1FedlinkThrottle(t *testing.T) {
	log := xlog.NewStdLog(xlog.Level(xlog.PANIC))
	_, proxy, cleanup := proxy.MockProxy(log)
	defer cleanup()

	// server
	api := rest.NewApi()
	router, _ := rest.MakeRouter(
		rest.Put("/v1/fedlink/throttle", ThrottleHandler(log, proxy)),
	)
	api.SetApp(router)
	handler := api.MakeHandler()

	// 200.
	{
		p := &throttleParams{Limits: 100}
		recorded := test.RunRequest(t, handler, test.MakeSimpleRequest("PUT", "http://localhost/v1/fedlink/throttle", p))
		recorded.CodeIs(200)
	}

	// 500.
	{
		recorded := test.RunRequest(t, handler, test.MakeSimpleRequest("PUT", "http://localhost/v1/fedlink/throttle", "limits"))
		recorded.CodeIs(500)
	}
}
