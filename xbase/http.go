/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package xbase

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const (
	httpTimeout = 5 * time.Second
)

func makeSimpleRequest(ctx context.Context, method string, url string, payload interface{}) (*http.Request, error) {
	var body []byte

	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		body = b
	}

	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req.WithContext(ctx), nil
}

func httpDo(method string, url string, payload interface{}) (*http.Response, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)
	req, err := makeSimpleRequest(ctx, method, url, payload)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	return resp, func() {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		cancel()
	}, err
}

// HTTPPost used to do restful post request.
func HTTPPost(url string, payload interface{}) (*http.Response, func(), error) {
	return httpDo("POST", url, payload)
}

// HTTPPut used to do restful put request.
func HTTPPut(url string, payload interface{}) (*http.Response, func(), error) {
	return httpDo("PUT", url, payload)
}

// HTTPGet used to do restful get request.
func HTTPGet(url string) (string, error) {
	resp, cleanup, err := httpDo("GET", url, nil)
	defer func() {
		if cleanup != nil {
			cleanup()
		}
	}()
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("http.get[%s].status[%d].body[%s]", url, resp.StatusCode, HTTPReadBody(resp))
	}
	return HTTPReadBody(resp), nil
}

// HTTPReadBody returns the body of the response.
func HTTPReadBody(resp *http.Response) string {
	if resp != nil && resp.Body != nil {
		bodyBytes, err := ioutil.ReadAll(resp.Body)
		if err != nil {
			return err.Error()
		}
		return string(bodyBytes)
	}
	return ""
}
