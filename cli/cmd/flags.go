/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package cmd

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/radondb/fedlink/xbase"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/xelabs/go-mysqlstack/xlog"
)

var (
	log = xlog.NewStdLog(xlog.Level(xlog.INFO))

	// fedlinkHost is the admin address(peer-address) of the node.
	fedlinkHost = "127.0.0.1:8080"
)

func addHostFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&fedlinkHost, "fedlink-host", "127.0.0.1:8080", "--fedlink-host=[ip:port]")
}

func adminURL(path string) string {
	return fmt.Sprintf("http://%s%s", fedlinkHost, path)
}

// getAndPrint prints the body of GET path.
func getAndPrint(cmd *cobra.Command, path string) error {
	body, err := xbase.HTTPGet(adminURL(path))
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), body)
	return nil
}

// put sends req to path and fails on a non-200 answer.
func put(path string, req interface{}) error {
	url := adminURL(path)
	resp, cleanup, err := xbase.HTTPPut(url, req)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		return errors.WithStack(err)
	}
	if resp == nil || resp.StatusCode != http.StatusOK {
		return errors.Errorf("fedlinkcli.put.url[%s].response.error:%s", url, xbase.HTTPReadBody(resp))
	}
	return nil
}

func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOutput(buf)
	root.SetArgs(args)

	_, err = root.ExecuteC()
	return buf.String(), err
}
