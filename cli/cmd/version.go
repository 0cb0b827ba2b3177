/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package cmd

import (
	"fmt"

	"github.com/radondb/fedlink/build"

	"github.com/spf13/cobra"
)

// NewVersionCommand prints the version of the client, and of the node
// with --remote.
func NewVersionCommand() *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number of fedlink client",
		RunE: func(cmd *cobra.Command, args []string) error {
			if remote {
				return getAndPrint(cmd, "/v1/version")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fedlinkcli:[%+v]\n", build.GetInfo())
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "--remote")
	addHostFlag(cmd)
	return cmd
}
