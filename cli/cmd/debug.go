/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package cmd

import (
	"github.com/spf13/cobra"
)

// NewDebugCommand creates new DebugCommand.
func NewDebugCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debug",
		Short: "show fedlink runtime, including jobz/txnz/registryz/processlist/tablestats/configz",
	}
	cmd.AddCommand(newDebugGetCommand("jobz", "show the running jobs", "/v1/debug/jobz/100"))
	cmd.AddCommand(newDebugGetCommand("txnz", "show the running transactions", "/v1/debug/txnz/100"))
	cmd.AddCommand(newDebugGetCommand("registryz", "show the connections per endpoint", "/v1/debug/registryz"))
	cmd.AddCommand(newDebugGetCommand("processlist", "show the client sessions", "/v1/debug/processlist"))
	cmd.AddCommand(newDebugGetCommand("tablestats", "show the statistics of the federated tables", "/v1/debug/tablestats"))
	cmd.AddCommand(newDebugGetCommand("configz", "show fedlink config", "/v1/debug/configz"))
	addHostFlag(cmd)
	return cmd
}

func newDebugGetCommand(use, short, path string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return getAndPrint(cmd, path)
		},
	}
	return cmd
}
