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

// NewTwopcCommand creates the twopc command.
func NewTwopcCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "twopc",
		Short: "disable/enable fedlink to run the transactions as XA",
	}
	cmd.AddCommand(newTwopcSetCommand("enable", true))
	cmd.AddCommand(newTwopcSetCommand("disable", false))
	addHostFlag(cmd)
	return cmd
}

func setTwopc(twopc bool) error {
	type request struct {
		Twopc bool `json:"twopc-enable"`
	}
	return put("/v1/fedlink/config", &request{Twopc: twopc})
}

func newTwopcSetCommand(use string, twopc bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: use + " fedlink twopc",
		RunE: func(cmd *cobra.Command, args []string) error {
			return setTwopc(twopc)
		},
	}
	return cmd
}
