/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	v1 "github.com/radondb/fedlink/ctl/v1"
	"github.com/radondb/fedlink/xbase"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// NewLinkCommand creates the link command.
func NewLinkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "show or set the links of the federated tables",
	}
	cmd.AddCommand(NewLinkStatusCommand())
	cmd.AddCommand(NewLinkSetCommand())
	addHostFlag(cmd)
	return cmd
}

// NewLinkStatusCommand shows every link with its status.
func NewLinkStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "show the status of every link",
		RunE:  linkStatusCommand,
	}
	return cmd
}

func linkStatusCommand(cmd *cobra.Command, args []string) error {
	body, err := xbase.HTTPGet(adminURL("/v1/fedlink/links"))
	if err != nil {
		return err
	}
	var links []v1.LinkInfo
	if err := json.Unmarshal([]byte(body), &links); err != nil {
		return errors.Wrapf(err, "fedlinkcli.link.status.unmarshal[%s]", body)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tSHARD\tLINK\tADDRESS\tSTATUS\tWEIGHT")
	for _, l := range links {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%d\n", l.Table, l.Shard, l.Index, l.Address, l.Status, l.Weight)
	}
	return w.Flush()
}

// NewLinkSetCommand sets the status of one link.
func NewLinkSetCommand() *cobra.Command {
	p := &v1.LinkStatusParams{}
	cmd := &cobra.Command{
		Use:   "set",
		Short: "set the status(active/recovery/disabled) of one link",
		RunE: func(cmd *cobra.Command, args []string) error {
			if p.Table == "" || p.Shard == "" || p.Status == "" {
				return errors.New("fedlinkcli.link.set: --table, --shard and --status are required")
			}
			return put("/v1/fedlink/link/status", p)
		},
	}
	cmd.Flags().StringVar(&p.Table, "table", "", "--table=[db.tbl]")
	cmd.Flags().StringVar(&p.Shard, "shard", "", "--shard=[name]")
	cmd.Flags().IntVar(&p.Index, "index", 0, "--index=[link index]")
	cmd.Flags().StringVar(&p.Status, "status", "", "--status=[active|recovery|disabled]")
	return cmd
}
