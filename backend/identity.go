/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package backend

import (
	"fmt"
	"os"
	"strings"

	"github.com/radondb/fedlink/monitor"
	"github.com/radondb/fedlink/xbase"
)

// Identity is the loop-check identity of this node.
type Identity struct {
	serverID string
	mac      string
	pid      int
}

// NewIdentity creates the identity of the node with serverID.
func NewIdentity(serverID string) *Identity {
	return &Identity{
		serverID: serverID,
		mac:      xbase.HostMAC(),
		pid:      os.Getpid(),
	}
}

// Token returns the token of table on this node.
func (id *Identity) Token(table string) string {
	return fmt.Sprintf("[%s/%s:%s:%d]", id.serverID, strings.ToLower(table), id.mac, id.pid)
}

// CheckLoop fails with LoopDetected when the inbound marker of table
// already went through this node for the same table.
func (id *Identity) CheckLoop(table, from string) error {
	if from == "" || !strings.Contains(from, id.Token(table)) {
		return nil
	}
	monitor.LoopDetectedInc(table)
	return newError(KindLoopDetected, nil, "marker[%s]", from).at(table, "", NoLink)
}

// NewEntry builds the loop-check entry of table toward the remote target.
func (id *Identity) NewEntry(table, target, from string) *LoopCheckEntry {
	return NewLoopCheckEntry(table, target, from, id.Token(table))
}
