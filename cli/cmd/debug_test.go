/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCmdDebug(t *testing.T) {
	_, _, addr, cleanup := mockAdmin()
	defer cleanup()

	tests := []struct {
		sub  string
		want string
	}{
		{"jobz", "[]"},
		{"txnz", "[]"},
		{"registryz", `"live":0`},
		{"processlist", "[]"},
		{"tablestats", `"name":"sbtest.t1"`},
		{"configz", `"server-id":"mock"`},
	}
	for _, test := range tests {
		cmd := NewDebugCommand()
		out, err := executeCommand(cmd, test.sub, "--fedlink-host", addr)
		assert.Nil(t, err, test.sub)
		assert.Contains(t, out, test.want, test.sub)
	}

	// Node down.
	{
		cmd := NewDebugCommand()
		_, err := executeCommand(cmd, "jobz", "--fedlink-host", "127.0.0.1:1")
		assert.NotNil(t, err)
	}
}

func TestCmdVersion(t *testing.T) {
	_, _, addr, cleanup := mockAdmin()
	defer cleanup()

	{
		cmd := NewVersionCommand()
		out, err := executeCommand(cmd)
		assert.Nil(t, err)
		assert.Contains(t, out, "fedlinkcli:")
	}

	{
		cmd := NewVersionCommand()
		out, err := executeCommand(cmd, "--remote", "--fedlink-host", addr)
		assert.Nil(t, err)
		assert.Contains(t, out, "FedLink-")
	}
}
