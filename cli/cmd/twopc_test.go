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

func TestCmdTwopc(t *testing.T) {
	_, proxy, addr, cleanup := mockAdmin()
	defer cleanup()

	// enable.
	{
		cmd := NewTwopcCommand()
		_, err := executeCommand(cmd, "enable", "--fedlink-host", addr)
		assert.Nil(t, err)
		assert.True(t, proxy.Config().Proxy.TwopcEnable)
	}
	// disable.
	{
		cmd := NewTwopcCommand()
		_, err := executeCommand(cmd, "disable", "--fedlink-host", addr)
		assert.Nil(t, err)
		assert.False(t, proxy.Config().Proxy.TwopcEnable)
	}
}
