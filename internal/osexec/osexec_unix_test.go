//go:build !windows
// +build !windows

package osexec_test

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/penguin-xe/android-system-vold/internal/osexec"
)

func TestDetach(t *testing.T) {
	c := &exec.Cmd{}

	osexec.Detach(c)
	require.NotNil(t, c.SysProcAttr)
	require.True(t, c.SysProcAttr.Setsid)
}
