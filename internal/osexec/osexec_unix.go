//go:build !windows
// +build !windows

// Package osexec provides helpers for spawning child processes.
package osexec

import (
	"os/exec"
	"syscall"
)

// Detach puts the child into its own session so that it is not torn
// down when the spawning process exits or is interrupted.
func Detach(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
