//go:build unix

package local

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// detachedProcAttr puts the child in its own session so it survives
// the controller's lifecycle and can be signalled as a group.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

// killProcessGroup sends SIGTERM to the child's process group. With
// Setsid the child leads its own group, so the negative pid reaches it
// and any workers it forked.
func killProcessGroup(pid int) error {
	return unix.Kill(-pid, unix.SIGTERM)
}
