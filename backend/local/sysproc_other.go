//go:build !unix

package local

import (
	"fmt"
	"os"
	"syscall"
)

// detachedProcAttr is a no-op off unix; sessions are a unix concept.
func detachedProcAttr() *syscall.SysProcAttr {
	return nil
}

// killProcessGroup falls back to killing only the direct child.
func killProcessGroup(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	return proc.Kill()
}
