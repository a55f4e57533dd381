//go:build !windows

package store

import "syscall"

// processAlive reports whether pid refers to a live process, using signal 0
// (no-op delivery, pure existence/permission check per kill(2)).
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err == syscall.EPERM
}
