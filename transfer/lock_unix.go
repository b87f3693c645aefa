//go:build !windows
// +build !windows

package transfer

import (
	"os"
	"syscall"
)

// lockFile takes a non-blocking exclusive lock so two transfers cannot
// write the same local file.
func lockFile(file *os.File) error {
	return syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
}

func unlockFile(file *os.File) error {
	return syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
}
