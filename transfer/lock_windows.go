//go:build windows
// +build windows

package transfer

import (
	"os"

	"golang.org/x/sys/windows"
)

const allBytes = ^uint32(0)

// lockFile takes a non-blocking exclusive lock so two transfers cannot
// write the same local file.
func lockFile(file *os.File) error {
	ol := new(windows.Overlapped)
	return windows.LockFileEx(windows.Handle(file.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY, 0, allBytes, allBytes, ol)
}

func unlockFile(file *os.File) error {
	ol := new(windows.Overlapped)
	return windows.UnlockFileEx(windows.Handle(file.Fd()), 0, allBytes, allBytes, ol)
}
