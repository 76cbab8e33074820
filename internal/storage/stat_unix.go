//go:build unix && !linux

package storage

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// fileTimes falls back to the modification time where statx is unavailable.
func fileTimes(path string, info os.FileInfo) (created, accessed time.Time) {
	return info.ModTime(), info.ModTime()
}

func readable(path string) bool   { return unix.Access(path, unix.R_OK) == nil }
func writable(path string) bool   { return unix.Access(path, unix.W_OK) == nil }
func executable(path string) bool { return unix.Access(path, unix.X_OK) == nil }
