//go:build linux

package storage

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// fileTimes returns the birth and access times of path. Filesystems without
// birth time support report the inode change time instead.
func fileTimes(path string, info os.FileInfo) (created, accessed time.Time) {
	var stx unix.Statx_t
	mask := unix.STATX_BTIME | unix.STATX_ATIME | unix.STATX_CTIME
	if err := unix.Statx(unix.AT_FDCWD, path, unix.AT_STATX_SYNC_AS_STAT, mask, &stx); err != nil {
		return info.ModTime(), info.ModTime()
	}

	accessed = statxTime(stx.Atime)
	if stx.Mask&unix.STATX_BTIME != 0 {
		created = statxTime(stx.Btime)
	} else {
		created = statxTime(stx.Ctime)
	}
	return created, accessed
}

func statxTime(ts unix.StatxTimestamp) time.Time {
	return time.Unix(ts.Sec, int64(ts.Nsec))
}

func readable(path string) bool   { return unix.Access(path, unix.R_OK) == nil }
func writable(path string) bool   { return unix.Access(path, unix.W_OK) == nil }
func executable(path string) bool { return unix.Access(path, unix.X_OK) == nil }
