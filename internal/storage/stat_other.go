//go:build !unix

package storage

import (
	"os"
	"time"
)

func fileTimes(path string, info os.FileInfo) (created, accessed time.Time) {
	return info.ModTime(), info.ModTime()
}

func readable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

func writable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().Perm()&0200 != 0
}

func executable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().Perm()&0111 != 0
}
