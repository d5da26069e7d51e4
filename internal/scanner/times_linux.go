//go:build linux

package scanner

import (
	"os"
	"syscall"
	"time"
)

// fileTimes extracts creation and modification times from a stat
// result. Linux exposes no birth time through os.FileInfo, so the
// inode status-change time stands in for creation.
func fileTimes(info os.FileInfo) (created, modified time.Time) {
	modified = info.ModTime().UTC()
	created = modified
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		created = time.Unix(int64(stat.Ctim.Sec), int64(stat.Ctim.Nsec)).UTC()
	}
	return created, modified
}
