//go:build !linux

package scanner

import (
	"os"
	"time"
)

// fileTimes falls back to the modification time for both values on
// platforms without a portable creation-time source.
func fileTimes(info os.FileInfo) (created, modified time.Time) {
	modified = info.ModTime().UTC()
	return modified, modified
}
