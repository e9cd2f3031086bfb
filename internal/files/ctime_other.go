//go:build !linux && !darwin

package files

import (
	"os"
	"time"
)

// CreationTime returns the modification time; no creation time is portable here.
func CreationTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
