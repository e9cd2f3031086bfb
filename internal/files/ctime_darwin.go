package files

import (
	"os"
	"syscall"
	"time"
)

// CreationTime returns the birth time, or the modification time when the
// filesystem does not report one.
func CreationTime(info os.FileInfo) time.Time {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime()
	}
	return time.Unix(st.Birthtimespec.Sec, st.Birthtimespec.Nsec)
}
