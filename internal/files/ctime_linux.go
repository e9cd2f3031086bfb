package files

import (
	"os"
	"syscall"
	"time"
)

// CreationTime returns the inode change time. Linux does not expose birth
// time through stat(2), so ctime is the closest stable value.
func CreationTime(info os.FileInfo) time.Time {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime()
	}
	return time.Unix(int64(st.Ctim.Sec), int64(st.Ctim.Nsec))
}
