//go:build linux || darwin

package sysinfo

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// DiskPercent returns the used percentage of the filesystem holding path.
func DiskPercent(path string) (float64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("failed to statfs %s: %w", path, err)
	}
	bsize := uint64(st.Bsize)
	pct, ok := usedPercent(st.Blocks*bsize, st.Bfree*bsize, st.Bavail*bsize)
	if !ok {
		return 0, fmt.Errorf("no block counts reported for %s", path)
	}
	return pct, nil
}
