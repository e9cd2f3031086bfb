//go:build !linux && !darwin

package sysinfo

import "errors"

// DiskPercent is not supported on this platform.
func DiskPercent(path string) (float64, error) {
	return 0, errors.New("disk usage not supported on this platform")
}
