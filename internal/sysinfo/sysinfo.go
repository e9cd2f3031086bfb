// Package sysinfo samples host CPU, memory and disk usage for the status
// display. Every value is best effort: when a source is unavailable on the
// current platform the matching Has flag stays false.
package sysinfo

import (
	"sync"

	"github.com/prometheus/procfs"

	"github.com/blackwell-systems/dirwarden/internal/report"
)

// Sampler reports resource usage. CPU usage is computed from the change in
// /proc/stat counters since the previous sample, so the first sample shows
// the average since boot.
type Sampler struct {
	diskPath string

	mu        sync.Mutex
	proc      procfs.FS
	procErr   error
	prevTotal float64
	prevIdle  float64
}

// New creates a Sampler measuring disk usage of the filesystem holding diskPath.
func New(diskPath string) *Sampler {
	fs, err := procfs.NewDefaultFS()
	return &Sampler{diskPath: diskPath, proc: fs, procErr: err}
}

// Sample returns the current usage.
func (s *Sampler) Sample() report.Resources {
	s.mu.Lock()
	defer s.mu.Unlock()

	var r report.Resources

	if s.procErr == nil {
		if pct, ok := s.cpuPercent(); ok {
			r.CPUPercent, r.HasCPU = pct, true
		}
		if pct, ok := s.memoryPercent(); ok {
			r.MemoryPercent, r.HasMemory = pct, true
		}
	}

	if s.diskPath != "" {
		if pct, err := DiskPercent(s.diskPath); err == nil {
			r.DiskPercent, r.HasDisk = pct, true
		}
	}
	return r
}

func (s *Sampler) cpuPercent() (float64, bool) {
	stat, err := s.proc.Stat()
	if err != nil {
		return 0, false
	}
	c := stat.CPUTotal
	idle := c.Idle + c.Iowait
	total := idle + c.User + c.Nice + c.System + c.IRQ + c.SoftIRQ + c.Steal

	dTotal := total - s.prevTotal
	dIdle := idle - s.prevIdle
	s.prevTotal, s.prevIdle = total, idle

	return busyPercent(dTotal, dIdle)
}

func (s *Sampler) memoryPercent() (float64, bool) {
	mi, err := s.proc.Meminfo()
	if err != nil || mi.MemTotal == nil || mi.MemAvailable == nil || *mi.MemTotal == 0 {
		return 0, false
	}
	used := *mi.MemTotal - *mi.MemAvailable
	return float64(used) / float64(*mi.MemTotal) * 100, true
}

// busyPercent converts total and idle time deltas to a busy percentage.
func busyPercent(total, idle float64) (float64, bool) {
	if total <= 0 {
		return 0, false
	}
	pct := (total - idle) / total * 100
	if pct < 0 {
		pct = 0
	}
	return pct, true
}

// usedPercent mirrors df: used / (used + available to unprivileged users).
func usedPercent(total, free, avail uint64) (float64, bool) {
	if total == 0 || free > total {
		return 0, false
	}
	used := total - free
	if used+avail == 0 {
		return 0, false
	}
	return float64(used) / float64(used+avail) * 100, true
}
