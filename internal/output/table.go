// Package output provides terminal output for dirwarden.
//
// This package includes:
//   - Table rendering for inventories, duplicates, resource usage, journaled runs and backups
//   - A console Reporter that turns monitor events into status screens and inline lines
//   - Progress bars and spinners for one-shot commands
//
// Tables are plain fixed-width text with optional ANSI color. Progress
// indicators are safe for use from multiple goroutines.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/dirwarden/internal/backup"
	"github.com/blackwell-systems/dirwarden/internal/files"
	"github.com/blackwell-systems/dirwarden/internal/hashindex"
	"github.com/blackwell-systems/dirwarden/internal/report"
	"github.com/blackwell-systems/dirwarden/internal/store"
)

// ANSI color codes for outcome display
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

const createdLayout = "2006-01-02 15:04:05"

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

func colorize(color, text string) string {
	if !IsColorEnabled() {
		return text
	}
	return color + text + colorReset
}

// RenderInventoryTable renders the files of one scan in inventory order.
func RenderInventoryTable(inv files.Inventory) string {
	if len(inv) == 0 {
		return "No files found.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-32s %-20s %10s  %s\n",
		"File", "Created", "Size", "Age"))
	sb.WriteString(strings.Repeat("─", 80))
	sb.WriteString("\n")

	for _, rec := range inv {
		sb.WriteString(fmt.Sprintf("%-32s %-20s %10s  %s\n",
			truncate(filepath.Base(rec.Path), 32),
			rec.CreatedAt.Local().Format(createdLayout),
			formatSize(rec.SizeBytes),
			formatRelativeTime(rec.CreatedAt)))
	}

	sb.WriteString(fmt.Sprintf("\n%s files, %s total\n",
		humanize.Comma(int64(len(inv))), formatSize(inv.TotalBytes())))

	return sb.String()
}

// RenderExcessTable renders the files a cleanup would remove, oldest first.
func RenderExcessTable(excess []files.Record) string {
	if len(excess) == 0 {
		return "Nothing to clean up.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-4s %-32s %-20s %10s\n",
		"#", "File", "Created", "Size"))
	sb.WriteString(strings.Repeat("─", 70))
	sb.WriteString("\n")

	var total uint64
	for i, rec := range excess {
		total += rec.SizeBytes
		sb.WriteString(fmt.Sprintf("%-4d %-32s %-20s %10s\n",
			i+1,
			truncate(filepath.Base(rec.Path), 32),
			rec.CreatedAt.Local().Format(createdLayout),
			formatSize(rec.SizeBytes)))
	}

	sb.WriteString(fmt.Sprintf("\n%d files, %s to reclaim\n", len(excess), formatSize(total)))

	return sb.String()
}

// RenderDuplicates renders duplicate pairs as "copy ⟷ original" lines.
func RenderDuplicates(dups []hashindex.Duplicate) string {
	if len(dups) == 0 {
		return "No duplicate files found.\n"
	}

	var sb strings.Builder
	sb.WriteString(colorize(colorYellow, "Duplicate files found:"))
	sb.WriteString("\n")
	for _, d := range dups {
		sb.WriteString(fmt.Sprintf("  - %s ⟷ %s\n", filepath.Base(d.Path), filepath.Base(d.Of)))
	}
	return sb.String()
}

// RenderStats renders the cumulative cleanup statistics of a monitor session.
func RenderStats(stats files.Stats) string {
	last := "never"
	if stats.LastCleanupAt != nil {
		last = formatRelativeTime(*stats.LastCleanupAt)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Files Deleted:        %s\n", humanize.Comma(int64(stats.FilesDeleted))))
	sb.WriteString(fmt.Sprintf("Total Space Cleaned:  %s\n", formatSize(stats.TotalBytesCleaned)))
	sb.WriteString(fmt.Sprintf("Last Cleanup:         %s\n", last))
	return sb.String()
}

// RenderResources renders host CPU, memory and disk usage.
// Values the host could not provide are shown as n/a.
func RenderResources(res report.Resources) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-10s %s\n", "Resource", "Usage"))
	sb.WriteString(strings.Repeat("─", 24))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%-10s %s\n", "CPU", formatPercent(res.CPUPercent, res.HasCPU)))
	sb.WriteString(fmt.Sprintf("%-10s %s\n", "Memory", formatPercent(res.MemoryPercent, res.HasMemory)))
	sb.WriteString(fmt.Sprintf("%-10s %s\n", "Disk", formatPercent(res.DiskPercent, res.HasDisk)))

	return sb.String()
}

// RenderRunTable renders journaled cleanup runs, newest first.
func RenderRunTable(runs []*store.Run) string {
	if len(runs) == 0 {
		return "No cleanup runs recorded.\n"
	}

	sorted := make([]*store.Run, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartedAt.After(sorted[j].StartedAt)
	})

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-8s %-15s %-24s %7s %7s %10s  %s\n",
		"Run", "Started", "Directory", "Scanned", "Deleted", "Cleaned", "Notes"))
	sb.WriteString(strings.Repeat("─", 90))
	sb.WriteString("\n")

	for _, r := range sorted {
		notes := ""
		switch {
		case r.Interrupted:
			notes = colorize(colorYellow, "interrupted")
		case r.Deleted < r.Excess:
			notes = colorize(colorRed, fmt.Sprintf("%d failed", r.Excess-r.Deleted))
		}

		sb.WriteString(fmt.Sprintf("%-8s %-15s %-24s %7d %7d %10s  %s\n",
			shortID(r.ID),
			formatRelativeTime(r.StartedAt),
			truncateLeft(r.Directory, 24),
			r.Scanned,
			r.Deleted,
			formatSize(r.BytesCleaned),
			notes))
	}

	return sb.String()
}

// RenderOutcomeTable renders the per-file outcomes of one run.
func RenderOutcomeTable(outcomes []*store.Outcome) string {
	if len(outcomes) == 0 {
		return "No files were processed in this run.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-28s %10s %-14s %s\n",
		"File", "Size", "Status", "Detail"))
	sb.WriteString(strings.Repeat("─", 80))
	sb.WriteString("\n")

	for _, o := range outcomes {
		detail := o.Error
		if detail == "" {
			detail = o.BackupPath
			if o.BackupPruned {
				detail += " (pruned)"
			}
		}

		// Pad before coloring so escape codes do not break alignment.
		status := colorize(statusColor(o.Status), fmt.Sprintf("%-14s", o.Status))

		sb.WriteString(fmt.Sprintf("%-28s %10s %s %s\n",
			truncate(filepath.Base(o.Path), 28),
			formatSize(o.SizeBytes),
			status,
			truncateLeft(detail, 40)))
	}

	return sb.String()
}

// RenderTotals renders the aggregate of the whole journal.
func RenderTotals(t *store.Totals) string {
	if t == nil || t.Runs == 0 {
		return "No cleanup runs recorded.\n"
	}

	first, last := "never", "never"
	if t.FirstRun != nil {
		first = formatRelativeTime(*t.FirstRun)
	}
	if t.LastRun != nil {
		last = formatRelativeTime(*t.LastRun)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Runs:             %s\n", humanize.Comma(int64(t.Runs))))
	sb.WriteString(fmt.Sprintf("Files deleted:    %s\n", humanize.Comma(int64(t.FilesDeleted))))
	sb.WriteString(fmt.Sprintf("Space cleaned:    %s\n", formatSize(t.BytesCleaned)))
	if t.BackupFailures > 0 || t.DeleteFailures > 0 {
		sb.WriteString(colorize(colorRed, fmt.Sprintf("Failures:         %d backup, %d delete",
			t.BackupFailures, t.DeleteFailures)))
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("First run:        %s\n", first))
	sb.WriteString(fmt.Sprintf("Last run:         %s\n", last))
	return sb.String()
}

// RenderBackupTable renders the contents of the backup root, newest first.
func RenderBackupTable(entries []backup.Entry) string {
	if len(entries) == 0 {
		return "No backups found.\n"
	}

	sorted := make([]backup.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ModTime.After(sorted[j].ModTime)
	})

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-36s %10s  %s\n", "Backup", "Size", "Modified"))
	sb.WriteString(strings.Repeat("─", 70))
	sb.WriteString("\n")

	var total int64
	for _, e := range sorted {
		total += e.SizeBytes
		sb.WriteString(fmt.Sprintf("%-36s %10s  %s\n",
			truncate(e.Name, 36),
			formatSize(uint64(e.SizeBytes)),
			formatRelativeTime(e.ModTime)))
	}

	sb.WriteString(fmt.Sprintf("\n%d backups, %s total\n", len(sorted), formatSize(uint64(total))))

	return sb.String()
}

func statusColor(status string) string {
	switch status {
	case "deleted":
		return colorGreen
	case "backup_failed", "delete_failed":
		return colorRed
	default:
		return colorGray
	}
}

// formatSize converts bytes to a human-readable SI size ("1.2 MB").
func formatSize(bytes uint64) string {
	return humanize.Bytes(bytes)
}

func formatPercent(v float64, ok bool) string {
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", v)
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	case diff < 30*24*time.Hour:
		return plural(int(diff.Hours()/24/7), "week")
	case diff < 365*24*time.Hour:
		return plural(int(diff.Hours()/24/30), "month")
	default:
		return plural(int(diff.Hours()/24/365), "year")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// truncateLeft keeps the tail of s, which is the informative end of a path.
func truncateLeft(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[len(s)-maxLen:]
	}
	return "..." + s[len(s)-maxLen+3:]
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
