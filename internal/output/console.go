package output

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/blackwell-systems/dirwarden/internal/report"
)

// clearScreen moves the cursor home and clears the terminal.
const clearScreen = "\033[H\033[2J"

type consoleStyles struct {
	banner  lipgloss.Style
	title   lipgloss.Style
	label   lipgloss.Style
	section lipgloss.Style
	created lipgloss.Style
	deleted lipgloss.Style
	backup  lipgloss.Style
	dup     lipgloss.Style
	warn    lipgloss.Style
	fail    lipgloss.Style
}

func newConsoleStyles(r *lipgloss.Renderer) consoleStyles {
	primary := lipgloss.Color("39")
	return consoleStyles{
		banner: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primary).
			Padding(0, 2),
		title:   r.NewStyle().Bold(true).Foreground(primary),
		label:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("76")),
		section: r.NewStyle().Bold(true).Foreground(primary).MarginTop(1),
		created: r.NewStyle().Foreground(lipgloss.Color("76")),
		deleted: r.NewStyle().Foreground(lipgloss.Color("203")),
		backup:  r.NewStyle().Foreground(primary),
		dup:     r.NewStyle().Foreground(lipgloss.Color("214")),
		warn:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		fail:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
}

// Console renders monitor events for a person watching a terminal.
// Each Status event redraws the full screen on a TTY; every other event
// is an inline line below it.
type Console struct {
	mu        sync.Mutex
	w         io.Writer
	clear     bool
	styles    consoleStyles
	dupHeader bool
}

// NewConsole creates a Console writing to w. Colors and screen clearing
// are enabled only when w is a terminal.
func NewConsole(w io.Writer) *Console {
	return &Console{
		w:      w,
		clear:  writerIsTTY(w),
		styles: newConsoleStyles(lipgloss.NewRenderer(w)),
	}
}

// SetClear overrides whether Status events clear the screen.
func (c *Console) SetClear(clear bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clear = clear
}

// Banner renders the monitor header.
func (c *Console) Banner(dir string, maxFiles uint32, interval time.Duration) string {
	st := c.styles
	body := lipgloss.JoinVertical(lipgloss.Left,
		st.title.Render("Directory Monitor"),
		"",
		st.label.Render("Monitoring Directory: ")+dir,
		st.label.Render("Maximum Files:        ")+fmt.Sprintf("%d", maxFiles),
		st.label.Render("Check Interval:       ")+interval.String(),
	)
	return st.banner.Render(body)
}

// Report implements report.Reporter.
func (c *Console) Report(ev report.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.styles
	switch e := ev.(type) {
	case report.Status:
		c.dupHeader = false
		if c.clear {
			fmt.Fprint(c.w, clearScreen)
		}
		fmt.Fprintln(c.w, c.Banner(e.Dir, e.MaxFiles, e.CheckInterval))
		fmt.Fprintln(c.w, st.section.Render("Monitoring Statistics"))
		fmt.Fprint(c.w, RenderStats(e.Stats))
		fmt.Fprintln(c.w, st.section.Render("System Resources"))
		fmt.Fprint(c.w, RenderResources(e.Resources))
		fmt.Fprintln(c.w, st.section.Render("Current Files"))
		fmt.Fprint(c.w, RenderInventoryTable(e.Files))
	case report.FileCreated:
		c.line(st.created, "New file detected: %s", filepath.Base(e.Path))
	case report.FileDeleted:
		c.line(st.deleted, "File deleted: %s", filepath.Base(e.Path))
	case report.DuplicateFound:
		if !c.dupHeader {
			c.dupHeader = true
			c.line(st.warn, "Duplicate files found:")
		}
		c.line(st.dup, "  - %s ⟷ %s", filepath.Base(e.Path), filepath.Base(e.Of))
	case report.StatFailed:
		c.line(st.fail, "Error accessing file %s: %v", e.Path, e.Err)
	case report.HashFailed:
		c.line(st.fail, "Error calculating hash for %s: %v", e.Path, e.Err)
	case report.BackupOK:
		c.line(st.backup, "Backup created: %s", filepath.Base(e.BackupPath))
	case report.BackupFailed:
		c.line(st.fail, "Backup failed for %s: %v", e.Path, e.Err)
	case report.Deleted:
		c.line(st.deleted, "✓ Deleted: %s (%s)", filepath.Base(e.Path), formatSize(e.SizeBytes))
	case report.DeleteFailed:
		c.line(st.fail, "Delete failed for %s: %v", e.Path, e.Err)
	case report.Warning:
		if e.Err != nil {
			c.line(st.warn, "Warning: %s: %v", e.Message, e.Err)
		} else {
			c.line(st.warn, "Warning: %s", e.Message)
		}
	case report.Fatal:
		c.line(st.fail, "Error: %v", e.Err)
	}
}

func (c *Console) line(style lipgloss.Style, format string, args ...any) {
	fmt.Fprintln(c.w, style.Render(fmt.Sprintf(format, args...)))
}
