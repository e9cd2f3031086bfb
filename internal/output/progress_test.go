package output

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/blackwell-systems/dirwarden/internal/report"
)

func TestProgressBar_NonTTYPrintsOnCompletion(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(3, "Cleaning up")
	p.SetWriter(buf)

	p.Increment()
	p.Increment()
	if buf.Len() != 0 {
		t.Errorf("partial progress wrote %q on a non-TTY, want nothing", buf.String())
	}

	p.Increment()
	out := buf.String()
	if !strings.Contains(out, "100%") || !strings.Contains(out, "Cleaning up") {
		t.Errorf("completed bar = %q, want 100%% and description", out)
	}

	p.Finish()
	if got := strings.Count(buf.String(), "100%"); got != 1 {
		t.Errorf("Finish() after completion printed %d lines, want 1", got)
	}
}

func TestProgressBar_FinishEarly(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(10, "Cleaning up")
	p.SetWriter(buf)

	p.Increment()
	p.Finish()
	if !strings.Contains(buf.String(), "100%") {
		t.Errorf("Finish() = %q, want a completed bar", buf.String())
	}
}

func TestProgressBar_DoesNotOverrun(t *testing.T) {
	p := NewProgress(2, "x")
	p.SetWriter(&bytes.Buffer{})

	for i := 0; i < 5; i++ {
		p.Increment()
	}
	if got := p.Current(); got != 2 {
		t.Errorf("Current() = %d, want 2", got)
	}
}

func TestProgressBar_ZeroTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(0, "nothing")
	p.SetWriter(buf)
	p.Increment()
	if !strings.Contains(buf.String(), "0%") {
		t.Errorf("zero-total bar = %q", buf.String())
	}
}

func TestProgressBar_ReportCountsOutcomes(t *testing.T) {
	p := NewProgress(10, "x")
	p.SetWriter(&bytes.Buffer{})

	events := []report.Event{
		report.BackupOK{Path: "a"},
		report.Deleted{Path: "a"},
		report.BackupFailed{Path: "b", Err: errors.New("x")},
		report.DeleteFailed{Path: "c", Err: errors.New("x")},
		report.Scanned{Count: 4},
	}
	for _, ev := range events {
		p.Report(ev)
	}

	if got := p.Current(); got != 3 {
		t.Errorf("Current() = %d, want 3", got)
	}
}

func TestProgressBar_Concurrent(t *testing.T) {
	p := NewProgress(100, "x")
	p.SetWriter(&bytes.Buffer{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				p.Increment()
			}
		}()
	}
	wg.Wait()

	if got := p.Current(); got != 100 {
		t.Errorf("Current() = %d, want 100", got)
	}
}

func TestSpinner_NonTTY(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewSpinner("Hashing files")
	s.SetWriter(buf)

	s.Start()
	s.Start()
	s.UpdateMessage("ignored off a terminal")
	s.StopWithMessage("done")
	s.Stop()

	out := buf.String()
	if got := strings.Count(out, "Hashing files..."); got != 1 {
		t.Errorf("spinner printed its message %d times, want 1: %q", got, out)
	}
	if !strings.HasSuffix(out, "done\n") {
		t.Errorf("spinner output = %q, want final message", out)
	}
}
