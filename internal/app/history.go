package app

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/dirwarden/internal/output"
	"github.com/blackwell-systems/dirwarden/internal/store"
)

var (
	historyLimit  int
	historyFormat string

	historyCmd = &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show journaled cleanup runs",
		Long: `Show past cleanup runs, newest first. With a run ID (or a unique prefix
of one) show every file that run processed, where it was backed up, and
whether it was deleted.`,
		Example: `  # Recent runs
  dirwarden history

  # Files processed by one run
  dirwarden history 3f2a9c1e

  # Everything as JSON
  dirwarden history --limit 0 --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}
)

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show (0 for all)")
	historyCmd.Flags().StringVar(&historyFormat, "format", "table", "output format: table, json, yaml")

	RootCmd.AddCommand(historyCmd)
}

// runDetail is the machine-readable form of a single run.
type runDetail struct {
	Run      *store.Run       `json:"run" yaml:"run"`
	Outcomes []*store.Outcome `json:"outcomes" yaml:"outcomes"`
}

func runHistory(cmd *cobra.Command, args []string) error {
	journal, err := openJournal()
	if err != nil {
		return err
	}
	defer journal.Close()

	if len(args) == 1 {
		return showRun(journal, args[0])
	}

	runs, err := journal.ListRuns(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	return writeFormatted(os.Stdout, historyFormat, runs, func() string {
		return output.RenderRunTable(runs)
	})
}

func showRun(journal *store.Store, id string) error {
	run, err := journal.GetRun(id)
	if err != nil {
		return err
	}
	outcomes, err := journal.ListOutcomes(run.ID)
	if err != nil {
		return fmt.Errorf("failed to list outcomes: %w", err)
	}

	detail := runDetail{Run: run, Outcomes: outcomes}
	return writeFormatted(os.Stdout, historyFormat, detail, func() string {
		const label = "%-12s"
		s := fmt.Sprintf(label+"%s\n", "Run:", run.ID)
		s += fmt.Sprintf(label+"%s\n", "Directory:", run.Directory)
		s += fmt.Sprintf(label+"%s\n", "Started:", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
		s += fmt.Sprintf(label+"%s\n", "Duration:", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
		s += fmt.Sprintf(label+"%d scanned, %d over limit %d, %d deleted, %s freed\n", "Files:",
			run.Scanned, run.Excess, run.MaxFiles, run.Deleted, humanBytes(run.BytesCleaned))
		if run.Interrupted {
			s += fmt.Sprintf(label+"interrupted before all files were processed\n", "Note:")
		}
		return s + "\n" + output.RenderOutcomeTable(outcomes)
	})
}
