package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/dirwarden/internal/files"
	"github.com/blackwell-systems/dirwarden/internal/hashindex"
	"github.com/blackwell-systems/dirwarden/internal/output"
	"github.com/blackwell-systems/dirwarden/internal/scanner"
)

var (
	scanDupes   bool
	scanFormat  string
	dupesFormat string

	scanCmd = &cobra.Command{
		Use:   "scan <directory>",
		Short: "List the files dirwarden would manage",
		Long: `List the regular files directly inside a directory in the order the
monitor sees them, with creation time and size. Subdirectories and symlinks
are not managed and are not listed.`,
		Example: `  # Show the inventory
  dirwarden scan /var/tmp/uploads

  # Include the duplicate report
  dirwarden scan /var/tmp/uploads --dupes

  # Machine-readable output
  dirwarden scan /var/tmp/uploads --format json`,
		Args: cobra.ExactArgs(1),
		RunE: runScan,
	}

	dupesCmd = &cobra.Command{
		Use:   "dupes <directory>",
		Short: "Report files with identical content",
		Long: `Report byte-identical files. For each group of identical files the first
file in scan order is treated as the original and every other file is listed
as its duplicate. Nothing is deleted.`,
		Example: `  dirwarden dupes /var/tmp/uploads`,
		Args:    cobra.ExactArgs(1),
		RunE:    runDupes,
	}
)

func init() {
	scanCmd.Flags().BoolVar(&scanDupes, "dupes", false, "also report duplicate files")
	scanCmd.Flags().StringVar(&scanFormat, "format", "table", "output format: table, json, yaml")
	dupesCmd.Flags().StringVar(&dupesFormat, "format", "table", "output format: table, json, yaml")

	RootCmd.AddCommand(scanCmd)
	RootCmd.AddCommand(dupesCmd)
}

// scanResult is the machine-readable form of the scan command.
type scanResult struct {
	Directory  string                `json:"directory" yaml:"directory"`
	Files      files.Inventory       `json:"files" yaml:"files"`
	Duplicates []hashindex.Duplicate `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
}

func runScan(cmd *cobra.Command, args []string) error {
	dir, err := resolveDir(args[0])
	if err != nil {
		return err
	}

	inv, err := scanner.New(osFs, output.NewConsole(os.Stderr)).Scan(dir)
	if err != nil {
		return err
	}

	res := scanResult{Directory: dir, Files: inv}
	if scanDupes {
		res.Duplicates, err = findDuplicates(inv, scanFormat == "table")
		if err != nil {
			return err
		}
	}

	return writeFormatted(os.Stdout, scanFormat, res, func() string {
		s := output.RenderInventoryTable(inv)
		if scanDupes {
			s += "\n" + output.RenderDuplicates(res.Duplicates)
		}
		return s
	})
}

func runDupes(cmd *cobra.Command, args []string) error {
	dir, err := resolveDir(args[0])
	if err != nil {
		return err
	}

	inv, err := scanner.New(osFs, output.NewConsole(os.Stderr)).Scan(dir)
	if err != nil {
		return err
	}

	dups, err := findDuplicates(inv, dupesFormat == "table")
	if err != nil {
		return err
	}

	return writeFormatted(os.Stdout, dupesFormat, dups, func() string {
		return output.RenderDuplicates(dups)
	})
}

// findDuplicates hashes inv, showing a spinner when the output is for a person.
func findDuplicates(inv files.Inventory, interactive bool) ([]hashindex.Duplicate, error) {
	index, err := hashindex.New(osFs, len(inv), output.NewConsole(os.Stderr))
	if err != nil {
		return nil, fmt.Errorf("failed to create hash index: %w", err)
	}

	if !interactive {
		return index.FindDuplicates(inv), nil
	}

	spinner := output.NewSpinner(fmt.Sprintf("Hashing %d files", len(inv)))
	spinner.SetWriter(os.Stderr)
	spinner.Start()
	dups := index.FindDuplicates(inv)
	spinner.Stop()
	return dups, nil
}
