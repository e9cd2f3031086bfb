package app

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/dirwarden/internal/backup"
	"github.com/blackwell-systems/dirwarden/internal/config"
	"github.com/blackwell-systems/dirwarden/internal/scanner"
	"github.com/blackwell-systems/dirwarden/internal/store"
)

// osFs is the filesystem every command works on.
var osFs afero.Fs = afero.NewOsFs()

// resolveDir makes dir absolute and checks it is an existing directory.
func resolveDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	if err := scanner.CheckDirectory(osFs, abs); err != nil {
		return "", err
	}
	return abs, nil
}

// openJournal opens the journal database, creating its schema if needed.
func openJournal() (*store.Store, error) {
	path, err := getDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get database path: %w", err)
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// openBackups returns the backup store for cfg. A non-empty override
// replaces the configured directory.
func openBackups(cfg *config.Config, override string) (*backup.Store, error) {
	c := *cfg
	if override != "" {
		c.Backup.Dir = override
	}
	root, err := c.BackupRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve backup directory: %w", err)
	}
	return backup.New(osFs, root), nil
}

// writeFormatted writes data as JSON or YAML, or calls table for the
// default human-readable form.
func writeFormatted(w io.Writer, format string, data any, table func() string) error {
	switch format {
	case "", "table":
		_, err := io.WriteString(w, table())
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("invalid format: %s (expected: table, json, yaml)", format)
	}
}

func humanBytes(n uint64) string {
	return humanize.Bytes(n)
}

// shortRunID returns the prefix of a run ID that history accepts.
func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
