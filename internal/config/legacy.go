package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// legacySection is the only section the legacy format defines.
const legacySection = "settings"

// parseLegacy reads the two-key INI format:
//
//	[Settings]
//	max_files = 10
//	check_interval = 5
//
// Comments, blank lines, unknown keys and other sections are skipped. A
// non-integer value is an error.
func parseLegacy(r io.Reader, cfg *Config) error {
	section := ""
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			continue
		}
		if section != legacySection {
			continue
		}

		idx := strings.IndexAny(line, "=:")
		if idx <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])

		switch key {
		case "max_files":
			n, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return fmt.Errorf("max_files: %w", err)
			}
			cfg.MaxFiles = uint32(n)
		case "check_interval":
			n, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return fmt.Errorf("check_interval: %w", err)
			}
			cfg.CheckIntervalSeconds = uint32(n)
		}
	}
	return scanner.Err()
}

func writeLegacy(w io.Writer, cfg *Config) {
	fmt.Fprintf(w, "[Settings]\nmax_files = %d\ncheck_interval = %d\n\n", cfg.MaxFiles, cfg.CheckIntervalSeconds)
}
