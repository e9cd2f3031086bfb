package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
)

// Load reads the configuration at path. Files ending in .ini are read in the
// legacy [Settings] format; everything else is TOML.
//
// A missing file yields the defaults and no error. An unreadable or malformed
// file yields the defaults and an error the caller should log. Invalid values
// are replaced by their defaults and reported in the returned error; the
// returned config is always usable.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if isLegacy(path) {
		err = parseLegacy(bytes.NewReader(data), cfg)
	} else {
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return Default(), fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		cfg.sanitize()
		return cfg, fmt.Errorf("invalid settings in %s replaced by defaults: %w", path, errors.Join(errs...))
	}
	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename), creating the
// parent directory if needed.
func Save(path string, cfg *Config) error {
	var buf bytes.Buffer
	if isLegacy(path) {
		writeLegacy(&buf, cfg)
	} else if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp config file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

// FileStore persists the configuration to a fixed path.
type FileStore struct {
	Path string
}

// Load reads the file at s.Path.
func (s FileStore) Load() (*Config, error) {
	return Load(s.Path)
}

// Save writes cfg to s.Path.
func (s FileStore) Save(cfg *Config) error {
	return Save(s.Path, cfg)
}

func isLegacy(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".ini")
}

func validateSchedule(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}
