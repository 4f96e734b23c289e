// Package manifest handles tarn.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a tarn.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Run     Run     `toml:"run"`
	Trace   Trace   `toml:"trace"`

	// Dir is the directory containing the tarn.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Run configures program execution.
type Run struct {
	// Entry overrides the program's declared entry function.
	Entry string `toml:"entry"`

	// GlobalRegisters is the dynamic register count of the global
	// environment.
	GlobalRegisters int `toml:"global-registers"`
}

// Trace configures execution tracing.
type Trace struct {
	// Store is the path of the SQLite trace database. Empty disables
	// the trace store.
	Store string `toml:"store"`

	// Snapshot is the path the final machine-state snapshot is written
	// to. Empty disables snapshots.
	Snapshot string `toml:"snapshot"`
}

// DefaultGlobalRegisters is used when the manifest does not set a
// global register count.
const DefaultGlobalRegisters = 8

// Load parses a tarn.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "tarn.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Run.GlobalRegisters == 0 {
		m.Run.GlobalRegisters = DefaultGlobalRegisters
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a tarn.toml file, then
// loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", startDir, err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "tarn.toml")); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}
