package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "tarn.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("writing tarn.toml: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "demo"
version = "0.1.0"

[run]
entry = "main2"
global-registers = 16

[trace]
store = "trace.db"
snapshot = "state.cbor"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if m.Project.Name != "demo" || m.Project.Version != "0.1.0" {
		t.Errorf("project = %+v", m.Project)
	}
	if m.Run.Entry != "main2" {
		t.Errorf("entry = %q, want main2", m.Run.Entry)
	}
	if m.Run.GlobalRegisters != 16 {
		t.Errorf("global registers = %d, want 16", m.Run.GlobalRegisters)
	}
	if m.Trace.Store != "trace.db" || m.Trace.Snapshot != "state.cbor" {
		t.Errorf("trace = %+v", m.Trace)
	}

	wantDir, _ := filepath.Abs(dir)
	if m.Dir != wantDir {
		t.Errorf("dir = %q, want %q", m.Dir, wantDir)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "demo"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if m.Run.GlobalRegisters != DefaultGlobalRegisters {
		t.Errorf("global registers = %d, want default %d", m.Run.GlobalRegisters, DefaultGlobalRegisters)
	}
	if m.Run.Entry != "" {
		t.Errorf("entry = %q, want empty", m.Run.Entry)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load without tarn.toml did not fail")
	}
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "not [valid toml\n")
	if _, err := Load(dir); err == nil {
		t.Error("Load with invalid TOML did not fail")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
[project]
name = "demo"
`)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad found no manifest")
	}
	if m.Project.Name != "demo" {
		t.Errorf("project name = %q, want demo", m.Project.Name)
	}
	wantDir, _ := filepath.Abs(root)
	if m.Dir != wantDir {
		t.Errorf("dir = %q, want %q", m.Dir, wantDir)
	}
}

func TestFindAndLoadNone(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Errorf("FindAndLoad = %+v, want nil", m)
	}
}
