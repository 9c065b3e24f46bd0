package driver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLockfileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, LockfileName)

	lock := NewLockfile("rinha-programs", "rinha 0.1.0")
	lock.Upsert(&LockedCollection{Name: "zeta", Version: "abc123", Source: "git+https://example.com/z.git", Checksum: "sha256:1"})
	lock.Upsert(&LockedCollection{Name: "alpha-set", Version: "path", Source: "path:../alpha", Checksum: "sha256:2"})
	if err := WriteLockfile(lock, path); err != nil {
		t.Fatalf("WriteLockfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read lockfile: %v", err)
	}
	if !strings.Contains(string(data), "root: rinha_programs") {
		t.Fatalf("unexpected lockfile contents:\n%s", data)
	}

	loaded, err := LoadLockfile(path)
	if err != nil {
		t.Fatalf("LoadLockfile: %v", err)
	}
	if loaded.Tool != "rinha 0.1.0" || loaded.Generated == "" {
		t.Fatalf("metadata lost: %#v", loaded)
	}
	if len(loaded.Collections) != 2 || loaded.Collections[0].Name != "alpha_set" || loaded.Collections[1].Name != "zeta" {
		t.Fatalf("collections not sorted/sanitized: %#v", loaded.Collections)
	}
	zeta, ok := loaded.Find("zeta")
	if !ok || zeta.Version != "abc123" || zeta.Checksum != "sha256:1" {
		t.Fatalf("Find(zeta) = %#v, %v", zeta, ok)
	}
}

func TestLockfileUpsertReportsChanges(t *testing.T) {
	lock := NewLockfile("demo", "rinha")
	entry := LockedCollection{Name: "set", Version: "v1", Source: "s", Checksum: "c"}
	first := entry
	if !lock.Upsert(&first) {
		t.Fatalf("expected insert to report a change")
	}
	same := entry
	if lock.Upsert(&same) {
		t.Fatalf("identical entry should not report a change")
	}
	bumped := entry
	bumped.Version = "v2"
	if !lock.Upsert(&bumped) {
		t.Fatalf("version bump should report a change")
	}
	if got, _ := lock.Find("set"); got.Version != "v2" {
		t.Fatalf("expected v2, got %s", got.Version)
	}
}

func TestLoadLockfileRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, LockfileName)
	if err := os.WriteFile(path, []byte("root: x\npackages: []\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadLockfile(path); err == nil {
		t.Fatalf("expected parse error for unknown field")
	}
}
