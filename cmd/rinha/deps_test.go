package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/ojpbarbosa/rinha-interpreter/pkg/driver"
)

func TestCollectionInstaller_PathCollection(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "programs", "hello.json"), helloProgram)
	writeFile(t, filepath.Join(root, "app", "rinha.yml"), `
name: app
collections:
  local-programs:
    path: ../programs
`)

	manifest, err := driver.LoadManifest(filepath.Join(root, "app", "rinha.yml"))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	cacheDir := filepath.Join(root, "cache")
	installer := newCollectionInstaller(manifest, cacheDir)
	lock := driver.NewLockfile(manifest.Name, cliToolVersion)

	changed, logs, err := installer.Install(lock, nil)
	if err != nil {
		t.Fatalf("Install error: %v", err)
	}
	if !changed {
		t.Fatalf("expected lockfile change for path collection")
	}
	if len(logs) == 0 || !strings.HasPrefix(logs[0], "Copied local_programs") {
		t.Fatalf("unexpected logs %v", logs)
	}
	entry, ok := lock.Find("local-programs")
	if !ok {
		t.Fatalf("lock missing collection: %#v", lock.Collections)
	}
	if entry.Version != "path" || entry.Source != "path:../programs" {
		t.Fatalf("unexpected entry %#v", entry)
	}
	if !strings.HasPrefix(entry.Checksum, "sha256:") || len(entry.Checksum) != len("sha256:")+64 {
		t.Fatalf("unexpected checksum %q", entry.Checksum)
	}
	cached := filepath.Join(cacheDir, "collections", "local_programs", "path", "hello.json")
	if _, err := os.Stat(cached); err != nil {
		t.Fatalf("expected cached program at %s: %v", cached, err)
	}

	changed, _, err = installer.Install(lock, nil)
	if err != nil {
		t.Fatalf("second Install error: %v", err)
	}
	if changed {
		t.Fatalf("expected second install to leave the lockfile unchanged")
	}

	writeFile(t, filepath.Join(root, "programs", "extra.json"), helloProgram)
	changed, _, err = installer.Install(lock, nil)
	if err != nil {
		t.Fatalf("third Install error: %v", err)
	}
	if !changed {
		t.Fatalf("expected checksum change after editing the collection")
	}
}

func TestCollectionInstaller_GitCollectionRev(t *testing.T) {
	root := t.TempDir()
	repo := filepath.Join(root, "repo")
	writeFile(t, filepath.Join(repo, "fib.json"), fibProgramJSON(5))
	rev := initGitRepo(t, repo)

	mainDir := filepath.Join(root, "app")
	writeFile(t, filepath.Join(mainDir, "rinha.yml"), `
name: app
collections:
  upstream:
    git: `+repo+`
    rev: `+rev+`
`)
	manifest, err := driver.LoadManifest(filepath.Join(mainDir, "rinha.yml"))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}

	cacheDir := filepath.Join(root, "cache")
	installer := newCollectionInstaller(manifest, cacheDir)
	lock := driver.NewLockfile(manifest.Name, cliToolVersion)

	changed, _, err := installer.Install(lock, nil)
	if err != nil {
		t.Fatalf("Install error: %v", err)
	}
	if !changed || len(lock.Collections) != 1 {
		t.Fatalf("unexpected lock collections: %#v", lock.Collections)
	}
	entry := lock.Collections[0]
	if want := fmt.Sprintf("git+%s@%s", repo, rev); entry.Source != want {
		t.Fatalf("entry.Source = %q, want %q", entry.Source, want)
	}
	if entry.Version != rev {
		t.Fatalf("entry.Version = %q, want %q", entry.Version, rev)
	}
	cached := filepath.Join(cacheDir, "collections", "upstream", sanitizePathSegment(entry.Version), "fib.json")
	if _, err := os.Stat(cached); err != nil {
		t.Fatalf("expected cached git checkout at %s: %v", cached, err)
	}
}

func TestCollectionInstaller_GitCollectionBranch(t *testing.T) {
	root := t.TempDir()
	repo := filepath.Join(root, "repo")
	writeFile(t, filepath.Join(repo, "hello.json"), helloProgram)
	rev := initGitRepo(t, repo)

	mainDir := filepath.Join(root, "app")
	writeFile(t, filepath.Join(mainDir, "rinha.yml"), `
name: app
collections:
  upstream:
    git: `+repo+`
    branch: master
`)
	manifest, err := driver.LoadManifest(filepath.Join(mainDir, "rinha.yml"))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}

	installer := newCollectionInstaller(manifest, filepath.Join(root, "cache"))
	lock := driver.NewLockfile(manifest.Name, cliToolVersion)
	if _, _, err := installer.Install(lock, nil); err != nil {
		t.Fatalf("Install error: %v", err)
	}
	entry, ok := lock.Find("upstream")
	if !ok {
		t.Fatalf("lock missing upstream")
	}
	if want := "master@" + rev; entry.Version != want {
		t.Fatalf("entry.Version = %q, want %q", entry.Version, want)
	}

	next := commitFile(t, repo, "extra.json", helloProgram)

	changed, logs, err := installer.Install(lock, nil)
	if err != nil {
		t.Fatalf("locked Install error: %v", err)
	}
	if changed {
		t.Fatalf("expected locked branch to stay pinned, logs: %v", logs)
	}

	changed, _, err = installer.Install(lock, map[string]struct{}{"upstream": {}})
	if err != nil {
		t.Fatalf("refresh Install error: %v", err)
	}
	if !changed {
		t.Fatalf("expected refresh to move the branch pin")
	}
	entry, _ = lock.Find("upstream")
	if want := "master@" + next; entry.Version != want {
		t.Fatalf("entry.Version = %q, want %q", entry.Version, want)
	}
}

func TestCollectionInstaller_PrunesRemovedCollections(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "programs", "hello.json"), helloProgram)
	writeFile(t, filepath.Join(root, "rinha.yml"), `
name: app
collections:
  local:
    path: programs
`)
	manifest, err := driver.LoadManifest(filepath.Join(root, "rinha.yml"))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	lock := driver.NewLockfile(manifest.Name, cliToolVersion)
	lock.Upsert(&driver.LockedCollection{Name: "stale", Version: "path", Source: "path:gone"})

	installer := newCollectionInstaller(manifest, filepath.Join(root, "cache"))
	changed, logs, err := installer.Install(lock, nil)
	if err != nil {
		t.Fatalf("Install error: %v", err)
	}
	if !changed {
		t.Fatalf("expected lockfile change")
	}
	if _, ok := lock.Find("stale"); ok {
		t.Fatalf("stale collection still locked: %#v", lock.Collections)
	}
	if !strings.Contains(strings.Join(logs, "\n"), "Removed stale from rinha.lock") {
		t.Fatalf("unexpected logs %v", logs)
	}
}

func TestRinhaDepsInstallAndUpdate(t *testing.T) {
	root := t.TempDir()
	repo := filepath.Join(root, "repo")
	writeFile(t, filepath.Join(repo, "hello.json"), helloProgram)
	initGitRepo(t, repo)

	appDir := filepath.Join(root, "app")
	writeFile(t, filepath.Join(appDir, "rinha.yml"), `
name: app
collections:
  upstream:
    git: `+repo+`
    branch: master
`)
	t.Setenv("RINHA_HOME", filepath.Join(root, "home"))
	chdirForTest(t, appDir)

	code, stdout, stderr := captureCLI(t, []string{"deps", "install"})
	if code != 0 {
		t.Fatalf("deps install returned %d\nstdout: %s\nstderr: %s", code, stdout, stderr)
	}
	if !strings.Contains(stdout, "Created rinha.lock") {
		t.Fatalf("expected lockfile creation:\n%s", stdout)
	}
	lock, err := driver.LoadLockfile(filepath.Join(appDir, driver.LockfileName))
	if err != nil {
		t.Fatalf("LoadLockfile: %v", err)
	}
	before, ok := lock.Find("upstream")
	if !ok {
		t.Fatalf("lockfile missing upstream: %#v", lock.Collections)
	}

	code, stdout, _ = captureCLI(t, []string{"deps", "install"})
	if code != 0 || !strings.Contains(stdout, "rinha.lock already up to date") {
		t.Fatalf("second install: code %d\n%s", code, stdout)
	}

	next := commitFile(t, repo, "hello.json", fibProgramJSON(3))
	code, stdout, stderr = captureCLI(t, []string{"deps", "update", "upstream"})
	if code != 0 {
		t.Fatalf("deps update returned %d\nstdout: %s\nstderr: %s", code, stdout, stderr)
	}
	if !strings.Contains(stdout, "Updated rinha.lock") {
		t.Fatalf("expected lockfile update:\n%s", stdout)
	}
	lock, err = driver.LoadLockfile(filepath.Join(appDir, driver.LockfileName))
	if err != nil {
		t.Fatalf("LoadLockfile: %v", err)
	}
	after, _ := lock.Find("upstream")
	if after.Version == before.Version || after.Version != "master@"+next {
		t.Fatalf("version not refreshed: before %q after %q", before.Version, after.Version)
	}
}

func TestRinhaDepsErrors(t *testing.T) {
	dir := t.TempDir()
	chdirForTest(t, dir)

	code, _, stderr := captureCLI(t, []string{"deps", "install"})
	if code != 1 || !strings.Contains(stderr, "unable to locate rinha.yml") {
		t.Fatalf("missing manifest: code %d, stderr %q", code, stderr)
	}

	writeFile(t, filepath.Join(dir, "rinha.yml"), "name: app\n")
	t.Setenv("RINHA_HOME", filepath.Join(dir, "home"))
	code, _, stderr = captureCLI(t, []string{"deps", "update", "nope"})
	if code != 1 || !strings.Contains(stderr, `collection "nope" not declared in manifest`) {
		t.Fatalf("unknown collection: code %d, stderr %q", code, stderr)
	}

	code, _, stderr = captureCLI(t, []string{"deps", "fetch"})
	if code != 1 || !strings.Contains(stderr, `unknown deps subcommand "fetch"`) {
		t.Fatalf("unknown subcommand: code %d, stderr %q", code, stderr)
	}
}

func TestGitPinnedVersion(t *testing.T) {
	cases := []struct {
		descriptor, commit, want string
	}{
		{"", "abc", "abc"},
		{"abc", "abc", "abc"},
		{"v1", "abc", "v1@abc"},
		{"main", "", "main"},
	}
	for _, tc := range cases {
		if got := gitPinnedVersion(tc.descriptor, tc.commit); got != tc.want {
			t.Fatalf("gitPinnedVersion(%q, %q) = %q, want %q", tc.descriptor, tc.commit, got, tc.want)
		}
	}
	if got := sanitizePathSegment("main@abc/def"); got != "main_abc_def" {
		t.Fatalf("sanitizePathSegment = %q", got)
	}
}

func TestDirChecksumIgnoresGitMetadata(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.json"), "{}")
	first, err := dirChecksum(dir)
	if err != nil {
		t.Fatalf("dirChecksum: %v", err)
	}
	writeFile(t, filepath.Join(dir, ".git", "HEAD"), "ref: refs/heads/master\n")
	second, err := dirChecksum(dir)
	if err != nil {
		t.Fatalf("dirChecksum: %v", err)
	}
	if first != second {
		t.Fatalf("checksum changed after writing git metadata")
	}
	writeFile(t, filepath.Join(dir, "a.json"), "[]")
	third, err := dirChecksum(dir)
	if err != nil {
		t.Fatalf("dirChecksum: %v", err)
	}
	if third == first {
		t.Fatalf("checksum did not change after editing content")
	}
}

func initGitRepo(t *testing.T, dir string) string {
	t.Helper()
	if _, err := git.PlainInit(dir, false); err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	return commitAll(t, dir, "init")
}

// commitFile writes rel under the repository and commits it.
func commitFile(t *testing.T, dir, rel, contents string) string {
	t.Helper()
	writeFile(t, filepath.Join(dir, rel), contents)
	return commitAll(t, dir, "update "+rel)
}

func commitAll(t *testing.T, dir, message string) string {
	t.Helper()
	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("PlainOpen: %v", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}
	if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == filepath.Join(dir, ".git") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		_, err = worktree.Add(filepath.ToSlash(rel))
		return err
	}); err != nil {
		t.Fatalf("stage files: %v", err)
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Rinha CLI",
			Email: "rinha@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return hash.String()
}

// chdirForTest changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent of testing.T.Chdir on Go 1.24+).
func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
