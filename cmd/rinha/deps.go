package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/ojpbarbosa/rinha-interpreter/pkg/driver"
)

func runDeps(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "rinha deps requires a subcommand (install, update)")
		return 1
	}
	switch args[0] {
	case "install":
		if len(args) > 1 {
			fmt.Fprintf(os.Stderr, "rinha deps install does not take arguments (received %s)\n", strings.Join(args[1:], " "))
			return 1
		}
		return runDepsSync(nil, false)
	case "update":
		return runDepsSync(args[1:], true)
	default:
		fmt.Fprintf(os.Stderr, "unknown deps subcommand %q\n", args[0])
		return 1
	}
}

// runDepsSync installs the manifest collections. With update set, the named
// collections (all of them when names is empty) are re-resolved even when
// the lockfile already pins them.
func runDepsSync(names []string, update bool) int {
	manifest, err := loadManifestFrom(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read manifest: %v\n", err)
		return 1
	}
	if manifest == nil {
		fmt.Fprintf(os.Stderr, "unable to locate %s\n", driver.ManifestFileName)
		return 1
	}
	cacheDir, err := resolveRinhaHome()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve RINHA_HOME: %v\n", err)
		return 1
	}

	fmt.Fprintf(os.Stdout, "Manifest: %s\n", manifest.Path)
	fmt.Fprintf(os.Stdout, "Collections: %d\n", len(manifest.Collections))
	fmt.Fprintf(os.Stdout, "Cache directory: %s\n", cacheDir)

	lockPath := filepath.Join(manifest.Dir(), driver.LockfileName)
	lock, err := driver.LoadLockfile(lockPath)
	lockCreated := false
	switch {
	case err == nil:
		if lock.Root != manifest.Name {
			fmt.Fprintf(os.Stderr, "lockfile root %q does not match manifest name %q\n", lock.Root, manifest.Name)
			return 1
		}
	case errors.Is(err, os.ErrNotExist):
		lock = driver.NewLockfile(manifest.Name, cliToolVersion)
		lockCreated = true
	default:
		fmt.Fprintf(os.Stderr, "failed to read lockfile: %v\n", err)
		return 1
	}
	lock.Path = lockPath
	lock.Tool = cliToolVersion

	refresh := make(map[string]struct{})
	if update {
		for _, name := range names {
			key := sanitizeName(name)
			if _, ok := manifest.Collections[key]; !ok {
				fmt.Fprintf(os.Stderr, "collection %q not declared in manifest\n", name)
				return 1
			}
			refresh[key] = struct{}{}
		}
		if len(names) == 0 {
			for name := range manifest.Collections {
				refresh[name] = struct{}{}
			}
		}
	}

	installer := newCollectionInstaller(manifest, cacheDir)
	changed, logs, err := installer.Install(lock, refresh)
	for _, line := range logs {
		fmt.Fprintln(os.Stdout, line)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to install collections: %v\n", err)
		return 1
	}

	if changed || lockCreated {
		action := "Updated"
		if lockCreated {
			action = "Created"
		}
		if err := driver.WriteLockfile(lock, lockPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write lockfile: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stdout, "%s %s: %s\n", action, driver.LockfileName, lock.Path)
	} else {
		fmt.Fprintf(os.Stdout, "%s already up to date: %s\n", driver.LockfileName, lock.Path)
	}
	return 0
}

type collectionInstaller struct {
	manifest     *driver.Manifest
	manifestRoot string
	cacheDir     string
	logs         []string
	git          *gitFetcher
}

func newCollectionInstaller(manifest *driver.Manifest, cacheDir string) *collectionInstaller {
	return &collectionInstaller{
		manifest:     manifest,
		manifestRoot: manifest.Dir(),
		cacheDir:     cacheDir,
		git:          newGitFetcher(filepath.Join(cacheDir, "collections")),
	}
}

// Install brings every manifest collection into the cache and records it in
// lock. Collections in refresh are fetched again even when locked.
func (c *collectionInstaller) Install(lock *driver.Lockfile, refresh map[string]struct{}) (bool, []string, error) {
	c.logs = c.logs[:0]
	changed := false

	names := make([]string, 0, len(c.manifest.Collections))
	for name := range c.manifest.Collections {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := c.manifest.Collections[name]
		var (
			entry *driver.LockedCollection
			err   error
		)
		if spec.Path != "" {
			entry, err = c.installPath(name, spec)
		} else {
			_, forced := refresh[name]
			entry, err = c.installGit(name, spec, lock, forced)
		}
		if err != nil {
			return changed, c.logs, fmt.Errorf("collection %q: %w", name, err)
		}
		if lock.Upsert(entry) {
			changed = true
		}
	}

	kept := lock.Collections[:0]
	for _, locked := range lock.Collections {
		if _, ok := c.manifest.Collections[locked.Name]; ok {
			kept = append(kept, locked)
			continue
		}
		c.logf("Removed %s from %s", locked.Name, driver.LockfileName)
		changed = true
	}
	lock.Collections = kept
	return changed, c.logs, nil
}

func (c *collectionInstaller) installPath(name string, spec *driver.CollectionSpec) (*driver.LockedCollection, error) {
	src := spec.Path
	if !filepath.IsAbs(src) {
		src = filepath.Join(c.manifestRoot, filepath.FromSlash(src))
	}
	info, err := os.Stat(src)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path %s is not a directory", src)
	}
	dst := filepath.Join(c.cacheDir, "collections", sanitizeName(name), "path")
	if err := copyOrSyncDir(src, dst); err != nil {
		return nil, fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	checksum, err := dirChecksum(src)
	if err != nil {
		return nil, fmt.Errorf("checksum %s: %w", src, err)
	}
	c.logf("Copied %s from %s", name, src)
	return &driver.LockedCollection{
		Name:     sanitizeName(name),
		Version:  "path",
		Source:   "path:" + filepath.ToSlash(spec.Path),
		Checksum: "sha256:" + checksum,
	}, nil
}

func (c *collectionInstaller) installGit(name string, spec *driver.CollectionSpec, lock *driver.Lockfile, forced bool) (*driver.LockedCollection, error) {
	if locked, ok := lock.Find(name); ok && !forced {
		dir := filepath.Join(c.git.cacheDir, sanitizeName(name), sanitizePathSegment(locked.Version))
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			c.logf("Using locked %s %s", name, locked.Version)
			return locked, nil
		}
	}
	entry, err := c.git.Fetch(name, spec)
	if err != nil {
		return nil, err
	}
	c.logf("Fetched %s %s", name, entry.Version)
	return entry, nil
}

func (c *collectionInstaller) logf(format string, args ...any) {
	c.logs = append(c.logs, fmt.Sprintf(format, args...))
}

type gitFetcher struct {
	cacheDir string
}

func newGitFetcher(cacheDir string) *gitFetcher {
	return &gitFetcher{cacheDir: cacheDir}
}

func (g *gitFetcher) Fetch(name string, spec *driver.CollectionSpec) (*driver.LockedCollection, error) {
	url := strings.TrimSpace(spec.Git)
	if url == "" {
		return nil, fmt.Errorf("git URL required")
	}
	baseDir := filepath.Join(g.cacheDir, sanitizeName(name))
	version, commit, err := ensureGitCheckout(baseDir, url, spec)
	if err != nil {
		return nil, err
	}
	checksum, err := dirChecksum(filepath.Join(baseDir, sanitizePathSegment(version)))
	if err != nil {
		return nil, err
	}
	return &driver.LockedCollection{
		Name:     sanitizeName(name),
		Version:  version,
		Source:   fmt.Sprintf("git+%s@%s", url, commit),
		Checksum: "sha256:" + checksum,
	}, nil
}

func ensureGitCheckout(baseDir, url string, spec *driver.CollectionSpec) (string, string, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", "", err
	}
	revision, descriptor := gitRevisionFromSpec(spec)

	if rev := strings.TrimSpace(spec.Rev); rev != "" {
		existing := filepath.Join(baseDir, sanitizePathSegment(rev))
		if _, err := os.Stat(existing); err == nil {
			return rev, rev, nil
		}
	}

	tmpDir, err := os.MkdirTemp(baseDir, "git-fetch-*")
	if err != nil {
		return "", "", err
	}
	if err := os.RemoveAll(tmpDir); err != nil {
		return "", "", err
	}

	repo, err := git.PlainClone(tmpDir, false, &git.CloneOptions{URL: url})
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", "", fmt.Errorf("git clone %s: %w", url, err)
	}
	hash, err := repo.ResolveRevision(revision)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", "", fmt.Errorf("resolve revision %s: %w", revision, err)
	}

	version := gitPinnedVersion(descriptor, hash.String())
	targetDir := filepath.Join(baseDir, sanitizePathSegment(version))
	if _, err := os.Stat(targetDir); err == nil {
		_ = os.RemoveAll(tmpDir)
		return version, hash.String(), nil
	}

	worktree, err := repo.Worktree()
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", "", err
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", "", fmt.Errorf("git checkout %s: %w", revision, err)
	}
	if err := os.Rename(tmpDir, targetDir); err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", "", err
	}
	return version, hash.String(), nil
}

func gitPinnedVersion(descriptor, commit string) string {
	commit = strings.TrimSpace(commit)
	descriptor = strings.TrimSpace(descriptor)
	if commit == "" {
		return descriptor
	}
	if descriptor == "" || descriptor == commit {
		return commit
	}
	return fmt.Sprintf("%s@%s", descriptor, commit)
}

// gitRevisionFromSpec maps rev/tag/branch to a revision; a bare git source
// follows the remote HEAD.
func gitRevisionFromSpec(spec *driver.CollectionSpec) (plumbing.Revision, string) {
	if rev := strings.TrimSpace(spec.Rev); rev != "" {
		return plumbing.Revision(rev), rev
	}
	if tag := strings.TrimSpace(spec.Tag); tag != "" {
		return plumbing.Revision("refs/tags/" + tag), tag
	}
	if branch := strings.TrimSpace(spec.Branch); branch != "" {
		return plumbing.Revision("refs/remotes/origin/" + branch), branch
	}
	return plumbing.Revision("HEAD"), ""
}

func copyOrSyncDir(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	wanted := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		wanted[entry.Name()] = struct{}{}
	}

	// drop files that no longer exist in src
	if dstEntries, err := os.ReadDir(dst); err == nil {
		for _, entry := range dstEntries {
			if _, ok := wanted[entry.Name()]; ok && entry.Name() != ".git" {
				continue
			}
			if err := os.RemoveAll(filepath.Join(dst, entry.Name())); err != nil {
				return err
			}
		}
	}

	for _, entry := range entries {
		if entry.Name() == ".git" {
			continue
		}
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := copyOrSyncDir(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// dirChecksum hashes relative paths and contents of every file under path,
// ignoring git metadata.
func dirChecksum(path string) (string, error) {
	h := sha256.New()
	err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(path, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		h.Write([]byte(filepath.ToSlash(rel)))
		h.Write([]byte{0})
		h.Write(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	return strings.ReplaceAll(name, "-", "_")
}

func sanitizePathSegment(segment string) string {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return "head"
	}
	var b strings.Builder
	for _, r := range segment {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
