package driver

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LockfileName sits next to rinha.yml.
const LockfileName = "rinha.lock"

// Lockfile models the rinha.lock contents.
type Lockfile struct {
	Path        string
	Root        string
	Generated   string
	Tool        string
	Collections []*LockedCollection
}

// LockedCollection records the resolved state of one fetched collection.
type LockedCollection struct {
	Name     string
	Version  string
	Source   string
	Checksum string
}

// NewLockfile constructs a lockfile with metadata seeded for the provided root.
func NewLockfile(root, tool string) *Lockfile {
	return &Lockfile{
		Root:        sanitizeSegment(root),
		Generated:   time.Now().UTC().Format(time.RFC3339),
		Tool:        strings.TrimSpace(tool),
		Collections: []*LockedCollection{},
	}
}

// LoadLockfile parses rinha.lock from disk.
func LoadLockfile(path string) (*Lockfile, error) {
	if path == "" {
		return nil, fmt.Errorf("lockfile: empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("lockfile: resolve %s: %w", path, err)
	}
	file, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var raw lockfileDisk
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("lockfile: parse %s: %w", abs, err)
	}

	lock := raw.toLockfile()
	lock.Path = abs
	return lock, nil
}

// WriteLockfile serialises the lockfile back to disk.
func WriteLockfile(lock *Lockfile, path string) error {
	if lock == nil {
		return fmt.Errorf("lockfile: nil lockfile")
	}
	if path == "" {
		if lock.Path == "" {
			return fmt.Errorf("lockfile: missing path")
		}
		path = lock.Path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("lockfile: resolve %s: %w", path, err)
	}

	if lock.Generated == "" {
		lock.Generated = time.Now().UTC().Format(time.RFC3339)
	}
	lock.Path = abs
	lock.normalize()

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(lock.toDisk()); err != nil {
		return fmt.Errorf("lockfile: marshal %s: %w", abs, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("lockfile: encoder close: %w", err)
	}
	if err := os.WriteFile(abs, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("lockfile: write %s: %w", abs, err)
	}
	return nil
}

// Find returns the locked entry for name.
func (l *Lockfile) Find(name string) (*LockedCollection, bool) {
	if l == nil {
		return nil, false
	}
	name = sanitizeSegment(name)
	for _, c := range l.Collections {
		if c != nil && c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Upsert replaces the entry with the same name or appends a new one.
// It reports whether the lockfile changed.
func (l *Lockfile) Upsert(entry *LockedCollection) bool {
	if entry == nil {
		return false
	}
	entry.Name = sanitizeSegment(entry.Name)
	for idx, c := range l.Collections {
		if c == nil || c.Name != entry.Name {
			continue
		}
		if *c == *entry {
			return false
		}
		l.Collections[idx] = entry
		return true
	}
	l.Collections = append(l.Collections, entry)
	return true
}

func (l *Lockfile) normalize() {
	if l == nil {
		return
	}
	l.Root = sanitizeSegment(l.Root)
	l.Tool = strings.TrimSpace(l.Tool)
	kept := l.Collections[:0]
	for _, c := range l.Collections {
		if c == nil {
			continue
		}
		c.Name = sanitizeSegment(c.Name)
		c.Version = strings.TrimSpace(c.Version)
		c.Source = strings.TrimSpace(c.Source)
		c.Checksum = strings.TrimSpace(c.Checksum)
		kept = append(kept, c)
	}
	l.Collections = kept
	sort.SliceStable(l.Collections, func(i, j int) bool {
		return l.Collections[i].Name < l.Collections[j].Name
	})
}

func (l *Lockfile) toDisk() lockfileDisk {
	entries := make([]lockfileCollection, 0, len(l.Collections))
	for _, c := range l.Collections {
		entries = append(entries, lockfileCollection{
			Name:     c.Name,
			Version:  c.Version,
			Source:   c.Source,
			Checksum: c.Checksum,
		})
	}
	return lockfileDisk{
		Root:        l.Root,
		Generated:   l.Generated,
		Tool:        l.Tool,
		Collections: entries,
	}
}

type lockfileDisk struct {
	Root        string               `yaml:"root"`
	Generated   string               `yaml:"generated"`
	Tool        string               `yaml:"tool"`
	Collections []lockfileCollection `yaml:"collections"`
}

type lockfileCollection struct {
	Name     string `yaml:"name"`
	Version  string `yaml:"version"`
	Source   string `yaml:"source"`
	Checksum string `yaml:"checksum"`
}

func (d lockfileDisk) toLockfile() *Lockfile {
	lock := &Lockfile{
		Root:        d.Root,
		Generated:   strings.TrimSpace(d.Generated),
		Tool:        d.Tool,
		Collections: make([]*LockedCollection, 0, len(d.Collections)),
	}
	for _, c := range d.Collections {
		lock.Collections = append(lock.Collections, &LockedCollection{
			Name:     c.Name,
			Version:  c.Version,
			Source:   c.Source,
			Checksum: c.Checksum,
		})
	}
	lock.normalize()
	return lock
}
