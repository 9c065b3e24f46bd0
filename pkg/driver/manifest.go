package driver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestFileName is the project manifest looked up by the CLI.
const ManifestFileName = "rinha.yml"

// Manifest represents the parsed contents of rinha.yml.
type Manifest struct {
	Path        string
	Name        string
	Version     string
	Jobs        int
	Targets     map[string]*TargetSpec
	TargetOrder []string
	Collections map[string]*CollectionSpec

	targetEntries []manifestTargetEntry
}

// TargetSpec names one runnable program.
type TargetSpec struct {
	Name         string
	OriginalName string
	Main         string
	Timeout      time.Duration
	ExpectExit   int

	rawTimeout string
}

type manifestTargetEntry struct {
	sanitized string
	spec      *TargetSpec
}

// CollectionSpec describes a corpus of programs fetched by `rinha deps`.
type CollectionSpec struct {
	Git    string
	Rev    string
	Tag    string
	Branch string
	Path   string
}

// ValidationError aggregates manifest validation failures.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "manifest: invalid configuration"
	}
	var b strings.Builder
	b.WriteString("manifest validation failed:")
	for _, issue := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	return b.String()
}

// LoadManifest parses rinha.yml from disk, returning a validated manifest.
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		return nil, fmt.Errorf("manifest: empty path")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: resolve %s: %w", path, err)
	}
	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", absPath, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	var raw manifestFile
	if err := decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("manifest: %s is empty", absPath)
		}
		return nil, fmt.Errorf("manifest: parse %s: %w", absPath, err)
	}

	manifest := raw.toManifest(absPath)
	if err := manifest.validate(); err != nil {
		return nil, err
	}
	return manifest, nil
}

// FindManifest walks from dir towards the filesystem root and returns the
// first rinha.yml found.
func FindManifest(dir string) (string, bool) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(abs, ManifestFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", false
		}
		abs = parent
	}
}

// Dir is the directory holding the manifest; target mains resolve against it.
func (m *Manifest) Dir() string {
	return filepath.Dir(m.Path)
}

// MainPath returns the absolute program path for target.
func (m *Manifest) MainPath(target *TargetSpec) string {
	if filepath.IsAbs(target.Main) {
		return target.Main
	}
	return filepath.Join(m.Dir(), filepath.FromSlash(target.Main))
}

func (m *Manifest) validate() error {
	var errs ValidationError
	if m.Name == "" {
		errs.Issues = append(errs.Issues, "name must be provided")
	}
	if m.Jobs < 0 {
		errs.Issues = append(errs.Issues, fmt.Sprintf("jobs must not be negative, got %d", m.Jobs))
	}

	targetNames := make(map[string]string, len(m.targetEntries))
	for _, entry := range m.targetEntries {
		target := entry.spec
		if target == nil {
			continue
		}
		if other, exists := targetNames[entry.sanitized]; exists {
			errs.Issues = append(errs.Issues, fmt.Sprintf("targets %q and %q collide after sanitization", other, target.OriginalName))
		} else {
			targetNames[entry.sanitized] = target.OriginalName
		}
		if target.Main == "" {
			errs.Issues = append(errs.Issues, fmt.Sprintf("target %q requires an entrypoint path", target.OriginalName))
		}
		if target.rawTimeout != "" {
			d, err := time.ParseDuration(target.rawTimeout)
			switch {
			case err != nil:
				errs.Issues = append(errs.Issues, fmt.Sprintf("target %q has invalid timeout %q", target.OriginalName, target.rawTimeout))
			case d < 0:
				errs.Issues = append(errs.Issues, fmt.Sprintf("target %q timeout must not be negative", target.OriginalName))
			default:
				target.Timeout = d
			}
		}
		if target.ExpectExit < 0 || target.ExpectExit > 255 {
			errs.Issues = append(errs.Issues, fmt.Sprintf("target %q expect_exit must be between 0 and 255", target.OriginalName))
		}
	}

	for _, name := range sortedKeys(m.Collections) {
		for _, issue := range m.Collections[name].validate() {
			errs.Issues = append(errs.Issues, fmt.Sprintf("collections.%s: %s", name, issue))
		}
	}

	if len(errs.Issues) > 0 {
		return &errs
	}
	return nil
}

// ErrNoTargets is returned when a manifest declares no targets.
var ErrNoTargets = errors.New("manifest: no targets defined")

// DefaultTarget returns the first target in manifest order.
func (m *Manifest) DefaultTarget() (*TargetSpec, error) {
	if m == nil {
		return nil, ErrNoTargets
	}
	for _, entry := range m.targetEntries {
		if entry.spec != nil {
			return entry.spec, nil
		}
	}
	return nil, ErrNoTargets
}

// FindTarget looks up a target by sanitized or original name.
func (m *Manifest) FindTarget(name string) (*TargetSpec, bool) {
	if m == nil {
		return nil, false
	}
	key := sanitizeSegment(name)
	if key != "" {
		if target, ok := m.Targets[key]; ok && target != nil {
			return target, true
		}
	}
	for _, entry := range m.targetEntries {
		if entry.spec == nil {
			continue
		}
		if strings.EqualFold(entry.spec.OriginalName, strings.TrimSpace(name)) {
			return entry.spec, true
		}
	}
	return nil, false
}

// Ref returns the revision selector of a git collection.
func (c *CollectionSpec) Ref() string {
	switch {
	case c.Rev != "":
		return c.Rev
	case c.Tag != "":
		return c.Tag
	case c.Branch != "":
		return c.Branch
	default:
		return ""
	}
}

func (c *CollectionSpec) validate() []string {
	var errs []string
	if c == nil {
		return []string{"must specify git or path"}
	}
	if c.Git == "" && c.Path == "" {
		errs = append(errs, "must specify git or path")
	}
	if c.Git != "" && c.Path != "" {
		errs = append(errs, "git and path sources are mutually exclusive")
	}
	selectors := 0
	for _, s := range []string{c.Rev, c.Tag, c.Branch} {
		if s != "" {
			selectors++
		}
	}
	if selectors > 1 {
		errs = append(errs, "only one of rev, tag or branch may be set")
	}
	if selectors > 0 && c.Git == "" {
		errs = append(errs, "rev, tag and branch apply only to git sources")
	}
	return errs
}

type manifestFile struct {
	Name        string        `yaml:"name"`
	Version     string        `yaml:"version"`
	Jobs        int           `yaml:"jobs"`
	Targets     targetMap     `yaml:"targets"`
	Collections collectionMap `yaml:"collections"`
}

type targetYAML struct {
	Main       string `yaml:"main"`
	Timeout    string `yaml:"timeout"`
	ExpectExit int    `yaml:"expect_exit"`
}

type targetMap struct {
	items []targetMapEntry
}

type targetMapEntry struct {
	name string
	spec *targetYAML
}

func (tm *targetMap) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == 0 || (value.Kind == yaml.ScalarNode && value.Tag == "!!null") {
		tm.items = nil
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("manifest: targets must be a mapping")
	}
	items := make([]targetMapEntry, 0, len(value.Content)/2)
	for i := 0; i < len(value.Content); i += 2 {
		keyNode := value.Content[i]
		valueNode := value.Content[i+1]

		var key string
		if err := keyNode.Decode(&key); err != nil {
			return err
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("manifest: targets must not use empty keys")
		}
		entry := new(targetYAML)
		switch valueNode.Kind {
		case yaml.ScalarNode:
			// `name: path/to/program.json` shorthand
			if valueNode.Tag != "!!null" {
				entry.Main = valueNode.Value
			}
		default:
			if err := valueNode.Decode(entry); err != nil {
				return fmt.Errorf("manifest: target %q: %w", key, err)
			}
		}
		items = append(items, targetMapEntry{name: key, spec: entry})
	}
	tm.items = items
	return nil
}

type collectionMap map[string]*CollectionSpec

func (cm *collectionMap) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == 0 || (value.Kind == yaml.ScalarNode && value.Tag == "!!null") {
		*cm = make(collectionMap)
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("manifest: collections must be a mapping")
	}
	result := make(collectionMap, len(value.Content)/2)
	for i := 0; i < len(value.Content); i += 2 {
		var key string
		if err := value.Content[i].Decode(&key); err != nil {
			return err
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("manifest: collection names must be non-empty")
		}
		var raw struct {
			Git    string `yaml:"git"`
			Rev    string `yaml:"rev"`
			Tag    string `yaml:"tag"`
			Branch string `yaml:"branch"`
			Path   string `yaml:"path"`
		}
		if err := value.Content[i+1].Decode(&raw); err != nil {
			return fmt.Errorf("manifest: collection %q: %w", key, err)
		}
		result[key] = &CollectionSpec{
			Git:    strings.TrimSpace(raw.Git),
			Rev:    strings.TrimSpace(raw.Rev),
			Tag:    strings.TrimSpace(raw.Tag),
			Branch: strings.TrimSpace(raw.Branch),
			Path:   strings.TrimSpace(raw.Path),
		}
	}
	*cm = result
	return nil
}

func (mf manifestFile) toManifest(path string) *Manifest {
	targetCapacity := len(mf.Targets.items)
	result := &Manifest{
		Path:          path,
		Name:          sanitizeSegment(mf.Name),
		Version:       strings.TrimSpace(mf.Version),
		Jobs:          mf.Jobs,
		Targets:       make(map[string]*TargetSpec, targetCapacity),
		TargetOrder:   make([]string, 0, targetCapacity),
		Collections:   make(map[string]*CollectionSpec, len(mf.Collections)),
		targetEntries: make([]manifestTargetEntry, 0, targetCapacity),
	}
	for name, spec := range mf.Collections {
		result.Collections[sanitizeSegment(name)] = spec
	}

	for _, item := range mf.Targets.items {
		if item.spec == nil {
			continue
		}
		original := strings.TrimSpace(item.name)
		sanitized := sanitizeSegment(original)
		spec := &TargetSpec{
			Name:         sanitized,
			OriginalName: original,
			Main:         strings.TrimSpace(item.spec.Main),
			ExpectExit:   item.spec.ExpectExit,
			rawTimeout:   strings.TrimSpace(item.spec.Timeout),
		}
		if _, exists := result.Targets[sanitized]; !exists {
			result.Targets[sanitized] = spec
			result.TargetOrder = append(result.TargetOrder, sanitized)
		}
		result.targetEntries = append(result.targetEntries, manifestTargetEntry{
			sanitized: sanitized,
			spec:      spec,
		})
	}
	return result
}
