package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"time"

	"github.com/ojpbarbosa/rinha-interpreter/pkg/ast"
	"github.com/ojpbarbosa/rinha-interpreter/pkg/driver"
	"github.com/ojpbarbosa/rinha-interpreter/pkg/interpreter"
)

const cliToolVersion = "rinha 0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		return runEntry(nil)
	}

	switch args[0] {
	case "--help", "-h", "help":
		printUsage(os.Stdout)
		return 0
	case "--version", "-V", "version":
		fmt.Fprintln(os.Stdout, cliToolVersion)
		return 0
	case "run":
		return runEntry(args[1:])
	case "batch":
		return runBatch(args[1:])
	case "repl":
		return runRepl(args[1:])
	case "deps":
		return runDeps(args[1:])
	default:
		return runEntry(args)
	}
}

// entryPoint is a resolved program plus the settings its target asked for.
type entryPoint struct {
	label      string
	path       string
	timeout    time.Duration
	expectExit int
}

func runEntry(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	timeout := fs.Duration("timeout", 0, "abandon evaluation after this long (0 = no limit)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 1 {
		fmt.Fprintf(os.Stderr, "unexpected arguments: %s\n", strings.Join(fs.Args()[1:], " "))
		return 1
	}

	var candidate string
	if fs.NArg() == 1 {
		candidate = fs.Arg(0)
	}
	manifest, err := loadManifestFrom(".")
	if err != nil {
		if candidate == "" || !looksLikePathCandidate(candidate) {
			fmt.Fprintf(os.Stderr, "failed to load manifest: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "warning: unable to load manifest (%v); falling back to direct file execution\n", err)
		manifest = nil
	}

	entry, err := resolveEntry(manifest, candidate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if *timeout > 0 {
		entry.timeout = *timeout
	}
	return executeEntry(entry)
}

// resolveEntry picks the program to run: a manifest target, a file path, or
// the default location when neither a manifest nor an argument is given.
func resolveEntry(manifest *driver.Manifest, candidate string) (entryPoint, error) {
	if candidate == "" {
		if manifest == nil {
			return entryPoint{label: driver.DefaultProgramPath, path: driver.DefaultProgramPath}, nil
		}
		target, err := manifest.DefaultTarget()
		if err != nil {
			return entryPoint{}, fmt.Errorf("manifest error: %w", err)
		}
		return targetEntry(manifest, target), nil
	}
	if manifest != nil {
		if target, ok := manifest.FindTarget(candidate); ok {
			return targetEntry(manifest, target), nil
		}
	}
	path, err := driver.ResolveProgram(candidate)
	if err != nil {
		return entryPoint{}, err
	}
	return entryPoint{label: candidate, path: path}, nil
}

func targetEntry(manifest *driver.Manifest, target *driver.TargetSpec) entryPoint {
	return entryPoint{
		label:      target.OriginalName,
		path:       manifest.MainPath(target),
		timeout:    target.Timeout,
		expectExit: target.ExpectExit,
	}
}

func executeEntry(entry entryPoint) int {
	file, err := driver.LoadProgram(entry.path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	if entry.timeout > 0 {
		// An abandoned run may keep printing, so output is not buffered here.
		interp := interpreter.New(interpreter.WithStdout(os.Stdout), interpreter.WithStderr(os.Stderr))
		ctx, cancel := context.WithTimeout(context.Background(), entry.timeout)
		defer cancel()
		_, err = interp.EvaluateContext(ctx, nil, file)
	} else {
		out := bufio.NewWriter(os.Stdout)
		interp := interpreter.New(interpreter.WithStdout(out), interpreter.WithStderr(os.Stderr))
		_, err = interp.EvaluateFile(file)
		out.Flush()
	}
	if err != nil {
		reportRunError(os.Stderr, entry, file, err)
		return 1
	}
	return 0
}

func reportRunError(w io.Writer, entry entryPoint, file *ast.File, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		fmt.Fprintf(w, "%s: evaluation timed out after %s\n", entry.label, entry.timeout)
		return
	}
	fmt.Fprintln(w, strings.TrimRight(interpreter.DescribeError(err, readSource(entry.path, file)), "\n"))
}

// readSource returns the program's source text when it sits next to the
// JSON document, or nil.
func readSource(programPath string, file *ast.File) []byte {
	srcPath := driver.SourcePath(programPath, file)
	if srcPath == "" || filepath.Clean(srcPath) == filepath.Clean(programPath) {
		return nil
	}
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return nil
	}
	return data
}

func runBatch(args []string) int {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	jobs := fs.Int("j", 0, "programs evaluated at once (0 = manifest jobs or CPU count)")
	timeout := fs.Duration("timeout", 0, "per-program evaluation limit (0 = target setting)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	manifest, err := loadManifestFrom(".")
	if err != nil && fs.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "failed to load manifest: %v\n", err)
		return 1
	}

	var entries []entryPoint
	if fs.NArg() == 0 {
		if manifest == nil {
			fmt.Fprintln(os.Stderr, "rinha batch requires program files or a rinha.yml with targets")
			return 1
		}
		for _, name := range manifest.TargetOrder {
			entries = append(entries, targetEntry(manifest, manifest.Targets[name]))
		}
		if len(entries) == 0 {
			fmt.Fprintf(os.Stderr, "manifest error: %v\n", driver.ErrNoTargets)
			return 1
		}
	} else {
		for _, arg := range fs.Args() {
			entry, err := resolveEntry(manifest, arg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				return 1
			}
			entries = append(entries, entry)
		}
	}

	limit := *jobs
	if limit <= 0 && manifest != nil {
		limit = manifest.Jobs
	}
	if limit <= 0 {
		limit = goruntime.NumCPU()
	}

	programs := make([]interpreter.Program, 0, len(entries))
	files := make([]*ast.File, 0, len(entries))
	for _, entry := range entries {
		file, err := driver.LoadProgram(entry.path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		if *timeout > 0 {
			entry.timeout = *timeout
		}
		files = append(files, file)
		programs = append(programs, interpreter.Program{File: file, Timeout: entry.timeout})
	}

	results := interpreter.RunPrograms(context.Background(), programs, limit)
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	failed := 0
	for idx, res := range results {
		entry := entries[idx]
		code := 0
		if res.Err != nil {
			code = 1
		}
		status := "ok"
		if code != entry.expectExit {
			failed++
			status = "FAIL"
		}
		fmt.Fprintf(out, "== %s (%s, %s)\n", entry.label, status, res.Duration.Round(time.Millisecond))
		io.WriteString(out, res.Output)
		if res.Err != nil {
			entry.timeout = programs[idx].Timeout
			reportRunError(out, entry, files[idx], res.Err)
		}
	}
	fmt.Fprintf(out, "%d programs, %d failed\n", len(results), failed)
	if failed > 0 {
		return 1
	}
	return 0
}

func loadManifestFrom(start string) (*driver.Manifest, error) {
	manifestPath, ok := driver.FindManifest(start)
	if !ok {
		return nil, nil
	}
	return driver.LoadManifest(manifestPath)
}

func looksLikePathCandidate(arg string) bool {
	if arg == "" {
		return false
	}
	if strings.Contains(arg, "/") || strings.Contains(arg, "\\") {
		return true
	}
	if filepath.Ext(arg) == ".json" {
		return true
	}
	return strings.HasPrefix(arg, ".")
}

func resolveRinhaHome() (string, error) {
	if home := strings.TrimSpace(os.Getenv("RINHA_HOME")); home != "" {
		abs, err := filepath.Abs(home)
		if err != nil {
			return "", fmt.Errorf("resolve RINHA_HOME %q: %w", home, err)
		}
		return abs, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}
	return filepath.Join(userHome, ".rinha"), nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  rinha run [--timeout d] [target|file.json]")
	fmt.Fprintln(w, "  rinha <file.json>")
	fmt.Fprintln(w, "  rinha batch [-j N] [--timeout d] [target|file.json ...]")
	fmt.Fprintln(w, "  rinha repl")
	fmt.Fprintln(w, "  rinha deps install")
	fmt.Fprintln(w, "  rinha deps update [collection ...]")
	fmt.Fprintln(w, "  rinha version")
}
