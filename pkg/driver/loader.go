package driver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ojpbarbosa/rinha-interpreter/pkg/ast"
)

// DefaultProgramPath is used by `rinha run` when no manifest is present.
const DefaultProgramPath = "var/rinha/source.rinha.json"

// SearchPathEnv lists extra directories searched for relative program paths.
const SearchPathEnv = "RINHA_PATH"

// LoadProgram reads and decodes a JSON AST file.
func LoadProgram(path string) (*ast.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	defer f.Close()
	file, err := ast.DecodeFile(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return file, nil
}

// ResolveProgram finds name relative to the working directory first, then
// under each directory listed in RINHA_PATH.
func ResolveProgram(name string) (string, error) {
	if filepath.IsAbs(name) {
		if err := statFile(name); err != nil {
			return "", fmt.Errorf("load %s: %w", name, err)
		}
		return name, nil
	}
	if err := statFile(name); err == nil {
		return name, nil
	}
	for _, dir := range filepath.SplitList(os.Getenv(SearchPathEnv)) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if err := statFile(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("load %s: %w", name, fs.ErrNotExist)
}

// SourcePath guesses where the source text of a program lives: the file
// named by the program, next to the JSON document.
func SourcePath(programPath string, file *ast.File) string {
	if file == nil || file.Name == "" {
		return ""
	}
	if filepath.IsAbs(file.Name) {
		return file.Name
	}
	return filepath.Join(filepath.Dir(programPath), file.Name)
}

func statFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return errors.New("is a directory")
	}
	return nil
}
