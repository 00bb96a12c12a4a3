package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/taskforge-labs/taskforge/internal/branding"
	"github.com/taskforge-labs/taskforge/internal/resolver"
)

// Extensions searched by Find, in priority order.
var Extensions = []string{".yaml", ".yml", ".json", ".jsonc"}

// ErrNotFound is returned by Find when no project file exists in the
// directory or any of its parents.
var ErrNotFound = errors.New("no project file found")

// File is the on-disk project configuration. Keys other than the ones
// named here are kept verbatim in Settings.
type File struct {
	TargetVersion string             `yaml:"targetVersion,omitempty"`
	Solidity      string             `yaml:"solidity,omitempty"`
	Extensions    []string           `yaml:"extensions,omitempty"`
	Networks      map[string]Network `yaml:"networks,omitempty"`
	Settings      map[string]any     `yaml:",inline"`

	// Path is where the file was read from.
	Path string `yaml:"-"`
}

// Network is one entry under networks:. Unlisted keys (url, chainId,
// accounts, ...) are opaque override values.
type Network struct {
	TargetVersion *string        `yaml:"targetVersion,omitempty"`
	Extensions    []string       `yaml:"extensions,omitempty"`
	Settings      map[string]any `yaml:",inline"`
}

// Root returns the directory containing the project file.
func (f *File) Root() string {
	if f.Path == "" {
		return "."
	}
	return filepath.Dir(f.Path)
}

// Base converts the file into the resolver's base record. The legacy
// "solidity" key is accepted when targetVersion is absent.
func (f *File) Base() (resolver.Base, error) {
	version := f.TargetVersion
	switch {
	case version == "":
		version = f.Solidity
	case f.Solidity != "" && f.Solidity != version:
		return resolver.Base{}, &resolver.ConfigError{
			Field:  "solidity",
			Reason: fmt.Sprintf("conflicts with targetVersion (%q vs %q); set only one", f.Solidity, version),
		}
	}

	base := resolver.Base{
		TargetVersion: version,
		Extensions:    f.Extensions,
		Settings:      f.Settings,
	}
	if len(f.Networks) > 0 {
		base.Networks = make(map[string]resolver.Override, len(f.Networks))
		for name, n := range f.Networks {
			base.Networks[name] = resolver.Override{
				TargetVersion: n.TargetVersion,
				Extensions:    n.Extensions,
				Settings:      n.Settings,
			}
		}
	}
	return base, nil
}

// Find walks from dir up to the filesystem root and returns the first
// project file found.
func Find(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}

	for {
		for _, ext := range Extensions {
			candidate := filepath.Join(abs, branding.ProjectFile()+ext)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("%w in %s or any parent directory (expected %s.yaml)", ErrNotFound, dir, branding.ProjectFile())
		}
		abs = parent
	}
}

// Load reads, validates, and parses the project file at path. Schema
// violations are reported as *resolver.ConfigError naming the first
// offending field.
func Load(path string) (*File, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, path)
}

// Parse validates and decodes project file content. path is used to pick
// the format (by extension) and in error messages.
func Parse(data []byte, path string) (*File, error) {
	data, inst, err := decode(data, path)
	if err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}
	result, err := validate(inst)
	if err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}
	if !result.Valid {
		return nil, issueError(path, result.Issues)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing project file %s: %w", path, err)
	}
	f.Path = path
	return &f, nil
}

func issueError(path string, issues []ValidationIssue) error {
	field := "(root)"
	msg := "invalid project file"
	if len(issues) > 0 {
		if issues[0].Field != "" {
			field = issues[0].Field
		}
		msg = issues[0].Message
	}
	if len(issues) > 1 {
		msg = fmt.Sprintf("%s (and %d more issue(s))", msg, len(issues)-1)
	}
	return &resolver.ConfigError{Field: field, Reason: fmt.Sprintf("%s: %s", path, msg)}
}

// readFile reads the contents of a file at the given path.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return data, nil
}
