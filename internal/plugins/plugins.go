package plugins

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/taskforge-labs/taskforge/internal/extension"
	"github.com/taskforge-labs/taskforge/internal/resolver"
	"github.com/taskforge-labs/taskforge/internal/runtime"
	"github.com/taskforge-labs/taskforge/internal/toolchain"
)

// Extension identifiers.
const (
	Core    = "core"
	Solc    = "solc"
	Waffle  = "waffle"
	Scripts = "scripts"
)

// NodeRunner runs node scripts and npx packages.
type NodeRunner interface {
	runtime.Runtime
	Npx(ctx context.Context, inv runtime.Invocation) (*runtime.Output, error)
}

// Options carries the services the built-in extensions share.
type Options struct {
	// Binary runs solc and the local chain command.
	Binary runtime.Runtime
	// Node runs scripts, the console and mocha.
	Node NodeRunner
	// Toolchain downloads compilers. When nil, compile uses solc.path or
	// the solc found on PATH.
	Toolchain *toolchain.Manager
	// Version is stamped into flattened output.
	Version string
}

func (o Options) withDefaults() Options {
	if o.Binary == nil {
		o.Binary = &runtime.BinaryRuntime{}
	}
	if o.Node == nil {
		o.Node = &runtime.NodeRuntime{}
	}
	if o.Version == "" {
		o.Version = "dev"
	}
	return o
}

// Register adds every built-in extension to reg.
func Register(reg *extension.Registry, opts Options) {
	opts = opts.withDefaults()
	reg.Register(Core, func(*resolver.ResolvedConfig) (*extension.Extension, error) {
		return newCore(opts), nil
	})
	reg.Register(Solc, func(*resolver.ResolvedConfig) (*extension.Extension, error) {
		return newSolc(opts), nil
	})
	reg.Register(Waffle, func(*resolver.ResolvedConfig) (*extension.Extension, error) {
		return newWaffle(opts), nil
	})
	reg.Register(Scripts, func(*resolver.ResolvedConfig) (*extension.Extension, error) {
		return newScripts(opts), nil
	})
}

// NewRegistry returns a registry holding the built-in extensions.
func NewRegistry(opts Options) *extension.Registry {
	reg := extension.NewRegistry()
	Register(reg, opts)
	return reg
}

// descriptions documents the built-in tasks for the help task.
var descriptions = map[string]string{
	"check":   "Check that sources parse and imports resolve",
	"clean":   "Clear the cache and delete all artifacts",
	"compile": "Compile the entire project, building all artifacts",
	"console": "Open an interactive node console",
	"flatten": "Flatten and print contracts and their dependencies",
	"help":    "Print the list of available tasks",
	"node":    "Start a local development chain",
	"run":     "Run a user-defined script after compiling the project",
	"test":    "Run mocha tests",
}

// projectPaths are the project directories, relative to the root.
type projectPaths struct {
	Sources   string
	Tests     string
	Scripts   string
	Artifacts string
	Cache     string
	Build     string
}

func pathsOf(cfg *resolver.ResolvedConfig) projectPaths {
	return projectPaths{
		Sources:   cfg.StringSetting("paths.sources", "contracts"),
		Tests:     cfg.StringSetting("paths.tests", "test"),
		Scripts:   cfg.StringSetting("paths.scripts", "scripts"),
		Artifacts: cfg.StringSetting("paths.artifacts", "artifacts"),
		Cache:     cfg.StringSetting("paths.cache", "cache"),
		Build:     cfg.StringSetting("paths.build", "build"),
	}
}

// discover returns the files under root/dir whose names end in one of exts,
// as slash-separated paths relative to root. A missing dir yields none.
func discover(root, dir string, exts ...string) ([]string, error) {
	base := filepath.Join(root, dir)
	var files []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == base && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			if d.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		for _, ext := range exts {
			if strings.HasSuffix(d.Name(), ext) {
				rel, err := filepath.Rel(root, path)
				if err != nil {
					return err
				}
				files = append(files, filepath.ToSlash(rel))
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// stringList reads a list setting such as solc.remappings.
func stringList(cfg *resolver.ResolvedConfig, key string) []string {
	v, ok := cfg.Setting(key)
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		return strings.Fields(list)
	default:
		return nil
	}
}

// childEnv is the invocation environment exported to scripts and tools.
func childEnv(env *extension.Env) (map[string]string, error) {
	return runtime.ConfigEnv(env.Config)
}
