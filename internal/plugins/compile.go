package plugins

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/taskforge-labs/taskforge/internal/artifacts"
	"github.com/taskforge-labs/taskforge/internal/compiler"
	"github.com/taskforge-labs/taskforge/internal/extension"
)

type layout int

const (
	layoutNested layout = iota
	layoutFlat
)

func (l layout) String() string {
	if l == layoutFlat {
		return "flat"
	}
	return "nested"
}

func newSolc(opts Options) *extension.Extension {
	c := &compileTask{opts: opts, layout: layoutNested}
	return &extension.Extension{
		ID:          Solc,
		Description: "Compiles sources with a native solc build",
		Hooks: map[string]extension.Hook{
			"compile": c.run,
		},
	}
}

// compileTask implements the compile task for both artifact layouts.
type compileTask struct {
	opts   Options
	layout layout
}

func (c *compileTask) run(ctx context.Context, env *extension.Env, args []string) error {
	fs := pflag.NewFlagSet("compile", pflag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	force := fs.Bool("force", false, "recompile even when no source changed")
	quiet := fs.Bool("quiet", false, "do not print a summary")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := env.Log()
	paths := pathsOf(env.Config)

	sources, err := discover(env.Root, paths.Sources, ".sol")
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		if !*quiet {
			fmt.Fprintf(env.Stdout, "No Solidity source files found in %s\n", paths.Sources)
		}
		return nil
	}

	solcPath, err := c.locateSolc(ctx, env)
	if err != nil {
		return err
	}
	info, err := compiler.Version(ctx, c.opts.Binary, solcPath)
	if err != nil {
		return fmt.Errorf("reading solc version: %w", err)
	}
	if err := compiler.CheckVersion(env.Config.Constraint(), info.Version); err != nil {
		return err
	}
	log.Debug("compiler selected", zap.String("path", info.Path), zap.String("version", info.Full))

	optimize := env.Config.BoolSetting("optimizer.enabled", false)
	runs := env.Config.IntSetting("optimizer.runs", 200)
	key := info.Full + "|" + c.layout.String() + "|" + strconv.FormatBool(optimize) + "|" + strconv.Itoa(runs)

	cache, err := compiler.LoadCache(filepath.Join(env.Root, paths.Cache, compiler.CacheFileName))
	if err != nil {
		return err
	}
	changed, err := cache.Changed(env.Root, sources, key)
	if err != nil {
		return err
	}
	if len(changed) == 0 && !*force {
		if !*quiet {
			fmt.Fprintln(env.Stdout, "Nothing to compile")
		}
		return nil
	}
	log.Debug("sources changed", zap.Strings("files", changed))

	out, err := compiler.Compile(ctx, c.opts.Binary, compiler.Options{
		Solc:       info.Path,
		Root:       env.Root,
		Sources:    sources,
		Remappings: stringList(env.Config, "solc.remappings"),
		Optimize:   optimize,
		Runs:       runs,
		Stderr:     env.Stderr,
	})
	if err != nil {
		return err
	}

	var written []string
	switch c.layout {
	case layoutFlat:
		written, err = artifacts.WriteFlat(filepath.Join(env.Root, paths.Build), out.Contracts)
	default:
		written, err = artifacts.WriteNested(filepath.Join(env.Root, paths.Artifacts), out.Contracts)
	}
	if err != nil {
		return err
	}
	log.Debug("artifacts written", zap.Int("count", len(written)))

	if err := cache.Update(env.Root, sources, key); err != nil {
		return err
	}
	if err := cache.Save(); err != nil {
		return err
	}

	if !*quiet {
		fmt.Fprintf(env.Stdout, "Compiled %d Solidity file(s) with solc %s\n", len(sources), info.Version)
	}
	return nil
}

// locateSolc picks the compiler: the solc.path setting, then a managed
// build matching targetVersion, then whatever solc is on PATH.
func (c *compileTask) locateSolc(ctx context.Context, env *extension.Env) (string, error) {
	if p := env.Config.StringSetting("solc.path", ""); p != "" {
		if filepath.IsAbs(p) || filepath.Base(p) == p {
			return p, nil
		}
		return filepath.Join(env.Root, p), nil
	}

	var managedErr error
	if c.opts.Toolchain != nil {
		installed, err := c.opts.Toolchain.Resolve(ctx, env.Config.Constraint())
		if err == nil {
			return installed.Path, nil
		}
		managedErr = err
		env.Log().Warn("no managed compiler available", zap.Error(err))
	}

	if p, err := exec.LookPath("solc"); err == nil {
		return p, nil
	}
	if managedErr != nil {
		return "", fmt.Errorf("no solc satisfying %s: %w", env.Config.TargetVersion(), managedErr)
	}
	return "", errors.New("solc not found: install one with `compilers install` or set solc.path")
}
