package plugins

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/tabwriter"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/taskforge-labs/taskforge/internal/artifacts"
	"github.com/taskforge-labs/taskforge/internal/branding"
	"github.com/taskforge-labs/taskforge/internal/extension"
	"github.com/taskforge-labs/taskforge/internal/flatten"
	"github.com/taskforge-labs/taskforge/internal/resolver"
)

var pragmaRegexp = regexp.MustCompile(`(?m)^\s*pragma\s+solidity\s+([^;]+);`)

func newCore(opts Options) *extension.Extension {
	c := &core{opts: opts}
	return &extension.Extension{
		ID:          Core,
		Description: "Project housekeeping tasks",
		Hooks: map[string]extension.Hook{
			"clean":   c.clean,
			"check":   c.check,
			"flatten": c.flatten,
			"help":    c.help,
		},
	}
}

type core struct {
	opts Options
}

// clean removes artifacts and caches. --global also drops downloaded
// compilers.
func (c *core) clean(_ context.Context, env *extension.Env, args []string) error {
	fs := pflag.NewFlagSet("clean", pflag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	global := fs.Bool("global", false, "also remove downloaded compilers")
	if err := fs.Parse(args); err != nil {
		return err
	}

	paths := pathsOf(env.Config)
	removed, err := artifacts.Clean(env.Root, paths.Artifacts, paths.Cache, paths.Build)
	if err != nil {
		return err
	}
	for _, d := range removed {
		fmt.Fprintf(env.Stdout, "Removed %s\n", d)
	}

	if *global {
		if c.opts.Toolchain == nil {
			return errors.New("no compiler cache is configured")
		}
		if err := c.opts.Toolchain.Clean(); err != nil {
			return err
		}
		fmt.Fprintf(env.Stdout, "Removed %s\n", c.opts.Toolchain.Dir())
	}
	return nil
}

// check verifies every source resolves its imports without cycles and
// declares a solidity pragma. When targetVersion names one exact version,
// each pragma must accept it.
func (c *core) check(_ context.Context, env *extension.Env, _ []string) error {
	paths := pathsOf(env.Config)
	sources, err := discover(env.Root, paths.Sources, ".sol")
	if err != nil {
		return err
	}

	exact, _ := semver.StrictNewVersion(env.Config.TargetVersion())

	var problems []string
	for _, src := range sources {
		if _, err := flatten.BuildTree(env.Root, src); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", src, err))
			continue
		}
		data, err := os.ReadFile(filepath.Join(env.Root, filepath.FromSlash(src)))
		if err != nil {
			return err
		}
		m := pragmaRegexp.FindStringSubmatch(string(data))
		if m == nil {
			problems = append(problems, fmt.Sprintf("%s: missing pragma solidity", src))
			continue
		}
		if exact == nil {
			continue
		}
		constraint, err := semver.NewConstraint(strings.TrimSpace(m[1]))
		if err != nil {
			env.Log().Debug("pragma not checked", zap.String("file", src), zap.Error(err))
			continue
		}
		if !constraint.Check(exact) {
			problems = append(problems, fmt.Sprintf("%s: pragma solidity %s does not accept targetVersion %s", src, strings.TrimSpace(m[1]), exact))
		}
	}

	for _, p := range problems {
		fmt.Fprintln(env.Stderr, p)
	}
	if len(problems) > 0 {
		return fmt.Errorf("check found %d problem(s)", len(problems))
	}
	fmt.Fprintf(env.Stdout, "Checked %d source file(s)\n", len(sources))
	return nil
}

// flatten prints the given files, or every source, with their imports
// inlined.
func (c *core) flatten(_ context.Context, env *extension.Env, args []string) error {
	files := args
	if len(files) == 0 {
		var err error
		files, err = discover(env.Root, pathsOf(env.Config).Sources, ".sol")
		if err != nil {
			return err
		}
	}
	if len(files) == 0 {
		return errors.New("no Solidity source files to flatten")
	}

	header := fmt.Sprintf("Sources flattened with %s %s", branding.CLIName(), c.opts.Version)
	out, err := flatten.Flatten(env.Root, files, header)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(env.Stdout, out)
	return err
}

// help lists the registered tasks.
func (c *core) help(_ context.Context, env *extension.Env, args []string) error {
	var tasks []string
	if env.Tasks != nil {
		tasks = env.Tasks()
	}

	if len(args) > 0 {
		name := args[0]
		for _, t := range tasks {
			if t == name {
				fmt.Fprintf(env.Stdout, "%s: %s\n\nUsage: %s %s [args...]\n", name, describe(name), branding.CLIName(), name)
				return nil
			}
		}
		return fmt.Errorf("no task named %q (run `%s help` for the list)", name, branding.CLIName())
	}

	fmt.Fprintf(env.Stdout, "Usage: %s [global options] <task> [task arguments]\n\nAvailable tasks:\n\n", branding.CLIName())
	w := tabwriter.NewWriter(env.Stdout, 0, 0, 2, ' ', 0)
	for _, t := range tasks {
		fmt.Fprintf(w, "  %s\t%s\n", t, describe(t))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return printNetworks(env.Stdout, env.Config)
}

// printNetworks lists what --network can select, localhost first, with the
// url each override declares.
func printNetworks(out io.Writer, cfg *resolver.ResolvedConfig) error {
	if cfg == nil {
		return nil
	}
	current := cfg.Network()
	if current == "" {
		current = resolver.LocalNetwork
	}
	overrides := cfg.NetworkOverrides()
	names := []string{resolver.LocalNetwork}
	for _, name := range cfg.NetworkNames() {
		if name != resolver.LocalNetwork {
			names = append(names, name)
		}
	}

	fmt.Fprintf(out, "\nNetworks (select with --network):\n\n")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, name := range names {
		marker := " "
		if name == current {
			marker = "*"
		}
		url, _ := overrides[name].Settings["url"].(string)
		fmt.Fprintf(w, "%s %s\t%s\n", marker, name, url)
	}
	return w.Flush()
}

func describe(task string) string {
	if d, ok := descriptions[task]; ok {
		return d
	}
	return "Provided by an extension"
}
