package plugins

import (
	"context"
	"fmt"

	"github.com/taskforge-labs/taskforge/internal/extension"
	"github.com/taskforge-labs/taskforge/internal/runtime"
)

func newWaffle(opts Options) *extension.Extension {
	c := &compileTask{opts: opts, layout: layoutFlat}
	w := &waffle{opts: opts}
	return &extension.Extension{
		ID:          Waffle,
		Description: "Waffle-style flat build artifacts and mocha tests",
		Hooks: map[string]extension.Hook{
			"compile": c.run,
			"test":    w.test,
		},
	}
}

type waffle struct {
	opts Options
}

// test compiles, then runs mocha over the given files or every test file.
func (w *waffle) test(ctx context.Context, env *extension.Env, args []string) error {
	if err := env.Invoke(ctx, "compile", []string{"--quiet"}); err != nil {
		return fmt.Errorf("compiling before tests: %w", err)
	}

	files := args
	if len(files) == 0 {
		var err error
		files, err = discover(env.Root, pathsOf(env.Config).Tests, ".js", ".ts")
		if err != nil {
			return err
		}
	}
	if len(files) == 0 {
		fmt.Fprintln(env.Stdout, "No test files found")
		return nil
	}

	vars, err := childEnv(env)
	if err != nil {
		return err
	}
	mochaArgs := []string{"--timeout", fmt.Sprint(env.Config.IntSetting("mocha.timeout", 20000))}
	out, err := w.opts.Node.Npx(ctx, runtime.Invocation{
		Command: "mocha",
		Args:    append(mochaArgs, files...),
		Dir:     env.Root,
		Env:     vars,
		Stdin:   env.Stdin,
		Stdout:  env.Stdout,
		Stderr:  env.Stderr,
	})
	if err != nil {
		return err
	}
	return out.Err("mocha")
}
