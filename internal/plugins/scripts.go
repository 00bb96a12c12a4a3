package plugins

import (
	"context"
	"errors"
	"slices"

	"go.uber.org/zap"

	"github.com/taskforge-labs/taskforge/internal/extension"
	"github.com/taskforge-labs/taskforge/internal/runtime"
)

// DefaultNodeCommand is the local chain started by the node task.
const DefaultNodeCommand = "anvil"

func newScripts(opts Options) *extension.Extension {
	s := &scripts{opts: opts}
	return &extension.Extension{
		ID:          Scripts,
		Description: "Run deploy scripts, a console and a local chain",
		Hooks: map[string]extension.Hook{
			"run":     s.run,
			"console": s.console,
			"node":    s.chain,
		},
	}
}

type scripts struct {
	opts Options
}

// run compiles when a compile task is registered, then runs the script with
// the selected network exported in the environment.
func (s *scripts) run(ctx context.Context, env *extension.Env, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: run <script> [args...]")
	}
	if env.Tasks != nil && slices.Contains(env.Tasks(), "compile") {
		if err := env.Invoke(ctx, "compile", []string{"--quiet"}); err != nil {
			return err
		}
	}
	env.Log().Debug("running script",
		zap.String("script", args[0]),
		zap.String("network", env.Config.Network()))
	return s.exec(ctx, env, s.opts.Node, runtime.Invocation{Command: args[0], Args: args[1:]}, "node")
}

// console opens the node REPL with the project environment.
func (s *scripts) console(ctx context.Context, env *extension.Env, args []string) error {
	return s.exec(ctx, env, s.opts.Node, runtime.Invocation{Args: args}, "node")
}

// chain starts the local chain command from node.command, passing
// node.args followed by the task arguments. node.runtime selects how the
// command runs: "binary" (default) or "node" for a JavaScript chain script.
func (s *scripts) chain(ctx context.Context, env *extension.Env, args []string) error {
	command := env.Config.StringSetting("node.command", DefaultNodeCommand)
	chainArgs := append(stringList(env.Config, "node.args"), args...)
	rtName := env.Config.StringSetting("node.runtime", runtime.RuntimeBinary)
	rt := runtime.Runtimes{
		runtime.RuntimeBinary: s.opts.Binary,
		runtime.RuntimeNode:   s.opts.Node,
	}.Dispatch(rtName)
	env.Log().Debug("starting local chain",
		zap.String("command", command),
		zap.Strings("args", chainArgs),
		zap.String("runtime", rtName))
	return s.exec(ctx, env, rt, runtime.Invocation{Command: command, Args: chainArgs}, command)
}

func (s *scripts) exec(ctx context.Context, env *extension.Env, rt runtime.Runtime, inv runtime.Invocation, name string) error {
	vars, err := childEnv(env)
	if err != nil {
		return err
	}
	inv.Dir = env.Root
	inv.Env = vars
	inv.Stdin = env.Stdin
	inv.Stdout = env.Stdout
	inv.Stderr = env.Stderr

	out, err := rt.Run(ctx, inv)
	if err != nil {
		return err
	}
	return out.Err(name)
}
