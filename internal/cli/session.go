package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/taskforge-labs/taskforge/internal/config"
	"github.com/taskforge-labs/taskforge/internal/extension"
	"github.com/taskforge-labs/taskforge/internal/logging"
	"github.com/taskforge-labs/taskforge/internal/plugins"
	"github.com/taskforge-labs/taskforge/internal/project"
	"github.com/taskforge-labs/taskforge/internal/resolver"
	"github.com/taskforge-labs/taskforge/internal/task"
	"github.com/taskforge-labs/taskforge/internal/toolchain"
)

// sessionOptions are the inputs of the resolve, load and run pipeline.
type sessionOptions struct {
	ConfigPath string // empty: search upward from Dir
	Dir        string
	Network    string
	Sets       []string
	Registry   *extension.Registry
	Logger     *zap.Logger
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

// session is a project resolved for one network with its extensions loaded.
type session struct {
	file   *project.File
	cfg    *resolver.ResolvedConfig
	hooks  *extension.HookSet
	runner *task.Runner
}

// openSession reads the project file, resolves it for the selected network
// with --set values on top, and loads the configured extensions.
func openSession(ctx context.Context, opts sessionOptions) (*session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	path := opts.ConfigPath
	if path == "" {
		found, err := project.Find(opts.Dir)
		if err != nil {
			if errors.Is(err, project.ErrNotFound) {
				return nil, &resolver.ConfigError{Field: "config", Reason: "cannot locate the project file", Err: err}
			}
			return nil, err
		}
		path = found
	}
	file, err := project.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &resolver.ConfigError{Field: "config", Reason: "cannot read the project file", Err: err}
	}
	if err != nil {
		return nil, err
	}
	base, err := file.Base()
	if err != nil {
		return nil, err
	}

	network := opts.Network
	if network == "" {
		network = resolver.LocalNetwork
	}

	var overrides map[string]resolver.Override
	if len(opts.Sets) > 0 {
		// Resolve once without --set so dotted keys can extend the
		// effective nested maps instead of replacing them.
		current, err := resolver.Resolve(base, nil, network)
		if err != nil {
			return nil, err
		}
		o, err := parseSets(current, opts.Sets)
		if err != nil {
			return nil, err
		}
		overrides = map[string]resolver.Override{network: o}
	}

	cfg, err := resolver.Resolve(base, overrides, network)
	if err != nil {
		return nil, err
	}
	logger.Debug("configuration resolved",
		zap.String("project", path),
		zap.String("network", cfg.Network()),
		zap.String("target_version", cfg.TargetVersion()),
		zap.Strings("extensions", cfg.Extensions()))

	hooks, err := extension.Load(ctx, opts.Registry, cfg, logger)
	if err != nil {
		return nil, err
	}

	runOpts := []task.Option{
		task.WithRoot(file.Root()),
		task.WithLogger(logger),
	}
	if opts.Stdout != nil || opts.Stderr != nil {
		runOpts = append(runOpts, task.WithOutput(orDefault(opts.Stdout, os.Stdout), orDefault(opts.Stderr, os.Stderr)))
	}
	if opts.Stdin != nil {
		runOpts = append(runOpts, task.WithStdin(opts.Stdin))
	}

	return &session{
		file:   file,
		cfg:    cfg,
		hooks:  hooks,
		runner: task.NewRunner(hooks, cfg, runOpts...),
	}, nil
}

// run executes one task. A failed hook comes back as its
// *task.TaskExecutionError so the exit code survives.
func (s *session) run(ctx context.Context, name string, args []string) error {
	res, err := s.runner.Run(ctx, name, args)
	if err != nil {
		return err
	}
	if !res.Succeeded {
		return res.Err
	}
	return nil
}

// parseSets turns key=value pairs into a network override. Values are YAML
// scalars or flow collections, so "runs=500" is an int and "enabled=true" a
// bool. Dotted keys write into a copy of the current nested map.
func parseSets(current *resolver.ResolvedConfig, sets []string) (resolver.Override, error) {
	var o resolver.Override
	for _, kv := range sets {
		key, raw, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return o, &resolver.ConfigError{Field: "set", Reason: fmt.Sprintf("%q is not key=value", kv)}
		}

		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return o, &resolver.ConfigError{Field: key, Reason: fmt.Sprintf("cannot parse value %q", raw), Err: err}
		}
		if value == nil {
			value = raw
		}

		switch key {
		case "targetVersion", "solidity":
			v := strings.TrimSpace(raw)
			o.TargetVersion = &v
			continue
		case "extensions":
			o.Extensions = splitList(raw)
			continue
		}

		if o.Settings == nil {
			o.Settings = make(map[string]any)
		}
		parts := strings.Split(key, ".")
		if len(parts) == 1 {
			o.Settings[key] = value
			continue
		}

		top := parts[0]
		m, ok := o.Settings[top].(map[string]any)
		if !ok {
			m = map[string]any{}
			if existing, found := current.Setting(top); found {
				if em, isMap := existing.(map[string]any); isMap {
					m = em
				}
			}
		}
		setPath(m, parts[1:], value)
		o.Settings[top] = m
	}
	return o, nil
}

func setPath(m map[string]any, parts []string, value any) {
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func orDefault(w, def io.Writer) io.Writer {
	if w == nil {
		return def
	}
	return w
}

// newLogger builds the logger from user settings and the global flags.
func newLogger(settings config.Settings) (*zap.Logger, error) {
	level := settings.LogLevel
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	if flagVerbose {
		level = "debug"
	}
	return logging.New(logging.Options{Level: level, Format: settings.LogFormat})
}

// newToolchain returns the compiler manager configured by user settings.
func newToolchain(settings config.Settings, progress io.Writer) *toolchain.Manager {
	return toolchain.New(settings.CompilersDir,
		toolchain.WithMirror(settings.CompilersMirror),
		toolchain.WithProgress(progress))
}

// registry returns the built-in extensions wired to the user's toolchain.
func registry(settings config.Settings) *extension.Registry {
	return plugins.NewRegistry(plugins.Options{
		Toolchain: newToolchain(settings, os.Stderr),
		Version:   buildVersion,
	})
}

// sessionFor opens a session using the global flags and user settings.
func sessionFor(ctx context.Context) (*session, error) {
	config.Load()
	settings := config.Current()

	logger, err := newLogger(settings)
	if err != nil {
		return nil, &resolver.ConfigError{Field: "log-level", Reason: err.Error()}
	}

	network := flagNetwork
	if network == "" {
		network = settings.DefaultNetwork
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}

	return openSession(ctx, sessionOptions{
		ConfigPath: flagConfig,
		Dir:        cwd,
		Network:    network,
		Sets:       flagSet,
		Registry:   registry(settings),
		Logger:     logger,
	})
}
