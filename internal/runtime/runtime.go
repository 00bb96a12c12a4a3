package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/taskforge-labs/taskforge/internal/branding"
	"github.com/taskforge-labs/taskforge/internal/resolver"
)

// Runtime executes one external command.
type Runtime interface {
	Run(ctx context.Context, inv Invocation) (*Output, error)
}

// Invocation describes a single process to start.
type Invocation struct {
	Command string
	Args    []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env entries are added on top of the process environment.
	Env    map[string]string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Output captures the result of a process execution.
type Output struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Err converts a non-zero exit into an *ExitError, or returns nil.
func (o *Output) Err(command string) error {
	if o == nil || o.ExitCode == 0 {
		return nil
	}
	return &ExitError{Command: command, Code: o.ExitCode}
}

// ExitError reports a process that exited non-zero. The task runner uses
// ExitCode as the task's exit code.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Command, e.Code)
}

// ExitCode returns the process exit status.
func (e *ExitError) ExitCode() int { return e.Code }

// Runtime identifiers accepted by the node.runtime setting.
const (
	RuntimeNode   = "node"
	RuntimeBinary = "binary"
)

// Runtimes maps runtime identifiers to implementations.
type Runtimes map[string]Runtime

// Dispatch returns the Runtime registered under name. Unknown names yield
// a runtime that always errors.
func (r Runtimes) Dispatch(name string) Runtime {
	if rt, ok := r[name]; ok && rt != nil {
		return rt
	}
	known := make([]string, 0, len(r))
	for id := range r {
		known = append(known, id)
	}
	sort.Strings(known)
	return &unknownRuntime{name: name, known: known}
}

// unknownRuntime is returned when the runtime identifier is not recognized.
type unknownRuntime struct {
	name  string
	known []string
}

func (u *unknownRuntime) Run(context.Context, Invocation) (*Output, error) {
	return nil, fmt.Errorf("unknown runtime %q: supported runtimes are %s", u.name, strings.Join(u.known, ", "))
}

// ConfigEnv returns the variables exported to child processes so scripts
// can see which network and compiler range they run under.
func ConfigEnv(cfg *resolver.ResolvedConfig) (map[string]string, error) {
	if cfg == nil {
		return map[string]string{}, nil
	}
	settings, err := json.Marshal(cfg.Settings())
	if err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}
	network := cfg.Network()
	if network == "" {
		network = resolver.LocalNetwork
	}
	return map[string]string{
		branding.EnvVar("NETWORK"):        network,
		branding.EnvVar("TARGET_VERSION"): cfg.TargetVersion(),
		branding.EnvVar("CONFIG"):         string(settings),
	}, nil
}

// buildEnv layers extra on top of the current process environment.
func buildEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = setEnv(env, k, v)
	}
	return env
}

// setEnv sets or replaces an environment variable in the env slice.
func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	for i, e := range env {
		if strings.HasPrefix(e, prefix) {
			env[i] = prefix + value
			return env
		}
	}
	return append(env, prefix+value)
}
