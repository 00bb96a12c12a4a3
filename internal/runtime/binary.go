package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// BinaryRuntime executes an arbitrary program found on PATH or given by path.
type BinaryRuntime struct{}

// Run starts inv.Command with inv.Args, streaming to inv.Stdout/inv.Stderr
// (os.Stdout/os.Stderr when nil) while capturing both.
func (b *BinaryRuntime) Run(ctx context.Context, inv Invocation) (*Output, error) {
	bin, err := exec.LookPath(inv.Command)
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", inv.Command, err)
	}
	return execute(ctx, bin, inv)
}

func execute(ctx context.Context, bin string, inv Invocation) (*Output, error) {
	cmd := exec.CommandContext(ctx, bin, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = buildEnv(inv.Env)
	cmd.Stdin = inv.Stdin

	stdout := inv.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := inv.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = io.MultiWriter(stdout, &stdoutBuf)
	cmd.Stderr = io.MultiWriter(stderr, &stderrBuf)

	err := cmd.Run()

	output := &Output{
		Stdout: stdoutBuf.String(),
		Stderr: stderrBuf.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			output.ExitCode = exitStatus(exitErr)
			return output, nil
		}
		if ctx.Err() != nil {
			return output, fmt.Errorf("running %s: %w", inv.Command, ctx.Err())
		}
		return output, fmt.Errorf("running %s: %w", inv.Command, err)
	}

	return output, nil
}
