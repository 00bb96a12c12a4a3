package runtime

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// NodeRuntime executes Node.js scripts and npx packages.
type NodeRuntime struct{}

// Run executes `node <Command> <Args...>`. Command is a script path,
// resolved against Dir when relative. An empty Command starts the REPL.
func (n *NodeRuntime) Run(ctx context.Context, inv Invocation) (*Output, error) {
	nodeBin, err := exec.LookPath("node")
	if err != nil {
		return nil, fmt.Errorf("node runtime requires Node.js: %w", err)
	}

	var args []string
	if inv.Command != "" {
		script := inv.Command
		if !filepath.IsAbs(script) && inv.Dir != "" {
			script = filepath.Join(inv.Dir, script)
		}
		if _, err := os.Stat(script); err != nil {
			return nil, fmt.Errorf("script not found at %s: %w", script, err)
		}
		args = append(args, script)
	}
	inv.Args = append(args, inv.Args...)
	inv.Command = "node"
	return execute(ctx, nodeBin, inv)
}

// Npx runs a package binary through npx, e.g. Npx(ctx, inv) with
// inv.Command "mocha".
func (n *NodeRuntime) Npx(ctx context.Context, inv Invocation) (*Output, error) {
	npxBin, err := exec.LookPath("npx")
	if err != nil {
		return nil, fmt.Errorf("npx not found (install Node.js): %w", err)
	}
	pkg := inv.Command
	inv.Args = append([]string{"--no-install", pkg}, inv.Args...)
	inv.Command = "npx " + pkg
	return execute(ctx, npxBin, inv)
}
