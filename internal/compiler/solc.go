package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/taskforge-labs/taskforge/internal/runtime"
)

// CombinedFields is the --combined-json selection requested from solc.
const CombinedFields = "abi,bin,bin-runtime,srcmap,srcmap-runtime,hashes,metadata,userdoc,devdoc"

var versionRegexp = regexp.MustCompile(`Version: ([0-9]+\.[0-9]+\.[0-9]+)(\S*)`)

// ErrVersionMismatch is returned by CheckVersion when the compiler does not
// satisfy the project's targetVersion.
var ErrVersionMismatch = errors.New("compiler version does not satisfy targetVersion")

// Info describes a solc executable.
type Info struct {
	Path    string
	Version *semver.Version
	// Full is the complete version string, e.g. "0.8.19+commit.7dd6d404.Linux.g++".
	Full string
}

// Version runs `solc --version` and parses the result.
func Version(ctx context.Context, rt runtime.Runtime, solc string) (*Info, error) {
	out, err := rt.Run(ctx, runtime.Invocation{
		Command: solc,
		Args:    []string{"--version"},
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	})
	if err != nil {
		return nil, err
	}
	if err := out.Err(solc); err != nil {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(out.Stderr))
	}
	return parseVersion(solc, out.Stdout)
}

func parseVersion(path, output string) (*Info, error) {
	m := versionRegexp.FindStringSubmatch(output)
	if m == nil {
		return nil, fmt.Errorf("can't parse solc version from %q", strings.TrimSpace(output))
	}
	v, err := semver.NewVersion(m[1])
	if err != nil {
		return nil, fmt.Errorf("parsing solc version %q: %w", m[1], err)
	}
	return &Info{Path: path, Version: v, Full: m[1] + m[2]}, nil
}

// CheckVersion reports ErrVersionMismatch when v is outside c.
func CheckVersion(c *semver.Constraints, v *semver.Version) error {
	if c == nil || v == nil {
		return nil
	}
	if !c.Check(v) {
		return fmt.Errorf("%w: solc %s, targetVersion %s", ErrVersionMismatch, v, c)
	}
	return nil
}

// Options configures one compiler run.
type Options struct {
	Solc string
	// Root is the working directory solc runs in; Sources are relative to it.
	Root    string
	Sources []string
	// Remappings are passed verbatim, e.g. "@openzeppelin/=node_modules/@openzeppelin/".
	Remappings []string
	Optimize   bool
	Runs       int
	// Stderr receives solc diagnostics (warnings and errors).
	Stderr io.Writer
}

// Args returns the solc command line for o.
func (o Options) Args() []string {
	args := []string{"--combined-json", CombinedFields}
	if o.Optimize {
		args = append(args, "--optimize")
		if o.Runs > 0 {
			args = append(args, "--optimize-runs", strconv.Itoa(o.Runs))
		}
	}
	args = append(args, o.Remappings...)
	args = append(args, "--allow-paths", ".")
	return append(args, o.Sources...)
}

// Output is the parsed result of a compiler run.
type Output struct {
	Version   string
	Contracts map[string]*Contract
}

// Compile runs solc over opts.Sources. A failed compilation returns an error
// wrapping *runtime.ExitError, so the solc exit status reaches the caller.
func Compile(ctx context.Context, rt runtime.Runtime, opts Options) (*Output, error) {
	if len(opts.Sources) == 0 {
		return &Output{Contracts: map[string]*Contract{}}, nil
	}

	stderr := opts.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	var stdout bytes.Buffer
	out, err := rt.Run(ctx, runtime.Invocation{
		Command: opts.Solc,
		Args:    opts.Args(),
		Dir:     opts.Root,
		Stdout:  &stdout,
		Stderr:  stderr,
	})
	if err != nil {
		return nil, err
	}
	if err := out.Err(opts.Solc); err != nil {
		return nil, fmt.Errorf("compilation failed: %w", err)
	}

	contracts, version, err := ParseCombinedJSON(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	return &Output{Version: version, Contracts: contracts}, nil
}
