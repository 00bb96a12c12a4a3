//go:build integration

package integration_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/taskforge-labs/taskforge/internal/extension"
	"github.com/taskforge-labs/taskforge/internal/plugins"
	"github.com/taskforge-labs/taskforge/internal/project"
	"github.com/taskforge-labs/taskforge/internal/resolver"
	"github.com/taskforge-labs/taskforge/internal/scaffold"
	"github.com/taskforge-labs/taskforge/internal/task"
)

// testEnv holds paths to isolated test directories.
type testEnv struct {
	HomeDir    string // HOME, so user settings and compilers stay sandboxed
	ProjectDir string // A generated project
}

// setupTestEnv scaffolds a project with the given target version and points
// HOME at a temp dir. The env vars are restored after the test.
func setupTestEnv(t *testing.T, targetVersion string, extensions ...string) *testEnv {
	t.Helper()

	env := &testEnv{
		HomeDir:    t.TempDir(),
		ProjectDir: filepath.Join(t.TempDir(), "greeter"),
	}
	t.Setenv("HOME", env.HomeDir)
	t.Setenv("USERPROFILE", env.HomeDir)

	data := scaffold.NewData("greeter")
	if targetVersion != "" {
		data.TargetVersion = targetVersion
	}
	if len(extensions) > 0 {
		data.Extensions = extensions
	}
	result, err := scaffold.Generate(data, env.ProjectDir)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(result.Warnings) > 0 {
		t.Fatalf("generated project has warnings: %v", result.Warnings)
	}
	return env
}

// runner resolves the project for network and loads the built-in
// extensions with real runtimes. Task output lands in out.
func runner(t *testing.T, env *testEnv, network string, out *bytes.Buffer) *task.Runner {
	t.Helper()

	file, err := project.Load(filepath.Join(env.ProjectDir, "taskforge.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	base, err := file.Base()
	if err != nil {
		t.Fatalf("Base: %v", err)
	}
	cfg, err := resolver.Resolve(base, nil, network)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	hooks, err := extension.Load(context.Background(), plugins.NewRegistry(plugins.Options{Version: "test"}), cfg, nil)
	if err != nil {
		t.Fatalf("extension.Load: %v", err)
	}
	return task.NewRunner(hooks, cfg, task.WithRoot(file.Root()), task.WithOutput(out, out))
}

// mustRun runs a task and fails the test unless it succeeds.
func mustRun(t *testing.T, r *task.Runner, name string, args ...string) *task.Result {
	t.Helper()
	res, err := r.Run(context.Background(), name, args)
	if err != nil {
		t.Fatalf("Run(%s): %v", name, err)
	}
	if !res.Succeeded {
		t.Fatalf("task %s failed: %v\n%s", name, res.Err, res.Output)
	}
	return res
}

// writeFile creates a file at the given path with the given content.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("creating dir %s: %v", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// assertFileExists fails the test if the file does not exist.
func assertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file to exist: %s (error: %v)", path, err)
	}
}

// assertFileNotExists fails the test if the file exists.
func assertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("expected file NOT to exist: %s", path)
	}
}

// assertFileContains fails if the file doesn't exist or doesn't contain substr.
func assertFileContains(t *testing.T, path, substr string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Errorf("reading %s: %v", path, err)
		return
	}
	if !strings.Contains(string(data), substr) {
		t.Errorf("file %s does not contain %q.\nContents:\n%s", path, substr, string(data))
	}
}
