package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/taskforge-labs/taskforge/internal/extension"
	"github.com/taskforge-labs/taskforge/internal/plugins"
	"github.com/taskforge-labs/taskforge/internal/resolver"
	"github.com/taskforge-labs/taskforge/internal/task"
)

type exitErr struct{ code int }

func (e *exitErr) Error() string { return fmt.Sprintf("exit status %d", e.code) }
func (e *exitErr) ExitCode() int { return e.code }

const projectYAML = `targetVersion: "^0.7.3"
extensions: [recorder]
optimizer:
  enabled: true
  runs: 200
networks:
  rinkeby:
    url: https://rinkeby.example
    targetVersion: "0.8.0"
`

func writeProject(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "taskforge.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// recordingRegistry registers an extension whose hooks record the resolved
// configuration they ran with.
func recordingRegistry(seen **resolver.ResolvedConfig) *extension.Registry {
	reg := extension.NewRegistry()
	reg.Register("recorder", func(*resolver.ResolvedConfig) (*extension.Extension, error) {
		return &extension.Extension{Hooks: map[string]extension.Hook{
			"show": func(_ context.Context, env *extension.Env, args []string) error {
				*seen = env.Config
				fmt.Fprintf(env.Stdout, "%s %s\n", env.Config.Network(), strings.Join(args, " "))
				return nil
			},
			"fail": func(context.Context, *extension.Env, []string) error {
				return &exitErr{code: 5}
			},
		}}, nil
	})
	return reg
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("boom"), ExitFailure},
		{"config", &resolver.ConfigError{Field: "targetVersion"}, ExitConfigError},
		{"wrapped config", fmt.Errorf("loading: %w", &resolver.ConfigError{Field: "x"}), ExitConfigError},
		{"extension load", &extension.ExtensionLoadError{ID: "waffle", Err: extension.ErrUnknownExtension}, ExitExtensionLoad},
		{"unknown task", &task.UnknownTaskError{Name: "deploy"}, ExitUnknownTask},
		{"task failure", &task.TaskExecutionError{Task: "test", ExitCode: 7}, 7},
		{
			"task failure wrapping unknown nested task",
			&task.TaskExecutionError{Task: "run", ExitCode: 1, Err: &task.UnknownTaskError{Name: "compile"}},
			1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestOpenSession_ResolvesNetworkAndRuns(t *testing.T) {
	path := writeProject(t, projectYAML)
	var seen *resolver.ResolvedConfig
	var out bytes.Buffer

	s, err := openSession(context.Background(), sessionOptions{
		ConfigPath: path,
		Network:    "rinkeby",
		Registry:   recordingRegistry(&seen),
		Stdout:     &out,
		Stderr:     &out,
	})
	if err != nil {
		t.Fatalf("openSession() error = %v", err)
	}
	if err := s.run(context.Background(), "show", []string{"a", "b"}); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	if out.String() != "rinkeby a b\n" {
		t.Errorf("output = %q", out.String())
	}
	if seen.TargetVersion() != "0.8.0" {
		t.Errorf("TargetVersion = %q, want network override", seen.TargetVersion())
	}
	if seen.StringSetting("url", "") != "https://rinkeby.example" {
		t.Errorf("url = %q", seen.StringSetting("url", ""))
	}
}

func TestOpenSession_DefaultsToLocalhost(t *testing.T) {
	path := writeProject(t, projectYAML)
	var seen *resolver.ResolvedConfig

	s, err := openSession(context.Background(), sessionOptions{
		ConfigPath: path,
		Registry:   recordingRegistry(&seen),
		Stdout:     &bytes.Buffer{},
	})
	if err != nil {
		t.Fatal(err)
	}
	if s.cfg.Network() != resolver.LocalNetwork {
		t.Errorf("Network() = %q", s.cfg.Network())
	}
	if s.cfg.TargetVersion() != "^0.7.3" {
		t.Errorf("TargetVersion() = %q", s.cfg.TargetVersion())
	}
}

func TestOpenSession_SetOverrides(t *testing.T) {
	path := writeProject(t, projectYAML)
	var seen *resolver.ResolvedConfig

	s, err := openSession(context.Background(), sessionOptions{
		ConfigPath: path,
		Network:    "rinkeby",
		Sets:       []string{"optimizer.runs=999", "url=http://127.0.0.1:8545", "targetVersion=0.8.1"},
		Registry:   recordingRegistry(&seen),
		Stdout:     &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("openSession() error = %v", err)
	}

	cfg := s.cfg
	if cfg.IntSetting("optimizer.runs", 0) != 999 {
		t.Errorf("optimizer.runs = %d, want 999", cfg.IntSetting("optimizer.runs", 0))
	}
	if !cfg.BoolSetting("optimizer.enabled", false) {
		t.Error("optimizer.enabled should survive a dotted --set")
	}
	if cfg.StringSetting("url", "") != "http://127.0.0.1:8545" {
		t.Errorf("url = %q", cfg.StringSetting("url", ""))
	}
	if cfg.TargetVersion() != "0.8.1" {
		t.Errorf("TargetVersion() = %q", cfg.TargetVersion())
	}
}

func TestOpenSession_Errors(t *testing.T) {
	var seen *resolver.ResolvedConfig

	t.Run("no project file", func(t *testing.T) {
		_, err := openSession(context.Background(), sessionOptions{Dir: t.TempDir(), Registry: recordingRegistry(&seen)})
		if ExitCode(err) != ExitConfigError {
			t.Errorf("err = %v, want config error", err)
		}
	})

	t.Run("missing config path", func(t *testing.T) {
		_, err := openSession(context.Background(), sessionOptions{
			ConfigPath: filepath.Join(t.TempDir(), "taskforge.yaml"),
			Registry:   recordingRegistry(&seen),
		})
		var ce *resolver.ConfigError
		if !errors.As(err, &ce) || ce.Field != "config" || !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("err = %v, want config ConfigError wrapping fs.ErrNotExist", err)
		}
		if ExitCode(err) != ExitConfigError {
			t.Errorf("exit code = %d, want %d", ExitCode(err), ExitConfigError)
		}
	})

	t.Run("unknown network", func(t *testing.T) {
		_, err := openSession(context.Background(), sessionOptions{
			ConfigPath: writeProject(t, projectYAML),
			Network:    "mainnet",
			Registry:   recordingRegistry(&seen),
		})
		var ce *resolver.ConfigError
		if !errors.As(err, &ce) || ce.Field != "network" {
			t.Errorf("err = %v, want network ConfigError", err)
		}
	})

	t.Run("unregistered extension", func(t *testing.T) {
		_, err := openSession(context.Background(), sessionOptions{
			ConfigPath: writeProject(t, "targetVersion: \"0.8.0\"\nextensions: [recorder, waffle]\n"),
			Registry:   recordingRegistry(&seen),
		})
		if ExitCode(err) != ExitExtensionLoad {
			t.Errorf("err = %v, want extension load error", err)
		}
	})

	t.Run("malformed set", func(t *testing.T) {
		_, err := openSession(context.Background(), sessionOptions{
			ConfigPath: writeProject(t, projectYAML),
			Sets:       []string{"novalue"},
			Registry:   recordingRegistry(&seen),
		})
		if ExitCode(err) != ExitConfigError {
			t.Errorf("err = %v, want config error", err)
		}
	})
}

func TestSessionRun_Failures(t *testing.T) {
	var seen *resolver.ResolvedConfig
	s, err := openSession(context.Background(), sessionOptions{
		ConfigPath: writeProject(t, projectYAML),
		Registry:   recordingRegistry(&seen),
		Stdout:     &bytes.Buffer{},
		Stderr:     &bytes.Buffer{},
	})
	if err != nil {
		t.Fatal(err)
	}

	if code := ExitCode(s.run(context.Background(), "fail", nil)); code != 5 {
		t.Errorf("failing hook exit code = %d, want 5", code)
	}
	if code := ExitCode(s.run(context.Background(), "deploy", nil)); code != ExitUnknownTask {
		t.Errorf("unknown task exit code = %d, want %d", code, ExitUnknownTask)
	}
}

func TestParseSets(t *testing.T) {
	cfg, err := resolver.Resolve(resolver.Base{
		TargetVersion: "0.8.0",
		Settings:      map[string]any{"solc": map[string]any{"path": "/usr/bin/solc"}},
	}, nil, "")
	if err != nil {
		t.Fatal(err)
	}

	o, err := parseSets(cfg, []string{
		"mocha.timeout=60000",
		"solc.remappings=[a=b, c=d]",
		"verbose=true",
		"extensions=core, waffle",
		"label=",
	})
	if err != nil {
		t.Fatalf("parseSets() error = %v", err)
	}

	if got := o.Settings["mocha"].(map[string]any)["timeout"]; got != 60000 {
		t.Errorf("mocha.timeout = %#v, want int 60000", got)
	}
	solc := o.Settings["solc"].(map[string]any)
	if solc["path"] != "/usr/bin/solc" {
		t.Errorf("solc.path lost: %v", solc)
	}
	if list, ok := solc["remappings"].([]any); !ok || len(list) != 2 {
		t.Errorf("solc.remappings = %#v", solc["remappings"])
	}
	if o.Settings["verbose"] != true {
		t.Errorf("verbose = %#v, want bool", o.Settings["verbose"])
	}
	if o.Settings["label"] != "" {
		t.Errorf("label = %#v, want empty string", o.Settings["label"])
	}
	if strings.Join(o.Extensions, ",") != "core,waffle" {
		t.Errorf("Extensions = %v", o.Extensions)
	}

	// The resolved config must not see writes made through the override.
	if cfg.StringSetting("solc.remappings", "") != "" {
		t.Error("parseSets mutated the resolved configuration")
	}
}

func TestListExtensions(t *testing.T) {
	var out bytes.Buffer
	if err := listExtensions(&out, plugins.NewRegistry(plugins.Options{})); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"core", "scripts", "solc", "waffle"} {
		if !strings.Contains(out.String(), id) {
			t.Errorf("output missing %s:\n%s", id, out.String())
		}
	}
	if !strings.Contains(out.String(), "Project housekeeping tasks") {
		t.Errorf("output missing descriptions:\n%s", out.String())
	}
}

// execute runs the root command with isolated user settings.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("TASKFORGE_NETWORK", "")
	viper.Reset()
	t.Cleanup(viper.Reset)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		flagConfig, flagNetwork = "", ""
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	buildVersion, buildCommit, buildDate = "1.2.3", "abc123", "2026-01-01"
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	want := fmt.Sprintf("taskforge version 1.2.3 (commit: abc123, built: 2026-01-01, %s/%s)\n", goruntime.GOOS, goruntime.GOARCH)
	if out != want {
		t.Errorf("version output = %q", out)
	}
}

func TestTasksCommand(t *testing.T) {
	path := writeProject(t, "targetVersion: \"0.8.0\"\nextensions: [core, solc, waffle]\n")
	out, err := execute(t, "--config", path, "tasks")
	if err != nil {
		t.Fatalf("tasks error = %v", err)
	}

	lines := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n")[1:] {
		fields := strings.Fields(line)
		lines[fields[0]] = fields[1]
	}
	// waffle is listed after solc, so its compile hook wins.
	if lines["compile"] != "waffle" {
		t.Errorf("compile owner = %q, want waffle\n%s", lines["compile"], out)
	}
	if lines["clean"] != "core" || lines["test"] != "waffle" {
		t.Errorf("unexpected owners:\n%s", out)
	}
}

func TestTaskCommand_Unknown(t *testing.T) {
	path := writeProject(t, "targetVersion: \"0.8.0\"\nextensions: [core]\n")
	_, err := execute(t, "--config", path, "task", "deploy")
	if ExitCode(err) != ExitUnknownTask {
		t.Errorf("err = %v, want unknown task", err)
	}
}

func TestHelpCommand(t *testing.T) {
	t.Run("project without a help task", func(t *testing.T) {
		path := writeProject(t, "targetVersion: \"0.8.0\"\nextensions: [solc]\n")
		_, err := execute(t, "--config", path, "help")
		var ute *task.UnknownTaskError
		if !errors.As(err, &ute) || ute.Name != "help" {
			t.Fatalf("err = %v, want unknown task help", err)
		}
		if ExitCode(err) != ExitUnknownTask {
			t.Errorf("exit code = %d, want %d", ExitCode(err), ExitUnknownTask)
		}
	})

	t.Run("invalid project", func(t *testing.T) {
		path := writeProject(t, "targetVersion: \"not-a-version\"\nextensions: [core]\n")
		for _, args := range [][]string{{"help"}, {"compile"}} {
			_, err := execute(t, append([]string{"--config", path}, args...)...)
			if ExitCode(err) != ExitConfigError {
				t.Errorf("%v: err = %v, want config error", args, err)
			}
		}
	})

	t.Run("core help task", func(t *testing.T) {
		path := writeProject(t, "targetVersion: \"0.8.0\"\nextensions: [core]\n")
		if _, err := execute(t, "--config", path, "help"); err != nil {
			t.Errorf("help error = %v", err)
		}
	})

	t.Run("no project", func(t *testing.T) {
		t.Chdir(t.TempDir())
		out, err := execute(t, "help")
		if err != nil {
			t.Fatalf("help error = %v", err)
		}
		if !strings.Contains(out, "Usage:") || !strings.Contains(out, "compile") {
			t.Errorf("help output = %q", out)
		}
	})

	t.Run("non-task command", func(t *testing.T) {
		path := writeProject(t, "targetVersion: \"0.8.0\"\nextensions: [solc]\n")
		out, err := execute(t, "--config", path, "help", "version")
		if err != nil {
			t.Fatalf("help version error = %v", err)
		}
		if !strings.Contains(out, "version") || !strings.Contains(out, "Usage:") {
			t.Errorf("help version output = %q", out)
		}
	})
}

func TestRunCommand_ScriptFlagsAfterSeparator(t *testing.T) {
	path := writeProject(t, "targetVersion: \"0.8.0\"\nextensions: [core]\n")

	// The core extension has no run hook, so reaching the runner proves the
	// script arguments were parsed.
	_, err := execute(t, "--config", path, "run", "scripts/x.js", "--", "--dry")
	var ute *task.UnknownTaskError
	if !errors.As(err, &ute) || ute.Name != "run" {
		t.Errorf("err = %v, want unknown task run", err)
	}

	_, err = execute(t, "--config", path, "run", "scripts/x.js", "--dry")
	if err == nil || !strings.Contains(err.Error(), "unknown flag: --dry") {
		t.Errorf("err = %v, want unknown flag", err)
	}
	if !strings.Contains(runCmd.Long, `"--"`) {
		t.Error("run help should document the -- separator")
	}
}

func TestInitCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "my-token")
	out, err := execute(t, "init", dir)
	if err != nil {
		t.Fatalf("init error = %v", err)
	}
	if !strings.Contains(out, "Created My Token") {
		t.Errorf("init output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "taskforge.yaml")); err != nil {
		t.Errorf("project file not created: %v", err)
	}

	// A second run must refuse the now non-empty directory.
	if _, err := execute(t, "init", dir); err == nil {
		t.Error("expected init into a non-empty directory to fail")
	}
}

func TestConfigCommands(t *testing.T) {
	if _, err := execute(t, "config", "set", "log.level", "debug"); err != nil {
		t.Fatalf("config set error = %v", err)
	}

	out, err := execute(t, "config", "list")
	if err != nil {
		t.Fatal(err)
	}
	// execute gives every call a fresh HOME, so the value above is gone.
	if !strings.Contains(out, "log.level") || !strings.Contains(out, "compilers.mirror") {
		t.Errorf("config list output = %q", out)
	}

	if _, err := execute(t, "config", "set", "no.such.key", "x"); err == nil {
		t.Error("expected unknown key to be rejected")
	}
}
