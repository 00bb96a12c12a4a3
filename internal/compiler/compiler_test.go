package compiler

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/fxamacker/cbor/v2"

	"github.com/taskforge-labs/taskforge/internal/runtime"
)

const combinedV7 = `{
  "contracts": {
    "contracts/Greeter.sol:Greeter": {
      "abi": "[{\"inputs\":[],\"name\":\"greet\",\"outputs\":[{\"type\":\"string\"}],\"type\":\"function\"}]",
      "bin": "6080",
      "bin-runtime": "6081",
      "devdoc": "{\"kind\":\"dev\"}",
      "userdoc": "{\"kind\":\"user\"}",
      "hashes": {"greet()": "cfae3217"},
      "metadata": "{}",
      "srcmap": "1:2:3",
      "srcmap-runtime": "4:5:6"
    }
  },
  "version": "0.7.6+commit.7338295f.Linux.g++"
}`

const combinedV8 = `{
  "contracts": {
    "contracts/Greeter.sol:Greeter": {
      "abi": [{"inputs": [], "name": "greet", "outputs": [{"type": "string"}], "type": "function"}],
      "bin": "6080",
      "bin-runtime": "6081",
      "devdoc": {"kind": "dev"},
      "userdoc": {"kind": "user"},
      "hashes": {"greet()": "cfae3217"},
      "metadata": "{}"
    }
  },
  "version": "0.8.19+commit.7dd6d404.Linux.g++"
}`

func TestParseCombinedJSON(t *testing.T) {
	for name, input := range map[string]string{"pre-0.8": combinedV7, "0.8": combinedV8} {
		t.Run(name, func(t *testing.T) {
			contracts, version, err := ParseCombinedJSON([]byte(input))
			if err != nil {
				t.Fatalf("ParseCombinedJSON() error = %v", err)
			}
			if !strings.HasPrefix(version, "0.") {
				t.Errorf("version = %q", version)
			}
			c := contracts["contracts/Greeter.sol:Greeter"]
			if c == nil {
				t.Fatalf("Greeter missing: %v", contracts)
			}
			if c.Name != "Greeter" || c.Source != "contracts/Greeter.sol" {
				t.Errorf("Name/Source = %q/%q", c.Name, c.Source)
			}
			if c.Code != "0x6080" || c.RuntimeCode != "0x6081" {
				t.Errorf("Code/RuntimeCode = %q/%q", c.Code, c.RuntimeCode)
			}
			abi, ok := c.ABI.([]any)
			if !ok || len(abi) != 1 {
				t.Errorf("ABI = %#v, want one entry", c.ABI)
			}
			if doc, ok := c.DevDoc.(map[string]any); !ok || doc["kind"] != "dev" {
				t.Errorf("DevDoc = %#v", c.DevDoc)
			}
			if c.Hashes["greet()"] != "cfae3217" {
				t.Errorf("Hashes = %v", c.Hashes)
			}
		})
	}
}

func TestParseCombinedJSON_Malformed(t *testing.T) {
	if _, _, err := ParseCombinedJSON([]byte("Error: something")); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseVersion(t *testing.T) {
	out := "solc, the solidity compiler commandline interface\nVersion: 0.8.19+commit.7dd6d404.Linux.g++\n"
	info, err := parseVersion("/usr/bin/solc", out)
	if err != nil {
		t.Fatal(err)
	}
	if info.Version.String() != "0.8.19" {
		t.Errorf("Version = %s", info.Version)
	}
	if info.Full != "0.8.19+commit.7dd6d404.Linux.g++" {
		t.Errorf("Full = %q", info.Full)
	}

	if _, err := parseVersion("solc", "garbage"); err == nil {
		t.Error("expected error for unparseable output")
	}
}

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		constraint string
		version    string
		wantErr    bool
	}{
		{"^0.7.3", "0.7.6", false},
		{"^0.7.3", "0.8.0", true},
		{"0.8.0", "0.8.0", false},
		{">=0.6.0 <0.9.0", "0.8.19", false},
	}
	for _, tt := range tests {
		t.Run(tt.constraint+"/"+tt.version, func(t *testing.T) {
			c, _ := semver.NewConstraint(tt.constraint)
			err := CheckVersion(c, semver.MustParse(tt.version))
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckVersion() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrVersionMismatch) {
				t.Errorf("error should wrap ErrVersionMismatch: %v", err)
			}
		})
	}
}

func TestOptionsArgs(t *testing.T) {
	opts := Options{
		Sources:    []string{"contracts/A.sol", "contracts/B.sol"},
		Remappings: []string{"@oz/=node_modules/@oz/"},
		Optimize:   true,
		Runs:       200,
	}
	want := []string{
		"--combined-json", CombinedFields,
		"--optimize", "--optimize-runs", "200",
		"@oz/=node_modules/@oz/",
		"--allow-paths", ".",
		"contracts/A.sol", "contracts/B.sol",
	}
	if got := opts.Args(); !reflect.DeepEqual(got, want) {
		t.Errorf("Args() = %v\nwant %v", got, want)
	}
}

// fakeSolc answers --version and compile invocations without a real solc.
type fakeSolc struct {
	stdout string
	stderr string
	code   int
	got    runtime.Invocation
}

func (f *fakeSolc) Run(_ context.Context, inv runtime.Invocation) (*runtime.Output, error) {
	f.got = inv
	if inv.Stdout != nil {
		io.WriteString(inv.Stdout, f.stdout)
	}
	if inv.Stderr != nil {
		io.WriteString(inv.Stderr, f.stderr)
	}
	return &runtime.Output{ExitCode: f.code, Stdout: f.stdout, Stderr: f.stderr}, nil
}

func TestVersion(t *testing.T) {
	rt := &fakeSolc{stdout: "Version: 0.7.6+commit.7338295f.Linux.g++\n"}
	info, err := Version(context.Background(), rt, "solc-0.7.6")
	if err != nil {
		t.Fatal(err)
	}
	if info.Version.String() != "0.7.6" || info.Path != "solc-0.7.6" {
		t.Errorf("info = %+v", info)
	}
	if len(rt.got.Args) != 1 || rt.got.Args[0] != "--version" {
		t.Errorf("args = %v", rt.got.Args)
	}
}

func TestCompile(t *testing.T) {
	rt := &fakeSolc{stdout: combinedV8}
	out, err := Compile(context.Background(), rt, Options{
		Solc:    "solc",
		Root:    "/project",
		Sources: []string{"contracts/Greeter.sol"},
	})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if rt.got.Dir != "/project" {
		t.Errorf("Dir = %q", rt.got.Dir)
	}
	if len(out.Contracts) != 1 || !strings.HasPrefix(out.Version, "0.8.19") {
		t.Errorf("Output = %+v", out)
	}
}

func TestCompile_FailureCarriesExitCode(t *testing.T) {
	var diag strings.Builder
	rt := &fakeSolc{stderr: "Error: Expected ';'", code: 1}
	_, err := Compile(context.Background(), rt, Options{
		Solc:    "solc",
		Sources: []string{"contracts/Broken.sol"},
		Stderr:  &diag,
	})
	var exitErr *runtime.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if diag.String() != "Error: Expected ';'" {
		t.Errorf("diagnostics = %q", diag.String())
	}
}

func TestCompile_NoSources(t *testing.T) {
	rt := &fakeSolc{code: 1}
	out, err := Compile(context.Background(), rt, Options{Solc: "solc"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Contracts) != 0 || rt.got.Command != "" {
		t.Error("solc should not run without sources")
	}
}

func appendMetadata(t *testing.T, code string, fields map[string]any) string {
	t.Helper()
	raw, err := cbor.Marshal(fields)
	if err != nil {
		t.Fatal(err)
	}
	return code + hex.EncodeToString(raw) + fmt.Sprintf("%04x", len(raw))
}

func TestDecodeMetadata(t *testing.T) {
	ipfs := make([]byte, 34)
	ipfs[0], ipfs[1] = 0x12, 0x20
	code := appendMetadata(t, "0x6080604052", map[string]any{
		"ipfs": ipfs,
		"solc": []byte{0, 8, 19},
	})

	md, err := DecodeMetadata(code)
	if err != nil {
		t.Fatalf("DecodeMetadata() error = %v", err)
	}
	if md.SolcVersion != "0.8.19" {
		t.Errorf("SolcVersion = %q", md.SolcVersion)
	}
	if md.IPFS != hex.EncodeToString(ipfs) {
		t.Errorf("IPFS = %q", md.IPFS)
	}
}

func TestDecodeMetadata_SwarmAndPlaceholders(t *testing.T) {
	swarm := []byte{0xaa, 0xbb}
	code := appendMetadata(t, "6080__$libs$__", map[string]any{
		"bzzr0": swarm,
		"solc":  "0.5.0-nightly.2018.10.15",
	})

	md, err := DecodeMetadata(code)
	if err != nil {
		t.Fatal(err)
	}
	if md.Swarm != "aabb" || md.SolcVersion != "0.5.0-nightly.2018.10.15" {
		t.Errorf("Metadata = %+v", md)
	}
}

func TestDecodeMetadata_Missing(t *testing.T) {
	for _, code := range []string{"", "0x", "0x00", "0x6080ffff"} {
		if _, err := DecodeMetadata(code); !errors.Is(err, ErrNoMetadata) {
			t.Errorf("DecodeMetadata(%q) error = %v, want ErrNoMetadata", code, err)
		}
	}
}

func TestCache(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "contracts")
	if err := os.MkdirAll(src, 0755); err != nil {
		t.Fatal(err)
	}
	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(src, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("A.sol", "contract A {}")
	write("B.sol", "contract B {}")
	files := []string{"contracts/A.sol", "contracts/B.sol"}
	cachePath := filepath.Join(root, "cache", CacheFileName)

	c, err := LoadCache(cachePath)
	if err != nil {
		t.Fatal(err)
	}
	changed, err := c.Changed(root, files, "0.8.0")
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 2 {
		t.Errorf("fresh cache: changed = %v, want both files", changed)
	}

	if err := c.Update(root, files, "0.8.0"); err != nil {
		t.Fatal(err)
	}
	if err := c.Save(); err != nil {
		t.Fatal(err)
	}

	c, err = LoadCache(cachePath)
	if err != nil {
		t.Fatal(err)
	}
	if changed, _ := c.Changed(root, files, "0.8.0"); len(changed) != 0 {
		t.Errorf("after save: changed = %v, want none", changed)
	}

	write("B.sol", "contract B { uint x; }")
	if changed, _ := c.Changed(root, files, "0.8.0"); !reflect.DeepEqual(changed, []string{"contracts/B.sol"}) {
		t.Errorf("after edit: changed = %v", changed)
	}

	if changed, _ := c.Changed(root, files[:1], "0.8.0"); !reflect.DeepEqual(changed, []string{"contracts/B.sol"}) {
		t.Errorf("after removal: changed = %v", changed)
	}

	if changed, _ := c.Changed(root, files[:1], "0.8.1"); len(changed) != 2 {
		t.Errorf("key change: changed = %v, want everything", changed)
	}
}

func TestLoadCache_Corrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), CacheFileName)
	os.WriteFile(path, []byte("not valid json{{{"), 0644)

	if _, err := LoadCache(path); err == nil {
		t.Error("expected error for corrupted cache")
	}
}
