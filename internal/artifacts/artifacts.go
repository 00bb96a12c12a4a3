// Package artifacts writes compiled contracts to disk, either in the nested
// per-source layout (artifacts/<source>/<Contract>.json) or in the flat
// layout waffle tests load (build/<Contract>.json).
package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/taskforge-labs/taskforge/internal/compiler"
)

const (
	artifactFormat = "hh-sol-artifact-1"
	debugFormat    = "hh-sol-dbg-1"
)

// Artifact is the JSON document written for one contract.
type Artifact struct {
	Format                 string         `json:"_format,omitempty"`
	ContractName           string         `json:"contractName"`
	SourceName             string         `json:"sourceName"`
	ABI                    any            `json:"abi"`
	Bytecode               string         `json:"bytecode"`
	DeployedBytecode       string         `json:"deployedBytecode"`
	LinkReferences         map[string]any `json:"linkReferences"`
	DeployedLinkReferences map[string]any `json:"deployedLinkReferences"`
}

// Debug sits next to each nested artifact and records how it was built.
type Debug struct {
	Format      string `json:"_format"`
	SolcVersion string `json:"solcVersion,omitempty"`
	IPFS        string `json:"ipfs,omitempty"`
	Swarm       string `json:"swarm,omitempty"`
}

// FlatArtifact is the waffle build/<Contract>.json shape.
type FlatArtifact struct {
	ContractName     string            `json:"contractName"`
	ABI              any               `json:"abi"`
	Bytecode         string            `json:"bytecode"`
	DeployedBytecode string            `json:"deployedBytecode"`
	Metadata         string            `json:"metadata,omitempty"`
	Hashes           map[string]string `json:"methodIdentifiers,omitempty"`
}

// WriteNested writes one artifact per contract under dir, mirroring the
// source tree, and returns the written paths sorted.
func WriteNested(dir string, contracts map[string]*compiler.Contract) ([]string, error) {
	var written []string
	for _, c := range sorted(contracts) {
		base := filepath.Join(dir, filepath.FromSlash(c.Source), c.Name)

		art := Artifact{
			Format:                 artifactFormat,
			ContractName:           c.Name,
			SourceName:             c.Source,
			ABI:                    orEmpty(c.ABI),
			Bytecode:               c.Code,
			DeployedBytecode:       c.RuntimeCode,
			LinkReferences:         map[string]any{},
			DeployedLinkReferences: map[string]any{},
		}
		if err := writeJSON(base+".json", art); err != nil {
			return written, err
		}
		written = append(written, base+".json")

		dbg := Debug{Format: debugFormat}
		if md, err := compiler.DecodeMetadata(c.RuntimeCode); err == nil {
			dbg.SolcVersion = md.SolcVersion
			dbg.IPFS = md.IPFS
			dbg.Swarm = md.Swarm
		}
		if err := writeJSON(base+".dbg.json", dbg); err != nil {
			return written, err
		}
	}
	return written, nil
}

// WriteFlat writes build/<Contract>.json files. Two contracts sharing a
// name cannot coexist in this layout and are reported as an error.
func WriteFlat(dir string, contracts map[string]*compiler.Contract) ([]string, error) {
	owners := make(map[string]string)
	for _, c := range sorted(contracts) {
		if prev, ok := owners[c.Name]; ok {
			return nil, fmt.Errorf("contract %s is declared in both %s and %s; rename one to use the flat build layout", c.Name, prev, c.Source)
		}
		owners[c.Name] = c.Source
	}

	var written []string
	for _, c := range sorted(contracts) {
		path := filepath.Join(dir, c.Name+".json")
		art := FlatArtifact{
			ContractName:     c.Name,
			ABI:              orEmpty(c.ABI),
			Bytecode:         c.Code,
			DeployedBytecode: c.RuntimeCode,
			Metadata:         c.Metadata,
			Hashes:           c.Hashes,
		}
		if err := writeJSON(path, art); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// Clean removes the given directories, each relative to root, and returns
// the ones that existed. Paths resolving to root itself or outside it are
// refused.
func Clean(root string, dirs ...string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}

	var removed []string
	for _, d := range dirs {
		target := filepath.Join(absRoot, d)
		rel, err := filepath.Rel(absRoot, target)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return removed, fmt.Errorf("refusing to remove %s: not inside the project", d)
		}

		if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := os.RemoveAll(target); err != nil {
			return removed, fmt.Errorf("removing %s: %w", target, err)
		}
		removed = append(removed, d)
	}
	return removed, nil
}

func sorted(contracts map[string]*compiler.Contract) []*compiler.Contract {
	keys := make([]string, 0, len(contracts))
	for k := range contracts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*compiler.Contract, 0, len(keys))
	for _, k := range keys {
		out = append(out, contracts[k])
	}
	return out
}

func orEmpty(abi any) any {
	if abi == nil {
		return []any{}
	}
	return abi
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
