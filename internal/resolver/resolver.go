package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// LocalNetwork is always selectable, even when the project declares no
// override for it. It resolves to the base values.
const LocalNetwork = "localhost"

// Base is the configuration record as declared in the project file.
type Base struct {
	TargetVersion string
	Extensions    []string
	Settings      map[string]any
	Networks      map[string]Override
}

// Override holds the fields a network entry may replace. A nil pointer or
// nil slice means "inherit from base"; Settings merge key by key.
type Override struct {
	TargetVersion *string
	Extensions    []string
	Settings      map[string]any
}

// ResolvedConfig is the final, override-merged configuration. It has no
// exported fields and every accessor returns a copy.
type ResolvedConfig struct {
	targetVersion string
	constraint    *semver.Constraints
	network       string
	extensions    []string
	settings      map[string]any
	overrides     map[string]Override
}

// Resolve merges overrides into base for the selected network. Explicit
// overrides are layered over the networks declared in base, so callers can
// pass CLI-supplied values on top of file values. An empty network selects
// no override.
func Resolve(base Base, overrides map[string]Override, network string) (*ResolvedConfig, error) {
	merged := make(map[string]Override, len(base.Networks)+len(overrides))
	for name, o := range base.Networks {
		merged[name] = cloneOverride(o)
	}
	for name, o := range overrides {
		if existing, ok := merged[name]; ok {
			merged[name] = mergeOverride(existing, o)
			continue
		}
		merged[name] = cloneOverride(o)
	}

	cfg := &ResolvedConfig{
		targetVersion: base.TargetVersion,
		network:       network,
		extensions:    cloneStrings(base.Extensions),
		settings:      cloneSettings(base.Settings),
		overrides:     merged,
	}

	if network != "" {
		o, ok := merged[network]
		if !ok && network != LocalNetwork {
			return nil, configErr("network", fmt.Sprintf("network %q is not defined (known: %s)", network, knownNetworks(merged)), nil)
		}
		if ok {
			applyOverride(cfg, o)
		}
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseTargetVersion accepts an exact semantic version ("0.8.0") or a range
// ("^0.7.3", ">=0.6.0 <0.9.0") and returns it as a constraint.
func ParseTargetVersion(v string) (*semver.Constraints, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, configErr("targetVersion", "must not be empty", nil)
	}
	c, err := semver.NewConstraint(v)
	if err != nil {
		return nil, configErr("targetVersion", fmt.Sprintf("%q is not a version or version range", v), err)
	}
	return c, nil
}

func validate(cfg *ResolvedConfig) error {
	c, err := ParseTargetVersion(cfg.targetVersion)
	if err != nil {
		return err
	}
	cfg.constraint = c

	seen := make(map[string]bool, len(cfg.extensions))
	for i, id := range cfg.extensions {
		if strings.TrimSpace(id) == "" {
			return configErr("extensions", fmt.Sprintf("entry %d is empty", i), nil)
		}
		if seen[id] {
			return configErr("extensions", fmt.Sprintf("extension %q is listed more than once", id), nil)
		}
		seen[id] = true
	}
	return nil
}

func applyOverride(cfg *ResolvedConfig, o Override) {
	if o.TargetVersion != nil {
		cfg.targetVersion = *o.TargetVersion
	}
	if o.Extensions != nil {
		cfg.extensions = cloneStrings(o.Extensions)
	}
	if cfg.settings == nil && len(o.Settings) > 0 {
		cfg.settings = make(map[string]any, len(o.Settings))
	}
	for k, v := range o.Settings {
		cfg.settings[k] = cloneValue(v)
	}
}

// mergeOverride layers top over bottom using the same shallow policy as
// applyOverride.
func mergeOverride(bottom, top Override) Override {
	out := cloneOverride(bottom)
	if top.TargetVersion != nil {
		v := *top.TargetVersion
		out.TargetVersion = &v
	}
	if top.Extensions != nil {
		out.Extensions = cloneStrings(top.Extensions)
	}
	if out.Settings == nil && len(top.Settings) > 0 {
		out.Settings = make(map[string]any, len(top.Settings))
	}
	for k, v := range top.Settings {
		out.Settings[k] = cloneValue(v)
	}
	return out
}

func knownNetworks(m map[string]Override) string {
	names := make([]string, 0, len(m)+1)
	names = append(names, LocalNetwork)
	for name := range m {
		if name != LocalNetwork {
			names = append(names, name)
		}
	}
	sort.Strings(names[1:])
	return strings.Join(names, ", ")
}
