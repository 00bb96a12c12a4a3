package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// TargetVersion returns the version or range string the project targets.
func (c *ResolvedConfig) TargetVersion() string { return c.targetVersion }

// Constraint returns TargetVersion parsed as a semver constraint.
func (c *ResolvedConfig) Constraint() *semver.Constraints { return c.constraint }

// Network returns the selected network name, or "" when none was selected.
func (c *ResolvedConfig) Network() string { return c.network }

// Extensions returns the ordered extension identifiers.
func (c *ResolvedConfig) Extensions() []string { return cloneStrings(c.extensions) }

// NetworkOverrides returns every declared network override, keyed by name.
func (c *ResolvedConfig) NetworkOverrides() map[string]Override {
	if c.overrides == nil {
		return nil
	}
	out := make(map[string]Override, len(c.overrides))
	for name, o := range c.overrides {
		out[name] = cloneOverride(o)
	}
	return out
}

// NetworkNames returns the declared network names in sorted order.
func (c *ResolvedConfig) NetworkNames() []string {
	names := make([]string, 0, len(c.overrides))
	for name := range c.overrides {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Settings returns a deep copy of the merged settings.
func (c *ResolvedConfig) Settings() map[string]any { return cloneSettings(c.settings) }

// Setting looks up a value by key. Dotted keys walk nested maps, so
// "paths.sources" reads settings["paths"]["sources"].
func (c *ResolvedConfig) Setting(key string) (any, bool) {
	var cur any = c.settings
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cloneValue(cur), true
}

// StringSetting returns the setting at key formatted as a string, or def
// when it is unset or empty.
func (c *ResolvedConfig) StringSetting(key, def string) string {
	v, ok := c.Setting(key)
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprintf("%v", v)
	}
	if s == "" {
		return def
	}
	return s
}

// BoolSetting returns the setting at key as a bool, or def when unset or not
// a bool.
func (c *ResolvedConfig) BoolSetting(key string, def bool) bool {
	v, ok := c.Setting(key)
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// IntSetting returns the setting at key as an int, or def when unset or not
// numeric.
func (c *ResolvedConfig) IntSetting(key string, def int) int {
	v, ok := c.Setting(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func cloneSettings(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneSettings(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return cloneStrings(val)
	default:
		return val
	}
}

func cloneOverride(o Override) Override {
	out := Override{
		Extensions: cloneStrings(o.Extensions),
		Settings:   cloneSettings(o.Settings),
	}
	if o.TargetVersion != nil {
		v := *o.TargetVersion
		out.TargetVersion = &v
	}
	return out
}
