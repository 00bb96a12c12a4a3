package extension

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/taskforge-labs/taskforge/internal/resolver"
)

// ErrUnknownExtension is wrapped by ExtensionLoadError when an identifier
// has no registered factory.
var ErrUnknownExtension = errors.New("no extension registered under this identifier")

// ExtensionLoadError names the extension that failed to resolve or
// initialize. When it is returned, no hooks are exposed.
type ExtensionLoadError struct {
	ID  string
	Err error
}

func (e *ExtensionLoadError) Error() string {
	return fmt.Sprintf("loading extension %q: %v", e.ID, e.Err)
}

func (e *ExtensionLoadError) Unwrap() error { return e.Err }

// HookSet is the merged task → hook mapping produced by Load. It is
// read-only once returned.
type HookSet struct {
	hooks      map[string]Hook
	owners     map[string]string
	extensions []*Extension
}

// Lookup returns the hook registered for task.
func (h *HookSet) Lookup(task string) (Hook, bool) {
	if h == nil {
		return nil, false
	}
	hook, ok := h.hooks[task]
	return hook, ok
}

// Owner returns the identifier of the extension whose hook won for task.
func (h *HookSet) Owner(task string) string {
	if h == nil {
		return ""
	}
	return h.owners[task]
}

// Tasks returns the registered task names in sorted order.
func (h *HookSet) Tasks() []string {
	if h == nil {
		return nil
	}
	names := make([]string, 0, len(h.hooks))
	for name := range h.hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Extensions returns the loaded extensions in load order.
func (h *HookSet) Extensions() []*Extension {
	if h == nil {
		return nil
	}
	out := make([]*Extension, len(h.extensions))
	copy(out, h.extensions)
	return out
}

// Load initializes every extension listed in cfg, in order, and returns the
// merged hook set. A later extension's hook replaces an earlier one for the
// same task. If any extension fails, Load returns a nil HookSet and an
// *ExtensionLoadError naming it.
func Load(ctx context.Context, reg *Registry, cfg *resolver.ResolvedConfig, logger *zap.Logger) (*HookSet, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	staged := &HookSet{
		hooks:  make(map[string]Hook),
		owners: make(map[string]string),
	}

	for _, id := range cfg.Extensions() {
		if err := ctx.Err(); err != nil {
			return nil, &ExtensionLoadError{ID: id, Err: err}
		}

		factory, ok := reg.Lookup(id)
		if !ok {
			return nil, &ExtensionLoadError{ID: id, Err: ErrUnknownExtension}
		}

		ext, err := initialize(factory, cfg)
		if err != nil {
			return nil, &ExtensionLoadError{ID: id, Err: err}
		}
		if ext.ID == "" {
			ext.ID = id
		}

		for task, hook := range ext.Hooks {
			if hook == nil {
				return nil, &ExtensionLoadError{ID: id, Err: fmt.Errorf("hook for task %q is nil", task)}
			}
			if prev, replaced := staged.owners[task]; replaced {
				logger.Debug("hook overridden",
					zap.String("task", task),
					zap.String("previous", prev),
					zap.String("extension", id))
			}
			staged.hooks[task] = hook
			staged.owners[task] = id
		}
		staged.extensions = append(staged.extensions, ext)

		logger.Debug("extension loaded", zap.String("extension", id), zap.Int("hooks", len(ext.Hooks)))
	}

	return staged, nil
}

// initialize calls the factory and turns a panic or a nil extension into an
// error.
func initialize(factory Factory, cfg *resolver.ResolvedConfig) (ext *Extension, err error) {
	defer func() {
		if r := recover(); r != nil {
			ext = nil
			err = fmt.Errorf("initializer panicked: %v", r)
		}
	}()

	ext, err = factory(cfg)
	if err != nil {
		return nil, err
	}
	if ext == nil {
		return nil, errors.New("initializer returned no extension")
	}
	return ext, nil
}
