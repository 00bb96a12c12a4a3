package toolchain

import (
	"io"
	"net/http"
	"path/filepath"
	"time"
)

// DefaultListMaxAge is how long a downloaded list.json is reused.
const DefaultListMaxAge = 24 * time.Hour

// Manager installs and locates compiler builds.
type Manager struct {
	dir        string
	mirror     string
	platform   string
	httpClient *http.Client
	progress   io.Writer
	listMaxAge time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) {
		m.httpClient = c
	}
}

// WithMirror sets the base URL builds are downloaded from.
func WithMirror(mirror string) Option {
	return func(m *Manager) {
		m.mirror = mirror
	}
}

// WithPlatform overrides the detected platform directory.
func WithPlatform(platform string) Option {
	return func(m *Manager) {
		m.platform = platform
	}
}

// WithProgress enables download progress output on w.
func WithProgress(w io.Writer) Option {
	return func(m *Manager) {
		m.progress = w
	}
}

// WithListMaxAge sets how long a cached list.json stays fresh.
func WithListMaxAge(d time.Duration) Option {
	return func(m *Manager) {
		m.listMaxAge = d
	}
}

// New creates a Manager storing builds under dir.
func New(dir string, opts ...Option) *Manager {
	m := &Manager{
		dir:        dir,
		mirror:     "https://binaries.soliditylang.org",
		httpClient: http.DefaultClient,
		listMaxAge: DefaultListMaxAge,
	}
	m.platform, _ = Platform()
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dir returns the directory builds for the manager's platform live in.
func (m *Manager) Dir() string {
	return filepath.Join(m.dir, m.platform)
}
