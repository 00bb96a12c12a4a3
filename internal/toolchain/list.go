package toolchain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

const listFileName = "list.json"

// Build is one entry of a mirror's list.json.
type Build struct {
	Path        string   `json:"path"`
	Version     string   `json:"version"`
	Prerelease  string   `json:"prerelease,omitempty"`
	Build       string   `json:"build"`
	LongVersion string   `json:"longVersion"`
	Keccak256   string   `json:"keccak256"`
	Sha256      string   `json:"sha256"`
	URLs        []string `json:"urls"`
}

// List is the index of builds published for one platform.
type List struct {
	Builds        []Build           `json:"builds"`
	Releases      map[string]string `json:"releases"`
	LatestRelease string            `json:"latestRelease"`
}

// Select returns the newest release build whose version satisfies c.
// Nightly and prerelease builds are never selected.
func Select(list *List, c *semver.Constraints) (*Build, error) {
	type candidate struct {
		version *semver.Version
		build   *Build
	}
	var matches []candidate
	for i := range list.Builds {
		b := &list.Builds[i]
		if b.Prerelease != "" {
			continue
		}
		if path, ok := list.Releases[b.Version]; ok && path != b.Path {
			continue
		}
		v, err := semver.NewVersion(b.Version)
		if err != nil {
			continue
		}
		if c == nil || c.Check(v) {
			matches = append(matches, candidate{v, b})
		}
	}
	if len(matches) == 0 {
		if c == nil {
			return nil, fmt.Errorf("no solc releases published")
		}
		return nil, fmt.Errorf("no solc release satisfies %s", c)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].version.GreaterThan(matches[j].version) })
	return matches[0].build, nil
}

// FetchList returns the platform's list.json, reusing the copy cached on
// disk while it is fresh. When the mirror is unreachable a stale cached
// copy is used instead.
func (m *Manager) FetchList(ctx context.Context) (*List, error) {
	if m.platform == "" {
		_, err := Platform()
		return nil, err
	}
	cachePath := filepath.Join(m.Dir(), listFileName)

	cached, cachedAt, cacheErr := readList(cachePath)
	if cacheErr == nil && time.Since(cachedAt) <= m.listMaxAge {
		return cached, nil
	}

	data, err := m.get(ctx, m.url(listFileName))
	if err != nil {
		if cacheErr == nil {
			return cached, nil
		}
		return nil, fmt.Errorf("fetching compiler list: %w", err)
	}

	var list List
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing compiler list: %w", err)
	}

	if err := os.MkdirAll(m.Dir(), 0755); err != nil {
		return nil, fmt.Errorf("creating compilers directory: %w", err)
	}
	if err := os.WriteFile(cachePath, data, 0644); err != nil {
		return nil, fmt.Errorf("caching compiler list: %w", err)
	}
	return &list, nil
}

func readList(path string) (*List, time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	var list List
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, time.Time{}, err
	}
	return &list, info.ModTime(), nil
}

func (m *Manager) url(name string) string {
	return strings.TrimRight(m.mirror, "/") + "/" + m.platform + "/" + name
}

func (m *Manager) get(ctx context.Context, url string) ([]byte, error) {
	resp, err := m.do(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}

func (m *Manager) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "taskforge-toolchain")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	return resp, nil
}
