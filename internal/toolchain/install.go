package toolchain

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/crypto/sha3"
)

var installedRegexp = regexp.MustCompile(`^solc-[a-z0-9-]+-v([0-9]+\.[0-9]+\.[0-9]+)\+`)

// Installed is a compiler build present on disk.
type Installed struct {
	Version *semver.Version
	Path    string
}

// Install downloads b, verifies its digests, and returns the local path.
// An already-present build is returned without downloading.
func (m *Manager) Install(ctx context.Context, b *Build) (string, error) {
	if strings.HasSuffix(b.Path, ".zip") {
		return "", fmt.Errorf("solc %s is only published as a zip archive; install it manually and set solc.path", b.Version)
	}
	dest := filepath.Join(m.Dir(), b.Path)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}
	if err := os.MkdirAll(m.Dir(), 0755); err != nil {
		return "", fmt.Errorf("creating compilers directory: %w", err)
	}

	data, err := m.download(ctx, b)
	if err != nil {
		return "", err
	}
	if err := Verify(b, data); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(m.Dir(), ".download-*")
	if err != nil {
		return "", fmt.Errorf("creating download file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing download: %w", err)
	}
	if err := markExecutable(tmpPath); err != nil {
		return "", fmt.Errorf("making compiler executable: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return "", fmt.Errorf("installing compiler: %w", err)
	}
	return dest, nil
}

func (m *Manager) download(ctx context.Context, b *Build) ([]byte, error) {
	resp, err := m.do(ctx, m.url(b.Path))
	if err != nil {
		return nil, fmt.Errorf("downloading solc %s: %w", b.Version, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	total := resp.ContentLength
	var downloaded int64
	lastPercent := -1

	chunk := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			downloaded += int64(n)
			if m.progress != nil && total > 0 {
				percent := int(downloaded * 100 / total)
				if percent != lastPercent {
					fmt.Fprintf(m.progress, "\rDownloading solc %s... %d%%", b.Version, percent)
					lastPercent = percent
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("reading download stream: %w", readErr)
		}
	}
	if m.progress != nil && total > 0 {
		fmt.Fprintln(m.progress)
	}
	return buf.Bytes(), nil
}

// Verify checks data against the sha256 and keccak256 digests listed for b.
// A digest missing from the index is skipped; at least one must be present.
func Verify(b *Build, data []byte) error {
	if b.Sha256 == "" && b.Keccak256 == "" {
		return fmt.Errorf("no checksum published for solc %s", b.Version)
	}
	if b.Sha256 != "" {
		sum := sha256.Sum256(data)
		if err := compareDigest("sha256", b.Sha256, sum[:]); err != nil {
			return err
		}
	}
	if b.Keccak256 != "" {
		h := sha3.NewLegacyKeccak256()
		h.Write(data)
		if err := compareDigest("keccak256", b.Keccak256, h.Sum(nil)); err != nil {
			return err
		}
	}
	return nil
}

func compareDigest(kind, want string, got []byte) error {
	want = strings.ToLower(strings.TrimPrefix(want, "0x"))
	actual := hex.EncodeToString(got)
	if actual != want {
		return fmt.Errorf("%s checksum mismatch: expected %s, got %s", kind, want, actual)
	}
	return nil
}

// Installed lists the builds present on disk, newest first.
func (m *Manager) Installed() ([]Installed, error) {
	entries, err := os.ReadDir(m.Dir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading compilers directory: %w", err)
	}

	var out []Installed
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		match := installedRegexp.FindStringSubmatch(e.Name())
		if match == nil {
			continue
		}
		v, err := semver.NewVersion(match[1])
		if err != nil {
			continue
		}
		out = append(out, Installed{Version: v, Path: filepath.Join(m.Dir(), e.Name())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version.GreaterThan(out[j].Version) })
	return out, nil
}

// Resolve returns a compiler satisfying c. Installed builds are preferred so
// repeated runs work offline; otherwise the newest matching release is
// downloaded.
func (m *Manager) Resolve(ctx context.Context, c *semver.Constraints) (*Installed, error) {
	installed, err := m.Installed()
	if err != nil {
		return nil, err
	}
	for _, in := range installed {
		if c == nil || c.Check(in.Version) {
			return &in, nil
		}
	}

	list, err := m.FetchList(ctx)
	if err != nil {
		return nil, err
	}
	build, err := Select(list, c)
	if err != nil {
		return nil, err
	}
	path, err := m.Install(ctx, build)
	if err != nil {
		return nil, err
	}
	v, err := semver.NewVersion(build.Version)
	if err != nil {
		return nil, fmt.Errorf("parsing build version %q: %w", build.Version, err)
	}
	return &Installed{Version: v, Path: path}, nil
}

// Clean removes every downloaded build and the cached list for the
// manager's platform.
func (m *Manager) Clean() error {
	if err := os.RemoveAll(m.Dir()); err != nil {
		return fmt.Errorf("removing %s: %w", m.Dir(), err)
	}
	return nil
}
