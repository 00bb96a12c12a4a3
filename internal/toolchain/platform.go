package toolchain

import (
	"fmt"
	"os"
	"runtime"
)

// Platform returns the mirror directory for the current OS, e.g.
// "linux-amd64". Builds are only published for amd64; other architectures
// fall back to it and rely on emulation.
func Platform() (string, error) {
	return platformFor(runtime.GOOS)
}

func platformFor(goos string) (string, error) {
	switch goos {
	case "linux":
		return "linux-amd64", nil
	case "darwin":
		return "macosx-amd64", nil
	case "windows":
		return "windows-amd64", nil
	default:
		return "", fmt.Errorf("no solc builds are published for %s", goos)
	}
}

// markExecutable sets the executable bit on a downloaded build. Windows has
// no permission bits.
func markExecutable(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	return os.Chmod(path, 0755)
}
