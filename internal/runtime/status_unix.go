//go:build unix

package runtime

import (
	"os/exec"
	"syscall"
)

// exitStatus follows the shell convention of 128+signal for a child
// killed by a signal.
func exitStatus(err *exec.ExitError) int {
	if ws, ok := err.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	if code := err.ExitCode(); code >= 0 {
		return code
	}
	return 1
}
