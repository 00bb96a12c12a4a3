package task

import (
	"errors"
	"fmt"
	"strings"
)

// UnknownTaskError is returned when no loaded extension registered a hook
// for the requested task.
type UnknownTaskError struct {
	Name  string
	Known []string
}

func (e *UnknownTaskError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("unknown task %q: no tasks are registered (check the extensions list)", e.Name)
	}
	return fmt.Sprintf("unknown task %q (available: %s)", e.Name, strings.Join(e.Known, ", "))
}

// TaskExecutionError wraps a failure reported by a hook.
type TaskExecutionError struct {
	Task     string
	ExitCode int
	Err      error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("task %q failed (exit code %d): %v", e.Task, e.ExitCode, e.Err)
}

func (e *TaskExecutionError) Unwrap() error { return e.Err }

// ExitCoder is implemented by errors that carry a process exit code, such as
// a failed external tool.
type ExitCoder interface {
	ExitCode() int
}

// exitCodeOf returns the first non-zero exit code found in err's chain, or 1.
func exitCodeOf(err error) int {
	var ec ExitCoder
	if errors.As(err, &ec) {
		if code := ec.ExitCode(); code != 0 {
			return code
		}
	}
	return 1
}
