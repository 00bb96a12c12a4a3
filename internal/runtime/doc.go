// Package runtime runs the external programs tasks delegate to: node scripts,
// npx packages, compiler binaries and local chain nodes. Output is streamed to
// the caller's writers and captured at the same time. A non-zero exit is
// reported through Output.ExitCode, not as an error.
package runtime
