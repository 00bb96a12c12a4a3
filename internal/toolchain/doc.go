// Package toolchain downloads and caches solc builds. It reads the list.json
// index a compiler mirror publishes per platform, picks the newest release
// matching a semver range, verifies the download against the sha256 and
// keccak256 digests in the index, and stores the binary under the user's
// compilers directory.
package toolchain
