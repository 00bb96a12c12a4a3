// Package flatten merges Solidity sources and everything they import into a
// single file. Imports are resolved relative to the importing file, then the
// project root, then node_modules. Dependencies are emitted before the files
// that import them, each file once, with license and pragma lines hoisted to
// the top.
package flatten
