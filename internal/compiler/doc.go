// Package compiler drives the solc executable: it reads the compiler
// version, compiles sources to combined JSON, decodes the metadata solc
// appends to runtime bytecode, and keeps a content-hash cache so unchanged
// projects are not recompiled.
package compiler
