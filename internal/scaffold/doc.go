// Package scaffold generates a new project from embedded templates. It powers
// the "init" command: a project file, a sample contract, a deploy script and
// a test, ready for compile, test and run.
package scaffold
