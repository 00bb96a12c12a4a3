// Package cli implements the taskforge command tree. Task commands resolve
// the project configuration, load the listed extensions and run one task;
// the remaining commands manage projects, user settings and compilers.
package cli
