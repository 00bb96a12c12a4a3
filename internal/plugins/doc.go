// Package plugins holds the built-in extensions and registers them in an
// extension.Registry:
//
//   - core: clean, check, flatten, help
//   - solc: compile, writing per-source artifacts
//   - waffle: compile to the flat build layout, and test with mocha
//   - scripts: run, console, node
//
// Extensions listed later in a project's extensions override tasks of the
// same name from earlier ones, so [solc, waffle] compiles the waffle way.
package plugins
