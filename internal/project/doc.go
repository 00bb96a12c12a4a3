// Package project finds, parses, and validates the project file
// (taskforge.yaml, .yml, .json, or .jsonc) and converts it into the base
// record consumed by the resolver. Files are checked against an embedded
// JSON Schema before conversion.
package project
