// Package extension loads task extensions from an explicit, statically
// populated registry. Extensions are initialized in the order the resolved
// configuration lists them; later extensions override hooks registered by
// earlier ones for the same task name. Loading is all-or-nothing.
package extension
