package flatten

import (
	"bufio"
	"fmt"
	"strings"
)

const spdxPrefix = "// SPDX-License-Identifier:"

// Flatten builds the import trees of entries (paths relative to root) and
// returns a single source. header, when non-empty, is written first as a
// comment line.
func Flatten(root string, entries []string, header string) (string, error) {
	var trees []*Node
	for _, e := range entries {
		tree, err := BuildTree(root, e)
		if err != nil {
			return "", err
		}
		trees = append(trees, tree)
	}
	return Render(Order(trees...), header), nil
}

// Render concatenates ordered files, dropping import statements and
// hoisting license identifiers and pragmas so each appears once.
func Render(files []*Node, header string) string {
	var licenses, pragmas []string
	seenLicense := make(map[string]bool)
	seenPragma := make(map[string]bool)
	bodies := make([]string, len(files))

	for i, f := range files {
		var body strings.Builder
		src := importRegexp.ReplaceAllString(f.Content, "")
		sc := bufio.NewScanner(strings.NewReader(src))
		sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
		for sc.Scan() {
			line := sc.Text()
			trimmed := strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(trimmed, spdxPrefix):
				id := strings.TrimSpace(strings.TrimPrefix(trimmed, spdxPrefix))
				if id != "" && !seenLicense[id] {
					seenLicense[id] = true
					licenses = append(licenses, id)
				}
			case strings.HasPrefix(trimmed, "pragma "):
				if !seenPragma[trimmed] {
					seenPragma[trimmed] = true
					pragmas = append(pragmas, trimmed)
				}
			default:
				body.WriteString(line)
				body.WriteByte('\n')
			}
		}
		bodies[i] = strings.TrimSpace(body.String())
	}

	var out strings.Builder
	if len(licenses) > 0 {
		fmt.Fprintf(&out, "%s %s\n", spdxPrefix, strings.Join(licenses, " AND "))
	}
	if header != "" {
		fmt.Fprintf(&out, "// %s\n", header)
	}
	if len(pragmas) > 0 {
		out.WriteByte('\n')
		for _, p := range pragmas {
			out.WriteString(p)
			out.WriteByte('\n')
		}
	}
	for i, f := range files {
		fmt.Fprintf(&out, "\n// File %s\n", f.Path)
		if bodies[i] != "" {
			out.WriteByte('\n')
			out.WriteString(bodies[i])
			out.WriteByte('\n')
		}
	}
	return out.String()
}
