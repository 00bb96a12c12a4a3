package flatten

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

var importRegexp = regexp.MustCompile(`(?m)^[ \t]*import\s+(?:[^;"']*?\bfrom\s+)?["']([^"']+)["'][^;]*;[ \t]*\r?\n?`)

// Node is one source file in the import tree.
type Node struct {
	// Path is slash-separated and relative to the project root.
	Path     string
	Content  string
	Children []*Node
	// Deduped marks a file already reached through another import.
	Deduped bool
}

// ParseImports returns the import paths named in src, in order.
func ParseImports(src string) []string {
	var imports []string
	for _, m := range importRegexp.FindAllStringSubmatch(src, -1) {
		imports = append(imports, m[1])
	}
	return imports
}

// BuildTree reads entry (relative to root) and recursively the files it
// imports. Import cycles are reported as errors.
func BuildTree(root, entry string) (*Node, error) {
	seen := make(map[string]bool)
	return buildNode(root, filepath.ToSlash(entry), seen, nil)
}

func buildNode(root, file string, seen map[string]bool, stack []string) (*Node, error) {
	for _, s := range stack {
		if s == file {
			return nil, fmt.Errorf("import cycle: %s -> %s", strings.Join(stack, " -> "), file)
		}
	}

	node := &Node{Path: file}
	if seen[file] {
		node.Deduped = true
		return node, nil
	}

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(file)))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}
	node.Content = string(data)

	stack = append(stack, file)
	for _, imp := range ParseImports(node.Content) {
		dep, err := resolveImport(root, file, imp)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		child, err := buildNode(root, dep, seen, stack)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	seen[file] = true

	return node, nil
}

// resolveImport maps an import path as written in from to a project-relative
// file path.
func resolveImport(root, from, imp string) (string, error) {
	if strings.HasPrefix(imp, "./") || strings.HasPrefix(imp, "../") {
		p := path.Join(path.Dir(from), imp)
		if strings.HasPrefix(p, "../") {
			return "", fmt.Errorf("import %q escapes the project root", imp)
		}
		return p, nil
	}

	candidates := []string{path.Clean(imp), path.Join("node_modules", imp)}
	for _, c := range candidates {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(c))); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("cannot resolve import %q (looked in the project and node_modules)", imp)
}

// Order returns the files of the given trees with dependencies first and
// each file once.
func Order(roots ...*Node) []*Node {
	seen := make(map[string]bool)
	var result []*Node
	for _, r := range roots {
		orderRecursive(r, seen, &result)
	}
	return result
}

func orderRecursive(node *Node, seen map[string]bool, result *[]*Node) {
	if node == nil || node.Deduped || seen[node.Path] {
		return
	}
	for _, child := range node.Children {
		orderRecursive(child, seen, result)
	}
	if !seen[node.Path] {
		seen[node.Path] = true
		*result = append(*result, node)
	}
}
