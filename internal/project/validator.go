package project

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/tidwall/jsonc"
	"go.yaml.in/yaml/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schema/project.schema.json
var schemaBytes []byte

const schemaURL = "project.schema.json"

var (
	projectSchema = sync.OnceValues(compileSchema)
	printer       = message.NewPrinter(language.English)
)

// ValidationResult contains the outcome of a schema validation.
type ValidationResult struct {
	Valid  bool
	Issues []ValidationIssue
}

// ValidationIssue is one schema violation in a project file.
type ValidationIssue struct {
	// Field is the slash-separated key path, e.g. "networks/rinkeby/chainId".
	// It is empty for problems with the document as a whole.
	Field   string
	Message string
	Keyword string
}

func compileSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
	if err != nil {
		return nil, fmt.Errorf("unmarshaling project schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("adding project schema: %w", err)
	}
	s, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compiling project schema: %w", err)
	}
	return s, nil
}

// Validate checks YAML or JSON project content against the schema. The
// error return is for parse or schema compilation failures; violations are
// reported in the ValidationResult.
func Validate(data []byte) (*ValidationResult, error) {
	_, inst, err := decode(data, "")
	if err != nil {
		return nil, err
	}
	return validate(inst)
}

// ValidateFile reads a project file and validates it, picking the format
// from the file extension.
func ValidateFile(path string) (*ValidationResult, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	_, inst, err := decode(data, path)
	if err != nil {
		return nil, err
	}
	return validate(inst)
}

// decode returns the content the YAML decoder should read, with JSONC
// comments and trailing commas stripped for .json and .jsonc paths, plus
// the generic document the schema validates.
func decode(data []byte, path string) ([]byte, any, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if len(doc.Content) == 0 {
		return data, map[string]any{}, nil
	}
	inst, err := instance(doc.Content[0])
	if err != nil {
		return nil, nil, err
	}
	return data, inst, nil
}

// instance converts a YAML node into the value types the schema validator
// works with. Numbers become json.Number so "integer" checks see them
// exactly as written.
func instance(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return instance(n.Alias)
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if key.ShortTag() == "!!merge" {
				if err := mergeInto(m, val); err != nil {
					return nil, err
				}
				continue
			}
			v, err := instance(val)
			if err != nil {
				return nil, err
			}
			m[key.Value] = v
		}
		return m, nil
	case yaml.SequenceNode:
		items := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := instance(c)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	case yaml.ScalarNode:
		return scalar(n)
	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node", n.Line)
	}
}

// mergeInto applies a "<<" merge key. Keys already present win.
func mergeInto(m map[string]any, n *yaml.Node) error {
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	sources := []*yaml.Node{n}
	if n.Kind == yaml.SequenceNode {
		sources = n.Content
	}
	for _, src := range sources {
		v, err := instance(src)
		if err != nil {
			return err
		}
		merged, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("line %d: merge value must be a mapping", src.Line)
		}
		for k, val := range merged {
			if _, set := m[k]; !set {
				m[k] = val
			}
		}
	}
	return nil
}

func scalar(n *yaml.Node) (any, error) {
	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool", "!!int", "!!float":
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		switch x := v.(type) {
		case int:
			return json.Number(strconv.Itoa(x)), nil
		case int64:
			return json.Number(strconv.FormatInt(x, 10)), nil
		case uint64:
			return json.Number(strconv.FormatUint(x, 10)), nil
		case float64:
			if math.IsInf(x, 0) || math.IsNaN(x) {
				return n.Value, nil
			}
			return json.Number(strconv.FormatFloat(x, 'g', -1, 64)), nil
		default:
			return v, nil
		}
	default:
		return n.Value, nil
	}
}

func validate(inst any) (*ValidationResult, error) {
	schema, err := projectSchema()
	if err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}
	err = schema.Validate(inst)
	if err == nil {
		return &ValidationResult{Valid: true}, nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return nil, fmt.Errorf("unexpected validation error type: %w", err)
	}
	return &ValidationResult{Issues: issuesOf(ve)}, nil
}

// issuesOf flattens the error tree into its leaves, most important field
// first. Container keywords only say that a branch failed, so they are
// skipped in favour of their causes.
func issuesOf(root *jsonschema.ValidationError) []ValidationIssue {
	var issues []ValidationIssue
	seen := make(map[ValidationIssue]bool)
	stack := []*jsonschema.ValidationError{root}
	for len(stack) > 0 {
		ve := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if len(ve.Causes) > 0 {
			for i := len(ve.Causes) - 1; i >= 0; i-- {
				stack = append(stack, ve.Causes[i])
			}
			continue
		}
		if ve.ErrorKind == nil {
			continue
		}
		kw := ve.ErrorKind.KeywordPath()
		if len(kw) == 0 {
			continue
		}
		switch keyword := kw[len(kw)-1]; keyword {
		case "anyOf", "allOf", "$ref":
			continue
		default:
			issue := ValidationIssue{
				Field:   strings.Join(ve.InstanceLocation, "/"),
				Message: ve.ErrorKind.LocalizedString(printer),
				Keyword: keyword,
			}
			if !seen[issue] {
				seen[issue] = true
				issues = append(issues, issue)
			}
		}
	}
	if len(issues) == 0 {
		return []ValidationIssue{{Message: root.Error()}}
	}
	sort.SliceStable(issues, func(i, j int) bool {
		return fieldRank(issues[i].Field) < fieldRank(issues[j].Field)
	})
	return issues
}

// fieldRank orders issues by how much the rest of the configuration
// depends on the top-level key they sit under.
func fieldRank(field string) int {
	top, _, _ := strings.Cut(field, "/")
	switch top {
	case "targetVersion", "solidity":
		return 0
	case "extensions":
		return 1
	case "networks":
		return 2
	case "":
		return 4
	default:
		return 3
	}
}
