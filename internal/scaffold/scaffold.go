package scaffold

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/taskforge-labs/taskforge/internal/branding"
	"github.com/taskforge-labs/taskforge/internal/project"
)

//go:embed templates
var templatesFS embed.FS

const templatesDir = "templates/project"

// DefaultTargetVersion is the compiler range new projects start with.
const DefaultTargetVersion = "^0.7.3"

// Data holds all template variables available to project templates.
type Data struct {
	Name          string   // e.g., "my-token"
	Title         string   // Derived: "My Token"
	TargetVersion string   // Compiler range, e.g. "^0.7.3"
	Extensions    []string // Ordered extension list for the project file
	CLIName       string
	EnvPrefix     string
	Year          int
}

// Result holds the outcome of a scaffold generation.
type Result struct {
	OutputDir string
	Files     []string
	Warnings  []string
}

// NewData creates Data for a project named name with derived fields
// populated and the default extension set.
func NewData(name string) *Data {
	title := cases.Title(language.English).String(strings.NewReplacer("-", " ", "_", " ").Replace(name))
	return &Data{
		Name:          name,
		Title:         title,
		TargetVersion: DefaultTargetVersion,
		Extensions:    []string{"core", "solc", "waffle", "scripts"},
		CLIName:       branding.CLIName(),
		EnvPrefix:     branding.EnvPrefix(),
		Year:          time.Now().Year(),
	}
}

// outputName maps a template path to the file it produces.
func outputName(rel string) string {
	rel = strings.TrimSuffix(rel, ".tmpl")
	switch rel {
	case "project.yaml":
		return branding.ProjectFile() + ".yaml"
	case "gitignore":
		return ".gitignore"
	}
	return rel
}

// Generate writes a new project into outputDir, which must be empty or
// absent. The generated project file is validated against the schema and
// any issues are returned as warnings.
func Generate(data *Data, outputDir string) (*Result, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	// Check for existing files to prevent accidental overwrites.
	existingEntries, err := os.ReadDir(outputDir)
	if err == nil && len(existingEntries) > 0 {
		return nil, fmt.Errorf("output directory %s is not empty; remove existing files first", outputDir)
	}

	result := &Result{OutputDir: outputDir}

	err = fs.WalkDir(templatesFS, templatesDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		tmplBytes, err := fs.ReadFile(templatesFS, p)
		if err != nil {
			return fmt.Errorf("reading template %s: %w", p, err)
		}

		tmpl, err := template.New(path.Base(p)).Parse(string(tmplBytes))
		if err != nil {
			return fmt.Errorf("parsing template %s: %w", p, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return fmt.Errorf("executing template %s: %w", p, err)
		}

		outName := outputName(strings.TrimPrefix(p, templatesDir+"/"))
		outPath := filepath.Join(outputDir, filepath.FromSlash(outName))
		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(outPath), err)
		}
		if err := os.WriteFile(outPath, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", outPath, err)
		}
		result.Files = append(result.Files, outName)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Validate the generated project file against JSON Schema.
	projectFile := filepath.Join(outputDir, branding.ProjectFile()+".yaml")
	valResult, valErr := project.ValidateFile(projectFile)
	if valErr != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Could not validate project file: %v", valErr))
	} else if !valResult.Valid {
		for _, issue := range valResult.Issues {
			msg := issue.Message
			if issue.Field != "" {
				msg = issue.Field + ": " + msg
			}
			result.Warnings = append(result.Warnings, msg)
		}
	}

	return result, nil
}
