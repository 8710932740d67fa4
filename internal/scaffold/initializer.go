package scaffold

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*
var templatesFS embed.FS

// Files created by initialization.
const (
	ConfigFile        = "keel.yml"
	TruthTemplateFile = "TRUTH_TEMPLATE.md"
)

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// templateData feeds the scaffold templates.
type templateData struct {
	ProjectName string
}

// Initialize creates the Keel project files: keel.yml and a truth document
// template to fill in and import with 'keel truth create'.
// If force is true, existing scaffold files are removed first.
func Initialize(projectName string, force bool) error {
	if projectName == "" {
		return fmt.Errorf("project name cannot be empty")
	}

	if force {
		if err := handleForce(); err != nil {
			return err
		}
	}

	files, err := getTemplateFiles(projectName)
	if err != nil {
		return err
	}

	if err := writeFiles(files); err != nil {
		return err
	}

	return validateCreatedFiles()
}

// handleForce removes existing files if --force was specified
func handleForce() error {
	for _, path := range []string{ConfigFile, TruthTemplateFile} {
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("⚠️  Removing existing %s...\n", path)
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove %s: %w", path, err)
			}
		}
	}
	return nil
}

// getTemplateFiles renders all template files
func getTemplateFiles(projectName string) ([]FileInfo, error) {
	data := templateData{ProjectName: projectName}
	files := []FileInfo{}

	keelYml, err := renderTemplate("templates/keel.yml.tmpl", data)
	if err != nil {
		return nil, err
	}
	files = append(files, FileInfo{
		Path:        ConfigFile,
		Content:     keelYml,
		Permissions: 0644,
	})

	truthMd, err := renderTemplate("templates/truth.md.tmpl", data)
	if err != nil {
		return nil, err
	}
	files = append(files, FileInfo{
		Path:        TruthTemplateFile,
		Content:     truthMd,
		Permissions: 0644,
	})

	return files, nil
}

func renderTemplate(name string, data templateData) ([]byte, error) {
	raw, err := templatesFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", name, err)
	}

	tmpl, err := template.New(name).Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// writeFiles writes all rendered files to disk
func writeFiles(files []FileInfo) error {
	for _, file := range files {
		if err := os.WriteFile(file.Path, file.Content, file.Permissions); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
	}

	return nil
}

// validateCreatedFiles validates that created files are correct
func validateCreatedFiles() error {
	content, err := os.ReadFile(ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to read created %s: %w", ConfigFile, err)
	}

	var yamlData interface{}
	if err := yaml.Unmarshal(content, &yamlData); err != nil {
		return fmt.Errorf("created %s is not valid YAML: %w", ConfigFile, err)
	}

	return nil
}

// PrintSuccess prints the success message with created files
func PrintSuccess(projectName string) {
	fmt.Printf("\n✅ Successfully initialized Keel project '%s'!\n", projectName)
	fmt.Println("\nCreated:")
	fmt.Printf("  ✓ %s\n", ConfigFile)
	fmt.Printf("  ✓ %s\n", TruthTemplateFile)
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Fill in %s with your project's truth\n", TruthTemplateFile)
	fmt.Printf("  2. Run 'keel truth create --file %s' to import it\n", TruthTemplateFile)
	fmt.Println("  3. Run 'keel verify backlog' to check your work against it")
}
