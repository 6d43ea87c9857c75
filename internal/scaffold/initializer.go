package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/labyrinth/internal/config"
	"github.com/dyluth/labyrinth/internal/maze"
)

//go:embed templates/*
var templatesFS embed.FS

const (
	// ConfigFile is the name of the project configuration
	ConfigFile = "labyrinth.yml"
	// MazeFile is the name of the example maze referenced by ConfigFile
	MazeFile = "maze.txt"
)

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Template    string
	Permissions os.FileMode
}

var projectFiles = []FileInfo{
	{Path: ConfigFile, Template: "templates/labyrinth.yml.tmpl", Permissions: 0644},
	{Path: MazeFile, Template: "templates/maze.txt.tmpl", Permissions: 0644},
}

// Initialize creates a labyrinth project (configuration plus example maze) in dir.
// If force is true, existing project files are replaced. Returns the created paths.
func Initialize(dir string, force bool) ([]string, error) {
	if force {
		if err := handleForce(dir); err != nil {
			return nil, err
		}
	} else if err := CheckExisting(dir); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	created := make([]string, 0, len(projectFiles))
	for _, file := range projectFiles {
		content, err := templatesFS.ReadFile(file.Template)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s template: %w", file.Path, err)
		}
		path := filepath.Join(dir, file.Path)
		if err := os.WriteFile(path, content, file.Permissions); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
		created = append(created, path)
	}

	if err := validateCreatedFiles(dir); err != nil {
		return nil, err
	}
	return created, nil
}

// handleForce removes existing project files if --force was specified
func handleForce(dir string) error {
	for _, file := range projectFiles {
		path := filepath.Join(dir, file.Path)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		fmt.Printf("⚠️  Removing existing %s...\n", file.Path)
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", file.Path, err)
		}
	}
	return nil
}

// validateCreatedFiles loads the written configuration and parses its maze
func validateCreatedFiles(dir string) error {
	cfg, err := config.Load(filepath.Join(dir, ConfigFile))
	if err != nil {
		return fmt.Errorf("created %s is invalid: %w", ConfigFile, err)
	}

	src, err := cfg.MazeSource(dir)
	if err != nil {
		return err
	}
	if _, err := maze.Parse(src); err != nil {
		return fmt.Errorf("created %s is invalid: %w", MazeFile, err)
	}
	return nil
}
