package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CheckExisting checks if labyrinth.yml or maze.txt already exist in dir
// Returns an error if they do, nil otherwise
func CheckExisting(dir string) error {
	var existingFiles []string
	for _, file := range projectFiles {
		if _, err := os.Stat(filepath.Join(dir, file.Path)); err == nil {
			existingFiles = append(existingFiles, file.Path)
		}
	}

	if len(existingFiles) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("project already initialized\n\nFound existing")
	if len(existingFiles) == 1 {
		fmt.Fprintf(&sb, ": %s\n", existingFiles[0])
	} else {
		sb.WriteString(" files:\n")
		for _, file := range existingFiles {
			fmt.Fprintf(&sb, "  - %s\n", file)
		}
	}
	sb.WriteString("\nUse 'labyrinth init --force' to reinitialize (this will overwrite existing configuration)")

	return fmt.Errorf("%s", sb.String())
}
