package commands

import (
	"fmt"

	"github.com/dyluth/labyrinth/internal/printer"
	"github.com/dyluth/labyrinth/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	forceInit bool
	initDir   string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new labyrinth project",
	Long: `Initialize a new labyrinth project with a default configuration and an example maze.

Creates:
  • labyrinth.yml - Exploration configuration
  • maze.txt      - Example maze with one locked door and its key

Use --force to reinitialize an existing project (WARNING: overwrites both files).`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Force reinitialization (replaces labyrinth.yml and maze.txt)")
	initCmd.Flags().StringVar(&initDir, "dir", ".", "Directory to initialize")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if !forceInit {
		if err := scaffold.CheckExisting(initDir); err != nil {
			return printer.Error("project already initialized", err.Error(), nil)
		}
	}

	created, err := scaffold.Initialize(initDir, forceInit)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	for _, path := range created {
		printer.Success("Created %s\n", path)
	}
	printer.Println()
	printer.Println("Next steps:")
	printer.Println("  1. Draw your own maze in maze.txt ('x' start, '/' door, 'k' key)")
	printer.Println("  2. Tune the swarm and explorer sections of labyrinth.yml")
	printer.Println("  3. Run 'labyrinth explore' to send the agents in")
	return nil
}
