package commands

import (
	"fmt"
	"path/filepath"

	"github.com/dyluth/labyrinth/internal/config"
	"github.com/dyluth/labyrinth/internal/maze"
	"github.com/dyluth/labyrinth/internal/printer"
	"github.com/dyluth/labyrinth/pkg/discovery"
	"github.com/spf13/cobra"
)

var showFlags struct {
	configPath string
	session    string
	redisURL   string
}

var showCmd = &cobra.Command{
	Use:   "show [maze-file]",
	Short: "Render a maze or a discovered map",
	Long: `Render a maze and summarise its layout.

With a maze file argument that file is shown; otherwise the maze of labyrinth.yml.
With --session the discovered map of a Redis exploration session is shown instead.

Examples:
  labyrinth show maze.txt
  labyrinth show --session demo --redis-url redis://localhost:6379`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().StringVarP(&showFlags.configPath, "config", "c", "labyrinth.yml", "Path to labyrinth.yml")
	showCmd.Flags().StringVar(&showFlags.session, "session", "", "Show the discovered map of this Redis session")
	showCmd.Flags().StringVar(&showFlags.redisURL, "redis-url", config.DefaultRedisURL, "Redis URL used with --session")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	if showFlags.session != "" {
		return showSession(cmd)
	}

	var (
		m   *maze.Maze
		err error
	)
	if len(args) == 1 {
		m, err = maze.Load(args[0])
	} else {
		m, err = loadConfiguredMaze(showFlags.configPath)
	}
	if err != nil {
		return printer.Error("failed to load maze", err.Error(), []string{
			"Pass a maze file: labyrinth show maze.txt",
			"Run 'labyrinth init' to create labyrinth.yml and an example maze",
		})
	}

	w, h := m.Size()
	printer.Printf("%s", m.String())
	printer.Println()
	printer.Printf("Size: %dx%d, starts: %d, doors: %d\n", w, h, len(m.Starts()), m.Doors())
	for i, s := range m.Starts() {
		printer.Printf("  start %d at %s\n", i+1, s)
	}
	return nil
}

func loadConfiguredMaze(path string) (*maze.Maze, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	src, err := cfg.MazeSource(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	return maze.Parse(src)
}

func showSession(cmd *cobra.Command) error {
	storeCfg := &config.StoreConfig{Backend: "redis", RedisURL: showFlags.redisURL, Session: showFlags.session}
	if err := storeCfg.Validate(); err != nil {
		return printer.Error("invalid redis url", err.Error(), nil)
	}

	store, _, closeStore, err := openStore(cmd.Context(), storeCfg)
	defer closeStore()
	if err != nil {
		return printer.ErrorWithContext("failed to open discovered map", err.Error(),
			map[string]string{"Session": showFlags.session, "Redis URL": showFlags.redisURL}, nil)
	}

	snap, ok := store.Snapshot()
	if !ok {
		return printer.Error(
			"nothing discovered",
			fmt.Sprintf("Session %s has no known cells.", showFlags.session),
			[]string{"Check the session name", "Run 'labyrinth explore --backend redis --session <name>' first"},
		)
	}

	stats := discovery.StatsOf(snap)
	printer.Printf("%s", printer.Map(snap, nil))
	printer.Println(printer.Legend())
	printer.Println()
	printer.Printf("Session %s: %d cells known, %d explored, %d doors, %d exits\n",
		showFlags.session, len(snap), stats[discovery.Visited]+stats[discovery.Start],
		stats[discovery.Door], stats[discovery.Outside])
	return nil
}
