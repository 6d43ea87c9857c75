package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dyluth/labyrinth/internal/config"
	"github.com/dyluth/labyrinth/internal/crawl"
	"github.com/dyluth/labyrinth/internal/maze"
	"github.com/dyluth/labyrinth/internal/printer"
	"github.com/dyluth/labyrinth/internal/swarm"
	"github.com/dyluth/labyrinth/internal/watch"
	"github.com/dyluth/labyrinth/pkg/discovery"
	"github.com/spf13/cobra"
)

var exploreFlags struct {
	configPath string
	mazeFile   string
	agents     int
	policy     string
	timeout    string
	stopOnExit bool
	backend    string
	redisURL   string
	session    string
	events     bool
	output     string
	noMap      bool
}

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Explore a maze with a swarm of agents",
	Long: `Explore a maze with a swarm of cooperating agents.

Settings come from labyrinth.yml (see 'labyrinth init'); flags override them.
Without a config file, --maze is enough to run with defaults.

Output:
  After the run the discovered map, the outcome and per-agent statistics are printed.
  --events streams agent events while the swarm runs (--output=json for JSON lines).

Examples:
  # Explore using ./labyrinth.yml
  labyrinth explore

  # Three agents on a maze file, no config needed
  labyrinth explore --maze maze.txt --agents 3

  # Share the map through Redis so other processes can watch the session
  labyrinth explore --backend redis --redis-url redis://localhost:6379 --session demo`,
	Args: cobra.NoArgs,
	RunE: runExplore,
}

func init() {
	f := exploreCmd.Flags()
	f.StringVarP(&exploreFlags.configPath, "config", "c", "labyrinth.yml", "Path to labyrinth.yml")
	f.StringVarP(&exploreFlags.mazeFile, "maze", "m", "", "Maze file (overrides maze section)")
	f.IntVarP(&exploreFlags.agents, "agents", "n", 0, "Number of agents")
	f.StringVar(&exploreFlags.policy, "policy", "", "Frontier policy (nearest or round_robin)")
	f.StringVar(&exploreFlags.timeout, "timeout", "", "Exploration timeout, e.g. 30s (0 = none)")
	f.BoolVar(&exploreFlags.stopOnExit, "stop-on-exit", true, "Stop every agent once an exit is found")
	f.StringVar(&exploreFlags.backend, "backend", "", "Discovered map backend (memory or redis)")
	f.StringVar(&exploreFlags.redisURL, "redis-url", "", "Redis URL for the redis backend")
	f.StringVar(&exploreFlags.session, "session", "", "Redis session name (generated when empty)")
	f.BoolVar(&exploreFlags.events, "events", false, "Stream agent events while exploring")
	f.StringVarP(&exploreFlags.output, "output", "o", "default", "Event output format (default or json)")
	f.BoolVar(&exploreFlags.noMap, "no-map", false, "Do not print the discovered map")
	rootCmd.AddCommand(exploreCmd)
}

func runExplore(cmd *cobra.Command, args []string) error {
	format, err := watch.ParseOutputFormat(exploreFlags.output)
	if err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", exploreFlags.output),
			[]string{"Valid formats: default, json"},
		)
	}

	cfg, baseDir, err := loadExploreConfig(cmd)
	if err != nil {
		return err
	}

	src, err := cfg.MazeSource(baseDir)
	if err != nil {
		return printer.Error("failed to read maze", err.Error(), []string{"Check the maze section of your configuration or the --maze flag"})
	}
	m, err := maze.Parse(src)
	if err != nil {
		return printer.Error("invalid maze", err.Error(), []string{"Mark the start with 'x'; walls use '+', '-' and '|'; doors '/'; keys 'k'"})
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, session, closeStore, err := openStore(ctx, cfg.Store)
	defer closeStore()
	if err != nil {
		return printer.ErrorWithContext(
			"failed to open discovered map",
			err.Error(),
			map[string]string{"Backend": cfg.Store.Backend, "Redis URL": cfg.Store.RedisURL},
			[]string{"Start Redis or use --backend memory"},
		)
	}

	starts := m.Starts()
	spawn := func(i int) (crawl.Crawler, error) {
		return m.NewCrawlerAt(starts[i%len(starts)]), nil
	}

	opts := []swarm.Option{
		swarm.WithStore(store),
		swarm.WithStopOnExit(*cfg.Swarm.StopOnExit),
		swarm.WithLimits(cfg.ExplorerLimits()),
	}
	var stream *watch.Stream
	if exploreFlags.events {
		stream = watch.NewStream(watch.NewFormatter(cmd.OutOrStdout(), format, verbose))
		opts = append(opts, swarm.WithObserver(stream.Observe))
	}

	if session != "" {
		printer.Step("Exploring with %d agent(s) in Redis session %s\n", cfg.Swarm.Agents, session)
	} else {
		printer.Step("Exploring with %d agent(s)\n", cfg.Swarm.Agents)
	}

	sw := swarm.New(spawn, opts...)
	completed, err := sw.Start(ctx, cfg.Swarm.Agents, cfg.Policy(), cfg.Deadline())
	if err != nil {
		return printer.Error("exploration failed", err.Error(), nil)
	}
	if stream != nil {
		if err := stream.Err(); err != nil {
			printer.Warning("Event stream stopped: %v\n", err)
		}
	}

	snap, _ := store.Snapshot()
	if !exploreFlags.noMap {
		printer.Println()
		printer.Printf("%s", printer.Map(snap, nil))
		printer.Println(printer.Legend())
		printer.Println()
	}
	res := sw.Result()
	printer.Summary(res, discovery.StatsOf(snap))

	if !completed {
		if errors.Is(ctx.Err(), context.Canceled) {
			return printer.Error("exploration interrupted", "The run was cancelled before the agents finished.", nil)
		}
		return printer.Error(
			"exploration timed out",
			fmt.Sprintf("The agents did not finish within %s.", cfg.Deadline()),
			[]string{"Increase swarm.timeout or pass --timeout 0 to run without a deadline"},
		)
	}
	return nil
}

// loadExploreConfig loads labyrinth.yml, falling back to defaults when only --maze
// is given, and applies flag overrides. Returns the directory maze paths are
// relative to.
func loadExploreConfig(cmd *cobra.Command) (*config.LabyrinthConfig, string, error) {
	flags := cmd.Flags()

	var cfg *config.LabyrinthConfig
	baseDir := filepath.Dir(exploreFlags.configPath)

	_, statErr := os.Stat(exploreFlags.configPath)
	switch {
	case statErr == nil:
		loaded, err := config.Load(exploreFlags.configPath)
		if err != nil {
			return nil, "", printer.ErrorWithContext(
				"invalid configuration",
				err.Error(),
				map[string]string{"Config": exploreFlags.configPath},
				[]string{"Fix the reported field", "Run 'labyrinth init --force' to start from a fresh configuration"},
			)
		}
		cfg = loaded
	case exploreFlags.mazeFile != "" && !flags.Changed("config"):
		cfg = config.Default()
		baseDir = "."
	default:
		return nil, "", printer.Error(
			"configuration not found",
			fmt.Sprintf("No configuration at %s.", exploreFlags.configPath),
			[]string{"Run 'labyrinth init' to create one", "Pass --maze <file> to explore with defaults"},
		)
	}

	if flags.Changed("maze") {
		cfg.Maze = config.MazeConfig{File: exploreFlags.mazeFile}
		baseDir = "."
	}
	if flags.Changed("agents") {
		if exploreFlags.agents < 1 {
			return nil, "", printer.Error(
				"invalid agent count",
				fmt.Sprintf("--agents must be at least 1, got %d.", exploreFlags.agents),
				[]string{"Omit --agents to use swarm.agents from the configuration"},
			)
		}
		cfg.Swarm.Agents = exploreFlags.agents
	}
	if flags.Changed("policy") {
		cfg.Swarm.Policy = exploreFlags.policy
	}
	if flags.Changed("timeout") {
		d, err := time.ParseDuration(exploreFlags.timeout)
		if err != nil {
			return nil, "", printer.Error("invalid timeout", err.Error(), []string{"Use a Go duration such as 30s or 2m"})
		}
		cfg.Swarm.Timeout = &d
	}
	if flags.Changed("stop-on-exit") {
		stop := exploreFlags.stopOnExit
		cfg.Swarm.StopOnExit = &stop
	}
	if flags.Changed("backend") {
		cfg.Store.Backend = exploreFlags.backend
	}
	if flags.Changed("redis-url") {
		cfg.Store.RedisURL = exploreFlags.redisURL
	}
	if flags.Changed("session") {
		cfg.Store.Session = exploreFlags.session
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", printer.Error("invalid configuration", err.Error(), nil)
	}
	return cfg, baseDir, nil
}
