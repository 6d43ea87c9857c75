package commands

import (
	"fmt"
	"time"

	"github.com/dyluth/labyrinth/internal/config"
	"github.com/dyluth/labyrinth/internal/printer"
	"github.com/dyluth/labyrinth/internal/watch"
	"github.com/spf13/cobra"
)

var watchFlags struct {
	session  string
	redisURL string
	timeout  time.Duration
	output   string
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Wait for an exploration session to find an exit",
	Long: `Wait until an agent of a Redis exploration session reports an exit.

Output Formats:
  default - Human-readable output with timestamps and emojis
  json    - Line-delimited JSON for programmatic processing

Examples:
  # In one terminal
  labyrinth explore --backend redis --session demo

  # In another
  labyrinth watch --session demo --timeout 1m`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchFlags.session, "session", "", "Redis session to watch (required)")
	watchCmd.Flags().StringVar(&watchFlags.redisURL, "redis-url", config.DefaultRedisURL, "Redis URL")
	watchCmd.Flags().DurationVar(&watchFlags.timeout, "timeout", time.Minute, "How long to wait")
	watchCmd.Flags().StringVarP(&watchFlags.output, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	format, err := watch.ParseOutputFormat(watchFlags.output)
	if err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchFlags.output),
			[]string{"Valid formats: default, json"},
		)
	}
	if watchFlags.session == "" {
		return printer.Error("session required", "watch follows a Redis exploration session.", []string{"Pass --session <name>"})
	}

	storeCfg := &config.StoreConfig{Backend: "redis", RedisURL: watchFlags.redisURL, Session: watchFlags.session}
	if err := storeCfg.Validate(); err != nil {
		return printer.Error("invalid redis url", err.Error(), nil)
	}

	ctx := cmd.Context()
	store, _, closeStore, err := openStore(ctx, storeCfg)
	defer closeStore()
	if err != nil {
		return printer.ErrorWithContext("failed to open discovered map", err.Error(),
			map[string]string{"Session": watchFlags.session, "Redis URL": watchFlags.redisURL}, nil)
	}

	ev, err := watch.WaitForExit(ctx, store, watchFlags.timeout)
	if err != nil {
		return printer.Error("no exit found", err.Error(), []string{"Increase --timeout or check that agents are exploring this session"})
	}

	return watch.NewFormatter(cmd.OutOrStdout(), format, verbose).Format(watch.ExitAsEvent(*ev))
}
