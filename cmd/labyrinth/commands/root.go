package commands

import (
	"fmt"
	"io"
	"log"

	"github.com/dyluth/labyrinth/internal/printer"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "labyrinth",
	Short: "Labyrinth - cooperative maze exploration",
	Long: `Labyrinth sends a swarm of agents into an ASCII maze. The agents share one
discovered map, claim frontier cells so they never explore the same ground twice,
collect keys, open doors and report the first exit they find.

The shared map lives in memory or in Redis, so several processes can explore
one session together.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		printer.Stdout = cmd.OutOrStdout()
		printer.Stderr = cmd.ErrOrStderr()
		if verbose {
			log.SetOutput(cmd.ErrOrStderr())
		} else {
			log.SetOutput(io.Discard)
		}
	},
	// Prevent silent success when unknown flags are passed to root command
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Silence Cobra's default error and usage printing
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = versionString()
}

func versionString() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the labyrinth version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "labyrinth %s\n", versionString())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show component logs on stderr")
	rootCmd.AddCommand(versionCmd)
}
