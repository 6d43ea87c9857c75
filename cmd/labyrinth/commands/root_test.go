package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI with args and returns combined output. Flag values and their
// Changed state are reset first, since every test shares the package-level commands.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	prevNoColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prevNoColor })

	reset := func(c *cobra.Command) {
		for _, fs := range []*pflag.FlagSet{c.Flags(), c.PersistentFlags()} {
			fs.VisitAll(func(f *pflag.Flag) {
				require.NoError(t, f.Value.Set(f.DefValue))
				f.Changed = false
			})
		}
	}
	reset(rootCmd)
	for _, c := range rootCmd.Commands() {
		reset(c)
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	err := rootCmd.Execute()
	return buf.String(), err
}

const doorMaze = `+-----+
|x   k|
+--/--+
`

func writeMaze(t *testing.T, dir, ascii string) string {
	t.Helper()
	path := filepath.Join(dir, "maze.txt")
	require.NoError(t, os.WriteFile(path, []byte(ascii), 0644))
	return path
}

// TestRootCommand_ShowsHelpWhenNoSubcommand tests that the root command
// shows help instead of silently succeeding when invoked without a subcommand
func TestRootCommand_ShowsHelpWhenNoSubcommand(t *testing.T) {
	output, err := execute(t)
	assert.NoError(t, err)
	assert.Contains(t, output, "Usage:", "Help should be displayed")
	assert.Contains(t, output, "labyrinth", "Help should show command name")
	for _, sub := range []string{"init", "explore", "show", "watch", "version"} {
		assert.Contains(t, output, sub)
	}
}

// TestRootCommand_RejectsUnknownFlags tests that unknown flags
// passed to the root command cause an error instead of being silently ignored
func TestRootCommand_RejectsUnknownFlags(t *testing.T) {
	_, err := execute(t, "--unknown-flag", "value")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-01-01")
	t.Cleanup(func() { SetVersionInfo("dev", "none", "unknown") })

	output, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "labyrinth 1.2.3 (commit: abc123, built: 2026-01-01)\n", output)
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()

	output, err := execute(t, "init", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, output, "Created "+filepath.Join(dir, "labyrinth.yml"))
	assert.FileExists(t, filepath.Join(dir, "maze.txt"))

	t.Run("refuses to reinitialize", func(t *testing.T) {
		output, err := execute(t, "init", "--dir", dir)
		require.Error(t, err)
		assert.Equal(t, "project already initialized", err.Error())
		assert.Contains(t, output, "labyrinth init --force")
	})

	t.Run("force reinitializes", func(t *testing.T) {
		_, err := execute(t, "init", "--dir", dir, "--force")
		assert.NoError(t, err)
	})
}

func TestExploreCommand(t *testing.T) {
	t.Run("maze flag without config", func(t *testing.T) {
		dir := t.TempDir()
		mazePath := writeMaze(t, dir, doorMaze)

		output, err := execute(t, "explore", "--config", filepath.Join(dir, "absent.yml"), "--maze", mazePath, "--agents", "2", "--timeout", "10s")
		require.Error(t, err, "an explicit missing config is an error")
		assert.Equal(t, "configuration not found", err.Error())

		output, err = execute(t, "explore", "--maze", mazePath, "--agents", "2", "--timeout", "10s")
		require.NoError(t, err, output)
		assert.Contains(t, output, "Exploring with 2 agent(s)")
		assert.Contains(t, output, "✓ Exploration completed")
		assert.Contains(t, output, "Exit (3,3) reached from (3,2)")
		assert.Contains(t, output, "S=start")
	})

	t.Run("initialized project with event stream", func(t *testing.T) {
		dir := t.TempDir()
		_, err := execute(t, "init", "--dir", dir)
		require.NoError(t, err)

		output, err := execute(t, "explore", "-c", filepath.Join(dir, "labyrinth.yml"), "--events", "--output", "json", "--no-map")
		require.NoError(t, err, output)
		assert.Contains(t, output, `"type":"position"`)
		assert.Contains(t, output, `"type":"exit"`)
		assert.NotContains(t, output, "S=start")
	})

	t.Run("invalid maze", func(t *testing.T) {
		dir := t.TempDir()
		mazePath := writeMaze(t, dir, "+--+\n|  |\n+--+\n")

		_, err := execute(t, "explore", "--maze", mazePath)
		require.Error(t, err)
		assert.Equal(t, "invalid maze", err.Error())
	})

	t.Run("invalid flag override", func(t *testing.T) {
		dir := t.TempDir()
		mazePath := writeMaze(t, dir, doorMaze)

		_, err := execute(t, "explore", "--maze", mazePath, "--policy", "random")
		require.Error(t, err)
		assert.Equal(t, "invalid configuration", err.Error())
	})

	t.Run("explicit zero agents", func(t *testing.T) {
		dir := t.TempDir()
		mazePath := writeMaze(t, dir, doorMaze)

		for _, n := range []string{"0", "-2"} {
			output, err := execute(t, "explore", "--maze", mazePath, "--agents", n)
			require.Error(t, err)
			assert.Equal(t, "invalid agent count", err.Error())
			assert.Contains(t, output, "--agents must be at least 1")
		}
	})

	t.Run("invalid output format", func(t *testing.T) {
		_, err := execute(t, "explore", "--output", "xml")
		require.Error(t, err)
		assert.Equal(t, "invalid output format", err.Error())
	})

	t.Run("unreachable key never finds the exit", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "labyrinth.yml")
		require.NoError(t, os.WriteFile(configPath, []byte(`version: "1.0"
maze:
  ascii: |
    +-----+
    |x  |k|
    +--/+-+
swarm:
  agents: 2
  timeout: 0s
explorer:
  max_no_progress_rounds: 5
  door_backoff_initial: 1ms
  door_backoff_max: 2ms
`), 0644))

		output, err := execute(t, "explore", "-c", configPath)
		require.NoError(t, err, output)
		assert.Contains(t, output, "No exit found")
	})
}

func TestShowCommand(t *testing.T) {
	t.Run("maze file argument", func(t *testing.T) {
		dir := t.TempDir()
		mazePath := writeMaze(t, dir, doorMaze)

		output, err := execute(t, "show", mazePath)
		require.NoError(t, err)
		assert.Contains(t, output, "Size: 7x3, starts: 1, doors: 1")
		assert.Contains(t, output, "start 1 at (1,1)")
	})

	t.Run("configured maze", func(t *testing.T) {
		dir := t.TempDir()
		_, err := execute(t, "init", "--dir", dir)
		require.NoError(t, err)

		output, err := execute(t, "show", "-c", filepath.Join(dir, "labyrinth.yml"))
		require.NoError(t, err)
		assert.Contains(t, output, "doors: 1")
	})

	t.Run("missing maze", func(t *testing.T) {
		_, err := execute(t, "show", filepath.Join(t.TempDir(), "nope.txt"))
		require.Error(t, err)
		assert.Equal(t, "failed to load maze", err.Error())
	})
}

func TestRedisSession(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	redisURL := "redis://" + mr.Addr()

	dir := t.TempDir()
	mazePath := writeMaze(t, dir, doorMaze)

	output, err := execute(t, "explore", "--maze", mazePath, "--agents", "2",
		"--backend", "redis", "--redis-url", redisURL, "--session", "cli-test", "--timeout", "20s")
	require.NoError(t, err, output)
	assert.Contains(t, output, "Redis session cli-test")

	t.Run("show renders the discovered map", func(t *testing.T) {
		output, err := execute(t, "show", "--session", "cli-test", "--redis-url", redisURL)
		require.NoError(t, err, output)
		assert.Contains(t, output, "Session cli-test:")
		assert.Contains(t, output, "1 exits")
		assert.True(t, strings.Contains(output, "S"), output)
	})

	t.Run("show unknown session", func(t *testing.T) {
		_, err := execute(t, "show", "--session", "other", "--redis-url", redisURL)
		require.Error(t, err)
		assert.Equal(t, "nothing discovered", err.Error())
	})

	t.Run("watch reports the already found exit", func(t *testing.T) {
		output, err := execute(t, "watch", "--session", "cli-test", "--redis-url", redisURL, "--timeout", "2s", "--output", "json")
		require.NoError(t, err, output)
		assert.Contains(t, output, `"exit":{"from":{"x":0,"y":0},"exit":{"x":3,"y":3}`)
	})

	t.Run("watch requires a session", func(t *testing.T) {
		_, err := execute(t, "watch", "--redis-url", redisURL)
		require.Error(t, err)
		assert.Equal(t, "session required", err.Error())
	})
}
