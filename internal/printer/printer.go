package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dyluth/labyrinth/internal/swarm"
	"github.com/dyluth/labyrinth/pkg/discovery"
	"github.com/fatih/color"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

// Stdout and Stderr are where messages go. Tests swap them for buffers.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

var (
	green   = color.New(color.FgGreen)
	yellow  = color.New(color.FgYellow)
	red     = color.New(color.FgRed, color.Bold)
	cyan    = color.New(color.FgCyan)
	magenta = color.New(color.FgMagenta, color.Bold)
	faint   = color.New(color.Faint)
	white   = color.New(color.FgWhite)
)

// cellColors maps a discovered cell state to its map colour; nil prints plain.
var cellColors = map[discovery.CellState]*color.Color{
	discovery.Unknown: faint,
	discovery.Wall:    white,
	discovery.Door:    yellow,
	discovery.Outside: green,
	discovery.Start:   magenta,
	discovery.Visited: cyan,
}

// Success prints a success message in green with a checkmark prefix
func Success(format string, a ...any) {
	green.Fprint(Stdout, prefixed("✓", fmt.Sprintf(format, a...)))
}

// Info prints an informational message in the default color
func Info(format string, a ...any) {
	fmt.Fprintf(Stdout, format, a...)
}

// Warning prints a warning message in yellow with a warning emoji prefix
func Warning(format string, a ...any) {
	yellow.Fprint(Stdout, prefixed("⚠️ ", fmt.Sprintf(format, a...)))
}

// Step prints a step message with emphasis (used in multi-step operations)
func Step(format string, a ...any) {
	cyan.Fprintf(Stdout, "→ %s", fmt.Sprintf(format, a...))
}

func prefixed(prefix, msg string) string {
	if strings.HasPrefix(msg, strings.TrimSpace(prefix)) {
		return msg
	}
	return prefix + " " + msg
}

// Error prints a formatted error (red title, explanation, suggestions) to Stderr
// and returns a plain error carrying only the title, for Cobra.
func Error(title string, explanation string, suggestions []string) error {
	return ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with key/value details printed between explanation and
// suggestions. Keys are printed in sorted order.
func ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	red.Fprintf(Stderr, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(Stderr, "%s\n", explanation)
	}

	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for k := range context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintf(Stderr, "\n")
		for _, k := range keys {
			fmt.Fprintf(Stderr, "  %s: %s\n", k, context[k])
		}
	}

	switch len(suggestions) {
	case 0:
	case 1:
		fmt.Fprintf(Stderr, "\n%s\n", suggestions[0])
	default:
		fmt.Fprintf(Stderr, "\nEither:\n")
		for i, suggestion := range suggestions {
			fmt.Fprintf(Stderr, "  %d. %s\n", i+1, suggestion)
		}
	}

	// Only the title: Cobra runs with SilenceErrors
	return fmt.Errorf("%s", title)
}

// Map renders a discovered map with one colour per cell state. Agents, keyed by
// position, are drawn as their owner id (last digit) over the cell.
func Map(snap discovery.Snapshot, agents map[discovery.Coord]int) string {
	if len(snap) == 0 && len(agents) == 0 {
		return ""
	}

	first := true
	var minX, maxX, minY, maxY int
	grow := func(c discovery.Coord) {
		if first {
			minX, maxX, minY, maxY = c.X, c.X, c.Y, c.Y
			first = false
			return
		}
		minX, maxX = min(minX, c.X), max(maxX, c.X)
		minY, maxY = min(minY, c.Y), max(maxY, c.Y)
	}
	for c := range snap {
		grow(c)
	}
	for c := range agents {
		grow(c)
	}

	var sb strings.Builder
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			c := discovery.Coord{X: x, Y: y}
			if owner, ok := agents[c]; ok {
				red.Fprintf(&sb, "%d", owner%10)
				continue
			}
			state := snap.Get(c)
			if col := cellColors[state]; col != nil {
				col.Fprint(&sb, string(state.Rune()))
			} else {
				sb.WriteRune(state.Rune())
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Legend returns the one-line key to Map's symbols.
func Legend() string {
	states := []discovery.CellState{
		discovery.Start, discovery.Visited, discovery.Empty, discovery.Door,
		discovery.Wall, discovery.Outside, discovery.Unknown,
	}
	parts := make([]string, 0, len(states))
	for _, s := range states {
		parts = append(parts, fmt.Sprintf("%c=%s", s.Rune(), s))
	}
	return strings.Join(parts, "  ")
}

// Summary prints the outcome of a swarm run and its per-agent statistics.
func Summary(res swarm.Result, stats discovery.Stats) {
	if res.Completed {
		Success("Exploration completed in %s (run %s)\n", res.Duration.Round(time.Millisecond), res.RunID)
	} else {
		Warning("Exploration stopped before completion after %s (run %s)\n", res.Duration.Round(time.Millisecond), res.RunID)
	}

	fmt.Fprintf(Stdout, "  Cells: %d visited, %d start, %d doors, %d walls, %d exits\n",
		stats[discovery.Visited], stats[discovery.Start], stats[discovery.Door],
		stats[discovery.Wall], stats[discovery.Outside])

	for _, a := range res.Agents {
		exit := ""
		if a.ExitFound {
			exit = " exit found"
		}
		fmt.Fprintf(Stdout, "  agent-%d: %d moves, %d frontiers reached, %d failed%s\n",
			a.Owner, a.Moves, a.FrontiersReached, a.FrontiersFailed, exit)
	}

	if len(res.ExitEvents) == 0 {
		fmt.Fprintf(Stdout, "  No exit found\n")
		return
	}
	for _, ev := range res.ExitEvents {
		green.Fprintf(Stdout, "  Exit %s reached from %s by agent-%d\n", ev.Exit, ev.From, ev.Owner)
	}
}

// Println prints a plain message (for output that doesn't need coloring)
func Println(a ...any) {
	fmt.Fprintln(Stdout, a...)
}

// Printf prints a plain formatted message (for output that doesn't need coloring)
func Printf(format string, a ...any) {
	fmt.Fprintf(Stdout, format, a...)
}
