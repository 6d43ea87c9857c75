// Package watch formats swarm events as output lines and waits for exits on a store.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/dyluth/labyrinth/internal/swarm"
	"github.com/dyluth/labyrinth/pkg/discovery"
)

// OutputFormat selects how events are written.
type OutputFormat string

const (
	// OutputFormatDefault is human-readable with timestamps and emojis
	OutputFormatDefault OutputFormat = "default"
	// OutputFormatJSON is line-delimited JSON
	OutputFormatJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, "":
		return OutputFormatDefault, nil
	case OutputFormatJSON:
		return OutputFormatJSON, nil
	}
	return "", fmt.Errorf("unknown output format: %s", s)
}

// Formatter writes one event per line.
type Formatter interface {
	Format(ev swarm.Event) error
}

// NewFormatter returns the formatter for format. Direction events are dropped by the
// default format unless verbose is set; JSON always carries everything.
func NewFormatter(w io.Writer, format OutputFormat, verbose bool) Formatter {
	if format == OutputFormatJSON {
		return &jsonFormatter{encoder: json.NewEncoder(w)}
	}
	return &defaultFormatter{writer: w, verbose: verbose}
}

type defaultFormatter struct {
	writer  io.Writer
	verbose bool
}

func (f *defaultFormatter) Format(ev swarm.Event) error {
	var line string
	switch ev.Type {
	case swarm.EventPosition:
		line = fmt.Sprintf("🚶 agent-%d moved to %s", ev.Owner, ev.Position)
	case swarm.EventDirection:
		if !f.verbose {
			return nil
		}
		line = fmt.Sprintf("↻ agent-%d now facing %s at %s", ev.Owner, ev.Facing, ev.Position)
	case swarm.EventExit:
		if ev.Exit == nil {
			line = fmt.Sprintf("🚪 Exit found by agent-%d", ev.Owner)
		} else {
			line = fmt.Sprintf("🚪 Exit found: %s reached from %s by agent-%d", ev.Exit.Exit, ev.Exit.From, ev.Exit.Owner)
		}
	case swarm.EventFinished:
		line = fmt.Sprintf("🏁 agent-%d finished at %s", ev.Owner, ev.Position)
	default:
		line = fmt.Sprintf("❓ %s from agent-%d", ev.Type, ev.Owner)
	}

	_, err := fmt.Fprintf(f.writer, "[%s] %s\n", timestamp(ev).Format("15:04:05.000"), line)
	return err
}

type jsonFormatter struct {
	encoder *json.Encoder
}

type jsonEvent struct {
	Timestamp string               `json:"timestamp"`
	Type      swarm.EventType      `json:"type"`
	Owner     int                  `json:"owner"`
	Position  discovery.Coord      `json:"position"`
	Facing    string               `json:"facing,omitempty"`
	Exit      *discovery.ExitEvent `json:"exit,omitempty"`
}

func (f *jsonFormatter) Format(ev swarm.Event) error {
	out := jsonEvent{
		Timestamp: timestamp(ev).UTC().Format(time.RFC3339Nano),
		Type:      ev.Type,
		Owner:     ev.Owner,
		Position:  ev.Position,
		Exit:      ev.Exit,
	}
	if ev.Type == swarm.EventDirection {
		out.Facing = ev.Facing.String()
	}
	return f.encoder.Encode(out)
}

func timestamp(ev swarm.Event) time.Time {
	if ev.Time.IsZero() {
		return time.Now()
	}
	return ev.Time
}

// Stream serialises events from concurrent agents into a Formatter. Its Observe
// method is a swarm observer; the first write error is kept and later events dropped.
type Stream struct {
	mu        sync.Mutex
	formatter Formatter
	err       error
	count     int
}

// NewStream wraps formatter.
func NewStream(formatter Formatter) *Stream {
	return &Stream{formatter: formatter}
}

// Observe formats ev.
func (s *Stream) Observe(ev swarm.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	if err := s.formatter.Format(ev); err != nil {
		s.err = fmt.Errorf("failed to write event: %w", err)
		return
	}
	s.count++
}

// Err returns the first write error.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Count returns how many events were handed to the formatter successfully.
func (s *Stream) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// ExitAsEvent converts a store exit notification into a swarm event.
func ExitAsEvent(ev discovery.ExitEvent) swarm.Event {
	return swarm.Event{
		Type:     swarm.EventExit,
		Owner:    ev.Owner,
		Position: ev.From,
		Exit:     &ev,
		Time:     time.Now(),
	}
}

// WaitForExit blocks until store reports an exit. Notifications are taken from the
// exit subscription; the map itself is polled every 200ms for Outside cells marked
// before the subscription started. The polled result carries only the exit cell.
func WaitForExit(ctx context.Context, store discovery.Store, timeout time.Duration) (*discovery.ExitEvent, error) {
	sub, err := store.SubscribeExitEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to exit events: %w", err)
	}
	defer sub.Close()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)
	errs := sub.Errors()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for exit after %v", timeout)

		case ev, ok := <-sub.Events():
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				return nil, fmt.Errorf("exit subscription closed")
			}
			return &ev, nil

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Printf("[Watch] Ignoring exit subscription error: %v", err)

		case <-ticker.C:
			snap, ok := store.Snapshot()
			if !ok {
				continue
			}
			if exits := snap.Cells(discovery.Outside); len(exits) > 0 {
				return &discovery.ExitEvent{Exit: exits[0]}, nil
			}
		}
	}
}
