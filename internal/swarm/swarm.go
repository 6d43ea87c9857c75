// Package swarm runs several explorers concurrently over one shared discovered map.
// Agents coordinate only through the store: frontier claims keep them apart and an
// exit event can stop the whole swarm.
package swarm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dyluth/labyrinth/internal/crawl"
	"github.com/dyluth/labyrinth/internal/explorer"
	"github.com/dyluth/labyrinth/internal/frontier"
	"github.com/dyluth/labyrinth/pkg/discovery"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidAgentCount is returned by Start for a non-positive number of agents.
var ErrInvalidAgentCount = errors.New("agent count must be positive")

// SpawnFunc creates the crawler body of the agent with zero-based index i.
type SpawnFunc func(i int) (crawl.Crawler, error)

// EventType classifies swarm events.
type EventType string

const (
	EventPosition  EventType = "position"
	EventDirection EventType = "direction"
	EventExit      EventType = "exit"
	EventFinished  EventType = "agent_finished"
)

// Event is what observers see of the swarm, tagged by agent owner id.
type Event struct {
	Type     EventType
	Owner    int
	Position discovery.Coord
	Facing   crawl.Direction
	Exit     *discovery.ExitEvent
	Time     time.Time
}

// AgentResult summarises one agent's run.
type AgentResult struct {
	Owner            int
	Moves            int64
	FrontiersReached int
	FrontiersFailed  int
	ExitFound        bool
}

// Result summarises the last Start.
type Result struct {
	RunID      string
	Completed  bool
	Agents     []AgentResult
	ExitEvents []discovery.ExitEvent
	Duration   time.Duration
}

// Option configures a Swarm.
type Option func(*Swarm)

// WithStore shares an existing store; by default the swarm creates an in-memory map.
func WithStore(store discovery.Store) Option {
	return func(s *Swarm) { s.store = store }
}

// WithStopOnExit cancels every agent as soon as any exit event is seen.
func WithStopOnExit(stop bool) Option {
	return func(s *Swarm) { s.stopOnExit = stop }
}

// WithLimits sets the loop bounds of every explorer.
func WithLimits(l explorer.Limits) Option {
	return func(s *Swarm) { s.limits = l.WithDefaults() }
}

// WithObserver receives every agent event. It is called from agent goroutines and
// must be safe for concurrent use.
func WithObserver(fn func(Event)) Option {
	return func(s *Swarm) { s.observer = fn }
}

// Swarm coordinates N explorers sharing one store.
type Swarm struct {
	spawn      SpawnFunc
	store      discovery.Store
	stopOnExit bool
	limits     explorer.Limits
	observer   func(Event)
	frontiers  *frontier.Manager

	mu     sync.Mutex
	result Result
}

// New creates a swarm whose agents get their bodies from spawn.
func New(spawn SpawnFunc, opts ...Option) *Swarm {
	s := &Swarm{
		spawn:  spawn,
		limits: explorer.DefaultLimits(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = discovery.NewMap()
	}
	s.frontiers = frontier.NewManager(s.store)
	return s
}

// Store returns the shared store.
func (s *Swarm) Store() discovery.Store {
	return s.store
}

// Result returns a copy of the summary of the last Start.
func (s *Swarm) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.result
	r.Agents = append([]AgentResult(nil), s.result.Agents...)
	r.ExitEvents = append([]discovery.ExitEvent(nil), s.result.ExitEvents...)
	return r
}

// Start runs agents explorers (owner ids 1..agents) and waits until all finish,
// timeout elapses or ctx ends. A zero timeout means no deadline. It reports whether
// the agents finished before the deadline; stopping early on an exit counts as
// finishing.
func (s *Swarm) Start(ctx context.Context, agents int, policy frontier.Policy, timeout time.Duration) (bool, error) {
	if agents <= 0 {
		return false, fmt.Errorf("cannot start swarm with %d agents: %w", agents, ErrInvalidAgentCount)
	}

	runID := uuid.New().String()
	started := time.Now()
	s.mu.Lock()
	s.result = Result{RunID: runID, Agents: make([]AgentResult, agents)}
	s.mu.Unlock()

	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	sub, err := s.store.SubscribeExitEvents(runCtx)
	if err != nil {
		return false, fmt.Errorf("failed to subscribe to exit events: %w", err)
	}
	defer sub.Close()
	watching := make(chan struct{})
	go func() {
		defer close(watching)
		s.watchExits(runCtx, sub, cancel)
	}()

	log.Printf("[Swarm] Starting run %s with %d agents (policy %s, timeout %s)", runID, agents, policy, timeout)

	g, gctx := errgroup.WithContext(runCtx)
	explorers := make([]*explorer.Explorer, agents)
	for i := 0; i < agents; i++ {
		crawler, err := s.spawn(i)
		if err != nil {
			cancel()
			g.Wait()
			return false, fmt.Errorf("failed to spawn agent %d: %w", i+1, err)
		}
		ex, err := s.newExplorer(crawler, i+1)
		if err != nil {
			cancel()
			g.Wait()
			return false, err
		}
		explorers[i] = ex

		g.Go(func() error {
			return s.runAgent(gctx, ex, i, policy)
		})
	}

	err = g.Wait()
	deadlineHit := errors.Is(runCtx.Err(), context.DeadlineExceeded)
	parentDone := ctx.Err() != nil
	cancel()
	<-watching

	completed := err == nil && !deadlineHit && !parentDone
	s.mu.Lock()
	s.result.Completed = completed
	s.result.Duration = time.Since(started)
	for i, ex := range explorers {
		if ex == nil {
			continue
		}
		s.result.Agents[i].Owner = i + 1
		s.result.Agents[i].Moves = ex.Moves()
		s.result.Agents[i].ExitFound = ex.ExitFound()
	}
	exits := len(s.result.ExitEvents)
	s.mu.Unlock()

	s.logEvent(runID, "swarm_finished", map[string]interface{}{
		"agents":      agents,
		"completed":   completed,
		"exit_events": exits,
		"duration_ms": time.Since(started).Milliseconds(),
	})
	if err != nil {
		return false, fmt.Errorf("swarm run %s failed: %w", runID, err)
	}
	return completed, nil
}

func (s *Swarm) newExplorer(c crawl.Crawler, owner int) (*explorer.Explorer, error) {
	id, err := explorer.Coordinated(owner)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent %d: %w", owner, err)
	}
	ex := explorer.New(c,
		explorer.WithStore(s.store),
		explorer.WithIdentity(id),
		explorer.WithLimits(s.limits),
	)
	if s.observer != nil {
		ex.OnPositionChanged(func(ev explorer.PositionEvent) {
			s.observer(Event{Type: EventPosition, Owner: ev.Owner, Position: ev.Position, Facing: ev.Facing, Time: time.Now()})
		})
		ex.OnDirectionChanged(func(ev explorer.DirectionEvent) {
			s.observer(Event{Type: EventDirection, Owner: ev.Owner, Position: ev.Position, Facing: ev.Facing, Time: time.Now()})
		})
	}
	return ex, nil
}

// watchExits records exit events until the run ends, cancelling it on the first
// one when stop-on-exit is set. Events already buffered when the run ends are
// still recorded.
func (s *Swarm) watchExits(ctx context.Context, sub *discovery.ExitSubscription, cancel context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case ev, ok := <-sub.Events():
					if !ok {
						return
					}
					s.recordExit(ev)
				default:
					return
				}
			}
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			s.recordExit(ev)
			if s.stopOnExit {
				log.Printf("[Swarm] Stopping all agents")
				cancel()
			}
		case err, ok := <-sub.Errors():
			if !ok {
				return
			}
			log.Printf("[Swarm] Exit subscription error: %v", err)
		}
	}
}

func (s *Swarm) recordExit(ev discovery.ExitEvent) {
	s.mu.Lock()
	s.result.ExitEvents = append(s.result.ExitEvents, ev)
	s.mu.Unlock()

	log.Printf("[Swarm] Agent %d found an exit at %v", ev.Owner, ev.Exit)
	if s.observer != nil {
		s.observer(Event{Type: EventExit, Owner: ev.Owner, Position: ev.From, Exit: &ev, Time: time.Now()})
	}
}

// runAgent moves agent i towards claimed frontiers one greedy step at a time until
// none is left, then hands over to the explorer's own Run.
func (s *Swarm) runAgent(ctx context.Context, ex *explorer.Explorer, i int, policy frontier.Policy) error {
	owner := ex.Owner()
	s.store.Mark(ex.Position(), discovery.Start)
	failed := make(map[discovery.Coord]bool)
	reached := 0

	defer func() {
		s.mu.Lock()
		s.result.Agents[i].FrontiersReached = reached
		s.result.Agents[i].FrontiersFailed = len(failed)
		s.mu.Unlock()
		if s.observer != nil {
			s.observer(Event{Type: EventFinished, Owner: owner, Position: ex.Position(), Facing: ex.Facing(), Time: time.Now()})
		}
	}()

	for ctx.Err() == nil {
		target, ok, err := s.frontiers.Select(owner, ex.Position(), policy)
		if err != nil {
			return fmt.Errorf("agent %d: %w", owner, err)
		}
		if ok && failed[target] {
			s.store.TryRelease(target, owner)
			ok = false
		}
		if !ok {
			if err := ex.Run(ctx); err != nil {
				return fmt.Errorf("agent %d: %w", owner, err)
			}
			break
		}

		arrived, err := approach(ctx, ex, target)
		if err != nil {
			return fmt.Errorf("agent %d: %w", owner, err)
		}
		if arrived {
			reached++
			continue
		}
		s.store.TryRelease(target, owner)
		failed[target] = true
	}

	log.Printf("[Swarm] Agent %d finished after %d moves", owner, ex.Moves())
	return nil
}

// approach takes single-axis steps towards target, X before Y.
func approach(ctx context.Context, ex *explorer.Explorer, target discovery.Coord) (bool, error) {
	for {
		if ctx.Err() != nil {
			return false, nil
		}
		cur := ex.Position()
		if cur == target {
			return true, nil
		}
		next := cur
		switch {
		case target.X > cur.X:
			next.X++
		case target.X < cur.X:
			next.X--
		case target.Y > cur.Y:
			next.Y++
		default:
			next.Y--
		}
		moved, err := ex.MoveTo(ctx, next)
		if err != nil || !moved {
			return false, err
		}
	}
}

// logEvent emits a structured JSON log line.
func (s *Swarm) logEvent(runID, eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "swarm"
	data["event_type"] = eventType
	data["run_id"] = runID

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Swarm] Failed to marshal log event: %v", err)
		return
	}
	log.Println(string(jsonData))
}
