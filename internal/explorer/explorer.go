// Package explorer drives a single crawler through an unknown maze: depth-first
// exploration with backtracking, breadth-first routing to frontiers and doors, key
// collection and door unlocking. Discoveries go to a shared discovery.Store so
// several explorers can cooperate.
package explorer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dyluth/labyrinth/internal/crawl"
	"github.com/dyluth/labyrinth/internal/inventory"
	"github.com/dyluth/labyrinth/pkg/discovery"
)

var (
	// ErrNotAdjacent is returned by MoveTo for targets that are not one orthogonal step away.
	ErrNotAdjacent = errors.New("target cell is not adjacent")

	// ErrInvalidIdentity is returned by Coordinated for non-positive ids.
	ErrInvalidIdentity = errors.New("coordinated explorer id must be positive")
)

// Identity says whether an explorer takes part in claim coordination.
type Identity struct {
	owner int
}

// Solo is an explorer working alone; it never claims cells.
func Solo() Identity {
	return Identity{}
}

// Coordinated is an explorer that claims cells under owner id.
func Coordinated(id int) (Identity, error) {
	if id <= 0 {
		return Identity{}, fmt.Errorf("invalid explorer id %d: %w", id, ErrInvalidIdentity)
	}
	return Identity{owner: id}, nil
}

// Owner returns the claim owner id, 0 for a solo explorer.
func (i Identity) Owner() int {
	return i.owner
}

// IsCoordinated reports whether the explorer claims cells.
func (i Identity) IsCoordinated() bool {
	return i.owner > 0
}

func (i Identity) String() string {
	if !i.IsCoordinated() {
		return "solo"
	}
	return fmt.Sprintf("agent-%d", i.owner)
}

// Limits bounds every loop of the explorer. Zero fields take the DefaultLimits value.
type Limits struct {
	MaxIterations       int // total DFS steps per Run
	MaxNoProgressRounds int // consecutive Run rounds without progress
	ExploreBudget       int // DFS steps per round and after opening a door
	FullExploreBudget   int // DFS steps of a full re-exploration pass
	KeyScanEvery        int // DFS steps between door scans while carrying keys
	DoorOpenRounds      int // passes over known doors per round
	GreedySteps         int // greedy steps towards a door with no known route

	DoorAttempts        int // walk/unlock attempts on a door while carrying keys
	KeylessDoorAttempts int // walk attempts on a door with an empty bag
	DoorBackoffInitial  time.Duration
	DoorBackoffMax      time.Duration

	IdleBackoffInitial time.Duration // waiting for another agent to open a door
	IdleBackoffMax     time.Duration
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxIterations:       500000,
		MaxNoProgressRounds: 300,
		ExploreBudget:       50000,
		FullExploreBudget:   10000,
		KeyScanEvery:        10,
		DoorOpenRounds:      200,
		GreedySteps:         200,
		DoorAttempts:        50,
		KeylessDoorAttempts: 3,
		DoorBackoffInitial:  10 * time.Millisecond,
		DoorBackoffMax:      100 * time.Millisecond,
		IdleBackoffInitial:  10 * time.Millisecond,
		IdleBackoffMax:      200 * time.Millisecond,
	}
}

// WithDefaults fills zero fields from DefaultLimits.
func (l Limits) WithDefaults() Limits {
	d := DefaultLimits()
	fill := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	fillDur := func(v *time.Duration, def time.Duration) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&l.MaxIterations, d.MaxIterations)
	fill(&l.MaxNoProgressRounds, d.MaxNoProgressRounds)
	fill(&l.ExploreBudget, d.ExploreBudget)
	fill(&l.FullExploreBudget, d.FullExploreBudget)
	fill(&l.KeyScanEvery, d.KeyScanEvery)
	fill(&l.DoorOpenRounds, d.DoorOpenRounds)
	fill(&l.GreedySteps, d.GreedySteps)
	fill(&l.DoorAttempts, d.DoorAttempts)
	fill(&l.KeylessDoorAttempts, d.KeylessDoorAttempts)
	fillDur(&l.DoorBackoffInitial, d.DoorBackoffInitial)
	fillDur(&l.DoorBackoffMax, d.DoorBackoffMax)
	fillDur(&l.IdleBackoffInitial, d.IdleBackoffInitial)
	fillDur(&l.IdleBackoffMax, d.IdleBackoffMax)
	return l
}

// PositionEvent is fired after every successful move.
type PositionEvent struct {
	Owner    int
	Position discovery.Coord
	Facing   crawl.Direction
}

// DirectionEvent is fired after every quarter turn.
type DirectionEvent struct {
	Owner    int
	Position discovery.Coord
	Facing   crawl.Direction
}

// Option configures an Explorer.
type Option func(*Explorer)

// WithStore shares store with other explorers. Without it the explorer keeps a
// private in-memory map.
func WithStore(store discovery.Store) Option {
	return func(e *Explorer) { e.store = store }
}

// WithIdentity sets whether and under which id the explorer claims cells.
func WithIdentity(id Identity) Option {
	return func(e *Explorer) { e.identity = id }
}

// WithLimits overrides loop bounds and backoff timings.
func WithLimits(l Limits) Option {
	return func(e *Explorer) { e.limits = l.WithDefaults() }
}

// WithBag gives the explorer a pre-filled private inventory.
func WithBag(bag *inventory.Inventory) Option {
	return func(e *Explorer) { e.bag = bag }
}

// Explorer drives one crawler. Exploration methods must be called from a single
// goroutine; accessors and event registration are safe from any goroutine.
type Explorer struct {
	crawler  crawl.Crawler
	store    discovery.Store
	identity Identity
	limits   Limits
	bag      *inventory.Inventory

	path   []discovery.Coord
	failed map[discovery.Coord]struct{}

	startedMoving atomic.Bool
	exitFound     atomic.Bool
	moves         atomic.Int64

	mu         sync.RWMutex
	onPosition []func(PositionEvent)
	onTurn     []func(DirectionEvent)
}

// New creates an explorer for crawler.
func New(crawler crawl.Crawler, opts ...Option) *Explorer {
	e := &Explorer{
		crawler: crawler,
		limits:  DefaultLimits(),
		failed:  make(map[discovery.Coord]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = discovery.NewMap()
	}
	if e.bag == nil {
		e.bag = inventory.New()
	}
	return e
}

// OnPositionChanged registers fn to be called synchronously after each move.
func (e *Explorer) OnPositionChanged(fn func(PositionEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onPosition = append(e.onPosition, fn)
}

// OnDirectionChanged registers fn to be called synchronously after each turn.
func (e *Explorer) OnDirectionChanged(fn func(DirectionEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTurn = append(e.onTurn, fn)
}

func (e *Explorer) firePosition() {
	ev := PositionEvent{Owner: e.identity.owner, Position: e.crawler.Position(), Facing: e.crawler.Facing()}
	e.mu.RLock()
	handlers := e.onPosition
	e.mu.RUnlock()
	for _, fn := range handlers {
		fn(ev)
	}
}

func (e *Explorer) fireTurn() {
	ev := DirectionEvent{Owner: e.identity.owner, Position: e.crawler.Position(), Facing: e.crawler.Facing()}
	e.mu.RLock()
	handlers := e.onTurn
	e.mu.RUnlock()
	for _, fn := range handlers {
		fn(ev)
	}
}

// Position returns the crawler's current cell.
func (e *Explorer) Position() discovery.Coord { return e.crawler.Position() }

// Facing returns the crawler's current direction.
func (e *Explorer) Facing() crawl.Direction { return e.crawler.Facing() }

// Store returns the discovered map this explorer writes to.
func (e *Explorer) Store() discovery.Store { return e.store }

// Identity returns whether the explorer runs solo or as a numbered agent.
func (e *Explorer) Identity() Identity { return e.identity }

// Owner returns the claim owner id, 0 for a solo explorer.
func (e *Explorer) Owner() int { return e.identity.owner }

// HasKey reports whether the private bag holds any item.
func (e *Explorer) HasKey() bool { return e.bag.HasItems() }

// KeyCount returns the number of items in the private bag.
func (e *Explorer) KeyCount() int { return e.bag.Count() }

// HasStartedMoving reports whether the explorer has completed at least one move.
func (e *Explorer) HasStartedMoving() bool { return e.startedMoving.Load() }

// ExitFound reports whether this explorer has faced an Outside tile.
func (e *Explorer) ExitFound() bool { return e.exitFound.Load() }

// Moves returns the number of successful moves so far.
func (e *Explorer) Moves() int64 { return e.moves.Load() }

func (e *Explorer) logf(format string, args ...interface{}) {
	log.Printf("[Explorer %s] %s", e.identity, fmt.Sprintf(format, args...))
}

// logEvent emits a structured JSON log line.
func (e *Explorer) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "explorer"
	data["event_type"] = eventType
	data["owner"] = e.identity.owner

	jsonData, err := json.Marshal(data)
	if err != nil {
		e.logf("Failed to marshal log event: %v", err)
		return
	}
	log.Println(string(jsonData))
}
