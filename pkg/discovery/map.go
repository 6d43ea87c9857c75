package discovery

import (
	"context"
	"strings"
	"sync"
)

const shardCount = 32

type shard struct {
	mu     sync.RWMutex
	cells  map[Coord]CellState
	claims map[Coord]int
}

// Map is the in-process Store. Cells and claims are spread over lock-striped shards
// so agents working in different regions rarely contend.
type Map struct {
	shards [shardCount]*shard
	exits  *exitHub
}

var _ Store = (*Map)(nil)

// NewMap creates an empty discovered map.
func NewMap() *Map {
	m := &Map{exits: newExitHub()}
	for i := range m.shards {
		m.shards[i] = &shard{
			cells:  make(map[Coord]CellState),
			claims: make(map[Coord]int),
		}
	}
	return m
}

// NewMapWithStart creates a map whose only known cell is start.
func NewMapWithStart(start Coord) *Map {
	m := NewMap()
	m.Mark(start, Start)
	return m
}

func (m *Map) shardFor(c Coord) *shard {
	h := uint32(c.X)*73856093 ^ uint32(c.Y)*19349663
	return m.shards[h%shardCount]
}

// Mark merges s into c and releases the claim on c once it is Start or Visited.
func (m *Map) Mark(c Coord, s CellState) {
	sh := m.shardFor(c)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	merged := Merge(sh.cells[c], s)
	if merged != Unknown {
		sh.cells[c] = merged
	}
	if releasesClaim(merged) {
		delete(sh.claims, c)
	}
}

// Get returns the best-known state of c.
func (m *Map) Get(c Coord) CellState {
	sh := m.shardFor(c)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.cells[c]
}

// TryClaim reserves c for owner if nobody holds it.
func (m *Map) TryClaim(c Coord, owner int) (bool, error) {
	if err := validateOwner(owner); err != nil {
		return false, err
	}
	sh := m.shardFor(c)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, taken := sh.claims[c]; taken {
		return false, nil
	}
	sh.claims[c] = owner
	return true, nil
}

// TryRelease drops owner's claim on c.
func (m *Map) TryRelease(c Coord, owner int) bool {
	sh := m.shardFor(c)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if current, ok := sh.claims[c]; !ok || current != owner {
		return false
	}
	delete(sh.claims, c)
	return true
}

// ClaimOwner returns the owner of c's claim, 0 when unclaimed.
func (m *Map) ClaimOwner(c Coord) int {
	sh := m.shardFor(c)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.claims[c]
}

// IsClaimed reports whether c is reserved.
func (m *Map) IsClaimed(c Coord) bool {
	return m.ClaimOwner(c) != 0
}

// Snapshot copies every known cell. All shard read locks are held together (taken in
// index order) so the copy reflects a single instant.
func (m *Map) Snapshot() (Snapshot, bool) {
	for _, sh := range m.shards {
		sh.mu.RLock()
	}
	size := 0
	for _, sh := range m.shards {
		size += len(sh.cells)
	}
	snap := make(Snapshot, size)
	for _, sh := range m.shards {
		for c, st := range sh.cells {
			snap[c] = st
		}
	}
	for _, sh := range m.shards {
		sh.mu.RUnlock()
	}
	return snap, len(snap) > 0
}

// Claims copies the current claim table.
func (m *Map) Claims() map[Coord]int {
	out := make(map[Coord]int)
	for _, sh := range m.shards {
		sh.mu.RLock()
		for c, owner := range sh.claims {
			out[c] = owner
		}
		sh.mu.RUnlock()
	}
	return out
}

// NotifyExitFound publishes ev to every subscriber.
func (m *Map) NotifyExitFound(ev ExitEvent) {
	m.exits.publish(ev)
}

// SubscribeExitEvents subscribes to exit observations on this map.
func (m *Map) SubscribeExitEvents(ctx context.Context) (*ExitSubscription, error) {
	return m.exits.subscribe(ctx), nil
}

// String renders the known region, one row per line.
func (m *Map) String() string {
	snap, ok := m.Snapshot()
	if !ok {
		return ""
	}
	return Render(snap)
}

// Render draws a snapshot as ASCII using CellState.Rune, bounded by the known region.
func Render(snap Snapshot) string {
	if len(snap) == 0 {
		return ""
	}
	first := true
	var minX, maxX, minY, maxY int
	for c := range snap {
		if first {
			minX, maxX, minY, maxY = c.X, c.X, c.Y, c.Y
			first = false
			continue
		}
		minX = min(minX, c.X)
		maxX = max(maxX, c.X)
		minY = min(minY, c.Y)
		maxY = max(maxY, c.Y)
	}

	var sb strings.Builder
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			sb.WriteRune(snap.Get(Coord{X: x, Y: y}).Rune())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Stats counts the known cells per state.
func (m *Map) Stats() Stats {
	snap, _ := m.Snapshot()
	return StatsOf(snap)
}
