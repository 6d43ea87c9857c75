// Package frontier finds the boundary between explored and unknown territory and
// hands out exclusive frontier targets to cooperating agents.
package frontier

import (
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/dyluth/labyrinth/pkg/discovery"
)

// Policy decides which available frontier an agent tries to claim first.
type Policy int

const (
	// Nearest prefers the frontier closest to the agent (Manhattan distance).
	Nearest Policy = iota
	// RoundRobin spreads agents by rotating the starting candidate on every call.
	RoundRobin
)

func (p Policy) String() string {
	switch p {
	case Nearest:
		return "nearest"
	case RoundRobin:
		return "round_robin"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy accepts "nearest" and "round_robin" (case-insensitive, "round-robin" too).
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nearest", "":
		return Nearest, nil
	case "round_robin", "round-robin", "roundrobin":
		return RoundRobin, nil
	}
	return Nearest, fmt.Errorf("unknown frontier policy %q (expected nearest or round_robin)", s)
}

// Manager selects and claims frontiers on a shared store.
type Manager struct {
	store discovery.Store
	rr    atomic.Uint64
}

// NewManager creates a manager over store.
func NewManager(store discovery.Store) *Manager {
	return &Manager{store: store}
}

// Frontiers returns the Unknown cells adjacent to a known cell that is neither Wall
// nor Outside, sorted by row then column.
func (m *Manager) Frontiers() []discovery.Coord {
	snap, ok := m.store.Snapshot()
	if !ok {
		return nil
	}
	return Compute(snap)
}

// Compute returns the frontier of a snapshot, sorted by row then column.
func Compute(snap discovery.Snapshot) []discovery.Coord {
	set := make(map[discovery.Coord]struct{})
	for c, st := range snap {
		if st == discovery.Wall || st == discovery.Outside {
			continue
		}
		for _, n := range c.Neighbors() {
			if snap.Get(n) == discovery.Unknown {
				set[n] = struct{}{}
			}
		}
	}

	out := make([]discovery.Coord, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	slices.SortFunc(out, byRowThenColumn)
	return out
}

func byRowThenColumn(a, b discovery.Coord) int {
	if a.Y != b.Y {
		return a.Y - b.Y
	}
	return a.X - b.X
}

// Select claims a frontier for owner. Frontiers already claimed are skipped; the
// remaining candidates are ranked by policy and claimed in order until one succeeds.
// ok is false when there is no frontier or every candidate was taken.
func (m *Manager) Select(owner int, pos discovery.Coord, policy Policy) (target discovery.Coord, ok bool, err error) {
	if owner <= 0 {
		return discovery.Coord{}, false, fmt.Errorf("failed to select frontier: invalid owner %d: %w", owner, discovery.ErrInvalidOwner)
	}

	var available []discovery.Coord
	for _, c := range m.Frontiers() {
		if !m.store.IsClaimed(c) {
			available = append(available, c)
		}
	}
	if len(available) == 0 {
		return discovery.Coord{}, false, nil
	}

	switch policy {
	case RoundRobin:
		start := int(m.rr.Add(1) % uint64(len(available)))
		available = append(available[start:], available[:start]...)
	default:
		slices.SortStableFunc(available, func(a, b discovery.Coord) int {
			return a.Manhattan(pos) - b.Manhattan(pos)
		})
	}

	for _, c := range available {
		claimed, err := m.store.TryClaim(c, owner)
		if err != nil {
			return discovery.Coord{}, false, fmt.Errorf("failed to claim frontier %v: %w", c, err)
		}
		if claimed {
			return c, true, nil
		}
	}
	return discovery.Coord{}, false, nil
}
