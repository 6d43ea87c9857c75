// Package crawl defines the body an explorer drives: a crawler that can sense the
// tile it faces, turn, walk forward and try to unlock doors.
package crawl

import (
	"context"
	"fmt"

	"github.com/dyluth/labyrinth/internal/inventory"
	"github.com/dyluth/labyrinth/pkg/discovery"
)

// Direction is one of the four compass headings, in clockwise order.
type Direction int

const (
	North Direction = iota
	East
	South
	West
)

var directionNames = [...]string{"North", "East", "South", "West"}

func (d Direction) String() string {
	if d < North || d > West {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionNames[d]
}

// Delta returns the coordinate offset of one step in direction d.
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case North:
		return 0, -1
	case East:
		return 1, 0
	case South:
		return 0, 1
	default:
		return -1, 0
	}
}

// Right returns the heading after a clockwise quarter turn.
func (d Direction) Right() Direction {
	return (d + 1) % 4
}

// Left returns the heading after an anticlockwise quarter turn.
func (d Direction) Left() Direction {
	return (d + 3) % 4
}

// Towards returns the direction from one cell to an orthogonally adjacent one.
// ok is false when to is not exactly one step away from from.
func Towards(from, to discovery.Coord) (Direction, bool) {
	switch {
	case to.X == from.X && to.Y == from.Y-1:
		return North, true
	case to.X == from.X+1 && to.Y == from.Y:
		return East, true
	case to.X == from.X && to.Y == from.Y+1:
		return South, true
	case to.X == from.X-1 && to.Y == from.Y:
		return West, true
	}
	return North, false
}

// Turns returns the quarter turns needed to go from heading d to want.
// A positive count means turn right, negative means turn left; |n| <= 2.
func Turns(d, want Direction) int {
	n := int((want - d + 4) % 4)
	if n == 3 {
		return -1
	}
	return n
}

// TileType is what a crawler senses on the tile in front of it.
type TileType int

const (
	Empty TileType = iota
	Wall
	Door
	Outside
)

func (t TileType) String() string {
	switch t {
	case Empty:
		return "empty"
	case Wall:
		return "wall"
	case Door:
		return "door"
	case Outside:
		return "outside"
	}
	return fmt.Sprintf("TileType(%d)", int(t))
}

// CellState maps an observation to the state recorded on the discovered map.
func (t TileType) CellState() discovery.CellState {
	switch t {
	case Wall:
		return discovery.Wall
	case Door:
		return discovery.Door
	case Outside:
		return discovery.Outside
	default:
		return discovery.Empty
	}
}

// Crawler is one agent's physical body. Every method taking a context may suspend
// (a remote body makes a network call) and must honour cancellation.
type Crawler interface {
	// Position returns the cell the crawler stands on.
	Position() discovery.Coord

	// Facing returns the crawler's current heading.
	Facing() Direction

	// CanMoveForward is a cheap hint; it may be stale and is not authoritative.
	CanMoveForward(ctx context.Context) bool

	// FacingTile observes the tile ahead.
	FacingTile(ctx context.Context) (TileType, error)

	// TryWalk steps forward offering keys to any door ahead. A nil inventory with a
	// nil error means the step was blocked; otherwise the returned inventory holds the
	// items found on the new tile (possibly none).
	TryWalk(ctx context.Context, keys *inventory.Inventory) (*inventory.Inventory, error)

	// TryUnlock offers keys to the door ahead. An already open door reports true.
	TryUnlock(ctx context.Context, keys *inventory.Inventory) (bool, error)

	TurnRight(ctx context.Context) error
	TurnLeft(ctx context.Context) error
}
