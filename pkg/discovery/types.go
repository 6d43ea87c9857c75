package discovery

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidOwner is returned when a claim is attempted with a non-positive owner id.
var ErrInvalidOwner = errors.New("owner id must be a positive integer")

// Coord is a cell coordinate on the unbounded, sparse maze grid.
// Y grows southwards: North is (0, -1).
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns the coordinate offset by (dx, dy).
func (c Coord) Add(dx, dy int) Coord {
	return Coord{X: c.X + dx, Y: c.Y + dy}
}

// Neighbors returns the four orthogonal neighbours in North, East, South, West order.
func (c Coord) Neighbors() [4]Coord {
	return [4]Coord{
		{c.X, c.Y - 1},
		{c.X + 1, c.Y},
		{c.X, c.Y + 1},
		{c.X - 1, c.Y},
	}
}

// Manhattan returns the grid distance between c and o.
func (c Coord) Manhattan(o Coord) int {
	return abs(c.X-o.X) + abs(c.Y-o.Y)
}

// Adjacent reports whether o is exactly one orthogonal step away from c.
func (c Coord) Adjacent(o Coord) bool {
	return c.Manhattan(o) == 1
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// field encodes the coordinate as a Redis hash field ("x,y").
func (c Coord) field() string {
	return strconv.Itoa(c.X) + "," + strconv.Itoa(c.Y)
}

// parseField decodes a Redis hash field produced by field.
func parseField(s string) (Coord, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return Coord{}, fmt.Errorf("malformed coordinate field %q", s)
	}
	x, err := strconv.Atoi(xs)
	if err != nil {
		return Coord{}, fmt.Errorf("malformed coordinate field %q: %w", s, err)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return Coord{}, fmt.Errorf("malformed coordinate field %q: %w", s, err)
	}
	return Coord{X: x, Y: y}, nil
}

// CellState is the best-known classification of a coordinate.
type CellState int

const (
	// Unknown is the state of every never-marked coordinate
	Unknown CellState = iota
	// Wall blocks movement
	Wall
	// Door is a door observed by some agent, possibly still locked
	Door
	// Empty was seen from a neighbour and looks passable
	Empty
	// Outside lies beyond the maze boundary; reaching it means an exit exists
	Outside
	// Start is an agent's starting cell
	Start
	// Visited was physically occupied by an agent
	Visited
)

var cellNames = [...]string{"unknown", "wall", "door", "empty", "outside", "start", "visited"}

func (s CellState) String() string {
	if s < 0 || int(s) >= len(cellNames) {
		return fmt.Sprintf("CellState(%d)", int(s))
	}
	return cellNames[s]
}

// Rune returns the single-character rendering used by Map.String.
func (s CellState) Rune() rune {
	switch s {
	case Wall:
		return '#'
	case Door:
		return '/'
	case Empty:
		return '.'
	case Outside:
		return 'O'
	case Start:
		return 'S'
	case Visited:
		return 'v'
	default:
		return '?'
	}
}

// Traversable reports whether an agent may plan a route through a cell in this state.
func (s CellState) Traversable() bool {
	return s == Visited || s == Start || s == Empty
}

// Explored reports whether an agent has physically stood on the cell.
func (s CellState) Explored() bool {
	return s == Visited || s == Start
}

// Merge returns the state a coordinate holds after incoming is marked over old.
// Physical presence (Start/Visited) always wins and is never demoted; Wall and Outside
// are sticky; Door is sticky against Empty.
func Merge(old, incoming CellState) CellState {
	if incoming == Start || incoming == Visited {
		return incoming
	}
	if old == Unknown {
		return incoming
	}
	if old == Start || old == Visited {
		return old
	}
	if old == Wall || old == Outside {
		return old
	}
	if incoming == Wall || incoming == Outside {
		return incoming
	}
	if old == Door || incoming == Door {
		return Door
	}
	return old
}

// releasesClaim reports whether a cell in state s no longer needs a reservation.
func releasesClaim(s CellState) bool {
	return s == Start || s == Visited
}

// ExitEvent is published when an agent faces a tile classified Outside.
type ExitEvent struct {
	From  Coord `json:"from"`  // cell the observing agent stood on
	Exit  Coord `json:"exit"`  // the outside cell it faced
	Owner int   `json:"owner"` // observing agent's owner id, 0 for a solo agent
}

// Snapshot is an isolated, point-in-time copy of the known cells.
type Snapshot map[Coord]CellState

// Get returns the state of c, Unknown when absent.
func (s Snapshot) Get(c Coord) CellState {
	if st, ok := s[c]; ok {
		return st
	}
	return Unknown
}

// Count returns how many cells hold any of the given states.
func (s Snapshot) Count(states ...CellState) int {
	n := 0
	for _, st := range s {
		for _, want := range states {
			if st == want {
				n++
				break
			}
		}
	}
	return n
}

// Cells returns the coordinates holding any of the given states.
func (s Snapshot) Cells(states ...CellState) []Coord {
	var out []Coord
	for c, st := range s {
		for _, want := range states {
			if st == want {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Any reports whether at least one cell holds state st.
func (s Snapshot) Any(st CellState) bool {
	for _, v := range s {
		if v == st {
			return true
		}
	}
	return false
}

// Stats counts known cells per state.
type Stats map[CellState]int

// StatsOf tallies a snapshot.
func StatsOf(s Snapshot) Stats {
	stats := make(Stats)
	for _, st := range s {
		stats[st]++
	}
	return stats
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
