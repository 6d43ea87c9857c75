// Package maze is an in-process maze body: an ASCII parser, the tile model with
// locked doors and key rooms, and a local crawler implementing crawl.Crawler.
//
// Map characters:
//
//	x      start position (a room)
//	space  room
//	+ - |  wall
//	/      locked door
//	k      room holding the key of one door
//
// Every coordinate outside the parsed rectangle is Outside.
package maze

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dyluth/labyrinth/internal/crawl"
	"github.com/dyluth/labyrinth/pkg/discovery"
)

// ErrInvalidMap is returned for maps that cannot be parsed.
var ErrInvalidMap = errors.New("invalid map")

// Maze is a parsed maze. Its layout is immutable; door and room contents change as
// crawlers open doors and collect keys, and are safe for concurrent use.
type Maze struct {
	tiles  [][]tile
	width  int
	height int
	starts []discovery.Coord
	doors  int
}

// Parse builds a maze from its ASCII drawing. Leading and trailing blank lines are
// ignored and short lines are padded with rooms.
func Parse(ascii string) (*Maze, error) {
	lines := strings.Split(strings.ReplaceAll(ascii, "\r\n", "\n"), "\n")
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: map is empty", ErrInvalidMap)
	}

	width := 0
	for _, l := range lines {
		width = max(width, len(l))
	}

	m := &Maze{width: width, height: len(lines), tiles: make([][]tile, len(lines))}
	var km keymaster
	for y, line := range lines {
		line += strings.Repeat(" ", width-len(line))
		row := make([]tile, width)
		for x, ch := range []byte(line) {
			switch ch {
			case 'x':
				m.starts = append(m.starts, discovery.Coord{X: x, Y: y})
				row[x] = newRoom()
			case ' ':
				row[x] = newRoom()
			case '+', '-', '|':
				row[x] = wall{}
			case '/':
				m.doors++
				row[x] = km.newDoor(m.doors)
			case 'k':
				row[x] = km.newKeyRoom()
			default:
				return nil, fmt.Errorf("%w: unknown character %q at line %d, col %d", ErrInvalidMap, ch, y, x)
			}
		}
		m.tiles[y] = row
	}

	if len(m.starts) == 0 {
		return nil, fmt.Errorf("%w: no start position ('x')", ErrInvalidMap)
	}
	if doors, rooms := km.unmatched(); doors > 0 || rooms > 0 {
		log.Printf("[Maze] %d door(s) without a key room, %d key room(s) without a door", doors, rooms)
	}
	return m, nil
}

// Load parses the maze stored in path.
func Load(path string) (*Maze, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read maze file %s: %w", path, err)
	}
	m, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse maze file %s: %w", path, err)
	}
	return m, nil
}

// Size returns the width and height of the parsed rectangle.
func (m *Maze) Size() (width, height int) {
	return m.width, m.height
}

// Starts returns the start positions in reading order.
func (m *Maze) Starts() []discovery.Coord {
	out := make([]discovery.Coord, len(m.starts))
	copy(out, m.starts)
	return out
}

// Doors returns the number of doors.
func (m *Maze) Doors() int {
	return m.doors
}

// Tile returns what a crawler facing c would observe.
func (m *Maze) Tile(c discovery.Coord) crawl.TileType {
	return m.at(c).kind()
}

// Locked reports whether c is a door that is still locked.
func (m *Maze) Locked(c discovery.Coord) bool {
	d, ok := m.at(c).(*door)
	return ok && d.locked()
}

func (m *Maze) at(c discovery.Coord) tile {
	if c.X < 0 || c.Y < 0 || c.X >= m.width || c.Y >= m.height {
		return outside{}
	}
	return m.tiles[c.Y][c.X]
}

// NewCrawler places a crawler on the first start position, facing North.
func (m *Maze) NewCrawler() *Crawler {
	return m.NewCrawlerAt(m.starts[0])
}

// NewCrawlerAt places a crawler on c, facing North.
func (m *Maze) NewCrawlerAt(c discovery.Coord) *Crawler {
	return &Crawler{maze: m, pos: c, dir: crawl.North}
}

// String draws the maze in its current state: opened doors show as rooms and
// collected keys disappear.
func (m *Maze) String() string {
	starts := make(map[discovery.Coord]bool, len(m.starts))
	for _, s := range m.starts {
		starts[s] = true
	}

	var sb strings.Builder
	for y, row := range m.tiles {
		for x, t := range row {
			switch t := t.(type) {
			case wall:
				sb.WriteByte(wallRune(m, x, y))
			case *door:
				if t.locked() {
					sb.WriteByte('/')
				} else {
					sb.WriteByte(' ')
				}
			case *room:
				switch {
				case starts[discovery.Coord{X: x, Y: y}]:
					sb.WriteByte('x')
				case t.items.HasItems():
					sb.WriteByte('k')
				default:
					sb.WriteByte(' ')
				}
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// wallRune picks '|' for vertical runs, '-' for horizontal runs and '+' elsewhere.
func wallRune(m *Maze, x, y int) byte {
	isWall := func(c discovery.Coord) bool { return m.Tile(c) == crawl.Wall }
	vertical := isWall(discovery.Coord{X: x, Y: y - 1}) || isWall(discovery.Coord{X: x, Y: y + 1})
	horizontal := isWall(discovery.Coord{X: x - 1, Y: y}) || isWall(discovery.Coord{X: x + 1, Y: y})
	switch {
	case vertical && !horizontal:
		return '|'
	case horizontal && !vertical:
		return '-'
	}
	return '+'
}
