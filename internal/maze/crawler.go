package maze

import (
	"context"
	"sync"

	"github.com/dyluth/labyrinth/internal/crawl"
	"github.com/dyluth/labyrinth/internal/inventory"
	"github.com/dyluth/labyrinth/pkg/discovery"
)

// Crawler is a body walking a local Maze. It is safe for concurrent use.
type Crawler struct {
	maze *Maze

	mu  sync.Mutex
	pos discovery.Coord
	dir crawl.Direction
}

var _ crawl.Crawler = (*Crawler)(nil)

func (c *Crawler) Position() discovery.Coord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

func (c *Crawler) Facing() crawl.Direction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dir
}

// facing returns the coordinate and tile ahead. Callers hold c.mu.
func (c *Crawler) facing() (discovery.Coord, tile) {
	dx, dy := c.dir.Delta()
	ahead := c.pos.Add(dx, dy)
	return ahead, c.maze.at(ahead)
}

func (c *Crawler) CanMoveForward(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, t := c.facing()
	return t.traversable()
}

func (c *Crawler) FacingTile(ctx context.Context) (crawl.TileType, error) {
	if err := ctx.Err(); err != nil {
		return crawl.Empty, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, t := c.facing()
	return t.kind(), nil
}

// TryWalk moves one tile forward. A locked door ahead is first offered keys.
func (c *Crawler) TryWalk(ctx context.Context, keys *inventory.Inventory) (*inventory.Inventory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ahead, t := c.facing()
	if d, ok := t.(*door); ok && d.locked() && keys != nil {
		d.open(keys)
	}
	if !t.traversable() {
		return nil, nil
	}
	c.pos = ahead
	return t.pass(), nil
}

func (c *Crawler) TryUnlock(ctx context.Context, keys *inventory.Inventory) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	_, t := c.facing()
	d, ok := t.(*door)
	if !ok {
		return false, nil
	}
	return d.open(keys), nil
}

func (c *Crawler) TurnRight(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dir = c.dir.Right()
	return nil
}

func (c *Crawler) TurnLeft(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dir = c.dir.Left()
	return nil
}
