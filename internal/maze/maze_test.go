package maze

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dyluth/labyrinth/internal/crawl"
	"github.com/dyluth/labyrinth/internal/inventory"
	"github.com/dyluth/labyrinth/pkg/discovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	m, err := Parse("\n+--+\n|xk/\n+--+\n\n")
	require.NoError(t, err)

	w, h := m.Size()
	assert.Equal(t, 4, w)
	assert.Equal(t, 3, h)
	assert.Equal(t, []discovery.Coord{{X: 1, Y: 1}}, m.Starts())
	assert.Equal(t, 1, m.Doors())

	assert.Equal(t, crawl.Wall, m.Tile(discovery.Coord{X: 0, Y: 1}))
	assert.Equal(t, crawl.Empty, m.Tile(discovery.Coord{X: 2, Y: 1}))
	assert.Equal(t, crawl.Door, m.Tile(discovery.Coord{X: 3, Y: 1}))
	assert.Equal(t, crawl.Outside, m.Tile(discovery.Coord{X: 4, Y: 1}))
	assert.Equal(t, crawl.Outside, m.Tile(discovery.Coord{X: 1, Y: -1}))
	assert.True(t, m.Locked(discovery.Coord{X: 3, Y: 1}))
}

func TestParse_PadsShortLines(t *testing.T) {
	m, err := Parse("+---+\n|x\n+---+")
	require.NoError(t, err)
	assert.Equal(t, crawl.Empty, m.Tile(discovery.Coord{X: 4, Y: 1}))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		ascii string
	}{
		{"empty", "\n\n"},
		{"unknown character", "|x#|"},
		{"no start", "| k/|"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.ascii)
			assert.ErrorIs(t, err, ErrInvalidMap)
		})
	}
}

func TestParse_UnmatchedDoorStaysLocked(t *testing.T) {
	m, err := Parse("|x/|")
	require.NoError(t, err)

	c := m.NewCrawler()
	ctx := context.Background()
	require.NoError(t, c.TurnRight(ctx))

	ok, err := c.TryUnlock(ctx, inventory.New(inventory.Key(7)))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, m.Locked(discovery.Coord{X: 2, Y: 0}))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "maze.txt")
	require.NoError(t, os.WriteFile(path, []byte("|x |\n"), 0644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, m.Starts(), 1)

	_, err = Load(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestCrawler_KeyAndDoor(t *testing.T) {
	ctx := context.Background()
	m, err := Parse("|xk/")
	require.NoError(t, err)

	c := m.NewCrawler()
	assert.Equal(t, crawl.North, c.Facing())

	tile, err := c.FacingTile(ctx)
	require.NoError(t, err)
	assert.Equal(t, crawl.Outside, tile, "row above the map is outside")

	require.NoError(t, c.TurnRight(ctx))
	assert.Equal(t, crawl.East, c.Facing())
	assert.True(t, c.CanMoveForward(ctx))

	bag := inventory.New()
	items, err := c.TryWalk(ctx, bag)
	require.NoError(t, err)
	require.NotNil(t, items)
	assert.Equal(t, discovery.Coord{X: 2, Y: 0}, c.Position())
	assert.Equal(t, 1, bag.MoveAllFrom(items))

	tile, err = c.FacingTile(ctx)
	require.NoError(t, err)
	assert.Equal(t, crawl.Door, tile)
	assert.False(t, c.CanMoveForward(ctx))

	items, err = c.TryWalk(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, items, "locked door blocks without keys")

	ok, err := c.TryUnlock(ctx, bag)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, bag.HasItems(), "key stays in the door")

	ok, err = c.TryUnlock(ctx, inventory.New())
	require.NoError(t, err)
	assert.True(t, ok, "open door reports success")

	items, err = c.TryWalk(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, items)
	assert.False(t, items.HasItems())
	assert.Equal(t, discovery.Coord{X: 3, Y: 0}, c.Position())

	tile, err = c.FacingTile(ctx)
	require.NoError(t, err)
	assert.Equal(t, crawl.Outside, tile)
	items, err = c.TryWalk(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, items, "cannot walk outside")
}

func TestCrawler_WalkOpensDoorWithOfferedKeys(t *testing.T) {
	ctx := context.Background()
	m, err := Parse("k/x")
	require.NoError(t, err)

	c := m.NewCrawler()
	require.NoError(t, c.TurnLeft(ctx))

	items, err := c.TryWalk(ctx, inventory.New(inventory.Key(1)))
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.False(t, m.Locked(discovery.Coord{X: 1, Y: 0}))
}

func TestCrawler_WrongKeyIsNotConsumed(t *testing.T) {
	ctx := context.Background()
	m, err := Parse("k/x/k")
	require.NoError(t, err)

	c := m.NewCrawlerAt(discovery.Coord{X: 2, Y: 0})
	require.NoError(t, c.TurnRight(ctx))

	wrong := inventory.New(inventory.Key(99))
	ok, err := c.TryUnlock(ctx, wrong)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, wrong.Count())
}

func TestCrawler_CancelledContext(t *testing.T) {
	m, err := Parse("|x |")
	require.NoError(t, err)
	c := m.NewCrawler()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.FacingTile(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = c.TryWalk(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, c.TurnRight(ctx), context.Canceled)
	assert.False(t, c.CanMoveForward(ctx))
	assert.Equal(t, crawl.North, c.Facing())
}

func TestMaze_String(t *testing.T) {
	m, err := Parse("+---+\n|xk/|\n+---+")
	require.NoError(t, err)
	assert.Equal(t, "+---+\n|xk/|\n+---+\n", m.String())

	ctx := context.Background()
	c := m.NewCrawler()
	require.NoError(t, c.TurnRight(ctx))
	bag := inventory.New()
	items, err := c.TryWalk(ctx, bag)
	require.NoError(t, err)
	bag.MoveAllFrom(items)
	_, err = c.TryUnlock(ctx, bag)
	require.NoError(t, err)

	assert.Equal(t, "+---+\n|x  |\n+---+\n", m.String())
}
