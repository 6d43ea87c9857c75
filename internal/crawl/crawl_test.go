package crawl

import (
	"testing"

	"github.com/dyluth/labyrinth/pkg/discovery"
	"github.com/stretchr/testify/assert"
)

func TestDirection_Turning(t *testing.T) {
	assert.Equal(t, East, North.Right())
	assert.Equal(t, North, West.Right())
	assert.Equal(t, West, North.Left())
	assert.Equal(t, South, West.Left())

	for d := North; d <= West; d++ {
		assert.Equal(t, d, d.Right().Left(), d.String())
	}
}

func TestDirection_Delta(t *testing.T) {
	origin := discovery.Coord{X: 5, Y: 5}
	for d := North; d <= West; d++ {
		dx, dy := d.Delta()
		got, ok := Towards(origin, origin.Add(dx, dy))
		assert.True(t, ok)
		assert.Equal(t, d, got)
	}

	_, ok := Towards(origin, discovery.Coord{X: 6, Y: 6})
	assert.False(t, ok)
	_, ok = Towards(origin, origin)
	assert.False(t, ok)
}

func TestTurns(t *testing.T) {
	tests := []struct {
		from, to Direction
		expected int
	}{
		{North, North, 0},
		{North, East, 1},
		{North, South, 2},
		{North, West, -1},
		{West, North, 1},
		{East, North, -1},
		{South, North, 2},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, Turns(tt.from, tt.to))
		})
	}
}

func TestTileType_CellState(t *testing.T) {
	assert.Equal(t, discovery.Empty, Empty.CellState())
	assert.Equal(t, discovery.Wall, Wall.CellState())
	assert.Equal(t, discovery.Door, Door.CellState())
	assert.Equal(t, discovery.Outside, Outside.CellState())
	assert.Equal(t, "door", Door.String())
}
