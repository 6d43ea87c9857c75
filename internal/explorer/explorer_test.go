package explorer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dyluth/labyrinth/internal/crawl"
	"github.com/dyluth/labyrinth/internal/inventory"
	"github.com/dyluth/labyrinth/internal/maze"
	"github.com/dyluth/labyrinth/pkg/discovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastLimits() Limits {
	return Limits{
		MaxNoProgressRounds: 5,
		DoorAttempts:        3,
		KeylessDoorAttempts: 1,
		DoorBackoffInitial:  time.Millisecond,
		DoorBackoffMax:      2 * time.Millisecond,
		IdleBackoffInitial:  time.Millisecond,
		IdleBackoffMax:      5 * time.Millisecond,
	}
}

func setupExplorer(t *testing.T, ascii string, opts ...Option) (*Explorer, *maze.Maze) {
	t.Helper()
	m, err := maze.Parse(ascii)
	require.NoError(t, err)
	opts = append([]Option{WithLimits(fastLimits())}, opts...)
	return New(m.NewCrawler(), opts...), m
}

// drainExits counts exit events delivered within a short grace period.
func drainExits(sub *discovery.ExitSubscription) int {
	n := 0
	for {
		select {
		case _, ok := <-sub.Events():
			if !ok {
				return n
			}
			n++
		case <-time.After(100 * time.Millisecond):
			return n
		}
	}
}

func rooms(m *maze.Maze) []discovery.Coord {
	var out []discovery.Coord
	w, h := m.Size()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := discovery.Coord{X: x, Y: y}
			if m.Tile(c) == crawl.Empty {
				out = append(out, c)
			}
		}
	}
	return out
}

func TestIdentity(t *testing.T) {
	assert.False(t, Solo().IsCoordinated())
	assert.Equal(t, 0, Solo().Owner())

	id, err := Coordinated(3)
	require.NoError(t, err)
	assert.True(t, id.IsCoordinated())
	assert.Equal(t, 3, id.Owner())
	assert.Equal(t, "agent-3", id.String())

	_, err = Coordinated(0)
	assert.ErrorIs(t, err, ErrInvalidIdentity)
	_, err = Coordinated(-1)
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}

func TestLimits_WithDefaults(t *testing.T) {
	l := Limits{MaxNoProgressRounds: 7}.WithDefaults()
	assert.Equal(t, 7, l.MaxNoProgressRounds)
	assert.Equal(t, DefaultLimits().MaxIterations, l.MaxIterations)
	assert.Equal(t, DefaultLimits().DoorBackoffMax, l.DoorBackoffMax)
}

func TestStepForward(t *testing.T) {
	ctx := context.Background()
	e, _ := setupExplorer(t, "+-+\n| |\n|x|\n+-+")

	var moves []PositionEvent
	e.OnPositionChanged(func(ev PositionEvent) { moves = append(moves, ev) })

	t.Run("towards an empty room", func(t *testing.T) {
		assert.True(t, e.StepForward(ctx))
		require.Len(t, moves, 1)
		assert.Equal(t, discovery.Coord{X: 1, Y: 1}, moves[0].Position)
		assert.Equal(t, discovery.Visited, e.Store().Get(discovery.Coord{X: 1, Y: 1}))
		assert.True(t, e.HasStartedMoving())
	})

	t.Run("towards a wall", func(t *testing.T) {
		assert.False(t, e.StepForward(ctx))
		assert.Len(t, moves, 1)
		assert.Equal(t, discovery.Coord{X: 1, Y: 1}, e.Position())
	})
}

func TestMoveTo_NotAdjacent(t *testing.T) {
	e, _ := setupExplorer(t, "|x  |")

	for _, target := range []discovery.Coord{{X: 3, Y: 0}, {X: 2, Y: 1}, {X: 1, Y: 0}} {
		moved, err := e.MoveTo(context.Background(), target)
		assert.False(t, moved)
		assert.ErrorIs(t, err, ErrNotAdjacent, target.String())
	}
}

func TestMoveTo_TurnsTheShortWay(t *testing.T) {
	e, _ := setupExplorer(t, "+---+\n|  x|\n+---+")

	var turns []DirectionEvent
	e.OnDirectionChanged(func(ev DirectionEvent) { turns = append(turns, ev) })

	moved, err := e.MoveTo(context.Background(), discovery.Coord{X: 2, Y: 1})
	require.NoError(t, err)
	assert.True(t, moved)
	require.Len(t, turns, 1, "north to west is a single left turn")
	assert.Equal(t, crawl.West, turns[0].Facing)
}

func TestMoveTo_DoorWithoutKeyStaysDoor(t *testing.T) {
	e, _ := setupExplorer(t, "|x/|")
	door := discovery.Coord{X: 2, Y: 0}

	moved, err := e.MoveTo(context.Background(), door)
	require.NoError(t, err)
	assert.False(t, moved)
	assert.Equal(t, discovery.Door, e.Store().Get(door))
	assert.Equal(t, discovery.Coord{X: 1, Y: 0}, e.Position())
}

func TestMoveTo_DoorWithKey(t *testing.T) {
	e, m := setupExplorer(t, "+---+\n|xk/|\n+---+")
	ctx := context.Background()

	moved, err := e.MoveTo(ctx, discovery.Coord{X: 2, Y: 1})
	require.NoError(t, err)
	require.True(t, moved)
	assert.Equal(t, 1, e.KeyCount())

	moved, err = e.MoveTo(ctx, discovery.Coord{X: 3, Y: 1})
	require.NoError(t, err)
	assert.True(t, moved)
	assert.False(t, m.Locked(discovery.Coord{X: 3, Y: 1}))
	assert.Equal(t, 0, e.KeyCount(), "key stays in the door")
	assert.Equal(t, discovery.Visited, e.Store().Get(discovery.Coord{X: 3, Y: 1}))
}

func TestMoveTo_OutsideNotifiesOnce(t *testing.T) {
	store := discovery.NewMap()
	sub, err := store.SubscribeExitEvents(context.Background())
	require.NoError(t, err)
	defer sub.Close()

	id, err := Coordinated(4)
	require.NoError(t, err)
	e, _ := setupExplorer(t, "|x |", WithStore(store), WithIdentity(id))

	for i := 0; i < 3; i++ {
		moved, err := e.MoveTo(context.Background(), discovery.Coord{X: 1, Y: -1})
		require.NoError(t, err)
		assert.False(t, moved)
	}

	select {
	case ev := <-sub.Events():
		assert.Equal(t, discovery.ExitEvent{From: discovery.Coord{X: 1, Y: 0}, Exit: discovery.Coord{X: 1, Y: -1}, Owner: 4}, ev)
	case <-time.After(time.Second):
		t.Fatal("no exit event")
	}
	assert.Equal(t, 0, drainExits(sub))
	assert.True(t, e.ExitFound())
	assert.Equal(t, discovery.Outside, store.Get(discovery.Coord{X: 1, Y: -1}))
}

func TestExploreStep_VisitsEveryReachableCell(t *testing.T) {
	ascii := "+---+\n" +
		"|x  |\n" +
		"| + |\n" +
		"|   |\n" +
		"+---+"
	e, m := setupExplorer(t, ascii)

	moves := 0
	e.OnPositionChanged(func(PositionEvent) { moves++ })

	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		cont, err := e.ExploreStep(ctx)
		require.NoError(t, err)
		if !cont {
			break
		}
	}

	all := rooms(m)
	for _, c := range all {
		assert.True(t, e.Store().Get(c).Explored(), "room %v not visited", c)
	}
	assert.Greater(t, moves, len(all), "backtracking revisits cells")
	assert.False(t, e.ExitFound())
}

func TestExploreStep_SkipsCellsClaimedByOthers(t *testing.T) {
	store := discovery.NewMap()
	id, err := Coordinated(1)
	require.NoError(t, err)
	e, _ := setupExplorer(t, "+---+\n|x  |\n+---+", WithStore(store), WithIdentity(id))
	ctx := context.Background()

	east := discovery.Coord{X: 2, Y: 1}
	ok, err := store.TryClaim(east, 9)
	require.NoError(t, err)
	require.True(t, ok)

	cont, err := e.ExploreStep(ctx)
	require.NoError(t, err)
	assert.False(t, cont)
	assert.Equal(t, discovery.Coord{X: 1, Y: 1}, e.Position())

	require.True(t, store.TryRelease(east, 9))
	cont, err = e.ExploreStep(ctx)
	require.NoError(t, err)
	assert.True(t, cont)
	assert.Equal(t, east, e.Position())
	assert.False(t, store.IsClaimed(east), "claim dropped once visited")
}

func TestRun_ExploresEverythingWithoutExit(t *testing.T) {
	ascii := "+-----+\n" +
		"|x  | |\n" +
		"| +   |\n" +
		"|   + |\n" +
		"+-----+"
	e, m := setupExplorer(t, ascii)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Run(ctx))
	require.NoError(t, ctx.Err(), "run should finish on its own")

	for _, c := range rooms(m) {
		assert.True(t, e.Store().Get(c).Explored(), "room %v not visited", c)
	}
	assert.False(t, e.ExitFound())
}

func TestRun_KeyRoomDoorExit(t *testing.T) {
	tests := []struct {
		name  string
		ascii string
	}{
		{"exit behind a door", "+-----+\n|x   k|\n+--/--+"},
		{"single corridor", "|xk/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := discovery.NewMap()
			sub, err := store.SubscribeExitEvents(context.Background())
			require.NoError(t, err)
			defer sub.Close()

			e, _ := setupExplorer(t, tt.ascii, WithStore(store))
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()

			require.NoError(t, e.Run(ctx))
			assert.True(t, e.ExitFound())
			assert.Equal(t, 1, drainExits(sub))
		})
	}
}

func TestRun_UnreachableKeyNeverFindsExit(t *testing.T) {
	ascii := "+-----+\n" +
		"|x  |k|\n" +
		"+--/+-+"
	store := discovery.NewMap()
	sub, err := store.SubscribeExitEvents(context.Background())
	require.NoError(t, err)
	defer sub.Close()

	e, m := setupExplorer(t, ascii, WithStore(store))
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	require.NoError(t, e.Run(ctx))
	assert.False(t, e.ExitFound())
	assert.Equal(t, 0, drainExits(sub))
	assert.Equal(t, discovery.Door, store.Get(discovery.Coord{X: 3, Y: 2}))
	assert.True(t, m.Locked(discovery.Coord{X: 3, Y: 2}))
}

func TestRun_StopsOnCancel(t *testing.T) {
	ascii := "+-----+\n" +
		"|x  |k|\n" +
		"+--/+-+"
	limits := fastLimits()
	limits.MaxNoProgressRounds = 1000000
	e, _ := setupExplorer(t, ascii, WithLimits(limits))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRun_PreFilledBagOpensDoor(t *testing.T) {
	// the key room belongs to the door, but the explorer already carries that key
	e, _ := setupExplorer(t, "+---+\n|x/k|\n+---+", WithBag(inventory.New(inventory.Key(1))))
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	require.NoError(t, e.Run(ctx))
	assert.Equal(t, discovery.Visited, e.Store().Get(discovery.Coord{X: 3, Y: 1}))
	assert.Equal(t, 1, e.KeyCount(), "used one key, collected the other")
}

type flakyCrawler struct {
	*maze.Crawler
}

func (f flakyCrawler) TryWalk(context.Context, *inventory.Inventory) (*inventory.Inventory, error) {
	return nil, errors.New("connection reset")
}

func TestCrawlerFailuresAreTreatedAsBlocked(t *testing.T) {
	m, err := maze.Parse("+-+\n| |\n|x|\n+-+")
	require.NoError(t, err)
	e := New(flakyCrawler{m.NewCrawler()}, WithLimits(fastLimits()))

	assert.False(t, e.StepForward(context.Background()))
	assert.False(t, e.HasStartedMoving())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	assert.NoError(t, e.Run(ctx))
}

// pessimisticCrawler always claims the way ahead is blocked.
type pessimisticCrawler struct {
	*maze.Crawler
}

func (pessimisticCrawler) CanMoveForward(context.Context) bool { return false }

func TestMoveTo_WalksDespiteWrongHint(t *testing.T) {
	ctx := context.Background()
	m, err := maze.Parse("+---+\n|x  |\n+---+")
	require.NoError(t, err)

	t.Run("single move", func(t *testing.T) {
		e := New(pessimisticCrawler{m.NewCrawler()}, WithLimits(fastLimits()))

		moved, err := e.MoveTo(ctx, discovery.Coord{X: 2, Y: 1})
		require.NoError(t, err)
		assert.True(t, moved)
		assert.Equal(t, discovery.Coord{X: 2, Y: 1}, e.Position())
		assert.Equal(t, discovery.Visited, e.Store().Get(discovery.Coord{X: 2, Y: 1}))
	})

	t.Run("wall is not walked into", func(t *testing.T) {
		e := New(pessimisticCrawler{m.NewCrawler()}, WithLimits(fastLimits()))

		moved, err := e.MoveTo(ctx, discovery.Coord{X: 1, Y: 0})
		require.NoError(t, err)
		assert.False(t, moved)
		assert.Equal(t, discovery.Coord{X: 1, Y: 1}, e.Position())
	})

	t.Run("run visits every room", func(t *testing.T) {
		e := New(pessimisticCrawler{m.NewCrawler()}, WithLimits(fastLimits()))

		runCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		require.NoError(t, e.Run(runCtx))

		for _, c := range rooms(m) {
			assert.True(t, e.Store().Get(c).Explored(), "room %v not explored", c)
		}
		assert.Equal(t, discovery.Wall, e.Store().Get(discovery.Coord{X: 4, Y: 1}))
		assert.Positive(t, e.Moves())
	})
}
