package explorer

import (
	"context"
	"slices"

	"github.com/dyluth/labyrinth/internal/pathfind"
	"github.com/dyluth/labyrinth/pkg/discovery"
)

// ExploreStep performs one unit of depth-first exploration: it records the current
// cell as Visited and moves to the first untried neighbour (North, East, South, West),
// or backtracks along the path stack until a cell with untried neighbours is reached.
// It returns false when there is nothing left to try from here or an exit was found.
func (e *Explorer) ExploreStep(ctx context.Context) (bool, error) {
	if ctx.Err() != nil || e.ExitFound() {
		return false, nil
	}

	cur := e.crawler.Position()
	e.store.Mark(cur, discovery.Visited)

	for _, next := range cur.Neighbors() {
		if ctx.Err() != nil {
			return false, nil
		}
		if e.isFailed(next) {
			continue
		}
		switch e.store.Get(next) {
		case discovery.Visited, discovery.Start, discovery.Wall, discovery.Outside, discovery.Door:
			continue
		}

		claimed, ok := e.claim(next)
		if !ok {
			continue
		}

		moved, err := e.MoveTo(ctx, next)
		if err != nil {
			return false, err
		}
		if moved {
			e.path = append(e.path, cur)
			return true, nil
		}
		e.failed[next] = struct{}{}
		if claimed {
			e.store.TryRelease(next, e.identity.owner)
		}
		if e.ExitFound() {
			return false, nil
		}
	}

	return e.backtrack(ctx)
}

// claim reserves c for a coordinated explorer. ok is false when another agent owns it.
// claimed reports whether this call took the claim.
func (e *Explorer) claim(c discovery.Coord) (claimed, ok bool) {
	if !e.identity.IsCoordinated() {
		return false, true
	}
	switch owner := e.store.ClaimOwner(c); owner {
	case e.identity.owner:
		return false, true
	case 0:
	default:
		return false, false
	}
	got, err := e.store.TryClaim(c, e.identity.owner)
	if err != nil {
		e.logf("Claim of %v failed: %v", c, err)
		return false, false
	}
	return got, got
}

func (e *Explorer) backtrack(ctx context.Context) (bool, error) {
	for len(e.path) > 0 {
		if ctx.Err() != nil {
			return false, nil
		}
		prev := e.path[len(e.path)-1]
		e.path = e.path[:len(e.path)-1]

		if !prev.Adjacent(e.crawler.Position()) {
			// the stack belongs to a position we have since left
			e.path = e.path[:0]
			return false, nil
		}
		moved, err := e.MoveTo(ctx, prev)
		if err != nil {
			return false, err
		}
		if moved && len(e.unexploredNeighbors()) > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (e *Explorer) isFailed(c discovery.Coord) bool {
	_, ok := e.failed[c]
	return ok
}

func (e *Explorer) clearFailed() {
	clear(e.failed)
}

func unexplored(s discovery.CellState) bool {
	return s == discovery.Unknown || s == discovery.Empty
}

// unexploredNeighbors lists the untried Unknown or Empty neighbours of the current cell.
func (e *Explorer) unexploredNeighbors() []discovery.Coord {
	var out []discovery.Coord
	for _, n := range e.crawler.Position().Neighbors() {
		if !e.isFailed(n) && unexplored(e.store.Get(n)) {
			out = append(out, n)
		}
	}
	return out
}

// frontierCells returns the visited cells that still border untried Unknown or Empty
// cells, nearest to the crawler first.
func (e *Explorer) frontierCells(snap discovery.Snapshot) []discovery.Coord {
	var out []discovery.Coord
	for c, st := range snap {
		if !st.Explored() {
			continue
		}
		for _, n := range c.Neighbors() {
			if !e.isFailed(n) && unexplored(snap.Get(n)) {
				out = append(out, c)
				break
			}
		}
	}
	byDistance(out, e.crawler.Position())
	return out
}

func (e *Explorer) hasUnexploredFrontier() bool {
	snap, ok := e.store.Snapshot()
	return ok && len(e.frontierCells(snap)) > 0
}

// byDistance sorts cells nearest to pos first; ties go by row then column.
func byDistance(cells []discovery.Coord, pos discovery.Coord) {
	slices.SortFunc(cells, func(a, b discovery.Coord) int {
		if d := a.Manhattan(pos) - b.Manhattan(pos); d != 0 {
			return d
		}
		if a.Y != b.Y {
			return a.Y - b.Y
		}
		return a.X - b.X
	})
}

// navigateToFrontier routes to the nearest reachable frontier cell and tries its
// unexplored neighbours.
func (e *Explorer) navigateToFrontier(ctx context.Context) bool {
	snap, ok := e.store.Snapshot()
	if !ok {
		return false
	}

	for _, target := range e.frontierCells(snap) {
		if ctx.Err() != nil {
			return false
		}
		pos := e.crawler.Position()
		if pos == target {
			e.path = e.path[:0]
			return e.tryUnexploredNeighbors(ctx)
		}

		route, found := pathfind.FindPath(pos, target, snap)
		if !found || len(route) == 0 {
			continue
		}
		if e.follow(ctx, route) {
			e.path = e.path[:0]
			e.tryUnexploredNeighbors(ctx)
			return true
		}
	}
	return false
}

// follow walks route step by step, stopping at the first failed move.
func (e *Explorer) follow(ctx context.Context, route []discovery.Coord) bool {
	for _, next := range route {
		if ctx.Err() != nil || !e.step(ctx, next) {
			return false
		}
	}
	return true
}

// tryUnexploredNeighbors moves into the first untried neighbour that accepts us,
// marking the others failed.
func (e *Explorer) tryUnexploredNeighbors(ctx context.Context) bool {
	for _, n := range e.unexploredNeighbors() {
		if ctx.Err() != nil {
			return false
		}
		if e.step(ctx, n) {
			return true
		}
		e.failed[n] = struct{}{}
	}
	return false
}
