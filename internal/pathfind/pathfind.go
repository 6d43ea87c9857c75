// Package pathfind finds shortest routes over a snapshot of the discovered map.
package pathfind

import "github.com/dyluth/labyrinth/pkg/discovery"

// FindPath returns the shortest route from start to goal through cells known to be
// traversable (Visited, Start, Empty). The goal itself may be in any state, so a route
// can end on an unexplored cell or a locked door. The path excludes start and includes
// goal. ok is false when no route exists with current knowledge.
func FindPath(start, goal discovery.Coord, snap discovery.Snapshot) (path []discovery.Coord, ok bool) {
	if start == goal {
		return []discovery.Coord{}, true
	}

	parent := map[discovery.Coord]discovery.Coord{start: start}
	queue := []discovery.Coord{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, next := range cur.Neighbors() {
			if _, seen := parent[next]; seen {
				continue
			}
			if next != goal && !snap.Get(next).Traversable() {
				continue
			}
			parent[next] = cur
			if next == goal {
				return walkBack(parent, start, goal), true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

func walkBack(parent map[discovery.Coord]discovery.Coord, start, goal discovery.Coord) []discovery.Coord {
	var path []discovery.Coord
	for c := goal; c != start; c = parent[c] {
		path = append(path, c)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Reachable returns every traversable cell connected to start, start included.
func Reachable(start discovery.Coord, snap discovery.Snapshot) map[discovery.Coord]bool {
	seen := map[discovery.Coord]bool{start: true}
	queue := []discovery.Coord{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range cur.Neighbors() {
			if seen[next] || !snap.Get(next).Traversable() {
				continue
			}
			seen[next] = true
			queue = append(queue, next)
		}
	}
	return seen
}
