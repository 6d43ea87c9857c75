package explorer

import (
	"context"
	"time"

	"github.com/dyluth/labyrinth/internal/pathfind"
	"github.com/dyluth/labyrinth/pkg/discovery"
)

// Run explores until an exit is known, nothing is left to explore, a loop bound is
// hit or ctx ends. Each round it opens doors it holds keys for, runs a bounded
// depth-first pass with frontier navigation, retries every known door, and then
// decides whether to wait for another agent, head for a frontier or stop.
//
// Run returns an error only when the explorer itself is misused; running out of
// options is not an error.
func (e *Explorer) Run(ctx context.Context) error {
	started := time.Now()
	e.store.Mark(e.crawler.Position(), discovery.Start)
	e.clearFailed()

	idle := newBackOff(e.limits.IdleBackoffInitial, e.limits.IdleBackoffMax)
	iterations, noProgress := 0, 0
	reason := "no_progress"

rounds:
	for noProgress < e.limits.MaxNoProgressRounds && iterations < e.limits.MaxIterations {
		if ctx.Err() != nil {
			reason = "cancelled"
			break
		}
		if e.exitKnown() {
			reason = "exit_found"
			break
		}
		progress := false

		if e.HasKey() && e.openDoorsWithKeys(ctx) {
			progress = true
			e.clearFailed()
			if err := e.exploreFully(ctx); err != nil {
				return err
			}
		}

		for steps := 1; steps <= e.limits.ExploreBudget; steps++ {
			if ctx.Err() != nil || e.ExitFound() {
				break
			}
			iterations++

			if e.HasKey() && steps%e.limits.KeyScanEvery == 0 && e.openDoorsWithKeys(ctx) {
				progress = true
				e.clearFailed()
				if err := e.exploreFully(ctx); err != nil {
					return err
				}
			}

			cont, err := e.ExploreStep(ctx)
			if err != nil {
				return err
			}
			if !cont {
				if e.hasUnexploredFrontier() && e.navigateToFrontier(ctx) {
					progress = true
					continue
				}
				break
			}
			progress = true
		}

		opened, err := e.openLockedDoors(ctx)
		if err != nil {
			return err
		}
		if opened {
			progress = true
			e.clearFailed()
		}

		if !progress && e.hasUnexploredFrontier() && e.navigateToFrontier(ctx) {
			noProgress = 0
			idle.Reset()
			continue
		}

		snap, ok := e.store.Snapshot()
		if !ok {
			if !progress {
				noProgress++
			}
			continue
		}
		if e.ExitFound() || snap.Any(discovery.Outside) {
			reason = "exit_found"
			break
		}

		doors := snap.Cells(discovery.Door)
		switch {
		case len(doors) > 0 && e.HasKey():
			byDistance(doors, e.crawler.Position())
			for _, door := range doors {
				if ctx.Err() != nil {
					break
				}
				if e.reachAndOpenDoor(ctx, door, snap) {
					progress = true
					e.clearFailed()
					if err := e.exploreFully(ctx); err != nil {
						return err
					}
					break
				}
			}
		case len(doors) > 0:
			if e.hasUnexploredFrontier() && e.navigateToFrontier(ctx) {
				progress = true
			}
		case e.hasUnexploredFrontier():
			if e.navigateToFrontier(ctx) {
				progress = true
			}
		default:
			if !progress {
				reason = "explored"
				break rounds
			}
		}

		if progress {
			noProgress = 0
			idle.Reset()
			continue
		}
		noProgress++
		if len(doors) > 0 && !wait(ctx, idle, e.limits.IdleBackoffMax) {
			reason = "cancelled"
			break
		}
	}

	if iterations >= e.limits.MaxIterations {
		reason = "iteration_cap"
	}
	e.logf("Run finished (%s) after %d steps, %d moves", reason, iterations, e.Moves())
	e.logEvent("run_finished", map[string]interface{}{
		"reason":      reason,
		"iterations":  iterations,
		"moves":       e.Moves(),
		"exit_found":  e.ExitFound(),
		"duration_ms": time.Since(started).Milliseconds(),
	})
	return nil
}

// exitKnown reports an exit seen by this explorer or recorded by anyone on the map.
func (e *Explorer) exitKnown() bool {
	if e.ExitFound() {
		return true
	}
	snap, ok := e.store.Snapshot()
	return ok && snap.Any(discovery.Outside)
}

// exploreFully re-explores after a door opened, periodically retrying doors with keys.
func (e *Explorer) exploreFully(ctx context.Context) error {
	for steps := 1; steps <= e.limits.FullExploreBudget; steps++ {
		if ctx.Err() != nil {
			return nil
		}
		cont, err := e.ExploreStep(ctx)
		if err != nil {
			return err
		}
		if !cont {
			if e.hasUnexploredFrontier() && e.navigateToFrontier(ctx) {
				steps = 0
				continue
			}
			return nil
		}

		if e.HasKey() && steps%(2*e.limits.KeyScanEvery) == 0 {
			if snap, ok := e.store.Snapshot(); ok && snap.Any(discovery.Door) && e.openDoorsWithKeys(ctx) {
				steps = 0
				e.clearFailed()
			}
		}
	}
	return nil
}

// exploreAfterDoor runs the bounded depth-first pass that follows a door opening.
func (e *Explorer) exploreAfterDoor(ctx context.Context) error {
	for steps := 0; steps < e.limits.ExploreBudget; steps++ {
		if ctx.Err() != nil {
			return nil
		}
		cont, err := e.ExploreStep(ctx)
		if err != nil {
			return err
		}
		if !cont {
			if e.hasUnexploredFrontier() && e.navigateToFrontier(ctx) {
				continue
			}
			return nil
		}
	}
	return nil
}

// openDoorsWithKeys tries every known door, nearest first, while carrying keys.
func (e *Explorer) openDoorsWithKeys(ctx context.Context) bool {
	if !e.HasKey() || ctx.Err() != nil {
		return false
	}
	snap, ok := e.store.Snapshot()
	if !ok {
		return false
	}
	doors := snap.Cells(discovery.Door)
	byDistance(doors, e.crawler.Position())

	for _, door := range doors {
		if ctx.Err() != nil || !e.HasKey() {
			break
		}
		if e.reachAndOpenDoor(ctx, door, snap) {
			e.path = e.path[:0]
			return true
		}
	}
	return false
}

// openLockedDoors sweeps all known doors, including ones found by other agents,
// exploring behind each door that opens.
func (e *Explorer) openLockedDoors(ctx context.Context) (bool, error) {
	anyOpened := false
	for round := 0; round < e.limits.DoorOpenRounds; round++ {
		if ctx.Err() != nil || e.ExitFound() {
			break
		}
		snap, ok := e.store.Snapshot()
		if !ok {
			break
		}
		doors := snap.Cells(discovery.Door)
		if len(doors) == 0 {
			break
		}
		byDistance(doors, e.crawler.Position())

		openedThisRound := false
		for _, door := range doors {
			if ctx.Err() != nil || e.ExitFound() {
				break
			}
			if !e.reachAndOpenDoor(ctx, door, snap) {
				continue
			}
			openedThisRound = true
			anyOpened = true
			e.path = e.path[:0]
			e.clearFailed()
			if err := e.exploreAfterDoor(ctx); err != nil {
				return anyOpened, err
			}
		}
		if !openedThisRound {
			break
		}
	}
	return anyOpened, nil
}

// reachAndOpenDoor routes onto the door cell, falling back to greedy steps when no
// route is known or the route breaks.
func (e *Explorer) reachAndOpenDoor(ctx context.Context, door discovery.Coord, snap discovery.Snapshot) bool {
	if ctx.Err() != nil {
		return false
	}
	route, ok := pathfind.FindPath(e.crawler.Position(), door, snap)
	if !ok || len(route) == 0 {
		return e.approachGreedy(ctx, door)
	}
	if !e.follow(ctx, route) {
		return e.approachGreedy(ctx, door)
	}
	return true
}

// approachGreedy steps towards target one axis at a time, X first.
func (e *Explorer) approachGreedy(ctx context.Context, target discovery.Coord) bool {
	for i := 0; i < e.limits.GreedySteps; i++ {
		if ctx.Err() != nil {
			return false
		}
		cur := e.crawler.Position()
		if cur == target {
			return true
		}
		if cur.Adjacent(target) {
			return e.step(ctx, target)
		}

		next := cur
		switch {
		case cur.X < target.X:
			next.X++
		case cur.X > target.X:
			next.X--
		case cur.Y < target.Y:
			next.Y++
		default:
			next.Y--
		}
		if !e.step(ctx, next) {
			return false
		}
	}
	return false
}
