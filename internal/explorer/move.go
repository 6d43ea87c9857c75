package explorer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dyluth/labyrinth/internal/crawl"
	"github.com/dyluth/labyrinth/internal/inventory"
	"github.com/dyluth/labyrinth/pkg/discovery"
)

var errDoorLocked = errors.New("door still locked")

// MoveTo turns towards an adjacent target, records what the crawler sees there and
// tries to step onto it. It returns ErrNotAdjacent for any other target.
//
// Facing Outside publishes an exit event and reports false. Facing a door starts a
// bounded retry loop alternating a plain walk (someone may have opened it) with an
// unlock attempt; on give-up the cell stays marked Door.
func (e *Explorer) MoveTo(ctx context.Context, target discovery.Coord) (bool, error) {
	cur := e.crawler.Position()
	dir, ok := crawl.Towards(cur, target)
	if !ok {
		return false, fmt.Errorf("cannot move from %v to %v: %w", cur, target, ErrNotAdjacent)
	}
	if ctx.Err() != nil {
		return false, nil
	}

	if !e.turnTo(ctx, dir) {
		return false, nil
	}

	tile, err := e.crawler.FacingTile(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.logf("Failed to observe %v: %v", target, err)
		}
		return false, nil
	}
	e.store.Mark(target, tile.CellState())

	switch tile {
	case crawl.Outside:
		e.reportExit(cur, target)
		return false, nil
	case crawl.Door:
		return e.passDoor(ctx, target), nil
	case crawl.Wall:
		return false, nil
	}
	// CanMoveForward is only a hint; the walk itself decides.
	if e.StepForward(ctx) {
		return true, nil
	}
	return e.TryForceStepForward(ctx), nil
}

// step is MoveTo for internal callers whose targets are adjacent by construction.
func (e *Explorer) step(ctx context.Context, target discovery.Coord) bool {
	moved, err := e.MoveTo(ctx, target)
	if err != nil {
		e.logf("%v", err)
		return false
	}
	return moved
}

// StepForward walks ahead if the crawler reports the way is free.
func (e *Explorer) StepForward(ctx context.Context) bool {
	if ctx.Err() != nil || !e.crawler.CanMoveForward(ctx) {
		return false
	}
	return e.walk(ctx)
}

// TryForceStepForward walks ahead without consulting CanMoveForward, offering the
// private bag to any door.
func (e *Explorer) TryForceStepForward(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	return e.walk(ctx)
}

func (e *Explorer) walk(ctx context.Context) bool {
	prev := e.crawler.Position()
	items, err := e.crawler.TryWalk(ctx, e.bag)
	if err != nil {
		if ctx.Err() == nil {
			e.logf("Walk from %v failed: %v", prev, err)
		}
		return false
	}
	if items == nil {
		return false
	}
	e.collect(items)

	pos := e.crawler.Position()
	if pos == prev {
		return false
	}
	e.store.Mark(pos, discovery.Visited)
	e.startedMoving.Store(true)
	e.moves.Add(1)
	e.firePosition()
	return true
}

// collect moves found items into the bag one by one. A failed transfer means
// someone else emptied the room first and ends the batch.
func (e *Explorer) collect(found *inventory.Inventory) {
	n := e.bag.MoveAllFrom(found)
	if n > 0 {
		e.logf("Collected %d item(s) at %v, carrying %d", n, e.crawler.Position(), e.bag.Count())
		e.logEvent("items_collected", map[string]interface{}{
			"x":     e.crawler.Position().X,
			"y":     e.crawler.Position().Y,
			"count": n,
		})
	}
}

// turnTo turns the shorter way round to face dir.
func (e *Explorer) turnTo(ctx context.Context, dir crawl.Direction) bool {
	n := crawl.Turns(e.crawler.Facing(), dir)
	for n != 0 {
		var err error
		if n > 0 {
			err = e.crawler.TurnRight(ctx)
			n--
		} else {
			err = e.crawler.TurnLeft(ctx)
			n++
		}
		if err != nil {
			if ctx.Err() == nil {
				e.logf("Turn towards %v failed: %v", dir, err)
			}
			return false
		}
		e.fireTurn()
	}
	return true
}

func (e *Explorer) reportExit(from, exit discovery.Coord) {
	if !e.exitFound.CompareAndSwap(false, true) {
		return
	}
	e.logf("Exit found at %v (from %v)", exit, from)
	e.store.NotifyExitFound(discovery.ExitEvent{From: from, Exit: exit, Owner: e.identity.owner})
	e.logEvent("exit_found", map[string]interface{}{
		"from_x": from.X,
		"from_y": from.Y,
		"exit_x": exit.X,
		"exit_y": exit.Y,
	})
}

// passDoor retries walking through the door ahead with exponential backoff.
func (e *Explorer) passDoor(ctx context.Context, door discovery.Coord) bool {
	attempts := e.limits.DoorAttempts
	if !e.HasKey() {
		attempts = e.limits.KeylessDoorAttempts
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(newBackOff(e.limits.DoorBackoffInitial, e.limits.DoorBackoffMax), uint64(attempts-1)),
		ctx,
	)
	err := backoff.Retry(func() error {
		if e.TryForceStepForward(ctx) {
			return nil
		}
		unlocked, err := e.crawler.TryUnlock(ctx, e.bag)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			e.logf("Unlock of %v failed: %v", door, err)
		}
		if unlocked && e.TryForceStepForward(ctx) {
			return nil
		}
		return errDoorLocked
	}, b)
	if err != nil {
		return false
	}

	e.logEvent("door_opened", map[string]interface{}{
		"x":    door.X,
		"y":    door.Y,
		"keys": e.bag.Count(),
	})
	return true
}

func newBackOff(initial, maxInterval time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// wait sleeps for the next idle interval; false means ctx ended first.
func wait(ctx context.Context, b backoff.BackOff, ceiling time.Duration) bool {
	d := b.NextBackOff()
	if d == backoff.Stop {
		d = ceiling
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
