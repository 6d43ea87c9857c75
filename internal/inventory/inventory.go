// Package inventory models the items carried by agents and held by rooms and doors.
package inventory

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Kind classifies a collectible item.
type Kind int

const (
	// KindKey opens the door it was cut for.
	KindKey Kind = iota + 1
)

func (k Kind) String() string {
	if k == KindKey {
		return "key"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Item is a single collectible.
type Item struct {
	Kind Kind
	// Door identifies the door a key opens; 0 for items that open nothing.
	Door int
}

// Key returns a key cut for door.
func Key(door int) Item {
	return Item{Kind: KindKey, Door: door}
}

// Opens reports whether the item is a key for door.
func (i Item) Opens(door int) bool {
	return i.Kind == KindKey && door != 0 && i.Door == door
}

var seq atomic.Uint64

// Inventory is an unordered multiset of items, safe for concurrent use.
// Transfers between inventories lock both in creation order so opposite transfers
// cannot deadlock.
type Inventory struct {
	id    uint64
	mu    sync.Mutex
	items []Item
}

// New creates an inventory holding items.
func New(items ...Item) *Inventory {
	inv := &Inventory{id: seq.Add(1)}
	inv.items = append(inv.items, items...)
	return inv
}

// Add puts items into the inventory.
func (inv *Inventory) Add(items ...Item) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.items = append(inv.items, items...)
}

// Count returns the number of items held.
func (inv *Inventory) Count() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return len(inv.items)
}

// HasItems reports whether the inventory is non-empty.
func (inv *Inventory) HasItems() bool {
	return inv.Count() > 0
}

// CountKind returns how many items of kind k are held.
func (inv *Inventory) CountKind(k Kind) int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	n := 0
	for _, it := range inv.items {
		if it.Kind == k {
			n++
		}
	}
	return n
}

// Items returns a copy of the held items.
func (inv *Inventory) Items() []Item {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	out := make([]Item, len(inv.items))
	copy(out, inv.items)
	return out
}

// IndexOf returns the position of the first item matching pred, or -1.
func (inv *Inventory) IndexOf(pred func(Item) bool) int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for i, it := range inv.items {
		if pred(it) {
			return i
		}
	}
	return -1
}

// MoveItemFrom moves the nth item of from into inv. It returns false and changes
// nothing when from is inv, from is empty, or nth is out of range (for example
// because a concurrent consumer drained it first).
func (inv *Inventory) MoveItemFrom(from *Inventory, nth int) bool {
	if from == nil || from == inv {
		return false
	}

	first, second := inv, from
	if from.id < inv.id {
		first, second = from, inv
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if nth < 0 || nth >= len(from.items) {
		return false
	}
	item := from.items[nth]
	from.items = append(from.items[:nth], from.items[nth+1:]...)
	inv.items = append(inv.items, item)
	return true
}

// MoveAllFrom moves items one at a time until from is empty or a transfer fails.
// It returns how many items were moved.
func (inv *Inventory) MoveAllFrom(from *Inventory) int {
	moved := 0
	for from != nil && from.HasItems() {
		if !inv.MoveItemFrom(from, 0) {
			break
		}
		moved++
	}
	return moved
}
