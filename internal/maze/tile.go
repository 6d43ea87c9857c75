package maze

import (
	"github.com/dyluth/labyrinth/internal/crawl"
	"github.com/dyluth/labyrinth/internal/inventory"
)

// tile is one cell of a parsed maze.
type tile interface {
	kind() crawl.TileType
	traversable() bool
	// pass returns the inventory a crawler entering the tile can collect from.
	pass() *inventory.Inventory
}

type wall struct{}

func (wall) kind() crawl.TileType       { return crawl.Wall }
func (wall) traversable() bool          { return false }
func (wall) pass() *inventory.Inventory { return nil }

type outside struct{}

func (outside) kind() crawl.TileType       { return crawl.Outside }
func (outside) traversable() bool          { return false }
func (outside) pass() *inventory.Inventory { return nil }

// room is a passable cell; key rooms hold a key until someone collects it.
type room struct {
	items *inventory.Inventory
}

func newRoom() *room {
	return &room{items: inventory.New()}
}

func (r *room) kind() crawl.TileType       { return crawl.Empty }
func (r *room) traversable() bool          { return true }
func (r *room) pass() *inventory.Inventory { return r.items }

// door is locked while its keyhole is empty. Opening it moves the matching key from
// the offered inventory into the keyhole; a door never locks again.
type door struct {
	id      int
	keyhole *inventory.Inventory
}

func newDoor(id int) *door {
	return &door{id: id, keyhole: inventory.New()}
}

func (d *door) kind() crawl.TileType { return crawl.Door }
func (d *door) traversable() bool    { return !d.locked() }
func (d *door) locked() bool         { return !d.keyhole.HasItems() }

// pass yields nothing: the key stays in the keyhole.
func (d *door) pass() *inventory.Inventory { return inventory.New() }

// open tries the keys in offered. Keys cut for other doors are left where they are.
func (d *door) open(offered *inventory.Inventory) bool {
	if !d.locked() {
		return true
	}
	if offered == nil {
		return false
	}
	nth := offered.IndexOf(func(it inventory.Item) bool { return it.Opens(d.id) })
	if nth < 0 {
		return false
	}
	d.keyhole.MoveItemFrom(offered, nth)
	return !d.locked()
}

// keymaster pairs every door with a key room, whichever appears first.
type keymaster struct {
	unplaced   []int
	emptyRooms []*room
}

func (k *keymaster) newDoor(id int) *door {
	k.unplaced = append(k.unplaced, id)
	k.place()
	return newDoor(id)
}

func (k *keymaster) newKeyRoom() *room {
	r := newRoom()
	k.emptyRooms = append(k.emptyRooms, r)
	k.place()
	return r
}

func (k *keymaster) place() {
	for len(k.unplaced) > 0 && len(k.emptyRooms) > 0 {
		r := k.emptyRooms[len(k.emptyRooms)-1]
		k.emptyRooms = k.emptyRooms[:len(k.emptyRooms)-1]
		r.items.Add(inventory.Key(k.unplaced[0]))
		k.unplaced = k.unplaced[1:]
	}
}

// unmatched reports doors without a key room and key rooms without a door.
func (k *keymaster) unmatched() (doors, rooms int) {
	return len(k.unplaced), len(k.emptyRooms)
}
