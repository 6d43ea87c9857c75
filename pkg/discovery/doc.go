// Package discovery provides the shared discovered map that cooperating maze
// explorers read and write.
//
// # Overview
//
// The discovered map is the only state shared between agents. Each agent publishes
// what it observes (walls, doors, passable cells, the outside) and where it has been;
// every agent plans its next moves from the same map. No agent ever sees the maze
// itself, only what has been recorded here.
//
// # Core Concepts
//
// Cell states are merged, never blindly overwritten: physically standing on a cell
// (Start, Visited) is the strongest evidence and always wins, Wall and Outside are
// sticky, and a Door is never downgraded to Empty. See Merge.
//
// Claims are exclusive, releasable reservations on a coordinate. They stop two agents
// from committing to the same unexplored cell; they do not lock movement. A claim is
// dropped automatically once the cell becomes Start or Visited.
//
// Exit events are published by the agent that faced an Outside tile. Marking a cell
// Outside does not publish anything by itself.
//
// # Backends
//
// Map keeps everything in process memory behind lock-striped shards. RedisMap keeps
// the same data in Redis so agents in several processes can share a session:
//
//	store, err := discovery.NewRedisMap(&redis.Options{Addr: "localhost:6379"}, discovery.NewSessionName())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	store.Mark(discovery.Coord{X: 1, Y: 1}, discovery.Start)
//	ok, err := store.TryClaim(discovery.Coord{X: 2, Y: 1}, 1)
//
// # Redis Schema
//
// Cells:  labyrinth:{session}:cells  (hash, field "x,y" -> state number)
// Claims: labyrinth:{session}:claims (hash, field "x,y" -> owner id)
//
// Pub/Sub channel: labyrinth:{session}:exit_events (JSON ExitEvent)
package discovery
