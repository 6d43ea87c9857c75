package discovery

import (
	"fmt"

	"github.com/google/uuid"
)

// Redis key pattern helpers
//
// All keys and Pub/Sub channels are namespaced by session so several exploration
// sessions can share one Redis server without interference.
//
// Key pattern: labyrinth:{session}:{entity}
// Channel pattern: labyrinth:{session}:{event_type}_events

// CellsKey returns the Redis key of the hash holding cell states.
// Pattern: labyrinth:{session}:cells (field "x,y" -> state number)
func CellsKey(session string) string {
	return fmt.Sprintf("labyrinth:%s:cells", session)
}

// ClaimsKey returns the Redis key of the hash holding frontier claims.
// Pattern: labyrinth:{session}:claims (field "x,y" -> owner id)
func ClaimsKey(session string) string {
	return fmt.Sprintf("labyrinth:%s:claims", session)
}

// ExitEventsChannel returns the Pub/Sub channel carrying exit observations.
// Pattern: labyrinth:{session}:exit_events
func ExitEventsChannel(session string) string {
	return fmt.Sprintf("labyrinth:%s:exit_events", session)
}

// NewSessionName returns a fresh, unique session name.
func NewSessionName() string {
	return uuid.New().String()
}
