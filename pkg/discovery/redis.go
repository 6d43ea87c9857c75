package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultOpTimeout bounds every single Redis round trip made on behalf of an agent.
const defaultOpTimeout = 2 * time.Second

// markScript applies Merge server-side so concurrent agents in different processes
// cannot lose updates. KEYS[1]=cells, KEYS[2]=claims, ARGV[1]=field, ARGV[2]=incoming.
var markScript = redis.NewScript(fmt.Sprintf(`
local cur = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '%[1]d')
local inc = tonumber(ARGV[2])
local res
if inc == %[6]d or inc == %[7]d then
  res = inc
elseif cur == %[1]d then
  res = inc
elseif cur == %[6]d or cur == %[7]d then
  res = cur
elseif cur == %[2]d or cur == %[5]d then
  res = cur
elseif inc == %[2]d or inc == %[5]d then
  res = inc
elseif cur == %[3]d or inc == %[3]d then
  res = %[3]d
else
  res = cur
end
if res ~= %[1]d then
  redis.call('HSET', KEYS[1], ARGV[1], res)
end
if res == %[6]d or res == %[7]d then
  redis.call('HDEL', KEYS[2], ARGV[1])
end
return res
`, int(Unknown), int(Wall), int(Door), int(Empty), int(Outside), int(Start), int(Visited)))

// releaseScript deletes a claim only if the caller owns it.
// KEYS[1]=claims, ARGV[1]=field, ARGV[2]=owner.
var releaseScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], ARGV[1]) == ARGV[2] then
  return redis.call('HDEL', KEYS[1], ARGV[1])
end
return 0
`)

// RedisMap is a Store backed by Redis, letting agents in separate processes share one
// discovered map. Backend failures are environmental: they are logged and the
// operation is treated as not having happened.
// The map is thread-safe and can be used concurrently from multiple goroutines.
type RedisMap struct {
	rdb       *redis.Client
	session   string
	opTimeout time.Duration

	closeOnce sync.Once
}

var _ Store = (*RedisMap)(nil)

// NewRedisMap creates a Redis-backed store for the given session.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - session: exploration session identifier (must not be empty)
//
// Returns an error if session is empty.
func NewRedisMap(redisOpts *redis.Options, session string) (*RedisMap, error) {
	if session == "" {
		return nil, fmt.Errorf("session name cannot be empty")
	}

	return &RedisMap{
		rdb:       redis.NewClient(redisOpts),
		session:   session,
		opTimeout: defaultOpTimeout,
	}, nil
}

// Session returns the namespace this map writes under.
func (m *RedisMap) Session() string {
	return m.session
}

// Close closes the Redis connection. Implements io.Closer.
func (m *RedisMap) Close() error {
	var err error
	m.closeOnce.Do(func() { err = m.rdb.Close() })
	return err
}

// Ping verifies Redis connectivity.
func (m *RedisMap) Ping(ctx context.Context) error {
	return m.rdb.Ping(ctx).Err()
}

// Clear deletes every key of this session.
func (m *RedisMap) Clear(ctx context.Context) error {
	if err := m.rdb.Del(ctx, CellsKey(m.session), ClaimsKey(m.session)).Err(); err != nil {
		return fmt.Errorf("failed to clear session %s: %w", m.session, err)
	}
	return nil
}

func (m *RedisMap) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.opTimeout)
}

func (m *RedisMap) logError(op string, c Coord, err error) {
	log.Printf("[Discovery] Redis %s failed for %v in session %s: %v", op, c, m.session, err)
}

// Mark merges s into c atomically on the server.
func (m *RedisMap) Mark(c Coord, s CellState) {
	ctx, cancel := m.opContext()
	defer cancel()

	keys := []string{CellsKey(m.session), ClaimsKey(m.session)}
	if err := markScript.Run(ctx, m.rdb, keys, c.field(), int(s)).Err(); err != nil {
		m.logError("mark", c, err)
	}
}

// Get returns the stored state of c, Unknown when absent or unreadable.
func (m *RedisMap) Get(c Coord) CellState {
	ctx, cancel := m.opContext()
	defer cancel()

	raw, err := m.rdb.HGet(ctx, CellsKey(m.session), c.field()).Int()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			m.logError("get", c, err)
		}
		return Unknown
	}
	return CellState(raw)
}

// TryClaim reserves c with HSETNX.
func (m *RedisMap) TryClaim(c Coord, owner int) (bool, error) {
	if err := validateOwner(owner); err != nil {
		return false, err
	}
	ctx, cancel := m.opContext()
	defer cancel()

	ok, err := m.rdb.HSetNX(ctx, ClaimsKey(m.session), c.field(), owner).Result()
	if err != nil {
		m.logError("claim", c, err)
		return false, nil
	}
	return ok, nil
}

// TryRelease drops owner's claim on c.
func (m *RedisMap) TryRelease(c Coord, owner int) bool {
	ctx, cancel := m.opContext()
	defer cancel()

	n, err := releaseScript.Run(ctx, m.rdb, []string{ClaimsKey(m.session)}, c.field(), strconv.Itoa(owner)).Int()
	if err != nil {
		m.logError("release", c, err)
		return false
	}
	return n > 0
}

// ClaimOwner returns the owner of c's claim, 0 when unclaimed or unreadable.
func (m *RedisMap) ClaimOwner(c Coord) int {
	ctx, cancel := m.opContext()
	defer cancel()

	owner, err := m.rdb.HGet(ctx, ClaimsKey(m.session), c.field()).Int()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			m.logError("claim owner", c, err)
		}
		return 0
	}
	return owner
}

// IsClaimed reports whether c is reserved.
func (m *RedisMap) IsClaimed(c Coord) bool {
	return m.ClaimOwner(c) != 0
}

// Snapshot reads the whole cell hash in a single HGETALL, which Redis executes atomically.
func (m *RedisMap) Snapshot() (Snapshot, bool) {
	ctx, cancel := m.opContext()
	defer cancel()

	raw, err := m.rdb.HGetAll(ctx, CellsKey(m.session)).Result()
	if err != nil {
		log.Printf("[Discovery] Redis snapshot failed in session %s: %v", m.session, err)
		return Snapshot{}, false
	}

	snap := make(Snapshot, len(raw))
	for field, value := range raw {
		c, err := parseField(field)
		if err != nil {
			log.Printf("[Discovery] Skipping cell in session %s: %v", m.session, err)
			continue
		}
		st, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("[Discovery] Skipping cell %v in session %s: bad state %q", c, m.session, value)
			continue
		}
		snap[c] = CellState(st)
	}
	return snap, len(snap) > 0
}

// NotifyExitFound publishes ev as JSON on the session's exit channel.
func (m *RedisMap) NotifyExitFound(ev ExitEvent) {
	ctx, cancel := m.opContext()
	defer cancel()

	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[Discovery] Failed to marshal exit event: %v", err)
		return
	}
	if err := m.rdb.Publish(ctx, ExitEventsChannel(m.session), payload).Err(); err != nil {
		m.logError("publish exit", ev.Exit, err)
	}
}

// SubscribeExitEvents subscribes to the session's exit channel.
// The subscription is confirmed before returning, so events published afterwards are delivered.
//
// Events are delivered on a buffered channel; Redis Pub/Sub is at-most-once, so a subscriber
// that falls behind may miss events.
func (m *RedisMap) SubscribeExitEvents(ctx context.Context) (*ExitSubscription, error) {
	pubsub := m.rdb.Subscribe(ctx, ExitEventsChannel(m.session))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to exit events: %w", err)
	}

	eventsChan := make(chan ExitEvent, eventBuffer)
	errorsChan := make(chan error, eventBuffer)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var ev ExitEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal exit event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &ExitSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
