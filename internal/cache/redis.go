// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jason-s-yu/durak/internal/game"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list (queue) name for room action logs.
const DefaultQueueName = "durak_actions"

// Connect builds a Redis client for addr and pings it.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// ActionLog pushes every accepted room transition onto a Redis list for the
// historian to persist. Pushes happen off the caller's goroutine.
type ActionLog struct {
	rdb    *redis.Client
	queue  string
	logger logrus.FieldLogger
	wg     sync.WaitGroup
}

var _ game.ActionRecorder = (*ActionLog)(nil)

// NewActionLog publishes to queue (DefaultQueueName when empty).
func NewActionLog(rdb *redis.Client, queue string, logger logrus.FieldLogger) *ActionLog {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &ActionLog{rdb: rdb, queue: queue, logger: logger}
}

// Record publishes the action asynchronously with a short timeout. Failures are logged, not returned.
func (l *ActionLog) Record(_ context.Context, a game.Action) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.Publish(ctx, a); err != nil {
			l.logger.WithFields(logrus.Fields{
				"room":   a.RoomID,
				"action": a.Type,
			}).WithError(err).Warn("failed to publish room action")
		}
	}()
}

// Publish serializes a to JSON and pushes it to the queue.
func (l *ActionLog) Publish(ctx context.Context, a game.Action) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal action: %w", err)
	}
	if err := l.rdb.RPush(ctx, l.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", l.queue, err)
	}
	return nil
}

// Flush waits for in-flight publishes.
func (l *ActionLog) Flush() {
	l.wg.Wait()
}

// Queue is the consuming end of an action log.
type Queue struct {
	rdb  *redis.Client
	name string
}

// NewQueue reads from the list name (DefaultQueueName when empty).
func NewQueue(rdb *redis.Client, name string) *Queue {
	if name == "" {
		name = DefaultQueueName
	}
	return &Queue{rdb: rdb, name: name}
}

// Pop blocks up to timeout for the next action. ok is false on timeout.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (a game.Action, ok bool, err error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return a, false, nil
	}
	if err != nil {
		return a, false, fmt.Errorf("BLPop: %w", err)
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return a, false, nil
	}
	if err := json.Unmarshal([]byte(res[1]), &a); err != nil {
		return a, false, fmt.Errorf("invalid action record: %w", err)
	}
	return a, true, nil
}
