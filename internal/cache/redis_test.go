// internal/cache/redis_test.go
package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jason-s-yu/durak/internal/game"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionLogRoundTrip(t *testing.T) {
	addr := os.Getenv("DURAK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DURAK_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb, err := Connect(ctx, addr, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	queue := "durak_test_" + time.Now().Format("150405.000000")
	t.Cleanup(func() { rdb.Del(ctx, queue) })

	logger, _ := test.NewNullLogger()
	log := NewActionLog(rdb, queue, logger)
	log.Record(ctx, game.Action{RoomID: "1234", Index: 3, PlayerID: "p1", Type: "attack", At: time.Now()})
	log.Flush()

	q := NewQueue(rdb, queue)
	a, ok, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1234", a.RoomID)
	assert.Equal(t, 3, a.Index)
	assert.Equal(t, "attack", a.Type)

	_, ok, err = q.Pop(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}
