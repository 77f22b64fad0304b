// internal/database/room_store_test.go
package database

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/durak/internal/game"
	"github.com/jason-s-yu/durak/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// testPool connects to DURAK_TEST_DATABASE_URL or skips.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("DURAK_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("DURAK_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := Connect(ctx, url)
	require.NoError(t, err)
	require.NoError(t, EnsureSchema(ctx, pool))
	t.Cleanup(pool.Close)
	return pool
}

func TestRoomStoreLifecycle(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	s := NewRoomStore(pool)

	const id = "0101"
	_ = s.DeleteRoom(ctx, id)
	t.Cleanup(func() { _ = s.DeleteRoom(ctx, id) })

	now := time.Now().UTC().Truncate(time.Millisecond)
	room := &models.Room{
		ID:             id,
		CreatedAt:      now,
		LastActivityAt: now,
		Players: []*models.Player{
			{ID: "db-test-alice", Name: "Alice", Language: "en", JoinedAt: now},
			{ID: "db-test-bob", Name: "Bob", Language: "ru", JoinedAt: now},
		},
	}
	require.NoError(t, s.CreateRoom(ctx, room))
	assert.ErrorIs(t, s.CreateRoom(ctx, room), game.ErrRoomExists)

	got, err := s.GetRoom(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got.Trump)
	require.Len(t, got.Players, 2)
	assert.Equal(t, "db-test-alice", got.Players[0].ID, "seating order survives")
	assert.WithinDuration(t, now, got.LastActivityAt, time.Millisecond)

	def := models.Card{Rank: models.Nine, Suit: models.Hearts}
	got.Trump = &models.Trump{Card: models.Card{Rank: models.Six, Suit: models.Clubs}, Suit: models.Clubs}
	got.Deck = []models.Card{{Rank: models.Ace, Suit: models.Clubs}}
	got.Table = []models.TablePair{{Attack: models.Card{Rank: models.Seven, Suit: models.Hearts}, Defense: &def}}
	got.CurrentAttacker, got.CurrentDefender = "db-test-alice", "db-test-bob"
	got.Players[1].Hand = []models.Card{{Rank: models.Ten, Suit: models.Spades}}
	got.Players[1].MarkDisconnected(now)
	require.NoError(t, s.SaveRoom(ctx, got))

	again, err := s.GetRoom(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, again.Trump)
	assert.Equal(t, models.Clubs, again.Trump.Suit)
	assert.Equal(t, got.Deck, again.Deck)
	assert.Equal(t, got.Table, again.Table)
	assert.Equal(t, "db-test-bob", again.CurrentDefender)
	assert.True(t, again.Players[1].Disconnected)
	assert.Equal(t, got.Players[1].Hand, again.Players[1].Hand)

	roomID, err := s.FindPlayerRoom(ctx, "db-test-bob")
	require.NoError(t, err)
	assert.Equal(t, id, roomID)

	stale, err := s.ListStaleRooms(ctx, now.Add(time.Second))
	require.NoError(t, err)
	assert.Contains(t, stale, id)

	require.NoError(t, s.DeleteRoom(ctx, id))
	_, err = s.GetRoom(ctx, id)
	assert.ErrorIs(t, err, game.ErrNoSuchRoom)
	_, err = s.FindPlayerRoom(ctx, "db-test-bob")
	assert.ErrorIs(t, err, game.ErrNoSuchRoom, "seats cascade with the room")
	assert.ErrorIs(t, s.SaveRoom(ctx, got), game.ErrNoSuchRoom)
}

// TestGetRoomSeesWholeSaves moves one card back and forth between a hand and the
// table while another goroutine reads. Every read must find exactly one copy.
func TestGetRoomSeesWholeSaves(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	s := NewRoomStore(pool)

	const id = "0102"
	_ = s.DeleteRoom(ctx, id)
	t.Cleanup(func() { _ = s.DeleteRoom(ctx, id) })

	now := time.Now().UTC()
	card := models.Card{Rank: models.Seven, Suit: models.Hearts}
	require.NoError(t, s.CreateRoom(ctx, &models.Room{
		ID:             id,
		CreatedAt:      now,
		LastActivityAt: now,
		Players: []*models.Player{
			{ID: "db-test-carol", Name: "Carol", Language: "en", JoinedAt: now, Hand: []models.Card{card}},
			{ID: "db-test-dave", Name: "Dave", Language: "en", JoinedAt: now},
		},
	}))

	done := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		defer close(done)
		for i := 0; i < 100; i++ {
			room, err := s.GetRoom(ctx, id)
			if err != nil {
				return err
			}
			if len(room.Table) > 0 {
				room.Table = nil
				room.Players[0].Hand = []models.Card{card}
			} else {
				room.Table = []models.TablePair{{Attack: card}}
				room.Players[0].Hand = nil
			}
			if err := s.SaveRoom(ctx, room); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		for {
			select {
			case <-done:
				return nil
			default:
			}
			room, err := s.GetRoom(ctx, id)
			if err != nil {
				return err
			}
			if n := len(room.TableCards()) + len(room.Players[0].Hand); n != 1 {
				return fmt.Errorf("read mixed two saves: %d copies of the card", n)
			}
		}
	})
	require.NoError(t, g.Wait())
}

func TestInsertActions(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	roomID := "act-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { _, _ = pool.Exec(ctx, `DELETE FROM room_actions WHERE room_id = $1`, roomID) })

	err := InsertActions(ctx, pool, []game.Action{
		{RoomID: roomID, Index: 1, PlayerID: "p1", Type: "create_room", At: time.Now()},
		{RoomID: roomID, Index: 2, PlayerID: "p1", Type: "ready", Payload: map[string]any{"x": 1}, At: time.Now()},
	})
	require.NoError(t, err)

	n, err := CountActions(ctx, pool, roomID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
