// internal/database/room_store.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/durak/internal/game"
	"github.com/jason-s-yu/durak/internal/models"
)

// RoomStore keeps rooms in Postgres. Every write runs in its own transaction,
// so a room and its seats always change together.
type RoomStore struct {
	pool *pgxpool.Pool
}

var _ game.RoomStore = (*RoomStore)(nil)

// NewRoomStore wraps an open pool.
func NewRoomStore(pool *pgxpool.Pool) *RoomStore {
	return &RoomStore{pool: pool}
}

type roomColumns struct {
	trump, deck, table, discard []byte
}

func encodeRoom(r *models.Room) (roomColumns, error) {
	var (
		cols roomColumns
		err  error
	)
	if cols.trump, err = json.Marshal(r.Trump); err != nil {
		return cols, fmt.Errorf("marshal trump: %w", err)
	}
	if cols.deck, err = json.Marshal(nonNil(r.Deck)); err != nil {
		return cols, fmt.Errorf("marshal deck: %w", err)
	}
	table := r.Table
	if table == nil {
		table = []models.TablePair{}
	}
	if cols.table, err = json.Marshal(table); err != nil {
		return cols, fmt.Errorf("marshal table: %w", err)
	}
	if cols.discard, err = json.Marshal(nonNil(r.Discard)); err != nil {
		return cols, fmt.Errorf("marshal discard: %w", err)
	}
	return cols, nil
}

func nonNil(cards []models.Card) []models.Card {
	if cards == nil {
		return []models.Card{}
	}
	return cards
}

func decodeJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (s *RoomStore) CreateRoom(ctx context.Context, room *models.Room) error {
	cols, err := encodeRoom(room)
	if err != nil {
		return err
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO rooms (id, trump, deck, table_pairs, discard, current_attacker, current_defender,
			                   created_at, last_activity_at, game_ended, action_seq)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO NOTHING
		`
		tag, err := tx.Exec(ctx, q, room.ID, cols.trump, cols.deck, cols.table, cols.discard,
			room.CurrentAttacker, room.CurrentDefender, room.CreatedAt, room.LastActivityAt,
			room.GameEnded, room.ActionSeq)
		if err != nil {
			return fmt.Errorf("insert room: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return game.ErrRoomExists
		}
		return insertPlayers(ctx, tx, room)
	})
}

// GetRoom reads the room row and its seats inside one read-only snapshot, so a
// concurrent SaveRoom is seen either entirely or not at all.
func (s *RoomStore) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	var room *models.Room
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		var err error
		room, err = selectRoom(ctx, tx, roomID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

func selectRoom(ctx context.Context, tx pgx.Tx, roomID string) (*models.Room, error) {
	q := `
		SELECT id, trump, deck, table_pairs, discard, current_attacker, current_defender,
		       created_at, last_activity_at, game_ended, action_seq
		FROM rooms WHERE id = $1
	`
	var (
		room models.Room
		cols roomColumns
	)
	err := tx.QueryRow(ctx, q, roomID).Scan(&room.ID, &cols.trump, &cols.deck, &cols.table, &cols.discard,
		&room.CurrentAttacker, &room.CurrentDefender, &room.CreatedAt, &room.LastActivityAt,
		&room.GameEnded, &room.ActionSeq)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, game.ErrNoSuchRoom
	}
	if err != nil {
		return nil, fmt.Errorf("select room: %w", err)
	}
	if err := decodeJSON(cols.trump, &room.Trump); err != nil {
		return nil, fmt.Errorf("decode trump: %w", err)
	}
	if err := decodeJSON(cols.deck, &room.Deck); err != nil {
		return nil, fmt.Errorf("decode deck: %w", err)
	}
	if err := decodeJSON(cols.table, &room.Table); err != nil {
		return nil, fmt.Errorf("decode table: %w", err)
	}
	if err := decodeJSON(cols.discard, &room.Discard); err != nil {
		return nil, fmt.Errorf("decode discard: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT id, name, hand, ready, disconnected, last_disconnected_at, language, joined_at
		FROM players WHERE room_id = $1 ORDER BY seat
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("select players: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			p    models.Player
			hand []byte
		)
		if err := rows.Scan(&p.ID, &p.Name, &hand, &p.Ready, &p.Disconnected, &p.LastDisconnectedAt,
			&p.Language, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		if err := decodeJSON(hand, &p.Hand); err != nil {
			return nil, fmt.Errorf("decode hand: %w", err)
		}
		room.Players = append(room.Players, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate players: %w", err)
	}
	return &room, nil
}

func (s *RoomStore) SaveRoom(ctx context.Context, room *models.Room) error {
	cols, err := encodeRoom(room)
	if err != nil {
		return err
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			UPDATE rooms SET trump = $2, deck = $3, table_pairs = $4, discard = $5,
			       current_attacker = $6, current_defender = $7, last_activity_at = $8,
			       game_ended = $9, action_seq = $10
			WHERE id = $1
		`
		tag, err := tx.Exec(ctx, q, room.ID, cols.trump, cols.deck, cols.table, cols.discard,
			room.CurrentAttacker, room.CurrentDefender, room.LastActivityAt, room.GameEnded, room.ActionSeq)
		if err != nil {
			return fmt.Errorf("update room: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return game.ErrNoSuchRoom
		}
		if _, err := tx.Exec(ctx, `DELETE FROM players WHERE room_id = $1`, room.ID); err != nil {
			return fmt.Errorf("clear players: %w", err)
		}
		return insertPlayers(ctx, tx, room)
	})
}

func insertPlayers(ctx context.Context, tx pgx.Tx, room *models.Room) error {
	q := `
		INSERT INTO players (id, room_id, seat, name, hand, ready, disconnected, last_disconnected_at, language, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for seat, p := range room.Players {
		hand, err := json.Marshal(nonNil(p.Hand))
		if err != nil {
			return fmt.Errorf("marshal hand: %w", err)
		}
		if _, err := tx.Exec(ctx, q, p.ID, room.ID, seat, p.Name, hand, p.Ready, p.Disconnected,
			p.LastDisconnectedAt, p.Language, p.JoinedAt); err != nil {
			return fmt.Errorf("insert player %s: %w", p.ID, err)
		}
	}
	return nil
}

func (s *RoomStore) DeleteRoom(ctx context.Context, roomID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, roomID); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}

func (s *RoomStore) ListStaleRooms(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM rooms WHERE last_activity_at < $1 ORDER BY id`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("select stale rooms: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect stale rooms: %w", err)
	}
	return ids, nil
}

func (s *RoomStore) FindPlayerRoom(ctx context.Context, playerID string) (string, error) {
	var roomID string
	err := s.pool.QueryRow(ctx, `SELECT room_id FROM players WHERE id = $1`, playerID).Scan(&roomID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", game.ErrNoSuchRoom
	}
	if err != nil {
		return "", fmt.Errorf("select player room: %w", err)
	}
	return roomID, nil
}
