// internal/database/actions.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/durak/internal/game"
)

// ActionStore persists the room audit trail.
type ActionStore struct {
	pool *pgxpool.Pool
}

func NewActionStore(pool *pgxpool.Pool) *ActionStore {
	return &ActionStore{pool: pool}
}

// InsertActions writes a batch in one transaction.
func (s *ActionStore) InsertActions(ctx context.Context, actions []game.Action) error {
	return InsertActions(ctx, s.pool, actions)
}

// InsertActions writes a batch of audit records in a single transaction.
func InsertActions(ctx context.Context, pool *pgxpool.Pool, actions []game.Action) error {
	if len(actions) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO room_actions (room_id, action_index, player_id, action_type, action_payload, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		for _, a := range actions {
			payload, err := json.Marshal(a.Payload)
			if err != nil {
				return fmt.Errorf("marshal payload: %w", err)
			}
			if _, err := tx.Exec(ctx, q, a.RoomID, a.Index, a.PlayerID, a.Type, payload, a.At); err != nil {
				return fmt.Errorf("insert action %s#%d: %w", a.RoomID, a.Index, err)
			}
		}
		return nil
	})
}

// CountActions returns how many audit records exist for roomID.
func CountActions(ctx context.Context, pool *pgxpool.Pool, roomID string) (int, error) {
	var n int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM room_actions WHERE room_id = $1`, roomID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count actions: %w", err)
	}
	return n, nil
}
