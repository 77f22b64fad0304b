// internal/housekeeping/sweeper.go
package housekeeping

import (
	"context"
	"errors"
	"time"

	"github.com/jason-s-yu/durak/internal/game"
	"github.com/sirupsen/logrus"
)

// Rooms is the slice of the engine the sweeper drives.
type Rooms interface {
	SweepIdle(ctx context.Context, idle time.Duration) ([]string, error)
	DisconnectPlayer(ctx context.Context, playerID string) error
}

// Sessions is the slice of the presence registry the sweeper drives.
type Sessions interface {
	Prune(maxAge time.Duration) []string
}

// Sweeper periodically deletes idle rooms and reaps dead sessions.
type Sweeper struct {
	rooms      Rooms
	sessions   Sessions
	interval   time.Duration
	idle       time.Duration
	pruneAfter time.Duration
	logger     logrus.FieldLogger
}

func NewSweeper(rooms Rooms, sessions Sessions, interval, idle, pruneAfter time.Duration, logger logrus.FieldLogger) *Sweeper {
	return &Sweeper{
		rooms:      rooms,
		sessions:   sessions,
		interval:   interval,
		idle:       idle,
		pruneAfter: pruneAfter,
		logger:     logger,
	}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.WithFields(logrus.Fields{"interval": s.interval, "idle": s.idle}).Info("sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Failures are logged and retried on the next tick.
func (s *Sweeper) Sweep(ctx context.Context) {
	for _, playerID := range s.sessions.Prune(s.pruneAfter) {
		err := s.rooms.DisconnectPlayer(ctx, playerID)
		if err != nil && !errors.Is(err, game.ErrPlayerNotFound) && !errors.Is(err, game.ErrRoomNotFound) {
			s.logger.WithField("player", playerID).WithError(err).Warn("failed to disconnect pruned session")
		}
	}

	deleted, err := s.rooms.SweepIdle(ctx, s.idle)
	if err != nil {
		s.logger.WithError(err).Error("idle room sweep failed")
	}
	if len(deleted) > 0 {
		s.logger.WithField("rooms", deleted).Info("deleted idle rooms")
	}
}
