// internal/historian/historian.go is the consumer side of the room action log:
// it drains the queue and persists actions to the database in batches.
package historian

import (
	"context"
	"time"

	"github.com/jason-s-yu/durak/internal/game"
	"github.com/sirupsen/logrus"
)

// Source yields queued actions. cache.Queue is the production implementation.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (game.Action, bool, error)
}

// Sink persists a batch atomically. database.ActionStore is the production implementation.
type Sink interface {
	InsertActions(ctx context.Context, actions []game.Action) error
}

// Config tunes batching.
type Config struct {
	BatchSize  int
	FlushDelay time.Duration
	// MaxBacklog bounds how many unflushed actions are kept while the sink is failing.
	MaxBacklog int
}

func DefaultConfig() Config {
	return Config{BatchSize: 20, FlushDelay: 500 * time.Millisecond, MaxBacklog: 10000}
}

// Service accumulates actions and flushes them when the batch is full or the
// flush delay has passed, whichever comes first.
type Service struct {
	src    Source
	sink   Sink
	cfg    Config
	logger logrus.FieldLogger
	now    func() time.Time

	batch     []game.Action
	lastFlush time.Time
}

func NewService(src Source, sink Sink, cfg Config, logger logrus.FieldLogger) *Service {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = def.FlushDelay
	}
	if cfg.MaxBacklog < cfg.BatchSize {
		cfg.MaxBacklog = def.MaxBacklog
	}
	return &Service{
		src:    src,
		sink:   sink,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		batch:  make([]game.Action, 0, cfg.BatchSize),
	}
}

// Run drains the source until ctx is done, then flushes what is left.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("durak-historian service started.")
	s.lastFlush = s.now()
	for {
		if ctx.Err() != nil {
			break
		}
		// BLPop with a short timeout so context cancellation and time-based flushes are handled.
		a, ok, err := s.src.Pop(ctx, s.cfg.FlushDelay)
		switch {
		case err != nil && ctx.Err() == nil:
			s.logger.WithError(err).Error("failed to pop action")
		case ok:
			s.batch = append(s.batch, a)
		}
		if len(s.batch) >= s.cfg.BatchSize || s.now().Sub(s.lastFlush) >= s.cfg.FlushDelay {
			s.flush(ctx)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.flush(shutdownCtx)
	s.logger.Info("durak-historian shutting down.")
	return nil
}

// flush writes the pending batch. A failed batch stays queued for the next
// attempt until the backlog limit, past which the oldest actions are dropped.
func (s *Service) flush(ctx context.Context) {
	s.lastFlush = s.now()
	if len(s.batch) == 0 {
		return
	}
	if err := s.sink.InsertActions(ctx, s.batch); err != nil {
		s.logger.WithError(err).WithField("pending", len(s.batch)).Error("failed to flush actions")
		if over := len(s.batch) - s.cfg.MaxBacklog; over > 0 {
			s.logger.WithField("dropped", over).Error("action backlog full, dropping oldest actions")
			s.batch = append(s.batch[:0], s.batch[over:]...)
		}
		return
	}
	s.logger.Debugf("Flushed %d actions to DB.", len(s.batch))
	s.batch = s.batch[:0]
}
