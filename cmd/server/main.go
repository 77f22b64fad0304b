// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/durak/internal/auth"
	"github.com/jason-s-yu/durak/internal/cache"
	"github.com/jason-s-yu/durak/internal/config"
	"github.com/jason-s-yu/durak/internal/database"
	"github.com/jason-s-yu/durak/internal/game"
	"github.com/jason-s-yu/durak/internal/handlers"
	"github.com/jason-s-yu/durak/internal/housekeeping"
	"github.com/jason-s-yu/durak/internal/middleware"
	"github.com/jason-s-yu/durak/internal/presence"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	logger := newLogger(cfg)

	if cfg.PrivateKeyPath != "" && cfg.PublicKeyPath != "" {
		err = auth.InitFromPath(cfg.PrivateKeyPath, cfg.PublicKeyPath, cfg.TokenTTL)
	} else {
		err = auth.Init(cfg.TokenTTL)
	}
	if err != nil {
		logger.Fatalf("failed to initialise session keys: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store game.RoomStore = game.NewMemoryStore()
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("%v", err)
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			logger.Fatalf("%v", err)
		}
		store = database.NewRoomStore(pool)
		logger.Info("using postgres room store")
	} else {
		logger.Warn("DATABASE_URL not set, rooms are kept in memory")
	}

	registry := presence.NewRegistry(logger)
	opts := []game.Option{game.WithRules(cfg.Rules), game.WithLogger(logger)}
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("%v", err)
		}
		defer rdb.Close()
		actions := cache.NewActionLog(rdb, cfg.QueueName, logger)
		defer actions.Flush()
		opts = append(opts, game.WithActionRecorder(actions))
	}
	engine := game.NewEngine(store, registry, opts...)
	defer engine.Close()

	mux := http.NewServeMux()
	mux.Handle("/ws", handlers.NewGateway(engine, registry, logger))
	mux.HandleFunc("GET /room/{roomId}", handlers.RoomHandler(engine, logger))
	mux.HandleFunc("GET /healthz", handlers.HealthHandler)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: middleware.LogMiddleware(logger)(mux),
	}
	sweeper := housekeeping.NewSweeper(engine, registry, cfg.Sweep, cfg.RoomIdle, cfg.PruneAfter, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Errorf("server exited: %v", err)
		return
	}
	logger.Info("server stopped")
}

func newLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warnf("unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
