package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mine-duel/duel-server-go/internal/config"
	"github.com/mine-duel/duel-server-go/internal/data"
	"github.com/mine-duel/duel-server-go/internal/events"
	"github.com/mine-duel/duel-server-go/internal/feed"
	"github.com/mine-duel/duel-server-go/internal/game/match"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

const shutdownTimeout = 5 * time.Second

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting duel server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("duel server failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("duel server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bus := events.NewBus(logger.Named("events"))

	ctrl := match.NewController(bus, cfg.Game.Bindings(), newSource(cfg.Game.Seed, logger), logger.Named("match"))
	if err := ctrl.Attach(); err != nil {
		return fmt.Errorf("attaching match controller: %w", err)
	}
	defer ctrl.Detach()

	g, gctx := errgroup.WithContext(ctx)

	sinks := []feed.Sink{feed.NewLogSink(logger.Named("feed"))}
	if cfg.Feed.Enabled {
		hub := feed.NewHub(logger.Named("hub"))
		recorder := feed.NewRecorder(cfg.Feed.Replays, logger.Named("replay"))
		sinks = append(sinks, hub, recorder)
		startFeed(gctx, g, hub, recorder, cfg.Feed, logger)
	}

	presenter := feed.NewPresenter(bus, ctrl, logger.Named("feed"), sinks...)
	if err := presenter.Attach(); err != nil {
		return fmt.Errorf("attaching presenter: %w", err)
	}
	defer presenter.Detach()

	loader := data.NewLoader(cfg.Game.DataPath, cfg.Game.Bindings(), logger.Named("data"))
	g.Go(func() error {
		return loader.Run(gctx)
	})

	// The bus and the controller are only touched from this goroutine.
	g.Go(func() error {
		defer cancel()
		return play(gctx, bus, ctrl, loader, cfg.Game, logger)
	})

	return g.Wait()
}

func startFeed(ctx context.Context, g *errgroup.Group, hub *feed.Hub, recorder *feed.Recorder, cfg config.FeedConfig, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	recorder.Register(mux)

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		return hub.Run(ctx)
	})

	g.Go(func() error {
		logger.Info("starting spectator feed", zap.String("address", cfg.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("spectator feed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// play waits for the game data, announces it and autoplays the configured
// number of matches.
func play(ctx context.Context, bus *events.Bus, ctrl *match.Controller, loader *data.Loader, cfg config.GameConfig, logger *zap.Logger) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case catalog, ok := <-loader.Ready():
		if !ok {
			// The loader goroutine reports why.
			return nil
		}
		data.Announce(bus, cfg.DataPath, catalog)
	}

	for i := 0; cfg.Matches == 0 || i < cfg.Matches; i++ {
		res, err := match.Autoplay(ctx, ctrl, match.AutoplayOptions{
			Restart:   i > 0 || cfg.WithBuffs,
			WithBuffs: cfg.WithBuffs,
			Interval:  cfg.TurnInterval,
			MaxTurns:  cfg.MaxTurns,
		})
		if err != nil {
			return err
		}

		logger.Info("match finished",
			zap.Int("match", i+1),
			zap.String("match_id", res.MatchID),
			zap.Int("turns", res.Turns),
			zap.Int("winner_id", res.WinnerID),
		)
	}
	return nil
}

func newSource(seed uint64, logger *zap.Logger) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	logger.Info("buff rolls seeded", zap.Uint64("seed", seed))
	return rand.New(rand.NewPCG(seed, seed))
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
