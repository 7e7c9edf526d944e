package appbuilder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-solo-chess/internal/adapter/tui"
	"github.com/park285/cheese-solo-chess/internal/archive"
	"github.com/park285/cheese-solo-chess/internal/chess"
	"github.com/park285/cheese-solo-chess/internal/config"
	"github.com/park285/cheese-solo-chess/internal/msgcat"
	"github.com/park285/cheese-solo-chess/internal/render"
	"github.com/park285/cheese-solo-chess/internal/session"
)

const (
	redisPrefix    = "cheese-chess"
	connectTimeout = 5 * time.Second
)

type Deps struct {
	Engine     *chess.EngineClient
	Controller *session.Controller
	UI         *tui.App
	Archive    *archive.Multi

	closers []func() error
}

// New starts the engine and wires the session controller to the terminal UI.
// An engine that cannot be started is returned as chess.ErrEngineStart.
func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	human, err := session.ParseColor(cfg.HumanColor)
	if err != nil {
		return nil, err
	}
	catalog, err := msgcat.New(cfg.MessageDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	engine, err := chess.StartEngine(ctx, cfg.StockfishPath, logger.Named("engine"))
	if err != nil {
		return nil, err
	}
	deps := &Deps{Engine: engine}

	store, closers := buildArchive(ctx, cfg, logger.Named("archive"))
	deps.Archive = store
	deps.closers = closers

	renderer := render.NewBoardRenderer(render.NewPieceSets(cfg.AssetDir, logger.Named("render")))
	deps.UI = tui.New(tui.Config{
		Catalog:      catalog,
		Renderer:     renderer,
		Archive:      store,
		SnapshotDir:  cfg.SnapshotDir,
		OpponentName: cfg.OpponentName,
		Logger:       logger.Named("tui"),
	})

	settings := session.NewSettings(cfg.Strength, cfg.ThinkTime, human, cfg.PieceSet)
	deps.Controller = session.NewController(engine, settings, session.Options{
		HistoryLimit: cfg.HistoryLimit,
		Archive:      store,
		Logger:       logger.Named("session"),
		Observer:     deps.UI.Observe,
		Describe:     describer(catalog, cfg.OpponentName),
	})
	deps.UI.Attach(deps.Controller)

	logger.Info("session ready",
		zap.String("engine", engine.Name()),
		zap.Int("strength", cfg.Strength),
		zap.Duration("think_time", cfg.ThinkTime),
		zap.String("human", cfg.HumanColor),
		zap.Int("archive_backends", store.Backends()),
	)
	return deps, nil
}

// Close stops the engine and releases archive connections.
func (d *Deps) Close() error {
	var errs []error
	if d.Engine != nil {
		if err := d.Engine.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("engine shutdown: %w", err))
		}
	}
	for _, c := range d.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildArchive always keeps games in memory and adds Redis and PostgreSQL when
// configured. A backend that cannot be reached is skipped with a warning.
func buildArchive(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*archive.Multi, []func() error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		extra   []archive.Store
		closers []func() error
	)

	if url := strings.TrimSpace(cfg.RedisURL); url != "" {
		cctx, cancel := context.WithTimeout(ctx, connectTimeout)
		rdb, err := archive.DialRedis(cctx, url)
		cancel()
		if err != nil {
			logger.Warn("redis archive disabled", zap.Error(err))
		} else {
			extra = append(extra, archive.NewRedisStore(rdb, redisPrefix))
			closers = append(closers, rdb.Close)
		}
	}

	if url := strings.TrimSpace(cfg.DatabaseURL); url != "" {
		cctx, cancel := context.WithTimeout(ctx, connectTimeout)
		db, err := archive.OpenPostgres(cctx, url)
		if err == nil {
			repo := archive.NewPostgresStore(db)
			if err = repo.EnsureSchema(cctx); err == nil {
				extra = append(extra, repo)
				closers = append(closers, db.Close)
			} else {
				_ = db.Close()
			}
		}
		cancel()
		if err != nil {
			logger.Warn("postgres archive disabled", zap.Error(err))
		}
	}

	return archive.NewMulti(archive.NewMemoryStore(), extra...), closers
}

func describer(catalog *msgcat.Catalog, opponent string) func(session.Result) string {
	return func(r session.Result) string {
		return catalog.Text(r.Key(), map[string]any{"Opponent": opponent})
	}
}
