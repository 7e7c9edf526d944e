// cheese-chess plays one game of chess at a time against a UCI engine in the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/park285/cheese-solo-chess/internal/appbuilder"
	"github.com/park285/cheese-solo-chess/internal/chess"
	"github.com/park285/cheese-solo-chess/internal/config"
	"github.com/park285/cheese-solo-chess/internal/obslog"
)

var (
	flagEngine   = flag.String("engine", "", "path to the UCI engine binary (default $STOCKFISH_PATH or stockfish)")
	flagStrength = flag.Int("strength", 0, "opponent strength, e.g. 800-2800")
	flagThink    = flag.Duration("think", 0, "opponent think time per move, e.g. 500ms")
	flagColor    = flag.String("color", "", "your colour: white or black")
	flagPieces   = flag.String("pieces", "", "piece set: classic, anarchy, modern or a directory under the asset dir")
	flagConfig   = flag.String("config", "", "config file (default $XDG_CONFIG_HOME/cheese-chess/config.yaml)")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(*flagConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 2
	}
	cfg.Apply(config.Overrides{
		EnginePath: *flagEngine,
		Strength:   *flagStrength,
		ThinkTime:  *flagThink,
		HumanColor: *flagColor,
		PieceSet:   *flagPieces,
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 2
	}

	flush, err := obslog.Init(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging error: %v\n", err)
		return 2
	}
	defer flush()
	logger := obslog.L()
	logger.Info("starting", zap.String("config", cfg.Source), zap.String("engine", cfg.StockfishPath))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := appbuilder.New(ctx, cfg, logger)
	if err != nil {
		if errors.Is(err, chess.ErrEngineStart) {
			logger.Error("engine start failed", zap.Error(err))
			fmt.Fprintf(os.Stderr, "could not start chess engine %q: %v\n", cfg.StockfishPath, err)
			return 1
		}
		logger.Error("setup failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "setup failed: %v\n", err)
		return 1
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	if err := deps.UI.Run(ctx); err != nil {
		logger.Error("terminal ui failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "terminal ui failed: %v\n", err)
		return 1
	}
	logger.Info("bye")
	return 0
}
