package tui

import (
	"context"
	"errors"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/park285/cheese-solo-chess/internal/archive"
	"github.com/park285/cheese-solo-chess/internal/chess"
	"github.com/park285/cheese-solo-chess/internal/msgcat"
	"github.com/park285/cheese-solo-chess/internal/render"
	"github.com/park285/cheese-solo-chess/internal/session"
)

const (
	recentPage     = "recent"
	recentLimit    = 10
	archiveTimeout = 3 * time.Second
)

// Session is the controller surface driven by the terminal UI.
type Session interface {
	Start(ctx context.Context) error
	NewGame(ctx context.Context) error
	ClickSquare(ctx context.Context, sq nchess.Square) (session.ClickResult, error)
	RetryOpponent(ctx context.Context) error
	Resign(ctx context.Context)
	SetStrength(ctx context.Context, level int) error
	SetThinkTime(d time.Duration) error
	SetHumanColor(ctx context.Context, color nchess.Color) error
	FlipOrientation()
	SetPieceSet(name string)
	Snapshot() session.Snapshot
}

type Config struct {
	Catalog      *msgcat.Catalog
	Renderer     *render.BoardRenderer
	Archive      archive.Store
	SnapshotDir  string
	OpponentName string
	Logger       *zap.Logger
}

// App is the terminal presentation layer. The tview goroutine only draws
// published snapshots; every controller call goes through the dispatcher.
type App struct {
	cfg        Config
	logger     *zap.Logger
	session    Session
	app        *tview.Application
	pages      *tview.Pages
	board      *BoardView
	dispatcher *Dispatcher
}

func New(cfg Config) *App {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Renderer == nil {
		cfg.Renderer = render.NewBoardRenderer(nil)
	}
	a := &App{
		cfg:        cfg,
		logger:     cfg.Logger,
		app:        tview.NewApplication(),
		pages:      tview.NewPages(),
		dispatcher: NewDispatcher(cfg.Logger),
	}
	a.board = NewBoardView(cfg.Catalog, cfg.OpponentName, a.click)
	a.board.SetBorder(true)
	a.board.SetTitle(cfg.Catalog.Text("panel.title", map[string]any{"Opponent": cfg.OpponentName}))
	a.board.SetInputCapture(a.handleKey)
	a.pages.AddPage("board", a.board, true, true)
	return a
}

// Attach sets the controller. It must be called before Run.
func (a *App) Attach(s Session) { a.session = s }

// Observe is the controller observer. It runs on the dispatcher goroutine.
func (a *App) Observe(snap session.Snapshot) {
	a.board.Update(snap)
	a.redraw()
}

func (a *App) redraw() {
	go a.app.QueueUpdateDraw(func() {})
}

// Run starts the dispatcher, starts the game and blocks until the user quits
// or ctx ends.
func (a *App) Run(ctx context.Context) error {
	if a.session == nil {
		return errors.New("tui: no session attached")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.board.Update(a.session.Snapshot())
	go a.dispatcher.Run(ctx)
	a.submit(func(ctx context.Context) {
		if err := a.session.Start(ctx); err != nil {
			a.logger.Warn("start failed", zap.Error(err))
		}
	})

	go func() {
		<-ctx.Done()
		a.app.Stop()
	}()

	err := a.app.SetRoot(a.pages, true).EnableMouse(true).SetFocus(a.board).Run()
	cancel()
	a.dispatcher.Close()
	<-a.dispatcher.Done()
	return err
}

func (a *App) submit(cmd Command) {
	if !a.dispatcher.Submit(cmd) {
		a.logger.Debug("command dropped after shutdown")
	}
}

func (a *App) click(sq nchess.Square) {
	a.submit(func(ctx context.Context) {
		a.board.SetNotice("")
		if _, err := a.session.ClickSquare(ctx, sq); err != nil {
			a.logger.Warn("move failed", zap.String("square", sq.String()), zap.Error(err))
		}
	})
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	if event.Key() == tcell.KeyCtrlC {
		a.app.Stop()
		return nil
	}
	if event.Key() != tcell.KeyRune {
		return event
	}
	switch event.Rune() {
	case 'q':
		a.app.Stop()
	case '+', '=':
		a.stepStrength(1)
	case '-':
		a.stepStrength(-1)
	case 't':
		a.submit(func(ctx context.Context) {
			next := chess.StepThinkTime(a.session.Snapshot().Settings.ThinkTime, 1)
			if err := a.session.SetThinkTime(next); err != nil {
				a.logger.Warn("think time rejected", zap.Error(err))
			}
		})
	case 'c':
		a.submit(func(ctx context.Context) {
			next := a.session.Snapshot().Settings.HumanColor.Other()
			err := a.session.SetHumanColor(ctx, next)
			switch {
			case errors.Is(err, session.ErrColorLocked):
				a.notify(a.cfg.Catalog.Text("status.color_locked", nil))
			case err != nil:
				a.logger.Warn("colour change failed", zap.Error(err))
			}
		})
	case 'f':
		a.submit(func(ctx context.Context) { a.session.FlipOrientation() })
	case 'p':
		a.submit(func(ctx context.Context) {
			a.session.SetPieceSet(nextSet(a.cfg.Renderer.Pieces().Names(), a.session.Snapshot().Settings.PieceSet))
		})
	case 's':
		a.submit(a.saveSnapshot)
	case 'r':
		a.submit(a.showRecent)
	case 'y':
		a.submit(func(ctx context.Context) {
			if err := a.session.RetryOpponent(ctx); err != nil {
				a.logger.Warn("retry failed", zap.Error(err))
			}
		})
	case 'n':
		a.submit(func(ctx context.Context) {
			a.board.SetNotice("")
			if err := a.session.NewGame(ctx); err != nil {
				a.logger.Warn("new game failed", zap.Error(err))
			}
		})
	case 'R':
		a.submit(func(ctx context.Context) { a.session.Resign(ctx) })
	default:
		return event
	}
	return nil
}

func (a *App) stepStrength(step int) {
	a.submit(func(ctx context.Context) {
		next := chess.StepStrength(a.session.Snapshot().Settings.Strength, step)
		if err := a.session.SetStrength(ctx, next); err != nil {
			a.logger.Warn("strength rejected", zap.Error(err))
		}
	})
}

func (a *App) saveSnapshot(ctx context.Context) {
	path, err := a.cfg.Renderer.WriteSnapshot(ctx, a.cfg.SnapshotDir, a.session.Snapshot(), time.Now())
	if err != nil {
		a.logger.Warn("snapshot failed", zap.Error(err))
		a.notify(a.cfg.Catalog.Text("status.snapshot_failed", map[string]any{"Err": err.Error()}))
		return
	}
	a.logger.Info("snapshot saved", zap.String("path", path))
	a.notify(a.cfg.Catalog.Text("status.snapshot_saved", map[string]any{"Path": path}))
}

func (a *App) showRecent(ctx context.Context) {
	if a.cfg.Archive == nil {
		a.notify(a.cfg.Catalog.Text("status.archive_empty", nil))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()
	records, err := a.cfg.Archive.Recent(ctx, recentLimit)
	if err != nil {
		a.logger.Warn("recent games unavailable", zap.Error(err))
		a.notify(a.cfg.Catalog.Text("status.archive_failed", map[string]any{"Err": err.Error()}))
		return
	}
	text := RecentText(a.cfg.Catalog, records)
	go a.app.QueueUpdateDraw(func() {
		modal := tview.NewModal().
			SetText(text).
			AddButtons([]string{"Close"}).
			SetDoneFunc(func(int, string) {
				a.pages.RemovePage(recentPage)
				a.app.SetFocus(a.board)
			})
		a.pages.AddPage(recentPage, modal, true, true)
	})
}

func (a *App) notify(text string) {
	a.board.SetNotice(text)
	a.redraw()
}

func nextSet(names []string, current string) string {
	if len(names) == 0 {
		return current
	}
	for i, name := range names {
		if name == current {
			return names[(i+1)%len(names)]
		}
	}
	return names[0]
}
