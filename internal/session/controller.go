package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
	"github.com/google/uuid"
	"github.com/park285/cheese-solo-chess/internal/archive"
	"github.com/park285/cheese-solo-chess/internal/chess"
	"go.uber.org/zap"
)

const DefaultHistoryLimit = 10

// Opponent is the computer side. RequestMove blocks until the engine answers.
type Opponent interface {
	Configure(ctx context.Context, strength int)
	NewGame(ctx context.Context) error
	RequestMove(ctx context.Context, req chess.MoveRequest) (string, error)
}

// Archiver receives every game once it reaches Terminal.
type Archiver interface {
	Save(ctx context.Context, rec archive.Record) error
}

type Options struct {
	HistoryLimit int
	Archive      Archiver
	Logger       *zap.Logger
	// Observer is called synchronously after every transition.
	Observer func(Snapshot)
	// Describe renders result texts for archived records.
	Describe func(Result) string
	Now      func() time.Time
}

// Controller owns the board and drives both sides. It runs every command to
// completion, including the opponent's reply, and is not safe for concurrent use.
type Controller struct {
	opponent Opponent
	settings *Settings
	opts     Options
	logger   *zap.Logger

	game     *nchess.Game
	selector Selector
	phase    Phase
	started  bool
	result   Result

	sessionID string
	startedAt time.Time
	archived  bool

	movesUCI  []string
	movesSAN  []string
	lastMove  *Move
	lastTag   MoveTag
	gameEnded bool
	opening   Opening
	engineErr error
}

func NewController(opponent Opponent, settings *Settings, opts Options) *Controller {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Describe == nil {
		opts.Describe = Result.String
	}
	c := &Controller{
		opponent: opponent,
		settings: settings,
		opts:     opts,
		logger:   opts.Logger,
	}
	c.resetBoard()
	return c
}

func (c *Controller) Settings() *Settings { return c.settings }

// Start applies the configured strength and begins the first game.
func (c *Controller) Start(ctx context.Context) error {
	c.logger.Info("session start",
		zap.String("human_color", colorName(c.settings.HumanColor())),
		zap.Int("strength", c.settings.Strength()),
		zap.Duration("think_time", c.settings.ThinkTime()),
	)
	return c.NewGame(ctx)
}

// NewGame resets the board and re-applies the current configuration. Settings survive.
// When the opponent owns the first move it is played before NewGame returns.
func (c *Controller) NewGame(ctx context.Context) error {
	c.resetBoard()
	if err := c.opponent.NewGame(ctx); err != nil {
		c.logger.Warn("engine new game failed", zap.Error(err))
	}
	c.opponent.Configure(ctx, c.settings.Strength())
	c.logger.Info("new game",
		zap.String("session_id", c.sessionID),
		zap.String("human_color", colorName(c.settings.HumanColor())),
	)
	return c.runOpponent(ctx)
}

func (c *Controller) resetBoard() {
	c.game = nchess.NewGame()
	c.selector.Reset()
	c.phase = AwaitingHuman
	c.started = false
	c.result = Result{}
	c.sessionID = uuid.NewString()
	c.startedAt = c.opts.Now()
	c.archived = false
	c.movesUCI = nil
	c.movesSAN = nil
	c.lastMove = nil
	c.lastTag = TagNone
	c.gameEnded = false
	c.opening = Opening{}
	c.engineErr = nil
}

// ClickSquare feeds a board click to the selector. Clicks are ignored unless the
// human is to move.
func (c *Controller) ClickSquare(ctx context.Context, sq nchess.Square) (ClickResult, error) {
	if !c.humanToMove() {
		return ClickIgnored, nil
	}
	res, err := c.selector.Click(ctx, sq, c)
	if res == ClickSelected || res == ClickDeselected || res == ClickRejected {
		c.publish()
	}
	return res, err
}

// CanSelect implements MoveSubmitter.
func (c *Controller) CanSelect(sq nchess.Square) bool {
	if !c.humanToMove() {
		return false
	}
	piece := c.PieceAt(sq)
	return piece != nchess.NoPiece && piece.Color() == c.settings.HumanColor()
}

func (c *Controller) PieceAt(sq nchess.Square) nchess.Piece {
	return c.game.Position().Board().Piece(sq)
}

// AttemptMove plays m for the human. Any requested promotion is replaced by the
// forced queen promotion. An illegal move leaves the position untouched
// and reports false without an error. On success the opponent replies before
// AttemptMove returns; a failed reply is returned wrapped in ErrEngineUnavailable.
func (c *Controller) AttemptMove(ctx context.Context, m Move) (bool, error) {
	if !c.humanToMove() {
		return false, nil
	}
	m.Promotion = PromotionFor(c.PieceAt(m.From), m.To)
	legal, ok := c.findLegal(m)
	if !ok {
		c.logger.Debug("illegal move ignored", zap.String("move", m.UCI()))
		return false, nil
	}

	c.selector.Reset()
	if err := c.apply(legal); err != nil {
		c.logger.Warn("legal move refused by rules library", zap.String("move", m.UCI()), zap.Error(err))
		return false, nil
	}
	c.started = true
	if c.finishIfOver(ctx) {
		return true, nil
	}
	return true, c.runOpponent(ctx)
}

// runOpponent plays the opponent's move when, and only when, the opponent owns
// the turn. Every path publishes.
func (c *Controller) runOpponent(ctx context.Context) error {
	if c.phase == Terminal || c.game.Position().Turn() == c.settings.HumanColor() {
		c.publish()
		return nil
	}

	c.phase = OpponentThinking
	c.engineErr = nil
	c.publish()

	req := chess.MoveRequest{
		Moves:  append([]string(nil), c.movesUCI...),
		Budget: c.settings.ThinkTime(),
	}
	reply, err := c.opponent.RequestMove(ctx, req)
	if err != nil {
		return c.opponentFailed(err)
	}

	mv, err := c.decodeReply(reply)
	if err != nil {
		return c.opponentFailed(err)
	}
	if err := c.apply(mv); err != nil {
		return c.opponentFailed(err)
	}
	if c.finishIfOver(ctx) {
		return nil
	}
	c.phase = AwaitingHuman
	c.publish()
	return nil
}

func (c *Controller) opponentFailed(err error) error {
	c.engineErr = err
	c.logger.Warn("opponent move failed",
		zap.String("session_id", c.sessionID),
		zap.Int("ply", len(c.movesUCI)),
		zap.Error(err),
	)
	c.publish()
	return fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
}

// RetryOpponent re-issues a move request that failed. It does nothing otherwise.
func (c *Controller) RetryOpponent(ctx context.Context) error {
	if c.phase != OpponentThinking || c.engineErr == nil {
		return nil
	}
	return c.runOpponent(ctx)
}

func (c *Controller) decodeReply(reply string) (*nchess.Move, error) {
	reply = strings.ToLower(strings.TrimSpace(reply))
	decoded, err := nchess.UCINotation{}.Decode(c.game.Position(), reply)
	if err != nil {
		return nil, fmt.Errorf("decode engine move %q: %w", reply, err)
	}
	legal, ok := c.findLegal(Move{From: decoded.S1(), To: decoded.S2(), Promotion: decoded.Promo()})
	if !ok {
		return nil, fmt.Errorf("engine move %q is not legal here", reply)
	}
	return legal, nil
}

func (c *Controller) findLegal(m Move) (*nchess.Move, bool) {
	for _, mv := range c.game.ValidMoves() {
		if mv.S1() == m.From && mv.S2() == m.To && mv.Promo() == m.Promotion {
			return &mv, true
		}
	}
	return nil, false
}

func (c *Controller) apply(mv *nchess.Move) error {
	pos := c.game.Position()
	color := pos.Turn()
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	uci := nchess.UCINotation{}.Encode(pos, mv)
	tag := tagFor(mv)

	if err := c.game.Move(mv, nil); err != nil {
		return err
	}

	c.movesUCI = append(c.movesUCI, strings.ToLower(uci))
	c.movesSAN = append(c.movesSAN, san)
	c.lastMove = &Move{From: mv.S1(), To: mv.S2(), Promotion: mv.Promo()}
	c.lastTag = tag
	c.opening = findOpening(c.game)
	c.logger.Debug("move applied",
		zap.String("color", colorName(color)),
		zap.String("uci", uci),
		zap.String("san", san),
		zap.Stringer("tag", tag),
	)
	return nil
}

func tagFor(mv *nchess.Move) MoveTag {
	switch {
	case mv.HasTag(nchess.Check):
		return TagCheck
	case mv.HasTag(nchess.Capture), mv.HasTag(nchess.EnPassant):
		return TagCapture
	default:
		return TagQuiet
	}
}

func (c *Controller) finishIfOver(ctx context.Context) bool {
	res := Classify(c.game, c.settings.HumanColor())
	if !res.Terminal() {
		return false
	}
	c.terminate(ctx, res)
	return true
}

func (c *Controller) terminate(ctx context.Context, res Result) {
	c.result = res
	c.phase = Terminal
	c.gameEnded = true
	c.engineErr = nil
	c.selector.Reset()
	c.logger.Info("game over",
		zap.String("session_id", c.sessionID),
		zap.Stringer("result", res),
		zap.Int("plies", len(c.movesUCI)),
	)
	c.archive(ctx)
	c.publish()
}

// Resign ends the game at once with the fixed resignation result, whatever the
// board shows.
func (c *Controller) Resign(ctx context.Context) {
	if c.result.Kind == ResultResigned {
		return
	}
	human := c.settings.HumanColor()
	if c.game.Outcome() == nchess.NoOutcome {
		c.game.Resign(human)
	}
	c.terminate(ctx, Resignation(human))
}

// SetStrength updates the setting and reconfigures the opponent now. The new
// strength governs the next move request.
func (c *Controller) SetStrength(ctx context.Context, level int) error {
	if err := chess.ValidateStrength(level); err != nil {
		return err
	}
	c.settings.setStrength(level)
	c.opponent.Configure(ctx, level)
	c.publish()
	return nil
}

// SetThinkTime changes the budget of the next move request.
func (c *Controller) SetThinkTime(d time.Duration) error {
	if err := chess.ValidateThinkTime(d); err != nil {
		return err
	}
	c.settings.setThinkTime(d)
	c.publish()
	return nil
}

// SetHumanColor is only accepted before the human's first move. The untouched
// game restarts from the initial position and the orientation follows the colour.
func (c *Controller) SetHumanColor(ctx context.Context, color nchess.Color) error {
	if color != nchess.White && color != nchess.Black {
		return ErrInvalidColor
	}
	if c.started {
		return ErrColorLocked
	}
	c.settings.setHumanColor(color)
	return c.NewGame(ctx)
}

// FlipOrientation only changes how the board is drawn.
func (c *Controller) FlipOrientation() {
	c.settings.toggleFlipped()
	c.publish()
}

func (c *Controller) SetPieceSet(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultPieceSet
	}
	c.settings.setPieceSet(name)
	c.publish()
}

func (c *Controller) Phase() Phase { return c.phase }

// PGN returns the game so far in PGN.
func (c *Controller) PGN() string { return c.game.String() }

func (c *Controller) humanToMove() bool {
	return c.phase == AwaitingHuman && c.game.Position().Turn() == c.settings.HumanColor()
}

func (c *Controller) archive(ctx context.Context) {
	if c.archived || c.opts.Archive == nil {
		return
	}
	c.archived = true
	rec := archive.Record{
		ID:         c.sessionID,
		HumanColor: colorName(c.settings.HumanColor()),
		Strength:   c.settings.Strength(),
		ThinkTime:  c.settings.ThinkTime(),
		Result:     c.result.Kind.String(),
		Method:     c.result.Draw.String(),
		Text:       c.opts.Describe(c.result),
		MovesUCI:   append([]string(nil), c.movesUCI...),
		MovesSAN:   append([]string(nil), c.movesSAN...),
		PGN:        c.game.String(),
		StartedAt:  c.startedAt,
		EndedAt:    c.opts.Now(),
	}
	if c.result.Kind == ResultHumanWon || c.result.Kind == ResultOpponentWon {
		rec.Method = "checkmate"
	}
	if c.result.Kind == ResultResigned {
		rec.Method = "resignation"
	}
	if err := c.opts.Archive.Save(ctx, rec); err != nil && !errors.Is(err, archive.ErrDuplicateGame) {
		c.logger.Warn("archive game failed", zap.String("session_id", c.sessionID), zap.Error(err))
	}
}

// Snapshot returns the current state for presentation.
func (c *Controller) Snapshot() Snapshot {
	pos := c.game.Position()
	board := pos.Board()
	material, captured := computeMaterial(board)

	snap := Snapshot{
		SessionID: c.sessionID,
		Phase:     c.phase,
		FEN:       c.game.FEN(),
		Board:     board.SquareMap(),
		Turn:      pos.Turn(),
		Started:   c.started,
		Result:    c.result,
		LastTag:   c.lastTag,
		GameEnded: c.gameEnded,
		History:   c.history(),
		Captured:  captured,
		Material:  material,
		Opening:   c.opening,
		Settings:  c.settings.View(),
		EngineErr: c.engineErr,
	}
	if c.lastMove != nil {
		last := *c.lastMove
		snap.LastMove = &last
	}
	if held, ok := c.selector.Held(); ok {
		snap.Selected = held
		snap.Holding = true
		for _, mv := range c.game.ValidMoves() {
			if mv.S1() == held {
				snap.Targets = appendUnique(snap.Targets, mv.S2())
			}
		}
	}
	return snap
}

func (c *Controller) history() []HistoryEntry {
	start := len(c.movesSAN) - c.opts.HistoryLimit
	if start < 0 {
		start = 0
	}
	out := make([]HistoryEntry, 0, len(c.movesSAN)-start)
	for i := start; i < len(c.movesSAN); i++ {
		color := nchess.White
		if i%2 == 1 {
			color = nchess.Black
		}
		out = append(out, HistoryEntry{
			Number: i/2 + 1,
			Color:  color,
			SAN:    c.movesSAN[i],
			UCI:    c.movesUCI[i],
		})
	}
	return out
}

func (c *Controller) publish() {
	if c.opts.Observer != nil {
		c.opts.Observer(c.Snapshot())
	}
}

func appendUnique(list []nchess.Square, sq nchess.Square) []nchess.Square {
	for _, s := range list {
		if s == sq {
			return list
		}
	}
	return append(list, sq)
}

func colorName(c nchess.Color) string {
	switch c {
	case nchess.White:
		return "white"
	case nchess.Black:
		return "black"
	default:
		return "none"
	}
}

var (
	bookOnce sync.Once
	book     *opening.BookECO
)

func findOpening(game *nchess.Game) Opening {
	bookOnce.Do(func() { book = opening.NewBookECO() })
	if book == nil {
		return Opening{}
	}
	if o := book.Find(game.Moves()); o != nil {
		return Opening{Code: o.Code(), Title: o.Title()}
	}
	return Opening{}
}
