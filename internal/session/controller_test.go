package session

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/park285/cheese-solo-chess/internal/archive"
	"github.com/park285/cheese-solo-chess/internal/chess"
)

type fakeOpponent struct {
	mu         sync.Mutex
	replies    []string
	fail       error
	requests   []chess.MoveRequest
	configured []int
	newGames   int
	// firstLegal replays the moves and answers with the first legal reply
	firstLegal bool
}

func (f *fakeOpponent) Configure(ctx context.Context, strength int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configured = append(f.configured, strength)
}

func (f *fakeOpponent) NewGame(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.newGames++
	return nil
}

func (f *fakeOpponent) RequestMove(ctx context.Context, req chess.MoveRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.fail != nil {
		return "", f.fail
	}
	if f.firstLegal {
		g := nchess.NewGame()
		for _, s := range req.Moves {
			mv, err := nchess.UCINotation{}.Decode(g.Position(), s)
			if err != nil {
				return "", err
			}
			if err := g.Move(mv, nil); err != nil {
				return "", err
			}
		}
		moves := g.ValidMoves()
		if len(moves) == 0 {
			return "", errors.New("no legal moves")
		}
		return nchess.UCINotation{}.Encode(g.Position(), &moves[0]), nil
	}
	if len(f.replies) == 0 {
		return "", errors.New("script exhausted")
	}
	next := f.replies[0]
	f.replies = f.replies[1:]
	return next, nil
}

type recorder struct {
	snaps []Snapshot
}

func (r *recorder) observe(s Snapshot) { r.snaps = append(r.snaps, s) }

func (r *recorder) phases() []Phase {
	out := make([]Phase, 0, len(r.snaps))
	for _, s := range r.snaps {
		out = append(out, s.Phase)
	}
	return out
}

func newTestController(t *testing.T, human nchess.Color, opp *fakeOpponent) (*Controller, *recorder, *archive.MemoryStore) {
	t.Helper()
	rec := &recorder{}
	store := archive.NewMemoryStore()
	c := NewController(opp, NewSettings(1200, 500*time.Millisecond, human, "classic"), Options{
		Archive:  store,
		Observer: rec.observe,
	})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return c, rec, store
}

func sq(t *testing.T, name string) nchess.Square {
	t.Helper()
	for i := 0; i < 64; i++ {
		if s := nchess.Square(i); s.String() == name {
			return s
		}
	}
	t.Fatalf("bad square %q", name)
	return nchess.NoSquare
}

func mustPlay(t *testing.T, c *Controller, from, to string) {
	t.Helper()
	ok, err := c.AttemptMove(context.Background(), Move{From: sq(t, from), To: sq(t, to)})
	if err != nil {
		t.Fatalf("AttemptMove %s%s: %v", from, to, err)
	}
	if !ok {
		t.Fatalf("AttemptMove %s%s rejected", from, to)
	}
}

func TestHumanMoveRunsOpponentSynchronously(t *testing.T) {
	opp := &fakeOpponent{replies: []string{"e7e5"}}
	c, rec, _ := newTestController(t, nchess.White, opp)
	rec.snaps = nil

	mustPlay(t, c, "e2", "e4")

	want := []Phase{OpponentThinking, AwaitingHuman}
	if diff := cmp.Diff(want, rec.phases()); diff != "" {
		t.Fatalf("phase sequence mismatch (-want +got):\n%s", diff)
	}
	thinking := rec.snaps[0]
	if thinking.Turn != nchess.Black {
		t.Fatalf("expected black to move while opponent thinks, got %v", thinking.Turn)
	}

	snap := c.Snapshot()
	if snap.Turn != nchess.White || !snap.Started {
		t.Fatalf("expected white to move in a started game: %+v", snap)
	}
	wantReq := []chess.MoveRequest{{Moves: []string{"e2e4"}, Budget: 500 * time.Millisecond}}
	if diff := cmp.Diff(wantReq, opp.requests); diff != "" {
		t.Fatalf("requests mismatch (-want +got):\n%s", diff)
	}
	wantHist := []HistoryEntry{
		{Number: 1, Color: nchess.White, SAN: "e4", UCI: "e2e4"},
		{Number: 1, Color: nchess.Black, SAN: "e5", UCI: "e7e5"},
	}
	if diff := cmp.Diff(wantHist, snap.History); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
	if snap.LastMove == nil || snap.LastMove.UCI() != "e7e5" || snap.LastTag != TagQuiet {
		t.Fatalf("unexpected last move %+v tag %v", snap.LastMove, snap.LastTag)
	}
}

func TestClickSameSquareDeselects(t *testing.T) {
	opp := &fakeOpponent{}
	c, _, _ := newTestController(t, nchess.White, opp)
	ctx := context.Background()
	before := c.Snapshot().FEN

	if res, _ := c.ClickSquare(ctx, sq(t, "e2")); res != ClickSelected {
		t.Fatalf("expected selection, got %v", res)
	}
	snap := c.Snapshot()
	if !snap.Holding || snap.Selected != sq(t, "e2") {
		t.Fatalf("expected e2 held, got %+v", snap.Selected)
	}
	if !snap.IsTarget(sq(t, "e4")) || !snap.IsTarget(sq(t, "e3")) || len(snap.Targets) != 2 {
		t.Fatalf("unexpected targets %v", snap.Targets)
	}

	if res, _ := c.ClickSquare(ctx, sq(t, "e2")); res != ClickDeselected {
		t.Fatalf("expected deselect, got %v", res)
	}
	snap = c.Snapshot()
	if snap.Holding || snap.FEN != before || snap.Turn != nchess.White || len(opp.requests) != 0 {
		t.Fatalf("deselect must not touch the position: %+v", snap)
	}
}

func TestOpponentPieceCannotBeSelectedOrCaptured(t *testing.T) {
	opp := &fakeOpponent{}
	c, _, _ := newTestController(t, nchess.White, opp)
	ctx := context.Background()
	before := c.Snapshot().FEN

	if res, _ := c.ClickSquare(ctx, sq(t, "e7")); res != ClickIgnored {
		t.Fatalf("opponent piece must not be selectable, got %v", res)
	}
	if res, _ := c.ClickSquare(ctx, sq(t, "e4")); res != ClickIgnored {
		t.Fatalf("empty square must not be selectable, got %v", res)
	}

	if res, _ := c.ClickSquare(ctx, sq(t, "e2")); res != ClickSelected {
		t.Fatalf("expected e2 selected, got %v", res)
	}
	if res, _ := c.ClickSquare(ctx, sq(t, "e7")); res != ClickRejected {
		t.Fatalf("expected rejected move, got %v", res)
	}
	snap := c.Snapshot()
	if snap.Holding || snap.FEN != before || snap.Started {
		t.Fatalf("rejected move must leave position untouched and selection idle: %+v", snap)
	}
}

func TestRejectedMoveDoesNotReselect(t *testing.T) {
	c, _, _ := newTestController(t, nchess.White, &fakeOpponent{})
	ctx := context.Background()

	c.ClickSquare(ctx, sq(t, "e2"))
	if res, _ := c.ClickSquare(ctx, sq(t, "d2")); res != ClickRejected {
		t.Fatalf("e2d2 must be rejected, got %v", res)
	}
	if c.Snapshot().Holding {
		t.Fatalf("d2 must not be re-selected after a failed attempt")
	}
}

func TestOpponentMovesFirstWhenHumanIsBlack(t *testing.T) {
	opp := &fakeOpponent{replies: []string{"d2d4"}}
	c, _, _ := newTestController(t, nchess.Black, opp)

	snap := c.Snapshot()
	if snap.Phase != AwaitingHuman || snap.Turn != nchess.Black {
		t.Fatalf("expected black to move after opponent opening move: %+v", snap)
	}
	if len(opp.requests) != 1 || len(opp.requests[0].Moves) != 0 {
		t.Fatalf("expected one request from the start position, got %+v", opp.requests)
	}
	if !snap.Settings.Flipped {
		t.Fatalf("black human should see the board flipped")
	}
}

func TestFoolsMateIsDecisiveForOpponent(t *testing.T) {
	opp := &fakeOpponent{replies: []string{"e7e5", "d8h4"}}
	c, rec, store := newTestController(t, nchess.White, opp)

	mustPlay(t, c, "f2", "f3")
	mustPlay(t, c, "g2", "g4")

	snap := c.Snapshot()
	if snap.Phase != Terminal || !snap.GameEnded {
		t.Fatalf("expected terminal after mate: %+v", snap.Phase)
	}
	want := Result{Kind: ResultOpponentWon, Winner: nchess.Black}
	if diff := cmp.Diff(want, snap.Result); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
	if snap.LastTag != TagCheck {
		t.Fatalf("mating move should be tagged check, got %v", snap.LastTag)
	}
	if last := rec.snaps[len(rec.snaps)-1]; last.Phase != Terminal {
		t.Fatalf("last published snapshot should be terminal, got %v", last.Phase)
	}

	recs, _ := store.Recent(context.Background(), 5)
	if len(recs) != 1 {
		t.Fatalf("expected one archived game, got %d", len(recs))
	}
	if recs[0].Result != "opponent_won" || recs[0].Method != "checkmate" || len(recs[0].MovesUCI) != 4 {
		t.Fatalf("unexpected archive record: %+v", recs[0])
	}

	if res, _ := c.ClickSquare(context.Background(), sq(t, "e2")); res != ClickIgnored {
		t.Fatalf("terminal game must ignore clicks, got %v", res)
	}
}

func TestHumanMateIsDecisiveForHuman(t *testing.T) {
	opp := &fakeOpponent{replies: []string{"f2f3", "g2g4"}}
	c, _, _ := newTestController(t, nchess.Black, opp)

	mustPlay(t, c, "e7", "e5")
	mustPlay(t, c, "d8", "h4")

	snap := c.Snapshot()
	if snap.Result.Kind != ResultHumanWon || snap.Result.Winner != nchess.Black {
		t.Fatalf("expected human (black) win, got %+v", snap.Result)
	}
	if len(opp.requests) != 2 {
		t.Fatalf("opponent must not be asked after mate, got %d requests", len(opp.requests))
	}
}

func TestResignMidGame(t *testing.T) {
	opp := &fakeOpponent{replies: []string{"e7e5"}}
	c, _, store := newTestController(t, nchess.White, opp)
	ctx := context.Background()

	mustPlay(t, c, "e2", "e4")
	c.ClickSquare(ctx, sq(t, "d2"))
	c.Resign(ctx)

	snap := c.Snapshot()
	if snap.Phase != Terminal || snap.Result != Resignation(nchess.White) || snap.Holding {
		t.Fatalf("unexpected snapshot after resign: phase=%v result=%+v holding=%v", snap.Phase, snap.Result, snap.Holding)
	}
	if snap.Result.Key() != "result.resigned" {
		t.Fatalf("unexpected result key %q", snap.Result.Key())
	}
	recs, _ := store.Recent(ctx, 5)
	if len(recs) != 1 || recs[0].Method != "resignation" {
		t.Fatalf("expected resignation archived once, got %+v", recs)
	}
	c.Resign(ctx)
	recs, _ = store.Recent(ctx, 5)
	if len(recs) != 1 {
		t.Fatalf("second resign must not archive again, got %d", len(recs))
	}
}

func TestResignBeforeAnyMove(t *testing.T) {
	c, _, _ := newTestController(t, nchess.White, &fakeOpponent{})
	c.Resign(context.Background())
	if got := c.Snapshot().Result.Kind; got != ResultResigned {
		t.Fatalf("expected resignation on untouched board, got %v", got)
	}
}

func TestNewGamePreservesSettings(t *testing.T) {
	opp := &fakeOpponent{replies: []string{"e7e5"}}
	c, _, _ := newTestController(t, nchess.White, opp)
	ctx := context.Background()

	if err := c.SetStrength(ctx, 800); err != nil {
		t.Fatalf("SetStrength: %v", err)
	}
	if err := c.SetThinkTime(2 * time.Second); err != nil {
		t.Fatalf("SetThinkTime: %v", err)
	}
	c.SetPieceSet("modern")
	mustPlay(t, c, "e2", "e4")
	c.ClickSquare(ctx, sq(t, "d2"))

	if err := c.NewGame(ctx); err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	snap := c.Snapshot()
	if snap.FEN != nchess.NewGame().FEN() || snap.Holding || snap.Terminal() || snap.Started {
		t.Fatalf("new game must reset board and selection: %+v", snap)
	}
	wantSettings := SettingsView{Strength: 800, ThinkTime: 2 * time.Second, HumanColor: nchess.White, PieceSet: "modern"}
	if diff := cmp.Diff(wantSettings, snap.Settings); diff != "" {
		t.Fatalf("settings mismatch (-want +got):\n%s", diff)
	}
	if got := opp.configured[len(opp.configured)-1]; got != 800 {
		t.Fatalf("new game should re-apply strength 800, got %d", got)
	}
	if opp.newGames != 2 {
		t.Fatalf("expected engine new game per game, got %d", opp.newGames)
	}
}

func TestStrengthAppliesToNextRequest(t *testing.T) {
	opp := &fakeOpponent{replies: []string{"e7e5"}}
	c, _, _ := newTestController(t, nchess.White, opp)
	ctx := context.Background()

	if err := c.SetStrength(ctx, 800); err != nil {
		t.Fatalf("SetStrength: %v", err)
	}
	if err := c.SetStrength(ctx, 0); err == nil {
		t.Fatalf("strength 0 must be rejected")
	}
	if err := c.SetThinkTime(0); err == nil {
		t.Fatalf("zero think time must be rejected")
	}
	if diff := cmp.Diff([]int{1200, 800}, opp.configured); diff != "" {
		t.Fatalf("configure calls mismatch (-want +got):\n%s", diff)
	}
	mustPlay(t, c, "e2", "e4")
	if got := opp.requests[0].Budget; got != 500*time.Millisecond {
		t.Fatalf("unexpected budget %v", got)
	}
}

func TestSetHumanColorOnlyBeforeStart(t *testing.T) {
	opp := &fakeOpponent{replies: []string{"e2e4", "d2d4"}}
	c, _, _ := newTestController(t, nchess.White, opp)
	ctx := context.Background()

	if err := c.SetHumanColor(ctx, nchess.Black); err != nil {
		t.Fatalf("SetHumanColor before start: %v", err)
	}
	snap := c.Snapshot()
	if snap.Settings.HumanColor != nchess.Black || !snap.Settings.Flipped || snap.Turn != nchess.Black {
		t.Fatalf("expected opponent to open for black human: %+v", snap)
	}

	mustPlay(t, c, "e7", "e5")
	if err := c.SetHumanColor(ctx, nchess.White); !errors.Is(err, ErrColorLocked) {
		t.Fatalf("expected ErrColorLocked, got %v", err)
	}
	if c.Settings().HumanColor() != nchess.Black {
		t.Fatalf("locked colour must not change")
	}
	if err := c.SetHumanColor(ctx, nchess.NoColor); !errors.Is(err, ErrInvalidColor) {
		t.Fatalf("expected ErrInvalidColor, got %v", err)
	}
}

func TestFlipOrientationIsPresentationOnly(t *testing.T) {
	c, _, _ := newTestController(t, nchess.White, &fakeOpponent{})
	before := c.Snapshot()
	c.FlipOrientation()
	after := c.Snapshot()
	if !after.Settings.Flipped || after.FEN != before.FEN || after.Turn != before.Turn {
		t.Fatalf("flip must only toggle orientation")
	}
	if res, _ := c.ClickSquare(context.Background(), sq(t, "e2")); res != ClickSelected {
		t.Fatalf("flip must not change square semantics, got %v", res)
	}
}

func TestOpponentFailureKeepsThinkingUntilRetry(t *testing.T) {
	boom := errors.New("engine crashed")
	opp := &fakeOpponent{fail: boom}
	c, _, _ := newTestController(t, nchess.White, opp)
	ctx := context.Background()

	ok, err := c.AttemptMove(ctx, Move{From: sq(t, "e2"), To: sq(t, "e4")})
	if !ok || !errors.Is(err, ErrEngineUnavailable) || !errors.Is(err, boom) {
		t.Fatalf("expected applied move with wrapped engine error, got ok=%v err=%v", ok, err)
	}
	snap := c.Snapshot()
	if snap.Phase != OpponentThinking || snap.EngineErr == nil {
		t.Fatalf("expected opponent thinking with error: %+v", snap)
	}
	if res, _ := c.ClickSquare(ctx, sq(t, "d2")); res != ClickIgnored {
		t.Fatalf("human input must be ignored while opponent owns the turn, got %v", res)
	}

	opp.fail = nil
	opp.replies = []string{"c7c5"}
	if err := c.RetryOpponent(ctx); err != nil {
		t.Fatalf("RetryOpponent: %v", err)
	}
	snap = c.Snapshot()
	if snap.Phase != AwaitingHuman || snap.EngineErr != nil || len(snap.History) != 2 {
		t.Fatalf("retry should complete the opponent move: %+v", snap)
	}
	if err := c.RetryOpponent(ctx); err != nil || len(opp.requests) != 2 {
		t.Fatalf("retry without a failure must be a no-op")
	}
}

func TestIllegalEngineReplyIsReported(t *testing.T) {
	opp := &fakeOpponent{replies: []string{"e2e4"}}
	c, _, _ := newTestController(t, nchess.White, opp)
	_, err := c.AttemptMove(context.Background(), Move{From: sq(t, "d2"), To: sq(t, "d4")})
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable for an illegal reply, got %v", err)
	}
	if c.Snapshot().Turn != nchess.Black {
		t.Fatalf("illegal reply must not be applied")
	}
}

func TestRandomClicksKeepInvariants(t *testing.T) {
	for _, human := range []nchess.Color{nchess.White, nchess.Black} {
		rec := &recorder{}
		opp := &fakeOpponent{firstLegal: true}
		c := NewController(opp, NewSettings(1200, 100*time.Millisecond, human, ""), Options{Observer: rec.observe})
		ctx := context.Background()
		if err := c.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}
		rng := rand.New(rand.NewSource(42))
		for i := 0; i < 3000 && !c.Snapshot().Terminal(); i++ {
			if _, err := c.ClickSquare(ctx, nchess.Square(rng.Intn(64))); err != nil {
				t.Fatalf("click: %v", err)
			}
		}

		for _, req := range opp.requests {
			humanToMove := (len(req.Moves)%2 == 0) == (human == nchess.White)
			if humanToMove {
				t.Fatalf("opponent asked to move on the human's turn after %v", req.Moves)
			}
		}
		for i, s := range rec.snaps {
			if s.Holding && (!s.HumanToMove() || s.Terminal()) {
				t.Fatalf("snapshot %d holds a square outside the human's turn: %+v", i, s)
			}
			for _, side := range []nchess.Color{nchess.White, nchess.Black} {
				for pt, n := range s.Captured.By(side) {
					if n < 0 || n > initialPieceCounts[pt] {
						t.Fatalf("captured count out of range: %v %v=%d", side, pt, n)
					}
				}
			}
		}
		if len(c.Snapshot().History) > DefaultHistoryLimit {
			t.Fatalf("history exceeds limit: %d", len(c.Snapshot().History))
		}
	}
}

func loadFEN(t *testing.T, c *Controller, fen string) {
	t.Helper()
	opt, err := nchess.FEN(fen)
	if err != nil {
		t.Fatalf("FEN %q: %v", fen, err)
	}
	c.game = nchess.NewGame(opt)
}

func TestUnderpromotionIsForcedToQueen(t *testing.T) {
	opp := &fakeOpponent{replies: []string{"h8h7"}}
	c, _, _ := newTestController(t, nchess.White, opp)
	loadFEN(t, c, "7k/P7/8/8/8/8/8/K7 w - - 0 1")

	ok, err := c.AttemptMove(context.Background(), Move{From: sq(t, "a7"), To: sq(t, "a8"), Promotion: nchess.Knight})
	if err != nil || !ok {
		t.Fatalf("AttemptMove a7a8: ok=%v err=%v", ok, err)
	}
	if got := c.PieceAt(sq(t, "a8")); got != nchess.WhiteQueen {
		t.Fatalf("a8 holds %v, want a white queen", got)
	}
	snap := c.Snapshot()
	if snap.LastMove == nil || snap.LastMove.To != sq(t, "h7") {
		t.Fatalf("opponent reply not applied: %+v", snap.LastMove)
	}
	if snap.History[0].UCI != "a7a8q" {
		t.Fatalf("promotion recorded as %q", snap.History[0].UCI)
	}
}

func TestSeventyFiveMoveRuleEndsOnHumanMove(t *testing.T) {
	opp := &fakeOpponent{}
	c, _, store := newTestController(t, nchess.White, opp)
	loadFEN(t, c, "7k/8/8/8/8/8/R7/K7 w - - 149 100")

	mustPlay(t, c, "a2", "b2")

	snap := c.Snapshot()
	want := Result{Kind: ResultDraw, Draw: DrawSeventyFiveMove}
	if snap.Phase != Terminal || snap.Result != want {
		t.Fatalf("phase=%v result=%+v, want terminal %+v", snap.Phase, snap.Result, want)
	}
	if len(opp.requests) != 0 {
		t.Fatalf("opponent must not be asked after the draw, got %d requests", len(opp.requests))
	}
	games, err := store.Recent(context.Background(), 5)
	if err != nil || len(games) != 1 || games[0].Method != DrawSeventyFiveMove.String() {
		t.Fatalf("archived %+v err=%v", games, err)
	}
}

func TestFivefoldRepetitionEndsOnOpponentMove(t *testing.T) {
	var replies []string
	for i := 0; i < 4; i++ {
		replies = append(replies, "g8f6", "f6g8")
	}
	opp := &fakeOpponent{replies: replies}
	c, _, _ := newTestController(t, nchess.White, opp)

	for i := 0; i < 4; i++ {
		mustPlay(t, c, "g1", "f3")
		mustPlay(t, c, "f3", "g1")
	}

	snap := c.Snapshot()
	want := Result{Kind: ResultDraw, Draw: DrawFivefoldRepetition}
	if snap.Phase != Terminal || snap.Result != want {
		t.Fatalf("phase=%v result=%+v, want terminal %+v", snap.Phase, snap.Result, want)
	}
	if len(opp.requests) != 8 || len(opp.replies) != 0 {
		t.Fatalf("expected 8 opponent moves, got %d requests and %d unused replies", len(opp.requests), len(opp.replies))
	}
	if ok, _ := c.AttemptMove(context.Background(), Move{From: sq(t, "g1"), To: sq(t, "f3")}); ok {
		t.Fatalf("moves must be refused after the draw")
	}
}
