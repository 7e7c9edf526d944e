package tui

import (
	"image"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/park285/cheese-solo-chess/internal/msgcat"
	"github.com/park285/cheese-solo-chess/internal/session"
)

var (
	lightSquare    = tcell.NewRGBColor(233, 207, 163)
	darkSquare     = tcell.NewRGBColor(187, 136, 96)
	lastMoveSquare = tcell.NewRGBColor(214, 196, 92)
	selectedSquare = tcell.NewRGBColor(110, 170, 100)
	targetMark     = tcell.NewRGBColor(60, 60, 60)
	whitePiece     = tcell.NewRGBColor(255, 255, 255)
	blackPiece     = tcell.NewRGBColor(0, 0, 0)
	labelColor     = tcell.ColorGray
)

// BoardView draws the latest published snapshot: the board on the left and
// the status panel on the right. Clicks on the board are reported as squares.
type BoardView struct {
	*tview.Box

	catalog  *msgcat.Catalog
	opponent string
	onClick  func(nchess.Square)

	mu     sync.Mutex
	snap   session.Snapshot
	notice string
	beep   bool
}

func NewBoardView(catalog *msgcat.Catalog, opponent string, onClick func(nchess.Square)) *BoardView {
	return &BoardView{
		Box:      tview.NewBox(),
		catalog:  catalog,
		opponent: opponent,
		onClick:  onClick,
	}
}

// Update stores snap for the next draw and arms the bell on a check or game end.
func (v *BoardView) Update(snap session.Snapshot) {
	v.mu.Lock()
	if cueFor(v.snap, snap) {
		v.beep = true
	}
	v.snap = snap
	v.mu.Unlock()
}

func (v *BoardView) SetNotice(text string) {
	v.mu.Lock()
	v.notice = text
	v.mu.Unlock()
}

func (v *BoardView) Snapshot() session.Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snap
}

func (v *BoardView) layout() Layout {
	x, y, w, h := v.GetInnerRect()
	return ComputeLayout(x, y, w, h)
}

func (v *BoardView) Draw(screen tcell.Screen) {
	v.Box.DrawForSubclass(screen, v)

	v.mu.Lock()
	snap, notice, beep := v.snap, v.notice, v.beep
	v.beep = false
	v.mu.Unlock()

	if beep {
		_ = screen.Beep()
	}
	if snap.Board == nil {
		return
	}

	l := v.layout()
	flipped := snap.Settings.Flipped
	for i := 0; i < 64; i++ {
		sq := nchess.Square(i)
		drawCell(screen, l.CellRect(sq, flipped), snap.Board[sq], cellBackground(snap, sq), snap.Holding && snap.IsTarget(sq))
	}
	drawLabels(screen, l, flipped)

	width := l.Panel.Dx()
	for row, line := range PanelLines(v.catalog, snap, v.opponent, notice) {
		if row >= l.Panel.Dy() {
			break
		}
		tview.Print(screen, tview.Escape(line), l.Panel.Min.X, l.Panel.Min.Y+row, width, tview.AlignLeft, tcell.ColorDefault)
	}
}

func (v *BoardView) MouseHandler() func(action tview.MouseAction, event *tcell.EventMouse, setFocus func(p tview.Primitive)) (consumed bool, capture tview.Primitive) {
	return v.WrapMouseHandler(func(action tview.MouseAction, event *tcell.EventMouse, setFocus func(p tview.Primitive)) (consumed bool, capture tview.Primitive) {
		if action != tview.MouseLeftClick {
			return false, nil
		}
		x, y := event.Position()
		if !v.InRect(x, y) {
			return false, nil
		}
		setFocus(v)
		sq, ok := v.layout().SquareAt(x, y, v.Snapshot().Settings.Flipped)
		if ok && v.onClick != nil {
			v.onClick(sq)
		}
		return true, nil
	})
}

func cellBackground(snap session.Snapshot, sq nchess.Square) tcell.Color {
	switch {
	case snap.Holding && snap.Selected == sq:
		return selectedSquare
	case snap.LastMove != nil && (snap.LastMove.From == sq || snap.LastMove.To == sq):
		return lastMoveSquare
	case (int(sq.File())+int(sq.Rank()))%2 == 0:
		return darkSquare
	default:
		return lightSquare
	}
}

func drawCell(screen tcell.Screen, rect image.Rectangle, piece nchess.Piece, bg tcell.Color, target bool) {
	style := tcell.StyleDefault.Background(bg)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			screen.SetContent(x, y, ' ', nil, style)
		}
	}
	cx := rect.Min.X + rect.Dx()/2
	cy := rect.Min.Y + rect.Dy()/2
	switch {
	case piece != nchess.NoPiece:
		fg := whitePiece
		if piece.Color() == nchess.Black {
			fg = blackPiece
		}
		if target {
			style = style.Underline(true)
		}
		screen.SetContent(cx, cy, pieceGlyph(piece, true), nil, style.Foreground(fg).Bold(true))
	case target:
		screen.SetContent(cx, cy, '•', nil, style.Foreground(targetMark))
	}
}

func drawLabels(screen tcell.Screen, l Layout, flipped bool) {
	style := tcell.StyleDefault.Foreground(labelColor)
	board := l.Board()
	for i := 0; i < 8; i++ {
		file := nchess.Square(i)
		rect := l.CellRect(file, flipped)
		screen.SetContent(rect.Min.X+rect.Dx()/2, board.Max.Y, rune('a'+i), nil, style)

		rank := nchess.Square(i * 8)
		rect = l.CellRect(rank, flipped)
		screen.SetContent(l.Origin.X-2, rect.Min.Y+rect.Dy()/2, rune('1'+i), nil, style)
	}
}

// pieceGlyph returns the solid figurine for board cells, where colour comes
// from the foreground, and the outlined white figurines elsewhere.
func pieceGlyph(p nchess.Piece, solid bool) rune {
	glyphs := map[nchess.PieceType][2]rune{
		nchess.King:   {'♔', '♚'},
		nchess.Queen:  {'♕', '♛'},
		nchess.Rook:   {'♖', '♜'},
		nchess.Bishop: {'♗', '♝'},
		nchess.Knight: {'♘', '♞'},
		nchess.Pawn:   {'♙', '♟'},
	}
	g, ok := glyphs[p.Type()]
	if !ok {
		return ' '
	}
	if solid || p.Color() == nchess.Black {
		return g[1]
	}
	return g[0]
}

// cueFor reports whether moving from prev to next deserves the terminal bell.
func cueFor(prev, next session.Snapshot) bool {
	if next.GameEnded && !prev.GameEnded {
		return true
	}
	return next.LastTag == session.TagCheck && next.FEN != prev.FEN
}
