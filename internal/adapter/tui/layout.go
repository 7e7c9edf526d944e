package tui

import (
	"image"

	nchess "github.com/corentings/chess/v2"
)

const (
	rankLabelWidth  = 3
	fileLabelHeight = 1
	panelGap        = 2
	minPanelWidth   = 30
	maxCellHeight   = 3
)

// Layout places the board and the status panel inside a screen rectangle.
// It is a value computed on every draw from the current terminal size.
type Layout struct {
	Origin image.Point
	CellW  int
	CellH  int
	Panel  image.Rectangle
}

// ComputeLayout fits eight rows of cells into height and keeps cells about
// twice as wide as they are tall, leaving room for the panel on the right.
func ComputeLayout(x, y, width, height int) Layout {
	cellH := (height - fileLabelHeight) / 8
	if cellH > maxCellHeight {
		cellH = maxCellHeight
	}
	if cellH < 1 {
		cellH = 1
	}
	cellW := 2*cellH + 1
	if avail := (width - rankLabelWidth - panelGap - minPanelWidth) / 8; avail < cellW {
		cellW = avail
		if cellW < 2 {
			cellW = 2
		}
		if cellH > cellW/2 {
			cellH = max(1, cellW/2)
		}
	}

	origin := image.Point{X: x + rankLabelWidth, Y: y}
	panelX := origin.X + 8*cellW + panelGap
	return Layout{
		Origin: origin,
		CellW:  cellW,
		CellH:  cellH,
		Panel:  image.Rect(panelX, y, max(panelX, x+width), y+height),
	}
}

func (l Layout) Board() image.Rectangle {
	return image.Rect(l.Origin.X, l.Origin.Y, l.Origin.X+8*l.CellW, l.Origin.Y+8*l.CellH)
}

// SquareAt maps a screen cell to the square drawn there.
func (l Layout) SquareAt(px, py int, flipped bool) (nchess.Square, bool) {
	if !(image.Point{X: px, Y: py}).In(l.Board()) {
		return nchess.NoSquare, false
	}
	col := (px - l.Origin.X) / l.CellW
	row := (py - l.Origin.Y) / l.CellH
	file, rank := col, 7-row
	if flipped {
		file, rank = 7-col, row
	}
	return nchess.Square(rank*8 + file), true
}

// CellRect is the inverse of SquareAt.
func (l Layout) CellRect(sq nchess.Square, flipped bool) image.Rectangle {
	col, row := int(sq.File()), 7-int(sq.Rank())
	if flipped {
		col, row = 7-col, 7-row
	}
	x := l.Origin.X + col*l.CellW
	y := l.Origin.Y + row*l.CellH
	return image.Rect(x, y, x+l.CellW, y+l.CellH)
}
