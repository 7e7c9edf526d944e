package tui

import (
	"image"
	"testing"

	nchess "github.com/corentings/chess/v2"
)

func TestComputeLayoutSizes(t *testing.T) {
	cases := []struct {
		name         string
		w, h         int
		cellW, cellH int
	}{
		{"large terminal", 200, 60, 7, 3},
		{"standard 80x24", 80, 24, 5, 2},
		{"short terminal", 120, 12, 3, 1},
		{"narrow terminal", 50, 40, 2, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := ComputeLayout(0, 0, tc.w, tc.h)
			if l.CellW != tc.cellW || l.CellH != tc.cellH {
				t.Fatalf("cell %dx%d, want %dx%d", l.CellW, l.CellH, tc.cellW, tc.cellH)
			}
			if l.Panel.Min.X < l.Board().Max.X {
				t.Fatalf("panel %v overlaps board %v", l.Panel, l.Board())
			}
		})
	}
}

func TestSquareAtRespectsOrientation(t *testing.T) {
	l := ComputeLayout(1, 1, 120, 30)
	board := l.Board()
	topLeft := image.Point{X: board.Min.X, Y: board.Min.Y}
	bottomLeft := image.Point{X: board.Min.X, Y: board.Max.Y - 1}

	cases := []struct {
		p       image.Point
		flipped bool
		want    string
	}{
		{topLeft, false, "a8"},
		{bottomLeft, false, "a1"},
		{topLeft, true, "h1"},
		{bottomLeft, true, "h8"},
	}
	for _, tc := range cases {
		sq, ok := l.SquareAt(tc.p.X, tc.p.Y, tc.flipped)
		if !ok || sq.String() != tc.want {
			t.Errorf("SquareAt(%v, flipped=%v) = %v %v, want %s", tc.p, tc.flipped, sq, ok, tc.want)
		}
	}

	if _, ok := l.SquareAt(board.Max.X, board.Min.Y, false); ok {
		t.Errorf("cell right of the board must not map to a square")
	}
	if _, ok := l.SquareAt(board.Min.X-1, board.Min.Y, false); ok {
		t.Errorf("rank label column must not map to a square")
	}
}

func TestCellRectRoundTrip(t *testing.T) {
	l := ComputeLayout(0, 0, 100, 26)
	for _, flipped := range []bool{false, true} {
		for i := 0; i < 64; i++ {
			sq := nchess.Square(i)
			rect := l.CellRect(sq, flipped)
			for _, p := range []image.Point{rect.Min, rect.Max.Sub(image.Point{X: 1, Y: 1})} {
				got, ok := l.SquareAt(p.X, p.Y, flipped)
				if !ok || got != sq {
					t.Fatalf("flipped=%v: %v at %v maps back to %v", flipped, sq, p, got)
				}
			}
		}
	}
}
