package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"os"
	"path/filepath"
	"time"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/cheese-solo-chess/internal/session"
)

const (
	squareSize  = 72
	boardMargin = 24
	boardSize   = squareSize * 8
)

var (
	lightSquare         = color.RGBA{233, 207, 163, 255}
	darkSquare          = color.RGBA{187, 136, 96, 255}
	backgroundColor     = color.RGBA{46, 42, 38, 255}
	lastMoveColor       = color.NRGBA{R: 246, G: 222, B: 92, A: 110}
	selectedColor       = color.NRGBA{R: 96, G: 170, B: 96, A: 150}
	targetColor         = color.NRGBA{R: 40, G: 40, B: 40, A: 110}
	coordinateTextColor = color.RGBA{220, 210, 196, 255}
)

// Options controls what is marked on the board besides the pieces.
type Options struct {
	Flipped  bool
	PieceSet string
	Selected nchess.Square
	Holding  bool
	Targets  []nchess.Square
	LastMove *session.Move
}

// OptionsFor copies the markings of a published snapshot.
func OptionsFor(snap session.Snapshot) Options {
	return Options{
		Flipped:  snap.Settings.Flipped,
		PieceSet: snap.Settings.PieceSet,
		Selected: snap.Selected,
		Holding:  snap.Holding,
		Targets:  snap.Targets,
		LastMove: snap.LastMove,
	}
}

type BoardRenderer struct {
	pieces *PieceSets
}

func NewBoardRenderer(pieces *PieceSets) *BoardRenderer {
	if pieces == nil {
		pieces = NewPieceSets("", nil)
	}
	return &BoardRenderer{pieces: pieces}
}

func (r *BoardRenderer) Pieces() *PieceSets { return r.pieces }

// Render draws the board into a new image. a1 sits bottom-left unless flipped.
func (r *BoardRenderer) Render(ctx context.Context, board map[nchess.Square]nchess.Piece, opts Options) (*image.RGBA, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	total := boardSize + boardMargin*2
	origin := image.Point{X: boardMargin, Y: boardMargin}
	img := image.NewRGBA(image.Rect(0, 0, total, total))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	drawSquares(img, origin, opts.Flipped)
	if opts.LastMove != nil {
		drawSquareOverlay(img, opts.LastMove.From, origin, opts.Flipped, lastMoveColor)
		drawSquareOverlay(img, opts.LastMove.To, origin, opts.Flipped, lastMoveColor)
	}
	if opts.Holding {
		drawSquareOverlay(img, opts.Selected, origin, opts.Flipped, selectedColor)
	}
	if err := r.drawPieces(img, board, origin, opts); err != nil {
		return nil, err
	}
	if opts.Holding {
		for _, sq := range opts.Targets {
			rect := squareRect(sq, origin, opts.Flipped)
			center := image.Point{X: rect.Min.X + squareSize/2, Y: rect.Min.Y + squareSize/2}
			drawDisc(img, center, squareSize/7, targetColor)
		}
	}
	drawCoordinates(img, origin, opts.Flipped)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return img, nil
}

func (r *BoardRenderer) RenderPNG(ctx context.Context, board map[nchess.Square]nchess.Piece, opts Options) ([]byte, error) {
	img, err := r.Render(ctx, board, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteSnapshot renders snap as a PNG file in dir and returns its path.
func (r *BoardRenderer) WriteSnapshot(ctx context.Context, dir string, snap session.Snapshot, now time.Time) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("snapshot dir is not configured")
	}
	data, err := r.RenderPNG(ctx, snap.Board, OptionsFor(snap))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	name := fmt.Sprintf("cheese-chess-%s.png", now.Format("20060102-150405.000"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

func (r *BoardRenderer) drawPieces(img *image.RGBA, board map[nchess.Square]nchess.Piece, origin image.Point, opts Options) error {
	for sq, piece := range board {
		if piece == nchess.NoPiece {
			continue
		}
		pieceImg, err := r.pieces.Image(opts.PieceSet, piece, squareSize)
		if err != nil {
			return err
		}
		rect := squareRect(sq, origin, opts.Flipped)
		imagedraw.Draw(img, rect, pieceImg, image.Point{}, imagedraw.Over)
	}
	return nil
}

func drawSquares(img *image.RGBA, origin image.Point, flipped bool) {
	for i := 0; i < 64; i++ {
		sq := nchess.Square(i)
		rect := squareRect(sq, origin, flipped)
		imagedraw.Draw(img, rect, image.NewUniform(squareColor(sq)), image.Point{}, imagedraw.Src)
	}
}

func drawSquareOverlay(img *image.RGBA, sq nchess.Square, origin image.Point, flipped bool, clr color.Color) {
	rect := squareRect(sq, origin, flipped)
	imagedraw.Draw(img, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawCoordinates(dst imagedraw.Image, origin image.Point, flipped bool) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{
		Dst:  dst,
		Face: face,
		Src:  image.NewUniform(coordinateTextColor),
	}
	ascent := face.Metrics().Ascent.Ceil()
	files := "abcdefgh"
	ranks := "12345678"

	for i := 0; i < 8; i++ {
		col, row := i, 7-i
		if flipped {
			col, row = 7-i, i
		}
		fileX := origin.X + col*squareSize + squareSize/2
		drawCenteredText(drawer, files[i:i+1], fileX, origin.Y+boardSize+(boardMargin+ascent)/2)

		rankY := origin.Y + row*squareSize + squareSize/2 + ascent/2
		drawCenteredText(drawer, ranks[i:i+1], origin.X/2, rankY)
	}
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func drawDisc(img *image.RGBA, center image.Point, radius int, clr color.Color) {
	r2 := radius * radius
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y > r2 {
				continue
			}
			blendPixel(img, center.X+x, center.Y+y, clr)
		}
	}
}

func blendPixel(img *image.RGBA, x, y int, clr color.Color) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}
	sr, sg, sb, sa := clr.RGBA()
	if sa == 0 {
		return
	}
	dst := img.RGBAAt(x, y)
	inv := 0xffff - sa
	img.SetRGBA(x, y, color.RGBA{
		R: uint8((sr + uint32(dst.R)*0x101*inv/0xffff) >> 8),
		G: uint8((sg + uint32(dst.G)*0x101*inv/0xffff) >> 8),
		B: uint8((sb + uint32(dst.B)*0x101*inv/0xffff) >> 8),
		A: uint8((sa + uint32(dst.A)*0x101*inv/0xffff) >> 8),
	})
}

// squareRect maps a square to its pixel rectangle. Orientation only changes
// where a square is drawn, never which square it is.
func squareRect(sq nchess.Square, origin image.Point, flipped bool) image.Rectangle {
	col := int(sq.File())
	row := 7 - int(sq.Rank())
	if flipped {
		col = 7 - col
		row = 7 - row
	}
	x := origin.X + col*squareSize
	y := origin.Y + row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func squareColor(sq nchess.Square) color.Color {
	if (int(sq.File())+int(sq.Rank()))%2 == 0 {
		return darkSquare
	}
	return lightSquare
}
