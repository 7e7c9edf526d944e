package render

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"go.uber.org/zap"
)

//go:embed assets/pieces/classic/*.svg
var classicFiles embed.FS

// DefaultSet is always available; every other set falls back to it per piece.
const DefaultSet = "classic"

// KnownSets are offered in the UI even when no directory backs them.
var KnownSets = []string{"classic", "anarchy", "modern"}

type pieceKey struct {
	set   string
	piece nchess.Piece
	size  int
}

// PieceSets rasterises piece images from the embedded classic set and from
// <dir>/pieces/<set>/ directories. Images are cached per set, piece and size.
type PieceSets struct {
	dir    string
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[pieceKey]image.Image
}

func NewPieceSets(assetDir string, logger *zap.Logger) *PieceSets {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PieceSets{
		dir:    assetDir,
		logger: logger,
		cache:  make(map[pieceKey]image.Image),
	}
}

// Names lists the known sets followed by any extra set directories, sorted.
func (p *PieceSets) Names() []string {
	names := append([]string(nil), KnownSets...)
	if p.dir == "" {
		return names
	}
	entries, err := os.ReadDir(filepath.Join(p.dir, "pieces"))
	if err != nil {
		return names
	}
	var extra []string
	for _, e := range entries {
		if !e.IsDir() || containsString(names, e.Name()) {
			continue
		}
		extra = append(extra, e.Name())
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// Image returns the piece rendered at size x size pixels.
func (p *PieceSets) Image(set string, piece nchess.Piece, size int) (image.Image, error) {
	if piece == nchess.NoPiece {
		return nil, fmt.Errorf("no piece to render")
	}
	key := pieceKey{set: set, piece: piece, size: size}

	p.mu.RLock()
	if img, ok := p.cache[key]; ok {
		p.mu.RUnlock()
		return img, nil
	}
	p.mu.RUnlock()

	data, source := p.load(set, piece)
	img, err := rasterizeSVG(data, size)
	if err != nil && source != DefaultSet {
		p.logger.Warn("piece asset unreadable, using classic",
			zap.String("set", set),
			zap.String("piece", pieceAssetName(piece)),
			zap.Error(err),
		)
		img, err = rasterizeSVG(classicAsset(piece), size)
	}
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", pieceAssetName(piece), err)
	}

	p.mu.Lock()
	p.cache[key] = img
	p.mu.Unlock()
	return img, nil
}

func (p *PieceSets) load(set string, piece nchess.Piece) ([]byte, string) {
	name := pieceAssetName(piece)
	if set != DefaultSet && validSetName(set) && p.dir != "" {
		data, err := os.ReadFile(filepath.Join(p.dir, "pieces", set, name))
		if err == nil {
			return data, set
		}
		p.logger.Debug("piece asset missing, using classic",
			zap.String("set", set),
			zap.String("piece", name),
		)
	}
	return classicAsset(piece), DefaultSet
}

func classicAsset(piece nchess.Piece) []byte {
	data, err := classicFiles.ReadFile(path.Join("assets/pieces/classic", pieceAssetName(piece)))
	if err != nil {
		return nil
	}
	return data
}

func rasterizeSVG(data []byte, size int) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty svg")
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(sanitizeSVG(data)))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	if len(icon.SVGPaths) == 0 {
		return nil, fmt.Errorf("piece svg has no paths")
	}
	if icon.ViewBox.W <= 0 {
		icon.ViewBox.W = float64(size)
	}
	if icon.ViewBox.H <= 0 {
		icon.ViewBox.H = float64(size)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)
	return img, nil
}

func pieceAssetName(piece nchess.Piece) string {
	prefix := "w"
	if piece.Color() == nchess.Black {
		prefix = "b"
	}
	var suffix string
	switch piece.Type() {
	case nchess.King:
		suffix = "K"
	case nchess.Queen:
		suffix = "Q"
	case nchess.Rook:
		suffix = "R"
	case nchess.Bishop:
		suffix = "B"
	case nchess.Knight:
		suffix = "N"
	case nchess.Pawn:
		suffix = "P"
	}
	return prefix + suffix + ".svg"
}

func validSetName(set string) bool {
	if set == "" || set == "." || set == ".." {
		return false
	}
	return !strings.ContainsAny(set, `/\`)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
