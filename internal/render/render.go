package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"

	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
	"github.com/srwiley/rasterx"
)

// Options tweaks one rendering. Coordinates are board coordinates; Flip turns the
// picture around for a viewer sitting on the other side.
type Options struct {
	Highlight *xiangqi.Move
	Selected  *xiangqi.Position
	Hints     []xiangqi.Position
	Header    string
	Turn      string
	Flip      bool
}

type BoardRenderer interface {
	RenderPNG(ctx context.Context, board *xiangqi.Board, opts Options) ([]byte, error)
}

const (
	cellSize     = 56
	pieceSize    = 50
	sideMargin   = 40
	topMargin    = 96
	bottomMargin = 40
	hudHeight    = 30
	hudGap       = 12
	boardWidth   = cellSize * (xiangqi.Files - 1)
	boardHeight  = cellSize * (xiangqi.Ranks - 1)
)

var (
	backgroundColor = color.RGBA{R: 241, G: 214, B: 160, A: 255}
	lastMoveColor   = color.NRGBA{R: 255, G: 228, B: 120, A: 150}
	selectedColor   = color.NRGBA{R: 80, G: 170, B: 255, A: 170}
	hintColor       = color.NRGBA{R: 40, G: 140, B: 70, A: 170}
	hudPanelColor   = color.NRGBA{R: 28, G: 31, B: 46, A: 250}
	hudTextColor    = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	coordTextColor  = color.NRGBA{R: 90, G: 60, B: 30, A: 255}
)

type pngRenderer struct{}

func NewPNGRenderer() BoardRenderer { return &pngRenderer{} }

func (r *pngRenderer) RenderPNG(ctx context.Context, board *xiangqi.Board, opts Options) ([]byte, error) {
	if board == nil {
		return nil, fmt.Errorf("board is nil")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	width := boardWidth + sideMargin*2
	height := boardHeight + topMargin + bottomMargin
	origin := image.Point{X: sideMargin, Y: topMargin}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	if err := drawGrid(img, origin); err != nil {
		return nil, err
	}
	drawCoordinates(img, origin, opts.Flip)
	drawHUD(img, opts, origin)

	if opts.Highlight != nil {
		drawRing(img, pointOf(opts.Highlight.From, origin, opts.Flip), pieceSize/2+3, lastMoveColor)
		drawRing(img, pointOf(opts.Highlight.To, origin, opts.Flip), pieceSize/2+3, lastMoveColor)
	}
	for _, p := range board.Pieces() {
		icon, err := pieceImage(p.Kind, p.Side, pieceSize)
		if err != nil {
			return nil, err
		}
		c := pointOf(p.Position, origin, opts.Flip)
		dst := image.Rect(c.X-pieceSize/2, c.Y-pieceSize/2, c.X+pieceSize/2, c.Y+pieceSize/2)
		imagedraw.Draw(img, dst, icon, image.Point{}, imagedraw.Over)
		drawPieceLetter(img, c, p)
	}
	if opts.Selected != nil {
		drawRing(img, pointOf(*opts.Selected, origin, opts.Flip), pieceSize/2+2, selectedColor)
	}
	for _, h := range opts.Hints {
		fillCircle(img, pointOf(h, origin, opts.Flip), 6, hintColor)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// pointOf maps a board intersection to pixels.
func pointOf(pos xiangqi.Position, origin image.Point, flip bool) image.Point {
	if flip {
		pos = pos.Mirror()
	}
	return image.Point{X: origin.X + pos.File*cellSize, Y: origin.Y + pos.Rank*cellSize}
}

func fillCircle(img *image.RGBA, c image.Point, radius int, clr color.Color) {
	b := img.Bounds()
	scanner := rasterx.NewScannerGV(b.Dx(), b.Dy(), img, b)
	filler := rasterx.NewFiller(b.Dx(), b.Dy(), scanner)
	filler.SetColor(clr)
	rasterx.AddCircle(float64(c.X), float64(c.Y), float64(radius), filler)
	filler.Draw()
}

func drawRing(img *image.RGBA, c image.Point, radius int, clr color.Color) {
	b := img.Bounds()
	scanner := rasterx.NewScannerGV(b.Dx(), b.Dy(), img, b)
	stroker := rasterx.NewStroker(b.Dx(), b.Dy(), scanner)
	stroker.SetStroke(4*64, 4*64, rasterx.RoundCap, rasterx.RoundCap, rasterx.RoundGap, rasterx.Round)
	stroker.SetColor(clr)
	rasterx.AddCircle(float64(c.X), float64(c.Y), float64(radius), stroker)
	stroker.Draw()
}
