package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"strings"
	"sync"

	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

type pieceCacheKey struct {
	kind xiangqi.PieceKind
	side xiangqi.Side
	size int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

// pieceSVG is a lacquered disc with an inner ring in the side's colour.
func pieceSVG(side xiangqi.Side) []byte {
	ink := "#b3261e"
	if side == xiangqi.Black {
		ink = "#1f1f1f"
	}
	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100" width="100" height="100">`)
	b.WriteString(`<circle cx="50" cy="50" r="47" fill="#f6e3bd" stroke="#5a3b1a" stroke-width="4"/>`)
	fmt.Fprintf(&b, `<circle cx="50" cy="50" r="38" fill="none" stroke="%s" stroke-width="4"/>`, ink)
	b.WriteString(`</svg>`)
	return []byte(b.String())
}

func pieceImage(kind xiangqi.PieceKind, side xiangqi.Side, size int) (image.Image, error) {
	key := pieceCacheKey{kind: kind, side: side, size: size}
	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	icon, err := oksvg.ReadIconStream(bytes.NewReader(pieceSVG(side)))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, imagedraw.Src)
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()
	return img, nil
}

// gridSVG draws the nine files and ten ranks, the river gap and both palaces.
func gridSVG() []byte {
	const stroke = `stroke="#5a3b1a" stroke-width="2"`
	w, h := boardWidth, boardHeight
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="%d" height="%d">`, w+4, h+4, w+4, h+4)
	b.WriteString(`<g transform="translate(2,2)">`)
	fmt.Fprintf(&b, `<rect x="0" y="0" width="%d" height="%d" fill="none" stroke="#5a3b1a" stroke-width="3"/>`, w, h)
	for r := 1; r < xiangqi.Ranks-1; r++ {
		y := r * cellSize
		fmt.Fprintf(&b, `<line x1="0" y1="%d" x2="%d" y2="%d" %s/>`, y, w, y, stroke)
	}
	river := 4 * cellSize
	for f := 1; f < xiangqi.Files-1; f++ {
		x := f * cellSize
		fmt.Fprintf(&b, `<line x1="%d" y1="0" x2="%d" y2="%d" %s/>`, x, x, river, stroke)
		fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" %s/>`, x, river+cellSize, x, h, stroke)
	}
	for _, top := range []int{0, 7 * cellSize} {
		l, r := 3*cellSize, 5*cellSize
		fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" %s/>`, l, top, r, top+2*cellSize, stroke)
		fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" %s/>`, r, top, l, top+2*cellSize, stroke)
	}
	b.WriteString(`</g></svg>`)
	return []byte(b.String())
}

func drawGrid(img *image.RGBA, origin image.Point) error {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(gridSVG()))
	if err != nil {
		return fmt.Errorf("parse grid svg: %w", err)
	}
	x, y := float64(origin.X-2), float64(origin.Y-2)
	icon.SetTarget(x, y, float64(boardWidth+4), float64(boardHeight+4))
	b := img.Bounds()
	scanner := rasterx.NewScannerGV(b.Dx(), b.Dy(), img, b)
	icon.Draw(rasterx.NewDasher(b.Dx(), b.Dy(), scanner), 1.0)
	return nil
}
