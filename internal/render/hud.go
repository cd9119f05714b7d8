package render

import (
	"image"
	"image/color"
	imagedraw "image/draw"
	"strings"

	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var labelFace font.Face = basicfont.Face7x13

func drawHUD(img *image.RGBA, opts Options, origin image.Point) {
	header := strings.TrimSpace(opts.Header)
	if header == "" {
		header = "Xiangqi"
	}
	turn := strings.TrimSpace(opts.Turn)

	drawer := &font.Drawer{Dst: img, Face: labelFace}
	top := origin.Y - hudHeight*2 - hudGap - 20
	headerRect := image.Rect(origin.X-sideMargin/2, top, origin.X+boardWidth+sideMargin/2, top+hudHeight)
	drawRoundedPanel(img, headerRect, 10, hudPanelColor)
	drawCenteredString(drawer, headerRect, header, hudTextColor)

	if turn != "" {
		w := drawer.MeasureString(turn).Round() + 40
		left := origin.X + (boardWidth-w)/2
		turnRect := image.Rect(left, headerRect.Max.Y+hudGap/2, left+w, headerRect.Max.Y+hudGap/2+hudHeight-6)
		drawRoundedPanel(img, turnRect, 8, hudPanelColor)
		drawCenteredString(drawer, turnRect, turn, hudTextColor)
	}
}

// drawCoordinates labels files a-i below the board and ranks 0-9 on the left.
func drawCoordinates(img *image.RGBA, origin image.Point, flip bool) {
	drawer := &font.Drawer{Dst: img, Face: labelFace, Src: image.NewUniform(coordTextColor)}
	ascent := labelFace.Metrics().Ascent.Ceil()
	for f := 0; f < xiangqi.Files; f++ {
		p := pointOf(xiangqi.Pos(f, xiangqi.Ranks-1), origin, false)
		label := xiangqi.Pos(f, 0).String()[:1]
		if flip {
			label = xiangqi.Pos(xiangqi.Files-1-f, 0).String()[:1]
		}
		drawCenteredText(drawer, label, p.X, p.Y+pieceSize/2+ascent+4)
	}
	for r := 0; r < xiangqi.Ranks; r++ {
		p := pointOf(xiangqi.Pos(0, r), origin, false)
		rank := r
		if flip {
			rank = xiangqi.Ranks - 1 - r
		}
		drawCenteredText(drawer, string(rune('0'+rank)), p.X-sideMargin+8, p.Y+ascent/2)
	}
}

func drawPieceLetter(img *image.RGBA, c image.Point, p xiangqi.Piece) {
	clr := color.NRGBA{R: 179, G: 38, B: 30, A: 255}
	if p.Side == xiangqi.Black {
		clr = color.NRGBA{R: 31, G: 31, B: 31, A: 255}
	}
	drawer := &font.Drawer{Dst: img, Face: labelFace, Src: image.NewUniform(clr)}
	ascent := labelFace.Metrics().Ascent.Ceil()
	drawCenteredText(drawer, string(p.Letter()), c.X, c.Y+ascent/2-1)
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func drawCenteredString(drawer *font.Drawer, rect image.Rectangle, text string, clr color.Color) {
	metrics := drawer.Face.Metrics()
	width := drawer.MeasureString(text).Round()
	x := rect.Min.X + (rect.Dx()-width)/2
	if x < rect.Min.X {
		x = rect.Min.X
	}
	baseline := rect.Min.Y + (rect.Dy()+metrics.Ascent.Ceil()-metrics.Descent.Ceil())/2
	drawer.Src = image.NewUniform(clr)
	drawer.Dot = fixed.P(x, baseline)
	drawer.DrawString(text)
}

func drawRoundedPanel(img *image.RGBA, rect image.Rectangle, radius int, clr color.Color) {
	if rect.Empty() {
		return
	}
	if r := rect.Dy() / 2; radius > r {
		radius = r
	}
	fill := image.NewUniform(clr)
	imagedraw.Draw(img, image.Rect(rect.Min.X+radius, rect.Min.Y, rect.Max.X-radius, rect.Max.Y), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Min.X, rect.Min.Y+radius, rect.Min.X+radius, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Max.X-radius, rect.Min.Y+radius, rect.Max.X, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)
	corners := []image.Point{
		{rect.Min.X + radius, rect.Min.Y + radius},
		{rect.Max.X - radius - 1, rect.Min.Y + radius},
		{rect.Min.X + radius, rect.Max.Y - radius - 1},
		{rect.Max.X - radius - 1, rect.Max.Y - radius - 1},
	}
	for _, c := range corners {
		drawQuarterDisc(img, c, radius, rect, clr)
	}
}

// drawQuarterDisc fills the part of a disc at c that lies in a corner of rect.
func drawQuarterDisc(img *image.RGBA, c image.Point, radius int, rect image.Rectangle, clr color.Color) {
	rr := radius * radius
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			px, py := c.X+x, c.Y+y
			if x*x+y*y > rr || !(image.Point{X: px, Y: py}).In(rect) {
				continue
			}
			inCore := px >= rect.Min.X+radius && px < rect.Max.X-radius
			inSide := py >= rect.Min.Y+radius && py < rect.Max.Y-radius
			if inCore || inSide {
				continue
			}
			img.Set(px, py, clr)
		}
	}
}
