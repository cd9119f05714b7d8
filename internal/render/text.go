package render

import (
	"strings"

	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
)

// TextOptions controls Text output.
type TextOptions struct {
	// Glyphs prints the CJK characters instead of ASCII letters.
	Glyphs bool
	Flip   bool
	// Selected is marked with brackets.
	Selected *xiangqi.Position
}

// Text draws the board as a grid, rank 0 on top unless flipped.
func Text(b *xiangqi.Board, opts TextOptions) string {
	var sb strings.Builder
	files := "   a  b  c  d  e  f  g  h  i\n"
	if opts.Flip {
		files = "   i  h  g  f  e  d  c  b  a\n"
	}
	sb.WriteString(files)
	for row := 0; row < xiangqi.Ranks; row++ {
		if row == 5 {
			sb.WriteString("  ~~~~~~~~~~~~~~~~~~~~~~~~~~\n")
		}
		r := row
		if opts.Flip {
			r = xiangqi.Ranks - 1 - row
		}
		sb.WriteByte(byte('0' + r))
		sb.WriteByte(' ')
		for col := 0; col < xiangqi.Files; col++ {
			f := col
			if opts.Flip {
				f = xiangqi.Files - 1 - col
			}
			pos := xiangqi.Pos(f, r)
			cell := " . "
			if p, ok := b.Get(pos); ok {
				sym := string(p.Letter())
				if opts.Glyphs {
					sym = p.Glyph()
				}
				if opts.Selected != nil && *opts.Selected == pos {
					cell = "[" + sym + "]"
				} else {
					cell = " " + sym + " "
				}
				if opts.Glyphs {
					// CJK glyphs are double width
					cell = strings.TrimSuffix(cell, " ")
				}
			}
			sb.WriteString(cell)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
