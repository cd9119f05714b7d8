package xiangqi

import (
	"errors"
	"testing"
)

const openingEncoding = "rheakaehr/9/1c5c1/p1p1p1p1p/9/9/P1P1P1P1P/1C5C1/9/RHEAKAEHR w"

func TestEncodeOpening(t *testing.T) {
	if got := Encode(StandardBoard(Red), Red); got != openingEncoding {
		t.Fatalf("Encode = %q", got)
	}
}

func TestDecodeRoundTripsPlacement(t *testing.T) {
	b, toMove, err := Decode(openingEncoding, Red)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if toMove != Red || b.Len() != 32 {
		t.Fatalf("toMove=%v len=%d", toMove, b.Len())
	}
	if got := Encode(b, toMove); got != openingEncoding {
		t.Fatalf("re-encode = %q", got)
	}
	g, ok := b.Get(Pos(4, 0))
	if !ok || g.Kind != General || g.Side != Black || g.Role != Opponent {
		t.Fatalf("black general decoded as %+v", g)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "9/9 w", "rheakaehr/9/1c5c1/p1p1p1p1p/9/9/P1P1P1P1P/1C5C1/9/RHEAKAEHX w", openingEncoding[:len(openingEncoding)-1] + "x"} {
		if _, _, err := Decode(s, Red); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}

func TestMoveNotation(t *testing.T) {
	m, err := ParseMove("e9e8")
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}
	if m.From != Pos(4, 9) || m.To != Pos(4, 8) {
		t.Fatalf("ParseMove = %+v", m)
	}
	if m.String() != "e9e8" {
		t.Fatalf("String = %q", m.String())
	}
	if mm := m.Mirror(); mm.From != Pos(4, 0) || mm.To != Pos(4, 1) {
		t.Fatalf("Mirror = %+v", mm)
	}
	if _, err := ParseMove("j0a0"); err == nil {
		t.Fatalf("expected error for bad file")
	}
}

func TestDecodeRejectsSecondGeneral(t *testing.T) {
	for _, s := range []string{
		"4k4/9/9/9/9/9/9/9/9/3KK4 w",
		"3kk4/9/9/9/9/9/9/9/9/4K4 b",
	} {
		if _, _, err := Decode(s, Red); !errors.Is(err, ErrInvalidEncoding) {
			t.Fatalf("Decode(%q) err = %v", s, err)
		}
	}
	if _, _, err := Decode("4k4/9/9/9/9/9/9/9/9/4K4 w", Red); err != nil {
		t.Fatalf("one general each: %v", err)
	}
}
