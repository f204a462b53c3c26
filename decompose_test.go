package geolabel

import "testing"

func TestDecomposeRoundTrip(t *testing.T) {
	base := gridRaster(t, 16, 16, 3)
	cc := NewCategoryCollection(
		NewCategory("a", RGB{200, 10, 10}, squarePoly(1, 1, 6, 6)),
		NewCategory("b", RGB{10, 200, 10}, squarePoly(9, 9, 14, 14)),
	)
	label, err := base.Mask(cc)
	if err != nil {
		t.Fatal(err)
	}
	masks, err := Decompose(label, cc)
	if err != nil {
		t.Fatal(err)
	}
	if len(masks) != cc.Len() {
		t.Fatalf("got %d masks, want %d", len(masks), cc.Len())
	}
	counts := []int{0, 0}
	for i, m := range masks {
		if m.Width != 16 || m.Height != 16 {
			t.Fatalf("mask %d is %dx%d, want 16x16", i, m.Width, m.Height)
		}
		for _, b := range m.Bits {
			counts[i] += int(b)
		}
	}
	// both squares cover 5x5 pixel centers
	if counts[0] != 25 || counts[1] != 25 {
		t.Fatalf("mask pixel counts %v, want [25 25]", counts)
	}
	// the masks are disjoint
	for i := range masks[0].Bits {
		if masks[0].Bits[i] == 1 && masks[1].Bits[i] == 1 {
			t.Fatalf("masks overlap at pixel %d", i)
		}
	}
}

func TestDecomposeExactColorMatch(t *testing.T) {
	label := gridRaster(t, 4, 4, 3)
	label.planes[0][5] = 99 // off-palette pixel
	cc := NewCategoryCollection(NewCategory("a", RGB{100, 0, 0}))
	masks, err := Decompose(label, cc)
	if err != nil {
		t.Fatal(err)
	}
	if masks[0].Any() {
		t.Fatal("near-miss color matched a category")
	}
}

func TestDecomposeBandCount(t *testing.T) {
	gray := gridRaster(t, 4, 4, 1)
	if _, err := Decompose(gray, NewCategoryCollection()); err != ErrBandCount {
		t.Fatalf("err = %v, want ErrBandCount", err)
	}
}

func TestBinaryMaskAny(t *testing.T) {
	m := BinaryMask{Bits: make([]uint8, 9), Width: 3, Height: 3}
	if m.Any() {
		t.Fatal("all-zero mask reported presence")
	}
	m.Bits[4] = 1
	if !m.Any() {
		t.Fatal("set bit not detected")
	}
}
