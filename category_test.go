package geolabel

import (
	"testing"

	"github.com/paulmach/orb"
)

func squarePoly(x0, y0, x1, y1 float64) orb.Polygon {
	return orb.Polygon{{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}}
}

func TestCollectionColorUniqueness(t *testing.T) {
	cc := NewCategoryCollection()
	same := RGB{10, 20, 30}
	for i := 0; i < 50; i++ {
		cc.Append(NewCategory("cat", same, squarePoly(0, 0, 1, 1)))
	}
	seen := map[uint32]bool{}
	for _, c := range cc.Items() {
		if seen[c.Color.key()] {
			t.Fatalf("duplicate color %s survived insertion", c.Color.Hex())
		}
		seen[c.Color.key()] = true
	}
	// the first member keeps its requested color
	if cc.At(0).Color != same {
		t.Fatalf("first member recolored to %s", cc.At(0).Color.Hex())
	}
}

func TestCollectionSetKeepsInvariant(t *testing.T) {
	cc := NewCategoryCollection(
		NewCategory("a", RGB{1, 2, 3}),
		NewCategory("b", RGB{4, 5, 6}),
	)
	cc.Set(1, NewCategory("b2", RGB{1, 2, 3}))
	if cc.At(0).Color == cc.At(1).Color {
		t.Fatal("Set produced a color collision")
	}
	if cc.Get("b2") == nil || cc.Get("b") != nil {
		t.Fatal("Set did not replace the member")
	}
}

func TestCategoryCrop(t *testing.T) {
	c := NewCategory("c", RGB{9, 9, 9},
		squarePoly(0, 0, 4, 4),
		squarePoly(10, 10, 12, 12), // fully outside, must drop
	)
	box := BoundingBox{Left: 2, Bottom: 2, Right: 6, Top: 6}
	got := c.Crop(box)
	if len(got.Geometries) != 1 {
		t.Fatalf("got %d geometries, want 1", len(got.Geometries))
	}
	bd := got.Bound()
	want := orb.Bound{Min: orb.Point{2, 2}, Max: orb.Point{4, 4}}
	if bd != want {
		t.Fatalf("clipped bound %+v, want %+v", bd, want)
	}
	// source untouched
	if len(c.Geometries) != 2 {
		t.Fatal("Crop mutated the source category")
	}
}

func TestCollectionCropReport(t *testing.T) {
	cc := NewCategoryCollection(
		NewCategory("in", RGB{1, 0, 0}, squarePoly(0, 0, 4, 4)),
		NewCategory("out", RGB{2, 0, 0}, squarePoly(100, 100, 101, 101)),
	)
	out, rep := cc.Crop(BoundingBox{Left: 0, Bottom: 0, Right: 8, Top: 8})
	if out.Len() != 1 || rep.Processed != 1 || rep.Skipped != 1 {
		t.Fatalf("got len=%d report=%d/%d, want 1 and 1/1", out.Len(), rep.Processed, rep.Skipped)
	}
}

func TestCategoryCopyIsDeep(t *testing.T) {
	c := NewCategory("c", RGB{1, 1, 1}, squarePoly(0, 0, 2, 2))
	cp := c.Copy()
	cp.Geometries[0].(orb.Polygon)[0][0] = orb.Point{-99, -99}
	if c.Geometries[0].(orb.Polygon)[0][0] == (orb.Point{-99, -99}) {
		t.Fatal("Copy shares ring storage with the source")
	}
}

func TestCategoryArea(t *testing.T) {
	c := NewCategory("c", RGB{1, 1, 1}, squarePoly(0, 0, 3, 4))
	if a := c.Area(); a != 12 {
		t.Fatalf("area = %v, want 12", a)
	}
}
