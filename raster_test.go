package geolabel

import (
	"testing"

	"github.com/paulmach/orb"
)

// gridProfile builds a w x h grid with 1-unit pixels, origin at the
// top-left corner (0, h), y growing downward in pixel space.
func gridProfile(w, h, bands int) RasterProfile {
	return RasterProfile{
		Width:     w,
		Height:    h,
		Bands:     bands,
		Transform: [6]float64{0, 1, 0, float64(h), 0, -1},
		SRS:       WGS84,
	}
}

func gridRaster(t *testing.T, w, h, bands int) *Raster {
	t.Helper()
	planes := make([][]uint8, bands)
	for i := range planes {
		planes[i] = make([]uint8, w*h)
	}
	r, err := FromArray(planes, gridProfile(w, h, bands))
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestFromArrayValidation(t *testing.T) {
	if _, err := FromArray([][]uint8{make([]uint8, 4)}, gridProfile(2, 2, 3)); err != ErrBandCount {
		t.Fatalf("err = %v, want ErrBandCount", err)
	}
	if _, err := FromArray([][]uint8{make([]uint8, 3)}, gridProfile(2, 2, 1)); err != ErrBufferSize {
		t.Fatalf("err = %v, want ErrBufferSize", err)
	}
}

func TestRasterBounds(t *testing.T) {
	r := gridRaster(t, 10, 6, 1)
	got := r.Bounds()
	want := BoundingBox{Left: 0, Bottom: 0, Right: 10, Top: 6}
	if got != want {
		t.Fatalf("bounds %+v, want %+v", got, want)
	}
	xr, yr := r.Resolution()
	if xr != 1 || yr != 1 {
		t.Fatalf("resolution %v/%v, want 1/1", xr, yr)
	}
}

func TestCropToOwnBounds(t *testing.T) {
	r := gridRaster(t, 8, 5, 1)
	for i := range r.planes[0] {
		r.planes[0][i] = uint8(i)
	}
	got, err := r.Crop(r.Bounds())
	if err != nil {
		t.Fatal(err)
	}
	if got.Width() != 8 || got.Height() != 5 {
		t.Fatalf("got %dx%d, want 8x5", got.Width(), got.Height())
	}
	if got.Transform() != r.Transform() {
		t.Fatalf("geotransform drifted: %v vs %v", got.Transform(), r.Transform())
	}
	for i := range r.planes[0] {
		if got.planes[0][i] != r.planes[0][i] {
			t.Fatalf("pixel %d diverged", i)
		}
	}
}

func TestCropWindowGeoreference(t *testing.T) {
	r := gridRaster(t, 8, 8, 1)
	r.planes[0][3*8+2] = 7 // pixel (col 2, row 3), i.e. x [2,3], y [4,5]
	box := BoundingBox{Left: 2, Bottom: 4, Right: 4, Top: 6}
	got, err := r.Crop(box)
	if err != nil {
		t.Fatal(err)
	}
	if got.Width() != 2 || got.Height() != 2 {
		t.Fatalf("got %dx%d, want 2x2", got.Width(), got.Height())
	}
	if b := got.Bounds(); b != box {
		t.Fatalf("cropped bounds %+v, want %+v", b, box)
	}
	// the marked pixel lands at (col 0, row 1) of the window
	if got.at(0, 0, 1) != 7 {
		t.Fatal("marked pixel not where the shifted geotransform says")
	}
}

func TestCropOutsideYieldsEmpty(t *testing.T) {
	r := gridRaster(t, 4, 4, 2)
	got, err := r.Crop(BoundingBox{Left: 100, Bottom: 100, Right: 110, Top: 110})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Empty() {
		t.Fatalf("expected empty raster, got %dx%d", got.Width(), got.Height())
	}
}

func TestRasterCopyIsDeep(t *testing.T) {
	r := gridRaster(t, 3, 3, 1)
	cp, err := r.Copy()
	if err != nil {
		t.Fatal(err)
	}
	cp.planes[0][0] = 42
	if r.planes[0][0] == 42 {
		t.Fatal("Copy shares plane storage with the source")
	}
}

func TestShearedTransformRejected(t *testing.T) {
	p := gridProfile(4, 4, 1)
	p.Transform[2] = 0.5
	if _, err := FromArray([][]uint8{make([]uint8, 16)}, p); err != ErrShearedTransform {
		t.Fatalf("err = %v, want ErrShearedTransform", err)
	}
	p = gridProfile(4, 4, 1)
	p.Transform[4] = -0.25
	if _, err := FromArray([][]uint8{make([]uint8, 16)}, p); err != ErrShearedTransform {
		t.Fatalf("err = %v, want ErrShearedTransform", err)
	}
}

func TestCropByGeometry(t *testing.T) {
	g := NewGdalToolbox(t.TempDir())
	r := gridRaster(t, 8, 8, 1)
	for i := range r.planes[0] {
		r.planes[0][i] = 9
	}
	out, err := g.CropByGeometry(r, squarePoly(2, 2, 6, 6))
	if err != nil {
		t.Fatal(err)
	}
	if out.Width() != 4 || out.Height() != 4 {
		t.Fatalf("got %dx%d, want 4x4", out.Width(), out.Height())
	}
	want := BoundingBox{Left: 2, Bottom: 2, Right: 6, Top: 6}
	if b := out.Bounds(); b != want {
		t.Fatalf("cropped bounds %+v, want %+v", b, want)
	}
	if out.at(0, 1, 1) != 9 {
		t.Fatal("interior pixel lost its value")
	}
	if _, err = g.CropByGeometry(r, orb.LineString{{0, 0}, {4, 4}}); err != ErrWrongGeoType {
		t.Fatalf("err = %v, want ErrWrongGeoType", err)
	}
}

func TestEnsureLoadedWithoutBacking(t *testing.T) {
	r := &Raster{profile: gridProfile(2, 2, 1)}
	if err := r.Read(); err != ErrEmptyRaster {
		t.Fatalf("err = %v, want ErrEmptyRaster", err)
	}
}
