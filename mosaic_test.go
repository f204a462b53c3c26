package geolabel

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMosaicWindows(t *testing.T) {
	g := NewGdalToolbox()
	r := gridRaster(t, 500, 300, 3)
	for i := range r.planes[0] {
		r.planes[0][i] = uint8(i % 251)
	}
	outDir := t.TempDir()
	files, rep, err := g.Mosaic(r, MosaicOptions{Width: 256, Height: 256, OutDir: outDir})
	if err != nil {
		t.Fatal(err)
	}
	// 500x300 cut by 256 yields a 2x2 window grid with truncated edges
	if len(files) != 4 || rep.Processed != 4 || rep.Skipped != 0 {
		t.Fatalf("got %d files, report %d/%d", len(files), rep.Processed, rep.Skipped)
	}
	wantNames := []string{"mosaic_0_0.tif", "mosaic_256_0.tif", "mosaic_0_256.tif", "mosaic_256_256.tif"}
	for i, f := range files {
		if filepath.Base(f) != wantNames[i] {
			t.Fatalf("file %d is %s, want %s", i, filepath.Base(f), wantNames[i])
		}
		if _, err = os.Stat(f); err != nil {
			t.Fatal(err)
		}
	}
	// the truncated column window keeps its partial width
	win, err := g.OpenRaster(files[1])
	if err != nil {
		t.Fatal(err)
	}
	if win.Width() != 244 || win.Height() != 256 {
		t.Fatalf("window is %dx%d, want 244x256", win.Width(), win.Height())
	}
}

func TestMosaicIsFullDropsTruncated(t *testing.T) {
	g := NewGdalToolbox()
	r := gridRaster(t, 500, 300, 1)
	files, rep, err := g.Mosaic(r, MosaicOptions{Width: 256, Height: 256, IsFull: true, OutDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || rep.Processed != 1 {
		t.Fatalf("got %d full windows, want 1", len(files))
	}
	if filepath.Base(files[0]) != "mosaic_0_0.tif" {
		t.Fatalf("unexpected window %s", files[0])
	}
}

func TestMosaicFullCoverage(t *testing.T) {
	g := NewGdalToolbox()
	r := gridRaster(t, 512, 512, 1)
	files, rep, err := g.Mosaic(r, MosaicOptions{Width: 256, Height: 256, IsFull: true, OutDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	// an exact multiple tiles with no loss either way
	if len(files) != 4 || rep.Skipped != 0 {
		t.Fatalf("got %d files, skipped %d, want 4/0", len(files), rep.Skipped)
	}
}

func TestMosaicDefaultOutDir(t *testing.T) {
	tmp := t.TempDir()
	g := NewGdalToolbox(tmp)
	r := gridRaster(t, 64, 64, 1)
	files, rep, err := g.Mosaic(r, MosaicOptions{Width: 64, Height: 64})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || rep.Processed != 1 {
		t.Fatalf("got %d files, report %d/%d", len(files), rep.Processed, rep.Skipped)
	}
	// no OutDir given: windows land in a fresh dir under the toolbox temp dir
	if !strings.HasPrefix(files[0], tmp+string(filepath.Separator)) {
		t.Fatalf("window written outside the toolbox temp dir: %s", files[0])
	}
	if _, err = os.Stat(files[0]); err != nil {
		t.Fatal(err)
	}
}

func TestMosaicBadWindow(t *testing.T) {
	g := NewGdalToolbox()
	r := gridRaster(t, 8, 8, 1)
	if _, _, err := g.Mosaic(r, MosaicOptions{Width: 0, Height: 256, OutDir: t.TempDir()}); err != ErrWindowSize {
		t.Fatalf("err = %v, want ErrWindowSize", err)
	}
}
