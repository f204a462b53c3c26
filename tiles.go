package geolabel

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/wgdzlh/geolabel/log"
	"github.com/wgdzlh/geolabel/utils"

	"github.com/disintegration/imaging"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/project"
	"go.uber.org/zap"
)

// initialResolution is the Web-Mercator ground resolution (m/px) of a
// single zoom-0 tile.
const initialResolution = 2 * math.Pi * 6378137 / TileSize

// TileOptions tunes the slippy-tile partitioner.
type TileOptions struct {
	// Zoom of the z/x/y pyramid level to cut; zero or negative picks the
	// level whose ground resolution is nearest to the raster's.
	Zoom int
	// OutDir for the z/x/y tree; empty means a fresh unique dir under
	// the toolbox temp dir.
	OutDir string
	// Resampling for the reproject/rescale step, bilinear when empty.
	// Label rasters need RESAMPLING_NEAREST to keep category colors
	// exact for later decomposition.
	Resampling string
	Workers    int
}

// ZoomResolution returns the Web-Mercator ground resolution at z.
func ZoomResolution(z int) float64 {
	return initialResolution / float64(uint(1)<<uint(z))
}

// NearestZoom looks up the zoom level whose resolution is closest to res.
func NearestZoom(res float64) int {
	best, bestDiff := 0, math.Inf(1)
	for z := 0; z <= MaxZoom; z++ {
		if d := math.Abs(ZoomResolution(z) - res); d < bestDiff {
			best, bestDiff = z, d
		}
	}
	return best
}

// SlippyTiles cuts the raster into a Web-Mercator z/x/y pyramid level.
// The raster is reprojected to EPSG:3857 if needed and rescaled to the
// level's exact ground resolution before tiling; every tile is a
// TileSize x TileSize PNG under OutDir/z/x/y.png, padded with background
// where it sticks out of the raster. Failed tiles are logged, counted
// and skipped.
func (g *GdalToolbox) SlippyTiles(r *Raster, opts TileOptions) (files []string, rep BatchReport, err error) {
	if opts.OutDir == "" {
		if opts.OutDir, err = utils.GetUniqSubDir(g.tmpDir); err != nil {
			return
		}
	}
	mr := r
	if !mr.profile.SRS.Equal(WebMercator) {
		if !mr.profile.SRS.Valid() {
			err = ErrVoidSrid
			return
		}
		if mr, err = g.Reproject(r, WebMercator, opts.Resampling); err != nil {
			return
		}
	}
	z := opts.Zoom
	xRes, _ := mr.Resolution()
	if z <= 0 {
		z = NearestZoom(xRes)
	}
	if z > MaxZoom {
		err = ErrZoomRange
		return
	}
	res := ZoomResolution(z)
	if math.Abs(res-xRes) > res*1e-9 {
		if mr, err = g.RescaleToResolution(mr, res, res, opts.Resampling); err != nil {
			return
		}
	}
	if err = mr.ensureLoaded(); err != nil {
		return
	}
	b := mr.Bounds()
	zoom := maptile.Zoom(z)
	minTile := maptile.At(project.Mercator.ToWGS84(orb.Point{b.Left, b.Top}), zoom)
	maxTile := maptile.At(project.Mercator.ToWGS84(orb.Point{b.Right, b.Bottom}), zoom)
	var tiles []maptile.Tile
	for tx := minTile.X; tx <= maxTile.X; tx++ {
		for ty := minTile.Y; ty <= maxTile.Y; ty++ {
			tiles = append(tiles, maptile.New(tx, ty, zoom))
		}
	}
	log.Info(g.logTag+"slippy tiles", zap.Int("zoom", z), zap.Float64("resolution", res), zap.Int("tiles", len(tiles)))

	paths := make([]string, len(tiles))
	errs := make([]error, len(tiles))
	numTasks := opts.Workers
	if numTasks <= 0 {
		numTasks = 2 * runtime.NumCPU()
	}
	if numTasks > len(tiles) {
		numTasks = len(tiles)
	}
	queue := make(chan int, 2*numTasks)
	var wg sync.WaitGroup
	wg.Add(numTasks)
	for i := 0; i < numTasks; i++ {
		go func() {
			defer wg.Done()
			for idx := range queue {
				paths[idx], errs[idx] = g.writeTile(mr, tiles[idx], opts.OutDir)
			}
		}()
	}
	for idx := range tiles {
		queue <- idx
	}
	close(queue)
	wg.Wait()

	for i := range tiles {
		if errs[i] != nil {
			log.Error(g.logTag+"tile failed", zap.Uint32("x", tiles[i].X), zap.Uint32("y", tiles[i].Y), zap.Error(errs[i]))
			rep.fail(errs[i])
			continue
		}
		files = append(files, paths[i])
		rep.ok()
	}
	return
}

// writeTile cuts one z/x/y window out of a Web-Mercator raster already
// rescaled to the tile resolution, and writes it as a PNG.
func (g *GdalToolbox) writeTile(mr *Raster, tile maptile.Tile, outDir string) (path string, err error) {
	var (
		gt     = mr.profile.Transform
		tb     = tile.Bound()
		tMin   = project.WGS84.ToMercator(tb.Min)
		tMax   = project.WGS84.ToMercator(tb.Max)
		col0   = int(math.Round((tMin[0] - gt[0]) / gt[1]))
		row0   = int(math.Round((tMax[1] - gt[3]) / gt[5]))
		w, h   = mr.profile.Width, mr.profile.Height
		canvas = imaging.New(TileSize, TileSize, color.NRGBA{})
	)
	// copy the overlapping part of the window; the rest stays background
	src0 := clampInt(col0, 0, w)
	src1 := clampInt(col0+TileSize, 0, w)
	row0c := clampInt(row0, 0, h)
	row1c := clampInt(row0+TileSize, 0, h)
	if src1 > src0 && row1c > row0c {
		win := image.NewNRGBA(image.Rect(0, 0, src1-src0, row1c-row0c))
		for row := row0c; row < row1c; row++ {
			for col := src0; col < src1; col++ {
				i := row*w + col
				var r, gb, b uint8
				if mr.profile.Bands >= 3 {
					r, gb, b = mr.planes[0][i], mr.planes[1][i], mr.planes[2][i]
				} else {
					r = mr.planes[0][i]
					gb, b = r, r
				}
				win.SetNRGBA(col-src0, row-row0c, color.NRGBA{R: r, G: gb, B: b, A: 255})
			}
		}
		canvas = imaging.Paste(canvas, win, image.Pt(src0-col0, row0c-row0))
	}
	dir := filepath.Join(outDir, fmt.Sprintf("%d", tile.Z), fmt.Sprintf("%d", tile.X))
	if err = os.MkdirAll(dir, os.ModePerm); err != nil {
		return
	}
	path = filepath.Join(dir, fmt.Sprintf("%d%s", tile.Y, FILE_EXT_PNG))
	err = imaging.Save(canvas, path)
	return
}
