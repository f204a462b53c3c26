package geolabel

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/wgdzlh/geolabel/log"
	"github.com/wgdzlh/geolabel/utils"

	"go.uber.org/zap"
)

// MosaicOptions tunes the fixed-window partitioner.
type MosaicOptions struct {
	Width  int
	Height int
	// IsFull drops boundary windows smaller than Width x Height instead
	// of keeping them truncated.
	IsFull  bool
	OutDir  string
	Workers int // defaults to 2 x NumCPU
}

type window struct {
	col, row int
	w, h     int
	path     string
}

// Mosaic splits the raster into non-overlapping Width x Height windows,
// row-major from (0,0), and writes each window as an independent GTiff
// named by its pixel offset. Windows share no state and are written by
// a bounded worker pool; the returned file list is ordered by window
// position regardless of write order. A failed window is logged,
// counted and skipped, never fatal.
func (g *GdalToolbox) Mosaic(r *Raster, opts MosaicOptions) (files []string, rep BatchReport, err error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		err = ErrWindowSize
		return
	}
	if err = r.ensureLoaded(); err != nil {
		return
	}
	if opts.OutDir == "" {
		if opts.OutDir, err = utils.GetUniqSubDir(g.tmpDir); err != nil {
			return
		}
	} else if err = os.MkdirAll(opts.OutDir, os.ModePerm); err != nil {
		return
	}
	stem := "mosaic"
	if r.path != "" {
		stem = utils.GetFilenameWithoutExt(r.path)
	}
	var wins []window
	for row := 0; row < r.profile.Height; row += opts.Height {
		for col := 0; col < r.profile.Width; col += opts.Width {
			w := minInt(opts.Width, r.profile.Width-col)
			h := minInt(opts.Height, r.profile.Height-row)
			if opts.IsFull && (w < opts.Width || h < opts.Height) {
				continue
			}
			wins = append(wins, window{
				col: col, row: row, w: w, h: h,
				path: filepath.Join(opts.OutDir, fmt.Sprintf("%s_%d_%d%s", stem, col, row, FILE_EXT_TIF)),
			})
		}
	}
	log.Info(g.logTag+"mosaic raster", zap.Int("windows", len(wins)),
		zap.Int("width", opts.Width), zap.Int("height", opts.Height), zap.Bool("isFull", opts.IsFull))

	errs := make([]error, len(wins))
	numTasks := opts.Workers
	if numTasks <= 0 {
		numTasks = 2 * runtime.NumCPU()
	}
	if numTasks > len(wins) {
		numTasks = len(wins)
	}
	queue := make(chan int, 2*numTasks)
	var wg sync.WaitGroup
	wg.Add(numTasks)
	for i := 0; i < numTasks; i++ {
		go func() {
			defer wg.Done()
			for idx := range queue {
				win := wins[idx]
				tile := r.cropPixels(win.col, win.row, win.w, win.h)
				errs[idx] = g.SaveRaster(tile, win.path)
			}
		}()
	}
	for idx := range wins {
		queue <- idx
	}
	close(queue)
	wg.Wait()

	// deterministic merge in window order
	for i, win := range wins {
		if errs[i] != nil {
			log.Error(g.logTag+"mosaic window failed", zap.String("path", win.path), zap.Error(errs[i]))
			rep.fail(errs[i])
			continue
		}
		files = append(files, win.path)
		rep.ok()
	}
	return
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
