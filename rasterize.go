package geolabel

import (
	"github.com/wgdzlh/geolabel/log"

	gdal "github.com/airbusgeo/godal"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"go.uber.org/zap"
)

// RasterizeOptions tunes Raster.Mask.
type RasterizeOptions struct {
	// Toolbox enables reprojection of categories whose CRS differs from
	// the reference raster. Without it a differing CRS is an error.
	Toolbox *GdalToolbox
}

// Mask burns the collection into a 3-band label raster aligned to the
// receiver's grid. Categories are painted in collection order and
// composited by accumulation, assuming spatially disjoint categories;
// where categories do overlap the summed color is unspecified. A
// category that rasterizes to nothing is skipped with a warning.
func (r *Raster) Mask(coll *CategoryCollection, opts ...RasterizeOptions) (out *Raster, err error) {
	var opt RasterizeOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	var (
		w, h    = r.profile.Width, r.profile.Height
		bounds  = r.Bounds()
		planes  = [][]uint8{make([]uint8, w*h), make([]uint8, w*h), make([]uint8, w*h)}
		painted = 0
	)
	for _, c := range coll.Items() {
		cat := c
		if cat.SRS.Valid() && r.profile.SRS.Valid() && !cat.SRS.Equal(r.profile.SRS) {
			if opt.Toolbox == nil {
				err = ErrCRSMismatch
				return
			}
			if cat, err = opt.Toolbox.ReprojectCategory(cat, r.profile.SRS); err != nil {
				return
			}
		}
		clipped := cat.Crop(bounds)
		if clipped.Empty() {
			continue
		}
		bits, e := rasterizeGeoms(clipped.Geometries, r.profile.Transform, w, h)
		if e != nil || bits == nil {
			log.Warn("category failed to rasterize, skipped", zap.String("category", c.Name), zap.Error(e))
			continue
		}
		color := c.Color
		for i, on := range bits {
			if on != 0 {
				// uint8 accumulation: blends (wraps) where categories overlap
				planes[0][i] += color[0]
				planes[1][i] += color[1]
				planes[2][i] += color[2]
			}
		}
		painted++
	}
	if painted == 0 {
		err = ErrNoCategories
		return
	}
	out = &Raster{
		profile: RasterProfile{
			Width:     w,
			Height:    h,
			Bands:     3,
			Transform: r.profile.Transform,
			SRS:       r.profile.SRS,
		},
		planes: planes,
		loaded: true,
	}
	return
}

// rasterizeGeoms burns the polygons of geoms onto a w x h binary grid
// aligned with geotransform gt, through an in-memory GDAL dataset. GDAL
// paints the pixels whose center falls inside a polygon. Returns nil
// bits when nothing was painted (degenerate input).
func rasterizeGeoms(geoms []orb.Geometry, gt [6]float64, w, h int) (bits []uint8, err error) {
	ensureDrivers()
	ds, err := gdal.Create(gdal.Memory, "", 1, gdal.Byte, w, h)
	if err != nil {
		log.Error("mem dataset create failed", zap.Error(err))
		return nil, ErrGdalDriverCreate
	}
	defer ds.Close()
	if err = ds.SetGeoTransform(gt); err != nil {
		return nil, err
	}
	burned := false
	for _, g := range geoms {
		switch g.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			// points and lines have no area to burn
			continue
		}
		raw, e := wkb.Marshal(g)
		if e != nil {
			log.Warn("geometry wkb marshal failed, skipped", zap.Error(e))
			continue
		}
		geo, e := gdal.NewGeometryFromWKB(raw, nil)
		if e != nil {
			log.Warn("geometry parse failed, skipped", zap.Error(e))
			continue
		}
		e = ds.RasterizeGeometry(geo, gdal.Values(1))
		geo.Close()
		if e != nil {
			log.Warn("geometry burn failed, skipped", zap.Error(e))
			continue
		}
		burned = true
	}
	if !burned {
		return nil, nil
	}
	bits = make([]uint8, w*h)
	if err = ds.Bands()[0].Read(0, 0, bits, w, h); err != nil {
		return nil, ErrTifReadFailed
	}
	for _, b := range bits {
		if b != 0 {
			return
		}
	}
	// burned geometries may still cover no pixel centers
	return nil, nil
}
