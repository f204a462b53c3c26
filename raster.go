package geolabel

import (
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/wgdzlh/geolabel/log"

	gdal "github.com/airbusgeo/godal"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

var driversOnce sync.Once

func ensureDrivers() {
	driversOnce.Do(gdal.RegisterAll)
}

// RasterProfile describes the grid of a raster: size, band count,
// GDAL-order geotransform and spatial reference.
type RasterProfile struct {
	Width     int
	Height    int
	Bands     int
	Transform [6]float64
	SRS       CRS
}

// Raster owns a georeferenced pixel grid of byte bands. Metadata is read
// when the raster is opened; pixel planes are read from the backing file
// on first access. Every transform is copy-on-write: it returns a new
// Raster and never mutates the receiver.
type Raster struct {
	profile RasterProfile
	planes  [][]uint8 // band-major, each Width*Height
	path    string    // optional backing file
	loaded  bool
}

// FromArray builds an in-memory raster from band-major planes. Only
// axis-aligned geotransforms are accepted: pixel->geo mapping throughout
// assumes zero cross terms.
func FromArray(planes [][]uint8, profile RasterProfile) (r *Raster, err error) {
	if profile.Transform[2] != 0 || profile.Transform[4] != 0 {
		err = ErrShearedTransform
		return
	}
	if len(planes) != profile.Bands {
		err = ErrBandCount
		return
	}
	for _, p := range planes {
		if len(p) != profile.Width*profile.Height {
			err = ErrBufferSize
			return
		}
	}
	r = &Raster{
		profile: profile,
		planes:  planes,
		loaded:  true,
	}
	return
}

// 打开栅格文件，只读取元数据，像素按需加载
func (g *GdalToolbox) OpenRaster(path string) (r *Raster, err error) {
	ensureDrivers()
	sds, err := gdal.Open(path, gdal.RasterOnly())
	if err != nil {
		log.Error(g.logTag+"open tif failed", zap.String("path", path), zap.Error(err))
		err = ErrInvalidTif
		return
	}
	defer sds.Close()
	st := sds.Structure()
	gt, err := sds.GeoTransform()
	if err != nil {
		log.Error(g.logTag+"tif has no geotransform", zap.String("path", path), zap.Error(err))
		err = ErrInvalidTif
		return
	}
	if gt[2] != 0 || gt[4] != 0 {
		log.Error(g.logTag+"tif with sheared geotransform", zap.String("path", path))
		err = ErrShearedTransform
		return
	}
	var srs CRS
	if sr := sds.SpatialRef(); sr != nil {
		code := sr.AuthorityCode("")
		if code == "" {
			if sr.AutoIdentifyEPSG() == nil {
				code = sr.AuthorityCode("")
			}
		}
		if code != "" {
			srs, _ = ParseCRS(code)
		}
	}
	if !srs.Valid() {
		log.Warn(g.logTag+"tif with void srid", zap.String("path", path))
	}
	r = &Raster{
		profile: RasterProfile{
			Width:     st.SizeX,
			Height:    st.SizeY,
			Bands:     st.NBands,
			Transform: gt,
			SRS:       srs,
		},
		path: path,
	}
	log.Info(g.logTag+"raster opened", zap.String("path", path),
		zap.Int("bands", st.NBands), zap.String("extent", r.Bounds().ToWkt()))
	return
}

func (r *Raster) Profile() RasterProfile {
	return r.profile
}

func (r *Raster) Width() int {
	return r.profile.Width
}

func (r *Raster) Height() int {
	return r.profile.Height
}

func (r *Raster) Bands() int {
	return r.profile.Bands
}

func (r *Raster) Transform() [6]float64 {
	return r.profile.Transform
}

func (r *Raster) SRS() CRS {
	return r.profile.SRS
}

func (r *Raster) Path() string {
	return r.path
}

func (r *Raster) Empty() bool {
	return r.profile.Width == 0 || r.profile.Height == 0
}

// Resolution returns the absolute pixel size along x and y.
func (r *Raster) Resolution() (xRes, yRes float64) {
	return math.Abs(r.profile.Transform[1]), math.Abs(r.profile.Transform[5])
}

// Bounds derives the geographic extent from the grid and geotransform.
func (r *Raster) Bounds() BoundingBox {
	gt := r.profile.Transform
	w, h := float64(r.profile.Width), float64(r.profile.Height)
	x0, y0 := gt[0], gt[3]
	x1 := gt[0] + gt[1]*w + gt[2]*h
	y1 := gt[3] + gt[4]*w + gt[5]*h
	return BoundingBox{
		Left:   math.Min(x0, x1),
		Bottom: math.Min(y0, y1),
		Right:  math.Max(x0, x1),
		Top:    math.Max(y0, y1),
	}
}

// ensureLoaded reads the pixel planes from the backing file if needed.
func (r *Raster) ensureLoaded() (err error) {
	if r.loaded {
		return
	}
	if r.path == "" {
		return ErrEmptyRaster
	}
	ensureDrivers()
	sds, err := gdal.Open(r.path, gdal.RasterOnly())
	if err != nil {
		log.Error("open tif for read failed", zap.String("path", r.path), zap.Error(err))
		return ErrInvalidTif
	}
	defer sds.Close()
	bands := sds.Bands()
	if len(bands) < r.profile.Bands {
		return ErrBandCount
	}
	w, h := r.profile.Width, r.profile.Height
	planes := make([][]uint8, r.profile.Bands)
	for i := range planes {
		planes[i] = make([]uint8, w*h)
		if err = bands[i].Read(0, 0, planes[i], w, h); err != nil {
			log.Error("read tif band failed", zap.Int("band", i), zap.Error(err))
			return ErrTifReadFailed
		}
	}
	r.planes = planes
	r.loaded = true
	return
}

// Read forces the pixel planes into memory.
func (r *Raster) Read() error {
	return r.ensureLoaded()
}

// Planes returns the band-major pixel planes, loading them if needed.
func (r *Raster) Planes() ([][]uint8, error) {
	if err := r.ensureLoaded(); err != nil {
		return nil, err
	}
	return r.planes, nil
}

func (r *Raster) at(band, col, row int) uint8 {
	return r.planes[band][row*r.profile.Width+col]
}

// Copy returns a deep copy sharing nothing with the receiver.
func (r *Raster) Copy() (*Raster, error) {
	if err := r.ensureLoaded(); err != nil {
		return nil, err
	}
	planes := make([][]uint8, len(r.planes))
	for i, p := range r.planes {
		planes[i] = append([]uint8(nil), p...)
	}
	return &Raster{
		profile: r.profile,
		planes:  planes,
		path:    r.path,
		loaded:  true,
	}, nil
}

// pixel maps a geographic coordinate to fractional pixel space.
func (r *Raster) pixel(x, y float64) (px, py float64) {
	gt := r.profile.Transform
	px = (x - gt[0]) / gt[1]
	py = (y - gt[3]) / gt[5]
	return
}

// cropPixels copies the window [col0,col0+w)x[row0,row0+h), already
// clamped to the grid, into a new raster with a shifted geotransform.
func (r *Raster) cropPixels(col0, row0, w, h int) *Raster {
	gt := r.profile.Transform
	out := &Raster{
		profile: RasterProfile{
			Width:  w,
			Height: h,
			Bands:  r.profile.Bands,
			Transform: [6]float64{
				gt[0] + float64(col0)*gt[1], gt[1], gt[2],
				gt[3] + float64(row0)*gt[5], gt[4], gt[5],
			},
			SRS: r.profile.SRS,
		},
		loaded: true,
	}
	out.planes = make([][]uint8, r.profile.Bands)
	for b := range out.planes {
		plane := make([]uint8, w*h)
		for row := 0; row < h; row++ {
			src := (row0+row)*r.profile.Width + col0
			copy(plane[row*w:(row+1)*w], r.planes[b][src:src+w])
		}
		out.planes[b] = plane
	}
	return out
}

// Crop intersects the grid with box and returns the covered window as a
// new raster. A box outside the raster yields an empty raster, not an
// error.
func (r *Raster) Crop(box BoundingBox) (out *Raster, err error) {
	if err = r.ensureLoaded(); err != nil {
		return
	}
	px0, py0 := r.pixel(box.Left, box.Top)
	px1, py1 := r.pixel(box.Right, box.Bottom)
	if px1 < px0 {
		px0, px1 = px1, px0
	}
	if py1 < py0 {
		py0, py1 = py1, py0
	}
	col0 := clampInt(int(math.Floor(px0+1e-9)), 0, r.profile.Width)
	col1 := clampInt(int(math.Ceil(px1-1e-9)), 0, r.profile.Width)
	row0 := clampInt(int(math.Floor(py0+1e-9)), 0, r.profile.Height)
	row1 := clampInt(int(math.Ceil(py1-1e-9)), 0, r.profile.Height)
	if col1 <= col0 || row1 <= row0 {
		out = &Raster{
			profile: RasterProfile{
				Bands:     r.profile.Bands,
				Transform: r.profile.Transform,
				SRS:       r.profile.SRS,
			},
			planes: make([][]uint8, r.profile.Bands),
			loaded: true,
		}
		return
	}
	out = r.cropPixels(col0, row0, col1-col0, row1-row0)
	return
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// 将栅格写入GTiff文件（LZW压缩，先写临时文件再改名，避免半成品）
func (g *GdalToolbox) SaveRaster(r *Raster, path string) (err error) {
	if err = r.ensureLoaded(); err != nil {
		return
	}
	if r.Empty() {
		return ErrEmptyRaster
	}
	ensureDrivers()
	tmp := path + "." + uuid.NewString() + ".tmp"
	ds, err := gdal.Create(gdal.GTiff, tmp, r.profile.Bands, gdal.Byte,
		r.profile.Width, r.profile.Height, gdal.CreationOption("COMPRESS=LZW"))
	if err != nil {
		log.Error(g.logTag+"gtiff create failed", zap.String("path", path), zap.Error(err))
		return ErrGdalDriverCreate
	}
	if err = ds.SetGeoTransform(r.profile.Transform); err != nil {
		ds.Close()
		os.Remove(tmp)
		return
	}
	if r.profile.SRS.Valid() {
		var sr *gdal.SpatialRef
		if sr, err = gdal.NewSpatialRefFromEPSG(r.profile.SRS.Srid()); err != nil {
			ds.Close()
			os.Remove(tmp)
			return
		}
		defer sr.Close()
		if err = ds.SetSpatialRef(sr); err != nil {
			ds.Close()
			os.Remove(tmp)
			return
		}
	}
	bands := ds.Bands()
	for i := 0; i < r.profile.Bands; i++ {
		if err = bands[i].Write(0, 0, r.planes[i], r.profile.Width, r.profile.Height); err != nil {
			log.Error(g.logTag+"write tif band failed", zap.Int("band", i), zap.Error(err))
			ds.Close()
			os.Remove(tmp)
			return
		}
	}
	if err = ds.Close(); err != nil {
		os.Remove(tmp)
		return
	}
	return os.Rename(tmp, path)
}

// warpRaster runs one gdalwarp/translate round trip through temp GTiffs.
func (g *GdalToolbox) warpRaster(r *Raster, switches []string, translate bool) (out *Raster, err error) {
	ensureDrivers()
	src := r.path
	cleanSrc := false
	if src == "" {
		// materialize in-memory grids first
		src = g.tmpPath(TMP_GTIFF)
		if err = g.SaveRaster(r, src); err != nil {
			return
		}
		cleanSrc = true
	}
	defer func() {
		if cleanSrc {
			os.Remove(src)
		}
	}()
	sds, err := gdal.Open(src, gdal.RasterOnly())
	if err != nil {
		log.Error(g.logTag+"open tif for warp failed", zap.Error(err))
		err = ErrInvalidTif
		return
	}
	dst := g.tmpPath(TMP_GTIFF)
	var ods *gdal.Dataset
	if translate {
		ods, err = sds.Translate(dst, switches)
	} else {
		ods, err = sds.Warp(dst, switches)
	}
	sds.Close()
	if err != nil {
		log.Error(g.logTag+"warp raster failed", zap.Strings("switches", switches), zap.Error(err))
		return
	}
	ods.Close()
	defer os.Remove(dst)
	if out, err = g.OpenRaster(dst); err != nil {
		return
	}
	if err = out.Read(); err != nil {
		out = nil
		return
	}
	out.path = "" // result lives in memory only
	return
}

// Reproject resamples the raster into another CRS (bilinear by default)
// and returns a new in-memory raster.
func (g *GdalToolbox) Reproject(r *Raster, dst CRS, resampling ...string) (out *Raster, err error) {
	if !dst.Valid() {
		err = ErrVoidSrid
		return
	}
	if r.profile.SRS.Equal(dst) {
		return r.Copy()
	}
	alg := RESAMPLING_BILINEAR
	if len(resampling) > 0 && resampling[0] != "" {
		alg = resampling[0]
	}
	log.Info(g.logTag+"reproject raster", zap.String("src", r.profile.SRS.String()), zap.String("dst", dst.String()))
	out, err = g.warpRaster(r, []string{
		"-t_srs", fmt.Sprintf("epsg:%d", dst.Srid()),
		"-r", alg,
		"-overwrite",
	}, false)
	if err == nil {
		out.profile.SRS = dst
	}
	return
}

// Rescale resamples the grid by a pixel-count factor (2 doubles both
// dimensions), preserving the geographic extent.
func (g *GdalToolbox) Rescale(r *Raster, factor float64, resampling ...string) (out *Raster, err error) {
	if factor <= 0 {
		err = ErrWindowSize
		return
	}
	w := int(math.Round(float64(r.profile.Width) * factor))
	h := int(math.Round(float64(r.profile.Height) * factor))
	if w < 1 || h < 1 {
		err = ErrWindowSize
		return
	}
	alg := RESAMPLING_BILINEAR
	if len(resampling) > 0 && resampling[0] != "" {
		alg = resampling[0]
	}
	log.Info(g.logTag+"rescale raster", zap.Float64("factor", factor), zap.Int("width", w), zap.Int("height", h))
	return g.warpRaster(r, []string{
		"-outsize", fmt.Sprintf("%d", w), fmt.Sprintf("%d", h),
		"-r", alg,
	}, true)
}

// CropByGeometry cuts the raster along a polygon outline (gdalwarp
// cutline through a temp GeoJSON), cropping the extent to the cut.
// Pixels outside the polygon become background.
func (g *GdalToolbox) CropByGeometry(r *Raster, geom orb.Geometry, resampling ...string) (out *Raster, err error) {
	switch geom.(type) {
	case orb.Polygon, orb.MultiPolygon:
	default:
		err = ErrWrongGeoType
		return
	}
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(geom))
	data, err := fc.MarshalJSON()
	if err != nil {
		return
	}
	cut := g.tmpPath(TMP_GEOJSON)
	if err = os.WriteFile(cut, data, os.ModePerm); err != nil {
		return
	}
	defer os.Remove(cut)
	alg := RESAMPLING_BILINEAR
	if len(resampling) > 0 && resampling[0] != "" {
		alg = resampling[0]
	}
	log.Info(g.logTag+"crop raster by cutline", zap.String("cutline", cut), zap.String("resampling", alg))
	return g.warpRaster(r, []string{
		"-cutline", cut,
		"-crop_to_cutline",
		"-r", alg,
		"-overwrite",
	}, false)
}

// RescaleToResolution resamples the grid to an exact pixel size,
// preserving the geographic extent.
func (g *GdalToolbox) RescaleToResolution(r *Raster, xRes, yRes float64, resampling ...string) (out *Raster, err error) {
	if xRes <= 0 || yRes <= 0 {
		err = ErrWindowSize
		return
	}
	alg := RESAMPLING_BILINEAR
	if len(resampling) > 0 && resampling[0] != "" {
		alg = resampling[0]
	}
	log.Info(g.logTag+"rescale raster to resolution", zap.Float64("xRes", xRes), zap.Float64("yRes", yRes))
	return g.warpRaster(r, []string{
		"-tr", fmt.Sprintf("%f", xRes), fmt.Sprintf("%f", yRes),
		"-r", alg,
		"-overwrite",
	}, false)
}
