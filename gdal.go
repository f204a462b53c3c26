package geolabel

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/wgdzlh/geolabel/log"

	"github.com/google/uuid"
	"github.com/lukeroth/gdal"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"go.uber.org/zap"
)

// GdalToolbox holds the GDAL-facing side of the pipeline: spatial
// reference lookup, geometry reprojection and file-backed raster/vector
// IO. Pure grid and geometry operations live on Raster and Category.
type GdalToolbox struct {
	refMap map[int]gdal.SpatialReference
	rLock  sync.Mutex
	tmpDir string
	logTag string
}

// 由GDAL库C语言创建的内存对象，需要手动调用Destroy回收
type destroyable interface {
	Destroy()
}

// 初始化GDAL工具箱，tmpDir为可选的临时目录路径（未提供的话为当前目录）
func NewGdalToolbox(tmpDir ...string) *GdalToolbox {
	g := &GdalToolbox{
		refMap: map[int]gdal.SpatialReference{},
		logTag: "GdalToolbox:",
	}
	if len(tmpDir) > 0 && tmpDir[0] != "" {
		g.tmpDir = tmpDir[0]
	}
	return g
}

func (g *GdalToolbox) tmpPath(pattern string) string {
	return filepath.Join(g.tmpDir, fmt.Sprintf(pattern, uuid.NewString()))
}

// 获取srid对应的坐标系（可复用，故无需回收）
func (g *GdalToolbox) getSridRef(srid int) (ref gdal.SpatialReference, err error) {
	g.rLock.Lock()
	defer g.rLock.Unlock()
	ref, ok := g.refMap[srid]
	if ok {
		return
	}
	ref = gdal.CreateSpatialReference("")
	if err = ref.FromEPSG(srid); err != nil {
		log.Error(g.logTag+"set ref srid failed", zap.Int("srid", srid), zap.Error(err))
		ref.Destroy()
		return
	}
	// 固定数据轴次序为(经度,纬度)，避免转换坐标系时次序倒置
	ref.SetAxisMappingStrategy(gdal.OAMS_TraditionalGisOrder)
	g.refMap[srid] = ref
	return
}

func (g *GdalToolbox) getSrid(sp gdal.SpatialReference) (srid int, err error) {
	wkt, _ := sp.ToWKT()
	rawId, ok := sp.AttrValue("AUTHORITY", 1)
	if !ok {
		if strings.Contains(wkt, "CGCS_2000") {
			rawId = "4490"
		} else {
			err = ErrVoidSrid
			return
		}
	}
	srid, err = strconv.Atoi(rawId)
	return
}

func (g *GdalToolbox) parseWKB(geo GdalGeo, ref gdal.SpatialReference) (ret gdal.Geometry, err error) {
	ret, err = gdal.CreateFromWKB(geo, ref, len(geo))
	if err != nil {
		log.Error(g.logTag+"parse wkb failed", zap.Error(err))
		err = ErrInvalidWKB
	}
	return
}

func (g *GdalToolbox) parseWKT(wkt string, ref gdal.SpatialReference) (ret gdal.Geometry, err error) {
	ret, err = gdal.CreateFromWKT(wkt, ref)
	if err != nil {
		log.Error(g.logTag+"parse wkt failed", zap.Error(err))
		err = ErrInvalidWKT
	}
	return
}

// 转换WKB坐标系
func (g *GdalToolbox) TransformWkb(geo GdalGeo, srid, tSrid int) (ret GdalGeo, err error) {
	if tSrid == srid {
		ret = geo
		return
	}
	ref, err := g.getSridRef(srid)
	if err != nil {
		return
	}
	tRef, err := g.getSridRef(tSrid)
	if err != nil {
		return
	}
	parsed, err := g.parseWKB(geo, ref)
	if err != nil {
		return
	}
	defer parsed.Destroy()
	if err = parsed.TransformTo(tRef); err != nil {
		log.Error(g.logTag+"geo transform failed", zap.Error(err))
		return
	}
	ret, err = parsed.ToWKB()
	return
}

// 转换WKT坐标系
func (g *GdalToolbox) TransformWkt(wkt string, srid, tSrid int) (ret string, err error) {
	if tSrid == srid {
		ret = wkt
		return
	}
	ref, err := g.getSridRef(srid)
	if err != nil {
		return
	}
	tRef, err := g.getSridRef(tSrid)
	if err != nil {
		return
	}
	geo, err := g.parseWKT(wkt, ref)
	if err != nil {
		return
	}
	defer geo.Destroy()
	if err = geo.TransformTo(tRef); err != nil {
		log.Error(g.logTag+"geo transform failed", zap.Error(err))
		return
	}
	ret, err = geo.ToWKT()
	return
}

// TransformGeometry reprojects an orb geometry between EPSG systems,
// round-tripping through WKB so the OGR transform machinery does the
// datum work.
func (g *GdalToolbox) TransformGeometry(geom orb.Geometry, src, dst CRS) (ret orb.Geometry, err error) {
	if !src.Valid() || !dst.Valid() {
		err = ErrVoidSrid
		return
	}
	if src.Equal(dst) {
		ret = orb.Clone(geom)
		return
	}
	raw, err := wkb.Marshal(geom)
	if err != nil {
		log.Error(g.logTag+"orb wkb marshal failed", zap.Error(err))
		err = ErrInvalidWKB
		return
	}
	out, err := g.TransformWkb(raw, src.Srid(), dst.Srid())
	if err != nil {
		return
	}
	if ret, err = wkb.Unmarshal(out); err != nil {
		log.Error(g.logTag+"orb wkb unmarshal failed", zap.Error(err))
		err = ErrInvalidWKB
	}
	return
}

// 获取WKT经纬度范围
func (g *GdalToolbox) GetWktSpan(wkt string, srid int) (span [4]float64, err error) {
	ref, err := g.getSridRef(srid)
	if err != nil {
		return
	}
	geo, err := g.parseWKT(wkt, ref)
	if err != nil {
		return
	}
	defer geo.Destroy()
	envelop := geo.Envelope()
	span[0] = envelop.MinX()
	span[1] = envelop.MaxX()
	span[2] = envelop.MinY()
	span[3] = envelop.MaxY()
	return
}
