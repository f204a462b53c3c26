package geolabel

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/wgdzlh/geolabel/log"
	"github.com/wgdzlh/geolabel/utils"

	flatgeobuf "github.com/flatgeobuf/flatgeobuf/src/go"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/lukeroth/gdal"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

// OpenCategory reads one named, colored category from a vector file.
// The format is picked by extension: .json/.geojson, .fgb or .shp.
func (g *GdalToolbox) OpenCategory(path, name string, color RGB) (c *Category, err error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case FILE_EXT_JSON, FILE_EXT_GEOJSON:
		c, err = readGeoJSONCategory(path, name, color)
	case FILE_EXT_FGB:
		c, err = readFlatGeobufCategory(path, name, color)
	case FILE_EXT_SHP:
		c, err = g.readShapefileCategory(path, name, color)
	default:
		err = ErrUnknownVector
	}
	if err == nil {
		log.Info(g.logTag+"category opened", zap.String("path", path),
			zap.String("name", name), zap.Int("geoms", len(c.Geometries)))
	}
	return
}

func readGeoJSONCategory(path, name string, color RGB) (c *Category, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		log.Error("parse geojson failed", zap.String("path", path), zap.Error(err))
		err = ErrWrongGeoType
		return
	}
	c = &Category{
		Name:  name,
		Color: color,
		SRS:   WGS84, // GeoJSON carries WGS84 per RFC 7946
	}
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		c.Geometries = append(c.Geometries, f.Geometry)
	}
	return
}

func readFlatGeobufCategory(path, name string, color RGB) (c *Category, err error) {
	fgb, err := flatgeobuf.New(path)
	if err != nil {
		log.Error("open fgb failed", zap.String("path", path), zap.Error(err))
		return
	}
	h := fgb.Header()
	if h == nil {
		err = ErrWrongGeoType
		return
	}
	c = &Category{
		Name:  name,
		Color: color,
	}
	var crs flattypes.Crs
	if h.Crs(&crs) != nil && crs.Code() > 0 {
		c.SRS = EPSG(int(crs.Code()))
	}
	if h.IndexNodeSize() == 0 || h.EnvelopeLength() < 4 {
		// the official reader can only iterate through the spatial index
		err = ErrFgbNoIndex
		return
	}
	features, err := fgb.Search(h.Envelope(0), h.Envelope(1), h.Envelope(2), h.Envelope(3))
	if err != nil {
		return
	}
	for _, f := range features {
		var geomObj flattypes.Geometry
		fgbGeom := f.Geometry(&geomObj)
		if fgbGeom == nil {
			continue
		}
		if geom := geometryFromFGB(fgbGeom); geom != nil {
			c.Geometries = append(c.Geometries, geom)
		}
	}
	return
}

// geometryFromFGB decodes the flat XY/Ends encoding into orb geometries.
// Only the types the pipeline consumes are handled.
func geometryFromFGB(fgbGeom *flattypes.Geometry) orb.Geometry {
	switch fgbGeom.Type() {
	case flattypes.GeometryTypePoint:
		if fgbGeom.XyLength() < 2 {
			return nil
		}
		return orb.Point{fgbGeom.Xy(0), fgbGeom.Xy(1)}
	case flattypes.GeometryTypeLineString:
		ls := make(orb.LineString, 0, fgbGeom.XyLength()/2)
		for i := 0; i+1 < fgbGeom.XyLength(); i += 2 {
			ls = append(ls, orb.Point{fgbGeom.Xy(i), fgbGeom.Xy(i + 1)})
		}
		return ls
	case flattypes.GeometryTypePolygon:
		return polygonFromFGB(fgbGeom)
	case flattypes.GeometryTypeMultiPolygon:
		partsLen := fgbGeom.PartsLength()
		if partsLen == 0 {
			if poly := polygonFromFGB(fgbGeom); len(poly) > 0 {
				return orb.MultiPolygon{poly}
			}
			return nil
		}
		mp := make(orb.MultiPolygon, 0, partsLen)
		for i := 0; i < partsLen; i++ {
			var part flattypes.Geometry
			if fgbGeom.Parts(&part, i) {
				if poly := polygonFromFGB(&part); len(poly) > 0 {
					mp = append(mp, poly)
				}
			}
		}
		return mp
	default:
		return nil
	}
}

func polygonFromFGB(fgbGeom *flattypes.Geometry) orb.Polygon {
	xyLen := fgbGeom.XyLength()
	if xyLen < 2 {
		return nil
	}
	endsLen := fgbGeom.EndsLength()
	if endsLen == 0 {
		ring := make(orb.Ring, 0, xyLen/2)
		for i := 0; i+1 < xyLen; i += 2 {
			ring = append(ring, orb.Point{fgbGeom.Xy(i), fgbGeom.Xy(i + 1)})
		}
		return orb.Polygon{ring}
	}
	poly := make(orb.Polygon, 0, endsLen)
	start := uint32(0)
	for i := 0; i < endsLen; i++ {
		end := fgbGeom.Ends(i)
		ring := make(orb.Ring, 0, end-start)
		for j := start; j < end; j++ {
			idx := int(j) * 2
			if idx+1 < xyLen {
				ring = append(ring, orb.Point{fgbGeom.Xy(idx), fgbGeom.Xy(idx + 1)})
			}
		}
		poly = append(poly, ring)
		start = end
	}
	return poly
}

// shpNeedsGbk reports whether the .cpg sidecar declares a non-UTF-8
// codepage. An absent or empty sidecar is treated as legacy GBK.
func shpNeedsGbk(shp string) bool {
	data, err := os.ReadFile(strings.TrimSuffix(shp, filepath.Ext(shp)) + FILE_EXT_CPG)
	if err != nil {
		return true
	}
	cpg := strings.TrimSpace(utils.B2S(data))
	return cpg != SHAPE_ENCODING && cpg != UTF8_ENC
}

func (g *GdalToolbox) readShapefileCategory(shp, name string, color RGB) (c *Category, err error) {
	driver := gdal.OGRDriverByName(SHP_DRIVER_NAME)
	ds, ok := driver.Open(shp, 0)
	if !ok {
		err = ErrGdalDriverOpen
		return
	}
	defer ds.Destroy()
	layer := ds.LayerByIndex(0)
	srid, err := g.getSrid(layer.SpatialReference())
	if err != nil {
		log.Warn(g.logTag+"shp with void srid", zap.String("shp", shp))
		err = nil
	}
	c = &Category{
		Name:  name,
		Color: color,
		SRS:   EPSG(srid),
	}
	var (
		feature *gdal.Feature
		raw     []byte
		geom    orb.Geometry
		skipped int
		e       error
		gc      []destroyable
	)
	defer func() {
		for _, v := range gc {
			v.Destroy()
		}
	}()
	for {
		if feature = layer.NextFeature(); feature == nil {
			break
		}
		gc = append(gc, *feature)
		if raw, e = feature.Geometry().ToWKB(); e != nil {
			skipped++
			continue
		}
		if geom, e = wkb.Unmarshal(raw); e != nil {
			log.Error(g.logTag+"wkb decode failed", zap.Int64("fid", feature.FID()), zap.Error(e))
			skipped++
			continue
		}
		c.Geometries = append(c.Geometries, geom)
	}
	if skipped > 0 {
		log.Warn(g.logTag+"shp features skipped", zap.String("shp", shp), zap.Int("skipped", skipped))
	}
	return
}

// CategoriesFromShapefile splits one shapefile into categories keyed by
// a label field, assigning each label its color from colors (random when
// missing). Label values in legacy GBK encoding are decoded on the fly.
func (g *GdalToolbox) CategoriesFromShapefile(shp, labelField string, colors map[string]RGB) (cc *CategoryCollection, err error) {
	driver := gdal.OGRDriverByName(SHP_DRIVER_NAME)
	ds, ok := driver.Open(shp, 0)
	if !ok {
		err = ErrGdalDriverOpen
		return
	}
	defer ds.Destroy()
	needsGbk := shpNeedsGbk(shp)
	if needsGbk {
		log.Info(g.logTag+"shp attribute codepage assumed", zap.String("shp", shp), zap.String("enc", ZH_ENC))
	}
	layer := ds.LayerByIndex(0)
	def := layer.Definition()
	labelIdx := def.FieldIndex(labelField)
	if labelIdx < 0 && needsGbk {
		// legacy files may carry GBK-encoded field names
		if gbkField, e := utils.Utf8StrToGbk(labelField); e == nil {
			labelIdx = def.FieldIndex(gbkField)
		}
	}
	if labelIdx < 0 {
		err = fmt.Errorf(ErrColumnMissingTemplate, labelField)
		return
	}
	srid, err := g.getSrid(layer.SpatialReference())
	if err != nil {
		log.Warn(g.logTag+"shp with void srid", zap.String("shp", shp))
		err = nil
	}
	var (
		byLabel = map[string]*Category{}
		order   []string
		feature *gdal.Feature
		label   string
		raw     []byte
		geom    orb.Geometry
		e       error
		gc      []destroyable
	)
	defer func() {
		for _, v := range gc {
			v.Destroy()
		}
	}()
	for {
		if feature = layer.NextFeature(); feature == nil {
			break
		}
		gc = append(gc, *feature)
		label = feature.FieldAsString(labelIdx)
		if needsGbk && !utf8.ValidString(label) {
			if label, e = utils.GbkStrToUtf8(label); e != nil {
				label = utils.PurifyForUtf8(feature.FieldAsString(labelIdx))
			}
		}
		if label == "" {
			continue
		}
		if raw, e = feature.Geometry().ToWKB(); e != nil {
			continue
		}
		if geom, e = wkb.Unmarshal(raw); e != nil {
			log.Error(g.logTag+"wkb decode failed", zap.Int64("fid", feature.FID()), zap.Error(e))
			continue
		}
		c := byLabel[label]
		if c == nil {
			color, has := colors[label]
			if !has {
				color = RandomColor()
			}
			c = &Category{Name: label, Color: color, SRS: EPSG(srid)}
			byLabel[label] = c
			order = append(order, label)
		}
		c.Geometries = append(c.Geometries, geom)
	}
	cc = &CategoryCollection{}
	for _, label := range order {
		cc.Append(byLabel[label])
	}
	log.Info(g.logTag+"categories from shp", zap.String("shp", shp), zap.Int("categories", cc.Len()))
	return
}

// SaveCategoryShapefile writes the category as an ESRI Shapefile with a
// UTF-8 declared codepage and a name attribute per feature. Features
// that fail to encode are logged and skipped.
func (g *GdalToolbox) SaveCategoryShapefile(c *Category, path string) (err error) {
	srid := UNIVERSAL_SRID
	if c.SRS.Valid() {
		srid = c.SRS.Srid()
	}
	ref, err := g.getSridRef(srid)
	if err != nil {
		return
	}
	driver := gdal.OGRDriverByName(SHP_DRIVER_NAME)
	ds, ok := driver.Create(path, nil)
	if !ok {
		err = ErrGdalDriverCreate
		return
	}
	defer ds.Destroy() // 生成shp文件 + 释放资源
	layer := ds.CreateLayer("", ref, gdal.GT_Unknown, []string{ENCODING_OPTION})
	nameField := gdal.CreateFieldDefinition("name", gdal.FT_String)
	nameField.SetWidth(64)
	if err = layer.CreateField(nameField, false); err != nil {
		return
	}
	var (
		def     = layer.Definition()
		nameIdx = def.FieldIndex("name")
		feature gdal.Feature
		geo     gdal.Geometry
		raw     []byte
		valid   int
		e       error
		gc      []destroyable
	)
	defer func() {
		for _, v := range gc {
			v.Destroy()
		}
	}()
	for i, src := range c.Geometries {
		feature = def.Create()
		gc = append(gc, feature)
		if e = feature.SetFID(int64(i)); e != nil {
			log.Error(g.logTag+"err in set feature fid", zap.Error(e))
			continue
		}
		feature.SetFieldString(nameIdx, c.Name)
		if raw, e = wkb.Marshal(src); e != nil {
			log.Error(g.logTag+"wkb encode failed", zap.Int("idx", i), zap.Error(e))
			continue
		}
		if geo, e = g.parseWKB(raw, ref); e != nil {
			continue
		}
		if e = feature.SetGeometryDirectly(geo); e != nil {
			log.Error(g.logTag+"err in set geom of feature", zap.Error(e))
			continue
		}
		if e = layer.Create(feature); e != nil {
			log.Error(g.logTag+"err in create feature of layer", zap.Error(e))
			continue
		}
		valid++
	}
	log.Info(g.logTag+"category shp saved", zap.String("path", path),
		zap.Int("total", len(c.Geometries)), zap.Int("valid", valid))
	return
}

// SaveCategory writes the category as a GeoJSON feature collection,
// fully marshaled before a single atomic write.
func (g *GdalToolbox) SaveCategory(c *Category, path string) (err error) {
	fc := geojson.NewFeatureCollection()
	for _, geom := range c.Geometries {
		f := geojson.NewFeature(geom)
		f.Properties["name"] = c.Name
		f.Properties["color"] = c.Color.Hex()
		fc.Append(f)
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return
	}
	if err = utils.AtomicWriteFile(path, data); err != nil {
		return
	}
	log.Info(g.logTag+"category saved", zap.String("path", path), zap.Int("geoms", len(c.Geometries)))
	return
}
