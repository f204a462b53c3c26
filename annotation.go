package geolabel

import (
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/wgdzlh/geolabel/log"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"go.uber.org/zap"
)

// TaskKind selects the annotation flavor a Builder emits.
type TaskKind int

const (
	Classification TaskKind = iota
	Detection
	Segmentation
)

func (k TaskKind) String() string {
	switch k {
	case Classification:
		return "classification"
	case Detection:
		return "detection"
	case Segmentation:
		return "segmentation"
	}
	return "unknown"
}

// BuildOptions carries the per-dataset knobs of a Builder run.
type BuildOptions struct {
	Description   string
	Supercategory string
	IsCrowd       int
}

// Builder assembles COCO-like datasets for one task kind. Annotation ids
// grow monotonically for the builder's whole lifetime, so ids stay
// unique across several Build/Make calls merged into one dataset family.
type Builder struct {
	kind   TaskKind
	tb     *GdalToolbox // optional; enables category reprojection
	nextID int
	logTag string
}

func NewBuilder(kind TaskKind, tb *GdalToolbox) *Builder {
	return &Builder{
		kind:   kind,
		tb:     tb,
		logTag: fmt.Sprintf("Builder<%s>:", kind),
	}
}

// Build reconstructs annotations out of rendered label rasters. images
// and labels are parallel slices sharing grid geometry; each label is
// decomposed into per-category binary masks whose traced contours become
// the annotation shapes (classification only checks mask presence). A
// pair whose grids differ, or whose label fails to decompose, is
// logged, counted and skipped.
func (b *Builder) Build(images, labels []*Raster, coll *CategoryCollection, opts BuildOptions) (ds *Dataset, rep BatchReport, err error) {
	if len(images) != len(labels) {
		err = ErrLengthMismatch
		return
	}
	ds = b.newDataset(coll, opts)
	for i, img := range images {
		ds.Images = append(ds.Images, b.imageRecord(i, img))
		if labels[i].Width() != img.Width() || labels[i].Height() != img.Height() {
			log.Error(b.logTag+"image and label grids differ", zap.Int("image", i),
				zap.Int("width", labels[i].Width()), zap.Int("height", labels[i].Height()))
			rep.fail(ErrGridMismatch)
			continue
		}
		masks, e := Decompose(labels[i], coll)
		if e != nil {
			log.Error(b.logTag+"label decompose failed", zap.Int("image", i), zap.Error(e))
			rep.fail(e)
			continue
		}
		for ci := range coll.Items() {
			if b.kind == Classification {
				ds.Annotations = append(ds.Annotations, b.flagRecord(i, ci, masks[ci].Any(), opts))
				continue
			}
			for _, poly := range ExtractContours(masks[ci]) {
				ds.Annotations = append(ds.Annotations, b.shapeRecord(i, ci, poly, opts))
			}
		}
		rep.ok()
	}
	log.Info(b.logTag+"dataset built",
		zap.Int("images", len(images)), zap.Int("annotations", len(ds.Annotations)), zap.Int("skipped", rep.Skipped))
	return
}

// Make derives annotations straight from the source vectors, without a
// rendering pass. Each category is reprojected to the image CRS when
// needed, clipped to the image extent and mapped into pixel space with
// the image affine; non-polygon geometries surviving the clip carry no
// area and are skipped silently. A category that cannot be brought into
// the image CRS is logged and counted, never fatal.
func (b *Builder) Make(images []*Raster, coll *CategoryCollection, opts BuildOptions) (ds *Dataset, rep BatchReport, err error) {
	ds = b.newDataset(coll, opts)
	for i, img := range images {
		ds.Images = append(ds.Images, b.imageRecord(i, img))
		bounds := img.Bounds()
		failed := false
		for ci, c := range coll.Items() {
			cat := c
			if cat.SRS.Valid() && img.SRS().Valid() && !cat.SRS.Equal(img.SRS()) {
				if b.tb == nil {
					log.Error(b.logTag+"category CRS differs from image", zap.String("category", c.Name), zap.Int("image", i))
					rep.fail(ErrCRSMismatch)
					failed = true
					continue
				}
				var e error
				if cat, e = b.tb.ReprojectCategory(cat, img.SRS()); e != nil {
					log.Error(b.logTag+"category reprojection failed", zap.String("category", c.Name), zap.Error(e))
					rep.fail(e)
					failed = true
					continue
				}
			}
			clipped := cat.Crop(bounds)
			if b.kind == Classification {
				ds.Annotations = append(ds.Annotations, b.flagRecord(i, ci, !clipped.Empty(), opts))
				continue
			}
			for _, g := range clipped.Geometries {
				for _, poly := range polygonsOf(g) {
					pix := geoToPixels(poly, bounds, img.Width(), img.Height())
					ds.Annotations = append(ds.Annotations, b.shapeRecord(i, ci, pix, opts))
				}
			}
		}
		if !failed {
			rep.ok()
		}
	}
	log.Info(b.logTag+"dataset made",
		zap.Int("images", len(images)), zap.Int("annotations", len(ds.Annotations)), zap.Int("skipped", rep.Skipped))
	return
}

func (b *Builder) newDataset(coll *CategoryCollection, opts BuildOptions) *Dataset {
	now := time.Now()
	ds := &Dataset{
		Info: Info{
			Description: opts.Description,
			Year:        now.Year(),
			DateCreated: now.Format(time.RFC3339),
		},
		Images:      []ImageRecord{},
		Categories:  make([]CategoryRecord, 0, coll.Len()),
		Annotations: []Annotation{},
	}
	if ds.Info.Description == "" {
		ds.Info.Description = "geolabel " + b.kind.String() + " dataset"
	}
	for i, c := range coll.Items() {
		ds.Categories = append(ds.Categories, CategoryRecord{ID: i, Name: c.Name, Supercategory: opts.Supercategory})
	}
	return ds
}

func (b *Builder) imageRecord(id int, r *Raster) ImageRecord {
	name := r.Path()
	if name == "" {
		name = fmt.Sprintf("image_%d%s", id, FILE_EXT_TIF)
	} else {
		name = filepath.Base(name)
	}
	return ImageRecord{ID: id, Width: r.Width(), Height: r.Height(), FileName: name}
}

func (b *Builder) flagRecord(imageID, catID int, present bool, opts BuildOptions) Annotation {
	a := Annotation{
		ID:         b.nextID,
		ImageID:    imageID,
		CategoryID: catID,
		IsCrowd:    opts.IsCrowd,
		Flag:       &present,
	}
	b.nextID++
	return a
}

func (b *Builder) shapeRecord(imageID, catID int, poly orb.Polygon, opts BuildOptions) Annotation {
	a := Annotation{
		ID:         b.nextID,
		ImageID:    imageID,
		CategoryID: catID,
		BBox:       pixelBBox(poly),
		Area:       math.Abs(planar.Area(poly)), // ring orientation is not normalized
		IsCrowd:    opts.IsCrowd,
	}
	if b.kind == Segmentation {
		a.Segmentation = flattenRings(poly)
	}
	b.nextID++
	return a
}

func polygonsOf(g orb.Geometry) []orb.Polygon {
	switch v := g.(type) {
	case orb.Polygon:
		return []orb.Polygon{v}
	case orb.MultiPolygon:
		return v
	}
	// points and lines carry no area
	return nil
}

func pixelBBox(poly orb.Polygon) []float64 {
	bd := poly.Bound()
	return []float64{bd.Min[0], bd.Min[1], bd.Max[0] - bd.Min[0], bd.Max[1] - bd.Min[1]}
}

func flattenRings(poly orb.Polygon) [][]float64 {
	out := make([][]float64, 0, len(poly))
	for _, ring := range poly {
		flat := make([]float64, 0, 2*len(ring))
		for _, p := range ring {
			flat = append(flat, p[0], p[1])
		}
		out = append(out, flat)
	}
	return out
}

// geoToPixels maps a CRS-space polygon into the image pixel frame
// spanned by b: x grows rightward from the left edge, y downward from
// the top edge.
func geoToPixels(poly orb.Polygon, b BoundingBox, w, h int) orb.Polygon {
	sx := float64(w) / (b.Right - b.Left)
	sy := float64(h) / (b.Top - b.Bottom)
	out := make(orb.Polygon, len(poly))
	for ri, ring := range poly {
		pr := make(orb.Ring, len(ring))
		for pi, p := range ring {
			pr[pi] = orb.Point{(p[0] - b.Left) * sx, (b.Top - p[1]) * sy}
		}
		out[ri] = pr
	}
	return out
}
