package geolabel

import (
	"github.com/wgdzlh/geolabel/log"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"
	"go.uber.org/zap"
)

// Category is an ordered collection of vector geometries sharing one
// semantic name and one color. Transforms return new instances.
type Category struct {
	Name       string
	Color      RGB
	SRS        CRS // optional; unset means "same as the raster it meets"
	Geometries []orb.Geometry
}

func NewCategory(name string, color RGB, geoms ...orb.Geometry) *Category {
	return &Category{
		Name:       name,
		Color:      color,
		Geometries: geoms,
	}
}

func (c *Category) Empty() bool {
	return len(c.Geometries) == 0
}

func (c *Category) Copy() *Category {
	out := &Category{
		Name:       c.Name,
		Color:      c.Color,
		SRS:        c.SRS,
		Geometries: make([]orb.Geometry, len(c.Geometries)),
	}
	for i, g := range c.Geometries {
		out.Geometries[i] = orb.Clone(g)
	}
	return out
}

// Bound is the union extent of all member geometries.
func (c *Category) Bound() orb.Bound {
	var bd orb.Bound
	for i, g := range c.Geometries {
		if i == 0 {
			bd = g.Bound()
		} else {
			bd = bd.Union(g.Bound())
		}
	}
	return bd
}

// Area sums the planar area of the member geometries.
func (c *Category) Area() (a float64) {
	for _, g := range c.Geometries {
		a += planar.Area(g)
	}
	return
}

// Crop clips the geometry boundaries to box (a geometric clip, not a
// feature filter) and returns a new category. Geometries fully outside
// the box are dropped.
func (c *Category) Crop(box BoundingBox) *Category {
	out := &Category{
		Name:  c.Name,
		Color: c.Color,
		SRS:   c.SRS,
	}
	bd := box.Bound()
	for _, g := range c.Geometries {
		clipped := clip.Geometry(bd, orb.Clone(g))
		if clipped == nil {
			continue
		}
		out.Geometries = append(out.Geometries, clipped)
	}
	return out
}

// ReprojectCategory transforms every member geometry into dst. Items
// that fail to transform are logged and excluded, never fatal.
func (g *GdalToolbox) ReprojectCategory(c *Category, dst CRS) (out *Category, err error) {
	if !c.SRS.Valid() {
		err = ErrVoidSrid
		return
	}
	if c.SRS.Equal(dst) {
		out = c.Copy()
		return
	}
	out = &Category{
		Name:  c.Name,
		Color: c.Color,
		SRS:   dst,
	}
	var (
		geom orb.Geometry
		e    error
	)
	for i, src := range c.Geometries {
		if geom, e = g.TransformGeometry(src, c.SRS, dst); e != nil {
			log.Error(g.logTag+"reproject geometry failed", zap.String("category", c.Name), zap.Int("idx", i), zap.Error(e))
			continue
		}
		out.Geometries = append(out.Geometries, geom)
	}
	return
}

// CategoryCollection owns an ordered, growable set of categories. The
// collection keeps one global invariant: no two members share a color.
// On every insert a colliding color is replaced with a random one; after
// ColorRetryBound failed draws the duplicate is kept silently.
type CategoryCollection struct {
	items []*Category
}

func NewCategoryCollection(cats ...*Category) *CategoryCollection {
	cc := &CategoryCollection{}
	cc.Append(cats...)
	return cc
}

func (cc *CategoryCollection) Len() int {
	return len(cc.items)
}

func (cc *CategoryCollection) At(i int) *Category {
	return cc.items[i]
}

func (cc *CategoryCollection) Items() []*Category {
	return cc.items
}

// Get looks a category up by name.
func (cc *CategoryCollection) Get(name string) *Category {
	for _, c := range cc.items {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (cc *CategoryCollection) Append(cats ...*Category) {
	for _, c := range cats {
		if c == nil {
			continue
		}
		cc.ensureUniqueColor(c)
		cc.items = append(cc.items, c)
	}
}

// Set replaces the member at i, re-checking the color invariant.
func (cc *CategoryCollection) Set(i int, c *Category) {
	cc.items[i] = nil // exclude the old member from the collision scan
	cc.ensureUniqueColor(c)
	cc.items[i] = c
}

func (cc *CategoryCollection) colorTaken(color RGB, skip *Category) bool {
	for _, m := range cc.items {
		if m == nil || m == skip {
			continue
		}
		if m.Color == color {
			return true
		}
	}
	return false
}

func (cc *CategoryCollection) ensureUniqueColor(c *Category) {
	if !cc.colorTaken(c.Color, c) {
		return
	}
	for i := 0; i < ColorRetryBound; i++ {
		next := RandomColor()
		if !cc.colorTaken(next, c) {
			log.Warn("category color collision resolved",
				zap.String("category", c.Name), zap.String("old", c.Color.Hex()), zap.String("new", next.Hex()))
			c.Color = next
			return
		}
	}
	// retries exhausted: the duplicate stays
	log.Warn("category color collision unresolved", zap.String("category", c.Name), zap.String("color", c.Color.Hex()))
}

// Copy deep-copies the collection without re-randomizing colors.
func (cc *CategoryCollection) Copy() *CategoryCollection {
	out := &CategoryCollection{items: make([]*Category, len(cc.items))}
	for i, c := range cc.items {
		out.items[i] = c.Copy()
	}
	return out
}

// Crop clips every member to box. Members that end up empty are
// excluded and counted in the report.
func (cc *CategoryCollection) Crop(box BoundingBox) (out *CategoryCollection, rep BatchReport) {
	out = &CategoryCollection{}
	for _, c := range cc.items {
		clipped := c.Crop(box)
		if clipped.Empty() {
			rep.fail(nil)
			continue
		}
		out.items = append(out.items, clipped)
		rep.ok()
	}
	return
}

// ReprojectCollection transforms every member into dst, excluding and
// counting members that fail.
func (g *GdalToolbox) ReprojectCollection(cc *CategoryCollection, dst CRS) (out *CategoryCollection, rep BatchReport) {
	out = &CategoryCollection{}
	for _, c := range cc.items {
		t, err := g.ReprojectCategory(c, dst)
		if err != nil {
			log.Error(g.logTag+"reproject category failed", zap.String("category", c.Name), zap.Error(err))
			rep.fail(err)
			continue
		}
		out.items = append(out.items, t)
		rep.ok()
	}
	log.Info(g.logTag+"collection reprojected", zap.String("dst", dst.String()),
		zap.Int("processed", rep.Processed), zap.Int("skipped", rep.Skipped))
	return
}
