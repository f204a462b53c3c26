package geolabel

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// BoundingBox is a geographic extent. Left<=Right and Bottom<=Top are
// assumed throughout.
type BoundingBox struct {
	Left   float64
	Bottom float64
	Right  float64
	Top    float64
}

func (b BoundingBox) Width() float64 {
	return b.Right - b.Left
}

func (b BoundingBox) Height() float64 {
	return b.Top - b.Bottom
}

func (b BoundingBox) Empty() bool {
	return b.Right <= b.Left || b.Top <= b.Bottom
}

func (b BoundingBox) Intersect(o BoundingBox) BoundingBox {
	return BoundingBox{
		Left:   math.Max(b.Left, o.Left),
		Bottom: math.Max(b.Bottom, o.Bottom),
		Right:  math.Min(b.Right, o.Right),
		Top:    math.Min(b.Top, o.Top),
	}
}

func (b BoundingBox) Contains(x, y float64) bool {
	return x >= b.Left && x <= b.Right && y >= b.Bottom && y <= b.Top
}

func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.Left, b.Bottom}, Max: orb.Point{b.Right, b.Top}}
}

func BoxFromBound(bd orb.Bound) BoundingBox {
	return BoundingBox{Left: bd.Min[0], Bottom: bd.Min[1], Right: bd.Max[0], Top: bd.Max[1]}
}

func (b BoundingBox) ToWkt() string {
	return PointsToWkt(b.Left, b.Right, b.Bottom, b.Top)
}

func PointsToWkt(lon1, lon2, lat1, lat2 float64) string {
	return fmt.Sprintf("POLYGON((%[1]f %[3]f, %[1]f %[4]f, %[2]f %[4]f, %[2]f %[3]f, %[1]f %[3]f))", lon1, lon2, lat1, lat2)
}

func SpanToWkt(span [4]float64) string {
	return PointsToWkt(span[0], span[1], span[2], span[3])
}
