package geolabel

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
)

// vertex is a contour point in doubled padded-grid coordinates, so edge
// midpoints stay integral and usable as map keys.
type vertex struct {
	x, y int
}

// ExtractContours traces polygon boundaries out of a binary mask. The
// mask is padded by one background pixel on every side so blobs touching
// the border still close; contours are traced with marching squares at
// iso-level 0.5, shifted back into pixel coordinates (x right, y down)
// and simplified with a fixed 1-pixel Douglas-Peucker tolerance, which
// does not preserve topology: a simplified ring may self-intersect.
// Polygons emptied by simplification are dropped. A single mask may
// yield several polygons (disjoint blobs, occlusion holes).
func ExtractContours(mask BinaryMask) []orb.Polygon {
	rings := traceContours(mask)
	out := make([]orb.Polygon, 0, len(rings))
	dp := simplify.DouglasPeucker(SimplifyT)
	for _, ring := range rings {
		g := dp.Simplify(orb.Polygon{ring})
		if g == nil {
			continue
		}
		poly, ok := g.(orb.Polygon)
		if !ok || len(poly) == 0 || len(poly[0]) < 4 {
			continue
		}
		out = append(out, poly)
	}
	return out
}

// traceContours runs marching squares over the padded mask and chains
// the directed cell segments into closed rings. Segments are directed
// with the set pixels on the left, so every edge midpoint starts exactly
// one segment and the chains are unambiguous, saddle cells included.
func traceContours(mask BinaryMask) []orb.Ring {
	w, h := mask.Width, mask.Height
	if w == 0 || h == 0 {
		return nil
	}
	at := func(x, y int) uint8 {
		// padded lookup: one background pixel beyond each border
		if x < 1 || y < 1 || x > w || y > h {
			return 0
		}
		return mask.Bits[(y-1)*w+(x-1)]
	}
	var (
		next   = map[vertex]vertex{}
		starts []vertex
	)
	addSeg := func(s, e vertex) {
		next[s] = e
		starts = append(starts, s)
	}
	// padded grid has w+2 x h+2 pixels, hence w+1 x h+1 cells
	for y := 0; y <= h; y++ {
		for x := 0; x <= w; x++ {
			code := at(x, y)<<3 | at(x+1, y)<<2 | at(x+1, y+1)<<1 | at(x, y+1)
			if code == 0 || code == 15 {
				continue
			}
			top := vertex{2*x + 1, 2 * y}
			right := vertex{2*x + 2, 2*y + 1}
			bottom := vertex{2*x + 1, 2*y + 2}
			left := vertex{2 * x, 2*y + 1}
			switch code {
			case 8:
				addSeg(left, top)
			case 4:
				addSeg(top, right)
			case 2:
				addSeg(right, bottom)
			case 1:
				addSeg(bottom, left)
			case 12:
				addSeg(left, right)
			case 6:
				addSeg(top, bottom)
			case 3:
				addSeg(right, left)
			case 9:
				addSeg(bottom, top)
			case 7:
				addSeg(top, left)
			case 13:
				addSeg(right, top)
			case 11:
				addSeg(bottom, right)
			case 14:
				addSeg(left, bottom)
			case 10: // saddle: keep the low diagonal connected
				addSeg(left, top)
				addSeg(right, bottom)
			case 5:
				addSeg(top, right)
				addSeg(bottom, left)
			}
		}
	}
	var rings []orb.Ring
	for _, s := range starts {
		if _, open := next[s]; !open {
			continue
		}
		ring := orb.Ring{}
		cur := s
		for {
			nxt, ok := next[cur]
			if !ok {
				break
			}
			delete(next, cur)
			ring = append(ring, pixelPoint(cur))
			cur = nxt
			if cur == s {
				break
			}
		}
		if len(ring) >= 3 {
			ring = append(ring, ring[0])
			rings = append(rings, ring)
		}
	}
	return rings
}

// pixelPoint converts a doubled padded-grid vertex back to pixel
// coordinates: undo the doubling, drop the 1-pixel pad, swap row/col
// into (x, y).
func pixelPoint(v vertex) orb.Point {
	return orb.Point{float64(v.x)/2 - 1, float64(v.y)/2 - 1}
}
