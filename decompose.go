package geolabel

// BinaryMask is a single-category presence grid split out of a label
// raster.
type BinaryMask struct {
	Bits   []uint8
	Width  int
	Height int
}

func (m BinaryMask) Any() bool {
	for _, b := range m.Bits {
		if b != 0 {
			return true
		}
	}
	return false
}

// Decompose splits a 3-band label raster into per-category binary masks
// by exact color match, in collection order. The whole image is scanned
// once; pixels matching no category color are background.
func Decompose(label *Raster, coll *CategoryCollection) (masks []BinaryMask, err error) {
	if label.Bands() != 3 {
		err = ErrBandCount
		return
	}
	if err = label.ensureLoaded(); err != nil {
		return
	}
	var (
		w, h = label.profile.Width, label.profile.Height
		n    = coll.Len()
		lut  = make(map[uint32]int, n)
	)
	masks = make([]BinaryMask, n)
	for i, c := range coll.Items() {
		masks[i] = BinaryMask{Bits: make([]uint8, w*h), Width: w, Height: h}
		lut[c.Color.key()] = i
	}
	r, g, b := label.planes[0], label.planes[1], label.planes[2]
	for i := 0; i < w*h; i++ {
		key := uint32(r[i])<<16 | uint32(g[i])<<8 | uint32(b[i])
		if idx, ok := lut[key]; ok {
			masks[idx].Bits[i] = 1
		}
	}
	return
}
