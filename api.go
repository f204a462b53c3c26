package geolabel

import (
	"fmt"
	"math/rand"
)

type GdalGeo = []byte

// RGB is a category color, one byte per channel.
type RGB [3]uint8

func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

func (c RGB) key() uint32 {
	return uint32(c[0])<<16 | uint32(c[1])<<8 | uint32(c[2])
}

func ParseHexColor(s string) (c RGB, err error) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		err = fmt.Errorf("bad hex color %q", s)
		return
	}
	var r, g, b uint8
	if _, err = fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return
	}
	c = RGB{r, g, b}
	return
}

// RandomColor draws a uniform color. Pure black is reserved for the
// label background and never returned.
func RandomColor() RGB {
	for {
		c := RGB{uint8(rand.Intn(256)), uint8(rand.Intn(256)), uint8(rand.Intn(256))}
		if c != (RGB{}) {
			return c
		}
	}
}

// BatchReport summarizes a per-item batch operation: items that failed
// are logged, counted and excluded from the result, never fatal.
type BatchReport struct {
	Processed int
	Skipped   int
	Errs      []error
}

func (r *BatchReport) ok() {
	r.Processed++
}

func (r *BatchReport) fail(err error) {
	r.Skipped++
	if err != nil {
		r.Errs = append(r.Errs, err)
	}
}
