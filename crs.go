package geolabel

import (
	"fmt"
	"strconv"
	"strings"
)

// CRS wraps an EPSG authority code. The zero value means "unset"; most
// operations treat an unset CRS as "same as the other operand".
type CRS struct {
	srid int
}

var (
	WGS84       = EPSG(UNIVERSAL_SRID)
	WebMercator = EPSG(MERCATOR_SRID)
)

func EPSG(code int) CRS {
	return CRS{srid: code}
}

// ParseCRS resolves strings like "EPSG:4326", "epsg:4326" or "4326".
func ParseCRS(s string) (c CRS, err error) {
	raw := strings.TrimSpace(s)
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		if !strings.EqualFold(raw[:i], "EPSG") {
			err = fmt.Errorf("unsupported crs authority %q", raw[:i])
			return
		}
		raw = raw[i+1:]
	}
	srid, err := strconv.Atoi(raw)
	if err != nil || srid <= 0 {
		err = ErrVoidSrid
		return
	}
	c = CRS{srid: srid}
	return
}

func (c CRS) Srid() int {
	return c.srid
}

func (c CRS) Valid() bool {
	return c.srid > 0
}

// Equal compares resolved authority codes.
func (c CRS) Equal(o CRS) bool {
	return c.srid == o.srid
}

func (c CRS) String() string {
	if !c.Valid() {
		return "EPSG:unset"
	}
	return fmt.Sprintf("EPSG:%d", c.srid)
}
