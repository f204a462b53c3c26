package geolabel

import "errors"

var (
	ErrGdalDriverCreate = errors.New("gdal driver create err")
	ErrGdalDriverOpen   = errors.New("gdal driver open err")
	ErrVoidSrid         = errors.New("vector with void srid")
	ErrInvalidWKT       = errors.New("invalid WKT")
	ErrInvalidWKB       = errors.New("invalid WKB")
	ErrWrongGeoType     = errors.New("wrong geo type")
	ErrInvalidTif       = errors.New("invalid tif")
	ErrShearedTransform = errors.New("sheared or rotated geotransform unsupported")
	ErrTifReadFailed    = errors.New("tif read failed")
	ErrEmptyRaster      = errors.New("empty raster")
	ErrBandCount        = errors.New("unexpected band count")
	ErrBufferSize       = errors.New("wrong buffer size")
	ErrCRSMismatch      = errors.New("crs mismatch without explicit transform")
	ErrNoCategories     = errors.New("no rasterizable categories")
	ErrUnknownVector    = errors.New("unknown vector format")
	ErrFgbNoIndex       = errors.New("fgb without spatial index")
	ErrWindowSize       = errors.New("invalid window size")
	ErrLengthMismatch   = errors.New("images and labels length mismatch")
	ErrGridMismatch     = errors.New("image and label grid mismatch")
	ErrZoomRange        = errors.New("zoom level out of range")
)
