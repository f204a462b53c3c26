package geolabel

const (
	FILE_EXT_SHP     = ".shp"
	FILE_EXT_JSON    = ".json"
	FILE_EXT_GEOJSON = ".geojson"
	FILE_EXT_FGB     = ".fgb"
	FILE_EXT_TIF     = ".tif"
	FILE_EXT_PNG     = ".png"
	FILE_EXT_CPG     = ".cpg"

	SHAPE_ENCODING  = "UTF-8"
	UTF8_ENC        = "UTF8"
	ZH_ENC          = "GBK"
	SHP_DRIVER_NAME = "ESRI Shapefile"
	ENCODING_OPTION = "ENCODING=" + SHAPE_ENCODING

	UNIVERSAL_SRID = 4326
	MERCATOR_SRID  = 3857

	// SimplifyT is the contour simplification tolerance, in pixels.
	SimplifyT = 1.0

	// ColorRetryBound caps the random re-draws used to resolve a category
	// color collision. Past the bound the duplicate color is kept as is.
	ColorRetryBound = 200

	TileSize    = 256
	MaxZoom     = 19
	DefaultZoom = -1 // pick the zoom nearest to the raster resolution

	RESAMPLING_BILINEAR = "bilinear"
	RESAMPLING_NEAREST  = "near"

	IMAGES_SUBDIR     = "images"
	LABELS_SUBDIR     = "labels"
	CATEGORIES_SUBDIR = "categories"
	CATEGORIES_INDEX  = "categories.json"

	ErrColumnMissingTemplate = `shp文件中缺失【%s】字段`

	TMP_GEOJSON = "geo_%s.json"
	TMP_GTIFF   = "ras_%s.tif"
)
