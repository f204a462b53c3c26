package geolabel

import (
	"encoding/json"
	"os"

	"github.com/wgdzlh/geolabel/utils"
)

type Info struct {
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
	Year        int    `json:"year,omitempty"`
	DateCreated string `json:"date_created,omitempty"`
}

type ImageRecord struct {
	ID       int    `json:"id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileName string `json:"file_name"`
}

type CategoryRecord struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory"`
}

// Annotation is one reconstructed instance. BBox is always
// [x_min, y_min, width, height]; Segmentation is one flat
// [x1, y1, x2, y2, ...] list per ring.
type Annotation struct {
	ID           int         `json:"id"`
	ImageID      int         `json:"image_id"`
	CategoryID   int         `json:"category_id"`
	BBox         []float64   `json:"bbox,omitempty"`
	Area         float64     `json:"area,omitempty"`
	Segmentation [][]float64 `json:"segmentation,omitempty"`
	IsCrowd      int         `json:"iscrowd"`
	Flag         *bool       `json:"flag,omitempty"` // classification presence
}

// Dataset is the COCO-like annotation container.
type Dataset struct {
	Info        Info             `json:"info"`
	Images      []ImageRecord    `json:"images"`
	Categories  []CategoryRecord `json:"categories"`
	Annotations []Annotation     `json:"annotations"`
}

// Save marshals the whole dataset in memory and writes it once, so a
// failure never leaves a partial file behind.
func (d *Dataset) Save(path string) (err error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return
	}
	return utils.AtomicWriteFile(path, data)
}

func LoadDataset(path string) (d *Dataset, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	d = &Dataset{}
	if err = json.Unmarshal(data, d); err != nil {
		d = nil
	}
	return
}
