package geolabel

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/wgdzlh/geolabel/log"
	"github.com/wgdzlh/geolabel/utils"

	"go.uber.org/zap"
)

// Workspace manages the on-disk dataset layout: images/, labels/ and
// categories/ subdirectories under one root, plus a categories.json
// index mapping category names to their vector file and color.
type Workspace struct {
	Root string
}

// CategoryIndexEntry is one line of the categories.json index. File is
// relative to the workspace root; entries keep collection order.
type CategoryIndexEntry struct {
	Name  string `json:"name"`
	File  string `json:"file"`
	Color string `json:"color"`
}

// NewWorkspace opens root as a dataset workspace, creating the standard
// subdirectories when missing.
func NewWorkspace(root string) (w *Workspace, err error) {
	for _, sub := range []string{IMAGES_SUBDIR, LABELS_SUBDIR, CATEGORIES_SUBDIR} {
		if err = os.MkdirAll(filepath.Join(root, sub), os.ModePerm); err != nil {
			return
		}
	}
	w = &Workspace{Root: root}
	return
}

func (w *Workspace) ImagesDir() string {
	return filepath.Join(w.Root, IMAGES_SUBDIR)
}

func (w *Workspace) LabelsDir() string {
	return filepath.Join(w.Root, LABELS_SUBDIR)
}

func (w *Workspace) CategoriesDir() string {
	return filepath.Join(w.Root, CATEGORIES_SUBDIR)
}

func (w *Workspace) indexPath() string {
	return filepath.Join(w.Root, CATEGORIES_INDEX)
}

// SaveCategories writes every member as a GeoJSON file under
// categories/ and refreshes the index. Members that fail to save are
// logged, counted and left out of the index.
func (w *Workspace) SaveCategories(g *GdalToolbox, cc *CategoryCollection) (rep BatchReport, err error) {
	index := make([]CategoryIndexEntry, 0, cc.Len())
	for _, c := range cc.Items() {
		rel := filepath.Join(CATEGORIES_SUBDIR, c.Name+FILE_EXT_JSON)
		if e := g.SaveCategory(c, filepath.Join(w.Root, rel)); e != nil {
			log.Error("save category failed", zap.String("category", c.Name), zap.Error(e))
			rep.fail(e)
			continue
		}
		index = append(index, CategoryIndexEntry{Name: c.Name, File: rel, Color: c.Color.Hex()})
		rep.ok()
	}
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return
	}
	err = utils.AtomicWriteFile(w.indexPath(), data)
	return
}

// LoadCategories rebuilds the collection from the index, preserving
// entry order. Entries whose file fails to open are logged, counted and
// skipped.
func (w *Workspace) LoadCategories(g *GdalToolbox) (cc *CategoryCollection, rep BatchReport, err error) {
	data, err := os.ReadFile(w.indexPath())
	if err != nil {
		return
	}
	var index []CategoryIndexEntry
	if err = json.Unmarshal(data, &index); err != nil {
		return
	}
	cc = &CategoryCollection{}
	for _, ent := range index {
		color, e := ParseHexColor(ent.Color)
		if e != nil {
			log.Warn("bad category color in index", zap.String("category", ent.Name), zap.String("color", ent.Color))
			color = RandomColor()
		}
		c, e := g.OpenCategory(filepath.Join(w.Root, ent.File), ent.Name, color)
		if e != nil {
			log.Error("load category failed", zap.String("category", ent.Name), zap.Error(e))
			rep.fail(e)
			continue
		}
		cc.Append(c)
		rep.ok()
	}
	return
}
