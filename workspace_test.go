package geolabel

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewWorkspaceLayout(t *testing.T) {
	root := t.TempDir()
	w, err := NewWorkspace(root)
	if err != nil {
		t.Fatal(err)
	}
	for _, dir := range []string{w.ImagesDir(), w.LabelsDir(), w.CategoriesDir()} {
		st, err := os.Stat(dir)
		if err != nil || !st.IsDir() {
			t.Fatalf("missing workspace dir %s: %v", dir, err)
		}
	}
}

func TestWorkspaceCategoriesRoundTrip(t *testing.T) {
	w, err := NewWorkspace(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	g := NewGdalToolbox()
	cc := NewCategoryCollection(
		NewCategory("water", RGB{30, 60, 200}, squarePoly(0, 0, 2, 2), squarePoly(5, 5, 6, 6)),
		NewCategory("roof", RGB{200, 60, 30}, squarePoly(10, 10, 12, 12)),
	)
	rep, err := w.SaveCategories(g, cc)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Processed != 2 || rep.Skipped != 0 {
		t.Fatalf("save report %d/%d, want 2/0", rep.Processed, rep.Skipped)
	}
	if _, err = os.Stat(filepath.Join(w.Root, CATEGORIES_INDEX)); err != nil {
		t.Fatal(err)
	}

	got, rep, err := w.LoadCategories(g)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Processed != 2 || got.Len() != 2 {
		t.Fatalf("load report %d/%d len %d", rep.Processed, rep.Skipped, got.Len())
	}
	for i, c := range got.Items() {
		src := cc.At(i)
		if c.Name != src.Name {
			t.Fatalf("member %d is %s, want %s (order must hold)", i, c.Name, src.Name)
		}
		if c.Color != src.Color {
			t.Fatalf("category %s color %s, want %s", c.Name, c.Color.Hex(), src.Color.Hex())
		}
		if len(c.Geometries) != len(src.Geometries) {
			t.Fatalf("category %s has %d geometries, want %d", c.Name, len(c.Geometries), len(src.Geometries))
		}
	}
}

func TestLoadCategoriesWithoutIndex(t *testing.T) {
	w, err := NewWorkspace(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err = w.LoadCategories(NewGdalToolbox()); err == nil {
		t.Fatal("expected error without an index")
	}
}
