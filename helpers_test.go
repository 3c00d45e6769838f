package detconv

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// writeTestImage saves a solid image of the given size to path, encoded according to its extension.
func writeTestImage(t *testing.T, path string, width, height int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	img := imaging.New(width, height, color.NRGBA{R: 200, G: 80, B: 40, A: 255})
	require.NoError(t, imaging.Save(img, path))
}

// writeTestFile writes content to path, creating parent directories.
func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// testMediator returns a small dataset with two categories and two images whose files exist in
// dir.
func testMediator(t *testing.T, dir string) *Mediator {
	t.Helper()
	m := NewMediator()
	m.Categories.Append("cat", "animal", 1)
	m.Categories.Append("dog", "animal", 2)

	writeTestImage(t, filepath.Join(dir, "a.jpg"), 200, 100)
	writeTestImage(t, filepath.Join(dir, "b.jpg"), 64, 48)

	a, err := m.Images.Append(Image{ID: 1, Path: filepath.Join(dir, "a.jpg"), Width: 200,
		Height: 100, Depth: 3}, true)
	require.NoError(t, err)
	require.NoError(t, a.Boxes.Append(BoundingBox{ID: 1, CategoryID: 1, X: 10, Y: 20, Width: 20,
		Height: 30}))
	require.NoError(t, a.Boxes.Append(BoundingBox{ID: 2, CategoryID: 2, X: 100, Y: 0, Width: 100,
		Height: 100}))

	b, err := m.Images.Append(Image{ID: 2, Path: filepath.Join(dir, "b.jpg"), Width: 64,
		Height: 48, Depth: 3}, true)
	require.NoError(t, err)
	require.NoError(t, b.Boxes.Append(BoundingBox{ID: 3, CategoryID: 2, X: 8, Y: 8, Width: 16,
		Height: 24}))

	return m
}

// boxSummary lists the category name and geometry of each box per image file name.
type boxSummary struct {
	Name                string
	X, Y, Width, Height float64
}

func summarise(t *testing.T, m *Mediator) map[string][]boxSummary {
	t.Helper()
	out := make(map[string][]boxSummary)
	for _, img := range m.Images.All() {
		var boxes []boxSummary
		for _, b := range img.Boxes.All() {
			name, err := m.CategoryName(b)
			require.NoError(t, err)
			boxes = append(boxes, boxSummary{name, b.X, b.Y, b.Width, b.Height})
		}
		out[filepath.Base(img.FileName)] = boxes
	}
	return out
}

// requireSameBoxes checks that both datasets hold the same images with the same boxes, within
// delta pixels.
func requireSameBoxes(t *testing.T, want, got *Mediator, delta float64) {
	t.Helper()
	w, g := summarise(t, want), summarise(t, got)
	require.Len(t, g, len(w))
	for file, wantBoxes := range w {
		gotBoxes, ok := g[file]
		require.True(t, ok, file)
		require.Len(t, gotBoxes, len(wantBoxes), file)
		for i := range wantBoxes {
			require.Equal(t, wantBoxes[i].Name, gotBoxes[i].Name, file)
			require.InDelta(t, wantBoxes[i].X, gotBoxes[i].X, delta, file)
			require.InDelta(t, wantBoxes[i].Y, gotBoxes[i].Y, delta, file)
			require.InDelta(t, wantBoxes[i].Width, gotBoxes[i].Width, delta, file)
			require.InDelta(t, wantBoxes[i].Height, gotBoxes[i].Height, delta, file)
		}
	}
}
