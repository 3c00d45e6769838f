package detconv

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromYOLO(t *testing.T) {
	dir := t.TempDir()
	names := filepath.Join(dir, "obj.names")
	writeTestFile(t, names, "cat\ndog\n\n")
	writeTestImage(t, filepath.Join(dir, "a.jpg"), 200, 100)
	writeTestFile(t, filepath.Join(dir, "a.txt"), "0 0.5 0.5 1 1\n\n1 0.25 0.75 0.1 0.2\n")

	// Neither of these has a counterpart.
	writeTestFile(t, filepath.Join(dir, "orphan.txt"), "0 0.5 0.5 1 1\n")
	writeTestImage(t, filepath.Join(dir, "lonely.jpg"), 10, 10)

	m, err := FromYOLO(dir, names)
	require.NoError(t, err)
	require.Equal(t, Stats{Images: 1, Boxes: 2, Classes: 2, Supercategories: 1}, m.Stats())

	img := m.Images.All()[0]
	require.Equal(t, filepath.Join(dir, "a.jpg"), img.Path)
	require.Equal(t, [3]int{200, 100, 3}, [3]int{img.Width, img.Height, img.Depth})

	boxes := img.Boxes.All()
	require.Equal(t, 1, boxes[0].CategoryID)
	require.InDelta(t, 0, boxes[0].X, tolerance)
	require.InDelta(t, 200, boxes[0].Width, tolerance)
	require.Equal(t, 2, boxes[1].CategoryID)
	require.InDelta(t, 40, boxes[1].X, tolerance)
	require.InDelta(t, 65, boxes[1].Y, tolerance)
	require.InDelta(t, 20, boxes[1].Width, tolerance)
	require.InDelta(t, 20, boxes[1].Height, tolerance)
}

func TestYOLORoundTrip(t *testing.T) {
	images, out := t.TempDir(), t.TempDir()
	m := testMediator(t, images)

	data, err := ToYOLO(m)
	require.NoError(t, err)
	require.Equal(t, []string{"cat", "dog"}, data.Names)
	require.NoError(t, WriteYOLO(out, filepath.Join(out, "obj.names"), data))

	enc, err := os.ReadFile(filepath.Join(out, "b.txt"))
	require.NoError(t, err)
	require.Equal(t, "1 0.250000 0.416667 0.250000 0.500000\n", string(enc))

	// The images are expected next to the annotation files.
	for _, name := range []string{"a.jpg", "b.jpg"} {
		raw, err := os.ReadFile(filepath.Join(images, name))
		require.NoError(t, err)
		writeTestFile(t, filepath.Join(out, name), string(raw))
	}

	again, err := FromYOLO(out, filepath.Join(out, "obj.names"))
	require.NoError(t, err)
	require.Equal(t, m.Stats().Boxes, again.Stats().Boxes)
	requireSameBoxes(t, m, again, 1e-3)
}

func TestToYOLOFillsCategoryGaps(t *testing.T) {
	m := NewMediator()
	m.Categories.Append("person", "", 1)
	m.Categories.Append("car", "", 3)

	data, err := ToYOLO(m)
	require.NoError(t, err)
	require.Equal(t, []string{"person", "unused_2", "car"}, data.Names)
}

func TestFromYOLOErrors(t *testing.T) {
	tests := []struct {
		name  string
		names string
		label string
	}{
		{name: "class index out of range", names: "cat\n", label: "1 0.5 0.5 0.1 0.1\n"},
		{name: "negative class index", names: "cat\n", label: "-1 0.5 0.5 0.1 0.1\n"},
		{name: "too few values", names: "cat\n", label: "0 0.5 0.5 0.1\n"},
		{name: "not a number", names: "cat\n", label: "0 0.5 half 0.1 0.1\n"},
		{name: "empty class name", names: "cat\n\ndog\n", label: "0 0.5 0.5 0.1 0.1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeTestFile(t, filepath.Join(dir, "obj.names"), tt.names)
			writeTestFile(t, filepath.Join(dir, "a.txt"), tt.label)
			writeTestImage(t, filepath.Join(dir, "a.jpg"), 8, 8)

			_, err := FromYOLO(dir, filepath.Join(dir, "obj.names"))
			var malformedErr *MalformedInputError
			require.True(t, errors.As(err, &malformedErr), "%v", err)
		})
	}
}
