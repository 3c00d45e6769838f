package detconv

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const cocoFixture = `{
  "info": {"year": 2017, "version": "2.0", "description": "fixture", "contributor": "tests",
           "url": "http://example.org", "date_created": "2017/09/01"},
  "licenses": [{"id": 4, "url": "http://example.org/license", "name": "Example"}],
  "categories": [
    {"id": 1, "name": "person", "supercategory": "human"},
    {"id": 3, "name": "car"}
  ],
  "images": [
    {"id": 10, "width": 640, "height": 480, "file_name": "a.jpg", "license": 4,
     "coco_url": "http://images.example.org/a.jpg", "date_captured": "2013-11-14 17:02:52"},
    {"id": 11, "width": 320, "height": 240, "file_name": "b.jpg"}
  ],
  "annotations": [
    {"id": 100, "image_id": 10, "category_id": 1, "bbox": [10.5, 20, 30, 40.25], "iscrowd": 0},
    {"id": 101, "image_id": 10, "category_id": 3, "bbox": [0, 0, 640, 480], "iscrowd": 1},
    {"id": 102, "image_id": 11, "category_id": 3, "bbox": [1, 2, 3, 4]}
  ]
}`

func TestFromCOCO(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coco.json")
	writeTestFile(t, path, cocoFixture)

	m, err := FromCOCO(path, "")
	require.NoError(t, err)

	require.Equal(t, 2017, m.Year)
	require.Equal(t, "2.0", m.Version)
	require.Equal(t, "2017/09/01", m.DateCreated)
	require.Equal(t, []License{{ID: 4, URL: "http://example.org/license", Name: "Example"}}, m.Licenses)
	require.Equal(t, Stats{Images: 2, Boxes: 3, Classes: 2, Supercategories: 2}, m.Stats())

	_, super, err := m.Categories.ResolveName(3)
	require.NoError(t, err)
	require.Equal(t, DefaultSupercategory, super)

	a, err := m.Images.Get(10)
	require.NoError(t, err)
	require.Equal(t, "a.jpg", a.Path)
	require.Equal(t, "a.jpg", a.FileName)
	require.Equal(t, "fixture", a.SourceName)
	require.Equal(t, "http://images.example.org/a.jpg", a.CocoURL)
	require.Empty(t, a.FlickrURL)
	require.Equal(t, 4, a.License)

	box, err := a.Boxes.Get(100)
	require.NoError(t, err)
	require.Equal(t, BoundingBox{ID: 100, CategoryID: 1, X: 10.5, Y: 20, Width: 30, Height: 40.25,
		Pose: DefaultPose}, box)
	crowd, err := a.Boxes.Get(101)
	require.NoError(t, err)
	require.Equal(t, 1, crowd.IsCrowd)

	b, err := m.Images.Get(11)
	require.NoError(t, err)
	require.Equal(t, 1, b.License)
}

func TestFromCOCOWithImageDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coco.json")
	writeTestFile(t, path, cocoFixture)

	m, err := FromCOCO(path, filepath.Join(dir, "images"))
	require.NoError(t, err)
	img, err := m.Images.Get(11)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "images", "b.jpg"), img.Path)
}

func TestCOCORoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.json")
	writeTestFile(t, in, cocoFixture)

	m, err := FromCOCO(in, "")
	require.NoError(t, err)
	coco, err := ToCOCO(m)
	require.NoError(t, err)
	out := filepath.Join(dir, "out", "out.json")
	require.NoError(t, WriteCOCO(out, coco))

	again, err := FromCOCO(out, "")
	require.NoError(t, err)
	requireSameBoxes(t, m, again, tolerance)
	require.Equal(t, m.Stats(), again.Stats())
	require.Equal(t, m.Licenses, again.Licenses)
	require.Equal(t, m.Description, again.Description)
}

func TestCOCOOmitsAbsentOptionalFields(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.json")
	writeTestFile(t, in, cocoFixture)

	m, err := FromCOCO(in, "")
	require.NoError(t, err)
	coco, err := ToCOCO(m)
	require.NoError(t, err)
	out := filepath.Join(dir, "out.json")
	require.NoError(t, WriteCOCO(out, coco))

	enc, err := os.ReadFile(out)
	require.NoError(t, err)
	var raw struct {
		Images      []map[string]interface{} `json:"images"`
		Annotations []map[string]interface{} `json:"annotations"`
	}
	require.NoError(t, json.Unmarshal(enc, &raw))
	require.Len(t, raw.Images, 2)

	require.NotContains(t, raw.Images[0], "flickr_url")
	require.Contains(t, raw.Images[0], "coco_url")
	require.Contains(t, raw.Images[0], "date_captured")
	for _, key := range []string{"flickr_url", "coco_url", "date_captured"} {
		require.NotContains(t, raw.Images[1], key)
	}

	require.Equal(t, []interface{}{0.0, 0.0, 0.0}, raw.Annotations[0]["segmentation"])
	require.Equal(t, 0.0, raw.Annotations[0]["area"])
}

func TestFromCOCOErrors(t *testing.T) {
	tests := []struct {
		name   string
		json   string
		target interface{}
		field  string
	}{
		{
			name:   "missing images",
			json:   `{"categories": []}`,
			target: new(*MalformedInputError),
			field:  "images",
		},
		{
			name:   "image without file name",
			json:   `{"categories": [], "images": [{"id": 1, "width": 1, "height": 1}]}`,
			target: new(*MalformedInputError),
			field:  "images[0].file_name",
		},
		{
			name:   "annotation without bbox",
			json:   `{"categories": [{"id": 1, "name": "a"}], "images": [{"id": 1, "width": 1, "height": 1, "file_name": "a.jpg"}], "annotations": [{"id": 1, "image_id": 1, "category_id": 1}]}`,
			target: new(*MalformedInputError),
			field:  "annotations[0].bbox",
		},
		{
			name:   "unknown category",
			json:   `{"categories": [{"id": 1, "name": "a"}], "images": [{"id": 1, "width": 1, "height": 1, "file_name": "a.jpg"}], "annotations": [{"id": 1, "image_id": 1, "category_id": 2, "bbox": [0, 0, 1, 1]}]}`,
			target: new(*NotFoundError),
		},
		{
			name:   "unknown image",
			json:   `{"categories": [{"id": 1, "name": "a"}], "images": [], "annotations": [{"id": 1, "image_id": 9, "category_id": 1, "bbox": [0, 0, 1, 1]}]}`,
			target: new(*NotFoundError),
		},
		{
			name:   "not json",
			json:   `{"images": [`,
			target: new(*MalformedInputError),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "coco.json")
			writeTestFile(t, path, tt.json)

			_, err := FromCOCO(path, "")
			require.Error(t, err)
			require.True(t, errors.As(err, tt.target), "%T", err)
			if tt.field != "" {
				require.Equal(t, tt.field, (*tt.target.(**MalformedInputError)).Field)
			}
		})
	}
}

func TestToCOCORejectsUnknownCategory(t *testing.T) {
	m := NewMediator()
	img, err := m.Images.Append(Image{FileName: "a.jpg"}, false)
	require.NoError(t, err)
	require.NoError(t, img.Boxes.Append(BoundingBox{ID: 1, CategoryID: 5}))

	_, err = ToCOCO(m)
	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
}
