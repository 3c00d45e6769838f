package detconv

import (
	"path/filepath"
	"strconv"
	"strings"
)

// UnknownSource is the provenance value used when a source format records none.
const UnknownSource = "Unknown"

// Image is the metadata of one annotated image. Empty strings denote absent optional fields.
type Image struct {
	ID     int
	Width  int
	Height int
	Depth  int

	Path     string // The image file path.
	Folder   string // The name of the directory containing the image.
	FileName string // The base name of the image file.

	License          int
	SourceName       string
	SourceImage      string
	SourceAnnotation string

	DateCaptured string
	FlickrURL    string
	CocoURL      string

	Segmented int
	Boxes     *Boxes
}

// Images is the ordered collection of the images in a dataset.
//
// It also owns the counters for box and sub-box IDs, for formats without native box numbering.
type Images struct {
	list        []*Image
	byID        map[int][]int
	numBoxes    int
	numSubBoxes int
}

// NewImages returns an empty collection.
func NewImages() *Images {
	return &Images{byID: make(map[int][]int)}
}

// Append stores a copy of img and returns it.
//
// Defaults: ID is the collection size after appending when zero, License is 1 when zero and the
// provenance strings are UnknownSource when empty. A nil Boxes becomes an empty collection.
//
// If handlePath is true, exactly one of these input shapes is expected and completed:
//   - Path only: Path is made absolute, Folder and FileName are derived from it.
//   - Folder and FileName: Path is the absolute join of both.
//   - FileName only: Path is FileName made absolute.
func (c *Images) Append(img Image, handlePath bool) (*Image, error) {
	if img.ID == 0 {
		img.ID = len(c.list) + 1
	}
	if img.License == 0 {
		img.License = 1
	}
	for _, s := range []*string{&img.SourceName, &img.SourceImage, &img.SourceAnnotation} {
		if *s == "" {
			*s = UnknownSource
		}
	}
	if img.Boxes == nil {
		img.Boxes = NewBoxes()
	}

	if handlePath {
		if err := reconstructPath(&img); err != nil {
			return nil, err
		}
	}

	c.list = append(c.list, &img)
	c.byID[img.ID] = append(c.byID[img.ID], len(c.list)-1)
	return &img, nil
}

// reconstructPath completes the path fields of img from whichever of them are set.
func reconstructPath(img *Image) error {
	var err error
	switch {
	case img.Path != "" && img.FileName == "" && img.Folder == "":
		if img.Path, err = filepath.Abs(img.Path); err != nil {
			return err
		}
		img.Folder = filepath.Base(filepath.Dir(img.Path))
		img.FileName = filepath.Base(img.Path)
	case img.Path == "" && img.FileName != "" && img.Folder != "":
		img.Path, err = filepath.Abs(filepath.Join(img.Folder, img.FileName))
	case img.Path == "" && img.FileName != "" && img.Folder == "":
		img.Path, err = filepath.Abs(img.FileName)
	}
	return err
}

// Get returns the image with the given ID.
func (c *Images) Get(id int) (*Image, error) {
	i, err := c.Index(id)
	if err != nil {
		return nil, err
	}
	return c.list[i], nil
}

// Index returns the position of the image with the given ID.
func (c *Images) Index(id int) (int, error) {
	match := c.byID[id]
	switch len(match) {
	case 0:
		return -1, &NotFoundError{What: "image", Key: "ID " + strconv.Itoa(id)}
	case 1:
		return match[0], nil
	default:
		return -1, &AmbiguousError{What: "image", Key: "ID " + strconv.Itoa(id), Count: len(match)}
	}
}

// NextBoxID returns a new box ID, unique within this collection.
func (c *Images) NextBoxID() int {
	c.numBoxes++
	return c.numBoxes
}

// NextSubBoxID returns a new sub-box ID, unique within this collection.
func (c *Images) NextSubBoxID() int {
	c.numSubBoxes++
	return c.numSubBoxes
}

// ImageFormat returns the file extension (without the dot) of the image with the given ID, taken
// from its path or, if that is empty, its file name.
func (c *Images) ImageFormat(id int) (string, error) {
	img, err := c.Get(id)
	if err != nil {
		return "", err
	}

	name := img.Path
	if name == "" {
		name = img.FileName
	}
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return "", malformed(name, "path", "missing file extension")
	}
	return ext, nil
}

// Len returns the number of images.
func (c *Images) Len() int {
	return len(c.list)
}

// All returns the images in insertion order. The slice must not be modified.
func (c *Images) All() []*Image {
	return c.list
}

// NumBoxes returns the total number of boxes over all images.
func (c *Images) NumBoxes() int {
	n := 0
	for _, img := range c.list {
		n += img.Boxes.Len()
	}
	return n
}
