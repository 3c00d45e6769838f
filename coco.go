package detconv

// COCO specific functionality.

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// COCOFile is the top-level structure of a COCO object detection annotation file.
type COCOFile struct {
	Info        *COCOInfo        `json:"info,omitempty"`
	Licenses    []COCOLicense    `json:"licenses,omitempty"`
	Categories  []COCOCategory   `json:"categories"`
	Images      []COCOImage      `json:"images"`
	Annotations []COCOAnnotation `json:"annotations"`
}

// COCOInfo describes the dataset. All fields are optional when reading.
type COCOInfo struct {
	Year        *int    `json:"year,omitempty"`
	Version     *string `json:"version,omitempty"`
	Description *string `json:"description,omitempty"`
	Contributor *string `json:"contributor,omitempty"`
	URL         *string `json:"url,omitempty"`
	DateCreated *string `json:"date_created,omitempty"`
}

// COCOLicense is a license entry.
type COCOLicense struct {
	ID   int    `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

// COCOCategory is an object class. ID and Name are required.
type COCOCategory struct {
	ID            *int    `json:"id"`
	Name          *string `json:"name"`
	Supercategory string  `json:"supercategory,omitempty"`
}

// COCOImage is an image entry. ID, Width, Height and FileName are required.
type COCOImage struct {
	ID           *int    `json:"id"`
	Width        *int    `json:"width"`
	Height       *int    `json:"height"`
	FileName     *string `json:"file_name"`
	License      *int    `json:"license,omitempty"`
	DateCaptured *string `json:"date_captured,omitempty"`
	FlickrURL    *string `json:"flickr_url,omitempty"`
	CocoURL      *string `json:"coco_url,omitempty"`
}

// COCOAnnotation is a single object. ID, ImageID, CategoryID and BBox are required.
type COCOAnnotation struct {
	ID           *int      `json:"id"`
	ImageID      *int      `json:"image_id"`
	CategoryID   *int      `json:"category_id"`
	BBox         []float64 `json:"bbox"`
	IsCrowd      int       `json:"iscrowd"`
	Segmentation []float64 `json:"segmentation"`
	Area         float64   `json:"area"`
}

// ptr returns a pointer to a copy of v.
func ptr[T any](v T) *T {
	return &v
}

// optional returns a pointer to s, or nil if s is empty.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// deref returns *p, or def if p is nil.
func deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// field records whether a required JSON key was present.
type field struct {
	name    string
	present bool
}

// requireFields returns a MalformedInputError for the first field that is not present.
func requireFields(source, prefix string, fields ...field) error {
	for _, f := range fields {
		if !f.present {
			return missingField(source, prefix+"."+f.name)
		}
	}
	return nil
}

// FromCOCO reads and parses the COCO annotation file at path.
//
// If imageDir is not empty, image paths are resolved against it. Otherwise the file name is used as
// the path, unchanged.
func FromCOCO(path, imageDir string) (*Mediator, error) {
	enc, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var coco COCOFile
	if err := json.Unmarshal(enc, &coco); err != nil {
		return nil, &MalformedInputError{Source: path, Err: err}
	}
	if coco.Images == nil {
		return nil, missingField(path, "images")
	}
	if coco.Categories == nil {
		return nil, missingField(path, "categories")
	}

	m := NewMediator()
	if info := coco.Info; info != nil {
		m.Year = deref(info.Year, m.Year)
		m.Version = deref(info.Version, m.Version)
		m.Description = deref(info.Description, m.Description)
		m.Contributor = deref(info.Contributor, m.Contributor)
		m.URL = deref(info.URL, m.URL)
		m.DateCreated = deref(info.DateCreated, m.DateCreated)
	}
	if len(coco.Licenses) > 0 {
		m.Licenses = make([]License, len(coco.Licenses))
		for i, l := range coco.Licenses {
			m.Licenses[i] = License{ID: l.ID, URL: l.URL, Name: l.Name}
		}
	}

	// Categories.
	for i, c := range coco.Categories {
		err := requireFields(path, fmt.Sprintf("categories[%d]", i),
			field{"id", c.ID != nil}, field{"name", c.Name != nil})
		if err != nil {
			return nil, err
		}
		m.Categories.Append(*c.Name, c.Supercategory, *c.ID)
	}

	// Images.
	slog.Info("Loading COCO image information", "path", path, "images", len(coco.Images))
	var sourceName string
	if coco.Info != nil {
		sourceName = deref(coco.Info.Description, "")
	}
	for i, ci := range coco.Images {
		err := requireFields(path, fmt.Sprintf("images[%d]", i),
			field{"id", ci.ID != nil}, field{"width", ci.Width != nil},
			field{"height", ci.Height != nil}, field{"file_name", ci.FileName != nil})
		if err != nil {
			return nil, err
		}

		img := Image{
			ID:           *ci.ID,
			Width:        *ci.Width,
			Height:       *ci.Height,
			Depth:        3,
			FileName:     *ci.FileName,
			License:      deref(ci.License, 1),
			SourceName:   sourceName,
			DateCaptured: deref(ci.DateCaptured, ""),
			FlickrURL:    deref(ci.FlickrURL, ""),
			CocoURL:      deref(ci.CocoURL, ""),
		}
		handlePath := imageDir != ""
		if handlePath {
			img.Folder = imageDir
		} else {
			img.Path = *ci.FileName
		}
		if _, err := m.Images.Append(img, handlePath); err != nil {
			return nil, fmt.Errorf("image %q: %w", *ci.FileName, err)
		}
	}

	// Annotations.
	slog.Info("Loading COCO annotations", "path", path, "annotations", len(coco.Annotations))
	for i, a := range coco.Annotations {
		err := requireFields(path, fmt.Sprintf("annotations[%d]", i),
			field{"id", a.ID != nil}, field{"image_id", a.ImageID != nil},
			field{"category_id", a.CategoryID != nil}, field{"bbox", a.BBox != nil})
		if err != nil {
			return nil, err
		}
		if len(a.BBox) != 4 {
			return nil, malformed(path, fmt.Sprintf("annotations[%d].bbox", i),
				"expected 4 values, got %d", len(a.BBox))
		}
		if _, err := m.Categories.Get(*a.CategoryID); err != nil {
			return nil, fmt.Errorf("annotation %d: %w", *a.ID, err)
		}
		img, err := m.Images.Get(*a.ImageID)
		if err != nil {
			return nil, fmt.Errorf("annotation %d: %w", *a.ID, err)
		}

		err = img.Boxes.Append(BoundingBox{
			ID:         *a.ID,
			CategoryID: *a.CategoryID,
			X:          a.BBox[0],
			Y:          a.BBox[1],
			Width:      a.BBox[2],
			Height:     a.BBox[3],
			IsCrowd:    a.IsCrowd,
		})
		if err != nil {
			return nil, &MalformedInputError{Source: path, Field: fmt.Sprintf("annotations[%d]", i),
				Err: err}
		}
	}

	return m, nil
}

// ToCOCO converts the dataset to the COCO format.
func ToCOCO(m *Mediator) (*COCOFile, error) {
	coco := &COCOFile{
		Info: &COCOInfo{
			Year:        ptr(m.Year),
			Version:     ptr(m.Version),
			Description: ptr(m.Description),
			Contributor: ptr(m.Contributor),
			URL:         ptr(m.URL),
			DateCreated: ptr(m.DateCreated),
		},
		Licenses:    make([]COCOLicense, len(m.Licenses)),
		Categories:  make([]COCOCategory, 0, m.Categories.Len()),
		Images:      make([]COCOImage, 0, m.Images.Len()),
		Annotations: make([]COCOAnnotation, 0, m.Images.NumBoxes()),
	}
	for i, l := range m.Licenses {
		coco.Licenses[i] = COCOLicense{ID: l.ID, URL: l.URL, Name: l.Name}
	}
	for _, c := range m.Categories.All() {
		coco.Categories = append(coco.Categories, COCOCategory{
			ID:            ptr(c.ID),
			Name:          ptr(c.Name),
			Supercategory: c.Supercategory,
		})
	}

	for _, img := range m.Images.All() {
		coco.Images = append(coco.Images, COCOImage{
			ID:           ptr(img.ID),
			Width:        ptr(img.Width),
			Height:       ptr(img.Height),
			FileName:     ptr(img.FileName),
			License:      ptr(img.License),
			DateCaptured: optional(img.DateCaptured),
			FlickrURL:    optional(img.FlickrURL),
			CocoURL:      optional(img.CocoURL),
		})

		for _, b := range img.Boxes.All() {
			if _, err := m.Categories.Get(b.CategoryID); err != nil {
				return nil, fmt.Errorf("box %d of image %q: %w", b.ID, img.FileName, err)
			}
			coco.Annotations = append(coco.Annotations, COCOAnnotation{
				ID:           ptr(b.ID),
				ImageID:      ptr(img.ID),
				CategoryID:   ptr(b.CategoryID),
				BBox:         []float64{b.X, b.Y, b.Width, b.Height},
				IsCrowd:      b.IsCrowd,
				Segmentation: []float64{0, 0, 0},
				Area:         0,
			})
		}
	}

	return coco, nil
}

// WriteCOCO writes the COCO annotations to outFile. Nothing is written if an error occurs.
func WriteCOCO(outFile string, coco *COCOFile) error {
	err := writeFileAtomic(outFile, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(coco)
	})
	if err != nil {
		return fmt.Errorf("cannot write file %q: %w", outFile, err)
	}
	slog.Info("Created COCO annotation file", "path", outFile)
	return nil
}
