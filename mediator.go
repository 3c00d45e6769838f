package detconv

// The format-neutral representation of an annotated object detection dataset.

import (
	"log/slog"
	"time"
)

// Defaults for dataset metadata not recorded by the source format.
const (
	DefaultVersion     = "1.0"
	DefaultDescription = "No information"
	DefaultContributor = "No information"
	DefaultURL         = "http://unknown.org"
)

// now is replaced in tests.
var now = time.Now

// License is a dataset license entry.
type License struct {
	ID   int
	URL  string
	Name string
}

// PublicDomain is the license of datasets that do not declare one.
var PublicDomain = License{
	ID:   1,
	URL:  "https://creativecommons.org/publicdomain/zero/1.0/",
	Name: "Public Domain",
}

// Mediator holds one dataset: its metadata, the category registry and the annotated images. Readers
// produce a Mediator and writers consume one, so it is the only coupling between two formats.
type Mediator struct {
	Year        int
	Version     string
	Description string
	Contributor string
	URL         string
	DateCreated string // YYYY-MM-DD, or whatever the source recorded.
	Licenses    []License

	Categories *Categories
	Images     *Images
}

// NewMediator returns an empty dataset with default metadata.
func NewMediator() *Mediator {
	t := now()
	return &Mediator{
		Year:        t.Year(),
		Version:     DefaultVersion,
		Description: DefaultDescription,
		Contributor: DefaultContributor,
		URL:         DefaultURL,
		DateCreated: t.Format("2006-01-02"),
		Licenses:    []License{PublicDomain},
		Categories:  NewCategories(),
		Images:      NewImages(),
	}
}

// Stats summarises a dataset.
type Stats struct {
	Images          int
	Boxes           int
	Classes         int
	Supercategories int
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("images", s.Images),
		slog.Int("boxes", s.Boxes),
		slog.Int("classes", s.Classes),
		slog.Int("supercategories", s.Supercategories),
	)
}

// Stats counts the images, boxes, classes and super-categories.
func (m *Mediator) Stats() Stats {
	return Stats{
		Images:          m.Images.Len(),
		Boxes:           m.Images.NumBoxes(),
		Classes:         m.Categories.Len(),
		Supercategories: m.Categories.NumSupercategories(),
	}
}

// CategoryName returns the name of the category of box b.
func (m *Mediator) CategoryName(b BoundingBox) (string, error) {
	name, _, err := m.Categories.ResolveName(b.CategoryID)
	return name, err
}
