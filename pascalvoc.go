package detconv

// PascalVOC specific functionality.

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// PascalVOCObject is a single object of a PascalVOC annotation.
type PascalVOCObject struct {
	Name      string
	Pose      string
	Truncated int
	Difficult int
	Occluded  int
	XMin      int
	YMin      int
	XMax      int
	YMax      int
}

// PascalVOCAnnotation defines the PascalVOC annotation structure for a single image.
type PascalVOCAnnotation struct {
	Folder           string
	FileName         string
	Path             string
	Database         string
	SourceAnnotation string
	SourceImage      string
	Width            int
	Height           int
	Depth            int
	Segmented        int
	Objects          []PascalVOCObject
}

// FromPascalVOC reads and parses all PascalVOC annotation files (*.xml) in dirPath.
func FromPascalVOC(dirPath string) (*Mediator, error) {
	xmlFiles, err := filesByExtInDir(dirPath, ".xml")
	if err != nil {
		return nil, err
	}
	slog.Info("Loading PascalVOC annotations", "dir", dirPath, "files", len(xmlFiles))

	m := NewMediator()
	for _, xmlPath := range xmlFiles {
		if err := parsePascalVOCFile(m, xmlPath); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// vocReader extracts typed values from one PascalVOC document, recording the source for errors.
type vocReader struct {
	source string
}

func (r vocReader) text(e *etree.Element, path string) (string, bool) {
	c := e.FindElement(path)
	if c == nil {
		return "", false
	}
	return strings.TrimSpace(c.Text()), true
}

func (r vocReader) textOr(e *etree.Element, path, def string) string {
	if s, ok := r.text(e, path); ok && s != "" {
		return s
	}
	return def
}

func (r vocReader) number(e *etree.Element, path string) (float64, error) {
	s, ok := r.text(e, path)
	if !ok {
		return 0, missingField(r.source, path)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &MalformedInputError{Source: r.source, Field: path, Err: err}
	}
	return v, nil
}

func (r vocReader) integer(e *etree.Element, path string) (int, error) {
	v, err := r.number(e, path)
	return int(v), err
}

// integerOr is like integer, but returns def if the element is absent.
func (r vocReader) integerOr(e *etree.Element, path string, def int) (int, error) {
	if _, ok := r.text(e, path); !ok {
		return def, nil
	}
	return r.integer(e, path)
}

// parsePascalVOCFile adds the image described by the file at xmlPath to m.
func parsePascalVOCFile(m *Mediator, xmlPath string) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(xmlPath); err != nil {
		return &MalformedInputError{Source: xmlPath, Err: err}
	}
	root := doc.Root()
	if root == nil || root.Tag != "annotation" {
		return malformed(xmlPath, "annotation", "missing root element")
	}
	r := vocReader{source: xmlPath}

	img := Image{
		SourceName:       r.textOr(root, "source/database", UnknownSource),
		SourceAnnotation: r.textOr(root, "source/annotation", UnknownSource),
		SourceImage:      r.textOr(root, "source/image", UnknownSource),
	}
	var err error
	if img.Width, err = r.integer(root, "size/width"); err != nil {
		return err
	}
	if img.Height, err = r.integer(root, "size/height"); err != nil {
		return err
	}
	if img.Depth, err = r.integer(root, "size/depth"); err != nil {
		return err
	}
	if img.Segmented, err = r.integerOr(root, "segmented", 0); err != nil {
		return err
	}

	// The image path, relative paths being relative to the annotation file.
	if p, ok := r.text(root, "path"); ok && p != "" {
		if !filepath.IsAbs(p) {
			p = filepath.Join(filepath.Dir(xmlPath), p)
		}
		img.Path = p
	} else {
		img.Path = strings.TrimSuffix(xmlPath, ".xml") + ".jpg"
	}

	for i, obj := range root.SelectElements("object") {
		where := func(name string) string { return fmt.Sprintf("object[%d]/%s", i, name) }

		name, ok := r.text(obj, "name")
		if !ok || name == "" {
			return missingField(xmlPath, where("name"))
		}
		var coords [4]float64
		for j, tag := range []string{"bndbox/xmin", "bndbox/ymin", "bndbox/xmax", "bndbox/ymax"} {
			if coords[j], err = r.number(obj, tag); err != nil {
				return fmt.Errorf("%s: %w", where("bndbox"), err)
			}
		}
		b := BoundingBox{Pose: r.textOr(obj, "pose", DefaultPose)}
		b.X, b.Y, b.Width, b.Height = boxFromCorners(coords[0], coords[1], coords[2], coords[3])
		for _, flag := range []struct {
			tag string
			dst *int
		}{{"truncated", &b.Truncated}, {"occluded", &b.Occluded}, {"difficult", &b.Difficult}} {
			if *flag.dst, err = r.integerOr(obj, flag.tag, 0); err != nil {
				return err
			}
		}

		m.Categories.Append(name, "", 0)
		if b.CategoryID, err = m.Categories.ResolveID(name, ""); err != nil {
			return err
		}
		b.ID = m.Images.NextBoxID()

		if img.Boxes == nil {
			img.Boxes = NewBoxes()
		}
		if err := img.Boxes.Append(b); err != nil {
			return &MalformedInputError{Source: xmlPath, Field: where("bndbox"), Err: err}
		}
	}

	if _, err := m.Images.Append(img, true); err != nil {
		return fmt.Errorf("image of %q: %w", xmlPath, err)
	}
	return nil
}

// ToPascalVOC converts the dataset to the PascalVOC format, one annotation per image.
func ToPascalVOC(m *Mediator) ([]PascalVOCAnnotation, error) {
	data := make([]PascalVOCAnnotation, 0, m.Images.Len())
	for _, img := range m.Images.All() {
		ann := PascalVOCAnnotation{
			Folder:           img.Folder,
			FileName:         img.FileName,
			Path:             img.Path,
			Database:         img.SourceName,
			SourceAnnotation: img.SourceAnnotation,
			SourceImage:      img.SourceImage,
			Width:            img.Width,
			Height:           img.Height,
			Depth:            img.Depth,
			Segmented:        img.Segmented,
			Objects:          make([]PascalVOCObject, 0, img.Boxes.Len()),
		}
		if ann.FileName == "" {
			ann.FileName = filepath.Base(img.Path)
		}

		for _, b := range img.Boxes.All() {
			name, err := m.CategoryName(b)
			if err != nil {
				return nil, fmt.Errorf("box %d of image %q: %w", b.ID, ann.FileName, err)
			}
			obj := PascalVOCObject{
				Name:      name,
				Pose:      b.Pose,
				Truncated: b.Truncated,
				Difficult: b.Difficult,
				Occluded:  b.Occluded,
			}
			obj.XMin, obj.YMin, obj.XMax, obj.YMax = cornersFromBox(b)
			ann.Objects = append(ann.Objects, obj)
		}
		data = append(data, ann)
	}

	return data, nil
}

// WritePascalVOC writes data to dirPath, one XML file per image named after the image file.
func WritePascalVOC(dirPath string, data []PascalVOCAnnotation) error {
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return fmt.Errorf("cannot create directory %q: %w", dirPath, err)
	}

	for _, ann := range data {
		name := filepath.Base(ann.FileName)
		if ann.FileName == "" || name == "." {
			return fmt.Errorf("cannot name the annotation file for image %q", ann.Path)
		}
		xmlPath := filepath.Join(dirPath, strings.TrimSuffix(name, filepath.Ext(name))+".xml")

		doc := ann.document()
		doc.IndentTabs()
		if err := doc.WriteToFile(xmlPath); err != nil {
			return fmt.Errorf("cannot write file %q: %w", xmlPath, err)
		}
	}
	slog.Info("Created PascalVOC annotation files", "dir", dirPath, "files", len(data))

	return nil
}

// document builds the XML document of a.
func (a PascalVOCAnnotation) document() *etree.Document {
	doc := etree.NewDocument()
	root := doc.CreateElement("annotation")
	addText := func(parent *etree.Element, tag, text string) {
		parent.CreateElement(tag).SetText(text)
	}
	addInt := func(parent *etree.Element, tag string, v int) {
		addText(parent, tag, strconv.Itoa(v))
	}

	for _, e := range []struct{ tag, text string }{
		{"folder", a.Folder}, {"filename", a.FileName}, {"path", a.Path},
	} {
		if e.text != "" {
			addText(root, e.tag, e.text)
		}
	}

	source := root.CreateElement("source")
	addText(source, "database", a.Database)
	if a.SourceAnnotation != UnknownSource && a.SourceAnnotation != "" {
		addText(source, "annotation", a.SourceAnnotation)
	}
	if a.SourceImage != UnknownSource && a.SourceImage != "" {
		addText(source, "image", a.SourceImage)
	}

	size := root.CreateElement("size")
	addInt(size, "width", a.Width)
	addInt(size, "height", a.Height)
	addInt(size, "depth", a.Depth)
	addInt(root, "segmented", a.Segmented)

	for _, o := range a.Objects {
		obj := root.CreateElement("object")
		addText(obj, "name", o.Name)
		addText(obj, "pose", o.Pose)
		addInt(obj, "truncated", o.Truncated)
		addInt(obj, "difficult", o.Difficult)
		if o.Occluded != 0 {
			addInt(obj, "occluded", o.Occluded)
		}
		bndbox := obj.CreateElement("bndbox")
		addInt(bndbox, "xmin", o.XMin)
		addInt(bndbox, "ymin", o.YMin)
		addInt(bndbox, "xmax", o.XMax)
		addInt(bndbox, "ymax", o.YMax)
	}

	return doc
}
