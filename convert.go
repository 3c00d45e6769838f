package detconv

import (
	"fmt"
	"log/slog"
	"strings"
)

// Format is an annotation format.
type Format int

// The supported annotation formats.
const (
	Unknown Format = iota
	COCO
	PascalVOC
	YOLO
	TFRecord
)

func (f Format) String() string {
	switch f {
	case COCO:
		return "coco"
	case PascalVOC:
		return "pascalvoc"
	case YOLO:
		return "yolo"
	case TFRecord:
		return "tfrecord"
	}
	return "unknown"
}

// ParseFormat returns the format named s (case insensitive).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "coco":
		return COCO, nil
	case "pascalvoc", "voc":
		return PascalVOC, nil
	case "yolo":
		return YOLO, nil
	case "tfrecord", "tfrecords":
		return TFRecord, nil
	}
	return Unknown, fmt.Errorf("unknown format %q", s)
}

// Location tells a reader or writer where the files of a dataset are.
type Location struct {
	// Path is the JSON file (COCO), the annotation directory (PascalVOC, YOLO) or the record file
	// (TFRecord).
	Path string
	// NamesPath is the class names file (YOLO) or the label map (TFRecord).
	NamesPath string
	// ImageDir is where COCO images are looked up, or where TFRecord images are saved when reading.
	ImageDir string
}

// WriteOptions control writing a dataset. Except for Prepare they only affect the TFRecord writer.
type WriteOptions struct {
	// Prepare is called by Convert with the dataset that was read, before it is written.
	Prepare func(m *Mediator)

	// Download enables fetching images that have no local file from their COCO or Flickr URL.
	Download bool
	// Fetcher downloads the images. A nil Fetcher uses an HTTPFetcher with DefaultHTTPTimeout.
	Fetcher ImageFetcher
	// Shards is the number of record files to distribute the examples over (one if not positive).
	Shards int
	// CustomiseFeatures may modify the feature map of each image before it is serialised.
	CustomiseFeatures func(img *Image, f TFFeatureMap)
}

func (l Location) require(f Format, names bool) error {
	if l.Path == "" {
		return fmt.Errorf("%v: missing path", f)
	}
	if names && l.NamesPath == "" {
		return fmt.Errorf("%v: missing names path", f)
	}
	return nil
}

// Read parses the dataset at loc in format f.
func Read(f Format, loc Location) (*Mediator, error) {
	needsNames := f == YOLO || f == TFRecord
	if err := loc.require(f, needsNames); err != nil {
		return nil, err
	}

	switch f {
	case COCO:
		return FromCOCO(loc.Path, loc.ImageDir)
	case PascalVOC:
		return FromPascalVOC(loc.Path)
	case YOLO:
		return FromYOLO(loc.Path, loc.NamesPath)
	case TFRecord:
		return FromTFRecord(loc.Path, loc.NamesPath, loc.ImageDir)
	}
	return nil, fmt.Errorf("cannot read format %v", f)
}

// Write writes m to loc in format f.
func Write(f Format, loc Location, m *Mediator, opts WriteOptions) error {
	needsNames := f == YOLO || f == TFRecord
	if err := loc.require(f, needsNames); err != nil {
		return err
	}

	switch f {
	case COCO:
		coco, err := ToCOCO(m)
		if err != nil {
			return err
		}
		return WriteCOCO(loc.Path, coco)
	case PascalVOC:
		voc, err := ToPascalVOC(m)
		if err != nil {
			return err
		}
		return WritePascalVOC(loc.Path, voc)
	case YOLO:
		yolo, err := ToYOLO(m)
		if err != nil {
			return err
		}
		return WriteYOLO(loc.Path, loc.NamesPath, yolo)
	case TFRecord:
		return WriteTFRecord(loc.Path, loc.NamesPath, m, opts)
	}
	return fmt.Errorf("cannot write format %v", f)
}

// Convert reads the dataset at src in format from and writes it to dst in format to. It returns the
// intermediate dataset.
func Convert(from Format, src Location, to Format, dst Location, opts WriteOptions) (*Mediator, error) {
	m, err := Read(from, src)
	if err != nil {
		return nil, fmt.Errorf("failed to read %v dataset: %w", from, err)
	}
	slog.Info("Read dataset", "format", from, "stats", m.Stats())

	if opts.Prepare != nil {
		opts.Prepare(m)
	}
	if err := Write(to, dst, m, opts); err != nil {
		return m, fmt.Errorf("failed to write %v dataset: %w", to, err)
	}
	slog.Info("Wrote dataset", "format", to, "path", dst.Path)
	return m, nil
}
