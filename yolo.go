package detconv

// YOLO specific functionality.

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// yoloImageExt is the extension of the images paired with YOLO annotation files.
const yoloImageExt = ".jpg"

// YOLOAnnotation is a single object: the zero-based class index and the box center and extents,
// normalised by the image size.
type YOLOAnnotation struct {
	ClassIndex int
	CenterX    float64
	CenterY    float64
	Width      float64
	Height     float64
}

// YOLOAnnotatedFile holds the annotations of one image.
type YOLOAnnotatedFile struct {
	Annotations []YOLOAnnotation
	FilePath    string // The image path.
}

// YOLOData is a YOLO dataset: the class names, where line i names class index i, and the per image
// annotations.
type YOLOData struct {
	Names []string
	Files []YOLOAnnotatedFile
}

// FromYOLO reads the class names from namesPath and the annotation files (*.txt) in dirPath, each
// paired with the image (*.jpg) of the same base name in the same directory.
func FromYOLO(dirPath, namesPath string) (*Mediator, error) {
	m := NewMediator()

	// The registry is built before any box is read, as boxes only carry a class index.
	names, err := readYOLONames(namesPath)
	if err != nil {
		return nil, err
	}
	for i, name := range names {
		m.Categories.Append(name, "", i+1)
	}

	pairs, err := pairFilesByName(dirPath, ".txt", yoloImageExt)
	if err != nil {
		return nil, err
	}
	slog.Info("Loading YOLO annotations", "dir", dirPath, "files", len(pairs),
		"classes", len(names))

	for _, pair := range pairs {
		hdr, err := decodeImageConfig(pair.imagePath)
		if err != nil {
			return nil, err
		}
		img := Image{
			Path:   pair.imagePath,
			Width:  hdr.Width,
			Height: hdr.Height,
			Depth:  hdr.Depth,
			Boxes:  NewBoxes(),
		}

		annotations, err := readYOLOAnnotations(pair.labelPath, len(names))
		if err != nil {
			return nil, err
		}
		for _, a := range annotations {
			b := BoundingBox{ID: m.Images.NextBoxID(), CategoryID: a.ClassIndex + 1}
			b.X, b.Y, b.Width, b.Height = boxFromCenter(a.CenterX, a.CenterY, a.Width, a.Height,
				img.Width, img.Height)
			if err := img.Boxes.Append(b); err != nil {
				return nil, &MalformedInputError{Source: pair.labelPath, Err: err}
			}
		}

		if _, err := m.Images.Append(img, true); err != nil {
			return nil, fmt.Errorf("image %q: %w", pair.imagePath, err)
		}
	}

	return m, nil
}

// readYOLONames returns the class names in the file at path. Trailing blank lines are ignored.
func readYOLONames(path string) ([]string, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	names := make([]string, len(lines))
	for i, line := range lines {
		names[i] = strings.TrimSpace(line)
		if names[i] == "" {
			return nil, malformed(path, "", "empty class name on line %d", i+1)
		}
	}
	return names, nil
}

// readYOLOAnnotations parses the annotation file at path. Class indices must be below numClasses.
func readYOLOAnnotations(path string, numClasses int) ([]YOLOAnnotation, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	annotations := make([]YOLOAnnotation, 0, len(lines))
	for i, line := range lines {
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			continue
		}
		a, err := parseYOLOLine(tokens)
		if err != nil {
			return nil, malformed(path, "line "+strconv.Itoa(i+1), "%v", err)
		}
		if a.ClassIndex < 0 || a.ClassIndex >= numClasses {
			return nil, malformed(path, "line "+strconv.Itoa(i+1),
				"class index %d is outside of the %d names", a.ClassIndex, numClasses)
		}
		annotations = append(annotations, a)
	}

	return annotations, nil
}

// parseYOLOLine parses the tokens of a single annotation line.
func parseYOLOLine(tokens []string) (YOLOAnnotation, error) {
	var a YOLOAnnotation
	if len(tokens) < 5 {
		return a, fmt.Errorf("insufficient tokens in %q", strings.Join(tokens, " "))
	}

	var err error
	if a.ClassIndex, err = strconv.Atoi(tokens[0]); err != nil {
		return a, fmt.Errorf("unexpected class index %q: %w", tokens[0], err)
	}
	values := []*float64{&a.CenterX, &a.CenterY, &a.Width, &a.Height}
	for i, v := range values {
		if *v, err = strconv.ParseFloat(tokens[i+1], 64); err != nil {
			return a, fmt.Errorf("unexpected values in %q: %w", strings.Join(tokens, " "), err)
		}
	}

	return a, nil
}

// ToYOLO converts the dataset to the YOLO format. Class index i is the category with ID i+1; IDs
// missing from the registry are named with a placeholder so that indices stay aligned.
func ToYOLO(m *Mediator) (*YOLOData, error) {
	data := &YOLOData{
		Names: make([]string, m.Categories.MaxID()),
		Files: make([]YOLOAnnotatedFile, 0, m.Images.Len()),
	}
	for i := range data.Names {
		name, _, err := m.Categories.ResolveName(i + 1)
		if err != nil {
			name = "unused_" + strconv.Itoa(i+1)
		}
		data.Names[i] = name
	}

	for _, img := range m.Images.All() {
		path := img.Path
		if path == "" {
			path = img.FileName
		}
		fileData := YOLOAnnotatedFile{
			Annotations: make([]YOLOAnnotation, 0, img.Boxes.Len()),
			FilePath:    path,
		}
		for _, b := range img.Boxes.All() {
			if _, err := m.Categories.Get(b.CategoryID); err != nil {
				return nil, fmt.Errorf("box %d of image %q: %w", b.ID, path, err)
			}
			a := YOLOAnnotation{ClassIndex: b.CategoryID - 1}
			var err error
			a.CenterX, a.CenterY, a.Width, a.Height, err = centerFromBox(b, img.Width, img.Height)
			if err != nil {
				return nil, malformed(path, "size", "%v", err)
			}
			fileData.Annotations = append(fileData.Annotations, a)
		}
		data.Files = append(data.Files, fileData)
	}

	return data, nil
}

// WriteYOLO writes the class names to namesPath and the annotations to dirPath, one file per image
// named after the image file.
func WriteYOLO(dirPath, namesPath string, data *YOLOData) error {
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return fmt.Errorf("cannot create directory %q: %w", dirPath, err)
	}

	err := writeFileAtomic(namesPath, func(w io.Writer) error {
		for _, name := range data.Names {
			if _, err := fmt.Fprintln(w, name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cannot write file %q: %w", namesPath, err)
	}
	slog.Info("Created YOLO names file", "path", namesPath, "classes", len(data.Names))

	for _, fileData := range data.Files {
		// Use the image file name with .txt extension as annotation file name.
		_, baseNoExt, _, err := splitPath(fileData.FilePath)
		if err != nil {
			return err
		}
		if err := writeYOLOFile(filepath.Join(dirPath, baseNoExt+".txt"), fileData); err != nil {
			return err
		}
	}
	slog.Info("Created YOLO annotation files", "dir", dirPath, "files", len(data.Files))

	return nil
}

func writeYOLOFile(path string, fileData YOLOAnnotatedFile) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer closeWithErrCheck(file, &err)

	for _, a := range fileData.Annotations {
		_, err = fmt.Fprintf(file, "%d %.6f %.6f %.6f %.6f\n",
			a.ClassIndex, a.CenterX, a.CenterY, a.Width, a.Height)
		if err != nil {
			return err
		}
	}
	return nil
}
