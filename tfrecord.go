package detconv

// TFRecord object detection specific functionality.

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/protobuf/proto"
	"github.com/ryszard/tfutils/go/example"
	"github.com/ryszard/tfutils/go/tfrecord"
	"github.com/ryszard/tfutils/proto/tensorflow/core/example" // package tensorflow

	"github.com/sensorable/detconv/protos"
)

// Feature names of the object detection API.
const (
	tfHeight    = "image/height"
	tfWidth     = "image/width"
	tfFilename  = "image/filename"
	tfSourceID  = "image/source_id"
	tfEncoded   = "image/encoded"
	tfFormat    = "image/format"
	tfXMin      = "image/object/bbox/xmin"
	tfXMax      = "image/object/bbox/xmax"
	tfYMin      = "image/object/bbox/ymin"
	tfYMax      = "image/object/bbox/ymax"
	tfClassText = "image/object/class/text"
	tfLabel     = "image/object/class/label"
	tfDifficult = "image/object/difficult"
	tfTruncated = "image/object/truncated"
	tfView      = "image/object/view"
)

// TFFeatureMap maps feature names to their values. Values must be convertible to
// tensorflow.Feature.
type TFFeatureMap map[string]interface{}

// newTFExample builds the example for the feature map, failing on values example.New cannot
// convert.
func newTFExample(fm TFFeatureMap) (e *tensorflow.Example, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("conversion to TensorFlow Example failed: %v", r)
		}
	}()
	return example.New(fm), nil
}

// tfFeatures gives typed access to the features of a decoded example. A feature of the wrong kind
// is reported as missing.
type tfFeatures map[string]*tensorflow.Feature

func (f tfFeatures) byteList(key string) ([][]byte, bool) {
	l := f[key].GetBytesList()
	if l == nil {
		return nil, false
	}
	return l.Value, true
}

func (f tfFeatures) stringList(key string) ([]string, bool) {
	bs, ok := f.byteList(key)
	if !ok {
		return nil, false
	}
	ss := make([]string, len(bs))
	for i, b := range bs {
		ss[i] = string(b)
	}
	return ss, true
}

// text returns the first value of the bytes list of key.
func (f tfFeatures) text(key string) (string, bool) {
	bs, ok := f.byteList(key)
	if !ok || len(bs) == 0 {
		return "", false
	}
	return string(bs[0]), true
}

func (f tfFeatures) floatList(key string) ([]float32, bool) {
	l := f[key].GetFloatList()
	if l == nil {
		return nil, false
	}
	return l.Value, true
}

func (f tfFeatures) int64List(key string) ([]int64, bool) {
	l := f[key].GetInt64List()
	if l == nil {
		return nil, false
	}
	return l.Value, true
}

// int64Value returns the first value of the int64 list of key.
func (f tfFeatures) int64Value(key string) (int64, bool) {
	vs, ok := f.int64List(key)
	if !ok || len(vs) == 0 {
		return 0, false
	}
	return vs[0], true
}

// fullReader turns short reads into complete ones, so that tfrecord.Read reports a record cut off
// by the end of the file instead of returning io.EOF.
type fullReader struct {
	r io.Reader
}

func (f fullReader) Read(p []byte) (int, error) {
	n, err := io.ReadFull(f.r, p)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

// FromTFRecord reads the label map at labelMapPath and the examples in the record file at
// recordPath. If there is no such file, the shards written for recordPath (recordPath-00000-of-00004
// etc.) are read instead.
//
// If imageDir is not empty, the encoded image of each example is saved there under its file name
// and the image path refers to that copy.
func FromTFRecord(recordPath, labelMapPath, imageDir string) (*Mediator, error) {
	m := NewMediator()

	items, err := protos.LoadLabelMap(labelMapPath)
	if err != nil {
		return nil, &MalformedInputError{Source: labelMapPath, Err: err}
	}
	for _, item := range items {
		m.Categories.Append(item.Name, "", int(item.ID))
	}

	paths, err := tfRecordFiles(recordPath)
	if err != nil {
		return nil, err
	}
	slog.Info("Loading TFRecord annotations", "path", recordPath, "shards", len(paths),
		"classes", len(items))
	for _, path := range paths {
		if err := readTFRecordFile(m, path, imageDir); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// tfRecordFiles returns recordPath if it exists, otherwise the shards written for it in name order.
func tfRecordFiles(recordPath string) ([]string, error) {
	if fileExists(recordPath) {
		return []string{recordPath}, nil
	}
	shards, err := filepath.Glob(recordPath + "-[0-9]*-of-[0-9]*")
	if err != nil {
		return nil, err
	}
	if len(shards) == 0 {
		return nil, fmt.Errorf("cannot read file %q: %w", recordPath, os.ErrNotExist)
	}
	sort.Strings(shards)
	return shards, nil
}

// readTFRecordFile adds the examples of the record file at path to m.
func readTFRecordFile(m *Mediator, path, imageDir string) (err error) {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer closeWithErrCheck(file, &err)

	r := bufio.NewReader(file)
	for i := 0; ; i++ {
		if _, err := r.Peek(1); err == io.EOF {
			return nil
		}
		rec, err := tfrecord.Read(fullReader{r})
		if err != nil {
			return &MalformedInputError{Source: path, Field: fmt.Sprintf("record %d", i), Err: err}
		}

		var e tensorflow.Example
		if err := proto.Unmarshal(rec, &e); err != nil {
			return &MalformedInputError{Source: path, Field: fmt.Sprintf("record %d", i), Err: err}
		}
		if err := fromTFExample(m, e.GetFeatures().GetFeature(), imageDir); err != nil {
			return fmt.Errorf("record %d of %q: %w", i, path, err)
		}
	}
}

// fromTFExample adds the image of one example to m.
func fromTFExample(m *Mediator, f tfFeatures, imageDir string) error {
	const source = "example"

	filename, ok := f.text(tfFilename)
	if !ok || filename == "" {
		if filename, ok = f.text(tfSourceID); !ok || filename == "" {
			return missingField(source, tfFilename)
		}
	}
	img := Image{Path: filename, Depth: 3}

	width, hasWidth := f.int64Value(tfWidth)
	height, hasHeight := f.int64Value(tfHeight)
	img.Width, img.Height = int(width), int(height)

	// The header of the encoded image supplies the depth and any missing size.
	encoded, hasEncoded := f.byteList(tfEncoded)
	if hasEncoded && len(encoded) > 0 && len(encoded[0]) > 0 {
		if hdr, err := decodeImageConfigBytes(encoded[0]); err == nil {
			img.Depth = hdr.Depth
			if !hasWidth {
				img.Width, hasWidth = hdr.Width, true
			}
			if !hasHeight {
				img.Height, hasHeight = hdr.Height, true
			}
		} else {
			slog.Debug("Cannot decode the image header", "file", filename, "err", err)
		}

		if imageDir != "" {
			img.Path = filepath.Join(imageDir, filepath.Base(filename))
			if err := saveImageBytes(img.Path, encoded[0]); err != nil {
				return err
			}
		}
	}
	if !hasWidth {
		return missingField(source, tfWidth)
	}
	if !hasHeight {
		return missingField(source, tfHeight)
	}

	// Boxes.
	var coords [4][]float32
	for i, key := range []string{tfXMin, tfXMax, tfYMin, tfYMax} {
		coords[i], _ = f.floatList(key)
	}
	n := len(coords[0])
	for i, key := range []string{tfXMax, tfYMin, tfYMax} {
		if len(coords[i+1]) != n {
			return malformed(source, key, "has %d values, expected %d", len(coords[i+1]), n)
		}
	}
	labels, hasLabels := f.int64List(tfLabel)
	texts, hasTexts := f.stringList(tfClassText)
	if hasLabels && len(labels) != n {
		return malformed(source, tfLabel, "has %d values, expected %d", len(labels), n)
	}
	if hasTexts && len(texts) != n {
		return malformed(source, tfClassText, "has %d values, expected %d", len(texts), n)
	}
	if n > 0 && !hasLabels && !hasTexts {
		return missingField(source, tfLabel)
	}
	difficult, _ := f.int64List(tfDifficult)
	truncated, _ := f.int64List(tfTruncated)
	views, _ := f.stringList(tfView)

	img.Boxes = NewBoxes()
	for i := 0; i < n; i++ {
		b := BoundingBox{ID: m.Images.NextBoxID()}
		b.X, b.Y, b.Width, b.Height = boxFromNormalizedCorners(float64(coords[0][i]),
			float64(coords[1][i]), float64(coords[2][i]), float64(coords[3][i]), img.Width, img.Height)
		if i < len(difficult) {
			b.Difficult = int(difficult[i])
		}
		if i < len(truncated) {
			b.Truncated = int(truncated[i])
		}
		if i < len(views) {
			b.Pose = views[i]
		}

		var text string
		if hasTexts {
			text = texts[i]
		}
		var err error
		if hasLabels {
			b.CategoryID, err = reconcileLabel(m.Categories, int(labels[i]), text)
		} else {
			m.Categories.Append(text, "", 0)
			b.CategoryID, err = m.Categories.ResolveID(text, "")
		}
		if err != nil {
			return fmt.Errorf("box %d of %q: %w", i, filename, err)
		}

		if err := img.Boxes.Append(b); err != nil {
			return &MalformedInputError{Source: filename, Field: "box " + fmt.Sprint(i), Err: err}
		}
	}

	if _, err := m.Images.Append(img, true); err != nil {
		return fmt.Errorf("image %q: %w", filename, err)
	}
	return nil
}

// reconcileLabel returns the category ID for a box with numeric label id and class text. A label
// missing from the label map is registered under the class text if there is one.
func reconcileLabel(c *Categories, id int, text string) (int, error) {
	_, err := c.Get(id)
	var notFound *NotFoundError
	if errors.As(err, &notFound) && text != "" {
		c.Append(text, "", id)
		_, err = c.Get(id)
	}
	return id, err
}

// toTFRecord converts the image to the feature map of a TFRecord example.
func toTFRecord(m *Mediator, img *Image, opts WriteOptions) (TFFeatureMap, error) {
	imgData, downloaded, err := loadImageBytes(img, opts)
	if err != nil {
		return nil, err
	}

	width, height := img.Width, img.Height
	if width <= 0 || height <= 0 {
		hdr, err := decodeImageConfigBytes(imgData)
		if err != nil {
			return nil, fmt.Errorf("failed to decode the image metadata of %q: %w", img.FileName, err)
		}
		width, height = hdr.Width, hdr.Height
	}

	format := "jpeg"
	if !downloaded {
		if format, err = m.Images.ImageFormat(img.ID); err != nil {
			return nil, err
		}
		format = strings.ToLower(format)
	}
	filename := img.FileName
	if filename == "" {
		filename = filepath.Base(img.Path)
	}

	// Prepare the feature map for the per file data.
	f := make(TFFeatureMap, 16)
	f[tfHeight] = height
	f[tfWidth] = width
	f[tfFilename] = filename
	f[tfSourceID] = filename
	f[tfEncoded] = imgData
	f[tfFormat] = format

	// Prepare the per box data.
	boxes := img.Boxes.All()
	numBoxes := len(boxes)
	xmins := make([]float32, numBoxes)
	xmaxs := make([]float32, numBoxes)
	ymins := make([]float32, numBoxes)
	ymaxs := make([]float32, numBoxes)
	classes := make([]string, numBoxes)
	classIDs := make([]int64, numBoxes)
	difficult := make([]int64, numBoxes)
	truncated := make([]int64, numBoxes)
	views := make([]string, numBoxes)
	var hasDifficult, hasTruncated, hasViews bool
	for i, b := range boxes {
		xmin, xmax, ymin, ymax, err := normalizedCornersFromBox(b, width, height)
		if err != nil {
			return nil, malformed(filename, "size", "%v", err)
		}
		xmins[i], xmaxs[i] = float32(xmin), float32(xmax)
		ymins[i], ymaxs[i] = float32(ymin), float32(ymax)

		if classes[i], err = m.CategoryName(b); err != nil {
			return nil, fmt.Errorf("box %d of image %q: %w", b.ID, filename, err)
		}
		classIDs[i] = int64(b.CategoryID)

		difficult[i], truncated[i], views[i] = int64(b.Difficult), int64(b.Truncated), b.Pose
		hasDifficult = hasDifficult || b.Difficult != 0
		hasTruncated = hasTruncated || b.Truncated != 0
		hasViews = hasViews || (b.Pose != "" && b.Pose != DefaultPose)
	}
	f[tfXMin] = xmins
	f[tfXMax] = xmaxs
	f[tfYMin] = ymins
	f[tfYMax] = ymaxs
	f[tfClassText] = classes
	f[tfLabel] = classIDs
	if hasDifficult {
		f[tfDifficult] = difficult
	}
	if hasTruncated {
		f[tfTruncated] = truncated
	}
	if hasViews {
		f[tfView] = views
	}

	return f, nil
}

// loadImageBytes returns the encoded pixels of img from its local file or, if that does not exist
// and downloading is enabled, from its COCO or Flickr URL. Downloaded images are re-encoded as JPEG.
func loadImageBytes(img *Image, opts WriteOptions) (data []byte, downloaded bool, err error) {
	if img.Path != "" && fileExists(img.Path) {
		data, err = os.ReadFile(img.Path)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read the image: %w", err)
		}
		return data, false, nil
	}

	url := img.CocoURL
	if url == "" {
		url = img.FlickrURL
	}
	if !opts.Download || url == "" {
		return nil, false, &MissingSourceError{Image: img.FileName, Path: img.Path}
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = NewHTTPFetcher(DefaultHTTPTimeout)
	}
	slog.Debug("Downloading image", "file", img.FileName, "url", url)
	raw, err := fetcher.Fetch(url)
	if err != nil {
		return nil, false, err
	}
	if data, err = toJPEG(raw); err != nil {
		return nil, false, fmt.Errorf("image %q from %q: %w", img.FileName, url, err)
	}
	return data, true, nil
}

// WriteTFRecord converts the dataset and writes it to a TFRecord file at recordPath, along with a
// label map at labelMapPath.
//
// With opts.Shards > 1 the examples are distributed over that many files named recordPath with the
// suffix -<index>-of-<count>. Each image's feature map may be modified by opts.CustomiseFeatures
// before it is serialised. If any image fails, no record file and no label map is written.
func WriteTFRecord(recordPath, labelMapPath string, m *Mediator, opts WriteOptions) (err error) {
	if opts.Download {
		slog.Info("Downloading is enabled, conversion may take a while")
	}

	images := m.Images.All()
	numShards := opts.Shards
	if numShards <= 0 {
		numShards = 1
	}
	if numShards > len(images) && len(images) > 0 {
		numShards = len(images)
	}
	slog.Info("Writing TFRecord annotations", "path", recordPath, "images", len(images),
		"shards", numShards)

	// Completed shards are removed again if a later one fails.
	var written []string
	defer func() {
		if err != nil {
			for _, path := range written {
				_ = os.Remove(path)
			}
		}
	}()

	for shard := 0; shard < numShards; shard++ {
		path := recordPath
		if numShards > 1 {
			path += fmt.Sprintf("-%05d-of-%05d", shard, numShards)
		}
		lo := shard * len(images) / numShards
		hi := (shard + 1) * len(images) / numShards

		err := writeFileAtomic(path, func(w io.Writer) error {
			return writeTFRecordExamples(w, m, images[lo:hi], opts)
		})
		if err != nil {
			return err
		}
		written = append(written, path)
	}

	if err := saveTFRecordLabelMap(labelMapPath, m.Categories); err != nil {
		return err
	}
	slog.Info("Created TFRecord annotation file", "path", recordPath, "labelMap", labelMapPath)
	return nil
}

// writeTFRecordExamples writes one example per image to w.
func writeTFRecordExamples(w io.Writer, m *Mediator, images []*Image, opts WriteOptions) error {
	for _, img := range images {
		fm, err := toTFRecord(m, img, opts)
		if err != nil {
			return err
		}
		if opts.CustomiseFeatures != nil {
			opts.CustomiseFeatures(img, fm)
		}

		e, err := newTFExample(fm)
		if err != nil {
			return fmt.Errorf("image %q: %w", img.FileName, err)
		}
		if err := writeTFRecordExample(w, e); err != nil {
			return err
		}
	}
	return nil
}

// writeTFRecordExample serialises the example and writes it as a TFRecord to w.
func writeTFRecordExample(w io.Writer, e *tensorflow.Example) error {
	enc, err := proto.Marshal(e)
	if err != nil {
		return err
	}

	return tfrecord.Write(w, enc)
}

// saveTFRecordLabelMap writes the categories as a label map to path.
func saveTFRecordLabelMap(path string, c *Categories) error {
	items := make([]protos.LabelMapItem, 0, c.Len())
	for _, cat := range c.All() {
		items = append(items, protos.LabelMapItem{ID: int32(cat.ID), Name: cat.Name})
	}

	err := writeFileAtomic(path, func(w io.Writer) error {
		return protos.WriteLabelMap(w, items)
	})
	if err != nil {
		return fmt.Errorf("failed to write the label map %q: %w", path, err)
	}
	return nil
}
