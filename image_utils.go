package detconv

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// jpegQuality is used whenever pixels are re-encoded as JPEG.
const jpegQuality = 95

// imageHeader is the geometry read from an encoded image without decoding the pixels.
type imageHeader struct {
	Width  int
	Height int
	Depth  int    // The number of channels.
	Format string // The registered codec name, e.g. "jpeg" or "png".
}

// decodeImageConfig opens the file at path and returns its header.
func decodeImageConfig(path string) (hdr imageHeader, err error) {
	file, err := os.Open(path)
	if err != nil {
		return imageHeader{}, err
	}
	defer closeWithErrCheck(file, &err)

	config, format, err := image.DecodeConfig(file)
	if err != nil {
		return imageHeader{}, fmt.Errorf("failed to decode the image metadata of %q: %w", path, err)
	}
	return newImageHeader(config, format), nil
}

// decodeImageConfigBytes returns the header of the encoded image in data.
func decodeImageConfigBytes(data []byte) (imageHeader, error) {
	config, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return imageHeader{}, err
	}
	return newImageHeader(config, format), nil
}

func newImageHeader(config image.Config, format string) imageHeader {
	return imageHeader{
		Width:  config.Width,
		Height: config.Height,
		Depth:  colorDepth(config.ColorModel),
		Format: format,
	}
}

// colorDepth returns the number of channels of images using the color model m.
func colorDepth(m color.Model) int {
	switch m {
	case color.GrayModel, color.Gray16Model, color.AlphaModel, color.Alpha16Model:
		return 1
	case color.RGBAModel, color.RGBA64Model, color.NRGBAModel, color.NRGBA64Model, color.CMYKModel:
		return 4
	}
	// YCbCr, paletted and unknown models.
	return 3
}

// sameEncoding reports whether the codec name format (as returned by image.DecodeConfig) matches the
// file extension ext.
func sameEncoding(format, ext string) bool {
	fromExt, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return strings.EqualFold(format, strings.TrimPrefix(ext, "."))
	}
	return strings.EqualFold(fromExt.String(), format)
}

// toJPEG decodes the image in data and re-encodes it as JPEG.
func toJPEG(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode the image: %w", err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode the image: %w", err)
	}
	return buf.Bytes(), nil
}

// saveImageBytes writes the encoded image in data to path. The bytes are written unchanged if their
// encoding matches the extension of path, otherwise the image is transcoded to that encoding.
func saveImageBytes(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	hdr, err := decodeImageConfigBytes(data)
	if err != nil || sameEncoding(hdr.Format, filepath.Ext(path)) {
		// Unknown encodings are stored as they are.
		return os.WriteFile(path, data, 0o644)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode the image for %q: %w", path, err)
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(jpegQuality)); err != nil {
		return fmt.Errorf("failed to save the image %q: %w", path, err)
	}
	return nil
}
