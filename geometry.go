package detconv

// Conversions between the absolute top-left box convention and the coordinates used by each format.

import "fmt"

// boxFromCorners converts absolute corner coordinates (PascalVOC) to a box origin and extents.
func boxFromCorners(xmin, ymin, xmax, ymax float64) (x, y, width, height float64) {
	return xmin, ymin, xmax - xmin, ymax - ymin
}

// cornersFromBox converts b to integer corner coordinates, truncating toward zero.
func cornersFromBox(b BoundingBox) (xmin, ymin, xmax, ymax int) {
	c := b.Corners()
	return int(c[0]), int(c[1]), int(c[2]), int(c[3])
}

// boxFromCenter converts a YOLO box, normalised by the image size and given by its center, to a
// box origin and extents.
func boxFromCenter(cx, cy, rw, rh float64, imgWidth, imgHeight int) (x, y, width, height float64) {
	width = rw * float64(imgWidth)
	height = rh * float64(imgHeight)
	x = cx*float64(imgWidth) - width/2
	y = cy*float64(imgHeight) - height/2
	return x, y, width, height
}

// centerFromBox is the inverse of boxFromCenter.
func centerFromBox(b BoundingBox, imgWidth, imgHeight int) (cx, cy, rw, rh float64, err error) {
	if err := checkImageSize(imgWidth, imgHeight); err != nil {
		return 0, 0, 0, 0, err
	}
	w, h := float64(imgWidth), float64(imgHeight)
	cx = (b.X + b.Width/2) / w
	cy = (b.Y + b.Height/2) / h
	return cx, cy, b.Width / w, b.Height / h, nil
}

// boxFromNormalizedCorners converts TFRecord corners, normalised by the image size, to a box origin
// and extents.
func boxFromNormalizedCorners(xmin, xmax, ymin, ymax float64, imgWidth, imgHeight int) (
	x, y, width, height float64) {

	w, h := float64(imgWidth), float64(imgHeight)
	return xmin * w, ymin * h, (xmax - xmin) * w, (ymax - ymin) * h
}

// normalizedCornersFromBox is the inverse of boxFromNormalizedCorners.
func normalizedCornersFromBox(b BoundingBox, imgWidth, imgHeight int) (
	xmin, xmax, ymin, ymax float64, err error) {

	if err := checkImageSize(imgWidth, imgHeight); err != nil {
		return 0, 0, 0, 0, err
	}
	w, h := float64(imgWidth), float64(imgHeight)
	c := b.Corners()
	return c[0] / w, c[2] / w, c[1] / h, c[3] / h, nil
}

func checkImageSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("cannot normalise by an image size of %d x %d", width, height)
	}
	return nil
}
