package detconv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const tolerance = 1e-9

func TestYOLOFullImageBox(t *testing.T) {
	x, y, w, h := boxFromCenter(0.5, 0.5, 1, 1, 100, 100)
	require.InDelta(t, 0, x, tolerance)
	require.InDelta(t, 0, y, tolerance)
	require.InDelta(t, 100, w, tolerance)
	require.InDelta(t, 100, h, tolerance)

	cx, cy, rw, rh, err := centerFromBox(BoundingBox{X: x, Y: y, Width: w, Height: h}, 100, 100)
	require.NoError(t, err)
	require.InDelta(t, 0.5, cx, tolerance)
	require.InDelta(t, 0.5, cy, tolerance)
	require.InDelta(t, 1, rw, tolerance)
	require.InDelta(t, 1, rh, tolerance)
}

func TestYOLOCenterRoundTrip(t *testing.T) {
	b := BoundingBox{X: 12.5, Y: 40, Width: 30, Height: 7.25}
	cx, cy, rw, rh, err := centerFromBox(b, 640, 480)
	require.NoError(t, err)

	x, y, w, h := boxFromCenter(cx, cy, rw, rh, 640, 480)
	require.InDelta(t, b.X, x, tolerance)
	require.InDelta(t, b.Y, y, tolerance)
	require.InDelta(t, b.Width, w, tolerance)
	require.InDelta(t, b.Height, h, tolerance)

	_, _, _, _, err = centerFromBox(b, 0, 480)
	require.Error(t, err)
}

func TestPascalVOCCorners(t *testing.T) {
	x, y, w, h := boxFromCorners(10, 20, 30, 50)
	require.Equal(t, [4]float64{10, 20, 20, 30}, [4]float64{x, y, w, h})

	xmin, ymin, xmax, ymax := cornersFromBox(BoundingBox{X: x, Y: y, Width: w, Height: h})
	require.Equal(t, [4]int{10, 20, 30, 50}, [4]int{xmin, ymin, xmax, ymax})

	// Fractional corners are truncated.
	xmin, ymin, xmax, ymax = cornersFromBox(BoundingBox{X: 1.9, Y: 2.5, Width: 3.3, Height: 0.4})
	require.Equal(t, [4]int{1, 2, 5, 2}, [4]int{xmin, ymin, xmax, ymax})
}

func TestTFRecordWidthUsesCornerDifference(t *testing.T) {
	// A box from 20% to 60% of a 200 pixel wide image is 80 pixels wide, not (0.2+0.6)*200.
	x, y, w, h := boxFromNormalizedCorners(0.2, 0.6, 0.1, 0.5, 200, 100)
	require.InDelta(t, 40, x, tolerance)
	require.InDelta(t, 10, y, tolerance)
	require.InDelta(t, 80, w, tolerance)
	require.InDelta(t, 40, h, tolerance)

	xmin, xmax, ymin, ymax, err := normalizedCornersFromBox(
		BoundingBox{X: x, Y: y, Width: w, Height: h}, 200, 100)
	require.NoError(t, err)
	require.InDelta(t, 0.2, xmin, tolerance)
	require.InDelta(t, 0.6, xmax, tolerance)
	require.InDelta(t, 0.1, ymin, tolerance)
	require.InDelta(t, 0.5, ymax, tolerance)
}
