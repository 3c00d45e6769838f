package detconv

import (
	"fmt"
	"strconv"
)

// DefaultPose is the pose of boxes whose source format does not record one.
const DefaultPose = "Unspecified"

// BoundingBox is a single object annotation. X and Y are the absolute offsets of the top-left
// corner, Width and Height the absolute extents, all in pixels.
type BoundingBox struct {
	ID         int
	CategoryID int
	X          float64
	Y          float64
	Width      float64
	Height     float64
	Pose       string
	Truncated  int // 0 or 1, as are the flags below.
	Occluded   int
	Difficult  int
	IsCrowd    int
}

// Corners returns the absolute x1, y1, x2, y2 coordinates.
func (b BoundingBox) Corners() [4]float64 {
	return [4]float64{b.X, b.Y, b.X + b.Width, b.Y + b.Height}
}

// Boxes is the append-only list of boxes belonging to one image. The zero value is ready to use.
type Boxes struct {
	list []BoundingBox
	byID map[int][]int
}

// NewBoxes returns an empty collection.
func NewBoxes() *Boxes {
	return &Boxes{byID: make(map[int][]int)}
}

// Append adds b. An empty pose becomes DefaultPose. Negative extents are rejected.
func (bs *Boxes) Append(b BoundingBox) error {
	if b.Width < 0 || b.Height < 0 {
		return fmt.Errorf("box %d has a negative extent (%g x %g)", b.ID, b.Width, b.Height)
	}
	if b.Pose == "" {
		b.Pose = DefaultPose
	}

	if bs.byID == nil {
		bs.byID = make(map[int][]int)
	}
	bs.list = append(bs.list, b)
	bs.byID[b.ID] = append(bs.byID[b.ID], len(bs.list)-1)
	return nil
}

// Get returns the box with the given ID.
func (bs *Boxes) Get(id int) (BoundingBox, error) {
	match := bs.byID[id]
	switch len(match) {
	case 0:
		return BoundingBox{}, &NotFoundError{What: "box", Key: "ID " + strconv.Itoa(id)}
	case 1:
		return bs.list[match[0]], nil
	default:
		return BoundingBox{}, &AmbiguousError{What: "box", Key: "ID " + strconv.Itoa(id),
			Count: len(match)}
	}
}

// Len returns the number of boxes.
func (bs *Boxes) Len() int {
	return len(bs.list)
}

// All returns the boxes in insertion order. The slice must not be modified.
func (bs *Boxes) All() []BoundingBox {
	return bs.list
}
