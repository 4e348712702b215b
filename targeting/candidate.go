package targeting

import (
	"image"
)

// Candidate is a contour found in the mask together with its bounding box.
// Candidates live for a single frame.
type Candidate struct {
	Box     image.Rectangle
	Contour []image.Point
}

// NewCandidate builds a candidate from a contour, computing its bounding box.
func NewCandidate(contour []image.Point) Candidate {
	return Candidate{
		Box:     BoundingBox(contour),
		Contour: contour,
	}
}

// BoundingBox returns the smallest axis-aligned rectangle containing every point.
// Like OpenCV's boundingRect, the box is inclusive of the extreme pixels, so a
// single point yields a 1x1 box.
func BoundingBox(points []image.Point) image.Rectangle {
	if len(points) == 0 {
		return image.Rectangle{}
	}

	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// Verdict is the outcome of running a candidate through the filter
type Verdict int

const (
	Accepted Verdict = iota
	RejectedSize
	RejectedShape
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "ACCEPTED"
	case RejectedSize:
		return "REJECTED_SIZE"
	case RejectedShape:
		return "REJECTED_SHAPE"
	default:
		return "UNKNOWN"
	}
}

// Classified pairs a candidate with the filter's verdict on it.
type Classified struct {
	Candidate
	Verdict Verdict
}
