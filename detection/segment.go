package detection

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Hue, saturation and value limits of OpenCV's 8-bit HSV encoding.
const (
	MaxHue        = 179
	MaxSaturation = 255
	MaxValue      = 255
)

// HSV is a colour in OpenCV's 8-bit HSV encoding (H 0-179, S and V 0-255).
type HSV struct {
	H float64 `json:"h"`
	S float64 `json:"s"`
	V float64 `json:"v"`
}

func (h HSV) scalar() gocv.Scalar {
	return gocv.NewScalar(h.H, h.S, h.V, 0)
}

// ColorThreshold bounds the accepted HSV range, inclusive on both ends.
// When Lower.H is greater than Upper.H the hue range wraps through 179/0.
type ColorThreshold struct {
	Lower HSV `json:"lower"`
	Upper HSV `json:"upper"`
}

// DefaultColorThreshold returns the range tuned for the lit retro-reflective
// tape with the camera's fixed exposure and white balance.
func DefaultColorThreshold() ColorThreshold {
	return ColorThreshold{
		Lower: HSV{H: 71, S: 36, V: 100},
		Upper: HSV{H: 154, S: 255, V: 255},
	}
}

// Wraps reports whether the hue range crosses the 179/0 boundary
func (t ColorThreshold) Wraps() bool {
	return t.Lower.H > t.Upper.H
}

// Validate checks every component is inside the encoding's range and that
// saturation and value ranges are not inverted.
func (t ColorThreshold) Validate() error {
	for _, c := range []HSV{t.Lower, t.Upper} {
		if c.H < 0 || c.H > MaxHue {
			return fmt.Errorf("hue %v outside 0-%d", c.H, MaxHue)
		}
		if c.S < 0 || c.S > MaxSaturation {
			return fmt.Errorf("saturation %v outside 0-%d", c.S, MaxSaturation)
		}
		if c.V < 0 || c.V > MaxValue {
			return fmt.Errorf("value %v outside 0-%d", c.V, MaxValue)
		}
	}
	if t.Lower.S > t.Upper.S {
		return fmt.Errorf("saturation range is inverted: %v > %v", t.Lower.S, t.Upper.S)
	}
	if t.Lower.V > t.Upper.V {
		return fmt.Errorf("value range is inverted: %v > %v", t.Lower.V, t.Upper.V)
	}
	return nil
}

// Segment converts a BGR frame to HSV and writes a single-channel mask that is
// 255 where the pixel lies inside the threshold and 0 elsewhere. hsv and mask
// are owned by the caller.
func Segment(frame gocv.Mat, threshold ColorThreshold, hsv, mask *gocv.Mat) error {
	if frame.Empty() {
		return fmt.Errorf("cannot segment an empty frame")
	}

	gocv.CvtColor(frame, hsv, gocv.ColorBGRToHSV)

	if !threshold.Wraps() {
		gocv.InRangeWithScalar(*hsv, threshold.Lower.scalar(), threshold.Upper.scalar(), mask)
		return nil
	}

	// Wrapped hue: union of [lower.H, 179] and [0, upper.H]
	high := gocv.NewMat()
	defer high.Close()
	low := gocv.NewMat()
	defer low.Close()

	gocv.InRangeWithScalar(*hsv,
		threshold.Lower.scalar(),
		HSV{H: MaxHue, S: threshold.Upper.S, V: threshold.Upper.V}.scalar(),
		&high)
	gocv.InRangeWithScalar(*hsv,
		HSV{H: 0, S: threshold.Lower.S, V: threshold.Lower.V}.scalar(),
		threshold.Upper.scalar(),
		&low)
	gocv.BitwiseOr(high, low, mask)

	return nil
}
