package targeting

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrDegenerateGeometry is returned when the target elevation angle makes the
// distance undefined (tan is zero or infinite).
var ErrDegenerateGeometry = errors.New("degenerate target geometry")

// degenerateEpsilon is how close, in degrees, an elevation angle may get to a
// multiple of 90 before the distance is treated as undefined.
const degenerateEpsilon = 1e-9

// CameraGeometry describes how the camera is mounted relative to the target.
// Heights share one unit (inches for the default goal); angles are degrees.
type CameraGeometry struct {
	TargetHeight          float64 `json:"target_height"`
	CameraHeight          float64 `json:"camera_height"`
	VerticalFOV           float64 `json:"vertical_fov"`
	HorizontalFOV         float64 `json:"horizontal_fov"`
	VerticalCameraAngle   float64 `json:"vertical_camera_angle"`
	HorizontalCameraAngle float64 `json:"horizontal_camera_angle"`
}

// DefaultCameraGeometry returns the mounting of the Axis camera on the robot
func DefaultCameraGeometry() CameraGeometry {
	return CameraGeometry{
		TargetHeight:          99,
		CameraHeight:          12,
		VerticalFOV:           34,
		HorizontalFOV:         49,
		VerticalCameraAngle:   55,
		HorizontalCameraAngle: 0,
	}
}

// Validate checks the fields describe a usable camera.
func (g CameraGeometry) Validate() error {
	if g.VerticalFOV <= 0 || g.VerticalFOV >= 180 {
		return fmt.Errorf("vertical FOV must be in (0, 180) degrees, got %v", g.VerticalFOV)
	}
	if g.HorizontalFOV <= 0 || g.HorizontalFOV >= 180 {
		return fmt.Errorf("horizontal FOV must be in (0, 180) degrees, got %v", g.HorizontalFOV)
	}
	for name, v := range map[string]float64{
		"target height":           g.TargetHeight,
		"camera height":           g.CameraHeight,
		"vertical camera angle":   g.VerticalCameraAngle,
		"horizontal camera angle": g.HorizontalCameraAngle,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be finite, got %v", name, v)
		}
	}
	return nil
}

// Projection is a bounding box expressed as camera angles.
type Projection struct {
	Width       float64 // Raw box width in pixels
	Pan         float64 // Degrees, positive to the left of boresight
	Tilt        float64 // Degrees
	TargetAngle float64 // Elevation of the target above horizontal, degrees
}

// Project converts a bounding box into pan/tilt angles. The horizontal offset
// is measured from the box's right edge minus half its width, the vertical
// offset from its bottom edge plus half its height; both halves use integer
// division. Consumers are calibrated against exactly these formulas.
func (g CameraGeometry) Project(box image.Rectangle, frameWidth, frameHeight int) (Projection, error) {
	if frameWidth <= 0 || frameHeight <= 0 {
		return Projection{}, fmt.Errorf("invalid frame size %dx%d", frameWidth, frameHeight)
	}

	// Horizontal position mapped to -1 (left edge) .. +1 (right edge)
	x := float64(box.Max.X - box.Dx()/2)
	x = 2*(x/float64(frameWidth)) - 1

	// Vertical position mapped the same way
	y := float64(box.Max.Y + box.Dy()/2)
	y = 2*(y/float64(frameHeight)) - 1

	return Projection{
		Width:       float64(box.Dx()),
		Pan:         g.HorizontalCameraAngle - x*g.HorizontalFOV/2.0,
		Tilt:        g.VerticalCameraAngle - y*g.VerticalFOV/2.0,
		TargetAngle: y*g.VerticalFOV/2 + g.VerticalCameraAngle,
	}, nil
}

// Distance returns the horizontal ground distance to a target seen at the
// given elevation angle. Angles at a multiple of 90 degrees have no defined
// distance and return ErrDegenerateGeometry.
func (g CameraGeometry) Distance(targetAngle float64) (float64, error) {
	if math.IsNaN(targetAngle) || math.IsInf(targetAngle, 0) {
		return 0, fmt.Errorf("%w: target angle %v", ErrDegenerateGeometry, targetAngle)
	}

	rem := math.Mod(math.Abs(targetAngle), 90)
	if rem < degenerateEpsilon || 90-rem < degenerateEpsilon {
		return 0, fmt.Errorf("%w: target angle %.6f is a multiple of 90 degrees", ErrDegenerateGeometry, targetAngle)
	}

	return (g.TargetHeight - g.CameraHeight) / math.Tan(radians(targetAngle)), nil
}

func radians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
