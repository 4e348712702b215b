package targeting

import (
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Result is the geometry of the selected target for one frame.
type Result struct {
	Box         image.Rectangle
	Width       float64
	Pan         float64
	Tilt        float64
	Distance    float64
	HasDistance bool // False when the elevation angle made the distance undefined
}

// NewResult projects the selected box through the camera geometry. A
// degenerate distance does not fail the result: width, pan and tilt stay
// well defined, and HasDistance reports whether Distance can be used.
func NewResult(box image.Rectangle, frameWidth, frameHeight int, geometry CameraGeometry) (*Result, error) {
	proj, err := geometry.Project(box, frameWidth, frameHeight)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Box:   box,
		Width: proj.Width,
		Pan:   proj.Pan,
		Tilt:  proj.Tilt,
	}
	if distance, err := geometry.Distance(proj.TargetAngle); err == nil {
		result.Distance = distance
		result.HasDistance = true
	}
	return result, nil
}

// Output renders the result as "<width>,<pan>,<tilt>" with two decimals each.
// A nil result renders as the empty string, which consumers read as "no target".
func (r *Result) Output() string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("%s,%s,%s", FormatFixed(r.Width, 2), FormatFixed(r.Pan, 2), FormatFixed(r.Tilt, 2))
}

func (r *Result) String() string {
	if r == nil {
		return "no target"
	}
	if !r.HasDistance {
		return fmt.Sprintf("width=%s pan=%s tilt=%s distance=n/a",
			FormatFixed(r.Width, 2), FormatFixed(r.Pan, 2), FormatFixed(r.Tilt, 2))
	}
	return fmt.Sprintf("width=%s pan=%s tilt=%s distance=%s",
		FormatFixed(r.Width, 2), FormatFixed(r.Pan, 2), FormatFixed(r.Tilt, 2), FormatFixed(r.Distance, 2))
}

// FormatFixed formats v with the given number of decimals, rounding half up
// on the shortest decimal representation of v. This is what the existing
// consumers were built against: 0.125 becomes "0.13", where %.2f would
// give "0.12". The sign is kept for values that round to zero ("-0.00").
func FormatFixed(v float64, places int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', places, 64)
	}
	if places < 0 {
		places = 0
	}

	s := decimal.NewFromFloat(v).StringFixed(int32(places))
	if math.Signbit(v) && !strings.HasPrefix(s, "-") {
		s = "-" + s
	}
	return s
}
