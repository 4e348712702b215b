package overlay

import (
	"fmt"
	"image"
	"image/color"

	"towertracker/targeting"

	"gocv.io/x/gocv"
)

// debugMsgFunc is a function that will be set by main package to use unified logging
var debugMsgFunc func(component, message string)

// SetDebugFunction allows main package to provide the debug logger
func SetDebugFunction(fn func(component, message string)) {
	debugMsgFunc = fn
}

// debugMsg is a wrapper that handles nil checks
func debugMsg(component, message string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message)
	}
}

// Renderer draws candidate boxes and target readouts onto debug frames
type Renderer struct {
	sizeRejectColor  color.RGBA
	shapeRejectColor color.RGBA
	acceptedColor    color.RGBA
	textColor        color.RGBA
	statusColor      color.RGBA
	lineThickness    int
	fontScale        float64
}

// NewRenderer creates a renderer with the standard palette: blue for size
// rejects, yellow for shape rejects, green for accepted boxes, red text.
func NewRenderer() *Renderer {
	return &Renderer{
		sizeRejectColor:  color.RGBA{R: 0, G: 0, B: 255, A: 0},
		shapeRejectColor: color.RGBA{R: 255, G: 255, B: 0, A: 0},
		acceptedColor:    color.RGBA{R: 0, G: 255, B: 0, A: 0},
		textColor:        color.RGBA{R: 255, G: 0, B: 0, A: 0},
		statusColor:      color.RGBA{R: 255, G: 255, B: 255, A: 0},
		lineThickness:    1,
		fontScale:        1,
	}
}

// ColorFor returns the box colour used for a verdict
func (r *Renderer) ColorFor(v targeting.Verdict) color.RGBA {
	switch v {
	case targeting.RejectedSize:
		return r.sizeRejectColor
	case targeting.RejectedShape:
		return r.shapeRejectColor
	default:
		return r.acceptedColor
	}
}

// DrawCandidates outlines every candidate in the colour of its verdict
func (r *Renderer) DrawCandidates(img *gocv.Mat, classified []targeting.Classified) {
	for _, c := range classified {
		gocv.Rectangle(img, c.Box, r.ColorFor(c.Verdict), r.lineThickness)
	}
}

// DrawTarget writes pan, tilt and width under the bottom-right corner of the
// selected box. A nil result draws nothing.
func (r *Renderer) DrawTarget(img *gocv.Mat, result *targeting.Result) {
	if result == nil {
		return
	}

	corner := result.Box.Max
	lines := []string{
		targeting.FormatFixed(result.Pan, 2),
		targeting.FormatFixed(result.Tilt, 2),
		targeting.FormatFixed(result.Width, 2),
	}
	for i, text := range lines {
		pos := image.Point{X: corner.X, Y: corner.Y + 10 + 15*i}
		gocv.PutText(img, text, pos, gocv.FontHersheyPlain, r.fontScale, r.textColor, 1)
	}
}

// DrawStatus writes the frame rate and current output in the lower-left corner
func (r *Renderer) DrawStatus(img *gocv.Mat, fps float64, output string) {
	if output == "" {
		output = "no target"
	}
	text := fmt.Sprintf("%.1f fps | %s", fps, output)
	pos := image.Point{X: 5, Y: img.Rows() - 8}
	gocv.PutText(img, text, pos, gocv.FontHersheyPlain, r.fontScale, r.statusColor, 1)
}
