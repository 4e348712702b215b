package overlay

import (
	"gocv.io/x/gocv"
)

// Viewer shows the four debug buffers in desktop windows
type Viewer struct {
	original  *gocv.Window
	hsv       *gocv.Window
	mask      *gocv.Window
	annotated *gocv.Window
}

// NewViewer opens the debug windows. It needs a display.
func NewViewer() *Viewer {
	return &Viewer{
		original:  gocv.NewWindow("original"),
		hsv:       gocv.NewWindow("hsv"),
		mask:      gocv.NewWindow("mask"),
		annotated: gocv.NewWindow("annotated"),
	}
}

// Observe implements Observer
func (v *Viewer) Observe(frames Frames) {
	v.original.IMShow(frames.Original)
	v.hsv.IMShow(frames.HSV)
	v.mask.IMShow(frames.Mask)
	v.annotated.IMShow(frames.Annotated)
	v.annotated.WaitKey(1)
}

// Close closes all windows
func (v *Viewer) Close() error {
	for _, w := range []*gocv.Window{v.original, v.hsv, v.mask, v.annotated} {
		if err := w.Close(); err != nil {
			return err
		}
	}
	return nil
}
