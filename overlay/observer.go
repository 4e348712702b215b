package overlay

import (
	"towertracker/targeting"

	"gocv.io/x/gocv"
)

// Frames bundles the buffers of one processed frame for inspection. The mats
// belong to the pipeline and are only valid for the duration of Observe;
// observers that keep an image must Clone it.
type Frames struct {
	Sequence  int64
	Original  gocv.Mat // Frame as captured (BGR)
	HSV       gocv.Mat // Frame converted to HSV
	Mask      gocv.Mat // Binary threshold mask
	Annotated gocv.Mat // Copy of the original with candidate boxes and readout
	Result    *targeting.Result
	Output    string
}

// Observer receives the debug buffers once per processed frame
type Observer interface {
	Observe(frames Frames)
}

// Observers fans one frame out to several observers in order
type Observers []Observer

// Observe implements Observer
func (o Observers) Observe(frames Frames) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(frames)
		}
	}
}
