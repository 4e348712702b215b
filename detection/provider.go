package detection

import (
	"fmt"
	"time"

	"towertracker/targeting"

	"gocv.io/x/gocv"
)

// Global debug function for detection package
var debugMsgFunc func(string, string)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(string, string)) {
	debugMsgFunc = fn
}

// debugMsg is a wrapper that handles nil checks
func debugMsg(component, message string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message)
	}
}

// DetectionResult holds the intermediate buffers and candidates for one frame.
// The caller owns it and must Close it before the next frame.
type DetectionResult struct {
	HSV        gocv.Mat
	Mask       gocv.Mat
	Candidates []targeting.Candidate
	Elapsed    time.Duration
}

// Close releases the frame's intermediate buffers
func (r *DetectionResult) Close() error {
	if r == nil {
		return nil
	}
	if err := r.HSV.Close(); err != nil {
		return err
	}
	return r.Mask.Close()
}

// Provider finds target candidates in a BGR frame
type Provider interface {
	Detect(frame gocv.Mat) (*DetectionResult, error)
	Close() error
	GetProviderInfo() ProviderInfo
}

// ProviderInfo contains information about the detection provider
type ProviderInfo struct {
	Type      string // "HSV"
	Backend   string // "OpenCV CPU"
	Threshold ColorThreshold
}

// HSVProvider segments frames by colour threshold and extracts external contours
type HSVProvider struct {
	threshold ColorThreshold
}

// NewHSVProvider creates a provider for the given colour range
func NewHSVProvider(threshold ColorThreshold) (*HSVProvider, error) {
	if err := threshold.Validate(); err != nil {
		return nil, fmt.Errorf("invalid colour threshold: %w", err)
	}
	if threshold.Wraps() {
		debugMsg("DETECTION", fmt.Sprintf("Hue range %v..%v wraps through 179/0", threshold.Lower.H, threshold.Upper.H))
	}
	return &HSVProvider{threshold: threshold}, nil
}

// Detect runs segmentation and contour extraction on a BGR frame
func (hp *HSVProvider) Detect(frame gocv.Mat) (*DetectionResult, error) {
	if !isValidFrame(frame) {
		return nil, fmt.Errorf("invalid frame: empty=%v channels=%d type=%v", frame.Empty(), frame.Channels(), frame.Type())
	}

	start := time.Now()
	result := &DetectionResult{
		HSV:  gocv.NewMat(),
		Mask: gocv.NewMat(),
	}

	if err := Segment(frame, hp.threshold, &result.HSV, &result.Mask); err != nil {
		result.Close()
		return nil, err
	}
	result.Candidates = ExtractContours(result.Mask)
	result.Elapsed = time.Since(start)

	return result, nil
}

// Close releases resources used by the provider
func (hp *HSVProvider) Close() error {
	return nil
}

// GetProviderInfo returns information about the HSV provider
func (hp *HSVProvider) GetProviderInfo() ProviderInfo {
	return ProviderInfo{
		Type:      "HSV",
		Backend:   "OpenCV CPU",
		Threshold: hp.threshold,
	}
}

// isValidFrame checks the frame is a non-empty 8-bit BGR image
func isValidFrame(frame gocv.Mat) bool {
	if frame.Empty() {
		return false
	}
	if frame.Rows() <= 0 || frame.Cols() <= 0 {
		return false
	}
	return frame.Type() == gocv.MatTypeCV8UC3 && frame.Channels() == 3
}
